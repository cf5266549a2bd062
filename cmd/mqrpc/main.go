package main

import "mq-rpc/cmd/mqrpc/cmd"

func main() {
	cmd.Execute()
}
