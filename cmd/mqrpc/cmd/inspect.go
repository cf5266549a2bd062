package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"mq-rpc/client"
	"mq-rpc/message"
	"mq-rpc/rpcerror"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <service>",
	Short: "print the method catalogue of a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}
		defer rt.close()

		p, err := rt.proxy(args[0])
		if err != nil {
			return err
		}
		defer p.Close()

		ctx, cancel := rt.callContext()
		defer cancel()

		c, err := fetchCatalogue(ctx, p)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), c)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func fetchCatalogue(ctx context.Context, p *client.Proxy) (message.Catalogue, error) {
	var c message.Catalogue
	resp, err := p.Call(ctx, message.InspectMethod, message.BuiltinVersion, nil, nil)
	if err != nil {
		return c, err
	}
	if err := resp.Err(rpcerror.NewRegistry(), nil); err != nil {
		return c, err
	}
	err = resp.Decode(&c)
	return c, err
}
