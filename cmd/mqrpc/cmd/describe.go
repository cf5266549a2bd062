package cmd

import (
	"github.com/spf13/cobra"

	"mq-rpc/message"
)

// describeCmd represents the describe command
var describeCmd = &cobra.Command{
	Use:   "describe <service> [method] [version]",
	Short: "ask a service for help about its methods",
	Long: `Calls the service's built-in _help method.

usage example:
    mqrpc describe demo
        list the methods of demo.
    mqrpc describe demo add
        list the versions of demo.add.
    mqrpc describe demo add v2
        describe version v2 of demo.add.`,
	Args: cobra.RangeArgs(1, 3),
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

		kwargs := map[string]any{}
		if len(args) > 1 {
			kwargs["name"] = args[1]
		}
		if len(args) > 2 {
			kwargs["version"] = args[2]
		}
		resp, err := p.Call(ctx, message.HelpMethod, message.BuiltinVersion, nil, kwargs)
		if err != nil {
			return err
		}
		if err := resp.Err(nil, nil); err != nil {
			return err
		}
		value, err := resp.Value()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), value)
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
