package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mq-rpc/registry"
)

var servicesJSON bool

// servicesCmd represents the services command
var servicesCmd = &cobra.Command{
	Use:   "services [service]",
	Short: "list the service instances announced in etcd",
	Long: `usage example:
    MQRPC_ETCD_ENDPOINTS=localhost:2379 mqrpc services
        list every announced instance.
    MQRPC_ETCD_ENDPOINTS=localhost:2379 mqrpc services demo --json
        print the announced catalogues of demo.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}
		defer rt.close()

		reg, err := rt.serviceRegistry()
		if err != nil {
			return err
		}
		if reg == nil {
			return errNoRegistry
		}

		ctx, cancel := rt.callContext()
		defer cancel()

		var instances []registry.ServiceInstance
		if len(args) == 1 {
			instances, err = reg.Discover(ctx, args[0])
		} else {
			instances, err = reg.List(ctx)
		}
		if err != nil {
			return err
		}
		if servicesJSON {
			return printJSON(cmd.OutOrStdout(), instances)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SERVICE\tINSTANCE\tMETHODS\tDESCRIPTION")
		for _, inst := range instances {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", inst.Service, inst.ID, len(inst.Methods), inst.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(servicesCmd)

	servicesCmd.Flags().BoolVar(&servicesJSON, "json", false, "print the full instances as JSON")
}
