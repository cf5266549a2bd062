package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"mq-rpc/client"
	"mq-rpc/middleware"
)

var (
	callVersion string
	callKwargs  string
	callAsync   bool
	callRetries int
)

// callCmd represents the call command
var callCmd = &cobra.Command{
	Use:   "call <service> <method> [arg...]",
	Short: "invoke a remote method and print the response",
	Long: `Each arg is parsed as JSON; anything that is not valid JSON is sent as a string.

usage example:
    mqrpc call demo add 1 2
    mqrpc call demo add --kwargs '{"a": 1, "b": 2}'
    mqrpc call demo add --version v2 '[1, 2, 3]'
    mqrpc call demo sleep 500 --async`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}
		defer rt.close()

		kwargs, err := parseKwargs(callKwargs)
		if err != nil {
			return err
		}

		var opts []client.Option
		if callRetries > 0 {
			opts = append(opts, client.WithMiddleware(middleware.Retry(callRetries, rt.cfg.Timeout/10, rt.log)))
		}
		p, err := rt.proxy(args[0], opts...)
		if err != nil {
			return err
		}
		defer p.Close()

		ctx, cancel := rt.callContext()
		defer cancel()

		if !callAsync {
			resp, err := p.Call(ctx, args[1], callVersion, parseArgs(args[2:]), kwargs)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		}

		id, err := p.Send(ctx, args[1], callVersion, parseArgs(args[2:]), kwargs)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "correlation id: %s\n", id)
		resp, err := p.AwaitResult(ctx, id, rt.cfg.Timeout)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringVar(&callVersion, "version", "v1", "method version")
	callCmd.Flags().StringVar(&callKwargs, "kwargs", "", "keyword arguments as a JSON object")
	callCmd.Flags().BoolVar(&callAsync, "async", false, "publish first, print the correlation id, then wait")
	callCmd.Flags().IntVar(&callRetries, "retries", 0, "re-issue timed out calls this many times")
}

func parseArgs(raw []string) []any {
	args := make([]any, 0, len(raw))
	for _, s := range raw {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			v = s
		}
		args = append(args, v)
	}
	return args
}

func parseKwargs(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var kwargs map[string]any
	if err := json.Unmarshal([]byte(raw), &kwargs); err != nil {
		return nil, errors.Wrap(err, "--kwargs must be a JSON object")
	}
	return kwargs, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
