package cmd

import (
	"os"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"mq-rpc/stubgen"
)

var (
	genVersion string
	genPackage string
	genOut     string
)

// genCmd represents the gen command
var genCmd = &cobra.Command{
	Use:   "gen <service>",
	Short: "generate a typed Go wrapper for a service",
	Long: `usage example:
    mqrpc gen demo --version v1 --package demo --out demo/proxy.go`,
	Args: cobra.ExactArgs(1),
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
		pkg := genPackage
		if pkg == "" {
			pkg = packageName(args[0])
		}
		src, err := stubgen.Generate(c, genVersion, pkg)
		if err != nil {
			return err
		}
		if genOut == "" {
			_, err = cmd.OutOrStdout().Write(src)
			return err
		}
		return os.WriteFile(genOut, src, 0o644)
	},
}

func init() {
	rootCmd.AddCommand(genCmd)

	genCmd.Flags().StringVar(&genVersion, "version", "v1", "method version to wrap")
	genCmd.Flags().StringVar(&genPackage, "package", "", "package name (default derived from the service)")
	genCmd.Flags().StringVarP(&genOut, "out", "o", "", "output file (default stdout)")
}

// packageName keeps the lowercase letters and digits of service.
func packageName(service string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(service) {
		if unicode.IsLetter(r) || (b.Len() > 0 && unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "stubs"
	}
	return b.String()
}
