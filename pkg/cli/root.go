// Package cli implements the icegate admin command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "none"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	registry string
	output   string
}

// Execute runs the CLI.
func Execute() int {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		if getOutputFormat(rootCmd) == "json" {
			_ = printJSON(os.Stdout, map[string]string{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// NewRootCmd builds the icegate command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "icegate",
		Short:         "Iceberg catalog gateway admin CLI",
		Long:          "Manage catalogs in the gateway registry and inspect logical/physical type conversion.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Precedence: flag > env > default
			if !cmd.Flags().Changed("registry") {
				if v := os.Getenv("CATALOG_REGISTRY_DB_PATH"); v != "" {
					opts.registry = v
				}
			}
			return validateOutputFormat(opts.output)
		},
	}
	rootCmd.PersistentFlags().AddFlagSet(globalFlags(opts))

	rootCmd.AddCommand(newCatalogsCmd(opts))
	rootCmd.AddCommand(newTypesCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCommandsCmd())
	return rootCmd
}

func globalFlags(opts *globalOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet("global", pflag.ContinueOnError)
	fs.StringVar(&opts.registry, "registry", "icegate_registry.sqlite", "Path to the catalog registry database")
	fs.StringVarP(&opts.output, "output", "o", "table", "Output format (table, json)")
	return fs
}
