package cli

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"icegate/internal/domain"
	"icegate/internal/typebridge"
)

func newTypesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "Convert between logical and Iceberg types",
	}
	cmd.AddCommand(newTypesConvertCmd())
	return cmd
}

func newTypesConvertCmd() *cobra.Command {
	var schemaID int

	cmd := &cobra.Command{
		Use:   "convert [TYPE_JSON]",
		Short: "Convert a logical type to its Iceberg form",
		Long: `Reads a logical type as JSON (from the argument, or stdin when omitted) and
prints the Iceberg type. Struct types are printed as a schema with field ids.`,
		Example: `  icegate types convert '"decimal(10,2)"'
  echo '{"type":"struct","fields":[{"name":"id","type":"long","nullable":false}]}' | icegate types convert`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input []byte
			if len(args) == 1 {
				input = []byte(args[0])
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				input = bytes.TrimSpace(b)
			}

			logical, err := domain.UnmarshalType(input)
			if err != nil {
				return err
			}
			if st, ok := logical.(*domain.StructType); ok {
				schema, err := typebridge.ToSchema(schemaID, st)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), typebridge.EncodeSchema(schema))
			}
			physical, err := typebridge.ToPhysical(logical)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), typebridge.EncodeType(physical))
		},
	}

	cmd.Flags().IntVar(&schemaID, "schema-id", 0, "Schema id for struct types")
	return cmd
}
