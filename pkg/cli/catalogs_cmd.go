package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"icegate/internal/db"
	"icegate/internal/db/repository"
	"icegate/internal/domain"
)

func newCatalogsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalogs",
		Short: "Manage catalogs in the registry used by the registry-based provider",
	}
	cmd.AddCommand(newCatalogsRegisterCmd(opts))
	cmd.AddCommand(newCatalogsListCmd(opts))
	cmd.AddCommand(newCatalogsGetCmd(opts))
	cmd.AddCommand(newCatalogsDeleteCmd(opts))
	return cmd
}

// withRepo opens the registry, applies migrations and runs fn.
func withRepo(ctx context.Context, opts *globalOptions, fn func(context.Context, domain.CatalogConfigRepository) error) error {
	conn, err := db.OpenSQLite(opts.registry, db.ModeWrite)
	if err != nil {
		return err
	}
	defer conn.Close() //nolint:errcheck

	if err := db.RunMigrations(conn); err != nil {
		return err
	}
	return fn(ctx, repository.NewCatalogConfigRepo(conn))
}

func newCatalogsRegisterCmd(opts *globalOptions) *cobra.Command {
	var (
		props   map[string]string
		comment string
		replace bool
	)

	cmd := &cobra.Command{
		Use:   "register NAME",
		Short: "Register a catalog or replace its properties",
		Example: `  icegate catalogs register sales \
    --property type=rest --property uri=http://rest:8181 --property warehouse=s3://lake/sales`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, err := domain.ResolveCatalogName(name + "/"); err != nil {
				return err
			}
			if strings.ContainsAny(name, "/.") {
				return domain.ErrValidation("catalog name %q must not contain '/' or '.'", name)
			}

			return withRepo(cmd.Context(), opts, func(ctx context.Context, repo domain.CatalogConfigRepository) error {
				cfg, err := repo.Create(ctx, &domain.CatalogConfig{Name: name, Properties: props, Comment: comment})
				var conflict *domain.ConflictError
				if errors.As(err, &conflict) && replace {
					var c *string
					if cmd.Flags().Changed("comment") {
						c = &comment
					}
					cfg, err = repo.Update(ctx, name, props, c)
				}
				if err != nil {
					return err
				}
				return printCatalog(cmd, cfg)
			})
		},
	}

	cmd.Flags().StringToStringVarP(&props, "property", "P", nil, "Catalog property as key=value (repeatable)")
	cmd.Flags().StringVar(&comment, "comment", "", "Free-form description")
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the properties of an existing catalog")
	return cmd
}

func newCatalogsListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered catalogs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRepo(cmd.Context(), opts, func(ctx context.Context, repo domain.CatalogConfigRepository) error {
				configs, err := repo.List(ctx)
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					if configs == nil {
						configs = []domain.CatalogConfig{}
					}
					return printJSON(cmd.OutOrStdout(), configs)
				}
				rows := make([][]string, 0, len(configs))
				for _, c := range configs {
					rows = append(rows, []string{c.Name, fmt.Sprint(len(c.Properties)), c.Comment, c.UpdatedAt.Format(time.RFC3339)})
				}
				printTable(cmd.OutOrStdout(), []string{"name", "properties", "comment", "updated"}, rows)
				return nil
			})
		},
	}
}

func newCatalogsGetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Show a registered catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), opts, func(ctx context.Context, repo domain.CatalogConfigRepository) error {
				cfg, err := repo.GetByName(ctx, args[0])
				if err != nil {
					return err
				}
				return printCatalog(cmd, cfg)
			})
		},
	}
}

func newCatalogsDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Remove a catalog from the registry",
		Long: `Removes the catalog definition. A running gateway keeps serving its cached
handle until it expires or is invalidated with DELETE /admin/catalogs/{name}.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), opts, func(ctx context.Context, repo domain.CatalogConfigRepository) error {
				if err := repo.Delete(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted catalog %s\n", args[0])
				return err
			})
		},
	}
}

func printCatalog(cmd *cobra.Command, cfg *domain.CatalogConfig) error {
	if getOutputFormat(cmd) == "json" {
		return printJSON(cmd.OutOrStdout(), cfg)
	}
	rows := make([][]string, 0, len(cfg.Properties))
	for _, k := range slices.Sorted(maps.Keys(cfg.Properties)) {
		rows = append(rows, []string{k, redact(k, cfg.Properties[k])})
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "catalog %s (%s)\n", cfg.Name, cfg.ID)
	printTable(cmd.OutOrStdout(), []string{"property", "value"}, rows)
	return nil
}

// redact hides secret-looking property values in table output.
func redact(key, value string) string {
	k := strings.ToLower(key)
	if strings.Contains(k, "secret") || strings.Contains(k, "token") || strings.Contains(k, "password") {
		return "********"
	}
	return value
}
