package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/catalog"
	"mercator-hq/warden/pkg/catalog/gitsource"
	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/config"
)

var catalogFlags struct {
	quiet bool
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the policy catalog",
	Long: `Validate and import the YAML catalog of policies, policy versions,
compliance checks and subscriptions.`,
}

var catalogImportCmd = &cobra.Command{
	Use:   "import [path]",
	Short: "Import the catalog into the store",
	Long: `Import the catalog into the store. Policies and checks are upserted by id;
versions and subscriptions are inserted only when absent, so re-importing the
same file changes nothing.

The path defaults to the catalog.git checkout when a repository is configured,
otherwise to catalog.path.

Examples:
  warden catalog import catalog.yaml
  warden catalog import --config warden.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalogImport,
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate the catalog without importing it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCatalogValidate,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogValidateCmd)

	catalogImportCmd.Flags().BoolVarP(&catalogFlags.quiet, "quiet", "q", false, "do not show a progress bar")
}

// catalogPath resolves the catalog file: the argument, else a fresh sync of
// catalog.git, else catalog.path.
func catalogPath(ctx context.Context, args []string, cfg config.CatalogConfig, logger *slog.Logger) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if cfg.Git.Enabled() {
		src, err := gitsource.New(cfg.Git, logger)
		if err != nil {
			return "", cli.NewConfigError("catalog.git", err.Error())
		}
		if _, err := src.Sync(ctx); err != nil {
			return "", err
		}
		return src.CatalogPath(), nil
	}
	if cfg.Path == "" {
		return "", cli.NewConfigError("catalog.path", "no catalog path given and none configured")
	}
	return cfg.Path, nil
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path, err := catalogPath(cmd.Context(), args, cfg.Catalog, logger)
	if err != nil {
		return cli.NewCommandError("catalog import", err)
	}

	c, err := catalog.Load(path)
	if err != nil {
		return cli.NewCommandError("catalog import", err)
	}

	e, err := newEngine(cfg, logger, engineOptions{})
	if err != nil {
		return cli.NewCommandError("catalog import", err)
	}
	defer e.Close()

	importer := catalog.NewImporter(e.store, e.metrics, logger)
	var progress *cli.ImportProgress
	if !catalogFlags.quiet {
		progress = cli.NewImportProgress(cmd.ErrOrStderr(), c.Size())
		importer.OnProgress = progress.Advance
	}

	res, err := importer.Import(cmd.Context(), c)
	if err != nil {
		if progress != nil {
			progress.Fail(err)
		}
		return cli.NewCommandError("catalog import", err)
	}
	if progress != nil {
		progress.Done()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d policies, %d versions, %d checks, %d subscriptions\n",
		res.Policies, res.Versions, res.Checks, res.Subscriptions)
	return nil
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path, err := catalogPath(cmd.Context(), args, cfg.Catalog, logger)
	if err != nil {
		return cli.NewCommandError("catalog validate", err)
	}

	c, err := catalog.Load(path)
	if err != nil {
		return cli.NewCommandError("catalog validate", err)
	}
	if err := c.Validate(); err != nil {
		return cli.NewCommandError("catalog validate", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Catalog valid (%d policies, %d checks)\n", len(c.Policies), len(c.Checks))
	return nil
}
