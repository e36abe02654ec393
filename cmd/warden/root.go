package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile  string
	envFiles []string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - policy compliance monitoring engine",
	Long: `Warden watches compliance policy documents and the checks defined for them.

Each monitoring cycle it:
  - Detects changes between the two latest versions of every monitored policy
  - Evaluates the active compliance checks for the policy type
  - Raises a violation for every failing check
  - Notifies the policy's subscribers of violations and significant changes`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults only when empty)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before environment overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

// loadConfig loads the dotenv files and the configuration, and builds the
// process logger from it. Logs go to the command's stderr so stdout stays
// free for results.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	if err := config.LoadDotenv(envFiles...); err != nil {
		return nil, nil, cli.NewConfigError("env-file", err.Error())
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, nil, cli.NewConfigError("config", err.Error())
	}
	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		Writer:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	logger.Debug("configuration loaded",
		"config_file", cfgFile,
		"storage_driver", cfg.Storage.Driver,
		"classifier", cfg.Classifier,
	)
	return cfg, logger, nil
}

// formatterFor resolves an --output flag value.
func formatterFor(output string) (cli.Formatter, error) {
	return cli.NewFormatter(cli.OutputFormat(output))
}
