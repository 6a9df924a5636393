package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/clientmap/internal/config"
	"github.com/nao1215/clientmap/internal/log"
)

// NewRootCmd creates the root command for clientmap.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clientmap",
		Short: "Map the client-side navigation of web applications",
		Long: `clientmap builds a per-session tree of the URLs a browser visits while
an application is explored or spidered.

The run command starts the telemetry API the browser extension reports to.
Every session is archived in a local history database, which the sessions
and export commands read.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .clientmap in current or home directory)")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewSyncProfileCmd())
	cmd.AddCommand(NewSessionsCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig builds the configuration shared by every command: defaults,
// then the configuration file, then the global flags. It also installs the
// redacting logger as the default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg := config.NewConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	if _, err := config.Load(cfg, configPath); err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.Verbose = getVerboseFlag(cmd)

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), log.Options{
		Verbose:            cfg.Verbose,
		JSON:               cfg.JSONLog,
		ExtraSensitiveKeys: cfg.SensitiveKeys,
	})
	slog.SetDefault(logger)

	if cfg.ConfigFilePath != "" {
		logger.Debug("configuration loaded", "path", cfg.ConfigFilePath)
	}
	return cfg, logger, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}
