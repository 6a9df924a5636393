package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/clientmap/internal/config"
	"github.com/nao1215/clientmap/internal/profile"
)

// NewSyncProfileCmd creates the sync-profile command.
func NewSyncProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-profile",
		Short: "Prepare the browser profile the telemetry extension runs in",
		Long: `Sync-profile creates the browser profile directory, writes the extension
preferences when they are missing and registers the profile with the
browser. Existing files are never overwritten. The run command performs
the same steps at startup.

Examples:
  # Prepare the default profile
  clientmap sync-profile

  # Use a different profile name and directory
  clientmap sync-profile --name pentest --root ~/profiles`,
		Args: cobra.NoArgs,
		RunE: runSyncProfileCmd,
	}

	cmd.Flags().StringP("name", "n", "", "Profile name (default "+profile.DefaultProfileName+")")
	cmd.Flags().StringP("root", "r", "", "Directory profiles live in (default: the browser's data directory)")

	return cmd
}

func runSyncProfileCmd(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if name, _ := cmd.Flags().GetString("name"); name != "" { //nolint:errcheck // flag is registered above
		cfg.ProfileName = name
	}
	if root, _ := cmd.Flags().GetString("root"); root != "" { //nolint:errcheck // flag is registered above
		cfg.ProfileRoot = root
	}

	res := newSynchronizer(cfg, logger).Sync()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Profile:     %s\n", res.ProfileName)
	if res.ProfileDir != "" {
		fmt.Fprintf(out, "Directory:   %s%s\n", res.ProfileDir, created(res.ProfileCreated))
	}
	if res.PreferencesCreated {
		fmt.Fprintln(out, "Preferences: created")
	}
	switch {
	case res.Registered:
		fmt.Fprintf(out, "Registry:    registered in %s\n", res.RegistryPath)
	case res.AlreadyRegistered:
		fmt.Fprintf(out, "Registry:    already registered in %s\n", res.RegistryPath)
	}
	if res.MakeDefault {
		fmt.Fprintln(out, "\nStart the browser with this profile to load the telemetry extension.")
	}

	if !res.OK() {
		return fmt.Errorf("profile sync finished with problems: %w", errors.Join(res.Errors...))
	}
	return nil
}

func created(ok bool) string {
	if ok {
		return " (created)"
	}
	return ""
}

// newSynchronizer builds the profile synchronizer for cfg.
func newSynchronizer(cfg *config.Config, logger *slog.Logger) *profile.Synchronizer {
	var locator profile.Locator = profile.FirefoxLocator()
	if cfg.ProfileRoot != "" {
		locator = profile.DirLocator{Root: cfg.ProfileRoot}
	}
	return profile.NewSynchronizer(
		profile.WithProfileName(cfg.ProfileName),
		profile.WithLocator(locator),
		profile.WithLogger(logger),
	)
}
