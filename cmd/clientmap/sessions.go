package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/clientmap/internal/config"
	"github.com/nao1215/clientmap/internal/database"
)

// NewSessionsCmd creates the sessions command.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List the sessions in the history database",
		Long: `Sessions lists every archived session, newest first, with the number of
reported objects and tree nodes stored for it.

Examples:
  clientmap sessions
  clientmap sessions --db-dir ./history`,
		Args: cobra.NoArgs,
		RunE: runSessionsCmd,
	}

	cmd.Flags().String("db-dir", "", "History database directory (default: the XDG data directory)")

	return cmd
}

func runSessionsCmd(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := openHistory(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := db.ListSessions(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions found in the history database.")
		fmt.Fprintln(out, "\nUse 'clientmap run' to record a session.")
		return nil
	}

	fmt.Fprintf(out, "Sessions (%d):\n\n", len(sessions))
	fmt.Fprintf(out, "  %-36s  %-19s  %7s  %5s  %s\n", "ID", "Started", "Objects", "Nodes", "Name")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 80))
	for _, s := range sessions {
		fmt.Fprintf(out, "  %-36s  %-19s  %7d  %5d  %s\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.ObjectCount,
			s.NodeCount,
			s.Name,
		)
	}
	fmt.Fprintln(out, "\nUse 'clientmap export --session <id>' to export a session.")
	return nil
}

// openHistory opens the history database, honoring the --db-dir flag.
func openHistory(cmd *cobra.Command, cfg *config.Config) (*database.HistoryDB, error) {
	if dir, _ := cmd.Flags().GetString("db-dir"); dir != "" { //nolint:errcheck // flag is registered by the caller
		cfg.DBDir = dir
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cmd.Context() == nil {
		cmd.SetContext(context.Background())
	}
	return db, nil
}
