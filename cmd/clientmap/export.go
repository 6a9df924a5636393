package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/nao1215/clientmap/internal/database"
	"github.com/nao1215/clientmap/internal/model"
	"github.com/nao1215/clientmap/internal/report"
)

// Export formats.
const (
	formatJSON     = "json"
	formatMarkdown = "markdown"
	formatText     = "text"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an archived session",
		Long: `Export writes the site tree and the reported objects of an archived
session. Without --session the most recent session is exported.

Examples:
  # Print the latest session as text
  clientmap export

  # Write a Markdown report of a specific session
  clientmap export --session 6f1c... --format markdown -o report.md

  # JSON for other tools, with type names in Japanese
  clientmap export --format json --lang ja

  # Save a text report and print it at the same time
  clientmap export -o report.txt --tee`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}

	cmd.Flags().StringP("session", "S", "", "Session ID (default: the latest session)")
	cmd.Flags().StringP("format", "f", formatText, "Output format: text, markdown or json")
	cmd.Flags().StringP("output", "o", "", "Write to the specified file path (creates directories if needed)")
	cmd.Flags().String("lang", "en", "Language of the type names in text and markdown output")
	cmd.Flags().Bool("show-empty", false, "Show empty sections in text output")
	cmd.Flags().Bool("tee", false, "With --output, also write the report to stdout")
	cmd.Flags().String("db-dir", "", "History database directory (default: the XDG data directory)")

	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	format, err := flags.GetString("format")
	if err != nil {
		return err
	}
	langFlag, err := flags.GetString("lang")
	if err != nil {
		return err
	}
	lang, err := language.Parse(langFlag)
	if err != nil {
		return fmt.Errorf("invalid language %q: %w", langFlag, err)
	}
	showEmpty, err := flags.GetBool("show-empty")
	if err != nil {
		return err
	}
	sessionID, err := flags.GetString("session")
	if err != nil {
		return err
	}
	outputPath, err := flags.GetString("output")
	if err != nil {
		return err
	}
	tee, err := flags.GetBool("tee")
	if err != nil {
		return err
	}
	if tee && outputPath == "" {
		return errors.New("--tee requires --output")
	}

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := openHistory(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	exp, err := loadExport(cmd.Context(), db, sessionID)
	if err != nil {
		return err
	}

	outputs := []io.Writer{cmd.OutOrStdout()}
	if outputPath != "" {
		f, err := createOutputFile(outputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if tee {
			outputs = append(outputs, f)
		} else {
			outputs = []io.Writer{f}
		}
	}

	writers := make([]report.Writer, 0, len(outputs))
	for _, out := range outputs {
		w, err := newExportWriter(out, format, lang, showEmpty)
		if err != nil {
			return err
		}
		writers = append(writers, w)
	}
	if _, err := report.NewMultiWriter(writers...).Write(exp); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	if outputPath != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Export saved to: %s\n", outputPath)
	}
	return nil
}

// loadExport reads a session from the history database. An empty id
// selects the latest session.
func loadExport(ctx context.Context, db *database.HistoryDB, sessionID string) (*report.Export, error) {
	var (
		rec *database.SessionRecord
		err error
	)
	if sessionID == "" {
		rec, err = db.LatestSession(ctx)
		if errors.Is(err, database.ErrSessionNotFound) {
			return nil, errors.New("no sessions found in the history database (use 'clientmap run' to record one)")
		}
	} else {
		rec, err = db.GetSession(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Tree(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	records, err := db.Objects(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	exp := &report.Export{
		SessionID:   rec.ID,
		SessionName: rec.Name,
		StartedAt:   rec.StartedAt,
		Nodes:       make([]report.Node, 0, len(rows)),
	}
	for _, r := range rows {
		exp.Nodes = append(exp.Nodes, report.Node{
			URL:        r.URL,
			Name:       r.Name,
			Depth:      r.Depth,
			Visited:    r.Visited,
			Storage:    r.Storage,
			Components: r.Components,
		})
	}

	objs := make([]model.ReportedObject, 0, len(records))
	for _, r := range records {
		objs = append(objs, r.Object)
	}
	exp.Objects = report.ObjectsFrom(objs)
	return exp, nil
}

// newExportWriter returns the report writer for format.
func newExportWriter(w io.Writer, format string, lang language.Tag, showEmpty bool) (report.Writer, error) {
	switch format {
	case formatJSON:
		return report.NewJSONWriter(w, report.WithPrettyPrint()), nil
	case formatMarkdown, "md":
		return report.NewMarkdownWriter(w, report.WithMarkdownLanguage(lang)), nil
	case formatText:
		return report.NewSimpleWriter(w,
			report.WithShowEmpty(showEmpty),
			report.WithLanguage(lang),
		), nil
	default:
		return nil, fmt.Errorf("unknown format %q (use text, markdown or json)", format)
	}
}

// createOutputFile creates path and its parent directories.
func createOutputFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
