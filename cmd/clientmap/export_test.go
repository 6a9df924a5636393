package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/clientmap/internal/model"
	"github.com/nao1215/clientmap/internal/report"
)

func TestExportCmd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	seedHistory(t, filepath.Join(dir, "history"), "older", "first run")
	seedHistory(t, filepath.Join(dir, "history"), "newer", "second run")

	t.Run("json of a specific session", func(t *testing.T) {
		stdout, _, err := execute(t, "export", "--config", cfgPath, "--session", "older", "--format", "json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got report.Export
		if err := json.Unmarshal([]byte(stdout), &got); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, stdout)
		}
		if got.SessionID != "older" || got.SessionName != "first run" {
			t.Errorf("session = %q/%q, want older/first run", got.SessionID, got.SessionName)
		}

		wantNodes := []report.Node{
			{URL: "https://app.example", Name: "https://app.example", Depth: 1},
			{URL: "https://app.example/cart", Name: "cart", Depth: 2, Storage: true},
			{URL: "https://app.example/login", Name: "login", Depth: 2, Visited: true},
		}
		if diff := cmp.Diff(wantNodes, got.Nodes); diff != "" {
			t.Errorf("nodes mismatch (-want +got):\n%s", diff)
		}

		if len(got.Objects) != 2 {
			t.Fatalf("got %d objects, want 2", len(got.Objects))
		}
		if got.Objects[0].Type != model.TypeSubmit || got.Objects[1].NodeName != "FORM" {
			t.Errorf("objects = %+v", got.Objects)
		}
	})

	t.Run("latest session as text", func(t *testing.T) {
		stdout, _, err := execute(t, "export", "--config", cfgPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "second run") {
			t.Errorf("expected the latest session, got:\n%s", stdout)
		}
		if !strings.Contains(stdout, "SITE TREE") {
			t.Errorf("expected text output, got:\n%s", stdout)
		}
	})

	t.Run("markdown to file", func(t *testing.T) {
		outputPath := filepath.Join(t.TempDir(), "reports", "session.md")
		_, stderr, err := execute(t, "export", "--config", cfgPath, "--format", "markdown", "-o", outputPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stderr, outputPath) {
			t.Errorf("expected the output path on stderr, got %q", stderr)
		}
		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read export: %v", err)
		}
		if !strings.Contains(string(content), "# clientmap Session") {
			t.Errorf("expected a markdown report, got:\n%s", content)
		}
	})

	t.Run("tee writes the file and stdout", func(t *testing.T) {
		outputPath := filepath.Join(t.TempDir(), "session.txt")
		stdout, _, err := execute(t, "export", "--config", cfgPath, "-o", outputPath, "--tee")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read export: %v", err)
		}
		if !strings.Contains(stdout, "SITE TREE") {
			t.Errorf("expected the report on stdout, got:\n%s", stdout)
		}
		if diff := cmp.Diff(stdout, string(content)); diff != "" {
			t.Errorf("file and stdout differ (-stdout +file):\n%s", diff)
		}
	})

	t.Run("tee without output", func(t *testing.T) {
		_, _, err := execute(t, "export", "--config", cfgPath, "--tee")
		if err == nil || !strings.Contains(err.Error(), "--tee requires --output") {
			t.Errorf("expected --tee error, got %v", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		if _, _, err := execute(t, "export", "--config", cfgPath, "--session", "missing"); err == nil {
			t.Error("expected error for unknown session")
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := execute(t, "export", "--config", cfgPath, "--format", "pdf")
		if err == nil || !strings.Contains(err.Error(), "unknown format") {
			t.Errorf("expected unknown format error, got %v", err)
		}
	})

	t.Run("invalid language", func(t *testing.T) {
		if _, _, err := execute(t, "export", "--config", cfgPath, "--lang", "!!"); err == nil {
			t.Error("expected error for invalid language")
		}
	})
}

func TestExportCmdEmptyHistory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, _, err := execute(t, "export", "--config", writeConfig(t, dir))
	if err == nil || !strings.Contains(err.Error(), "no sessions") {
		t.Errorf("expected no sessions error, got %v", err)
	}
}
