package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/nao1215/clientmap/internal/clientmap"
	"github.com/nao1215/clientmap/internal/database"
	"github.com/nao1215/clientmap/internal/model"
)

// writeConfig writes a configuration file that keeps the history database
// and the browser profiles inside dir.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "clientmap.yaml")
	content := fmt.Sprintf("history:\n  dir: %q\nprofile:\n  root: %q\n",
		filepath.Join(dir, "history"), filepath.Join(dir, "profiles"))
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// seedHistory archives one session with a small tree and two objects.
func seedHistory(t *testing.T, dbDir, sessionID, name string) {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.CreateSession(ctx, sessionID, name); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	objs := []model.ReportedObject{
		model.NewReportedEvent("https://app.example/login", "submitted", "login-form", model.TypeSubmit),
		model.NewReportedNode("https://app.example/login", "FORM"),
	}
	for _, obj := range objs {
		if err := db.RecordObject(ctx, sessionID, obj); err != nil {
			t.Fatalf("RecordObject() error = %v", err)
		}
	}

	tree := clientmap.New()
	if _, err := tree.GetOrAddNode("https://app.example/login", true, false); err != nil {
		t.Fatalf("GetOrAddNode() error = %v", err)
	}
	if _, err := tree.GetOrAddNode("https://app.example/cart", false, true); err != nil {
		t.Fatalf("GetOrAddNode() error = %v", err)
	}
	if err := db.SaveTree(ctx, sessionID, tree); err != nil {
		t.Fatalf("SaveTree() error = %v", err)
	}
}
