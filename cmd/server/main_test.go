package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cli.db")
	content := `server:
  host: "127.0.0.1"
  port: 8181
  mode: "test"
database:
  driver: "sqlite"
  sqlite:
    path: "` + filepath.ToSlash(dbPath) + `"
log:
  level: "error"
  format: "text"
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path, dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckConfig(t *testing.T) {
	path, _ := writeConfig(t)
	out, err := execute(t, "check-config", "--config", path)
	if err != nil {
		t.Fatalf("check-config error = %v", err)
	}
	if !strings.Contains(out, "driver=sqlite") || !strings.Contains(out, "127.0.0.1:8181") {
		t.Fatalf("output = %q", out)
	}
}

func TestCheckConfig_MissingFile(t *testing.T) {
	_, err := execute(t, "check-config", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Fatalf("error = %v, want load failure", err)
	}
}

func TestMigrate(t *testing.T) {
	path, dbPath := writeConfig(t)
	out, err := execute(t, "migrate", "--config", path)
	if err != nil {
		t.Fatalf("migrate error = %v", err)
	}
	if !strings.Contains(out, "migration completed") {
		t.Fatalf("output = %q", out)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
}

func TestRejectsPositionalArgs(t *testing.T) {
	if _, err := execute(t, "serve", "extra"); err == nil {
		t.Fatal("expected error for unexpected argument")
	}
}
