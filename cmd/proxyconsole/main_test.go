package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateAdminCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	body := "database:\n  dsn: \"file:" + filepath.Join(dir, "console.db") + "\"\njwt:\n  secret: \"s\"\n"
	if errWrite := os.WriteFile(configPath, []byte(body), 0o644); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{
		"--config", configPath,
		"create-admin",
		"--username", "ops",
		"--password", "pw",
		"--permission", "ADMINISTRATION_PARAMETERS_UI",
	})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), `created admin "ops"`) {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestCreateAdminCommandRequiresFlags(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"create-admin", "--username", "ops"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected error for missing --password")
	}
}
