package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pingsantohq/dailyping/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestInitWritesExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "init", "--config", path)
	if err != nil {
		t.Fatalf("init returned error: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Fatalf("expected path in output, got %q", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file: %v", err)
	}

	if _, err := execute(t, "init", "--config", path); err == nil {
		t.Fatalf("expected second init to refuse overwriting")
	}
}

func TestRunRejectsPlaceholderWebhook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := config.WriteExample(path, false); err != nil {
		t.Fatalf("WriteExample: %v", err)
	}

	_, err := execute(t, "run", "--config", path)
	if !errors.Is(err, config.ErrWebhookPlaceholder) {
		t.Fatalf("expected placeholder error, got %v", err)
	}
}

func TestRunMissingConfig(t *testing.T) {
	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestRunRejectsArgs(t *testing.T) {
	if _, err := execute(t, "run", "extra"); err == nil {
		t.Fatalf("expected error for unexpected argument")
	}
}
