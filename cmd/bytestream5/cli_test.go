package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version command: %v", err)
	}
	_ = out
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bytestream5.yaml")

	if _, err := runCLI(t, "config", "init", "--output", configPath); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("expected config file to exist: %v", err)
	}

	if _, err := runCLI(t, "config", "init", "--output", configPath); err == nil {
		t.Fatal("expected config init without --force to fail on an existing file")
	}

	if _, err := runCLI(t, "config", "init", "--output", configPath, "--force"); err != nil {
		t.Fatalf("config init --force: %v", err)
	}

	if _, err := runCLI(t, "config", "show", "--config", configPath); err != nil {
		t.Fatalf("config show: %v", err)
	}
}

func TestConfigSourceDescribesMissingFile(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	defer os.Chdir(cwd)
	os.Chdir(dir)

	src := configSource("")
	if !strings.Contains(src, "defaults") {
		t.Errorf("configSource(\"\") = %q, want it to mention defaults when nothing is found", src)
	}
}
