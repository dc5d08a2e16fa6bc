package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"inferd/internal/httpapi"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "serve"}
	registerServeFlags(cmd.Flags())
	return cmd
}

func TestLoadServeConfigDefaults(t *testing.T) {
	t.Setenv("INFERD_ADDR", "")
	cfg, err := loadServeConfig(newServeCommand())
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.CtxSize != 2048 {
		t.Fatalf("unexpected defaults: addr=%q ctx=%d", cfg.Addr, cfg.CtxSize)
	}
}

func TestLoadServeConfigPrecedence(t *testing.T) {
	t.Setenv("INFERD_ADDR", "")
	cmd := newServeCommand()
	f := cmd.Flags()

	// File overlays defaults.
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("addr: \":9000\"\nctx_size: 1024\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := f.Set("config", path); err != nil {
		t.Fatalf("set config: %v", err)
	}
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		t.Fatalf("file overlay: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.CtxSize != 1024 {
		t.Fatalf("file values not applied: addr=%q ctx=%d", cfg.Addr, cfg.CtxSize)
	}

	// Environment overlays the file.
	t.Setenv("INFERD_ADDR", ":9100")
	cfg, err = loadServeConfig(cmd)
	if err != nil {
		t.Fatalf("env overlay: %v", err)
	}
	if cfg.Addr != ":9100" {
		t.Fatalf("env not applied: addr=%q", cfg.Addr)
	}

	// Explicit flags win over everything.
	if err := f.Set("addr", ":9200"); err != nil {
		t.Fatalf("set addr: %v", err)
	}
	if err := f.Set("ctx-size", "4096"); err != nil {
		t.Fatalf("set ctx-size: %v", err)
	}
	cfg, err = loadServeConfig(cmd)
	if err != nil {
		t.Fatalf("flag overlay: %v", err)
	}
	if cfg.Addr != ":9200" || cfg.CtxSize != 4096 {
		t.Fatalf("flags not applied: addr=%q ctx=%d", cfg.Addr, cfg.CtxSize)
	}
}

func TestLoadServeConfigRejectsBadEngine(t *testing.T) {
	cmd := newServeCommand()
	if err := cmd.Flags().Set("engine", "gpu4ever"); err != nil {
		t.Fatalf("set engine: %v", err)
	}
	if _, err := loadServeConfig(cmd); err == nil {
		t.Fatalf("expected validation error for bad engine mode")
	}
}

func TestAPILogLevel(t *testing.T) {
	cases := map[string]httpapi.LogLevel{
		"debug": httpapi.LevelDebug,
		"trace": httpapi.LevelDebug,
		"info":  httpapi.LevelInfo,
		"INFO":  httpapi.LevelInfo,
		"warn":  httpapi.LevelError,
		"error": httpapi.LevelError,
		"off":   httpapi.LevelOff,
		"":      httpapi.LevelOff,
	}
	for in, want := range cases {
		if got := apiLogLevel(in); got != want {
			t.Fatalf("apiLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
