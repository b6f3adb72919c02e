package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/richinsley/py4go"
	"github.com/spf13/pflag"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addServerFlags(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return flags
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(newFlags(t))
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg != py4go.DefaultConfig() {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte("port: 26000\npython_port: 26001\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := loadConfig(newFlags(t, "--config", path, "--port", "27000", "--pinned"))
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Port != 27000 {
		t.Errorf("Expected the flag to win, got port %d", cfg.Port)
	}
	if cfg.PythonPort != 26001 {
		t.Errorf("Expected the file value to survive, got python port %d", cfg.PythonPort)
	}
	if !cfg.PinnedThread {
		t.Error("Expected pinned mode")
	}
}

func TestLoadConfigGenerateToken(t *testing.T) {
	cfg, err := loadConfig(newFlags(t, "--generate-token"))
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if len(cfg.AuthToken) != 36 {
		t.Errorf("Expected a generated uuid token, got %q", cfg.AuthToken)
	}
}

func TestEntryPoint(t *testing.T) {
	ep := newEntryPoint()
	if ep.GetVersion() != py4go.Version {
		t.Errorf("Expected version %s, got %s", py4go.Version, ep.GetVersion())
	}
	if ep.Echo("x") != "x" {
		t.Error("Expected Echo to return its argument")
	}
	if ep.GetEnv("PY4GO_SURELY_UNSET_VARIABLE") != nil {
		t.Error("Expected nil for an unset variable")
	}
	if ep.NewList().Size() != 0 {
		t.Error("Expected an empty list")
	}
}
