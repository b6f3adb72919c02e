package py4go

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "gateway.yaml", `
port: 26000
auth_token: secret
read_timeout: 2s
pinned_thread: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Port != 26000 || cfg.AuthToken != "secret" || !cfg.PinnedThread {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if cfg.ReadTimeout != 2*time.Second {
		t.Errorf("Expected read timeout 2s, got %s", cfg.ReadTimeout)
	}
	// untouched fields keep their defaults
	if cfg.Address != DefaultAddress || cfg.PythonPort != DefaultPythonPort || !cfg.MemoryManagement {
		t.Errorf("Expected defaults to survive, got %+v", cfg)
	}
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeConfig(t, "gateway.toml", `
address = "0.0.0.0"
python_port = 26001
memory_management = false
cache_size = 5
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Address != "0.0.0.0" || cfg.PythonPort != 26001 || cfg.MemoryManagement || cfg.CacheSize != 5 {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Expected default port, got %d", cfg.Port)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "gateway.ini", "port=1")); err == nil {
		t.Error("Expected an error for an unknown format")
	}
	if _, err := LoadConfig(writeConfig(t, "gateway.yaml", "port: [")); err == nil {
		t.Error("Expected an error for bad YAML")
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestConfigYAML(t *testing.T) {
	out, err := DefaultConfig().YAML()
	if err != nil {
		t.Fatalf("YAML failed: %v", err)
	}
	for _, want := range []string{"port: 25333", "python_port: 25334", "memory_management: true"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}
}

func TestClientConfigFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AuthToken = "tok"
	cc := cfg.clientConfig()
	if cc.addr() != "127.0.0.1:25334" || cc.AuthToken != "tok" {
		t.Errorf("Unexpected client config %+v", cc)
	}
}

func TestParsePythonVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Python 3.11.4", "3.11.4"},
		{"Python 3.13.0rc1", "3.13.0"},
		{"Python 3.12", "3.12"},
		{"Python 3.9.1+\n", "3.9.1"},
	}
	for _, tt := range tests {
		v, err := ParsePythonVersion(tt.in)
		if err != nil {
			t.Errorf("%q: %v", tt.in, err)
			continue
		}
		if v.String() != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.in, tt.want, v)
		}
	}
	if _, err := ParsePythonVersion("Ruby 3.2"); err == nil {
		t.Error("Expected an error for a non-python version")
	}
}

func TestPythonVersionCompare(t *testing.T) {
	v, _ := ParsePythonVersion("Python 3.7.9")
	if v.Compare(MinPythonVersion) >= 0 {
		t.Errorf("Expected %s to be older than %s", v, MinPythonVersion)
	}
	v, _ = ParsePythonVersion("Python 3.8.0")
	if v.Compare(MinPythonVersion) < 0 {
		t.Errorf("Expected %s to be accepted", v)
	}
	v, _ = ParsePythonVersion("Python 3.10")
	if v.Compare(MinPythonVersion) <= 0 {
		t.Errorf("Expected %s to be newer than %s", v, MinPythonVersion)
	}
}
