package py4go

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Default addresses and ports.
const (
	DefaultAddress    = "127.0.0.1"
	DefaultPort       = 25333
	DefaultPythonPort = 25334
)

// Config holds the settings of a gateway server. It can be loaded from a
// YAML or TOML file; fields missing from the file keep their defaults.
type Config struct {
	// Address and Port are where the server listens.
	Address string `yaml:"address" toml:"address"`
	Port    int    `yaml:"port" toml:"port"`

	// PythonAddress and PythonPort locate the interpreter's callback server.
	PythonAddress string `yaml:"python_address" toml:"python_address"`
	PythonPort    int    `yaml:"python_port" toml:"python_port"`

	// AuthToken, when set, is required from the interpreter and presented to
	// it.
	AuthToken string `yaml:"auth_token" toml:"auth_token"`

	ConnectTimeout    time.Duration `yaml:"connect_timeout" toml:"connect_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	MinConnectionTime time.Duration `yaml:"min_connection_time" toml:"min_connection_time"`

	// CacheSize sizes each connection's resolution cache.
	CacheSize int `yaml:"cache_size" toml:"cache_size"`

	// MemoryManagement enables release notices for proxies; GCQueueSize
	// bounds the notices waiting to be sent.
	MemoryManagement bool `yaml:"memory_management" toml:"memory_management"`
	GCQueueSize      int  `yaml:"gc_queue_size" toml:"gc_queue_size"`

	// PinnedThread makes calls into the interpreter reuse the connection of
	// the call chain that made them.
	PinnedThread bool `yaml:"pinned_thread" toml:"pinned_thread"`

	// Python is the interpreter the launcher starts; found on PATH when
	// empty.
	Python string `yaml:"python" toml:"python"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Address:           DefaultAddress,
		Port:              DefaultPort,
		PythonAddress:     DefaultAddress,
		PythonPort:        DefaultPythonPort,
		MinConnectionTime: DefaultMinConnectionTime,
		CacheSize:         100,
		MemoryManagement:  true,
		GCQueueSize:       DefaultGCQueueSize,
	}
}

// LoadConfig reads a .yaml, .yml or .toml file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "cannot read config %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return cfg, errors.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return cfg, errors.Wrapf(err, "cannot parse config %s", path)
	}
	return cfg, nil
}

// YAML renders cfg as YAML.
func (c Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(out), nil
}

func (c Config) clientConfig() ClientConfig {
	return ClientConfig{
		Address:           c.PythonAddress,
		Port:              c.PythonPort,
		AuthToken:         c.AuthToken,
		ConnectTimeout:    c.ConnectTimeout,
		ReadTimeout:       c.ReadTimeout,
		MinConnectionTime: c.MinConnectionTime,
	}
}
