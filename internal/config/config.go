package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultMPVPath      = "mpv"
	DefaultReadyTimeout = 10 * time.Second

	EnvConfigPath   = "MPVCTL_CONFIG"
	EnvMPVPath      = "MPVCTL_MPV_PATH"
	EnvArgs         = "MPVCTL_ARGS"
	EnvSocketDir    = "MPVCTL_SOCKET_DIR"
	EnvReadyTimeout = "MPVCTL_READY_TIMEOUT"
)

type Config struct {
	MPVPath      string
	Args         []string
	SocketDir    string
	ReadyTimeout time.Duration
}

// fileConfig is the TOML layout of a config file, eg:
//
//	mpv_path = "/usr/local/bin/mpv"
//	args = ["--fs", "--volume=50"]
//	socket_dir = "/run/user/1000"
//	ready_timeout = "5s"
type fileConfig struct {
	MPVPath      string   `toml:"mpv_path"`
	Args         []string `toml:"args"`
	SocketDir    string   `toml:"socket_dir"`
	ReadyTimeout string   `toml:"ready_timeout"`
}

func Default() Config {
	return Config{
		MPVPath:      DefaultMPVPath,
		SocketDir:    os.TempDir(),
		ReadyTimeout: DefaultReadyTimeout,
	}
}

// Load builds the configuration from defaults, the TOML file at path (or
// $MPVCTL_CONFIG when path is empty) and environment overrides, in that order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.MPVPath = envVar(EnvMPVPath, cfg.MPVPath)
	cfg.SocketDir = envVar(EnvSocketDir, cfg.SocketDir)
	cfg.ReadyTimeout = envVar(EnvReadyTimeout, cfg.ReadyTimeout)
	if args := envVar(EnvArgs, ""); args != "" {
		cfg.Args = strings.Fields(args)
	}

	// Validate configuration
	cfg.validate()

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if fc.MPVPath != "" {
		c.MPVPath = fc.MPVPath
	}
	if len(fc.Args) > 0 {
		c.Args = fc.Args
	}
	if fc.SocketDir != "" {
		c.SocketDir = fc.SocketDir
	}
	if fc.ReadyTimeout != "" {
		d, err := time.ParseDuration(fc.ReadyTimeout)
		if err != nil {
			return fmt.Errorf("parsing ready_timeout in %s: %w", path, err)
		}
		c.ReadyTimeout = d
	}
	return nil
}

func envVar[T ~string | ~int | ~int64](key string, def T) T {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	switch any(def).(type) {
	case string:
		return any(v).(T)
	case int:
		if i, err := strconv.Atoi(v); err == nil {
			return any(i).(T)
		}
	case time.Duration:
		if d, err := time.ParseDuration(v); err == nil {
			return any(d).(T)
		}
	}
	return def
}

// validate performs validation on configuration values
func (c *Config) validate() {
	if strings.TrimSpace(c.MPVPath) == "" {
		c.MPVPath = DefaultMPVPath
	}

	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = DefaultReadyTimeout
	}

	// Ensure socket directory exists
	if c.SocketDir == "" {
		c.SocketDir = os.TempDir()
	}
	if _, err := os.Stat(c.SocketDir); os.IsNotExist(err) {
		os.MkdirAll(c.SocketDir, 0o700)
	}
}
