// ABOUTME: Configuration loading and parsing for the engagemate shell
// ABOUTME: Supports YAML or TOML files with env expansion, env overrides and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the complete engagemate configuration.
// It is built once at startup and passed by reference to whatever needs it.
type Config struct {
	App        AppConfig        `yaml:"app" toml:"app"`
	Host       HostConfig       `yaml:"host" toml:"host"`
	Database   DatabaseConfig   `yaml:"database" toml:"database"`
	Migrations MigrationsConfig `yaml:"migrations" toml:"migrations"`
	Updater    UpdaterConfig    `yaml:"updater" toml:"updater"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics" toml:"metrics"`
}

// AppConfig holds application-wide paths
type AppConfig struct {
	DataDir string `yaml:"data_dir" toml:"data_dir"`
}

// HostConfig holds the IPC and health endpoint configuration
type HostConfig struct {
	IPCAddr   string `yaml:"ipc_addr" toml:"ipc_addr"`
	GRPCAddr  string `yaml:"grpc_addr" toml:"grpc_addr"`   // empty disables the gRPC health endpoint
	IPCSecret string `yaml:"ipc_secret" toml:"ipc_secret"` // HS256 secret; empty disables IPC auth
}

// DatabaseConfig holds storage capability configuration
type DatabaseConfig struct {
	Path    string `yaml:"path" toml:"path"`
	Driver  string `yaml:"driver" toml:"driver"` // sqlite (pure Go) or sqlite3 (cgo)
	Preload bool   `yaml:"preload" toml:"preload"`
}

// MigrationsConfig holds the migration tool invocation settings.
// The tool arguments are fixed; only where and how the tool is found is configurable.
type MigrationsConfig struct {
	Tool    string        `yaml:"tool" toml:"tool"`
	Dir     string        `yaml:"dir" toml:"dir"`
	Overlap string        `yaml:"overlap" toml:"overlap"` // reject or allow
	Timeout time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// UpdaterConfig holds self-update check configuration
type UpdaterConfig struct {
	Enabled      bool          `yaml:"enabled" toml:"enabled"`
	Endpoints    []string      `yaml:"endpoints" toml:"endpoints"`
	PublicKey    string        `yaml:"pubkey" toml:"pubkey"`
	InstallPath  string        `yaml:"install_path" toml:"install_path"`
	InitialDelay time.Duration `yaml:"-" toml:"-"`
	Interval     time.Duration `yaml:"-" toml:"-"`
	Timeout      time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	InitialDelayRaw string `yaml:"initial_delay" toml:"initial_delay"`
	IntervalRaw     string `yaml:"interval" toml:"interval"`
	TimeoutRaw      string `yaml:"timeout" toml:"timeout"`
}

// LoggingConfig holds logging output configuration.
// The minimum level is fixed by the logging capability.
type LoggingConfig struct {
	Format  string `yaml:"format" toml:"format"`
	NoColor bool   `yaml:"no_color" toml:"no_color"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// envOverrides are applied after the file is parsed.
type envOverrides struct {
	DataDir     string `env:"ENGAGEMATE_DATA_DIR"`
	DBPath      string `env:"ENGAGEMATE_DB_PATH"`
	MigrateTool string `env:"ENGAGEMATE_MIGRATE_TOOL"`
	IPCAddr     string `env:"ENGAGEMATE_IPC_ADDR"`
	IPCSecret   string `env:"ENGAGEMATE_IPC_SECRET"`
}

// ErrNoConfig is returned by Load when the config file does not exist.
var ErrNoConfig = errors.New("config file not found")

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		App: AppConfig{
			DataDir: DefaultDataDir(),
		},
		Host: HostConfig{
			IPCAddr: "127.0.0.1:1420",
		},
		Database: DatabaseConfig{
			Path:    "engagemate.db",
			Driver:  "sqlite",
			Preload: true,
		},
		Migrations: MigrationsConfig{
			Tool:    "npx",
			Overlap: "reject",
		},
		Updater: UpdaterConfig{
			InitialDelayRaw: "5s",
			IntervalRaw:     "24h",
			TimeoutRaw:      "30s",
		},
		Logging: LoggingConfig{
			Format: "text",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

// DefaultPath returns the path to the config file.
// Priority: ENGAGEMATE_CONFIG env var > XDG_CONFIG_HOME/engagemate/config.yaml > ~/.config/engagemate/config.yaml
func DefaultPath() string {
	if envPath := os.Getenv("ENGAGEMATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "engagemate", "config.yaml")
}

// DefaultDataDir returns the engagemate data directory.
// Priority: XDG_DATA_HOME/engagemate > ~/.local/share/engagemate
func DefaultDataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "engagemate")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded before parsing.
// Fields absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoConfig, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	expanded := expandEnvVars(string(data))

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, ErrNoConfig) {
		cfg = Default()
		if err := cfg.finish(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

// finish applies env overrides, parses durations, resolves paths and validates.
func (c *Config) finish() error {
	if err := applyEnvOverrides(c); err != nil {
		return fmt.Errorf("applying env overrides: %w", err)
	}

	if err := parseDurations(c); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}

	c.resolvePaths()

	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyEnvOverrides(c *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return err
	}

	if o.DataDir != "" {
		c.App.DataDir = o.DataDir
	}
	if o.DBPath != "" {
		c.Database.Path = o.DBPath
	}
	if o.MigrateTool != "" {
		c.Migrations.Tool = o.MigrateTool
	}
	if o.IPCAddr != "" {
		c.Host.IPCAddr = o.IPCAddr
	}
	if o.IPCSecret != "" {
		c.Host.IPCSecret = o.IPCSecret
	}
	return nil
}

// resolvePaths makes the database path absolute relative to the data directory.
func (c *Config) resolvePaths() {
	if c.Database.Path != "" && c.Database.Path != ":memory:" && !filepath.IsAbs(c.Database.Path) {
		c.Database.Path = filepath.Join(c.App.DataDir, c.Database.Path)
	}
}

// DatabaseURL returns the storage capability URL for the main database.
func (c *Config) DatabaseURL() string {
	return c.Database.Driver + ":" + c.Database.Path
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Host.IPCAddr == "" {
		return fmt.Errorf("host.ipc_addr is required")
	}

	if c.App.DataDir == "" {
		return fmt.Errorf("app.data_dir is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be sqlite or sqlite3, got %q", c.Database.Driver)
	}

	if c.Migrations.Tool == "" {
		return fmt.Errorf("migrations.tool is required")
	}

	switch c.Migrations.Overlap {
	case "reject", "allow":
	default:
		return fmt.Errorf("migrations.overlap must be reject or allow, got %q", c.Migrations.Overlap)
	}

	if c.Migrations.Timeout < 0 {
		return fmt.Errorf("migrations.timeout must not be negative")
	}

	if c.Updater.Enabled {
		if len(c.Updater.Endpoints) == 0 {
			return fmt.Errorf("updater.endpoints is required when the updater is enabled")
		}
		if c.Updater.PublicKey == "" {
			return fmt.Errorf("updater.pubkey is required when the updater is enabled")
		}
		if c.Updater.Interval <= 0 {
			return fmt.Errorf("updater.interval must be positive")
		}
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"migrations.timeout", cfg.Migrations.TimeoutRaw, &cfg.Migrations.Timeout},
		{"updater.initial_delay", cfg.Updater.InitialDelayRaw, &cfg.Updater.InitialDelay},
		{"updater.interval", cfg.Updater.IntervalRaw, &cfg.Updater.Interval},
		{"updater.timeout", cfg.Updater.TimeoutRaw, &cfg.Updater.Timeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
