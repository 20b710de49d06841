package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort       = 50022
	DefaultHost           = "0.0.0.0"
	DefaultLogLevel       = "info"
	DefaultLocation       = "Local"
	DefaultReaperInterval = 5 * time.Second
	DefaultStreamInterval = time.Second
	DefaultStorageTimeout = 5 * time.Second
	DefaultFilePath       = "uid_storage.json"
	DefaultValkeyKey      = "subtrack:uids"
	DefaultPostgresURLEnv = "SUBTRACK_DATABASE_URL"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendValkey   = "valkey"
	BackendPostgres = "postgres"
)

// Config holds the configuration parsed from the `server:` section of
// config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the HTTP API listens on (default 50022).
	HTTPPort int `yaml:"http_port"`

	// Host is the interface to bind (default 0.0.0.0).
	Host string `yaml:"host"`

	// LogLevel is one of: debug | info | warn | error. Hot-reloadable.
	LogLevel string `yaml:"log_level"`

	// Clock controls how durable timestamps are rendered.
	Clock ClockConfig `yaml:"clock"`

	// Reaper controls the background expiry sweep.
	Reaper ReaperConfig `yaml:"reaper"`

	// Stream controls the WebSocket countdown stream.
	Stream StreamConfig `yaml:"stream"`

	// Storage selects and configures the snapshot backend.
	Storage StorageConfig `yaml:"storage"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.HTTPPort)
}

// Level returns LogLevel as a slog.Level. Unparseable values yield Info;
// validate rejects them before this is reached.
func (s ServerConfig) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// ClockConfig holds the clock source settings.
type ClockConfig struct {
	// Location is an IANA zone name, "Local" or "UTC". Timestamps are written
	// without an offset, so changing it reinterprets stored records.
	Location string `yaml:"location"`
}

// Load returns the configured *time.Location.
func (c ClockConfig) Load() (*time.Location, error) {
	return time.LoadLocation(c.Location)
}

// ReaperConfig controls the background sweep.
type ReaperConfig struct {
	// Interval between sweeps. Default: 5s. Hot-reloadable.
	Interval time.Duration `yaml:"interval"`
}

// StreamConfig controls the countdown WebSocket.
type StreamConfig struct {
	// Interval between countdown pushes. Default: 1s.
	Interval time.Duration `yaml:"interval"`
}

// StorageConfig selects the snapshot backend.
type StorageConfig struct {
	// Backend is one of: file | memory | valkey | postgres.
	Backend string `yaml:"backend"`

	// Timeout bounds every snapshot load and save. Default: 5s.
	Timeout time.Duration `yaml:"timeout"`

	File     FileConfig     `yaml:"file"`
	Valkey   ValkeyConfig   `yaml:"valkey"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// FileConfig configures the local file backend.
type FileConfig struct {
	// Path of the snapshot file (default uid_storage.json).
	Path string `yaml:"path"`

	// Compression is one of: none | s2 | zstd.
	Compression string `yaml:"compression"`
}

// ValkeyConfig configures the Valkey/Redis backend.
type ValkeyConfig struct {
	Addr string `yaml:"addr"`

	// Key is the hash holding the record set (default subtrack:uids).
	Key string `yaml:"key"`

	// PasswordEnv is the name of the environment variable holding the password.
	PasswordEnv string `yaml:"password_env"`
}

// Password returns the Valkey password resolved from the environment.
func (v ValkeyConfig) Password() string {
	if v.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(v.PasswordEnv)
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	// URLEnv is the name of the environment variable holding the database URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the database URL resolved from the environment.
func (p PostgresConfig) URL() string {
	if p.URLEnv == "" {
		return ""
	}
	return os.Getenv(p.URLEnv)
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return defaults()
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Host:     DefaultHost,
			LogLevel: DefaultLogLevel,
			Clock:    ClockConfig{Location: DefaultLocation},
			Reaper:   ReaperConfig{Interval: DefaultReaperInterval},
			Stream:   StreamConfig{Interval: DefaultStreamInterval},
			Storage: StorageConfig{
				Backend:  BackendFile,
				Timeout:  DefaultStorageTimeout,
				File:     FileConfig{Path: DefaultFilePath, Compression: "none"},
				Valkey:   ValkeyConfig{Key: DefaultValkeyKey},
				Postgres: PostgresConfig{URLEnv: DefaultPostgresURLEnv},
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}
	if _, err := s.Clock.Load(); err != nil {
		return fmt.Errorf("server.clock.location %q: %w", s.Clock.Location, err)
	}
	if s.Reaper.Interval <= 0 {
		return fmt.Errorf("server.reaper.interval must be positive")
	}
	if s.Stream.Interval <= 0 {
		return fmt.Errorf("server.stream.interval must be positive")
	}
	if s.Storage.Timeout < 0 {
		return fmt.Errorf("server.storage.timeout must not be negative")
	}
	switch s.Storage.Backend {
	case BackendFile:
		if s.Storage.File.Path == "" {
			return fmt.Errorf("server.storage.file.path is required for the file backend")
		}
		switch s.Storage.File.Compression {
		case "", "none", "s2", "zstd":
		default:
			return fmt.Errorf("server.storage.file.compression %q unknown: want none|s2|zstd", s.Storage.File.Compression)
		}
	case BackendMemory:
	case BackendValkey:
		if s.Storage.Valkey.Key == "" {
			return fmt.Errorf("server.storage.valkey.key is required for the valkey backend")
		}
	case BackendPostgres:
		if s.Storage.Postgres.URLEnv == "" {
			return fmt.Errorf("server.storage.postgres.url_env is required for the postgres backend")
		}
	default:
		return fmt.Errorf("server.storage.backend %q unknown: want file|memory|valkey|postgres", s.Storage.Backend)
	}
	return nil
}
