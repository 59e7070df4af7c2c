// Package config handles configuration loading, validation, and
// hot-reloading for clipd.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Watcher configuration for clipboard polling.
	Watcher WatcherConfig `toml:"watcher" json:"watcher" yaml:"watcher"`

	// History configuration for persistence.
	History HistoryConfig `toml:"history" json:"history" yaml:"history"`

	// Images configuration for the image pipeline.
	Images ImagesConfig `toml:"images" json:"images" yaml:"images"`

	// Paste configuration for delivery timing.
	Paste PasteConfig `toml:"paste" json:"paste" yaml:"paste"`

	// Encryption configuration for at-rest protection.
	Encryption EncryptionConfig `toml:"encryption" json:"encryption" yaml:"encryption"`

	// IPC configuration for the control socket.
	IPC IPCConfig `toml:"ipc" json:"ipc" yaml:"ipc"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// WatcherConfig holds clipboard polling configuration.
type WatcherConfig struct {
	// PollIntervalMs is the clipboard polling interval in milliseconds.
	PollIntervalMs int `toml:"poll_interval_ms" json:"poll_interval_ms" yaml:"poll_interval_ms"`
}

// HistoryConfig holds persistence configuration.
type HistoryConfig struct {
	// Path is the path to the history database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Cap is the maximum number of unpinned items retained.
	Cap int `toml:"cap" json:"cap" yaml:"cap"`
}

// ImagesConfig holds image pipeline configuration.
type ImagesConfig struct {
	// MaxBytes is the largest image payload accepted, in bytes.
	MaxBytes int `toml:"max_bytes" json:"max_bytes" yaml:"max_bytes"`

	// MaxEdge bounds the long edge of stored images, in pixels.
	MaxEdge int `toml:"max_edge" json:"max_edge" yaml:"max_edge"`

	// ThumbEdge bounds the long edge of list thumbnails, in pixels.
	ThumbEdge int `toml:"thumb_edge" json:"thumb_edge" yaml:"thumb_edge"`

	// CacheEntries bounds the rendition cache by entry count.
	CacheEntries int `toml:"cache_entries" json:"cache_entries" yaml:"cache_entries"`

	// CacheBytes bounds the rendition cache by aggregate size.
	CacheBytes int `toml:"cache_bytes" json:"cache_bytes" yaml:"cache_bytes"`

	// Workers is the number of concurrent decode workers.
	Workers int `toml:"workers" json:"workers" yaml:"workers"`
}

// PasteConfig holds delivery timing configuration.
type PasteConfig struct {
	// SettleDelayMs is the post-injection settle window in milliseconds.
	SettleDelayMs int `toml:"settle_delay_ms" json:"settle_delay_ms" yaml:"settle_delay_ms"`

	// TimeoutMs bounds one delivery attempt in milliseconds.
	TimeoutMs int `toml:"timeout_ms" json:"timeout_ms" yaml:"timeout_ms"`
}

// EncryptionConfig holds at-rest encryption configuration.
type EncryptionConfig struct {
	// Enabled activates payload encryption at startup. The key is
	// loaded lazily on the first enable, never at daemon start.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`
}

// IPCConfig holds control socket configuration.
type IPCConfig struct {
	// Enabled determines whether the control socket is served.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// SocketPath is the unix socket path.
	SocketPath string `toml:"socket_path" json:"socket_path" yaml:"socket_path"`

	// MaxConnections is the maximum number of concurrent clients.
	MaxConnections int `toml:"max_connections" json:"max_connections" yaml:"max_connections"`

	// TimeoutSec is the per-request timeout in seconds.
	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log destination: "stdout", "stderr", or "file".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output is "file".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Watcher: WatcherConfig{
			PollIntervalMs: 500,
		},
		History: HistoryConfig{
			Path: filepath.Join(dir, "history.db"),
			Cap:  500,
		},
		Images: ImagesConfig{
			MaxBytes:     50 * 1024 * 1024,
			MaxEdge:      800,
			ThumbEdge:    160,
			CacheEntries: 64,
			CacheBytes:   64 * 1024 * 1024,
			Workers:      2,
		},
		Paste: PasteConfig{
			SettleDelayMs: 300,
			TimeoutMs:     5000,
		},
		Encryption: EncryptionConfig{
			Enabled: false,
		},
		IPC: IPCConfig{
			Enabled:        true,
			SocketPath:     defaultSocketPath(),
			MaxConnections: 10,
			TimeoutSec:     30,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "file",
			FilePath: filepath.Join(dir, "clipd.log"),
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// Load reads configuration from path. A missing file yields defaults.
// TOML, JSON, and YAML are selected by extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadFromFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode config (unknown format): %w", err)
		}
	}

	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides. Variables
// are prefixed with CLIPD_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("CLIPD_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("CLIPD_HISTORY_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.History.Cap = n
		}
	}
	if v := os.Getenv("CLIPD_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Watcher.PollIntervalMs = n
		}
	}
	if v := os.Getenv("CLIPD_SOCKET_PATH"); v != "" {
		c.IPC.SocketPath = v
	}
	if v := os.Getenv("CLIPD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CLIPD_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// EnsureDirectories creates all directories the daemon writes under.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.History.Path),
		filepath.Dir(c.IPC.SocketPath),
	}
	if c.Logging.Output == "file" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := Config{
		Version:    c.Version,
		Watcher:    c.Watcher,
		History:    c.History,
		Images:     c.Images,
		Paste:      c.Paste,
		Encryption: c.Encryption,
		IPC:        c.IPC,
		Logging:    c.Logging,
	}
	return &clone
}

// SaveConfig writes the configuration to path in the format its
// extension names.
func SaveConfig(cfg *Config, path string) error {
	var data []byte
	var err error

	switch filepath.Ext(path) {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		var buf []byte
		buf, err = encodeTOML(cfg)
		data = buf
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// LoadOrCreate loads the configuration at path, writing a default file
// first when none exists.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		return cfg, true, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

func encodeTOML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
