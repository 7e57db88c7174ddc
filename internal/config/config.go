package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete drawbridge configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Vault    VaultConfig    `mapstructure:"vault" yaml:"vault"`
	Diagrams DiagramsConfig `mapstructure:"diagrams" yaml:"diagrams"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig controls the local asset server that hosts the editor bundle
type ServerConfig struct {
	// Port is the loopback port the asset server binds (default: 1717).
	// It is read once when the server starts; changing it needs a restart.
	Port int `mapstructure:"port" yaml:"port"`
	// RootDir is the directory holding the editor bundle (index.html and assets).
	// If empty, defaults to "webapp" inside the config directory.
	// Supports ~ for home directory expansion.
	RootDir string `mapstructure:"root_dir" yaml:"root_dir"`
	// Dark opens the editor with the dark UI
	Dark bool `mapstructure:"dark" yaml:"dark"`
}

// VaultConfig controls which directory tree documents and diagrams live in
type VaultConfig struct {
	// Root is the vault root; all diagram and document paths are relative to it (default: ".")
	Root string `mapstructure:"root" yaml:"root"`
}

// DiagramsConfig controls how new diagrams are named, placed and embedded
type DiagramsConfig struct {
	// Folder is the vault-relative folder new diagrams are created in (default: "drawio")
	Folder string `mapstructure:"folder" yaml:"folder"`
	// DefaultFormat is the container for new diagrams: "svg" or "xml" (default: "svg")
	DefaultFormat string `mapstructure:"default_format" yaml:"default_format"`
	// UseMarkdownLinks inserts ![size](path) instead of ![[path]] (default: false)
	UseMarkdownLinks bool `mapstructure:"use_markdown_links" yaml:"use_markdown_links"`
	// DefaultSize is appended to inserted references, e.g. "400" or "400x300"
	DefaultSize string `mapstructure:"default_size" yaml:"default_size"`
	// CreateOnOpen writes an empty diagram as soon as a new session opens,
	// instead of on its first save (default: false)
	CreateOnOpen bool `mapstructure:"create_on_open" yaml:"create_on_open"`
}

// SessionConfig controls editing session behavior
type SessionConfig struct {
	// ExportTimeout is how long a save waits for the editor's export reply
	// before another save is accepted (default: 5s)
	ExportTimeout time.Duration `mapstructure:"export_timeout" yaml:"export_timeout"`
	// RateLimit is the sustained number of inbound messages per second per session (default: 50)
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	// RateBurst is the inbound message burst allowed per session (default: 20)
	RateBurst int `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// WatchConfig controls the diagram folder watcher
type WatchConfig struct {
	// Enabled starts the watcher alongside the server (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Patterns are glob patterns matched against file base names
	Patterns []string `mapstructure:"patterns" yaml:"patterns"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging to a file is enabled (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    1717,
			RootDir: "", // Empty means use default: <config dir>/webapp
			Dark:    false,
		},
		Vault: VaultConfig{
			Root: ".",
		},
		Diagrams: DiagramsConfig{
			Folder:           "drawio",
			DefaultFormat:    FormatSVG,
			UseMarkdownLinks: false,
			DefaultSize:      "",
			CreateOnOpen:     false,
		},
		Session: SessionConfig{
			ExportTimeout: 5 * time.Second,
			RateLimit:     50,
			RateBurst:     20,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Patterns: DefaultWatchPatterns(),
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Diagram container formats accepted by diagrams.default_format
const (
	FormatSVG = "svg"
	FormatXML = "xml"
)

// DefaultWatchPatterns returns the file patterns of every diagram container
func DefaultWatchPatterns() []string {
	return []string{"*.drawio.svg", "*.drawio", "*.drawid"}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Server defaults
	viper.SetDefault("server.port", defaults.Server.Port)
	viper.SetDefault("server.root_dir", defaults.Server.RootDir)
	viper.SetDefault("server.dark", defaults.Server.Dark)

	// Vault defaults
	viper.SetDefault("vault.root", defaults.Vault.Root)

	// Diagram defaults
	viper.SetDefault("diagrams.folder", defaults.Diagrams.Folder)
	viper.SetDefault("diagrams.default_format", defaults.Diagrams.DefaultFormat)
	viper.SetDefault("diagrams.use_markdown_links", defaults.Diagrams.UseMarkdownLinks)
	viper.SetDefault("diagrams.default_size", defaults.Diagrams.DefaultSize)
	viper.SetDefault("diagrams.create_on_open", defaults.Diagrams.CreateOnOpen)

	// Session defaults
	viper.SetDefault("session.export_timeout", defaults.Session.ExportTimeout)
	viper.SetDefault("session.rate_limit", defaults.Session.RateLimit)
	viper.SetDefault("session.rate_burst", defaults.Session.RateBurst)

	// Watch defaults
	viper.SetDefault("watch.enabled", defaults.Watch.Enabled)
	viper.SetDefault("watch.patterns", defaults.Watch.Patterns)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "drawbridge")
	}
	// Fall back to ~/.config/drawbridge
	home, err := os.UserHomeDir()
	if err != nil {
		return ".drawbridge"
	}
	return filepath.Join(home, ".config", "drawbridge")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LogDir returns the directory log files are written to
func LogDir() string {
	return filepath.Join(ConfigDir(), "logs")
}

// ResolveRootDir returns the resolved editor bundle directory.
// If RootDir is empty, it returns "webapp" inside the config directory.
// If RootDir starts with ~, it expands to the user's home directory.
// If RootDir is relative, it's resolved relative to baseDir.
func (s *ServerConfig) ResolveRootDir(baseDir string) string {
	if s.RootDir == "" {
		return filepath.Join(ConfigDir(), "webapp")
	}
	return resolvePath(s.RootDir, baseDir)
}

// ResolveRoot returns the absolute vault root, resolving a relative root against baseDir.
func (v *VaultConfig) ResolveRoot(baseDir string) string {
	if v.Root == "" {
		return baseDir
	}
	return resolvePath(v.Root, baseDir)
}

func resolvePath(path, baseDir string) string {
	// Expand ~ to home directory
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return filepath.Clean(path)
}

// ValidFormats returns the list of valid diagrams.default_format values
func ValidFormats() []string {
	return []string{FormatSVG, FormatXML}
}

// IsValidFormat checks if the given default format is valid
func IsValidFormat(format string) bool {
	for _, valid := range ValidFormats() {
		if format == valid {
			return true
		}
	}
	return false
}
