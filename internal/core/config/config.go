package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/guiyumin/vresolve/internal/core/logging"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "vresolve"
)

// ConfigDir returns the standard config directory for vresolve.
// Windows: %APPDATA%\vresolve\
// macOS/Linux: ~/.config/vresolve/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file.
// e.g., ~/.config/vresolve/config.yml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

type Config struct {
	// Server configuration for `vresolve serve`
	Server ServerConfig `yaml:"server,omitempty"`

	// Resolver tunes the orchestration engine
	Resolver ResolverConfig `yaml:"resolver,omitempty"`

	// Browser configures the shared headless browser
	Browser BrowserConfig `yaml:"browser,omitempty"`

	// HTTP configures the outbound HTTP client used by strategies
	HTTP HTTPConfig `yaml:"http,omitempty"`

	// CookiesFile is a Netscape cookies.txt with platform session cookies
	CookiesFile string `yaml:"cookies_file,omitempty"`

	// YtDlpPath is the yt-dlp executable (default: looked up on PATH)
	YtDlpPath string `yaml:"ytdlp_path,omitempty"`

	Log logging.Options `yaml:"log,omitempty"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	// Port is the HTTP listen port (default: 8000)
	Port int `yaml:"port,omitempty"`

	// APIKey for authentication (optional, if set /api requests must include X-API-Key header)
	APIKey string `yaml:"api_key,omitempty"`

	// AllowOrigins lists CORS origins; empty means any origin
	AllowOrigins []string `yaml:"allow_origins,omitempty"`
}

// ResolverConfig holds orchestration settings
type ResolverConfig struct {
	// RequestTimeout is the whole-request ceiling (default: sum of group budgets + 10s)
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`

	// Workers bounds concurrently running strategy attempts (default: 16)
	Workers int `yaml:"workers,omitempty"`

	// ShareTimeout bounds share-link redirect resolution (default: 15s)
	ShareTimeout time.Duration `yaml:"share_timeout,omitempty"`
}

// BrowserConfig holds headless browser settings
type BrowserConfig struct {
	// Headless is true unless explicitly disabled
	Headless *bool `yaml:"headless,omitempty"`

	// Bin is the browser executable (ROD_BROWSER env var is also honoured)
	Bin string `yaml:"bin,omitempty"`

	// UserDataDir is the browser profile directory
	UserDataDir string `yaml:"user_data_dir,omitempty"`
}

// IsHeadless returns the effective headless setting
func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// HTTPConfig holds outbound HTTP client settings
type HTTPConfig struct {
	// Timeout per request (default: 30s)
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Retries for idempotent GET requests (default: 2)
	Retries int `yaml:"retries,omitempty"`

	// TLSFingerprint selects TLS ClientHello emulation ("chrome" or "" for Go default)
	TLSFingerprint string `yaml:"tls_fingerprint,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8000,
		},
		Resolver: ResolverConfig{
			Workers:      16,
			ShareTimeout: 15 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout: 30 * time.Second,
			Retries: 2,
		},
		CookiesFile: "cookies.txt",
		Log: logging.Options{
			Level: "info",
		},
	}
}

// applyDefaults fills zero values left by a partial config file
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Server.Port <= 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Resolver.Workers <= 0 {
		c.Resolver.Workers = def.Resolver.Workers
	}
	if c.Resolver.ShareTimeout <= 0 {
		c.Resolver.ShareTimeout = def.Resolver.ShareTimeout
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = def.HTTP.Timeout
	}
	if c.HTTP.Retries < 0 {
		c.HTTP.Retries = 0
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// Exists checks if config file exists
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config from ~/.config/vresolve/config.yml
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config from an explicit path
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	cfg.CookiesFile = expandPath(cfg.CookiesFile)
	cfg.Browser.UserDataDir = expandPath(cfg.Browser.UserDataDir)
	cfg.Log.File = expandPath(cfg.Log.File)

	return cfg, nil
}

// expandPath expands the tilde (~) in the path to the user's home directory.
// It handles both forward and backward slashes.
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		// Only expand if it's explicitly "~", "~/", or "~\"
		if len(path) == 1 || path[1] == '/' || path[1] == '\\' {
			home, err := os.UserHomeDir()
			if err == nil {
				subPath := path[1:]
				if len(subPath) > 0 && (subPath[0] == '/' || subPath[0] == '\\') {
					subPath = subPath[1:]
				}
				return filepath.Join(home, subPath)
			}
		}
	}

	return path
}

// Save writes the config to ~/.config/vresolve/config.yml
func Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# vresolve configuration file\n# Run 'vresolve init' to regenerate with defaults\n\n"
	content := header + string(data)

	return os.WriteFile(configPath, []byte(content), 0644)
}

// SavePath returns the path where config will be saved
func SavePath() string {
	if path, err := ConfigPath(); err == nil {
		return path
	}
	return ConfigFileName
}

// Init creates a new config.yml with default values
func Init() error {
	if Exists() {
		path, _ := ConfigPath()
		return fmt.Errorf("%s already exists", path)
	}
	return Save(DefaultConfig())
}

// LoadOrDefault loads config if it exists, otherwise returns defaults
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = DefaultConfig()
	}
	return cfg
}
