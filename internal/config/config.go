package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const appName = "rsidebar"

// DocsRsConfig points at docs.rs or a mirror with the same URL layout.
type DocsRsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DaemonConfig struct {
	ExpirationSeconds int `mapstructure:"expiration_seconds"`
}

// Expiration is how long the daemon stays up without requests.
func (d DaemonConfig) Expiration() time.Duration {
	return time.Duration(d.ExpirationSeconds) * time.Second
}

type SidebarConfig struct {
	SortEntries   bool `mapstructure:"sort_entries"`
	IncludeHidden bool `mapstructure:"include_hidden"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Ignore   []string      `mapstructure:"ignore"`
}

type Config struct {
	DocsRs  DocsRsConfig  `mapstructure:"docs_rs"`
	Daemon  DaemonConfig  `mapstructure:"daemon"`
	Sidebar SidebarConfig `mapstructure:"sidebar"`
	Watch   WatchConfig   `mapstructure:"watch"`
}

// cacheBase returns the base cache directory for rsidebar.
// Checks XDG_CACHE_HOME, then ~/.cache, then /tmp/rsidebar as fallback.
func cacheBase() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", appName)
	}
	return filepath.Join(os.TempDir(), appName)
}

// CacheDir returns the base cache directory.
func CacheDir() string {
	return cacheBase()
}

// DBPath returns the path to the DuckDB database file.
func DBPath() string {
	return filepath.Join(cacheBase(), "db.db")
}

// CASDir returns the path to the content-addressable storage directory.
func CASDir() string {
	return filepath.Join(cacheBase(), "cas")
}

// JSONCacheDir returns the path to the rustdoc JSON cache directory.
func JSONCacheDir() string {
	return filepath.Join(cacheBase(), "json")
}

// SourceCacheDir returns the path to the per-file Rust source extraction cache.
func SourceCacheDir() string {
	return filepath.Join(cacheBase(), "src")
}

// LogPath returns the path to the daemon's log file.
func LogPath() string {
	return filepath.Join(cacheBase(), "daemon.log")
}

// SocketPath returns the path to the daemon's unix socket.
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName, "daemon.sock")
	}
	return filepath.Join(fmt.Sprintf("/run/user/%d", os.Getuid()), appName, "daemon.sock")
}

func InitializeViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		viper.AddConfigPath(filepath.Join(xdg, appName))
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", appName))
	}

	viper.SetDefault("docs_rs.base_url", "https://docs.rs")
	viper.SetDefault("docs_rs.timeout", "60s")
	viper.SetDefault("daemon.expiration_seconds", 600)
	viper.SetDefault("sidebar.sort_entries", false)
	viper.SetDefault("sidebar.include_hidden", false)
	viper.SetDefault("watch.debounce", "250ms")
	viper.SetDefault("watch.ignore", []string{"target", ".git"})

	viper.SetEnvPrefix("RSIDEBAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// stringToDocsRsConfigHookFunc accepts `docs_rs = "https://mirror"` as
// shorthand for the base URL.
func stringToDocsRsConfigHookFunc() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(DocsRsConfig{}) {
			return data, nil
		}
		if f.Kind() == reflect.String {
			return DocsRsConfig{BaseURL: data.(string), Timeout: 60 * time.Second}, nil
		}
		return data, nil
	}
}

func Load() (*Config, error) {
	if err := InitializeViper(); err != nil {
		return nil, err
	}
	return decode(viper.AllSettings())
}

func decode(settings map[string]interface{}) (*Config, error) {
	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToDocsRsConfigHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.DocsRs.BaseURL == "" {
		config.DocsRs.BaseURL = "https://docs.rs"
	}
	config.DocsRs.BaseURL = strings.TrimSuffix(config.DocsRs.BaseURL, "/")
	if config.Daemon.ExpirationSeconds <= 0 {
		return nil, fmt.Errorf("daemon.expiration_seconds must be positive, got %d", config.Daemon.ExpirationSeconds)
	}

	return &config, nil
}
