package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Channel  ChannelConfig  `mapstructure:"channel"`
	Identity IdentityConfig `mapstructure:"identity"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// APIConfig holds the request/response API settings
type APIConfig struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"-"`
	TimeoutStr string        `mapstructure:"timeout"`
}

// ChannelConfig holds push channel settings
type ChannelConfig struct {
	Path      string          `mapstructure:"path"`
	Reconnect ReconnectConfig `mapstructure:"reconnect"`
}

// ReconnectConfig controls the exponential reconnect schedule
type ReconnectConfig struct {
	InitialInterval    time.Duration `mapstructure:"-"`
	InitialIntervalStr string        `mapstructure:"initial_interval"`
	MaxInterval        time.Duration `mapstructure:"-"`
	MaxIntervalStr     string        `mapstructure:"max_interval"`
	Multiplier         float64       `mapstructure:"multiplier"`
}

// IdentityConfig holds the local user identity
type IdentityConfig struct {
	UserID string `mapstructure:"user_id"`
}

// StoreConfig holds chat state store settings
type StoreConfig struct {
	MergePolicy string `mapstructure:"merge_policy"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	LogFile  string `mapstructure:"log_file"`
	Preserve bool   `mapstructure:"preserve"`
	Level    string `mapstructure:"level"`
}

var cfg *Config

// Get returns the global config instance
func Get() *Config {
	if cfg == nil {
		panic("config not initialized")
	}
	return cfg
}

// Set replaces the global config instance
func Set(c *Config) {
	cfg = c
}

// Load loads configuration from file, .env and environment
func Load(cfgFile string) (*Config, error) {
	// A missing .env is the normal case
	_ = godotenv.Load()

	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome == "" {
			xdgConfigHome = filepath.Join(home, ".config")
		}

		viper.AddConfigPath("./.huddle")
		viper.AddConfigPath(filepath.Join(xdgConfigHome, "huddle"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("settings")
	}

	viper.SetEnvPrefix("HUDDLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnvironmentVariables()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := processDurations(c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	cfg = c
	return c, nil
}

// setDefaults sets all default configuration values
func setDefaults() {
	viper.SetDefault("api.url", "http://localhost:8000")
	viper.SetDefault("api.timeout", "30s")

	viper.SetDefault("channel.path", "/socket")
	viper.SetDefault("channel.reconnect.initial_interval", "500ms")
	viper.SetDefault("channel.reconnect.max_interval", "30s")
	viper.SetDefault("channel.reconnect.multiplier", 2.0)

	viper.SetDefault("identity.user_id", "user")

	viper.SetDefault("store.merge_policy", "first_write_wins")

	viper.SetDefault("logging.log_file", "./.huddle/huddle.log")
	viper.SetDefault("logging.preserve", false)
	viper.SetDefault("logging.level", "info")
}

// bindEnvironmentVariables binds the documented environment overrides
func bindEnvironmentVariables() {
	viper.BindEnv("api.url", "HUDDLE_API_URL")
	viper.BindEnv("api.timeout", "HUDDLE_API_TIMEOUT")
	viper.BindEnv("channel.path", "HUDDLE_CHANNEL_PATH")
	viper.BindEnv("identity.user_id", "HUDDLE_USER_ID")
	viper.BindEnv("store.merge_policy", "HUDDLE_MERGE_POLICY")
	viper.BindEnv("logging.level", "HUDDLE_LOG_LEVEL")
	viper.BindEnv("logging.log_file", "HUDDLE_LOG_FILE")
}

// processDurations converts string durations to time.Duration
func processDurations(c *Config) error {
	parse := func(name, value string, fallback time.Duration) (time.Duration, error) {
		if value == "" {
			return fallback, nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", name, err)
		}
		return d, nil
	}

	var err error
	if c.API.Timeout, err = parse("api.timeout", c.API.TimeoutStr, 30*time.Second); err != nil {
		return err
	}
	r := &c.Channel.Reconnect
	if r.InitialInterval, err = parse("channel.reconnect.initial_interval", r.InitialIntervalStr, 500*time.Millisecond); err != nil {
		return err
	}
	if r.MaxInterval, err = parse("channel.reconnect.max_interval", r.MaxIntervalStr, 30*time.Second); err != nil {
		return err
	}
	if r.Multiplier <= 1 {
		r.Multiplier = 2
	}
	return nil
}

// Validate checks values that would otherwise fail later at connect time
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid api.url %q", c.API.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid api.url %q: scheme must be http or https", c.API.URL)
	}
	if strings.TrimSpace(c.Identity.UserID) == "" {
		return fmt.Errorf("identity.user_id must not be empty")
	}
	switch c.Store.MergePolicy {
	case "", "first_write_wins", "latest_update_wins":
	default:
		return fmt.Errorf("invalid store.merge_policy %q", c.Store.MergePolicy)
	}
	return nil
}

// ChannelURL derives the websocket endpoint from the API base URL
func (c *Config) ChannelURL() (string, error) {
	u, err := url.Parse(c.API.URL)
	if err != nil {
		return "", fmt.Errorf("invalid api.url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	path := c.Channel.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}
