package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Duplicate scopes. Fixed at deploy time.
const (
	ScopeChannel = "channel"
	ScopeGuild   = "guild"
)

type Config struct {
	// Discord
	DiscordToken string `mapstructure:"DISCORD_TOKEN"`

	// Redis config
	RedisURL       string `mapstructure:"REDIS_URL"`
	RedisHost      string `mapstructure:"REDIS_HOST"`
	RedisPort      string `mapstructure:"REDIS_PORT"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int    `mapstructure:"REDIS_DB"`
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`

	// Duplicate detection
	Scope               string        `mapstructure:"SCOPE"`
	Retention           time.Duration `mapstructure:"RETENTION"`
	IgnoredLinkPatterns string        `mapstructure:"IGNORED_LINK_PATTERNS"`

	// Notice
	NoticeTimeout          time.Duration `mapstructure:"NOTICE_TIMEOUT"`
	NoticeFooter           string        `mapstructure:"NOTICE_FOOTER"`
	NoticeDisableOnTimeout bool          `mapstructure:"NOTICE_DISABLE_ON_TIMEOUT"`

	// Event pipeline
	QueueCapacity int `mapstructure:"QUEUE_CAPACITY"`
	NumWorkers    int `mapstructure:"NUM_WORKERS"`

	// Outbound requests to Discord
	OutboundRate  float64 `mapstructure:"OUTBOUND_RATE"`
	OutboundBurst int     `mapstructure:"OUTBOUND_BURST"`

	// Circuit breaker around the cache
	BreakerThreshold int           `mapstructure:"BREAKER_THRESHOLD"`
	BreakerReset     time.Duration `mapstructure:"BREAKER_RESET"`

	// Admin server, empty disables it
	ServerPort string `mapstructure:"SERVER_PORT"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// Loads configuration from defaults, the environment and, when path is
// not empty, a config file. Environment variables win over the file.
func LoadConfig(path string) (*Config, error) {
	return load(viper.New(), path)
}

// Same as LoadConfig but on a caller supplied viper instance, so that
// command line flags bound to it take part in the lookup.
func LoadConfigWith(v *viper.Viper, path string) (*Config, error) {
	return load(v, path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	v.SetDefault("DISCORD_TOKEN", "")

	// Redis defaults
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "dupebot")

	v.SetDefault("SCOPE", ScopeChannel)
	v.SetDefault("RETENTION", "168h")
	v.SetDefault("IGNORED_LINK_PATTERNS", "")

	v.SetDefault("NOTICE_TIMEOUT", "3m")
	v.SetDefault("NOTICE_FOOTER", "Duplicate link checker")
	v.SetDefault("NOTICE_DISABLE_ON_TIMEOUT", false)

	v.SetDefault("QUEUE_CAPACITY", 1000)
	v.SetDefault("NUM_WORKERS", 4)

	v.SetDefault("OUTBOUND_RATE", 5)
	v.SetDefault("OUTBOUND_BURST", 10)

	v.SetDefault("BREAKER_THRESHOLD", 5)
	v.SetDefault("BREAKER_RESET", "30s")

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Scope = strings.ToLower(strings.TrimSpace(config.Scope))
	return &config, nil
}

// Checks the settings the process cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DiscordToken) == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is required"))
	}
	if c.Scope != ScopeChannel && c.Scope != ScopeGuild {
		errs = append(errs, fmt.Errorf("SCOPE must be %q or %q, got %q", ScopeChannel, ScopeGuild, c.Scope))
	}
	if c.Retention < 0 {
		errs = append(errs, fmt.Errorf("RETENTION must not be negative, got %s", c.Retention))
	}
	if c.NoticeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("NOTICE_TIMEOUT must be positive, got %s", c.NoticeTimeout))
	}
	if c.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("QUEUE_CAPACITY must be positive, got %d", c.QueueCapacity))
	}
	if c.RedisURL == "" && c.RedisHost == "" {
		errs = append(errs, errors.New("REDIS_URL or REDIS_HOST is required"))
	}
	return errors.Join(errs...)
}

// Returns the ignored link patterns as a trimmed list without blanks.
func (c *Config) IgnoredPatterns() []string {
	var patterns []string
	for _, p := range strings.Split(c.IgnoredLinkPatterns, ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// Redis address in host:port form.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
