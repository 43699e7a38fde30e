// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. Launch configuration
// (executable path, headless default, extra flags) is an explicit value
// threaded into the session factory rather than process-wide ambient state.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Cookies   CookiesConfig   `mapstructure:"cookies" yaml:"cookies"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Retry     RetryConfig     `mapstructure:"retry" yaml:"retry"`
}

// LoggerConfig controls the zap logger construction.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`

	// File output with rotation (lumberjack). Empty LogFile disables it.
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls how the Chrome process is launched for each
// invocation.
type BrowserConfig struct {
	// ExecPath points at the browser binary. Empty lets chromedp discover
	// an installed Chrome.
	ExecPath string `mapstructure:"exec_path" yaml:"exec_path"`
	// Headless is the default; individual commands may override it.
	Headless   bool     `mapstructure:"headless" yaml:"headless"`
	DisableGPU bool     `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	Args       []string `mapstructure:"args" yaml:"args"`

	// NavigationTimeout bounds a single page load.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// QuietPeriod is the settle wait used for waitUntil=networkidle.
	QuietPeriod time.Duration `mapstructure:"quiet_period" yaml:"quiet_period"`

	Stealth StealthConfig `mapstructure:"stealth" yaml:"stealth"`
}

// StealthConfig controls the anti-detection persona applied at session start.
type StealthConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	Timezone  string `mapstructure:"timezone" yaml:"timezone"`
	Locale    string `mapstructure:"locale" yaml:"locale"`
}

// CookiesConfig confines cookie persistence to a base directory. Every
// cookie path supplied by a caller must resolve inside BaseDir.
type CookiesConfig struct {
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// ArtifactsConfig controls where failure captures are written.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// ServerConfig controls the HTTP command transport.
type ServerConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	// RatePerSecond caps command invocations; 0 disables limiting.
	RatePerSecond float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	RateBurst     int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// DatabaseConfig enables the optional invocation audit log when URL is set.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// RetryConfig carries the defaults for commands that opt into retry.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
}

// SetDefaults registers every configuration default on the viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "autoteller")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.navigation_timeout", 60*time.Second)
	v.SetDefault("browser.quiet_period", 1500*time.Millisecond)
	v.SetDefault("browser.stealth.enabled", true)
	v.SetDefault("browser.stealth.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("browser.stealth.timezone", "America/New_York")
	v.SetDefault("browser.stealth.locale", "en-US")

	v.SetDefault("cookies.base_dir", "./cookies")
	v.SetDefault("artifacts.dir", "./artifacts")

	v.SetDefault("server.listen_addr", "127.0.0.1:8089")
	v.SetDefault("server.request_timeout", 120*time.Second)
	v.SetDefault("server.rate_per_second", 0)
	v.SetDefault("server.rate_burst", 1)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", time.Second)
}

// BindEnv wires AUTOTELLER_* environment variables into the viper instance,
// so e.g. AUTOTELLER_COOKIES_BASE_DIR overrides cookies.base_dir.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("AUTOTELLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// New builds and validates a Config from the viper instance.
func New(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would fail at first use.
func (c *Config) Validate() error {
	switch c.Logger.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logger.format must be \"console\" or \"json\", got %q", c.Logger.Format)
	}
	if c.Cookies.BaseDir == "" {
		return fmt.Errorf("cookies.base_dir must not be empty")
	}
	if c.Browser.NavigationTimeout < 0 {
		return fmt.Errorf("browser.navigation_timeout must be non-negative")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelay < 0 {
		return fmt.Errorf("retry.base_delay must be non-negative")
	}
	return nil
}
