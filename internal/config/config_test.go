// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestNewWithDefaults(t *testing.T) {
	cfg, err := New(newDefaultViper())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)

	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.DisableGPU)
	assert.Equal(t, 60*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Browser.QuietPeriod)
	assert.True(t, cfg.Browser.Stealth.Enabled)

	assert.Equal(t, "./cookies", cfg.Cookies.BaseDir)
	assert.Equal(t, "./artifacts", cfg.Artifacts.Dir)

	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)

	assert.Equal(t, "127.0.0.1:8089", cfg.Server.ListenAddr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUTOTELLER_COOKIES_BASE_DIR", "/var/lib/autoteller/cookies")
	t.Setenv("AUTOTELLER_LOGGER_LEVEL", "debug")

	cfg, err := New(newDefaultViper())
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/autoteller/cookies", cfg.Cookies.BaseDir)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"BadLoggerFormat", func(c *Config) { c.Logger.Format = "xml" }},
		{"EmptyCookieBase", func(c *Config) { c.Cookies.BaseDir = "" }},
		{"NegativeNavigationTimeout", func(c *Config) { c.Browser.NavigationTimeout = -time.Second }},
		{"ZeroRetryAttempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"NegativeBaseDelay", func(c *Config) { c.Retry.BaseDelay = -time.Millisecond }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := New(newDefaultViper())
			require.NoError(t, err)

			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
