package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("providers:\n  base_url: http://localhost:9100\n"))
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 60*time.Minute, c.Engine.MaxAge)
	assert.True(t, c.Engine.CoalesceMisses)
	assert.Equal(t, 10, c.Engine.BatchLimit)
	assert.Equal(t, "sqlite", c.Store.Backend)
	assert.Equal(t, int64(30), c.RateLimit.PerMinute)
	assert.Equal(t, int64(200), c.RateLimit.PerHour)
	assert.Equal(t, "info", c.Logger.Level)
	assert.Equal(t, "/valuation/{ticker}", c.Providers.Paths.Valuation)
}

func TestParse_Overrides(t *testing.T) {
	yml := `
environment: production
engine:
  max_age: 15m
  coalesce_misses: false
store:
  backend: memory
log:
  backend: clickhouse
providers:
  base_url: http://providers
`
	c, err := Parse([]byte(yml))
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 15*time.Minute, c.Engine.MaxAge)
	assert.False(t, c.Engine.CoalesceMisses)
	assert.Equal(t, "memory", c.Store.Backend)
	assert.Equal(t, "clickhouse", c.Log.Backend)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing provider url", func(c *Config) { c.Providers.BaseURL = "" }},
		{"unknown store", func(c *Config) { c.Store.Backend = "postgres" }},
		{"sqlite log without sqlite store", func(c *Config) { c.Store.Backend = "memory"; c.Log.Backend = "sqlite" }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }},
		{"error logs without kafka", func(c *Config) { c.Kafka.ErrorLogs.Enabled = true }},
		{"unknown ratelimit backend", func(c *Config) { c.RateLimit.Backend = "etcd" }},
		{"zero max age", func(c *Config) { c.Engine.MaxAge = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			c.Providers.BaseURL = "http://providers"
			require.NoError(t, c.Validate())
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	env := map[string]string{
		"MARKETPULSE_ENV":   "staging",
		"STORE_BACKEND":     "memory",
		"LOG_BACKEND":       "memory",
		"KAFKA_BROKERS":     "k1:9092,k2:9092",
		"PROVIDER_BASE_URL": "http://p",
		"PROVIDER_API_KEY":  "secret",
		"REDIS_ADDR":        "redis:6379",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, "memory", c.Store.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, "secret", c.Providers.APIKey)
	assert.Equal(t, "redis:6379", c.Redis.Addr)
	assert.NoError(t, c.Validate())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers:\n  base_url: http://p\n"), 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://p", c.Providers.BaseURL)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
