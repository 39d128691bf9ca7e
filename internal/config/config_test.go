package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/config"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_FileEnvAndDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ENV_FILE", writeFile(t, dir, "test.env", "REDIS_ADDR=cache:6379\n"))
	t.Setenv("PORT", "9090")
	t.Setenv("STATIC_TOKENS", "a, b")

	path := writeFile(t, dir, "config.yml", `
service:
  port: 8081
  timezone: Europe/Madrid
database:
  url: postgres://localhost/dispatch
logging:
  level: debug
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Service.Port)
	assert.Equal(t, "Europe/Madrid", cfg.Service.Timezone)
	assert.Equal(t, "postgres://localhost/dispatch", cfg.Database.URL)
	assert.Equal(t, "cache:6379", cfg.Redis.Address)
	assert.Equal(t, []string{"a", "b"}, cfg.Auth.StaticTokens)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "dispatch:notifications", cfg.Redis.Channel)
	assert.Equal(t, 10*time.Second, cfg.Service.ShutdownTimeout)
	assert.Equal(t, ":9090", cfg.Addr())
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "Europe/Madrid", cfg.Location().String())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ENV_FILE", "")

	cfg, err := config.Load(filepath.Join(dir, "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, "UTC", cfg.Service.Timezone)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		c := &config.Config{Database: config.DatabaseConfig{URL: "postgres://x"}}
		c.SetDefaults()
		return c
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing database url", func(c *config.Config) { c.Database.URL = "" }},
		{"bad port", func(c *config.Config) { c.Service.Port = 70000 }},
		{"unknown timezone", func(c *config.Config) { c.Service.Timezone = "Mars/Olympus" }},
		{"unknown level", func(c *config.Config) { c.Logging.Level = "loud" }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, config.DefaultPath, config.Path())
	t.Setenv("CONFIG_PATH", "/etc/dispatch.yml")
	assert.Equal(t, "/etc/dispatch.yml", config.Path())
}
