package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxreader/internal/auth"
)

// isolate points the user config directory at an empty temp dir and
// disables .env loading.
func isolate(t *testing.T) *Loader {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, key := range []string{"OUTLOOK_EMAIL", "OUTLOOK_AUTH_EMAIL", "OUTLOOK_AUTH_FLOW", "OUTLOOK_GRAPH_REQUEST_TIMEOUT", "OUTLOOK_AUTH_TENANT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	l := NewLoader()
	l.SetDotEnv("")
	return l
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := isolate(t).Load()
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want, *cfg)
	assert.Equal(t, auth.FlowDeviceCode, cfg.Auth.Flow)
	assert.Equal(t, 10*time.Second, cfg.Graph.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.Graph.ProbeTimeout)
	assert.Equal(t, 120*time.Second, cfg.Auth.CallbackTimeout)
	assert.Equal(t, "localhost:5000", cfg.Web.Addr)
}

func TestLoad_ConfigFile(t *testing.T) {
	l := isolate(t)
	l.SetConfigFile(writeFile(t, "inboxreader.yaml", `
auth:
  flow: auth-code
  tenant: contoso.onmicrosoft.com
  callback_timeout: 30s
graph:
  request_timeout: 3s
web:
  addr: 127.0.0.1:8080
`))

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, auth.FlowAuthCode, cfg.Auth.Flow)
	assert.Equal(t, "contoso.onmicrosoft.com", cfg.Auth.Tenant)
	assert.Equal(t, 30*time.Second, cfg.Auth.CallbackTimeout)
	assert.Equal(t, 3*time.Second, cfg.Graph.RequestTimeout)
	assert.Equal(t, "127.0.0.1:8080", cfg.Web.Addr)
	assert.Equal(t, auth.DefaultClientID, cfg.Auth.ClientID, "unset keys keep defaults")
	assert.NotEmpty(t, l.ConfigFileUsed())
}

func TestLoad_UserConfigDir(t *testing.T) {
	l := isolate(t)
	dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), appName)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte("auth:\n  flow: interactive\n"), 0o600))

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, auth.FlowInteractive, cfg.Auth.Flow)
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	l := isolate(t)
	l.SetConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := l.Load()
	assert.ErrorContains(t, err, "reading config file")
}

func TestLoad_Environment(t *testing.T) {
	l := isolate(t)
	l.SetConfigFile(writeFile(t, "c.yaml", "auth:\n  flow: auth-code\n"))
	t.Setenv("OUTLOOK_AUTH_FLOW", "interactive")
	t.Setenv("OUTLOOK_GRAPH_REQUEST_TIMEOUT", "7s")
	t.Setenv("OUTLOOK_EMAIL", "jane@contoso.com")

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, auth.FlowInteractive, cfg.Auth.Flow, "environment overrides the file")
	assert.Equal(t, 7*time.Second, cfg.Graph.RequestTimeout)
	assert.Equal(t, "jane@contoso.com", cfg.Auth.Email)
}

func TestLoad_DotEnv(t *testing.T) {
	l := isolate(t)
	l.SetDotEnv(writeFile(t, ".env", "OUTLOOK_EMAIL=dotenv@contoso.com\nOUTLOOK_AUTH_TENANT=organizations\n"))
	t.Cleanup(func() {
		os.Unsetenv("OUTLOOK_EMAIL")
		os.Unsetenv("OUTLOOK_AUTH_TENANT")
	})

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "dotenv@contoso.com", cfg.Auth.Email)
	assert.Equal(t, "organizations", cfg.Auth.Tenant)
}

func TestLoad_MissingDotEnvIgnored(t *testing.T) {
	l := isolate(t)
	l.SetDotEnv(filepath.Join(t.TempDir(), ".env"))

	_, err := l.Load()
	assert.NoError(t, err)
}

func TestBindFlags(t *testing.T) {
	l := isolate(t)
	t.Setenv("OUTLOOK_AUTH_FLOW", "interactive")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String(FlagFlow, "", "")
	fs.String(FlagEmail, "", "")
	fs.Bool(FlagDebug, false, "")
	fs.String(FlagLogFormat, "", "")
	fs.String(FlagConfig, "", "")
	require.NoError(t, fs.Parse([]string{"--flow", "auth-code", "--debug", "--log-format", "json"}))
	require.NoError(t, l.BindFlags(fs))

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, auth.FlowAuthCode, cfg.Auth.Flow, "flags override the environment")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Auth.Email, "unset flags do not override defaults")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown flow", func(c *Config) { c.Auth.Flow = "password" }, "auth.flow"},
		{"empty client id", func(c *Config) { c.Auth.ClientID = "" }, "auth.client_id"},
		{"relative graph url", func(c *Config) { c.Graph.URL = "graph.microsoft.com" }, "graph.url"},
		{"bad authority", func(c *Config) { c.Auth.AuthorityHost = "ftp://login" }, "auth.authority_host"},
		{"callback without port", func(c *Config) { c.Auth.CallbackAddr = "localhost" }, "auth.callback_addr"},
		{"zero timeout", func(c *Config) { c.Graph.RequestTimeout = 0 }, "graph.request_timeout"},
		{"negative callback timeout", func(c *Config) { c.Auth.CallbackTimeout = -time.Second }, "auth.callback_timeout"},
		{"unknown cache backend", func(c *Config) { c.Auth.CacheBackend = "vault" }, "auth.cache_backend"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Auth.Flow = "x"
	cfg.Log.Format = "y"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.flow")
	assert.Contains(t, err.Error(), "log.format")
}

func TestSlogLevel(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "error"} {
		_, err := LogConfig{Level: level}.SlogLevel()
		assert.NoError(t, err, level)
	}
}
