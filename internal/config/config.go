package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/teemow/inboxreader/internal/auth"
	"github.com/teemow/inboxreader/internal/logging"
	"github.com/teemow/inboxreader/internal/outlook"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "OUTLOOK"

const (
	appName        = "inboxreader"
	configFileName = "config.yaml"
	dotEnvFile     = ".env"
)

// Config holds all settings
type Config struct {
	Auth  AuthConfig  `mapstructure:"auth"`
	Graph GraphConfig `mapstructure:"graph"`
	Web   WebConfig   `mapstructure:"web"`
	Log   LogConfig   `mapstructure:"log"`
}

// AuthConfig selects and configures the sign-in flow and token cache
type AuthConfig struct {
	Flow            string        `mapstructure:"flow"`
	ClientID        string        `mapstructure:"client_id"`
	Tenant          string        `mapstructure:"tenant"`
	AuthorityHost   string        `mapstructure:"authority_host"`
	Email           string        `mapstructure:"email"`
	CallbackAddr    string        `mapstructure:"callback_addr"`
	CallbackTimeout time.Duration `mapstructure:"callback_timeout"`
	CacheBackend    string        `mapstructure:"cache_backend"`
	CachePath       string        `mapstructure:"cache_path"`
}

// GraphConfig configures the Microsoft Graph client
type GraphConfig struct {
	URL            string        `mapstructure:"url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
}

// WebConfig configures the web UI and metrics listeners
type WebConfig struct {
	Addr           string `mapstructure:"addr"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	PrimeFromCache bool   `mapstructure:"prime_from_cache"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Flag names bound to configuration keys by BindFlags.
const (
	FlagConfig       = "config"
	FlagFlow         = "flow"
	FlagEmail        = "email"
	FlagTenant       = "tenant"
	FlagClientID     = "client-id"
	FlagCacheBackend = "cache-backend"
	FlagDebug        = "debug"
	FlagLogFormat    = "log-format"
	FlagAddr         = "addr"
	FlagMetricsAddr  = "metrics-addr"
)

var flagKeys = map[string]string{
	FlagFlow:         "auth.flow",
	FlagEmail:        "auth.email",
	FlagTenant:       "auth.tenant",
	FlagClientID:     "auth.client_id",
	FlagCacheBackend: "auth.cache_backend",
	FlagLogFormat:    "log.format",
	FlagAddr:         "web.addr",
	FlagMetricsAddr:  "web.metrics_addr",
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Auth: AuthConfig{
			Flow:            auth.FlowDeviceCode,
			ClientID:        auth.DefaultClientID,
			Tenant:          auth.DefaultTenant,
			AuthorityHost:   auth.DefaultAuthorityHost,
			CallbackAddr:    auth.DefaultCallbackAddr,
			CallbackTimeout: auth.DefaultCallbackTimeout,
			CacheBackend:    auth.CacheBackendFile,
			CachePath:       auth.DefaultTokenCachePath(),
		},
		Graph: GraphConfig{
			URL:            outlook.DefaultGraphURL,
			RequestTimeout: outlook.DefaultRequestTimeout,
			ProbeTimeout:   outlook.DefaultProbeTimeout,
		},
		Web: WebConfig{
			Addr:           "localhost:5000",
			MetricsAddr:    ":9090",
			PrimeFromCache: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
	}
}

// Loader reads configuration from one viper instance.
type Loader struct {
	v          *viper.Viper
	configFile string
	dotEnv     string
}

// NewLoader returns a loader with defaults registered.
func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &Loader{v: v, dotEnv: dotEnvFile}
}

// SetConfigFile overrides the YAML file location. The file must exist.
func (l *Loader) SetConfigFile(path string) { l.configFile = path }

// SetDotEnv overrides the .env path. An empty path disables .env loading.
func (l *Loader) SetDotEnv(path string) { l.dotEnv = path }

// BindFlags binds the flags known to the configuration that exist in fs.
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := l.v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	if f := fs.Lookup(FlagConfig); f != nil && f.Changed {
		l.configFile = f.Value.String()
	}
	if f := fs.Lookup(FlagDebug); f != nil && f.Changed && f.Value.String() == "true" {
		l.v.Set("log.level", "debug")
	}
	return nil
}

// Load merges all sources and validates the result.
func (l *Loader) Load() (*Config, error) {
	if l.dotEnv != "" {
		// Existing environment variables take precedence over .env entries.
		if err := gotenv.Load(l.dotEnv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", l.dotEnv, err)
		}
	}

	if err := l.v.BindEnv("auth.email", EnvPrefix+"_AUTH_EMAIL", EnvPrefix+"_EMAIL"); err != nil {
		return nil, err
	}

	if err := l.readConfigFile(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFileUsed returns the YAML file that was read, if any.
func (l *Loader) ConfigFileUsed() string { return l.v.ConfigFileUsed() }

func (l *Loader) readConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", l.configFile, err)
		}
		return nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	l.v.SetConfigName(strings.TrimSuffix(configFileName, filepath.Ext(configFileName)))
	l.v.SetConfigType("yaml")
	l.v.AddConfigPath(filepath.Join(dir, appName))
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("auth.flow", d.Auth.Flow)
	v.SetDefault("auth.client_id", d.Auth.ClientID)
	v.SetDefault("auth.tenant", d.Auth.Tenant)
	v.SetDefault("auth.authority_host", d.Auth.AuthorityHost)
	v.SetDefault("auth.email", d.Auth.Email)
	v.SetDefault("auth.callback_addr", d.Auth.CallbackAddr)
	v.SetDefault("auth.callback_timeout", d.Auth.CallbackTimeout)
	v.SetDefault("auth.cache_backend", d.Auth.CacheBackend)
	v.SetDefault("auth.cache_path", d.Auth.CachePath)

	v.SetDefault("graph.url", d.Graph.URL)
	v.SetDefault("graph.request_timeout", d.Graph.RequestTimeout)
	v.SetDefault("graph.probe_timeout", d.Graph.ProbeTimeout)

	v.SetDefault("web.addr", d.Web.Addr)
	v.SetDefault("web.metrics_addr", d.Web.MetricsAddr)
	v.SetDefault("web.prime_from_cache", d.Web.PrimeFromCache)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks the configuration for values that would fail later.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(auth.FlowNames, c.Auth.Flow) {
		errs = append(errs, fmt.Errorf("auth.flow must be one of %v, got %q", auth.FlowNames, c.Auth.Flow))
	}
	if c.Auth.ClientID == "" {
		errs = append(errs, errors.New("auth.client_id must not be empty"))
	}
	if c.Auth.Tenant == "" {
		errs = append(errs, errors.New("auth.tenant must not be empty"))
	}
	if err := validateURL("auth.authority_host", c.Auth.AuthorityHost); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := net.SplitHostPort(c.Auth.CallbackAddr); err != nil {
		errs = append(errs, fmt.Errorf("auth.callback_addr %q: %w", c.Auth.CallbackAddr, err))
	}
	if c.Auth.CallbackTimeout <= 0 {
		errs = append(errs, fmt.Errorf("auth.callback_timeout must be positive, got %s", c.Auth.CallbackTimeout))
	}
	switch c.Auth.CacheBackend {
	case auth.CacheBackendFile, auth.CacheBackendKeyring:
	default:
		errs = append(errs, fmt.Errorf("auth.cache_backend must be %q or %q, got %q",
			auth.CacheBackendFile, auth.CacheBackendKeyring, c.Auth.CacheBackend))
	}

	if err := validateURL("graph.url", c.Graph.URL); err != nil {
		errs = append(errs, err)
	}
	if c.Graph.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("graph.request_timeout must be positive, got %s", c.Graph.RequestTimeout))
	}
	if c.Graph.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("graph.probe_timeout must be positive, got %s", c.Graph.ProbeTimeout))
	}

	if c.Web.Addr == "" {
		errs = append(errs, errors.New("web.addr must not be empty"))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format must be %q or %q, got %q", logging.FormatText, logging.FormatJSON, c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, raw)
	}
	return nil
}
