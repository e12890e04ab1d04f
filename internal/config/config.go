// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/cors-dev-proxy/config.toml",
	"configs/config.toml",
}

// Built-in values used when neither the config file nor the CLI sets them.
const (
	DefaultUpstreamURL      = "https://az-wapp-epm-np-adjuntardocumentos-uat.np-ase01.epm.com.co"
	DefaultPrefix           = "/api"
	DefaultUpstreamPrefix   = "/AdministradorCargaArchivos"
	DefaultLoadTestEndpoint = "https://localhost:7049/RadicacionMercurio/RadicarCaso"
	DefaultAllowedOrigin    = "http://localhost:4200"
)

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config          string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host            string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port            int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	UpstreamURL     string `kong:"help='Upstream base URL (overrides config).',env='UPSTREAM_URL'"`
	SubscriptionKey string `kong:"help='Subscription key for the load-test endpoint (overrides config).',env='SUBSCRIPTION_KEY'"`
	LogLevel        string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Proxy    ProxyConfig    `toml:"proxy"`
	CORS     CORSConfig     `toml:"cors"`
	LoadTest LoadTestConfig `toml:"loadtest"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (3000)
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// UpstreamConfig holds upstream connection settings.
type UpstreamConfig struct {
	BaseURL         string `toml:"base_url"`
	IdleConnections int    `toml:"idle_connections"`
	// TimeoutSeconds bounds the wait for upstream response headers. Zero
	// means no limit.
	TimeoutSeconds int `toml:"timeout_seconds"`
	// VerifyCertificates enables TLS chain validation. The zero value keeps
	// the trust-all behavior needed for self-signed development backends.
	VerifyCertificates bool `toml:"verify_certificates"`
}

// ProxyConfig maps the inbound path prefix onto the upstream one.
type ProxyConfig struct {
	Prefix         string `toml:"prefix"`
	UpstreamPrefix string `toml:"upstream_prefix"`
}

// CORSConfig is the fixed cross-origin allow-list.
type CORSConfig struct {
	AllowOrigins []string `toml:"allow_origins"`
	AllowMethods []string `toml:"allow_methods"`
	AllowHeaders []string `toml:"allow_headers"`
}

// LoadTestConfig configures the fan-out helper route.
type LoadTestConfig struct {
	EndpointURL     string `toml:"endpoint_url"`
	SubscriptionKey string `toml:"subscription_key"`
	Concurrency     int    `toml:"concurrency"`
	MaxIterations   int    `toml:"max_iterations"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/cors-dev-proxy/config.toml then configs/config.toml, and falls back to
// built-in defaults when neither exists. An explicit path must exist.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.UpstreamURL != "" {
		c.Upstream.BaseURL = cli.UpstreamURL
	}
	if cli.SubscriptionKey != "" {
		c.LoadTest.SubscriptionKey = cli.SubscriptionKey
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// Upstream URL: optional (defaulted) but must be HTTPS when set.
	if c.Upstream.BaseURL != "" {
		if err := validateHTTPS("upstream.base_url", c.Upstream.BaseURL); err != nil {
			return err
		}
	}
	if c.LoadTest.EndpointURL != "" {
		if err := validateHTTPS("loadtest.endpoint_url", c.LoadTest.EndpointURL); err != nil {
			return err
		}
	}

	// Path prefixes.
	if p := c.Proxy.Prefix; p != "" && (p[0] != '/' || p == "/") {
		return fmt.Errorf("proxy.prefix must start with '/' and not be the root; got %q", p)
	}
	if p := c.Proxy.UpstreamPrefix; p != "" && p[0] != '/' {
		return fmt.Errorf("proxy.upstream_prefix must start with '/'; got %q", p)
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.LoadTest.Concurrency < 0 {
		return fmt.Errorf("loadtest.concurrency must be non-negative; got %d", c.LoadTest.Concurrency)
	}
	if c.LoadTest.MaxIterations < 0 {
		return fmt.Errorf("loadtest.max_iterations must be non-negative; got %d", c.LoadTest.MaxIterations)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	for _, origin := range c.CORS.AllowOrigins {
		if origin == "*" {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("cors.allow_origins entry %q must be scheme://host[:port]", origin)
		}
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' || p == "/" {
			return fmt.Errorf("metrics.path must start with '/' and not be the root; got %q", p)
		}
		prefix := c.Proxy.Prefix
		if prefix == "" {
			prefix = DefaultPrefix
		}
		for _, reserved := range []string{prefix, "/healthz", "/proxy/status"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

func validateHTTPS(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute HTTPS URL; got %q", field, raw)
	}
	return nil
}

// setDefaults fills zero-valued fields with the values the proxy historically
// shipped with. For integer fields zero means "unset" because TOML cannot
// distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 50 * 1024 * 1024 // 50 MB, uploads go through here
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultUpstreamURL
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Proxy.Prefix == "" {
		c.Proxy.Prefix = DefaultPrefix
	}
	if c.Proxy.UpstreamPrefix == "" {
		c.Proxy.UpstreamPrefix = DefaultUpstreamPrefix
	}
	if len(c.CORS.AllowOrigins) == 0 {
		c.CORS.AllowOrigins = []string{DefaultAllowedOrigin}
	}
	if len(c.CORS.AllowMethods) == 0 {
		c.CORS.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.CORS.AllowHeaders) == 0 {
		c.CORS.AllowHeaders = []string{"Content-Type", "Accept", "Authorization"}
	}
	if c.LoadTest.EndpointURL == "" {
		c.LoadTest.EndpointURL = DefaultLoadTestEndpoint
	}
	if c.LoadTest.Concurrency == 0 {
		c.LoadTest.Concurrency = 10
	}
	if c.LoadTest.MaxIterations == 0 {
		c.LoadTest.MaxIterations = 1000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or
// others. The file may hold the load-test subscription key.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}

// WarnInsecureTLS logs a warning when upstream certificates are not verified.
func (c *Config) WarnInsecureTLS(logger *slog.Logger) {
	if !c.Upstream.VerifyCertificates {
		logger.Warn("upstream TLS certificate verification is disabled; set upstream.verify_certificates = true outside development",
			"upstream_url", c.Upstream.BaseURL,
		)
	}
}

// WarnMissingSubscriptionKey logs a warning when load-test calls would go
// out without the Ocp-Apim-Subscription-Key header.
func (c *Config) WarnMissingSubscriptionKey(logger *slog.Logger) {
	if c.LoadTest.SubscriptionKey == "" {
		logger.Warn("load-test subscription key is empty; calls will omit Ocp-Apim-Subscription-Key (set loadtest.subscription_key or SUBSCRIPTION_KEY)",
			"endpoint_url", c.LoadTest.EndpointURL,
		)
	}
}

// FilePath returns the config file that was loaded, or "" for built-in defaults.
func (c *Config) FilePath() string {
	return c.filePath
}
