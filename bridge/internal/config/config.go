package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPHost      = "127.0.0.1"
	DefaultHTTPPort      = 8080
	DefaultScrapeTimeout = 30 * time.Second
	DefaultTelemetryPath = "/internal/metrics"

	DefaultClickHouseHost     = "localhost"
	DefaultClickHousePort     = 8123
	DefaultClickHouseUser     = "default"
	DefaultClickHouseDatabase = "default"
	DefaultDialTimeout        = 5 * time.Second

	DefaultPrefix = "default"
)

// DefaultQuery runs when no queries are configured. It needs no tables, so
// it succeeds against any reachable server and doubles as a liveness probe.
const DefaultQuery = "SELECT 'up' AS metric, toInt64(1) AS value"

// Paths owned by the HTTP API; the telemetry route may not shadow them.
var reservedPaths = []string{"/metrics", "/live", "/ready"}

// Config is the top-level configuration for the bridge.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
}

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	// Host is the IP address to bind. Hostnames are rejected.
	Host string `yaml:"host"`

	// Port is the TCP port to bind.
	Port int `yaml:"port"`

	// ScrapeTimeout bounds one /metrics request, all queries included.
	// Zero leaves only the client's own deadline.
	ScrapeTimeout time.Duration `yaml:"scrape_timeout"`

	// TelemetryPath serves the bridge's own Prometheus metrics.
	TelemetryPath string `yaml:"telemetry_path"`
}

// Addr returns the host:port listen address.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, fmt.Sprint(h.Port))
}

// ClickHouseConfig describes the store connection and the queries to run.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Database string `yaml:"database"`

	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// Queries run in order on every scrape. Each must return the columns
	// metric (String) and value (Int64).
	Queries []string `yaml:"queries"`

	TLS TLSConfig `yaml:"tls"`
}

// Addr returns the host:port of the ClickHouse HTTP interface.
func (c ClickHouseConfig) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// Password returns the password resolved from the environment.
// Returns empty string if PasswordEnv is unset or the variable is not found.
func (c ClickHouseConfig) Password() string {
	if c.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.PasswordEnv)
}

// EffectiveQueries returns the configured queries, or DefaultQuery alone
// when none are configured.
func (c ClickHouseConfig) EffectiveQueries() []string {
	if len(c.Queries) == 0 {
		return []string{DefaultQuery}
	}
	out := make([]string, len(c.Queries))
	copy(out, c.Queries)
	return out
}

// TLSConfig holds TLS dial options for the ClickHouse connection.
type TLSConfig struct {
	Enabled bool `yaml:"enabled"`

	// CAFile overrides the system root pool.
	CAFile string `yaml:"ca_file"`

	// CertFile and KeyFile present a client certificate; set both or neither.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// PrometheusConfig controls the exposition body.
type PrometheusConfig struct {
	// Prefix namespaces every metric line.
	Prefix string `yaml:"prefix"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:          DefaultHTTPHost,
			Port:          DefaultHTTPPort,
			ScrapeTimeout: DefaultScrapeTimeout,
			TelemetryPath: DefaultTelemetryPath,
		},
		ClickHouse: ClickHouseConfig{
			Host:        DefaultClickHouseHost,
			Port:        DefaultClickHousePort,
			User:        DefaultClickHouseUser,
			Database:    DefaultClickHouseDatabase,
			DialTimeout: DefaultDialTimeout,
		},
		Prometheus: PrometheusConfig{
			Prefix: DefaultPrefix,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if net.ParseIP(cfg.HTTP.Host) == nil {
		return fmt.Errorf("http.host %q is not an IP address", cfg.HTTP.Host)
	}
	if err := validPort("http.port", cfg.HTTP.Port); err != nil {
		return err
	}
	if cfg.HTTP.ScrapeTimeout < 0 {
		return fmt.Errorf("http.scrape_timeout must not be negative")
	}
	if !strings.HasPrefix(cfg.HTTP.TelemetryPath, "/") {
		return fmt.Errorf("http.telemetry_path %q must start with /", cfg.HTTP.TelemetryPath)
	}
	for _, p := range reservedPaths {
		if cfg.HTTP.TelemetryPath == p {
			return fmt.Errorf("http.telemetry_path %q is reserved", p)
		}
	}

	ch := cfg.ClickHouse
	if strings.TrimSpace(ch.Host) == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if err := validPort("clickhouse.port", ch.Port); err != nil {
		return err
	}
	if ch.User == "" {
		return fmt.Errorf("clickhouse.user is required")
	}
	if ch.Database == "" {
		return fmt.Errorf("clickhouse.database is required")
	}
	if ch.DialTimeout < 0 {
		return fmt.Errorf("clickhouse.dial_timeout must not be negative")
	}
	for i, q := range ch.Queries {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("clickhouse.queries[%d] is blank", i)
		}
	}
	if (ch.TLS.CertFile == "") != (ch.TLS.KeyFile == "") {
		return fmt.Errorf("clickhouse.tls: cert_file and key_file must be set together")
	}

	if strings.TrimSpace(cfg.Prometheus.Prefix) == "" {
		return fmt.Errorf("prometheus.prefix must not be blank")
	}
	return nil
}

func validPort(field string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s %d out of range 1-65535", field, port)
	}
	return nil
}
