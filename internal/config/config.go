// Package config loads runtime settings from defaults, an optional YAML file,
// and LOGSHIP_ environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config captures all runtime settings for the logship daemon.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Sink      SinkConfig      `mapstructure:"sink" yaml:"sink"`
	Backend   BackendConfig   `mapstructure:"backend" yaml:"backend"`
	NATS      NATSConfig      `mapstructure:"nats" yaml:"nats"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Audit     AuditConfig     `mapstructure:"audit" yaml:"audit"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                int `mapstructure:"port" yaml:"port"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds" yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds  int `mapstructure:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`
}

// SinkConfig controls stream identity and resource resolution.
type SinkConfig struct {
	Name           string            `mapstructure:"name" yaml:"name"`
	ProjectID      string            `mapstructure:"project_id" yaml:"project_id"`
	ResourceType   string            `mapstructure:"resource_type" yaml:"resource_type"`
	ResourceLabels map[string]string `mapstructure:"resource_labels" yaml:"resource_labels,omitempty"`
	QueueSize      int               `mapstructure:"queue_size" yaml:"queue_size"`
}

// BackendConfig holds OpenSearch delivery settings.
type BackendConfig struct {
	URL           string `mapstructure:"url" yaml:"url"`
	Username      string `mapstructure:"username" yaml:"username"`
	Password      string `mapstructure:"password" yaml:"password"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify" yaml:"tls_skip_verify"`
	IndexPrefix   string `mapstructure:"index_prefix" yaml:"index_prefix"`
}

// NATSConfig holds the optional messaging event feed.
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
	Subject string `mapstructure:"subject" yaml:"subject"`
}

// AuthConfig guards the ingest endpoint.
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// RateLimitConfig holds ingest rate limiting settings.
type RateLimitConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	RedisURL      string `mapstructure:"redis_url" yaml:"redis_url"`
	Limit         int    `mapstructure:"limit" yaml:"limit"`
	WindowSeconds int    `mapstructure:"window_seconds" yaml:"window_seconds"`
}

// AuditConfig holds the optional delivery audit trail settings.
type AuditConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
}

// LoggingConfig controls the daemon's own logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load reads configuration from the optional file path plus LOGSHIP_
// environment overrides (e.g. LOGSHIP_SINK_NAME, LOGSHIP_BACKEND_URL).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LOGSHIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)
	v.SetDefault("server.idle_timeout_seconds", 60)

	v.SetDefault("sink.name", "")
	v.SetDefault("sink.project_id", "")
	v.SetDefault("sink.resource_type", "")
	v.SetDefault("sink.queue_size", 1024)

	v.SetDefault("backend.url", "https://localhost:9200")
	v.SetDefault("backend.username", "")
	v.SetDefault("backend.password", "")
	v.SetDefault("backend.tls_skip_verify", false)
	v.SetDefault("backend.index_prefix", "logship")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject", "logship.events")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.redis_url", "redis://localhost:6379/0")
	v.SetDefault("rate_limit.limit", 1000)
	v.SetDefault("rate_limit.window_seconds", 60)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.database_url", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ReadTimeout returns the read timeout duration.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the write timeout duration.
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// IdleTimeout returns the idle timeout duration.
func (s ServerConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSeconds) * time.Second
}

// Window returns the rate limit window duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}
