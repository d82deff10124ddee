package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/brain-access/internal/quota"
)

const (
	// DefaultTurnaroundHours is the default estimated Brain approval time.
	DefaultTurnaroundHours = 48

	// DefaultRedisPrefix namespaces upload counter keys.
	DefaultRedisPrefix = "brain"
)

// Config holds all configuration for brain-access.
type Config struct {
	Store       StoreConfig       `mapstructure:"store"`
	Neo4j       Neo4jConfig       `mapstructure:"neo4j"`
	Redis       RedisConfig       `mapstructure:"redis"`
	AMQP        AMQPConfig        `mapstructure:"amqp"`
	Quota       QuotaConfig       `mapstructure:"quota"`
	BrainAccess BrainAccessConfig `mapstructure:"brain_access"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	API         APIConfig         `mapstructure:"api"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Backend is "memory" or "neo4j".
	Backend string `mapstructure:"backend"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
}

// Neo4jConfig holds Neo4j connection settings.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// String returns a safe representation of Neo4jConfig with the password masked.
func (c Neo4jConfig) String() string {
	return fmt.Sprintf("Neo4jConfig{URI:%s, Username:%s, Password:%s, Database:%s}",
		c.URI, c.Username, maskSecret(c.Password), c.Database)
}

// RedisConfig holds the optional Redis upload counter settings. An empty
// Addr keeps counts in the main store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Enabled reports whether Redis counters are configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// AMQPConfig holds the optional RabbitMQ notifier settings. An empty URL
// logs notifications instead.
type AMQPConfig struct {
	URL string `mapstructure:"url"`
}

// Enabled reports whether AMQP notifications are configured.
func (c AMQPConfig) Enabled() bool { return c.URL != "" }

// String masks credentials embedded in the URL.
func (c AMQPConfig) String() string {
	u := c.URL
	if at := strings.LastIndex(u, "@"); at >= 0 {
		if scheme := strings.Index(u, "://"); scheme >= 0 && scheme+3 < at {
			u = u[:scheme+3] + "***" + u[at:]
		}
	}
	return fmt.Sprintf("AMQPConfig{URL:%s}", u)
}

// QuotaConfig holds upload quota settings.
type QuotaConfig struct {
	// ReadFailurePolicy is "fail_closed" or "fail_open".
	ReadFailurePolicy string `mapstructure:"read_failure_policy"`
}

// BrainAccessConfig holds Brain access workflow settings.
type BrainAccessConfig struct {
	AllowReRequest  bool `mapstructure:"allow_rerequest"`
	TurnaroundHours int  `mapstructure:"turnaround_hours"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// maskSecret shows first 2 + last 2 chars, replacing the middle with asterisks.
func maskSecret(s string) string {
	const visible = 2
	if len(s) <= visible*2 {
		return "***"
	}
	return s[:visible] + "****" + s[len(s)-visible:]
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("store.backend", "memory")

	v.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "neo4j")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", DefaultRedisPrefix)

	v.SetDefault("amqp.url", "")

	v.SetDefault("quota.read_failure_policy", string(quota.FailClosed))

	v.SetDefault("brain_access.allow_rerequest", false)
	v.SetDefault("brain_access.turnaround_hours", DefaultTurnaroundHours)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.auth_token", "")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".brain-access"))
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("BRAIN_ACCESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map specific env vars
	_ = v.BindEnv("neo4j.uri", "BRAIN_ACCESS_NEO4J_URI", "NEO4J_URI")
	_ = v.BindEnv("neo4j.password", "BRAIN_ACCESS_NEO4J_PASSWORD", "NEO4J_PASSWORD")
	_ = v.BindEnv("redis.addr", "BRAIN_ACCESS_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("amqp.url", "BRAIN_ACCESS_AMQP_URL", "RABBITMQ_URL")
	_ = v.BindEnv("api.auth_token", "BRAIN_ACCESS_API_AUTH_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK; use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "neo4j":
		if c.Neo4j.URI == "" {
			return fmt.Errorf("neo4j.uri must not be empty when store.backend is neo4j")
		}
	default:
		return fmt.Errorf("store.backend must be memory or neo4j, got %q", c.Store.Backend)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0")
	}
	if c.Redis.Enabled() && c.Redis.Prefix == "" {
		return fmt.Errorf("redis.prefix must not be empty when redis.addr is set")
	}
	if _, err := quota.ParseReadFailurePolicy(c.Quota.ReadFailurePolicy); err != nil {
		return fmt.Errorf("quota.read_failure_policy: %w", err)
	}
	if c.BrainAccess.TurnaroundHours <= 0 {
		return fmt.Errorf("brain_access.turnaround_hours must be greater than 0")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
