// Package config loads process configuration from environment variables and
// an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable, e.g.
// PROVENANCE_SERVER_ADDR or PROVENANCE_REGISTRY_MINTING_AUTHORITY.
const EnvPrefix = "PROVENANCE"

// Config is the full process configuration.
type Config struct {
	Server   Server      `mapstructure:"server"`
	Registry Registry    `mapstructure:"registry"`
	Postgres Postgres    `mapstructure:"postgres"`
	Redis    RedisConfig `mapstructure:"redis"`
	Kafka    Kafka       `mapstructure:"kafka"`
	Auth     Auth        `mapstructure:"auth"`
	Log      Log         `mapstructure:"log"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Registry holds registry construction parameters.
type Registry struct {
	// MintingAuthority is the only identity allowed to create assets. It is
	// fixed for the lifetime of the process.
	MintingAuthority string        `mapstructure:"minting_authority"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`

	// CacheFailureThreshold consecutive Redis failures open the cache
	// circuit for CacheCooldown.
	CacheFailureThreshold int           `mapstructure:"cache_failure_threshold"`
	CacheCooldown         time.Duration `mapstructure:"cache_cooldown"`
}

// Postgres configures the ledger database. An empty URL selects the
// in-memory store.
type Postgres struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig configures the asset cache. An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Kafka configures the audit outbox relay. Empty Brokers disables it.
type Kafka struct {
	Brokers           []string      `mapstructure:"brokers"`
	Topic             string        `mapstructure:"topic"`
	Partitions        int32         `mapstructure:"partitions"`
	ReplicationFactor int16         `mapstructure:"replication_factor"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	BatchSize         int           `mapstructure:"batch_size"`
}

// Enabled reports whether a broker list was configured.
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// Auth selects how the HTTP layer derives the caller identity. With an empty
// JWTSigningKey the identity header is trusted as-is, which is only
// appropriate behind an authenticating gateway.
type Auth struct {
	IdentityHeader string `mapstructure:"identity_header"`
	JWTSigningKey  string `mapstructure:"jwt_signing_key"`
	JWTIssuer      string `mapstructure:"jwt_issuer"`
	JWTAudience    string `mapstructure:"jwt_audience"`

	// AdminToken protects /metrics when set.
	AdminToken string `mapstructure:"admin_token"`
}

// Log configures the process logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ErrMissingMintingAuthority is returned when no minting authority is set.
var ErrMissingMintingAuthority = errors.New("registry.minting_authority is required")

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("registry.minting_authority", "")
	v.SetDefault("registry.cache_ttl", 5*time.Minute)
	v.SetDefault("registry.cache_failure_threshold", 5)
	v.SetDefault("registry.cache_cooldown", 30*time.Second)

	v.SetDefault("postgres.url", "")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("postgres.auto_migrate", false)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "provenance.audit")
	v.SetDefault("kafka.partitions", 3)
	v.SetDefault("kafka.replication_factor", 1)
	v.SetDefault("kafka.poll_interval", time.Second)
	v.SetDefault("kafka.batch_size", 100)

	v.SetDefault("auth.identity_header", "X-Caller-Identity")
	v.SetDefault("auth.jwt_signing_key", "")
	v.SetDefault("auth.jwt_issuer", "")
	v.SetDefault("auth.jwt_audience", "")
	v.SetDefault("auth.admin_token", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration. configFile may be empty; environment variables
// override file values.
func Load(configFile string) (*Config, error) {
	cfg, err := LoadUnvalidated(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUnvalidated reads configuration without registry checks. Tooling such
// as schema migration uses it because it never starts a registry.
func LoadUnvalidated(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks required values.
func (c *Config) Validate() error {
	c.Registry.MintingAuthority = strings.TrimSpace(c.Registry.MintingAuthority)
	if c.Registry.MintingAuthority == "" {
		return ErrMissingMintingAuthority
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	return nil
}
