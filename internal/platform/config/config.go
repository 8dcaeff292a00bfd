package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	platformstrings "certledger/pkg/platform/strings"
)

// Ledger modes.
const (
	LedgerDisabled  = "disabled"
	LedgerSimulated = "simulated"
	LedgerRPC       = "rpc"
)

// Authority models decide which identity signs a certificate on the ledger.
const (
	AuthorityIssuer      = "issuer"
	AuthorityInstitution = "institution"
)

// Lookup policies.
const (
	LookupStrict  = "strict"
	LookupLenient = "lenient"
)

// Config is the full process configuration. Defaults come from Default, an
// optional YAML file overrides them, and environment variables win last.
type Config struct {
	Server    Server          `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig selects the record store. An empty URL keeps records in memory.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig configures the distributed ledger integration.
type LedgerConfig struct {
	Mode            string        `yaml:"mode"`
	RPCURL          string        `yaml:"rpc_url"`
	Timeout         time.Duration `yaml:"timeout"`
	AdminPrivateKey string        `yaml:"admin_private_key"`
	AuthorityModel  string        `yaml:"authority_model"`
	LookupPolicy    string        `yaml:"lookup_policy"`
	HealthInterval  time.Duration `yaml:"health_interval"`
}

// Enabled reports whether certificates are anchored on a ledger.
func (l LedgerConfig) Enabled() bool {
	return l.Mode != LedgerDisabled
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KafkaConfig holds the audit stream settings. No brokers means audit events
// stay in process.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type AuthConfig struct {
	JWTSigningKey string `yaml:"jwt_signing_key"`
	JWTIssuer     string `yaml:"jwt_issuer"`
	JWTAudience   string `yaml:"jwt_audience"`
}

type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
}

// Default returns a configuration suitable for local development.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  16 << 20,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Database: DatabaseConfig{
			URL:          "sqlite://certificates.db",
			MaxOpenConns: 10,
		},
		Storage: StorageConfig{Path: "uploads"},
		Ledger: LedgerConfig{
			Mode:           LedgerSimulated,
			Timeout:        10 * time.Second,
			AuthorityModel: AuthorityIssuer,
			LookupPolicy:   LookupStrict,
			HealthInterval: 30 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{Topic: "certledger.audit"},
		Auth: AuthConfig{
			// Development default, override in production.
			JWTSigningKey: "dev-secret-key-change-in-production",
			JWTIssuer:     "certledger",
			JWTAudience:   "certledger-admin",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerWindow: 60,
			Window:            time.Minute,
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE (if any) and environment overrides, then validates it.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	setString("SERVER_ADDR", &c.Server.Addr)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FORMAT", &c.Logging.Format)
	setString("DATABASE_URL", &c.Database.URL)
	setString("STORAGE_PATH", &c.Storage.Path)
	setString("LEDGER_MODE", &c.Ledger.Mode)
	setString("LEDGER_RPC_URL", &c.Ledger.RPCURL)
	setString("ADMIN_PRIVATE_KEY", &c.Ledger.AdminPrivateKey)
	setString("AUTHORITY_MODEL", &c.Ledger.AuthorityModel)
	setString("LOOKUP_POLICY", &c.Ledger.LookupPolicy)
	setString("REDIS_URL", &c.Redis.URL)
	setString("KAFKA_TOPIC", &c.Kafka.Topic)
	setString("JWT_SIGNING_KEY", &c.Auth.JWTSigningKey)
	setString("JWT_ISSUER", &c.Auth.JWTIssuer)
	setString("JWT_AUDIENCE", &c.Auth.JWTAudience)

	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = platformstrings.SplitList(v)
	}
	if v := getenv("RATE_LIMIT_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_ENABLED: %w", err)
		}
		c.RateLimit.Enabled = enabled
	}
	if v := getenv("RATE_LIMIT_REQUESTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_REQUESTS: %w", err)
		}
		c.RateLimit.RequestsPerWindow = n
	}

	for key, dst := range map[string]*time.Duration{
		"LEDGER_TIMEOUT":         &c.Ledger.Timeout,
		"LEDGER_HEALTH_INTERVAL": &c.Ledger.HealthInterval,
		"SERVER_READ_TIMEOUT":    &c.Server.ReadTimeout,
		"RATE_LIMIT_WINDOW":      &c.RateLimit.Window,
	} {
		if err := setDuration(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that the configuration is coherent.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	switch c.Ledger.Mode {
	case LedgerDisabled, LedgerSimulated:
	case LedgerRPC:
		if c.Ledger.RPCURL == "" {
			errs = append(errs, errors.New("ledger.rpc_url is required in rpc mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("ledger.mode must be one of disabled, simulated, rpc; got %q", c.Ledger.Mode))
	}
	if c.Ledger.Enabled() && c.Ledger.Timeout <= 0 {
		errs = append(errs, errors.New("ledger.timeout must be positive"))
	}
	if c.Ledger.AuthorityModel != AuthorityIssuer && c.Ledger.AuthorityModel != AuthorityInstitution {
		errs = append(errs, fmt.Errorf("ledger.authority_model must be issuer or institution; got %q", c.Ledger.AuthorityModel))
	}
	if c.Ledger.LookupPolicy != LookupStrict && c.Ledger.LookupPolicy != LookupLenient {
		errs = append(errs, fmt.Errorf("ledger.lookup_policy must be strict or lenient; got %q", c.Ledger.LookupPolicy))
	}
	if c.Database.URL != "" && !strings.HasPrefix(c.Database.URL, "postgres://") &&
		!strings.HasPrefix(c.Database.URL, "postgresql://") && !strings.HasPrefix(c.Database.URL, "sqlite://") {
		errs = append(errs, fmt.Errorf("database.url must use postgres:// or sqlite://"))
	}
	if c.Kafka.Topic == "" && len(c.Kafka.Brokers) > 0 {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rate_limit requires positive requests_per_window and window"))
	}
	if c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("auth.jwt_signing_key is required"))
	}
	return errors.Join(errs...)
}
