package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Database   DatabaseConfig   `yaml:"database"`
	Firestore  FirestoreConfig  `yaml:"firestore"`
	JWT        JWTConfig        `yaml:"jwt"`
	Log        LogConfig        `yaml:"log"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Membership MembershipConfig `yaml:"membership"`
	Events     EventsConfig     `yaml:"events"`
	SendGrid   SendGridConfig   `yaml:"sendgrid"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`      // HTTP API
	GRPCPort int    `yaml:"grpc_port"` // health checks
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "postgres", "firestore" or "memory"
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
	EmulatorHost    string `yaml:"emulator_host"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

type LedgerConfig struct {
	MaxRetries             int   `yaml:"max_retries"`
	RetryInitialIntervalMs int   `yaml:"retry_initial_interval_ms"`
	ApprovalThresholdCents int64 `yaml:"approval_threshold_cents"` // 0 disables the gate
	CacheSize              int   `yaml:"cache_size"`
}

func (c LedgerConfig) RetryInitialInterval() time.Duration {
	return time.Duration(c.RetryInitialIntervalMs) * time.Millisecond
}

type MembershipConfig struct {
	CodeLength      int `yaml:"code_length"`
	MaxCodeAttempts int `yaml:"max_code_attempts"`
}

type EventsConfig struct {
	Driver  string   `yaml:"driver"` // "none", "kafka" or "amqp"
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	AMQPURL string   `yaml:"amqp_url"`
	Queue   string   `yaml:"queue"`
}

type SendGridConfig struct {
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ReconcileLedgers     string `yaml:"reconcile_ledgers"`
	ReportCreditBreaches string `yaml:"report_credit_breaches"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	setString := func(env string, dst *string) {
		if val := os.Getenv(env); val != "" {
			*dst = val
		}
	}
	setInt := func(env string, dst *int) {
		if val := os.Getenv(env); val != "" {
			fmt.Sscanf(val, "%d", dst)
		}
	}

	setString("SERVER_HOST", &c.Server.Host)
	setInt("SERVER_PORT", &c.Server.Port)
	setInt("GRPC_PORT", &c.Server.GRPCPort)

	setString("STORE_DRIVER", &c.Store.Driver)

	setString("DB_HOST", &c.Database.Host)
	setInt("DB_PORT", &c.Database.Port)
	setString("DB_USER", &c.Database.User)
	setString("DB_PASSWORD", &c.Database.Password)
	setString("DB_NAME", &c.Database.Database)
	setString("DB_SSL_MODE", &c.Database.SSLMode)

	setString("FIRESTORE_PROJECT_ID", &c.Firestore.ProjectID)
	setString("GOOGLE_APPLICATION_CREDENTIALS", &c.Firestore.CredentialsFile)
	setString("FIRESTORE_EMULATOR_HOST", &c.Firestore.EmulatorHost)

	setString("JWT_SECRET", &c.JWT.Secret)

	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_FORMAT", &c.Log.Format)

	if val := os.Getenv("LEDGER_APPROVAL_THRESHOLD_CENTS"); val != "" {
		fmt.Sscanf(val, "%d", &c.Ledger.ApprovalThresholdCents)
	}

	setString("EVENTS_DRIVER", &c.Events.Driver)
	if val := os.Getenv("KAFKA_BROKERS"); val != "" {
		c.Events.Brokers = strings.Split(val, ",")
	}
	setString("AMQP_URL", &c.Events.AMQPURL)

	setString("SENDGRID_API_KEY", &c.SendGrid.APIKey)
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRPCPort)
	}

	if c.Store.Driver == "" {
		c.Store.Driver = "postgres"
	}
	switch c.Store.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
		if c.Database.MaxOpenConns == 0 {
			c.Database.MaxOpenConns = 25
		}
		if c.Database.MaxIdleConns == 0 {
			c.Database.MaxIdleConns = 5
		}
	case "firestore":
		if c.Firestore.ProjectID == "" {
			return fmt.Errorf("firestore project_id is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store driver: %q", c.Store.Driver)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Ledger.MaxRetries == 0 {
		c.Ledger.MaxRetries = 5
	}
	if c.Ledger.MaxRetries < 1 {
		return fmt.Errorf("ledger max_retries must be positive")
	}
	if c.Ledger.RetryInitialIntervalMs == 0 {
		c.Ledger.RetryInitialIntervalMs = 10
	}
	if c.Ledger.ApprovalThresholdCents < 0 {
		return fmt.Errorf("ledger approval_threshold_cents must not be negative")
	}
	if c.Ledger.CacheSize == 0 {
		c.Ledger.CacheSize = 1024
	}

	if c.Membership.CodeLength == 0 {
		c.Membership.CodeLength = 6
	}
	if c.Membership.CodeLength < 4 {
		return fmt.Errorf("membership code_length must be at least 4")
	}
	if c.Membership.MaxCodeAttempts == 0 {
		c.Membership.MaxCodeAttempts = 10
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}
	switch c.Events.Driver {
	case "none":
	case "kafka":
		if len(c.Events.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required")
		}
		if c.Events.Topic == "" {
			c.Events.Topic = "bizops.events"
		}
	case "amqp":
		if c.Events.AMQPURL == "" {
			return fmt.Errorf("amqp_url is required")
		}
		if c.Events.Queue == "" {
			c.Events.Queue = "bizops.events"
		}
	default:
		return fmt.Errorf("unknown events driver: %q", c.Events.Driver)
	}

	if c.SendGrid.APIKey != "" && c.SendGrid.FromEmail == "" {
		return fmt.Errorf("sendgrid from_email is required when api_key is set")
	}

	if c.Scheduler.ReconcileLedgers == "" {
		c.Scheduler.ReconcileLedgers = "0 0 2 * * *" // 2 AM UTC
	}
	if c.Scheduler.ReportCreditBreaches == "" {
		c.Scheduler.ReportCreditBreaches = "0 0 7 * * *" // 7 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) GetGRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}
