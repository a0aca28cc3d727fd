package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Remainder policies for matched carry that does not fill a whole unit.
const (
	RemainderConsumeAll = "consume_all"
	RemainderRetain     = "retain_remainder"
)

type Config struct {
	Development bool
	// API configuration
	Port            string
	JWTSecret       string
	BootstrapSecret string
	// Postgres configuration
	DBUser        string
	DBPassword    string
	DBHost        string
	DBPort        int
	DBName        string
	DBSSLMode     string
	DBLockTimeout time.Duration
	// Transaction retry on lock timeouts and deadlocks
	TxMaxAttempts int
	TxRetryDelay  time.Duration
	// Async notifications
	RedisAddr     string
	AlertsEnabled bool
	AdminEmail    string
	SMTPHost      string
	SMTPPort      string
	SMTPUsername  string
	SMTPPassword  string
	SMTPFrom      string

	Compensation Compensation
}

// Compensation holds the engine parameters. They are passed into the engine
// explicitly so match processing never reads settings mid-transaction.
type Compensation struct {
	FixedContribution int64
	BaseUnit          int64
	MaxUplineDepth    int
	RemainderPolicy   string
	TDSPercent        decimal.Decimal
	SponsorBonus      decimal.Decimal
	SingleSlot        bool
	BatchWorkers      int
}

// DefaultCompensation returns the production engine parameters.
func DefaultCompensation() Compensation {
	return Compensation{
		FixedContribution: 50,
		BaseUnit:          50,
		MaxUplineDepth:    20,
		RemainderPolicy:   RemainderConsumeAll,
		TDSPercent:        decimal.Zero,
		SponsorBonus:      decimal.Zero,
		SingleSlot:        false,
		BatchWorkers:      4,
	}
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	def := DefaultCompensation()
	cfg := &Config{
		Development:     getEnvAsBool("DEVELOPMENT", false),
		Port:            getEnv("PORT", "8080"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		BootstrapSecret: getEnv("ADMIN_BOOTSTRAP_SECRET", ""),
		DBUser:          getEnv("DB_USER", "postgres"),
		DBPassword:      getEnv("DB_PASSWORD", "postgres"),
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          getEnvAsInt("DB_PORT", 5432),
		DBName:          getEnv("DB_NAME", "binaryhub"),
		DBSSLMode:       getEnv("DB_SSLMODE", "disable"),
		DBLockTimeout:   getEnvAsDuration("DB_LOCK_TIMEOUT", 5*time.Second),
		TxMaxAttempts:   getEnvAsInt("TX_MAX_ATTEMPTS", 3),
		TxRetryDelay:    getEnvAsDuration("TX_RETRY_DELAY", 50*time.Millisecond),
		RedisAddr:       getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		AlertsEnabled:   getEnvAsBool("ALERTS_ENABLED", false),
		AdminEmail:      getEnv("ALERTS_ADMIN_EMAIL", ""),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnv("SMTP_PORT", "465"),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:        getEnv("SMTP_FROM", ""),

		Compensation: Compensation{
			FixedContribution: int64(getEnvAsInt("BV_FIXED_CONTRIBUTION", int(def.FixedContribution))),
			BaseUnit:          int64(getEnvAsInt("BV_BASE_UNIT", int(def.BaseUnit))),
			MaxUplineDepth:    getEnvAsInt("BV_MAX_UPLINE_DEPTH", def.MaxUplineDepth),
			RemainderPolicy:   getEnv("BV_REMAINDER_POLICY", def.RemainderPolicy),
			TDSPercent:        getEnvAsDecimal("BV_TDS_PERCENT", def.TDSPercent),
			SponsorBonus:      getEnvAsDecimal("BV_SPONSOR_BONUS", def.SponsorBonus),
			SingleSlot:        getEnvAsBool("BV_SINGLE_SLOT", def.SingleSlot),
			BatchWorkers:      getEnvAsInt("BV_BATCH_WORKERS", def.BatchWorkers),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.TxMaxAttempts < 1 {
		return fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1")
	}
	return c.Compensation.Validate()
}

// Validate checks the engine parameters.
func (c Compensation) Validate() error {
	if c.FixedContribution <= 0 {
		return fmt.Errorf("BV_FIXED_CONTRIBUTION must be positive")
	}
	if c.BaseUnit <= 0 {
		return fmt.Errorf("BV_BASE_UNIT must be positive")
	}
	if c.MaxUplineDepth <= 0 {
		return fmt.Errorf("BV_MAX_UPLINE_DEPTH must be positive")
	}
	if c.RemainderPolicy != RemainderConsumeAll && c.RemainderPolicy != RemainderRetain {
		return fmt.Errorf("BV_REMAINDER_POLICY must be %q or %q", RemainderConsumeAll, RemainderRetain)
	}
	if c.TDSPercent.IsNegative() || c.TDSPercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("BV_TDS_PERCENT must be between 0 and 100")
	}
	if c.SponsorBonus.IsNegative() {
		return fmt.Errorf("BV_SPONSOR_BONUS must not be negative")
	}
	if c.BatchWorkers < 1 {
		return fmt.Errorf("BV_BATCH_WORKERS must be at least 1")
	}
	return nil
}

// Override applies command-line values over c. Empty remainder and
// non-positive workers keep the current values. The result is validated.
func (c Compensation) Override(remainder string, workers int) (Compensation, error) {
	if remainder != "" {
		c.RemainderPolicy = remainder
	}
	if workers > 0 {
		c.BatchWorkers = workers
	}
	if err := c.Validate(); err != nil {
		return Compensation{}, err
	}
	return c, nil
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDecimal(name string, defaultValue decimal.Decimal) decimal.Decimal {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := decimal.NewFromString(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
