package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	GRPC     GRPCConfig
	MySQL    MySQLConfig
	Tokens   TokenConfig
	Password PasswordConfig
	Storage  StorageConfig
	Mail     MailConfig
	Redis    RedisConfig
	Search   SearchConfig
	Metrics  MetricsConfig
}

type AppConfig struct {
	Name     string
	Env      string
	BaseURL  string
	LogLevel string
	// DiscloseUnknownEmail makes forgot-password and resend report unknown addresses.
	DiscloseUnknownEmail bool
}

type HTTPConfig struct {
	Host string
	Port string
}

type GRPCConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN string
}

type TokenConfig struct {
	LinkSecret      string
	VerifyTTL       time.Duration
	ResendVerifyTTL time.Duration
	ResetTTL        time.Duration
	// SessionTTL of zero issues session tokens without expiry.
	SessionTTL time.Duration
	// ResetURL is the frontend page that accepts ?token=&email=.
	ResetURL string
}

type PasswordConfig struct {
	Policy PasswordPolicy
}

type StorageConfig struct {
	Driver   string
	LocalDir string
	// PublicURL prefixes local blob paths in API responses.
	PublicURL string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	GCSBucket          string
	GCSCredentialsFile string
}

type MailConfig struct {
	Transport string
	From      string

	MailgunDomain string
	MailgunAPIKey string

	AMQPURL   string
	AMQPQueue string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	RateLimit  int
	RateWindow time.Duration
}

type SearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

type MetricsConfig struct {
	Enabled bool
	// RequireAPIKey guards /metrics with an internal API key.
	RequireAPIKey bool
}

type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasNumber = true
		case unicode.IsPunct(ch) || unicode.IsSymbol(ch):
			hasSpecial = true
		}
	}

	var missing []string
	if p.RequireUppercase && !hasUpper {
		missing = append(missing, "uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		missing = append(missing, "lowercase letter")
	}
	if p.RequireNumber && !hasNumber {
		missing = append(missing, "number")
	}
	if p.RequireSpecial && !hasSpecial {
		missing = append(missing, "special character")
	}

	if len(missing) > 0 {
		return fmt.Errorf("password must contain at least one: %s", strings.Join(missing, ", "))
	}

	return nil
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	linkSecret := os.Getenv("LINK_SIGNING_SECRET")
	if linkSecret == "" {
		return nil, errors.New("LINK_SIGNING_SECRET environment variable is required")
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	baseURL := strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:8080"), "/")

	return &Config{
		App: AppConfig{
			Name:                 getEnv("APP_NAME", "accounts"),
			Env:                  getEnv("APP_ENV", "production"),
			BaseURL:              baseURL,
			LogLevel:             getEnv("LOG_LEVEL", "info"),
			DiscloseUnknownEmail: getBoolEnv("AUTH_DISCLOSE_UNKNOWN_EMAIL", false),
		},
		HTTP: HTTPConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: GRPCConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN: mysqlDSN,
		},
		Tokens: TokenConfig{
			LinkSecret:      linkSecret,
			VerifyTTL:       getDurationEnv("VERIFY_LINK_TTL", 60*time.Minute),
			ResendVerifyTTL: getDurationEnv("VERIFY_RESEND_LINK_TTL", 24*time.Hour),
			ResetTTL:        getDurationEnv("RESET_TOKEN_TTL", 60*time.Minute),
			SessionTTL:      getDurationEnv("SESSION_TOKEN_TTL", 0),
			ResetURL:        getEnv("RESET_PASSWORD_URL", baseURL+"/reset-password"),
		},
		Password: PasswordConfig{
			Policy: loadPasswordPolicy(),
		},
		Storage: StorageConfig{
			Driver:             getEnv("STORAGE_DRIVER", "local"),
			LocalDir:           getEnv("STORAGE_LOCAL_DIR", "storage"),
			PublicURL:          strings.TrimRight(getEnv("STORAGE_PUBLIC_URL", baseURL+"/storage"), "/"),
			S3Bucket:           os.Getenv("S3_BUCKET"),
			S3Region:           getEnv("S3_REGION", "us-east-1"),
			S3Endpoint:         os.Getenv("S3_ENDPOINT"),
			S3AccessKey:        os.Getenv("S3_ACCESS_KEY"),
			S3SecretKey:        os.Getenv("S3_SECRET_KEY"),
			GCSBucket:          os.Getenv("GCS_BUCKET"),
			GCSCredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),
		},
		Mail: MailConfig{
			Transport:     getEnv("MAIL_TRANSPORT", "log"),
			From:          getEnv("MAIL_FROM", "no-reply@localhost"),
			MailgunDomain: os.Getenv("MAILGUN_DOMAIN"),
			MailgunAPIKey: os.Getenv("MAILGUN_API_KEY"),
			AMQPURL:       os.Getenv("AMQP_URL"),
			AMQPQueue:     getEnv("AMQP_MAIL_QUEUE", "accounts.mail"),
			KafkaBrokers:  getListEnv("KAFKA_BROKERS"),
			KafkaTopic:    getEnv("KAFKA_MAIL_TOPIC", "accounts.mail"),
			KafkaGroup:    getEnv("KAFKA_MAIL_GROUP", "accounts-mail-worker"),
		},
		Redis: RedisConfig{
			Addr:       os.Getenv("REDIS_ADDR"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         getIntEnv("REDIS_DB", 0),
			RateLimit:  getIntEnv("RATE_LIMIT_MAX", 10),
			RateWindow: getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		},
		Search: SearchConfig{
			Addresses: getListEnv("ELASTICSEARCH_ADDRESSES"),
			Username:  os.Getenv("ELASTICSEARCH_USERNAME"),
			Password:  os.Getenv("ELASTICSEARCH_PASSWORD"),
			Index:     getEnv("ELASTICSEARCH_INDEX", "accounts"),
		},
		Metrics: MetricsConfig{
			Enabled:       getBoolEnv("METRICS_ENABLED", true),
			RequireAPIKey: getBoolEnv("METRICS_REQUIRE_API_KEY", true),
		},
	}, nil
}

func (c *Config) DSN() string {
	return c.MySQL.DSN
}

// ConfigureLogging sets the logrus formatter and level for the environment.
func ConfigureLogging(cfg *Config) error {
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.App.LogLevel, err)
	}
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(level)
	if cfg.App.Env == "development" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        getIntEnv("PASSWORD_MIN_LENGTH", 8),
		RequireUppercase: getBoolEnv("PASSWORD_REQUIRE_UPPERCASE", false),
		RequireLowercase: getBoolEnv("PASSWORD_REQUIRE_LOWERCASE", false),
		RequireNumber:    getBoolEnv("PASSWORD_REQUIRE_NUMBER", false),
		RequireSpecial:   getBoolEnv("PASSWORD_REQUIRE_SPECIAL", false),
	}
}
