package config

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	awspkg "github.com/Spare-Link/storefront/pkg/aws"
	"github.com/joho/godotenv"
)

// Config holds the loaded configuration
type Config struct {
	Port           string
	Env            string
	BackendURL     string
	PublishableKey string
	RequestTimeout time.Duration

	// Response cache for cacheable commerce GETs. Empty RedisURL keeps it in memory.
	RedisURL string
	CacheTTL time.Duration

	SessionTTL     time.Duration
	AllowedOrigins []string
	RateLimitRPM   int
	RateLimitBurst int

	// Checkout events: SNS wins when both are set.
	CheckoutSNSTopicARN string
	KafkaBrokers        []string
	KafkaTopic          string

	// Carrier quote audit trail; disabled when PostgresHost is empty.
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	CloudWatchEnabled bool
	// CloudWatchLogGroup tees logs to CloudWatch Logs when metrics are enabled.
	CloudWatchLogGroup string
}

// Load reads .env (when present) and the environment. With AWS_USE_SECRETS=true
// the publishable key and database password come from a JSON secret in
// Secrets Manager.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := Config{
		Port:                getEnv("PORT", "8000"),
		Env:                 getEnv("APP_ENV", "development"),
		BackendURL:          strings.TrimSuffix(getEnv("MEDUSA_BACKEND_URL", "http://localhost:9000"), "/"),
		PublishableKey:      os.Getenv("MEDUSA_PUBLISHABLE_KEY"),
		RequestTimeout:      getDuration("REQUEST_TIMEOUT", 10*time.Second),
		RedisURL:            os.Getenv("REDIS_URL"),
		CacheTTL:            getDuration("CACHE_TTL", 5*time.Minute),
		SessionTTL:          getDuration("SESSION_TTL", 30*time.Minute),
		AllowedOrigins:      getList("ALLOWED_ORIGINS", "http://localhost:8000,http://localhost:3000"),
		RateLimitRPM:        getInt("RATE_LIMIT_RPM", 300),
		RateLimitBurst:      getInt("RATE_LIMIT_BURST", 50),
		CheckoutSNSTopicARN: os.Getenv("CHECKOUT_SNS_TOPIC_ARN"),
		KafkaBrokers:        getList("KAFKA_BROKERS", ""),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "checkout.events"),
		PostgresHost:        os.Getenv("POSTGRES_HOST"),
		PostgresPort:        getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:        os.Getenv("POSTGRES_USER"),
		PostgresPassword:    os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:          os.Getenv("POSTGRES_DB"),
		PostgresSSLMode:     getEnv("POSTGRES_SSLMODE", "disable"),
		CloudWatchEnabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchLogGroup:  os.Getenv("CLOUDWATCH_LOG_GROUP"),
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		ctx := context.Background()
		if awsCfg, err := awspkg.LoadAWSConfig(ctx); err == nil {
			name := getEnv("AWS_SECRET_NAME", "storefront/checkout")
			if fields, err := awspkg.NewSecretsClient(awsCfg).GetSecretFields(ctx, name); err == nil {
				cfg.applySecrets(fields)
			} else {
				log.Printf("secrets unavailable, using environment: %v", err)
			}
		} else {
			log.Printf("AWS config unavailable, secrets skipped: %v", err)
		}
	}

	return cfg
}

// applySecrets overrides credentials with the non-empty fields of the
// storefront secret.
func (c *Config) applySecrets(fields map[string]string) {
	if v := fields["MEDUSA_PUBLISHABLE_KEY"]; v != "" {
		c.PublishableKey = v
	}
	if v := fields["POSTGRES_PASSWORD"]; v != "" {
		c.PostgresPassword = v
	}
}

// PostgresEnabled reports whether the quote audit trail should be connected.
func (c Config) PostgresEnabled() bool {
	return c.PostgresHost != "" && c.PostgresUser != "" && c.PostgresDB != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(strings.TrimSuffix(p, "/")); p != "" {
			out = append(out, p)
		}
	}
	return out
}
