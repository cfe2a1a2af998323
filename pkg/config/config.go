package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServiceName string
	AppEnv      string
	LogLevel    string

	ServerPort int

	DBDriver      string
	DatabaseURL   string
	DBAutoMigrate bool

	JWTSecret []byte
	JWTTTL    time.Duration

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	RedisURL string

	PayPal PayPalConfig

	PublicBaseURL string
	FrontendURL   string

	ProductDeleteMode string
}

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	Mode         string
	WebhookID    string
	Currency     string
	BrandName    string
}

func Load() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "game_store"),
		AppEnv:      EnvDefault("APP_ENV", "production"),
		LogLevel:    os.Getenv("LOG_LEVEL"),

		ServerPort: EnvIntDefault("SERVER_PORT", 8080),

		DBDriver:      EnvDefault("DB_DRIVER", "postgres"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		DBAutoMigrate: EnvBoolDefault("DB_AUTO_MIGRATE", false),

		JWTSecret: []byte(os.Getenv("JWT_SECRET")),
		JWTTTL:    EnvDurationDefault("JWT_TTL", 24*time.Hour),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "products"),

		RedisURL: os.Getenv("REDIS_URL"),

		PayPal: PayPalConfig{
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
			Mode:         EnvDefault("PAYPAL_MODE", "sandbox"),
			WebhookID:    os.Getenv("PAYPAL_WEBHOOK_ID"),
			Currency:     EnvDefault("PAYPAL_CURRENCY", "EUR"),
			BrandName:    EnvDefault("PAYPAL_BRAND_NAME", "Game Store"),
		},

		PublicBaseURL: strings.TrimRight(EnvDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		FrontendURL:   strings.TrimRight(os.Getenv("FRONTEND_URL"), "/"),

		ProductDeleteMode: EnvDefault("PRODUCT_DELETE_MODE", "logical"),
	}
}

// IsDevelopment reports whether unverified webhooks may be processed.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
