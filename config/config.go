package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Fulfillment payment policies.
const (
	PaymentPolicyIndependent = "independent"
	PaymentPolicyRequirePaid = "require_paid"
)

type Config struct {
	HTTPPort string
	LogLevel string

	DBDriver   string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	SQLitePath string

	JWTSecret string

	RabbitMQURL     string
	OrderExchange   string
	OrderQueue      string
	DeadLetterQueue string
	DelayExchange   string
	MaxPriority     int

	RedisAddr    string
	ZoneCacheTTL time.Duration

	GatewayBaseURL        string
	GatewayConsumerKey    string
	GatewayConsumerSecret string
	GatewayIPNID          string
	GatewayCallbackURL    string
	GatewayTimeout        time.Duration
	GatewayMaxConcurrency int

	Currency         string
	PhoneCountryCode string

	FulfillmentPaymentPolicy string
	PaymentCheckDelay        time.Duration
	PaymentCheckMaxAttempts  int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	ShopName     string

	OTLPEndpoint string
	CORSOrigins  []string
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBDriver:   getEnv("DB_DRIVER", "mysql"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: getEnvFromFile("DB_PASSWORD_FILE", "DB_PASSWORD", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBName:     getEnv("DB_NAME", "ecommerce"),
		SQLitePath: getEnv("SQLITE_PATH", "./data/orders.db"),

		JWTSecret: getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET", ""),

		RabbitMQURL:     getEnv("RABBITMQ_URL", ""),
		OrderExchange:   getEnv("ORDER_EXCHANGE", "orders_exchange"),
		OrderQueue:      getEnv("ORDER_QUEUE", "orders_queue"),
		DeadLetterQueue: getEnv("DEAD_LETTER_QUEUE", "dead_letter_queue"),
		DelayExchange:   getEnv("DELAY_EXCHANGE", "delay_exchange"),
		MaxPriority:     10,

		RedisAddr:    getEnv("REDIS_ADDR", ""),
		ZoneCacheTTL: getDuration("ZONE_CACHE_TTL", 10*time.Minute),

		GatewayBaseURL:        getEnv("GATEWAY_BASE_URL", "https://cybqa.pesapal.com/pesapalv3"),
		GatewayConsumerKey:    getEnvFromFile("GATEWAY_CONSUMER_KEY_FILE", "GATEWAY_CONSUMER_KEY", ""),
		GatewayConsumerSecret: getEnvFromFile("GATEWAY_CONSUMER_SECRET_FILE", "GATEWAY_CONSUMER_SECRET", ""),
		GatewayIPNID:          getEnv("GATEWAY_IPN_ID", ""),
		GatewayCallbackURL:    getEnv("GATEWAY_CALLBACK_URL", "http://localhost:5173/payment/callback"),
		GatewayTimeout:        getDuration("GATEWAY_TIMEOUT", 10*time.Second),
		GatewayMaxConcurrency: getInt("GATEWAY_MAX_CONCURRENCY", 10),

		Currency:         getEnv("CURRENCY", "KES"),
		PhoneCountryCode: getEnv("PHONE_COUNTRY_CODE", "254"),

		FulfillmentPaymentPolicy: getEnv("FULFILLMENT_PAYMENT_POLICY", PaymentPolicyIndependent),
		PaymentCheckDelay:        getDuration("PAYMENT_CHECK_DELAY", 2*time.Minute),
		PaymentCheckMaxAttempts:  getInt("PAYMENT_CHECK_MAX_ATTEMPTS", 5),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnvFromFile("SMTP_PASSWORD_FILE", "SMTP_PASSWORD", ""),
		MailFrom:     getEnv("MAIL_FROM", "orders@localhost"),
		ShopName:     getEnv("SHOP_NAME", "Shop"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		CORSOrigins:  getList("CORS_ORIGINS", []string{"*"}),
	}
}

// RequirePaidFulfillment reports whether fulfillment past pending needs a completed payment.
func (c *Config) RequirePaidFulfillment() bool {
	return strings.EqualFold(c.FulfillmentPaymentPolicy, PaymentPolicyRequirePaid)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFromFile(fileKey, envKey, defaultValue string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return getEnv(envKey, defaultValue)
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
