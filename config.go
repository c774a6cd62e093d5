package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sanjay9342/ramesh-computers/database"
	aws_pkg "github.com/sanjay9342/ramesh-computers/pkg/aws"
	"github.com/sanjay9342/ramesh-computers/services"
)

const appSecretName = "storefront/APP_SECRETS"

// Config holds all configuration for the storefront API.
type Config struct {
	Port   string
	AppEnv string

	StoreDriver   string
	MongoURL      string
	MongoDB       string
	ProductsTable string
	OrdersTable   string

	RedisURL string

	KafkaBrokers      []string
	OrderEventsTopic  string
	OrderSNSTopicARN  string
	NotificationQueue string

	ResendAPIKey string
	MailFrom     string
	AdminEmail   string
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPass     string

	RazorpayKeyID     string
	RazorpayKeySecret string

	JWTSecret      string
	AllowedOrigins []string

	Retry            services.RetryPolicy
	StatusPolicy     services.StatusPolicy
	ReminderDelay    time.Duration
	ReminderInterval time.Duration

	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string
}

// LoadConfig reads configuration from environment variables with optional
// Secrets Manager override.
func LoadConfig(ctx context.Context) (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "5000"),
		AppEnv:              getEnv("APP_ENV", "development"),
		StoreDriver:         getEnv("STORE_DRIVER", database.DriverMongo),
		MongoURL:            os.Getenv("MONGO_URL"),
		MongoDB:             getEnv("MONGO_DB", "ramesh_computers"),
		ProductsTable:       os.Getenv("DYNAMODB_PRODUCTS_TABLE"),
		OrdersTable:         os.Getenv("DYNAMODB_ORDERS_TABLE"),
		RedisURL:            os.Getenv("REDIS_URL"),
		KafkaBrokers:        splitList(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic:    getEnv("ORDER_EVENTS_TOPIC", "order-events"),
		OrderSNSTopicARN:    os.Getenv("ORDER_SNS_TOPIC_ARN"),
		NotificationQueue:   os.Getenv("NOTIFICATION_QUEUE_URL"),
		ResendAPIKey:        os.Getenv("RESEND_API_KEY"),
		MailFrom:            os.Getenv("MAIL_FROM"),
		AdminEmail:          os.Getenv("ADMIN_EMAIL"),
		SMTPHost:            os.Getenv("SMTP_HOST"),
		SMTPPort:            getEnv("SMTP_PORT", "587"),
		SMTPUser:            os.Getenv("SMTP_USER"),
		SMTPPass:            os.Getenv("SMTP_PASS"),
		RazorpayKeyID:       os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:   os.Getenv("RAZORPAY_KEY_SECRET"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		AllowedOrigins:      splitList(getEnv("ALLOWED_ORIGINS", "*")),
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "RameshComputers"),
		CloudWatchLogGroup:  os.Getenv("CLOUDWATCH_LOG_GROUP"),
	}

	var errs []error
	def := services.DefaultRetryPolicy()
	cfg.Retry = services.RetryPolicy{
		MaxAttempts: envInt("TX_MAX_ATTEMPTS", def.MaxAttempts, &errs),
		BaseDelay:   envDuration("TX_BASE_BACKOFF", def.BaseDelay, &errs),
		MaxDelay:    envDuration("TX_MAX_BACKOFF", def.MaxDelay, &errs),
	}
	cfg.ReminderDelay = envDuration("REMINDER_DELAY", services.DefaultReminderDelay, &errs)
	cfg.ReminderInterval = envDuration("REMINDER_INTERVAL", services.DefaultReminderInterval, &errs)
	cfg.CloudWatchEnabled = envBool("CLOUDWATCH_ENABLED", false, &errs)

	policy, err := services.ParseStatusPolicy(os.Getenv("ORDER_STATUS_POLICY"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.StatusPolicy = policy

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// Override credentials from Secrets Manager when running on AWS
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config for secrets: %w", err)
		}
		secrets, err := aws_pkg.NewSecretsClient(awsCfg).GetSecretMap(ctx, appSecretName)
		if err != nil {
			return nil, err
		}
		cfg.applySecrets(secrets)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySecrets overrides credentials with the non-empty values of m.
func (c *Config) applySecrets(m map[string]string) {
	targets := map[string]*string{
		"MONGO_URL":           &c.MongoURL,
		"REDIS_URL":           &c.RedisURL,
		"RESEND_API_KEY":      &c.ResendAPIKey,
		"SMTP_USER":           &c.SMTPUser,
		"SMTP_PASS":           &c.SMTPPass,
		"RAZORPAY_KEY_ID":     &c.RazorpayKeyID,
		"RAZORPAY_KEY_SECRET": &c.RazorpayKeySecret,
		"JWT_SECRET":          &c.JWTSecret,
	}
	for key, dst := range targets {
		if v, ok := m[key]; ok && v != "" {
			*dst = v
		}
	}
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case database.DriverMongo:
		if c.MongoURL == "" {
			return fmt.Errorf("MONGO_URL is required for the mongo store")
		}
	case database.DriverDynamoDB:
		if c.ProductsTable == "" || c.OrdersTable == "" {
			return fmt.Errorf("DYNAMODB_PRODUCTS_TABLE and DYNAMODB_ORDERS_TABLE are required for the dynamodb store")
		}
	case database.DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1")
	}
	if c.ReminderInterval <= 0 {
		return fmt.Errorf("REMINDER_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func envBool(key string, fallback bool, errs *[]error) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
