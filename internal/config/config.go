package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	PublicBaseURL  string
	LogLevel       string
	ClinicName     string
	ClinicTimezone string

	// Sessions
	SessionBackend       string
	SessionIdleTimeout   time.Duration
	SessionSweepInterval time.Duration
	RedisAddr            string
	RedisPassword        string
	RedisTLS             bool

	// Patient persistence
	PatientStore    string
	MongoURI        string
	MongoDatabase   string
	DatabaseURL     string
	EscalationDBURL string
	LookupTimeout   time.Duration

	// Messaging transport
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioFromNumber    string
	TwilioWebhookSecret string
	SendTimeout         time.Duration
	OutboxWorkers       int
	OutboxBuffer        int
	InboundRateLimit    float64
	InboundRateBurst    int

	// Notification sinks
	SinkTimeout           time.Duration
	EmailProvider         string
	SendGridAPIKey        string
	SendGridFromEmail     string
	SendGridFromName      string
	ClinicEmailRecipients []string
	NotificationQueueURL  string
	StaffAlertNumbers     []string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Payments
	StripeSecretKey       string
	PaymentSuccessURL     string
	PaymentCancelURL      string
	PaymentTimeout        time.Duration
	PaymentCallbackSecret string

	// Dashboard
	AdminJWTSecret       string
	CORSAllowedOrigins   []string
	DashboardPlaceholder bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ClinicName:     getEnv("CLINIC_NAME", "PinkHealth Clinic"),
		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "Asia/Kolkata"),

		SessionBackend:       strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "memory"))),
		SessionIdleTimeout:   getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionSweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisTLS:             getEnvAsBool("REDIS_TLS", false),

		PatientStore:    strings.ToLower(strings.TrimSpace(getEnv("PATIENT_STORE", "memory"))),
		MongoURI:        getEnv("MONGODB_URI", ""),
		MongoDatabase:   getEnv("MONGODB_DATABASE", "pinkhealth"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		EscalationDBURL: getEnv("ESCALATION_DATABASE_URL", ""),
		LookupTimeout:   getEnvAsDuration("LOOKUP_TIMEOUT", 2*time.Second),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:    getEnv("TWILIO_FROM_NUMBER", ""),
		TwilioWebhookSecret: getEnv("TWILIO_WEBHOOK_SECRET", ""),
		SendTimeout:         getEnvAsDuration("SEND_TIMEOUT", 10*time.Second),
		OutboxWorkers:       getEnvAsInt("OUTBOX_WORKERS", 4),
		OutboxBuffer:        getEnvAsInt("OUTBOX_BUFFER", 256),
		InboundRateLimit:    getEnvAsFloat("INBOUND_RATE_LIMIT", 5),
		InboundRateBurst:    getEnvAsInt("INBOUND_RATE_BURST", 20),

		SinkTimeout:           getEnvAsDuration("SINK_TIMEOUT", 5*time.Second),
		EmailProvider:         strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:        getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:     getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:      getEnv("SENDGRID_FROM_NAME", "PinkHealth Clinic"),
		ClinicEmailRecipients: getEnvAsList("CLINIC_EMAIL_RECIPIENTS"),
		NotificationQueueURL:  getEnv("NOTIFICATION_QUEUE_URL", ""),
		StaffAlertNumbers:     getEnvAsList("STAFF_ALERT_NUMBERS"),

		AWSRegion:           getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		StripeSecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
		PaymentSuccessURL:     getEnv("PAYMENT_SUCCESS_URL", ""),
		PaymentCancelURL:      getEnv("PAYMENT_CANCEL_URL", ""),
		PaymentTimeout:        getEnvAsDuration("PAYMENT_TIMEOUT", 3*time.Second),
		PaymentCallbackSecret: getEnv("PAYMENT_CALLBACK_SECRET", ""),

		AdminJWTSecret:       getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS"),
		DashboardPlaceholder: getEnvAsBool("DASHBOARD_PLACEHOLDER", false),
	}
}

// Location resolves the clinic timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || c.ClinicTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
