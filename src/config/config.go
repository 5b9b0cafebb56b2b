package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	JWTSecret    string
	Port         string
	DatabasePath string
	LogLevel     string

	// Marketplace platform credentials. All of these are required; absence
	// of any one is a configuration fault reported at startup.
	LWAClientID     string
	LWAClientSecret string
	LWARefreshToken string
	LWATokenURL     string
	AWSAccessKey    string
	AWSSecretKey    string
	AWSRegion       string
	APIEndpoint     string

	DefaultMarketplaceID string

	// Per-operation budgets for outbound calls.
	HTTPTimeout      time.Duration
	FinancesPageTime time.Duration

	EmailServiceProvider string

	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	MailgunDomain        string
	MailgunPrivateAPIKey string

	SenderEmail string
	SenderName  string
	AlertEmail  string
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	jwtSecret := getEnv("JWT_SECRET", "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes")
	if jwtSecret == "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes" {
		log.Println("WARNING: Using default insecure JWT_SECRET. Set JWT_SECRET environment variable for production.")
	}

	Cfg = &AppConfig{
		JWTSecret:    jwtSecret,
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./sellersync.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		LWAClientID:     getEnv("SP_LWA_CLIENT_ID", ""),
		LWAClientSecret: getEnv("SP_LWA_CLIENT_SECRET", ""),
		LWARefreshToken: getEnv("SP_LWA_REFRESH_TOKEN", ""),
		LWATokenURL:     getEnv("SP_LWA_TOKEN_URL", "https://api.amazon.com/auth/o2/token"),
		AWSAccessKey:    getEnv("SP_AWS_ACCESS_KEY", ""),
		AWSSecretKey:    getEnv("SP_AWS_SECRET_KEY", ""),
		AWSRegion:       getEnv("SP_AWS_REGION", ""),
		APIEndpoint:     getEnv("SP_API_ENDPOINT", ""),

		DefaultMarketplaceID: getEnv("SP_MARKETPLACE_ID", ""),

		HTTPTimeout:      getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),
		FinancesPageTime: getEnvAsDuration("FINANCES_PAGE_TIMEOUT", 45*time.Second),

		EmailServiceProvider: getEnv("EMAIL_SERVICE_PROVIDER", "mock"),

		SMTPServer:   getEnv("SMTP_SERVER", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		MailgunDomain:        getEnv("MAILGUN_DOMAIN", ""),
		MailgunPrivateAPIKey: getEnv("MAILGUN_PRIVATE_API_KEY", ""),

		SenderEmail: getEnv("SENDER_EMAIL", "noreply@example.com"),
		SenderName:  getEnv("SENDER_NAME", "Sellersync"),
		AlertEmail:  getEnv("ALERT_EMAIL", ""),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, Region=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.AWSRegion)
}

// ValidateMarketplaceCredentials checks every required marketplace setting
// and reports all missing keys in a single error rather than the first one
// found. A missing credential is a configuration fault, never a runtime
// error to recover from.
func (c *AppConfig) ValidateMarketplaceCredentials() error {
	required := []struct {
		key   string
		value string
	}{
		{"SP_LWA_CLIENT_ID", c.LWAClientID},
		{"SP_LWA_CLIENT_SECRET", c.LWAClientSecret},
		{"SP_LWA_REFRESH_TOKEN", c.LWARefreshToken},
		{"SP_AWS_ACCESS_KEY", c.AWSAccessKey},
		{"SP_AWS_SECRET_KEY", c.AWSSecretKey},
		{"SP_AWS_REGION", c.AWSRegion},
		{"SP_API_ENDPOINT", c.APIEndpoint},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing marketplace configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
