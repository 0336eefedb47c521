package config

import (
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Config holds process-wide singletons
type Config struct {
	Validator *validator.Validate
}

// AppConfig represents the application configuration
type AppConfig struct {
	Port             string
	FrontendURL      string
	DBPath           string
	SellerEmail      string
	SellerName       string
	BrevoAPIKey      string
	OpenSearchURL    string
	OpenSearchUser   string
	OpenSearchPass   string
	EnableLogging    bool
	LoggingLevel     string
	ActiveProvider   string
	ProviderTestMode bool
}

var (
	instance          *Config
	appConfigInstance *AppConfig
)

func App() *Config {
	if instance == nil {
		instance = &Config{
			Validator: validator.New(),
		}
	}
	return instance
}

// GetAppConfig returns the application configuration
func GetAppConfig() *AppConfig {
	if appConfigInstance == nil {
		appConfigInstance = &AppConfig{
			Port:             GetEnv("APP_PORT", "4000"),
			FrontendURL:      GetEnv("FRONTEND_URL", "http://localhost:3000"),
			DBPath:           GetEnv("DB_PATH", "data/elisishop.db"),
			SellerEmail:      GetEnv("SELLER_EMAIL", "seller@example.com"),
			SellerName:       GetEnv("SELLER_NAME", "Seller"),
			BrevoAPIKey:      GetEnv("BREVO_API_KEY", ""),
			OpenSearchURL:    GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
			OpenSearchUser:   GetEnv("OPENSEARCH_USER", ""),
			OpenSearchPass:   GetEnv("OPENSEARCH_PASSWORD", ""),
			EnableLogging:    GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
			LoggingLevel:     GetEnv("LOGGING_LEVEL", "info"),
			ActiveProvider:   GetEnv("PAYMENT_PROVIDER", "paytr"),
			ProviderTestMode: GetBoolEnv("PAYMENT_TEST_MODE", true),
		}
	}
	return appConfigInstance
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
