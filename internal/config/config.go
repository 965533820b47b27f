package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment          string
	EncryptionKeyBase64  string
	DBHost               string
	DBPort               string
	DBUsername           string
	DBPassword           string
	DBName               string
	DBSSLMode            string
	Port                 string
	ProviderBaseURL      string
	ProviderClientID     string
	ProviderClientSecret string
	SyncDaysWithin       int
}

func NewConfig() (*Config, error) {
	env := os.Getenv("SMARTINBOX_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:          env,
		EncryptionKeyBase64:  os.Getenv("SMARTINBOX_ENCRYPTION_KEY_BASE64"),
		DBHost:               getEnvOrDefault("SMARTINBOX_DB_HOST", "localhost"),
		DBPort:               getEnvOrDefault("SMARTINBOX_DB_PORT", "5432"),
		DBUsername:           getEnvOrDefault("SMARTINBOX_DB_USER", "smartinbox"),
		DBPassword:           os.Getenv("SMARTINBOX_DB_PASSWORD"),
		DBName:               getEnvOrDefault("SMARTINBOX_DB_NAME", "smartinbox"),
		DBSSLMode:            getEnvOrDefault("SMARTINBOX_DB_SSLMODE", "disable"),
		Port:                 getEnvOrDefault("PORT", "8080"),
		ProviderBaseURL:      getEnvOrDefault("MAIL_PROVIDER_BASE_URL", "https://api.aurinko.io/v1"),
		ProviderClientID:     os.Getenv("MAIL_PROVIDER_CLIENT_ID"),
		ProviderClientSecret: os.Getenv("MAIL_PROVIDER_CLIENT_SECRET"),
		SyncDaysWithin:       getEnvIntOrDefault("SMARTINBOX_SYNC_DAYS_WITHIN", 2),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.EncryptionKeyBase64 == "" {
		return fmt.Errorf("SMARTINBOX_ENCRYPTION_KEY_BASE64 is required")
	}

	if c.DBPassword == "" {
		return fmt.Errorf("SMARTINBOX_DB_PASSWORD is required")
	}

	if c.ProviderClientID == "" {
		return fmt.Errorf("MAIL_PROVIDER_CLIENT_ID is required")
	}

	if c.ProviderClientSecret == "" {
		return fmt.Errorf("MAIL_PROVIDER_CLIENT_SECRET is required")
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUsername,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
