package config

import (
	"fmt"
	"os"
)

// Config holds application configuration
type Config struct {
	Port         string
	DBConn       string
	Storage      string
	LogLevel     string
	JWTSecret    string
	ECBURL       string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		DBConn:       getEnv("DB_CONN", "host=localhost port=5432 user=bank password=bank dbname=bank sslmode=disable"),
		Storage:      getEnv("STORAGE", "postgres"),
		LogLevel:     getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		ECBURL:       getEnv("ECB_URL", "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SenderEmail:  getEnv("SENDER_EMAIL", "noreply@altbank.example"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Storage != "postgres" && cfg.Storage != "memory" {
		return nil, fmt.Errorf("STORAGE must be postgres or memory, got %q", cfg.Storage)
	}
	if cfg.Storage == "postgres" && cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
