package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port           int
	JWTSecret      string
	DatabaseURL    string
	PaymentSecret  string // shared secret for gateway callback signatures
	PaymentBaseURL string // checkout link base
	CORSOrigins    []string
	AdminEmail     string
	AdminPassword  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, _ := strconv.Atoi(getEnv("PORT", "4001"))

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	paymentSecret := getEnv("PAYMENT_WEBHOOK_SECRET", "")
	if paymentSecret == "" {
		return nil, fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required")
	}

	origins := strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Port:           port,
		JWTSecret:      jwtSecret,
		DatabaseURL:    dbURL,
		PaymentSecret:  paymentSecret,
		PaymentBaseURL: getEnv("PAYMENT_BASE_URL", "https://pay.example.com"),
		CORSOrigins:    origins,
		AdminEmail:     getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword:  getEnv("ADMIN_PASSWORD", "admin123"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
