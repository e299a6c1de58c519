package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
)

// Config holds all application configuration
type Config struct {
	// HTTP server
	ListenAddr string

	// Database configuration
	DatabaseURL string

	// Auth configuration
	JWTSecret      string
	JWTExpiryHours int

	// Bootstrap admin account, created at startup when both are set
	AdminEmail    string
	AdminPassword string

	// Cache configuration; empty RedisURL selects the in-process store
	RedisURL string

	// Rate limiting for the public registration endpoint
	RegistrationRateLimit int // requests per minute per client IP

	// Business settings
	RegistrationFee float64
	Paybill         string

	// M-Pesa gateway configuration
	MpesaConsumerKey    string
	MpesaConsumerSecret string
	MpesaShortcode      string
	MpesaInitiatorName  string
	MpesaInitiatorPass  string
	MpesaPasskey        string
	MpesaEnvironment    string // "sandbox" or "production"
	CallbackBaseURL     string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		ListenAddr:  os.Getenv("LISTEN_ADDR"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTExpiryHours: 24,

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		RedisURL: os.Getenv("REDIS_URL"),

		RegistrationRateLimit: 10,

		RegistrationFee: 100,
		Paybill:         os.Getenv("MPESA_SHORTCODE"),

		MpesaConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		MpesaConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		MpesaShortcode:      os.Getenv("MPESA_SHORTCODE"),
		MpesaInitiatorName:  os.Getenv("MPESA_INITIATOR_NAME"),
		MpesaInitiatorPass:  os.Getenv("MPESA_INITIATOR_PASSWORD"),
		MpesaPasskey:        os.Getenv("MPESA_PASSKEY"),
		MpesaEnvironment:    os.Getenv("MPESA_ENV"),
		CallbackBaseURL:     os.Getenv("CALLBACK_BASE_URL"),

		Environment: os.Getenv("ENVIRONMENT"),
	}

	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.MpesaEnvironment == "" {
		config.MpesaEnvironment = "sandbox"
	}
	if hours := os.Getenv("JWT_EXPIRY_HOURS"); hours != "" {
		if parsed, err := strconv.Atoi(hours); err == nil {
			config.JWTExpiryHours = parsed
		}
	}
	if limit := os.Getenv("REGISTRATION_RATE_LIMIT"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil {
			config.RegistrationRateLimit = parsed
		}
	}
	if fee := os.Getenv("REGISTRATION_FEE"); fee != "" {
		if parsed, err := strconv.ParseFloat(fee, 64); err == nil {
			config.RegistrationFee = parsed
		}
	}

	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required")
		}
	}

	return config, nil
}
