package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      *AppConfig      `yaml:"app"`
	Database *DatabaseConfig `yaml:"database"`
	Redis    *RedisConfig    `yaml:"redis"`
	SMS      *SMSConfig      `yaml:"sms"`
	Payment  *PaymentConfig  `yaml:"payment"`
	Storage  *StorageConfig  `yaml:"storage"`
	Security *SecurityConfig `yaml:"security"`
	Claims   *ClaimsConfig   `yaml:"claims"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Debug       bool   `yaml:"debug"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

type SecurityConfig struct {
	JWTSecret          string   `yaml:"jwt_secret"`
	JWTIssuer          string   `yaml:"jwt_issuer"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	TrustedProxies     []string `yaml:"trusted_proxies"`
}

const defaultJWTSecret = "change-me-jwt-secret"

// Load reads configuration from the environment, after applying a .env file
// from the working directory when one exists. Variables already set in the
// environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := &Config{
		App: &AppConfig{
			Name:        getEnv("APP_NAME", "DealDrop"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
			Host:        getEnv("APP_HOST", "localhost"),
			Port:        getEnvAsInt("APP_PORT", 8080),
			Debug:       getEnvAsBool("APP_DEBUG", false),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "json"),
		},
		Database: loadDatabaseConfig(),
		Redis:    loadRedisConfig(),
		SMS:      loadSMSConfig(),
		Payment:  loadPaymentConfig(),
		Storage:  loadStorageConfig(),
		Security: &SecurityConfig{
			JWTSecret:          getEnv("JWT_SECRET", defaultJWTSecret),
			JWTIssuer:          getEnv("JWT_ISSUER", "dealdrop"),
			CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			TrustedProxies:     getEnvAsSlice("TRUSTED_PROXIES", nil),
		},
		Claims: loadClaimsConfig(),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate reports every setting the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Claims.CodeMaxAttempts < 1 {
		errs = append(errs, errors.New("CLAIM_CODE_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Claims.CheckoutSessionTTL < 30*time.Minute {
		errs = append(errs, errors.New("CHECKOUT_SESSION_TTL must be at least 30m"))
	}
	if c.App.IsProduction() && c.Security.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	errs = append(errs, c.Storage.validate(), c.SMS.validate(), c.Payment.validate())
	return errors.Join(errs...)
}
