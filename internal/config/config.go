/**
 * @description
 * Configuration management for the ledger-service. Uses Viper to read
 * environment variables (plus an optional .env file), providing a
 * centralized way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the ledger-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	DatabaseURL               string `mapstructure:"DATABASE_URL"`
	RedisURL                  string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	JWTSecret                 string `mapstructure:"JWT_SECRET"`
	InternalAPIKey            string `mapstructure:"INTERNAL_API_KEY"`
	ActivationBaseURL         string `mapstructure:"ACTIVATION_BASE_URL"`
	CORSAllowedOrigins        string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	VerifyEmailRatePerMinute  int    `mapstructure:"VERIFY_EMAIL_RATE_LIMIT_PER_MINUTE"`
	AdminCommandRatePerMinute int    `mapstructure:"ADMIN_CMD_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given
// path. It uses Viper to automatically bind environment variables to the
// Config struct.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "ledger:rate_limit")
	viper.SetDefault("ACTIVATION_BASE_URL", "http://localhost:3000")
	viper.SetDefault("VERIFY_EMAIL_RATE_LIMIT_PER_MINUTE", 5)
	viper.SetDefault("ADMIN_CMD_RATE_LIMIT_PER_MINUTE", 30)

	// Bind environment variables explicitly so they appear in Unmarshal.
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "LEDGER_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("ACTIVATION_BASE_URL")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("VERIFY_EMAIL_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("ADMIN_CMD_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the optional config file; only its absence is fine.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	if config.InternalAPIKey == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("LEDGER_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "ledger:rate_limit"
	}
	config.ActivationBaseURL = strings.TrimRight(strings.TrimSpace(config.ActivationBaseURL), "/")
	if config.ActivationBaseURL == "" {
		config.ActivationBaseURL = "http://localhost:3000"
	}

	if config.VerifyEmailRatePerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative verify-email rate limit; disabling\" value=%d", config.VerifyEmailRatePerMinute)
		config.VerifyEmailRatePerMinute = 0
	}
	if config.AdminCommandRatePerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative admin-cmd rate limit; disabling\" value=%d", config.AdminCommandRatePerMinute)
		config.AdminCommandRatePerMinute = 0
	}

	return
}
