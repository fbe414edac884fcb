package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Env                  string
	Port                 string
	MongoURI             string
	MongoDB              string
	JWTSecret            []byte
	PayPalClientID       string
	StripePublishableKey string
	StripeSecretKey      string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	UploadDir            string
}

var validEnvs = map[string]bool{"development": true, "test": true, "production": true}

// Load reads .env (if present) and the process environment, then validates.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	env := getEnv("APP_ENV", "")
	if env == "" {
		env = getEnv("NODE_ENV", "")
	}

	cfg := &Config{
		Env:                  env,
		Port:                 getEnv("PORT", ""),
		MongoURI:             getEnv("MONGO_URI", ""),
		MongoDB:              getEnv("MONGO_DB", "storefront"),
		JWTSecret:            []byte(getEnv("JWT_SECRET", "")),
		PayPalClientID:       getEnv("PAYPAL_CLIENT_ID", ""),
		StripePublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
		StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		UploadDir:            getEnv("UPLOAD_DIR", "uploads"),
	}

	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: REDIS_DB must be an integer")
	}
	cfg.RedisDB = db

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate reports every missing or malformed variable at once.
func (c *Config) Validate() error {
	var errs []error
	if !validEnvs[c.Env] {
		errs = append(errs, fmt.Errorf("NODE_ENV must be one of development, test, production (got %q)", c.Env))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	} else if _, err := strconv.Atoi(strings.TrimPrefix(c.Port, ":")); err != nil {
		errs = append(errs, fmt.Errorf("PORT must be numeric (got %q)", c.Port))
	}
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if len(c.JWTSecret) == 0 {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.PayPalClientID == "" {
		errs = append(errs, errors.New("PAYPAL_CLIENT_ID is required"))
	}
	if c.StripePublishableKey == "" {
		errs = append(errs, errors.New("STRIPE_PUBLISHABLE_KEY is required"))
	}
	if c.StripeSecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address in ":port" form.
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
