package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	URL             string        `yaml:"url"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	JWTTTL     int    `yaml:"jwt_ttl_hours"`
	SessionKey string `yaml:"session_key"`
}

type PublicConfig struct {
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type Config struct {
	Addr        string       `yaml:"addr"`
	Env         string       `yaml:"env"`
	LogLevel    string       `yaml:"log_level"`
	CORSOrigins []string     `yaml:"cors_origins"`
	DB          DBConfig     `yaml:"database"`
	Auth        AuthConfig   `yaml:"auth"`
	Public      PublicConfig `yaml:"public"`
}

func defaults() *Config {
	return &Config{
		Addr:        ":8080",
		Env:         "development",
		LogLevel:    "info",
		CORSOrigins: []string{"http://localhost:3000"},
		DB: DBConfig{
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		Auth: AuthConfig{
			JWTTTL: 24,
		},
		Public: PublicConfig{
			RateLimit: 1,
			RateBurst: 5,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order of precedence (environment wins).
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Addr = getEnv("SERVER_ADDR", cfg.Addr)
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		cfg.CORSOrigins = strings.Split(origins, ",")
	}

	cfg.DB.URL = getEnv("DATABASE_URL", cfg.DB.URL)
	cfg.DB.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", cfg.DB.MaxIdleConns)
	cfg.DB.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", cfg.DB.MaxOpenConns)
	cfg.DB.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", cfg.DB.ConnMaxLifetime)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTTTL = getEnvAsInt("JWT_TTL_HOURS", cfg.Auth.JWTTTL)
	cfg.Auth.SessionKey = getEnv("SESSION_KEY", cfg.Auth.SessionKey)

	cfg.Public.RateLimit = getEnvAsFloat("PUBLIC_RATE_LIMIT", cfg.Public.RateLimit)
	cfg.Public.RateBurst = getEnvAsInt("PUBLIC_RATE_BURST", cfg.Public.RateBurst)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is not set")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
