package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the license server.
type Config struct {
	ListenAddr         string
	DBDriver           string
	DBDSN              string
	AdminKey           string
	CouponSecret       string
	FreeDailyLimit     int
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
	Debug              bool
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:         getEnv("LISTEN_ADDR", ":5005"),
		DBDriver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:              getEnv("DB_DSN", filepath.Join("data", "license.db")),
		FreeDailyLimit:     getInt("FREE_DAILY_LIMIT", 10),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RequestTimeout:     time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 15)),
		Debug:              getBool("DEBUG", false),
	}

	cfg.AdminKey = os.Getenv("ADMIN_KEY")
	cfg.CouponSecret = os.Getenv("COUPON_SECRET")

	var missing []string
	if cfg.AdminKey == "" {
		missing = append(missing, "ADMIN_KEY")
	}
	if cfg.CouponSecret == "" {
		missing = append(missing, "COUPON_SECRET")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "mysql" {
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q (want sqlite or mysql)", cfg.DBDriver)
	}
	if cfg.FreeDailyLimit <= 0 {
		return Config{}, fmt.Errorf("FREE_DAILY_LIMIT must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	// Running without an env file is fine; everything can come from the
	// process environment.
	return nil
}
