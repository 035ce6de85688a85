package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DataDir               string
	ReportsDir            string
	ExpiryWarningDays     int
	AuthSecret            string
	AccessTokenTTLMinutes int
	AdminUsername         string
	AdminPassword         string
}

func Load() Config {
	expiryDays, err := strconv.Atoi(getEnv("EXPIRY_WARNING_DAYS", "15"))
	if err != nil || expiryDays < 1 {
		expiryDays = 15
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}

	dataDir := getEnv("DATA_DIR", "data")

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DataDir:               dataDir,
		ReportsDir:            getEnv("REPORTS_DIR", filepath.Join(dataDir, "reports")),
		ExpiryWarningDays:     expiryDays,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		AdminUsername:         getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:         strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// DefaultDBPath is the store file used when no pointer file selects another.
func (c Config) DefaultDBPath() string {
	return filepath.Join(c.DataDir, "inventory.db")
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
