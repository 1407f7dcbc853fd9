package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the service reads from the environment.
// Upstream credentials are the two cookies a logged-in LeetCode session
// holds; without them the dump endpoint answers 403 and the service falls
// back to the GraphQL path.
type Config struct {
	ListenAddr string
	DBPath     string

	LeetCodeBaseURL string
	SessionCookie   string
	CSRFToken       string
	Username        string

	HTTPTimeout     time.Duration
	RefreshInterval time.Duration
	CORSOrigins     []string
}

// Load reads config.env (when present) and the process environment.
func Load() (*Config, error) {
	godotenv.Load("config.env")

	cfg := &Config{
		ListenAddr: getEnvString("LISTEN_ADDR", ":8080"),
		DBPath:     getEnvString("DB_PATH", "leetgoal.db"),

		LeetCodeBaseURL: strings.TrimRight(getEnvString("LEETCODE_BASE_URL", "https://leetcode.com"), "/"),
		SessionCookie:   getEnvString("LEETCODE_SESSION", ""),
		CSRFToken:       getEnvString("LEETCODE_CSRF_TOKEN", ""),
		Username:        getEnvString("LEETCODE_USERNAME", ""),

		HTTPTimeout:     time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		RefreshInterval: time.Duration(getEnvInt("REFRESH_INTERVAL_MINUTES", 15)) * time.Minute,
		CORSOrigins:     getEnvStringSlice("CORS_ORIGINS", []string{"*"}),
	}

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
