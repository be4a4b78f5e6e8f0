package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr          string
	DBPath        string
	MigrationsDir string
	StaticDir     string
	IconsDir      string
	CORSOrigin    string
	SessionTTL    time.Duration
	// AdminPassword seeds the credential row on first run. Deployments should
	// set it; the "admin" fallback is warned about on every startup.
	AdminPassword string
	// Redis - optional, in-memory sessions when empty
	RedisURL string
	// Meilisearch - optional, SQLite fallback search when empty
	MeiliURL       string
	MeiliMasterKey string
}

func Load() Config {
	return Config{
		Addr:           getenv("NAVBOARD_ADDR", ":5000"),
		DBPath:         getenv("NAVBOARD_DB_PATH", "./data/nav.db"),
		MigrationsDir:  getenv("NAVBOARD_MIGRATIONS_DIR", "./db/migrations"),
		StaticDir:      getenv("NAVBOARD_STATIC_DIR", "./web"),
		IconsDir:       getenv("NAVBOARD_ICONS_DIR", "./data/icons"),
		CORSOrigin:     getenv("NAVBOARD_CORS_ORIGIN", "*"),
		SessionTTL:     time.Duration(getenvInt("NAVBOARD_SESSION_TTL_SECONDS", 900)) * time.Second,
		AdminPassword:  getenv("NAVBOARD_ADMIN_PASSWORD", ""),
		RedisURL:       getenv("REDIS_URL", ""),
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
