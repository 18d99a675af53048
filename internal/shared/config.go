package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	AuthBase    string
	StorageBase string
	ServiceKey  string
	Bucket      string
	GeocodeBase string
	AdminEmails []string
	Workers     int
	CacheTTL    time.Duration
}

func Load() Config {
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/terrenos?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisDB:     atoi("REDIS_DB", 0),
		RedisPass:   env("REDIS_PASSWORD", ""),
		AuthBase:    env("AUTH_BASE_URL", "http://localhost:9999"),
		StorageBase: env("STORAGE_BASE_URL", "http://localhost:5000"),
		ServiceKey:  env("SERVICE_KEY", ""),
		Bucket:      env("STORAGE_BUCKET", "listing-photos"),
		GeocodeBase: env("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org"),
		AdminEmails: ParseAdminEmails(env("ADMIN_EMAILS", "")),
		Workers:     atoi("IMPORT_WORKERS", 4),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
	}
	if c.ServiceKey == "" {
		log.Warn().Msg("SERVICE_KEY is empty")
	}
	if len(c.AdminEmails) == 0 {
		log.Warn().Msg("ADMIN_EMAILS is empty; every admin endpoint will reject")
	}
	return c
}

// ParseAdminEmails splits the comma-separated allow-list, trimming and
// case-folding each entry. Parsed once at startup; there is no reload path.
func ParseAdminEmails(raw string) []string {
	var out []string
	for _, e := range strings.Split(raw, ",") {
		if t := strings.ToLower(strings.TrimSpace(e)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
