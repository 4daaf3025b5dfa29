package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable; required ones are enforced by must() and
// missing values abort startup.
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	Port   string // HTTP port to listen on
	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret    string // secret used to sign session tokens
	TokenTTLMin  int    // session token time-to-live in minutes
	LongTTLDays  int    // "remember me" token time-to-live in days
	BcryptCost   int    // bcrypt cost for staff password hashing
	CacheTTL     time.Duration // default expiry for cache entries
	CacheLongTTL time.Duration // long expiry for cache entries

	WXAppID     string // mini-program app id for code exchange
	WXAppSecret string // mini-program app secret

	ViewsCron string // cron expression for the view flush job
	LikesCron string // cron expression for the like flush job
	RatesCron string // cron expression for the rate flush job
}

// Load reads configuration from the environment. The flush jobs default
// to staggered quarter-hour schedules so they never contend for the same
// tick.
func Load() Config {
	return Config{
		Env:          must("APP_ENV"),
		Port:         must("APP_PORT"),
		DBUser:       must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"),
		DBHost:       must("DB_HOST"),
		DBPort:       must("DB_PORT"),
		DBName:       must("DB_NAME"),
		JWTSecret:    must("JWT_SECRET"),
		TokenTTLMin:  mustInt("TOKEN_TTL_MIN"),
		LongTTLDays:  mustInt("TOKEN_TTL_LONG_DAYS"),
		BcryptCost:   mustInt("BCRYPT_COST"),
		CacheTTL:     dur("CACHE_TTL", time.Hour),
		CacheLongTTL: dur("CACHE_LONG_TTL", 24*time.Hour),
		WXAppID:      must("WX_APP_ID"),
		WXAppSecret:  must("WX_APP_SECRET"),
		ViewsCron:    str("VIEWS_FLUSH_CRON", "0,15,30,45 * * * *"),
		LikesCron:    str("LIKES_FLUSH_CRON", "5,20,35,50 * * * *"),
		RatesCron:    str("RATES_FLUSH_CRON", "10,25,40,55 * * * *"),
	}
}

// must retrieves a required environment variable or aborts startup.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the value to an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func dur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, v)
	}
	return d
}
