package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Env struct {
	AppAddr string
	GinMode string

	// Backend session authority / booking endpoint.
	APIBaseURL           string
	SessionProbeTimeout  time.Duration
	BookingSubmitTimeout time.Duration
	SessionRefresh       time.Duration

	NotificationCapacity int
	NotificationTTL      time.Duration

	BroadcastDriver string
	BroadcastPrefix string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	FareTableFile string
	FareDBDriver  string
	FareDBDSN     string

	CORSAllowedOrigins []string
	JWTSecret          string
}

// LoadDotEnv loads KEY=VALUE pairs from path (default .env) without overriding the real environment.
func LoadDotEnv(path string) {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Printf("warning: gagal membaca %s: %v", path, err)
	}
}

func LoadEnv() Env {
	return Env{
		AppAddr: stringEnv("APP_ADDR", ":3001"),
		GinMode: stringEnv("GIN_MODE", ""),

		APIBaseURL:           strings.TrimRight(stringEnv("API_BASE_URL", "http://localhost:8080"), "/"),
		SessionProbeTimeout:  durationEnv("SESSION_PROBE_TIMEOUT", 5*time.Second),
		BookingSubmitTimeout: durationEnv("BOOKING_SUBMIT_TIMEOUT", 15*time.Second),
		SessionRefresh:       durationEnv("SESSION_REFRESH_INTERVAL", 0),

		NotificationCapacity: intEnv("NOTIFICATION_CAPACITY", 10),
		NotificationTTL:      durationEnv("NOTIFICATION_TTL", 10*time.Second),

		BroadcastDriver: strings.ToLower(stringEnv("BROADCAST_DRIVER", "redis")),
		BroadcastPrefix: stringEnv("BROADCAST_PREFIX", "busticket:"),
		RedisAddr:       stringEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         intEnv("REDIS_DB", 0),

		FareTableFile: stringEnv("FARE_TABLE_FILE", ""),
		FareDBDriver:  strings.ToLower(stringEnv("FARE_DB_DRIVER", "mysql")),
		FareDBDSN:     stringEnv("FARE_DB_DSN", ""),

		CORSAllowedOrigins: listEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		}),
		JWTSecret: stringEnv("JWT_SECRET", "super-secret-key-change-me"),
	}
}

func stringEnv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("warning: %s=%q bukan angka, pakai default %d", key, v, def)
		return def
	}
	return n
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("warning: %s=%q bukan durasi, pakai default %s", key, v, def)
		return def
	}
	return d
}

func listEnv(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	out := []string{}
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
