package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	AppEnv         string
	SiteURL        string
	AllowedOrigins []string

	DatabaseURL        string
	DBDriver           string
	SupabaseURL        string
	SupabaseServiceKey string

	TelegramBotToken  string
	TelegramChatID    string
	NotificationEmail string
	ResendAPIKey      string
	EmailFrom         string
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPass          string

	AMQPURL       string
	RedisAddr     string
	RedisPassword string

	NotifyOutbox         string
	NotifyTimezone       string
	NotifyEnqueueTimeout time.Duration
	NotifySendTimeout    time.Duration
	NotifyMaxAttempts    int

	PostbackToken     string
	PostbackDedupTTL  time.Duration
	TrackAllowedHosts []string
	TrackPath         string
	DefaultCompany    string

	GoldPriceURL  string
	PriceCacheTTL time.Duration
}

func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

// LoadDotEnv reads .env into the process environment when present. Variables
// already set win.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Printf("ℹ️ No .env file loaded (%v), using process environment", err)
	}
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFile reads a dotenv file without touching the process environment.
func LoadFile(path string) (*Config, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return LoadFrom(func(k string) string { return vars[k] })
}

func LoadFrom(getenv func(string) string) (*Config, error) {
	e := env{getenv: getenv}

	cfg := &Config{
		Port:           e.str("PORT", "8080"),
		AppEnv:         e.str("APP_ENV", "prod"),
		SiteURL:        e.str("SITE_URL", "/"),
		AllowedOrigins: e.list("ALLOWED_ORIGINS", []string{"*"}),

		DatabaseURL:        e.str("DATABASE_URL", ""),
		DBDriver:           e.str("DB_DRIVER", "pgx"),
		SupabaseURL:        e.str("SUPABASE_URL", ""),
		SupabaseServiceKey: e.str("SUPABASE_SERVICE_KEY", ""),

		TelegramBotToken:  e.str("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:    e.str("TELEGRAM_CHAT_ID", ""),
		NotificationEmail: e.str("NOTIFICATION_EMAIL", ""),
		ResendAPIKey:      e.str("RESEND_API_KEY", ""),
		EmailFrom:         e.str("EMAIL_FROM", ""),
		SMTPHost:          e.str("SMTP_HOST", ""),
		SMTPPort:          e.number("SMTP_PORT", 587),
		SMTPUser:          e.str("SMTP_USER", ""),
		SMTPPass:          e.str("SMTP_PASS", ""),

		AMQPURL:       e.str("AMQP_URL", ""),
		RedisAddr:     e.str("REDIS_ADDR", ""),
		RedisPassword: e.str("REDIS_PASSWORD", ""),

		NotifyOutbox:         strings.ToLower(e.str("NOTIFY_OUTBOX", "memory")),
		NotifyTimezone:       e.str("NOTIFY_TIMEZONE", "America/New_York"),
		NotifyEnqueueTimeout: e.duration("NOTIFY_ENQUEUE_TIMEOUT", 2*time.Second),
		NotifySendTimeout:    e.duration("NOTIFY_SEND_TIMEOUT", 10*time.Second),
		NotifyMaxAttempts:    e.number("NOTIFY_MAX_ATTEMPTS", 5),

		PostbackToken:     e.str("POSTBACK_TOKEN", ""),
		PostbackDedupTTL:  e.duration("POSTBACK_DEDUP_TTL", 24*time.Hour),
		TrackAllowedHosts: e.list("TRACK_ALLOWED_HOSTS", nil),
		TrackPath:         e.str("TRACK_PATH", "/track"),
		DefaultCompany:    e.str("DEFAULT_COMPANY", "Augusta Precious Metals"),

		GoldPriceURL:  e.str("GOLDPRICE_URL", "https://data-asg.goldprice.org/dbXRates/USD"),
		PriceCacheTTL: e.duration("PRICE_CACHE_TTL", 5*time.Minute),
	}

	if len(e.errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(e.errs, "; "))
	}
	switch cfg.NotifyOutbox {
	case "memory", "direct":
	default:
		return nil, fmt.Errorf("invalid configuration: NOTIFY_OUTBOX must be memory or direct, got %q", cfg.NotifyOutbox)
	}
	return cfg, nil
}

type env struct {
	getenv func(string) string
	errs   []string
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) number(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		e.errs = append(e.errs, fmt.Sprintf("%s=%q is not a non-negative integer", key, v))
		return def
	}
	return n
}

// duration accepts Go durations ("90s") or plain seconds ("90").
func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		e.errs = append(e.errs, fmt.Sprintf("%s=%q is not a duration", key, v))
		return def
	}
	return d
}

func (e *env) list(key string, def []string) []string {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
