package config

import (
	"context"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	infisical "github.com/infisical/go-sdk"
	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DataDir        string
	LogLevel       string
	FrontendOrigin string

	TelegramToken  string
	TelegramChatID string

	ProxyHost string
	ProxyPort string

	RedisURL      string
	RedisPassword string
	DatabaseURL   string

	ScheduleHour      int
	ScheduleUTCOffset int

	FetchAttempts     int
	FetchRetryDelay   time.Duration
	RequestTimeout    time.Duration
	RequestsPerSecond float64

	StablecoinTopN      int
	StablecoinTotalMode string

	MarketDominanceURL string
	FearGreedURL       string
	StablecoinsURL     string
	ProtocolFeesURL    string
}

// ProxyURL returns the outbound HTTP proxy, or "" when none is configured.
func (c Config) ProxyURL() string {
	if c.ProxyHost == "" || c.ProxyPort == "" {
		return ""
	}
	return "http://" + net.JoinHostPort(c.ProxyHost, c.ProxyPort)
}

// ScheduleZone is the fixed-offset zone the daily run is scheduled in.
func (c Config) ScheduleZone() *time.Location {
	off := c.ScheduleUTCOffset
	name := "UTC"
	switch {
	case off > 0:
		name = "UTC+" + strconv.Itoa(off)
	case off < 0:
		name = "UTC" + strconv.Itoa(off)
	}
	return time.FixedZone(name, off*3600)
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real env vars win over it.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg := Config{
		Port:           envOr("PORT", "3030"),
		DataDir:        envOr("DATA_DIR", "."),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		FrontendOrigin: envOr("FRONTEND_ORIGIN", "*"),

		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),

		ProxyHost: os.Getenv("PROXY_HOST"),
		ProxyPort: os.Getenv("PROXY_PORT"),

		RedisURL:      os.Getenv("REDIS_URL"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		ScheduleHour:      envInt("SCHEDULE_HOUR", 8),
		ScheduleUTCOffset: envInt("SCHEDULE_UTC_OFFSET", 8),

		FetchAttempts:     envInt("FETCH_ATTEMPTS", 3),
		FetchRetryDelay:   envDuration("FETCH_RETRY_DELAY", 60*time.Second),
		RequestTimeout:    envDuration("REQUEST_TIMEOUT", 10*time.Second),
		RequestsPerSecond: envFloat("REQUESTS_PER_SECOND", 1),

		StablecoinTopN:      envInt("STABLECOIN_TOP_N", 10),
		StablecoinTotalMode: strings.ToLower(envOr("STABLECOIN_TOTAL_MODE", "all")),

		MarketDominanceURL: os.Getenv("MARKET_DOMINANCE_URL"),
		FearGreedURL:       os.Getenv("FEAR_GREED_URL"),
		StablecoinsURL:     os.Getenv("STABLECOINS_URL"),
		ProtocolFeesURL:    os.Getenv("PROTOCOL_FEES_URL"),
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	return cfg
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL", "https://app.infisical.com")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	if _, err := client.Auth().UniversalAuthLogin(clientID, clientSecret); err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	for key, target := range secretTargets(cfg) {
		if *target != "" {
			continue // env wins
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

// secretTargets maps the secret names Infisical may supply to the fields
// they fill.
func secretTargets(cfg *Config) map[string]*string {
	return map[string]*string{
		"TELEGRAM_BOT_TOKEN": &cfg.TelegramToken,
		"TELEGRAM_CHAT_ID":   &cfg.TelegramChatID,
		"REDIS_PASSWORD":     &cfg.RedisPassword,
		"DATABASE_URL":       &cfg.DatabaseURL,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		slog.Warn("invalid number env var, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}

// envDuration accepts a Go duration ("90s", "2m") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", fallback)
	return fallback
}
