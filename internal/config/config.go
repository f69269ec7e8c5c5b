package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

const defaultModelVersion = "d18e2e0a6a6d3af183cc09622cebba8555ec9a9e66983261fc64c8b1572b7dce"

// Config aggregates runtime configuration for the bot and supporting services.
type Config struct {
	BotToken              string
	LogLevel              string
	DBDriver              string
	MySQLDSN              string
	SQLitePath            string
	ReplicateAPIToken     string
	ReplicateBaseURL      string
	ReplicateModelVersion string
	CallbackBaseURL       string
	RequestTimeout        time.Duration
	InitialCredits        int
	ReferralBonus         int
	RequiredChannels      []string
	CatalogPath           string
	UploadsLedgerPath     string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	NATSURL               string
	NATSSubject           string
	AdminListenAddr       string
	AdminUsername         string
	AdminPassword         string
	S3Endpoint            string
	S3Region              string
	S3AccessKey           string
	S3SecretKey           string
	S3Bucket              string
	S3PublicBaseURL       string
	S3UsePathStyle        bool
	S3Prefix              string
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultReplicateBaseURL = "https://api.replicate.com"

	cfg := Config{
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DBDriver:              strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		SQLitePath:            getEnv("SQLITE_PATH", filepath.Join("sessions", "voicebot.db")),
		ReplicateBaseURL:      normalizeBaseURL(getEnv("REPLICATE_BASE_URL", defaultReplicateBaseURL), defaultReplicateBaseURL),
		ReplicateModelVersion: getEnv("REPLICATE_MODEL_VERSION", defaultModelVersion),
		RequestTimeout:        time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 60)),
		InitialCredits:        getInt("INITIAL_CREDITS", 60),
		ReferralBonus:         getInt("REFERRAL_BONUS", 30),
		RequiredChannels:      parseChannels(getEnv("REQUIRED_CHANNELS", "@aiticle,@nedaaiofficial")),
		CatalogPath:           getEnv("CATALOG_PATH", "models.json"),
		UploadsLedgerPath:     getEnv("UPLOADS_LEDGER_PATH", "files.json"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getInt("REDIS_DB", 0),
		NATSURL:               os.Getenv("NATS_URL"),
		NATSSubject:           getEnv("NATS_SUBJECT", "voicebot.conversion.submitted"),
		AdminListenAddr:       getEnv("ADMIN_LISTEN_ADDR", ":8080"),
		AdminUsername:         getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:         getEnv("ADMIN_PASSWORD", "change-me"),
		S3Endpoint:            getEnv("S3_ENDPOINT", ""),
		S3Region:              os.Getenv("S3_REGION"),
		S3AccessKey:           os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:           os.Getenv("S3_SECRET_KEY"),
		S3Bucket:              os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:       os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:        getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:              getEnv("S3_PREFIX", "audio"),
	}

	cfg.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.ReplicateAPIToken = os.Getenv("REPLICATE_API_TOKEN")
	cfg.CallbackBaseURL = strings.TrimSpace(os.Getenv("CALLBACK_BASE_URL"))

	var missing []string
	if cfg.BotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	switch cfg.DBDriver {
	case DriverMySQL:
		if cfg.MySQLDSN == "" {
			missing = append(missing, "MYSQL_DSN")
		}
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			missing = append(missing, "SQLITE_PATH")
		}
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.ReplicateAPIToken == "" {
		missing = append(missing, "REPLICATE_API_TOKEN")
	}
	if cfg.CallbackBaseURL == "" {
		missing = append(missing, "CALLBACK_BASE_URL")
	}
	if cfg.S3Region == "" {
		missing = append(missing, "S3_REGION")
	}
	if cfg.S3AccessKey == "" {
		missing = append(missing, "S3_ACCESS_KEY")
	}
	if cfg.S3SecretKey == "" {
		missing = append(missing, "S3_SECRET_KEY")
	}
	if cfg.S3Bucket == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if cfg.S3PublicBaseURL == "" {
		missing = append(missing, "S3_PUBLIC_BASE_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	if cfg.InitialCredits < 0 {
		cfg.InitialCredits = 0
	}
	if cfg.ReferralBonus < 0 {
		cfg.ReferralBonus = 0
	}

	return cfg, nil
}

// normalizeBaseURL adds a missing scheme and strips trailing slashes and paths
// so that endpoint paths can be resolved against it.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}
	if parsed.Host == "" {
		return fallback
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")

	return parsed.String()
}

// parseChannels splits a comma separated channel list and normalizes each
// entry to the @username form.
func parseChannels(raw string) []string {
	var channels []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		name := normalizeChannelUsername(extractChannelUsername(part))
		if name == "" {
			continue
		}
		handle := "@" + name
		if _, ok := seen[handle]; ok {
			continue
		}
		seen[handle] = struct{}{}
		channels = append(channels, handle)
	}
	return channels
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

// loadEnvFile loads the first env file found. An explicit CONFIG_ENV_PATH must
// exist; the default locations are optional.
func loadEnvFile() error {
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		if err := godotenv.Overload(custom); err != nil {
			return fmt.Errorf("load env file %s: %w", custom, err)
		}
		return nil
	}

	candidates := []string{
		filepath.Join("configs", ".env"),
		".env",
	}
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
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}

func normalizeChannelUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.TrimPrefix(username, "@")
	return username
}

func extractChannelUsername(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, "/")
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if parsed, err := url.Parse(raw); err == nil {
			path := strings.Trim(parsed.Path, "/")
			if path != "" {
				return normalizeChannelUsername(path)
			}
		}
	}
	raw = strings.TrimPrefix(raw, "t.me/")
	return normalizeChannelUsername(raw)
}
