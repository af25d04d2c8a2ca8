package config

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

// R2Config holds credentials for the S3-compatible object store (blobs only).
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	PublicBaseURL   string
}

// RateLimitRule is one row of the §4.D rate-limit table.
type RateLimitRule struct {
	Window time.Duration
	Max    int
}

// RateLimitConfig is the §4.D per-route cap table plus invite's extra bins.
type RateLimitConfig struct {
	Global            RateLimitRule
	Upload            RateLimitRule
	PresignMint       RateLimitRule
	Download          RateLimitRule
	RoomAccess        RateLimitRule
	PresenceHeartbeat RateLimitRule
	ActivityFeed      RateLimitRule
	Delete            RateLimitRule
	AnalyticsAdmin    RateLimitRule
	InviteGlobal      RateLimitRule
	InvitePerRecipient RateLimitRule
	InvitePerIPRoom   RateLimitRule
	InviteMinInterval time.Duration
}

// OverloadConfig is the process-health shedding configuration (§4.D).
type OverloadConfig struct {
	SampleInterval  time.Duration
	MaxRSSMB        int64
	MinFreeMemMB    int64
	MaxLoadPerCPU   float64
}

// RoomConfig holds the §3/§4.C/§4.F room-lifecycle defaults.
type RoomConfig struct {
	DefaultCapacity        int
	UnlimitedCapacityFloor int
	ActiveWindow           time.Duration
	DestructionCountdown   time.Duration
	DefaultMaxFiles        int
	DefaultMaxTotalBytes   int64
	DownloadURLTTL         time.Duration
	UploadPartURLTTL       time.Duration
	PreviewURLTTL          time.Duration
	BurnDeleteDelay        time.Duration
	DedupWindow            time.Duration
}

// ReaperConfig configures the expiry sweep and stale-multipart abort (§4.L).
type ReaperConfig struct {
	Interval            time.Duration
	MultipartStaleAfter time.Duration
}

// InviteConfig is the §4.J share-link/email validation configuration.
type InviteConfig struct {
	FrontendOrigin    string
	AllowLocalOrigins bool
}

// Config is the process-wide configuration, in the teacher's single-struct style.
type Config struct {
	DB_URL         string
	Port           string
	JWTSecret      string
	AdminToken     string
	Environment    string
	CorsConfig     cors.Options
	R2             R2Config
	RateLimit      RateLimitConfig
	Overload       OverloadConfig
	Room           RoomConfig
	Reaper         ReaperConfig
	Invite         InviteConfig
	GeoAPIBaseURL  string
	GeoAPIKey      string
	SMTPHost       string
	SMTPPort       string
	SMTPUsername   string
	SMTPPassword   string
	SMTPFromAddr   string
}

var Envs = initConfig()

func initConfig() Config {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	log.Println("Running in development mode, loading", envFile)
	if err := godotenv.Load(envFile); err != nil {
		log.Println("No", envFile, "file found")
	}

	return Config{
		DB_URL:      getEnv("DB_URL", ""),
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "not-so-secret-now-is-it?"),
		AdminToken:  getEnv("ADMIN_BEARER_SECRET", "not-so-secret-now-is-it?"),
		Environment: getEnv("ENV", "development"),
		CorsConfig:  CorsConfig(),
		R2: R2Config{
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			BucketName:      getEnv("R2_BUCKET_NAME", ""),
			Region:          getEnv("R2_REGION", "auto"),
			PublicBaseURL:   getEnv("R2_PUBLIC_BASE_URL", ""),
		},
		RateLimit: RateLimitConfig{
			Global:             RateLimitRule{Window: 15 * time.Minute, Max: 300},
			Upload:             RateLimitRule{Window: 15 * time.Minute, Max: 30},
			PresignMint:        RateLimitRule{Window: time.Minute, Max: 12},
			Download:           RateLimitRule{Window: 15 * time.Minute, Max: 80},
			RoomAccess:         RateLimitRule{Window: time.Minute, Max: 4},
			PresenceHeartbeat:  RateLimitRule{Window: time.Minute, Max: 12},
			ActivityFeed:       RateLimitRule{Window: time.Minute, Max: 60},
			Delete:             RateLimitRule{Window: time.Minute, Max: 8},
			AnalyticsAdmin:     RateLimitRule{Window: time.Minute, Max: 20},
			InviteGlobal:       RateLimitRule{Window: 10 * time.Minute, Max: 6},
			InvitePerRecipient: RateLimitRule{Window: time.Hour, Max: 3},
			InvitePerIPRoom:    RateLimitRule{Window: 30 * time.Minute, Max: 3},
			InviteMinInterval:  8 * time.Second,
		},
		Overload: OverloadConfig{
			SampleInterval: 3 * time.Second,
			MaxRSSMB:       getEnvInt64("OVERLOAD_MAX_RSS_MB", 1024),
			MinFreeMemMB:   getEnvInt64("OVERLOAD_MIN_FREE_MEM_MB", 128),
			MaxLoadPerCPU:  getEnvFloat("OVERLOAD_MAX_LOAD_PER_CPU", 2.0),
		},
		Room: RoomConfig{
			DefaultCapacity:        getEnvInt("ROOM_DEFAULT_CAPACITY", 999),
			UnlimitedCapacityFloor: 999,
			ActiveWindow:           120 * time.Second,
			DestructionCountdown:   30 * time.Second,
			DefaultMaxFiles:        getEnvInt("ROOM_MAX_FILES", 100),
			DefaultMaxTotalBytes:   getEnvInt64("ROOM_MAX_TOTAL_SIZE_BYTES", 4*1024*1024*1024),
			DownloadURLTTL:         5 * time.Minute,
			UploadPartURLTTL:       time.Hour,
			PreviewURLTTL:          5 * time.Minute,
			BurnDeleteDelay:        3 * time.Second,
			DedupWindow:            3 * time.Second,
		},
		Reaper: ReaperConfig{
			Interval:            getEnvDuration("REAPER_INTERVAL", time.Hour),
			MultipartStaleAfter: 24 * time.Hour,
		},
		Invite: InviteConfig{
			FrontendOrigin:    getEnv("FRONTEND_ORIGIN", "https://obscyra.vercel.app"),
			AllowLocalOrigins: getEnv("ENV", "development") != "production",
		},
		GeoAPIBaseURL: getEnv("GEO_API_BASE_URL", "http://ip-api.com/json"),
		GeoAPIKey:     getEnv("GEO_API_KEY", ""),
		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SMTPFromAddr:  getEnv("SMTP_FROM_ADDR", "no-reply@obscyra.app"),
	}
}

// Gets the env by key or fallbacks
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func CorsConfig() cors.Options {
	return cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "https://obscyra.vercel.app"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*", "X-Author-Token", "X-Device-Id", "X-Forwarded-For", "X-Real-IP"},
		ExposedHeaders:   []string{"ETag", "Retry-After"},
		AllowCredentials: true,
	}
}
