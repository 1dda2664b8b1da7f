package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"kioskops/models"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	JWT       JWTConfig
	Firebase  FirebaseConfig
	SendGrid  SendGridConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Ops       OpsConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
}

type JWTConfig struct {
	Secret                 string
	Expiration             time.Duration
	RefreshTokenExpiration time.Duration
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsPath string
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// OpsConfig carries every operational constant the engine components use,
// so tests can override them instead of relying on scattered literals.
type OpsConfig struct {
	// Fill level (0-100) at or above which a collection task is dispatched.
	FillLevelThreshold int
	// Fill level at or below which a previously-full kiosk counts as emptied.
	EmptiedLevel int
	// Zones agents can be assigned to; must match the dashboard dropdown.
	Zones []string
	// Fixed UTC offset of the operating timezone (no DST).
	TimezoneOffset time.Duration
	TimezoneName   string
	// Local hour at which shifts end; after this, assignment rolls to the
	// next day's shift.
	ShiftEndHour int
	// QR session lifetime and how long used sessions are retained.
	QrSessionTTL       time.Duration
	QrSessionRetention time.Duration
	// Firestore allows 500 writes per batch; stay under it.
	MaxBatchWrites int
	// Grams of recycled material per awarded point.
	GramsPerPoint int64
	// Cron expressions, evaluated in the operating timezone.
	HandoverSchedule    string
	CleanupSchedule     string
	ImpactEmailSchedule string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Host:        getEnv("HOST", "0.0.0.0"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		JWT: JWTConfig{
			Secret:                 getEnv("JWT_SECRET", "dev-secret-key"),
			Expiration:             getEnvDuration("JWT_EXPIRATION", 1*time.Hour),
			RefreshTokenExpiration: getEnvDuration("JWT_REFRESH_EXPIRATION", 168*time.Hour),
		},
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "serviceAccountKey.json"),
		},
		SendGrid: SendGridConfig{
			APIKey:    getEnv("SENDGRID_API_KEY", ""),
			FromEmail: getEnv("EMAIL_FROM", "noreply@ucokiosk.example.com"),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseStringSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
		},
		Ops: DefaultOps(),
	}
}

// DefaultOps returns the production operational constants.
func DefaultOps() OpsConfig {
	return OpsConfig{
		FillLevelThreshold: getEnvInt("FILL_LEVEL_THRESHOLD", 80),
		EmptiedLevel:       getEnvInt("EMPTIED_LEVEL", 10),
		Zones:              parseStringSlice(getEnv("ZONES", "Zone A,Zone B,Zone C")),
		TimezoneOffset:     getEnvDuration("TZ_OFFSET", 8*time.Hour), // Asia/Kuala_Lumpur, no DST
		TimezoneName:       getEnv("TZ_NAME", "Asia/Kuala_Lumpur"),
		ShiftEndHour:       getEnvInt("SHIFT_END_HOUR", 18),
		QrSessionTTL:       getEnvDuration("QR_SESSION_TTL", 60*time.Second),
		QrSessionRetention: getEnvDuration("QR_SESSION_RETENTION", 24*time.Hour),
		MaxBatchWrites:     getEnvInt("MAX_BATCH_WRITES", 450),
		GramsPerPoint:      int64(getEnvInt("GRAMS_PER_POINT", 10)),
		HandoverSchedule:   getEnv("HANDOVER_SCHEDULE", "1 18 * * 0,4"),
		CleanupSchedule:    getEnv("CLEANUP_SCHEDULE", "0 3 * * *"),
		ImpactEmailSchedule: getEnv("IMPACT_EMAIL_SCHEDULE", "0 9 1 * *"),
	}
}

// ValidZone reports whether zone is one of the configured zones.
func (o OpsConfig) ValidZone(zone string) bool {
	for _, z := range o.Zones {
		if z == zone {
			return true
		}
	}
	return false
}

// ValidShiftType reports whether s is a recognized shift type.
func (o OpsConfig) ValidShiftType(s models.ShiftType) bool {
	return s == models.ShiftWeekday || s == models.ShiftWeekend
}

// Location returns the operating timezone as a fixed-offset zone.
func (o OpsConfig) Location() *time.Location {
	return time.FixedZone(o.TimezoneName, int(o.TimezoneOffset/time.Second))
}

// Validate checks that required configuration is present
func (c *Config) Validate() {
	if c.Server.Environment == "production" {
		if c.JWT.Secret == "dev-secret-key" {
			log.Fatal("❌ JWT_SECRET must be set in production")
		}
		if c.Firebase.ProjectID == "" {
			log.Fatal("❌ FIREBASE_PROJECT_ID must be set in production")
		}
	}
	if len(c.Ops.Zones) == 0 {
		log.Fatal("❌ ZONES must list at least one zone")
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Printf("⚠️  Invalid integer for %s, using default: %d", key, defaultValue)
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable with a fallback default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("⚠️  Invalid duration for %s, using default: %v", key, defaultValue)
	}
	return defaultValue
}

// parseStringSlice splits a comma-separated string into a slice
func parseStringSlice(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
