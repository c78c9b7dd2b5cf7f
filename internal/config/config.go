package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"cardmarket-scanner/internal/models"
)

// Config holds every runtime setting of the scanner, loaded from the
// environment with sane defaults for local development.
type Config struct {
	DatabasePath string
	Port         string
	CORSOrigins  string

	CollectorURL     string
	CollectorTimeout time.Duration
	MaxOffersPerScan int

	ScanInterval   time.Duration
	ScanRatePerMin float64

	DealThreshold       float64
	BaselineWindowScans int
	MinSellerRating     float64
	MinCondition        models.Condition

	OfferRetentionDays     int
	ScanRetentionDays      int
	AlertRetentionDays     int
	LegacyRetentionDays    int
	RetentionCheckInterval time.Duration

	TelegramToken  string
	TelegramChatID int64
}

// Load reads the configuration from the environment, consulting a .env
// file when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		DatabasePath: getEnv("DATABASE_PATH", "./data/scanner.db"),
		Port:         getEnv("PORT", "8080"),
		CORSOrigins:  getEnv("CORS_ORIGINS", "*"),

		CollectorURL:     getEnv("COLLECTOR_URL", "http://localhost:8191"),
		CollectorTimeout: getDuration("COLLECTOR_TIMEOUT", 60*time.Second),
		MaxOffersPerScan: getInt("MAX_OFFERS_PER_SCAN", 50),

		ScanInterval:   getDuration("SCAN_INTERVAL", 30*time.Minute),
		ScanRatePerMin: getFloat("SCAN_RATE_PER_MIN", 6),

		DealThreshold:       getFloat("DEAL_THRESHOLD", 0.15),
		BaselineWindowScans: getInt("BASELINE_WINDOW_SCANS", 48),
		MinSellerRating:     getFloat("MIN_SELLER_RATING", 90),
		MinCondition:        models.NormalizeCondition(getEnv("MIN_CONDITION", "GD")),

		OfferRetentionDays:     getInt("OFFER_RETENTION_DAYS", 30),
		ScanRetentionDays:      getInt("SCAN_RETENTION_DAYS", 365),
		AlertRetentionDays:     getInt("ALERT_RETENTION_DAYS", 90),
		LegacyRetentionDays:    getInt("LEGACY_RETENTION_DAYS", 365),
		RetentionCheckInterval: getDuration("RETENTION_CHECK_INTERVAL", 24*time.Hour),

		TelegramToken:  getEnv("TELEGRAM_TOKEN", ""),
		TelegramChatID: getInt64("TELEGRAM_CHAT_ID", 0),
	}
}

// DealPolicy assembles the classification policy from the loaded settings.
func (c *Config) DealPolicy() models.DealPolicy {
	return models.DealPolicy{
		DiscountThreshold:   c.DealThreshold,
		BaselineWindowScans: c.BaselineWindowScans,
		MinSellerRating:     c.MinSellerRating,
		MinCondition:        c.MinCondition,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s, using default %d", key, fallback)
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s, using default %d", key, fallback)
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s, using default %v", key, fallback)
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s, using default %v", key, fallback)
	}
	return fallback
}
