package database

import (
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cardmarket-scanner/internal/models"
)

var DB *gorm.DB

// Initialize opens the SQLite database, configures the shared connection
// pool and migrates the schema. Foreign keys are enabled explicitly so the
// cascade deletes on scan children actually fire.
func Initialize(dbPath string) error {
	dsn := dbPath
	if !strings.Contains(dsn, "_foreign_keys") {
		if strings.Contains(dsn, "?") {
			dsn += "&_foreign_keys=on"
		} else {
			dsn += "?_foreign_keys=on"
		}
	}

	var err error
	DB, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// One pooled connection set shared read/write across scan invocations.
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database connected successfully")

	if err := cleanupDuplicateWatchlistEntries(DB); err != nil {
		return fmt.Errorf("watchlist cleanup failed: %w", err)
	}

	if err := Migrate(DB); err != nil {
		return err
	}

	if err := RunMigrations(DB); err != nil {
		return err
	}

	log.Println("Database migration completed")
	return nil
}

// Migrate creates/updates the schema for the given connection. Split out of
// Initialize so tests can migrate an in-memory database.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.WatchlistEntry{},
		&models.ScanRun{},
		&models.OfferSnapshot{},
		&models.ScanAggregate{},
		&models.DealAlert{},
		&models.PriceHistory{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}

	// Composite indexes over the embedded card key. AutoMigrate cannot
	// express these because the key fields are shared across tables.
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_watchlist_key
			ON watchlist_entries (card_number, set_code, region, foil)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_runs_key_ok_ts
			ON scan_runs (card_number, set_code, region, foil, ok, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_deal_alerts_key
			ON deal_alerts (card_number, set_code, region, foil)`,
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("index creation failed: %w", err)
		}
	}

	return nil
}

func GetDB() *gorm.DB {
	return DB
}
