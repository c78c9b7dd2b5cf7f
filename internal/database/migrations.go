package database

import (
	"log"

	"gorm.io/gorm"
)

// cleanupDuplicateWatchlistEntries removes duplicate watchlist rows before
// the unique key index is (re)created. Runs BEFORE AutoMigrate to prevent
// constraint violations on upgrade from pre-v2 databases.
func cleanupDuplicateWatchlistEntries(db *gorm.DB) error {
	if !db.Migrator().HasTable("watchlist_entries") {
		return nil
	}

	result := db.Exec(`
		DELETE FROM watchlist_entries
		WHERE id NOT IN (
			SELECT MIN(id)
			FROM watchlist_entries
			GROUP BY card_number, set_code, region, foil
		)
	`)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		log.Printf("Cleaned up %d duplicate watchlist entries", result.RowsAffected)
	}

	return nil
}

// RunMigrations runs custom data migrations after schema changes.
func RunMigrations(db *gorm.DB) error {
	if err := migrateLegacyRegionColumn(db); err != nil {
		return err
	}
	if err := migrateLegacyConditionCodes(db); err != nil {
		return err
	}
	return nil
}

// migrateLegacyRegionColumn backfills the region column from the old
// country column on tables written by the v1 scanner. Safe to run more
// than once; it only touches rows where region is missing.
func migrateLegacyRegionColumn(db *gorm.DB) error {
	for _, table := range []string{"watchlist_entries", "price_history"} {
		if !db.Migrator().HasTable(table) || !db.Migrator().HasColumn(table, "country") {
			continue
		}

		log.Printf("Migrating %s: country -> region", table)
		result := db.Exec(`UPDATE ` + table + ` SET region = country WHERE region IS NULL OR region = ''`)
		if result.Error != nil {
			log.Printf("Warning: failed to migrate %s country column: %v", table, result.Error)
			continue
		}
		if result.RowsAffected > 0 {
			log.Printf("Migrated %d %s rows", result.RowsAffected, table)
		}
	}

	return nil
}

// migrateLegacyConditionCodes normalizes the v1 condition spellings
// ("MINT", "PR") to the two-letter grade codes used everywhere now.
func migrateLegacyConditionCodes(db *gorm.DB) error {
	if !db.Migrator().HasTable("offer_snapshots") {
		return nil
	}

	replacements := map[string]string{
		"MINT": "MT",
		"M":    "MT",
		"PR":   "PO",
	}

	for old, normalized := range replacements {
		result := db.Exec(`UPDATE offer_snapshots SET condition = ? WHERE condition = ?`, normalized, old)
		if result.Error != nil {
			log.Printf("Warning: failed to normalize condition %q: %v", old, result.Error)
			continue
		}
		if result.RowsAffected > 0 {
			log.Printf("Normalized %d offer rows: condition %s -> %s", result.RowsAffected, old, normalized)
		}
	}

	return nil
}
