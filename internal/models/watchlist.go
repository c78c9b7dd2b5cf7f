package models

import "time"

// WatchlistEntry defines one card the scheduler scans. Entries are unique
// on the four identity fields (enforced by idx_watchlist_key, created in
// database.Initialize); the scan engine reads the watchlist but never
// mutates it.
type WatchlistEntry struct {
	ID      uint `json:"id" gorm:"primaryKey"`
	CardKey `gorm:"embedded"`
	// DisplayName is the human-readable card name used for the collector
	// query and copied onto scan runs and alerts.
	DisplayName string    `json:"display_name" gorm:"not null"`
	Active      bool      `json:"active" gorm:"not null;default:true;index"`
	CreatedAt   time.Time `json:"created_at"`
}

// AddWatchlistRequest is the API payload for creating a watchlist entry.
type AddWatchlistRequest struct {
	CardNumber  string `json:"card_number" binding:"required"`
	SetCode     string `json:"set_code" binding:"required"`
	Region      string `json:"region" binding:"required"`
	Foil        bool   `json:"foil"`
	DisplayName string `json:"display_name" binding:"required"`
}
