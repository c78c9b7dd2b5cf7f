package models

import "time"

// DealAlert records an offer judged significantly below the rolling
// baseline. Card identity, seller and condition are denormalized from the
// originating scan so that alert queries need no joins; retention prunes
// alerts independently of scan history.
type DealAlert struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`
	ScanID    uint      `json:"scan_id" gorm:"not null;index"`

	ArticleID  string  `json:"article_id" gorm:"size:32"`
	ArticleURL string  `json:"article_url"`
	Total      float64 `json:"total" gorm:"not null"`
	Baseline   float64 `json:"baseline" gorm:"not null"`
	// Discount is the fraction (price-baseline)/baseline; negative means
	// cheaper than baseline.
	Discount float64 `json:"discount" gorm:"not null"`
	Reason   string  `json:"reason"`

	CardName   string `json:"card_name"`
	CardKey    `gorm:"embedded"`
	SellerName string    `json:"seller_name,omitempty"`
	Condition  Condition `json:"condition,omitempty" gorm:"size:8"`

	// Meta carries secondary offer context (rating, sales, quantity,
	// language) as JSON for display without re-reading the snapshot.
	Meta string `json:"meta,omitempty" gorm:"type:text"`
}

// PriceHistory is the legacy per-scan summary table kept for backward
// compatibility with pre-v2 reporting queries. It is written alongside the
// aggregate but carries no invariants of its own; scan_aggregates is
// authoritative.
type PriceHistory struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	CardName   string    `json:"card_name"`
	CardNumber string    `json:"card_number" gorm:"size:16"`
	SetCode    string    `json:"set_code" gorm:"size:8"`
	MinPrice   float64   `json:"min_price"`
	AvgPrice   float64   `json:"avg_price"`
	MaxPrice   float64   `json:"max_price"`
	OfferCount int       `json:"offer_count"`
	Region     string    `json:"region" gorm:"size:2"`
	Foil       bool      `json:"foil"`
	RecordedAt time.Time `json:"recorded_at" gorm:"index"`
}

func (PriceHistory) TableName() string {
	return "price_history"
}
