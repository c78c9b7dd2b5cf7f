package models

import "time"

// ScanRun records one attempt to collect offers for a watched card. Failed
// attempts persist too; they are the audit trail for collection errors.
// A run is terminal once written: succeeded runs own their offer snapshots
// and aggregate, failed runs own nothing.
type ScanRun struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Timestamp   time.Time `json:"timestamp" gorm:"not null;index"`
	CycleID     string    `json:"cycle_id" gorm:"size:36;index"`
	WatchlistID *uint     `json:"watchlist_id"`
	SourceURL   string    `json:"source_url"`
	ProductID   string    `json:"product_id" gorm:"size:32"`
	CardName    string    `json:"card_name"`
	CardKey     `gorm:"embedded"`
	OK          bool   `json:"ok" gorm:"not null;index"`
	HTTPStatus  *int   `json:"http_status"`
	Error       string `json:"error,omitempty" gorm:"type:text"`
	ParseVersion string `json:"parse_version" gorm:"size:16"`

	Offers    []OfferSnapshot `json:"offers,omitempty" gorm:"foreignKey:ScanID;constraint:OnDelete:CASCADE"`
	Aggregate *ScanAggregate  `json:"aggregate,omitempty" gorm:"foreignKey:ScanID;constraint:OnDelete:CASCADE"`
	Alerts    []DealAlert     `json:"alerts,omitempty" gorm:"foreignKey:ScanID;constraint:OnDelete:CASCADE"`
}

// OfferSnapshot is one marketplace listing as seen during a scan. Position
// is the 1-based position on the source page, kept for reproducibility;
// offer rows exist only as children of a successful ScanRun.
type OfferSnapshot struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	ScanID     uint   `json:"scan_id" gorm:"not null;index"`
	Position   int    `json:"position" gorm:"not null"`
	ArticleID  string `json:"article_id" gorm:"size:32"`
	ArticleURL string `json:"article_url"`

	PriceItem float64  `json:"price_item" gorm:"not null"`
	Shipping  *float64 `json:"shipping"`
	Total     *float64 `json:"total"`
	Currency  string   `json:"currency" gorm:"size:3;default:'EUR'"`

	Quantity  *int      `json:"quantity"`
	Condition Condition `json:"condition,omitempty" gorm:"size:8"`
	Language  string    `json:"language,omitempty" gorm:"size:16"`
	Foil      bool      `json:"foil"`

	SellerName    string   `json:"seller_name,omitempty"`
	SellerID      string   `json:"seller_id,omitempty" gorm:"size:64"`
	SellerCountry string   `json:"seller_country,omitempty" gorm:"size:2"`
	SellerRating  *float64 `json:"seller_rating"`
	SellerSales   *int     `json:"seller_sales"`

	// Flags holds free-form boolean seller/listing flags (professional,
	// powerseller, ...) encoded as JSON.
	Flags string `json:"flags,omitempty" gorm:"type:text"`
}

// EffectiveTotal returns the comparable price for the offer: the computed
// total when known, the bare item price otherwise. ok is false when the
// offer carries no usable price at all.
func (o *OfferSnapshot) EffectiveTotal() (float64, bool) {
	if o.Total != nil {
		return *o.Total, true
	}
	if o.PriceItem > 0 {
		return o.PriceItem, true
	}
	return 0, false
}

// ScanAggregate holds the summary statistics for one successful scan,
// exactly one row per successful ScanRun. Price-derived fields are nil
// only when the scan found zero offers.
type ScanAggregate struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	ScanID uint `json:"scan_id" gorm:"not null;uniqueIndex"`

	OfferCount  int `json:"offer_count" gorm:"not null"`
	SellerCount int `json:"seller_count" gorm:"not null"`

	MinTotal         *float64 `json:"min_total"`
	P10Total         *float64 `json:"p10_total"`
	P25Total         *float64 `json:"p25_total"`
	MedianTotal      *float64 `json:"median_total"`
	P75Total         *float64 `json:"p75_total"`
	P90Total         *float64 `json:"p90_total"`
	MaxTotal         *float64 `json:"max_total"`
	MeanTotal        *float64 `json:"mean_total"`
	TrimmedMeanTotal *float64 `json:"trimmed_mean_total"`
	ModeTotal        *float64 `json:"mode_total"`
	StdevTotal       *float64 `json:"stdev_total"`
	IQRTotal         *float64 `json:"iqr_total"`
}
