package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"cardmarket-scanner/internal/models"
)

// ParseVersion tags every scan run with the offer-format revision the
// collector speaks, so historical rows can be reinterpreted if the format
// changes.
const ParseVersion = "v2.0"

// offerInsertBatchSize bounds the size of the batched offer insert.
const offerInsertBatchSize = 100

// ErrPersistence marks a storage failure. Callers treat it differently
// from a collection failure: the scan's data is not visible at all and the
// attempt should be retried or alerted on operationally.
var ErrPersistence = errors.New("persistence failure")

// ScanStore owns all database access for scan history, alerts and the
// watchlist.
type ScanStore struct {
	db *gorm.DB
}

func NewScanStore(db *gorm.DB) *ScanStore {
	return &ScanStore{db: db}
}

// RecordSuccess persists a successful scan as one atomic unit: the run row,
// all offer snapshots (batched insert, not row-at-a-time) and the
// aggregate. Either all of them become visible or none do.
func (s *ScanStore) RecordSuccess(run *models.ScanRun, offers []models.OfferSnapshot, agg *models.ScanAggregate) error {
	run.OK = true
	run.ParseVersion = ParseVersion

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := assignTimestamp(tx, run); err != nil {
			return err
		}
		if err := tx.Create(run).Error; err != nil {
			return err
		}

		if len(offers) > 0 {
			for i := range offers {
				offers[i].ScanID = run.ID
			}
			if err := tx.CreateInBatches(offers, offerInsertBatchSize).Error; err != nil {
				return err
			}
		}

		agg.ScanID = run.ID
		return tx.Create(agg).Error
	})
	if err != nil {
		return fmt.Errorf("%w: recording scan for %s: %v", ErrPersistence, run.Key(), err)
	}

	return nil
}

// RecordFailure persists a failed scan attempt. The run row is the audit
// trail: a failure must never silently disappear. No offers or aggregate
// are written.
func (s *ScanStore) RecordFailure(run *models.ScanRun) error {
	run.OK = false
	run.ParseVersion = ParseVersion

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := assignTimestamp(tx, run); err != nil {
			return err
		}
		return tx.Create(run).Error
	})
	if err != nil {
		return fmt.Errorf("%w: recording failed scan for %s: %v", ErrPersistence, run.Key(), err)
	}

	return nil
}

// assignTimestamp stamps the run inside the write transaction, keeping
// timestamps monotonic per card key even across wall-clock adjustments.
// Cross-key ordering is irrelevant and not enforced.
func assignTimestamp(tx *gorm.DB, run *models.ScanRun) error {
	now := time.Now().UTC()
	if !run.Timestamp.IsZero() {
		now = run.Timestamp
	}

	var last models.ScanRun
	err := tx.Where("card_number = ? AND set_code = ? AND region = ? AND foil = ?",
		run.CardNumber, run.SetCode, run.Region, run.Foil).
		Order("timestamp DESC").
		Limit(1).
		Find(&last).Error
	if err != nil {
		return err
	}

	if !now.After(last.Timestamp) {
		now = last.Timestamp.Add(time.Millisecond)
	}
	run.Timestamp = now
	return nil
}

// RecentMedians returns up to window median_total values for the exact card
// key, most recent first, considering only successful scans with a defined
// median. This query is the sole input of the rolling baseline.
func (s *ScanStore) RecentMedians(key models.CardKey, window int) ([]float64, error) {
	var medians []float64
	err := s.db.Table("scan_runs").
		Joins("INNER JOIN scan_aggregates ON scan_aggregates.scan_id = scan_runs.id").
		Where("scan_runs.card_number = ? AND scan_runs.set_code = ? AND scan_runs.region = ? AND scan_runs.foil = ?",
			key.CardNumber, key.SetCode, key.Region, key.Foil).
		Where("scan_runs.ok = ?", true).
		Where("scan_aggregates.median_total IS NOT NULL").
		Order("scan_runs.timestamp DESC, scan_runs.id DESC").
		Limit(window).
		Pluck("scan_aggregates.median_total", &medians).Error
	if err != nil {
		return nil, err
	}
	return medians, nil
}

// InsertAlerts persists the classifier's alerts for one scan.
func (s *ScanStore) InsertAlerts(alerts []models.DealAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	if err := s.db.Create(&alerts).Error; err != nil {
		return fmt.Errorf("%w: inserting %d deal alerts: %v", ErrPersistence, len(alerts), err)
	}
	return nil
}

// SaveLegacySummary writes the pre-v2 summary row for backward
// compatibility with old reporting queries. Best effort, non-authoritative;
// scan_aggregates is the source of truth.
func (s *ScanStore) SaveLegacySummary(run *models.ScanRun, agg *models.ScanAggregate) error {
	if agg.MinTotal == nil || agg.MeanTotal == nil || agg.MaxTotal == nil {
		return nil
	}

	row := models.PriceHistory{
		CardName:   run.CardName,
		CardNumber: run.CardNumber,
		SetCode:    run.SetCode,
		MinPrice:   *agg.MinTotal,
		AvgPrice:   *agg.MeanTotal,
		MaxPrice:   *agg.MaxTotal,
		OfferCount: agg.OfferCount,
		Region:     run.Region,
		Foil:       run.Foil,
		RecordedAt: run.Timestamp,
	}
	return s.db.Create(&row).Error
}

// ActiveWatchlist returns the entries the scheduler should scan this cycle.
func (s *ScanStore) ActiveWatchlist() ([]models.WatchlistEntry, error) {
	var entries []models.WatchlistEntry
	if err := s.db.Where("active = ?", true).Order("id").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Watchlist returns all entries, active or paused.
func (s *ScanStore) Watchlist() ([]models.WatchlistEntry, error) {
	var entries []models.WatchlistEntry
	if err := s.db.Order("id").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *ScanStore) WatchlistEntryByID(id uint) (*models.WatchlistEntry, error) {
	var entry models.WatchlistEntry
	if err := s.db.First(&entry, id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *ScanStore) AddWatchlistEntry(entry *models.WatchlistEntry) error {
	return s.db.Create(entry).Error
}

func (s *ScanStore) SetWatchlistActive(id uint, active bool) error {
	result := s.db.Model(&models.WatchlistEntry{}).Where("id = ?", id).Update("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *ScanStore) DeleteWatchlistEntry(id uint) error {
	result := s.db.Delete(&models.WatchlistEntry{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RecentDeals returns alerts emitted at or after since, newest first.
func (s *ScanStore) RecentDeals(since time.Time, limit int) ([]models.DealAlert, error) {
	var alerts []models.DealAlert
	err := s.db.Where("timestamp >= ?", since).
		Order("timestamp DESC").
		Limit(limit).
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// AggregatePoint is one successful scan's statistics with its timestamp,
// for history views.
type AggregatePoint struct {
	Timestamp time.Time `json:"timestamp"`
	models.ScanAggregate
}

// AggregateHistory returns the aggregates for a card key since the given
// time, newest first.
func (s *ScanStore) AggregateHistory(key models.CardKey, since time.Time, limit int) ([]AggregatePoint, error) {
	var points []AggregatePoint
	err := s.db.Table("scan_runs").
		Select("scan_runs.timestamp, scan_aggregates.*").
		Joins("INNER JOIN scan_aggregates ON scan_aggregates.scan_id = scan_runs.id").
		Where("scan_runs.card_number = ? AND scan_runs.set_code = ? AND scan_runs.region = ? AND scan_runs.foil = ?",
			key.CardNumber, key.SetCode, key.Region, key.Foil).
		Where("scan_runs.ok = ? AND scan_runs.timestamp >= ?", true, since).
		Order("scan_runs.timestamp DESC").
		Limit(limit).
		Scan(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}

// RecentScans returns the latest scan runs, successes and failures alike,
// for the audit view.
func (s *ScanStore) RecentScans(limit int) ([]models.ScanRun, error) {
	var runs []models.ScanRun
	err := s.db.Order("timestamp DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// DeleteOffersBefore removes offer snapshots whose parent scan ran before
// cutoff, keeping the cheaper aggregates around longer than the raw rows.
func (s *ScanStore) DeleteOffersBefore(cutoff time.Time) (int64, error) {
	result := s.db.Exec(`
		DELETE FROM offer_snapshots
		WHERE scan_id IN (SELECT id FROM scan_runs WHERE timestamp < ?)
	`, cutoff)
	return result.RowsAffected, result.Error
}

// DeleteScanRunsBefore removes scan runs older than cutoff; offers,
// aggregates and alerts follow via cascade.
func (s *ScanStore) DeleteScanRunsBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("timestamp < ?", cutoff).Delete(&models.ScanRun{})
	return result.RowsAffected, result.Error
}

// DeleteAlertsBefore prunes deal alerts independently of scan history.
func (s *ScanStore) DeleteAlertsBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("timestamp < ?", cutoff).Delete(&models.DealAlert{})
	return result.RowsAffected, result.Error
}

// DeleteLegacyBefore prunes the legacy summary table.
func (s *ScanStore) DeleteLegacyBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("recorded_at < ?", cutoff).Delete(&models.PriceHistory{})
	return result.RowsAffected, result.Error
}
