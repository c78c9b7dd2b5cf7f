package services

import (
	"context"
	"log"
	"time"

	"cardmarket-scanner/internal/metrics"
)

// RetentionPolicy is the per-table age limit in days. Zero disables
// pruning for that table. Raw offer rows are the bulk of the database and
// age out fastest; aggregates and the legacy summary stay around for
// long-term charts.
type RetentionPolicy struct {
	OfferDays  int
	ScanDays   int
	AlertDays  int
	LegacyDays int
}

// RetentionResult reports what one pruning pass removed.
type RetentionResult struct {
	Offers   int64 `json:"offers"`
	ScanRuns int64 `json:"scan_runs"`
	Alerts   int64 `json:"alerts"`
	Legacy   int64 `json:"legacy"`
}

// RetentionWorker prunes aged rows on a fixed schedule.
type RetentionWorker struct {
	store    *ScanStore
	policy   RetentionPolicy
	interval time.Duration
}

func NewRetentionWorker(store *ScanStore, policy RetentionPolicy, interval time.Duration) *RetentionWorker {
	return &RetentionWorker{
		store:    store,
		policy:   policy,
		interval: interval,
	}
}

// Start begins the background pruning loop. Blocks until ctx is cancelled.
func (w *RetentionWorker) Start(ctx context.Context) {
	log.Printf("Retention worker started: pruning every %v", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Retention worker stopping...")
			return
		case <-ticker.C:
			if _, err := w.Prune(); err != nil {
				log.Printf("Retention worker: pruning failed: %v", err)
			}
		}
	}
}

// Prune runs one pass over all tables. Offers are pruned before scan runs
// so the offer cutoff applies even when the parent run is younger than the
// scan cutoff.
func (w *RetentionWorker) Prune() (*RetentionResult, error) {
	result := &RetentionResult{}
	now := time.Now().UTC()

	if w.policy.OfferDays > 0 {
		n, err := w.store.DeleteOffersBefore(now.AddDate(0, 0, -w.policy.OfferDays))
		if err != nil {
			return result, err
		}
		result.Offers = n
		metrics.RetentionDeletedRows.WithLabelValues("offer_snapshots").Add(float64(n))
	}

	if w.policy.ScanDays > 0 {
		n, err := w.store.DeleteScanRunsBefore(now.AddDate(0, 0, -w.policy.ScanDays))
		if err != nil {
			return result, err
		}
		result.ScanRuns = n
		metrics.RetentionDeletedRows.WithLabelValues("scan_runs").Add(float64(n))
	}

	if w.policy.AlertDays > 0 {
		n, err := w.store.DeleteAlertsBefore(now.AddDate(0, 0, -w.policy.AlertDays))
		if err != nil {
			return result, err
		}
		result.Alerts = n
		metrics.RetentionDeletedRows.WithLabelValues("deal_alerts").Add(float64(n))
	}

	if w.policy.LegacyDays > 0 {
		n, err := w.store.DeleteLegacyBefore(now.AddDate(0, 0, -w.policy.LegacyDays))
		if err != nil {
			return result, err
		}
		result.Legacy = n
		metrics.RetentionDeletedRows.WithLabelValues("price_history").Add(float64(n))
	}

	if total := result.Offers + result.ScanRuns + result.Alerts + result.Legacy; total > 0 {
		log.Printf("Retention: removed %d offers, %d scan runs, %d alerts, %d legacy rows",
			result.Offers, result.ScanRuns, result.Alerts, result.Legacy)
	}
	return result, nil
}
