package services

import (
	"context"
	"errors"
	"log"

	"cardmarket-scanner/internal/models"
	"cardmarket-scanner/internal/stats"
)

// ScanOutcome is everything one scan attempt produced. Err is nil for a
// fully persisted successful scan; a non-nil Err wraps ErrCollect or
// ErrPersistence so callers can tell the failure kinds apart.
type ScanOutcome struct {
	Run       *models.ScanRun
	Aggregate *models.ScanAggregate
	Alerts    []models.DealAlert
	Baseline  *float64
	Err       error
}

// Scanner runs the full pipeline for one watchlist entry: collect offers,
// compute statistics, look up the baseline, classify deals and persist
// everything.
type Scanner struct {
	collector  Collector
	store      *ScanStore
	baseline   *BaselineEstimator
	classifier *DealClassifier
	notifier   Notifier
}

func NewScanner(collector Collector, store *ScanStore, baseline *BaselineEstimator, classifier *DealClassifier, notifier Notifier) *Scanner {
	return &Scanner{
		collector:  collector,
		store:      store,
		baseline:   baseline,
		classifier: classifier,
		notifier:   notifier,
	}
}

// ScanEntry scans one watchlist entry. Failures are contained: a collection
// or persistence error is recorded and reported in the outcome, never
// propagated as a panic, so one bad card cannot stop a cycle.
func (s *Scanner) ScanEntry(ctx context.Context, entry models.WatchlistEntry, cycleID string) *ScanOutcome {
	run := &models.ScanRun{
		CycleID:     cycleID,
		WatchlistID: &entry.ID,
		CardName:    entry.DisplayName,
		CardKey:     entry.CardKey,
	}
	outcome := &ScanOutcome{Run: run}

	result, err := s.collector.Collect(ctx, entry)
	if result != nil {
		run.SourceURL = result.SourceURL
		run.ProductID = result.ProductID
		run.HTTPStatus = result.HTTPStatus
	}
	if err != nil {
		run.Error = err.Error()
		if recErr := s.store.RecordFailure(run); recErr != nil {
			log.Printf("Failed to record failed scan for %s: %v", entry.CardKey, recErr)
			outcome.Err = recErr
			return outcome
		}
		outcome.Err = err
		return outcome
	}

	agg := stats.Calculate(result.Offers)
	outcome.Aggregate = &agg

	// The baseline is derived from history before this scan lands, so a
	// sudden market move is judged against the past, not against itself.
	var alerts []models.DealAlert
	baseline, blErr := s.baseline.Baseline(entry.CardKey)
	switch {
	case blErr == nil:
		outcome.Baseline = &baseline
		alerts = s.classifier.Classify(run, result.Offers, baseline)
	case errors.Is(blErr, ErrNoBaseline):
		// First scan of this key; nothing to compare against yet.
	default:
		log.Printf("Baseline lookup failed for %s: %v", entry.CardKey, blErr)
	}

	if err := s.store.RecordSuccess(run, result.Offers, &agg); err != nil {
		outcome.Err = err
		return outcome
	}
	s.baseline.Invalidate(entry.CardKey)

	if err := s.store.SaveLegacySummary(run, &agg); err != nil {
		log.Printf("Failed to write legacy summary for %s: %v", entry.CardKey, err)
	}

	for i := range alerts {
		alerts[i].ScanID = run.ID
	}
	if err := s.store.InsertAlerts(alerts); err != nil {
		log.Printf("Failed to persist deal alerts for %s: %v", entry.CardKey, err)
		outcome.Err = err
		return outcome
	}
	outcome.Alerts = alerts

	if s.notifier != nil {
		for _, alert := range alerts {
			if err := s.notifier.NotifyDeal(alert); err != nil {
				log.Printf("Failed to send deal notification: %v", err)
			}
		}
	}

	return outcome
}
