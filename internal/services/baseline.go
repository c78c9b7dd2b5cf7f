package services

import (
	"errors"
	"fmt"
	"log"

	lru "github.com/hashicorp/golang-lru/v2"

	"cardmarket-scanner/internal/models"
	"cardmarket-scanner/internal/stats"
)

// ErrNoBaseline signals that a card key has no successful scan history yet.
// The first scan of a new card always hits this; callers skip deal
// detection for that scan rather than treating it as a failure.
var ErrNoBaseline = errors.New("no baseline history")

const baselineCacheSize = 512

// medianSource is the slice of the store the estimator needs. ScanStore
// satisfies it; tests substitute a stub.
type medianSource interface {
	RecentMedians(key models.CardKey, window int) ([]float64, error)
}

// BaselineEstimator derives a reference price per card key from recent scan
// history: the mean of the median prices of the most recent successful
// scans. Medians resist outlier listings within a scan; averaging across
// scans smooths market movement over the window.
type BaselineEstimator struct {
	store  medianSource
	window int
	cache  *lru.Cache[models.CardKey, float64]
}

func NewBaselineEstimator(store medianSource, window int) *BaselineEstimator {
	cache, err := lru.New[models.CardKey, float64](baselineCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		log.Fatalf("Failed to create baseline cache: %v", err)
	}
	return &BaselineEstimator{
		store:  store,
		window: window,
		cache:  cache,
	}
}

// Baseline returns the rolling baseline price for the card key, or
// ErrNoBaseline when no successful scan has ever produced a median for it.
func (b *BaselineEstimator) Baseline(key models.CardKey) (float64, error) {
	if v, ok := b.cache.Get(key); ok {
		return v, nil
	}

	medians, err := b.store.RecentMedians(key, b.window)
	if err != nil {
		return 0, fmt.Errorf("loading baseline history for %s: %w", key, err)
	}
	if len(medians) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoBaseline, key)
	}

	sum := 0.0
	for _, m := range medians {
		sum += m
	}
	baseline := stats.Round2(sum / float64(len(medians)))

	b.cache.Add(key, baseline)
	return baseline, nil
}

// Invalidate drops the cached baseline for a key. Called after every
// successful persist so the next lookup reflects the scan that just landed.
func (b *BaselineEstimator) Invalidate(key models.CardKey) {
	b.cache.Remove(key)
}
