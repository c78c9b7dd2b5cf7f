package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"cardmarket-scanner/internal/metrics"
	"cardmarket-scanner/internal/models"
)

// ScanWorker drives the periodic scan cycles: every interval it walks the
// active watchlist and scans each entry, rate limited so the collector
// sidecar is never hammered.
type ScanWorker struct {
	scanner      *Scanner
	store        *ScanStore
	scanInterval time.Duration
	limiter      *rate.Limiter

	// Urgent queue for user-requested scans between cycles.
	urgentQueue []uint
	urgentMu    sync.Mutex

	mu             sync.RWMutex
	lastCycleTime  time.Time
	lastCycleID    string
	scansThisCycle int
}

// WorkerStatus is the snapshot reported by the status endpoint.
type WorkerStatus struct {
	LastCycleTime  time.Time `json:"last_cycle_time"`
	NextCycleTime  time.Time `json:"next_cycle_time"`
	LastCycleID    string    `json:"last_cycle_id"`
	ScansLastCycle int       `json:"scans_last_cycle"`
	QueueSize      int       `json:"queue_size"`
}

func NewScanWorker(scanner *Scanner, store *ScanStore, scanInterval time.Duration, scansPerMinute float64) *ScanWorker {
	return &ScanWorker{
		scanner:      scanner,
		store:        store,
		scanInterval: scanInterval,
		limiter:      rate.NewLimiter(rate.Limit(scansPerMinute/60.0), 1),
	}
}

// QueueScan schedules an out-of-band scan for one watchlist entry and
// returns its queue position.
func (w *ScanWorker) QueueScan(entryID uint) int {
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()

	for i, id := range w.urgentQueue {
		if id == entryID {
			return i + 1
		}
	}
	w.urgentQueue = append(w.urgentQueue, entryID)
	log.Printf("Scan worker: queued scan for watchlist entry %d (queue size: %d)", entryID, len(w.urgentQueue))
	return len(w.urgentQueue)
}

// Status reports the worker's current cycle state.
func (w *ScanWorker) Status() WorkerStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	w.urgentMu.Lock()
	queue := len(w.urgentQueue)
	w.urgentMu.Unlock()

	return WorkerStatus{
		LastCycleTime:  w.lastCycleTime,
		NextCycleTime:  w.lastCycleTime.Add(w.scanInterval),
		LastCycleID:    w.lastCycleID,
		ScansLastCycle: w.scansThisCycle,
		QueueSize:      queue,
	}
}

// Start begins the background scan loop. Blocks until ctx is cancelled.
func (w *ScanWorker) Start(ctx context.Context) {
	log.Printf("Scan worker started: full watchlist cycle every %v", w.scanInterval)

	// Run immediately on startup
	w.RunCycle(ctx)

	ticker := time.NewTicker(w.scanInterval)
	defer ticker.Stop()

	urgentTicker := time.NewTicker(5 * time.Second)
	defer urgentTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Scan worker stopping...")
			return
		case <-ticker.C:
			w.RunCycle(ctx)
		case <-urgentTicker.C:
			w.drainUrgent(ctx)
		}
	}
}

// RunCycle scans every active watchlist entry once under a fresh cycle ID.
func (w *ScanWorker) RunCycle(ctx context.Context) {
	entries, err := w.store.ActiveWatchlist()
	if err != nil {
		log.Printf("Scan worker: failed to load watchlist: %v", err)
		return
	}
	metrics.WatchlistSize.Set(float64(len(entries)))
	if len(entries) == 0 {
		return
	}

	cycleID := uuid.New().String()
	log.Printf("Scan cycle %s: scanning %d cards", cycleID, len(entries))

	scanned := 0
	for _, entry := range entries {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		w.scanOne(ctx, entry, cycleID)
		scanned++
	}

	w.mu.Lock()
	w.lastCycleTime = time.Now()
	w.lastCycleID = cycleID
	w.scansThisCycle = scanned
	w.mu.Unlock()

	log.Printf("Scan cycle %s complete: %d cards scanned", cycleID, scanned)
}

func (w *ScanWorker) drainUrgent(ctx context.Context) {
	w.urgentMu.Lock()
	ids := w.urgentQueue
	w.urgentQueue = nil
	w.urgentMu.Unlock()

	for _, id := range ids {
		entry, err := w.store.WatchlistEntryByID(id)
		if err != nil {
			log.Printf("Scan worker: urgent scan skipped, entry %d: %v", id, err)
			continue
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		w.scanOne(ctx, *entry, "urgent-"+uuid.New().String()[:8])
	}
}

// scanOne runs a single scan with panic containment so one corrupt payload
// cannot take the whole cycle down.
func (w *ScanWorker) scanOne(ctx context.Context, entry models.WatchlistEntry, cycleID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Scan worker: panic scanning %s: %v", entry.CardKey, r)
			metrics.ScansTotal.WithLabelValues("persist_error").Inc()
		}
	}()

	start := time.Now()
	outcome := w.scanner.ScanEntry(ctx, entry, cycleID)
	metrics.ScanDuration.Observe(time.Since(start).Seconds())

	switch {
	case outcome.Err == nil:
		metrics.ScansTotal.WithLabelValues("ok").Inc()
		if outcome.Aggregate != nil {
			metrics.OffersCollected.Add(float64(outcome.Aggregate.OfferCount))
		}
		if outcome.Baseline == nil {
			metrics.BaselineMissing.Inc()
		}
		metrics.DealAlertsTotal.Add(float64(len(outcome.Alerts)))
	case errors.Is(outcome.Err, ErrPersistence):
		metrics.ScansTotal.WithLabelValues("persist_error").Inc()
		log.Printf("Scan worker: persistence failure for %s: %v", entry.CardKey, outcome.Err)
	default:
		metrics.ScansTotal.WithLabelValues("collect_error").Inc()
		log.Printf("Scan worker: collection failure for %s: %v", entry.CardKey, outcome.Err)
	}
}
