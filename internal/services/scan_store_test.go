package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cardmarket-scanner/internal/database"
	"cardmarket-scanner/internal/models"
	"cardmarket-scanner/internal/stats"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	// Every new connection to :memory: would get its own database; keep the
	// pool at one connection so all queries see the same schema.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("getting sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func makeOffers(n int, base float64) []models.OfferSnapshot {
	offers := make([]models.OfferSnapshot, n)
	for i := range offers {
		total := base + float64(i)
		offers[i] = models.OfferSnapshot{
			Position:   i + 1,
			ArticleID:  fmt.Sprintf("a%d", i),
			PriceItem:  total,
			Total:      &total,
			Condition:  models.ConditionNearMint,
			SellerName: fmt.Sprintf("seller%d", i%5),
		}
	}
	return offers
}

func TestRecordSuccessPersistsAll(t *testing.T) {
	db := testDB(t)
	store := NewScanStore(db)

	offers := makeOffers(10, 50.0)
	agg := stats.Calculate(offers)
	run := &models.ScanRun{CardName: "Test Card", CardKey: testKey("119")}

	if err := store.RecordSuccess(run, offers, &agg); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}
	if run.ID == 0 {
		t.Fatal("run ID not assigned")
	}
	if !run.OK {
		t.Error("run not marked ok")
	}
	if run.ParseVersion != ParseVersion {
		t.Errorf("ParseVersion = %q, want %q", run.ParseVersion, ParseVersion)
	}

	var offerCount, aggCount int64
	db.Model(&models.OfferSnapshot{}).Where("scan_id = ?", run.ID).Count(&offerCount)
	db.Model(&models.ScanAggregate{}).Where("scan_id = ?", run.ID).Count(&aggCount)
	if offerCount != 10 {
		t.Errorf("persisted offers = %d, want 10", offerCount)
	}
	if aggCount != 1 {
		t.Errorf("persisted aggregates = %d, want 1", aggCount)
	}
}

func TestRecordSuccessAtomicity(t *testing.T) {
	db := testDB(t)
	store := NewScanStore(db)

	// A duplicated primary key in the offer batch forces the insert to fail
	// partway through; nothing from the scan may remain visible.
	offers := makeOffers(50, 10.0)
	offers[10].ID = 7
	offers[40].ID = 7

	agg := stats.Calculate(offers)
	run := &models.ScanRun{CardName: "Test Card", CardKey: testKey("119")}

	err := store.RecordSuccess(run, offers, &agg)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("RecordSuccess() error = %v, want ErrPersistence", err)
	}

	var runs, offerRows, aggRows int64
	db.Model(&models.ScanRun{}).Count(&runs)
	db.Model(&models.OfferSnapshot{}).Count(&offerRows)
	db.Model(&models.ScanAggregate{}).Count(&aggRows)
	if runs != 0 || offerRows != 0 || aggRows != 0 {
		t.Errorf("after failed persist: runs=%d offers=%d aggregates=%d, want all 0", runs, offerRows, aggRows)
	}
}

func TestRecordFailurePersistsRunOnly(t *testing.T) {
	db := testDB(t)
	store := NewScanStore(db)

	status := 503
	run := &models.ScanRun{
		CardName:   "Test Card",
		CardKey:    testKey("119"),
		HTTPStatus: &status,
		Error:      "collector returned status 503",
	}
	if err := store.RecordFailure(run); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	if run.OK {
		t.Error("failed run marked ok")
	}

	var runs, offerRows int64
	db.Model(&models.ScanRun{}).Count(&runs)
	db.Model(&models.OfferSnapshot{}).Count(&offerRows)
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
	if offerRows != 0 {
		t.Errorf("offers = %d, want 0", offerRows)
	}
}

func TestTimestampsMonotonicPerKey(t *testing.T) {
	db := testDB(t)
	store := NewScanStore(db)
	key := testKey("119")

	future := time.Now().UTC().Add(time.Hour)
	first := &models.ScanRun{CardKey: key, Timestamp: future}
	agg1 := stats.Calculate(nil)
	if err := store.RecordSuccess(first, nil, &agg1); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}

	second := &models.ScanRun{CardKey: key}
	agg2 := stats.Calculate(nil)
	if err := store.RecordSuccess(second, nil, &agg2); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}

	if !second.Timestamp.After(first.Timestamp) {
		t.Errorf("second timestamp %v not after first %v", second.Timestamp, first.Timestamp)
	}
}

func TestRecentMedians(t *testing.T) {
	db := testDB(t)
	store := NewScanStore(db)
	key := testKey("119")
	otherKey := testKey("120")

	for i, median := range []float64{100.0, 110.0, 90.0, 120.0} {
		offers := makeOffers(3, median-1)
		agg := stats.Calculate(offers)
		run := &models.ScanRun{
			CardKey:   key,
			Timestamp: time.Now().UTC().Add(time.Duration(i) * time.Minute),
		}
		if err := store.RecordSuccess(run, offers, &agg); err != nil {
			t.Fatalf("RecordSuccess() error = %v", err)
		}
	}

	// A failed run and a different key must not contribute.
	if err := store.RecordFailure(&models.ScanRun{CardKey: key, Error: "boom"}); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	otherOffers := makeOffers(3, 500.0)
	otherAgg := stats.Calculate(otherOffers)
	if err := store.RecordSuccess(&models.ScanRun{CardKey: otherKey}, otherOffers, &otherAgg); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}

	medians, err := store.RecentMedians(key, 3)
	if err != nil {
		t.Fatalf("RecentMedians() error = %v", err)
	}
	// makeOffers(3, m-1) yields totals m-1, m, m+1, so the median is m.
	want := []float64{120.0, 90.0, 110.0}
	if len(medians) != len(want) {
		t.Fatalf("len(medians) = %d, want %d", len(medians), len(want))
	}
	for i := range want {
		if medians[i] != want[i] {
			t.Errorf("medians[%d] = %v, want %v", i, medians[i], want[i])
		}
	}
}

func TestCascadeDelete(t *testing.T) {
	db := testDB(t)
	store := NewScanStore(db)

	offers := makeOffers(5, 20.0)
	agg := stats.Calculate(offers)
	run := &models.ScanRun{CardKey: testKey("119")}
	if err := store.RecordSuccess(run, offers, &agg); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}
	if err := store.InsertAlerts([]models.DealAlert{{
		Timestamp: time.Now().UTC(),
		ScanID:    run.ID,
		Total:     20.0,
		Baseline:  30.0,
		Discount:  -0.33,
		CardKey:   run.CardKey,
	}}); err != nil {
		t.Fatalf("InsertAlerts() error = %v", err)
	}

	if _, err := store.DeleteScanRunsBefore(time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("DeleteScanRunsBefore() error = %v", err)
	}

	var offerRows, aggRows, alertRows int64
	db.Model(&models.OfferSnapshot{}).Count(&offerRows)
	db.Model(&models.ScanAggregate{}).Count(&aggRows)
	db.Model(&models.DealAlert{}).Count(&alertRows)
	if offerRows != 0 || aggRows != 0 || alertRows != 0 {
		t.Errorf("after run delete: offers=%d aggregates=%d alerts=%d, want all 0", offerRows, aggRows, alertRows)
	}
}

func TestWatchlistUniqueKey(t *testing.T) {
	db := testDB(t)
	store := NewScanStore(db)

	entry := models.WatchlistEntry{CardKey: testKey("119"), DisplayName: "Luffy", Active: true}
	if err := store.AddWatchlistEntry(&entry); err != nil {
		t.Fatalf("AddWatchlistEntry() error = %v", err)
	}

	dup := models.WatchlistEntry{CardKey: testKey("119"), DisplayName: "Luffy again", Active: true}
	if err := store.AddWatchlistEntry(&dup); err == nil {
		t.Error("duplicate watchlist entry accepted, want unique constraint error")
	}

	foil := testKey("119")
	foil.Foil = true
	variant := models.WatchlistEntry{CardKey: foil, DisplayName: "Luffy foil", Active: true}
	if err := store.AddWatchlistEntry(&variant); err != nil {
		t.Errorf("foil variant rejected: %v", err)
	}
}

func TestWatchlistActiveFilter(t *testing.T) {
	db := testDB(t)
	store := NewScanStore(db)

	a := models.WatchlistEntry{CardKey: testKey("119"), DisplayName: "A", Active: true}
	b := models.WatchlistEntry{CardKey: testKey("120"), DisplayName: "B", Active: true}
	if err := store.AddWatchlistEntry(&a); err != nil {
		t.Fatalf("AddWatchlistEntry() error = %v", err)
	}
	if err := store.AddWatchlistEntry(&b); err != nil {
		t.Fatalf("AddWatchlistEntry() error = %v", err)
	}
	if err := store.SetWatchlistActive(b.ID, false); err != nil {
		t.Fatalf("SetWatchlistActive() error = %v", err)
	}

	active, err := store.ActiveWatchlist()
	if err != nil {
		t.Fatalf("ActiveWatchlist() error = %v", err)
	}
	if len(active) != 1 || active[0].ID != a.ID {
		t.Errorf("ActiveWatchlist() = %v, want only entry %d", active, a.ID)
	}

	all, err := store.Watchlist()
	if err != nil {
		t.Fatalf("Watchlist() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Watchlist() returned %d entries, want 2", len(all))
	}
}

func TestRetentionPrune(t *testing.T) {
	db := testDB(t)
	store := NewScanStore(db)
	key := testKey("119")

	old := time.Now().UTC().AddDate(0, 0, -40)
	oldOffers := makeOffers(3, 10.0)
	oldAgg := stats.Calculate(oldOffers)
	oldRun := &models.ScanRun{CardKey: key, Timestamp: old}
	if err := store.RecordSuccess(oldRun, oldOffers, &oldAgg); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}

	freshOffers := makeOffers(3, 10.0)
	freshAgg := stats.Calculate(freshOffers)
	freshRun := &models.ScanRun{CardKey: key}
	if err := store.RecordSuccess(freshRun, freshOffers, &freshAgg); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}

	worker := NewRetentionWorker(store, RetentionPolicy{OfferDays: 30}, time.Hour)
	result, err := worker.Prune()
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if result.Offers != 3 {
		t.Errorf("pruned offers = %d, want 3", result.Offers)
	}

	// The old run and its aggregate survive; only its raw offers age out.
	var runs, aggRows, offerRows int64
	db.Model(&models.ScanRun{}).Count(&runs)
	db.Model(&models.ScanAggregate{}).Count(&aggRows)
	db.Model(&models.OfferSnapshot{}).Count(&offerRows)
	if runs != 2 || aggRows != 2 {
		t.Errorf("runs=%d aggregates=%d, want 2 each", runs, aggRows)
	}
	if offerRows != 3 {
		t.Errorf("remaining offers = %d, want 3", offerRows)
	}
}
