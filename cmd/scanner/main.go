// Command scanner is the operational CLI: run a scan cycle once, test a
// single card, manage the watchlist and inspect recent results without
// going through the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"cardmarket-scanner/internal/config"
	"cardmarket-scanner/internal/database"
	"cardmarket-scanner/internal/models"
	"cardmarket-scanner/internal/services"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: scanner <command> [flags]

Commands:
  scan        Run one full watchlist scan cycle
  test        Scan a single card without touching the watchlist
  add         Add a card to the watchlist
  list        List watchlist entries
  deals       Show recent deal alerts
  stats       Show recent aggregates for a card
  retention   Run one retention pruning pass
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg := config.Load()
	if err := database.Initialize(cfg.DatabasePath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	store := services.NewScanStore(database.GetDB())
	baseline := services.NewBaselineEstimator(store, cfg.BaselineWindowScans)
	classifier := services.NewDealClassifier(cfg.DealPolicy())
	collector := services.NewRemoteCollector(cfg.CollectorURL, cfg.CollectorTimeout, cfg.MaxOffersPerScan)
	scanner := services.NewScanner(collector, store, baseline, classifier, nil)

	switch os.Args[1] {
	case "scan":
		runScanCycle(cfg, scanner, store)
	case "test":
		runTestScan(scanner, os.Args[2:])
	case "add":
		runAdd(store, os.Args[2:])
	case "list":
		runList(store)
	case "deals":
		runDeals(store, os.Args[2:])
	case "stats":
		runStats(store, os.Args[2:])
	case "retention":
		runRetention(cfg, store)
	default:
		usage()
	}
}

func runScanCycle(cfg *config.Config, scanner *services.Scanner, store *services.ScanStore) {
	worker := services.NewScanWorker(scanner, store, cfg.ScanInterval, cfg.ScanRatePerMin)
	worker.RunCycle(context.Background())
}

func cardKeyFlags(fs *flag.FlagSet) (number, set, region *string, foil *bool) {
	number = fs.String("number", "", "card number (e.g. 119)")
	set = fs.String("set", "", "set code (e.g. OP05)")
	region = fs.String("region", "EN", "seller region")
	foil = fs.Bool("foil", false, "foil variant")
	return
}

func requireKey(fs *flag.FlagSet, number, set, region *string, foil *bool) models.CardKey {
	if *number == "" || *set == "" {
		fs.Usage()
		os.Exit(2)
	}
	return models.CardKey{
		CardNumber: strings.TrimSpace(*number),
		SetCode:    strings.ToUpper(strings.TrimSpace(*set)),
		Region:     strings.ToUpper(strings.TrimSpace(*region)),
		Foil:       *foil,
	}
}

func runTestScan(scanner *services.Scanner, args []string) {
	fs := flag.NewFlagSet("test", flag.ExitOnError)
	number, set, region, foil := cardKeyFlags(fs)
	name := fs.String("name", "", "display name for the collector query")
	fs.Parse(args)

	key := requireKey(fs, number, set, region, foil)
	entry := models.WatchlistEntry{CardKey: key, DisplayName: *name}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	outcome := scanner.ScanEntry(ctx, entry, "cli-test")
	if outcome.Err != nil {
		log.Fatalf("Scan failed: %v", outcome.Err)
	}

	agg := outcome.Aggregate
	fmt.Printf("Scanned %s: %d offers from %d sellers\n", key, agg.OfferCount, agg.SellerCount)
	if agg.MedianTotal != nil {
		fmt.Printf("  min %.2f  median %.2f  mean %.2f  max %.2f\n",
			*agg.MinTotal, *agg.MedianTotal, *agg.MeanTotal, *agg.MaxTotal)
	}
	if outcome.Baseline != nil {
		fmt.Printf("  baseline %.2f, %d deal alerts\n", *outcome.Baseline, len(outcome.Alerts))
	} else {
		fmt.Println("  no baseline yet (first scan for this card)")
	}
}

func runAdd(store *services.ScanStore, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	number, set, region, foil := cardKeyFlags(fs)
	name := fs.String("name", "", "display name (required)")
	fs.Parse(args)

	key := requireKey(fs, number, set, region, foil)
	if *name == "" {
		fs.Usage()
		os.Exit(2)
	}

	entry := models.WatchlistEntry{CardKey: key, DisplayName: *name, Active: true}
	if err := store.AddWatchlistEntry(&entry); err != nil {
		log.Fatalf("Failed to add watchlist entry: %v", err)
	}
	fmt.Printf("Added %s (%s) as entry %d\n", entry.DisplayName, key, entry.ID)
}

func runList(store *services.ScanStore) {
	entries, err := store.Watchlist()
	if err != nil {
		log.Fatalf("Failed to load watchlist: %v", err)
	}
	if len(entries) == 0 {
		fmt.Println("Watchlist is empty")
		return
	}
	for _, e := range entries {
		state := "active"
		if !e.Active {
			state = "paused"
		}
		fmt.Printf("%4d  %-30s  %-20s  %s\n", e.ID, e.DisplayName, e.CardKey, state)
	}
}

func runDeals(store *services.ScanStore, args []string) {
	fs := flag.NewFlagSet("deals", flag.ExitOnError)
	hours := fs.Int("hours", 24, "look back this many hours")
	limit := fs.Int("limit", 50, "maximum number of alerts")
	fs.Parse(args)

	since := time.Now().UTC().Add(-time.Duration(*hours) * time.Hour)
	alerts, err := store.RecentDeals(since, *limit)
	if err != nil {
		log.Fatalf("Failed to load deals: %v", err)
	}
	if len(alerts) == 0 {
		fmt.Printf("No deals in the last %dh\n", *hours)
		return
	}
	for _, a := range alerts {
		fmt.Printf("%s  %-30s  %.2f EUR (baseline %.2f, %.0f%%)  %s\n",
			a.Timestamp.Format("2006-01-02 15:04"),
			a.CardName, a.Total, a.Baseline, a.Discount*100, a.ArticleURL)
	}
}

func runStats(store *services.ScanStore, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	number, set, region, foil := cardKeyFlags(fs)
	days := fs.Int("days", 7, "look back this many days")
	fs.Parse(args)

	key := requireKey(fs, number, set, region, foil)
	since := time.Now().UTC().AddDate(0, 0, -*days)
	points, err := store.AggregateHistory(key, since, 500)
	if err != nil {
		log.Fatalf("Failed to load stats: %v", err)
	}
	if len(points) == 0 {
		fmt.Printf("No scan history for %s in the last %dd\n", key, *days)
		return
	}
	for _, p := range points {
		if p.MedianTotal == nil {
			fmt.Printf("%s  no offers\n", p.Timestamp.Format("2006-01-02 15:04"))
			continue
		}
		fmt.Printf("%s  %3d offers  min %.2f  median %.2f  max %.2f\n",
			p.Timestamp.Format("2006-01-02 15:04"),
			p.OfferCount, *p.MinTotal, *p.MedianTotal, *p.MaxTotal)
	}
}

func runRetention(cfg *config.Config, store *services.ScanStore) {
	worker := services.NewRetentionWorker(store, services.RetentionPolicy{
		OfferDays:  cfg.OfferRetentionDays,
		ScanDays:   cfg.ScanRetentionDays,
		AlertDays:  cfg.AlertRetentionDays,
		LegacyDays: cfg.LegacyRetentionDays,
	}, cfg.RetentionCheckInterval)

	result, err := worker.Prune()
	if err != nil {
		log.Fatalf("Retention pruning failed: %v", err)
	}
	fmt.Printf("Removed %d offers, %d scan runs, %d alerts, %d legacy rows\n",
		result.Offers, result.ScanRuns, result.Alerts, result.Legacy)
}
