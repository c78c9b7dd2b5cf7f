package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cardmarket-scanner/internal/api/handlers"
	"cardmarket-scanner/internal/metrics"
	"cardmarket-scanner/internal/services"
)

func SetupRouter(store *services.ScanStore, baseline *services.BaselineEstimator, worker *services.ScanWorker, corsOrigins string) *gin.Engine {
	router := gin.Default()

	// CORS configuration - allow origins from config or any origin for local use
	config := cors.DefaultConfig()
	if corsOrigins != "" && corsOrigins != "*" {
		config.AllowOrigins = strings.Split(corsOrigins, ",")
	} else {
		config.AllowAllOrigins = true
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(config))

	router.Use(observeRequests())

	// Initialize handlers
	watchlistHandler := handlers.NewWatchlistHandler(store, worker)
	dealsHandler := handlers.NewDealsHandler(store)
	scansHandler := handlers.NewScansHandler(store, baseline, worker)

	// API routes
	api := router.Group("/api")
	{
		// Watchlist routes
		watchlist := api.Group("/watchlist")
		{
			watchlist.GET("", watchlistHandler.GetWatchlist)
			watchlist.POST("", watchlistHandler.AddEntry)
			watchlist.PUT("/:id/active", watchlistHandler.SetActive)
			watchlist.DELETE("/:id", watchlistHandler.DeleteEntry)
			watchlist.POST("/:id/scan", watchlistHandler.TriggerScan)
		}

		// Deal routes
		deals := api.Group("/deals")
		{
			deals.GET("", dealsHandler.GetDeals)
		}

		// Scan history routes
		scans := api.Group("/scans")
		{
			scans.GET("", scansHandler.GetRecentScans)
			scans.GET("/stats", scansHandler.GetCardStats)
			scans.GET("/baseline", scansHandler.GetBaseline)
			scans.GET("/status", scansHandler.GetWorkerStatus)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// observeRequests records request counts and latency per route.
func observeRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method, path,
		).Observe(time.Since(start).Seconds())
	}
}
