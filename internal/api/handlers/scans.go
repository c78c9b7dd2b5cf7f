package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cardmarket-scanner/internal/models"
	"cardmarket-scanner/internal/services"
)

type ScansHandler struct {
	store    *services.ScanStore
	baseline *services.BaselineEstimator
	worker   *services.ScanWorker
}

func NewScansHandler(store *services.ScanStore, baseline *services.BaselineEstimator, worker *services.ScanWorker) *ScansHandler {
	return &ScansHandler{
		store:    store,
		baseline: baseline,
		worker:   worker,
	}
}

// cardKeyFromQuery builds the history lookup key from query params.
func cardKeyFromQuery(c *gin.Context) (models.CardKey, bool) {
	key := models.CardKey{
		CardNumber: strings.TrimSpace(c.Query("card_number")),
		SetCode:    strings.ToUpper(strings.TrimSpace(c.Query("set_code"))),
		Region:     strings.ToUpper(strings.TrimSpace(c.Query("region"))),
		Foil:       c.Query("foil") == "true",
	}
	if key.CardNumber == "" || key.SetCode == "" || key.Region == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card_number, set_code and region are required"})
		return models.CardKey{}, false
	}
	return key, true
}

// GetCardStats returns the aggregate history for one card.
// Query params: card_number, set_code, region, foil, days (default 7), limit (default 200).
func (h *ScansHandler) GetCardStats(c *gin.Context) {
	key, ok := cardKeyFromQuery(c)
	if !ok {
		return
	}
	days := queryInt(c, "days", 7)
	limit := queryInt(c, "limit", 200)

	since := time.Now().UTC().AddDate(0, 0, -days)
	points, err := h.store.AggregateHistory(key, since, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"card_key": key,
		"points":   points,
		"count":    len(points),
	})
}

// GetBaseline returns the current rolling baseline for one card
func (h *ScansHandler) GetBaseline(c *gin.Context) {
	key, ok := cardKeyFromQuery(c)
	if !ok {
		return
	}

	baseline, err := h.baseline.Baseline(key)
	if err != nil {
		if errors.Is(err, services.ErrNoBaseline) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no scan history for this card"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"card_key": key, "baseline": baseline})
}

// GetRecentScans returns the scan audit trail, successes and failures alike
func (h *ScansHandler) GetRecentScans(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	runs, err := h.store.RecentScans(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": runs, "count": len(runs)})
}

// GetWorkerStatus returns the scan worker's cycle state
func (h *ScansHandler) GetWorkerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.worker.Status())
}
