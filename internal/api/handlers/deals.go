package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cardmarket-scanner/internal/services"
)

type DealsHandler struct {
	store *services.ScanStore
}

func NewDealsHandler(store *services.ScanStore) *DealsHandler {
	return &DealsHandler{store: store}
}

// GetDeals returns recent deal alerts, newest first.
// Query params: hours (default 24), limit (default 100).
func (h *DealsHandler) GetDeals(c *gin.Context) {
	hours := queryInt(c, "hours", 24)
	limit := queryInt(c, "limit", 100)

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	alerts, err := h.store.RecentDeals(since, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if raw := c.Query(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
