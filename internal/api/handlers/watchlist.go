package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cardmarket-scanner/internal/models"
	"cardmarket-scanner/internal/services"
)

type WatchlistHandler struct {
	store  *services.ScanStore
	worker *services.ScanWorker
}

func NewWatchlistHandler(store *services.ScanStore, worker *services.ScanWorker) *WatchlistHandler {
	return &WatchlistHandler{
		store:  store,
		worker: worker,
	}
}

// GetWatchlist returns all watchlist entries, active and paused
func (h *WatchlistHandler) GetWatchlist(c *gin.Context) {
	entries, err := h.store.Watchlist()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// AddEntry creates a new watchlist entry
func (h *WatchlistHandler) AddEntry(c *gin.Context) {
	var req models.AddWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry := models.WatchlistEntry{
		CardKey: models.CardKey{
			CardNumber: strings.TrimSpace(req.CardNumber),
			SetCode:    strings.ToUpper(strings.TrimSpace(req.SetCode)),
			Region:     strings.ToUpper(strings.TrimSpace(req.Region)),
			Foil:       req.Foil,
		},
		DisplayName: strings.TrimSpace(req.DisplayName),
		Active:      true,
	}

	if err := h.store.AddWatchlistEntry(&entry); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, gin.H{"error": "card is already on the watchlist"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// SetActive pauses or resumes scanning for one entry
func (h *WatchlistHandler) SetActive(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.SetWatchlistActive(uint(id), req.Active); err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "watchlist entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "active": req.Active})
}

// DeleteEntry removes an entry from the watchlist
func (h *WatchlistHandler) DeleteEntry(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}

	if err := h.store.DeleteWatchlistEntry(uint(id)); err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "watchlist entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// TriggerScan queues an out-of-band scan for one entry
func (h *WatchlistHandler) TriggerScan(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}

	if _, err := h.store.WatchlistEntryByID(uint(id)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "watchlist entry not found"})
		return
	}

	position := h.worker.QueueScan(uint(id))
	c.JSON(http.StatusAccepted, gin.H{"id": id, "queue_position": position})
}
