package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"cardmarket-scanner/internal/models"
)

// ErrCollect marks a failed collection attempt: network error, bad status
// or an unusable payload. The scan is recorded as failed but nothing else
// about the run is affected.
var ErrCollect = errors.New("collection failure")

// CollectResult is what one successful collection yields: the offers in
// page order plus the request context worth auditing.
type CollectResult struct {
	Offers     []models.OfferSnapshot
	SourceURL  string
	ProductID  string
	HTTPStatus *int
}

// Collector fetches the current offers for a watched card. Implementations
// talk to whatever delivers marketplace data; the engine only sees offer
// snapshots.
type Collector interface {
	Collect(ctx context.Context, entry models.WatchlistEntry) (*CollectResult, error)
}

type remoteSeller struct {
	Name    string   `json:"name"`
	ID      string   `json:"id"`
	Country string   `json:"country"`
	Rating  *float64 `json:"rating"`
	Sales   *int     `json:"sales"`
}

type remoteOffer struct {
	ArticleID string       `json:"article_id"`
	URL       string       `json:"url"`
	Price     float64      `json:"price"`
	Shipping  *float64     `json:"shipping"`
	Quantity  *int         `json:"quantity"`
	Condition string       `json:"condition"`
	Language  string       `json:"language"`
	Foil      bool         `json:"foil"`
	Seller    remoteSeller `json:"seller"`
	Flags     string       `json:"flags"`
}

type remoteResponse struct {
	ProductID string        `json:"product_id"`
	URL       string        `json:"url"`
	Offers    []remoteOffer `json:"offers"`
}

// RemoteCollector fetches offers from the collector sidecar, the service
// that handles the actual marketplace access and returns parsed offers as
// JSON.
type RemoteCollector struct {
	client    *resty.Client
	maxOffers int
}

func NewRemoteCollector(baseURL string, timeout time.Duration, maxOffers int) *RemoteCollector {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &RemoteCollector{
		client:    client,
		maxOffers: maxOffers,
	}
}

func (c *RemoteCollector) Collect(ctx context.Context, entry models.WatchlistEntry) (*CollectResult, error) {
	var payload remoteResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"card_number": entry.CardNumber,
			"set_code":    entry.SetCode,
			"region":      entry.Region,
			"foil":        strconv.FormatBool(entry.Foil),
		}).
		SetResult(&payload).
		Get("/offers")
	if err != nil {
		return nil, fmt.Errorf("%w: fetching offers for %s: %v", ErrCollect, entry.CardKey, err)
	}

	status := resp.StatusCode()
	if resp.IsError() {
		return &CollectResult{HTTPStatus: &status, SourceURL: payload.URL},
			fmt.Errorf("%w: collector returned status %d for %s", ErrCollect, status, entry.CardKey)
	}

	offers := make([]models.OfferSnapshot, 0, len(payload.Offers))
	for i, ro := range payload.Offers {
		if c.maxOffers > 0 && len(offers) >= c.maxOffers {
			break
		}
		// A negative price is a parse artifact; drop the row, keep the rest.
		if ro.Price < 0 {
			continue
		}

		offer := models.OfferSnapshot{
			Position:      i + 1,
			ArticleID:     ro.ArticleID,
			ArticleURL:    ro.URL,
			PriceItem:     ro.Price,
			Shipping:      ro.Shipping,
			Currency:      "EUR",
			Quantity:      ro.Quantity,
			Condition:     models.NormalizeCondition(ro.Condition),
			Language:      ro.Language,
			Foil:          ro.Foil,
			SellerName:    ro.Seller.Name,
			SellerID:      ro.Seller.ID,
			SellerCountry: ro.Seller.Country,
			SellerRating:  ro.Seller.Rating,
			SellerSales:   ro.Seller.Sales,
			Flags:         ro.Flags,
		}
		if ro.Shipping != nil && ro.Price > 0 {
			total := ro.Price + *ro.Shipping
			offer.Total = &total
		}
		offers = append(offers, offer)
	}

	return &CollectResult{
		Offers:     offers,
		SourceURL:  payload.URL,
		ProductID:  payload.ProductID,
		HTTPStatus: &status,
	}, nil
}
