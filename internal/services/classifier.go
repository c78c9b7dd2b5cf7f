package services

import (
	"encoding/json"
	"fmt"
	"time"

	"cardmarket-scanner/internal/models"
)

// DealClassifier judges individual offers against a baseline price. It is
// pure: no storage, no clock beyond the timestamp it stamps on alerts.
type DealClassifier struct {
	policy models.DealPolicy
}

func NewDealClassifier(policy models.DealPolicy) *DealClassifier {
	return &DealClassifier{policy: policy}
}

// Classify evaluates every offer of a scan against the baseline and
// returns an alert per qualifying offer. Offers are judged independently;
// the same listing alerts again on the next scan if it still qualifies.
func (c *DealClassifier) Classify(run *models.ScanRun, offers []models.OfferSnapshot, baseline float64) []models.DealAlert {
	if baseline <= 0 {
		return nil
	}

	var alerts []models.DealAlert
	for i := range offers {
		offer := &offers[i]
		if alert := c.classifyOffer(run, offer, baseline); alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	return alerts
}

func (c *DealClassifier) classifyOffer(run *models.ScanRun, offer *models.OfferSnapshot, baseline float64) *models.DealAlert {
	total, ok := offer.EffectiveTotal()
	if !ok || total <= 0 {
		return nil
	}

	// Condition must be known and acceptable. An unknown grade could hide
	// a damaged card, so it never qualifies.
	if !offer.Condition.AtLeast(c.policy.MinCondition) {
		return nil
	}

	// A missing rating is not a bad rating; only an explicit rating below
	// the floor disqualifies.
	if offer.SellerRating != nil && *offer.SellerRating < c.policy.MinSellerRating {
		return nil
	}

	discount := (total - baseline) / baseline
	if discount > -c.policy.DiscountThreshold {
		return nil
	}

	return &models.DealAlert{
		Timestamp:  time.Now().UTC(),
		ScanID:     run.ID,
		ArticleID:  offer.ArticleID,
		ArticleURL: offer.ArticleURL,
		Total:      total,
		Baseline:   baseline,
		Discount:   discount,
		Reason: fmt.Sprintf("%.0f%% below baseline %.2f",
			-discount*100, baseline),
		CardName:   run.CardName,
		CardKey:    run.CardKey,
		SellerName: offer.SellerName,
		Condition:  offer.Condition,
		Meta:       offerMeta(offer),
	}
}

// offerMeta packs the secondary offer context alerts display without
// re-reading the snapshot row.
func offerMeta(offer *models.OfferSnapshot) string {
	meta := map[string]interface{}{}
	if offer.SellerRating != nil {
		meta["seller_rating"] = *offer.SellerRating
	}
	if offer.SellerSales != nil {
		meta["seller_sales"] = *offer.SellerSales
	}
	if offer.Quantity != nil {
		meta["quantity"] = *offer.Quantity
	}
	if offer.Language != "" {
		meta["language"] = offer.Language
	}
	if len(meta) == 0 {
		return ""
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(raw)
}
