// Package stats reduces one scan's offers to the fixed set of summary
// statistics stored in scan_aggregates. Everything here is a pure function
// of its input; the same offer list always yields the same aggregate.
package stats

import (
	"math"
	"sort"

	"cardmarket-scanner/internal/models"
)

// TrimFraction is the symmetric fraction dropped from each tail for the
// trimmed mean.
const TrimFraction = 0.10

// Round2 rounds a monetary value to two decimal places, half away from
// zero, matching the currency's minor unit.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Calculate computes the aggregate statistics for one scan's offers.
// Offers without a usable positive price are rejected individually and do
// not abort the aggregation. An empty (or fully rejected) offer list yields
// OfferCount=0 with all price fields nil; that is a valid result, not an
// error.
func Calculate(offers []models.OfferSnapshot) models.ScanAggregate {
	var agg models.ScanAggregate

	prices := make([]float64, 0, len(offers))
	sellers := make(map[string]struct{})

	for i := range offers {
		total, ok := offers[i].EffectiveTotal()
		if !ok || total <= 0 {
			continue
		}
		prices = append(prices, total)

		switch {
		case offers[i].SellerID != "":
			sellers[offers[i].SellerID] = struct{}{}
		case offers[i].SellerName != "":
			sellers[offers[i].SellerName] = struct{}{}
		}
	}

	agg.OfferCount = len(prices)
	agg.SellerCount = len(sellers)

	if len(prices) == 0 {
		return agg
	}

	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	agg.MinTotal = round2p(sorted[0])
	agg.P10Total = round2p(percentile(sorted, 0.10))
	agg.P25Total = round2p(percentile(sorted, 0.25))
	agg.MedianTotal = round2p(percentile(sorted, 0.50))
	agg.P75Total = round2p(percentile(sorted, 0.75))
	agg.P90Total = round2p(percentile(sorted, 0.90))
	agg.MaxTotal = round2p(sorted[len(sorted)-1])

	agg.MeanTotal = round2p(mean(sorted))
	agg.TrimmedMeanTotal = round2p(trimmedMean(sorted, TrimFraction))
	agg.ModeTotal = round2p(mode(sorted))
	agg.StdevTotal = round2p(stdevPopulation(sorted))

	// Defined as the difference of the rounded quartiles so the stored
	// identity iqr = p75 - p25 holds exactly.
	agg.IQRTotal = round2p(*agg.P75Total - *agg.P25Total)

	return agg
}

// percentile evaluates percentile p (0..1) over sorted values using linear
// interpolation between order statistics at rank p*(n-1).
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	k := p * float64(n-1)
	f := math.Floor(k)
	i := int(f)
	if i+1 >= n {
		return sorted[n-1]
	}

	return sorted[i]*(f+1-k) + sorted[i+1]*(k-f)
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// trimmedMean drops floor(n*frac) values from each tail of the sorted input
// and averages the remainder. If trimming would remove everything it falls
// back to the plain mean.
func trimmedMean(sorted []float64, frac float64) float64 {
	n := len(sorted)
	k := int(float64(n) * frac)
	if k <= 0 {
		return mean(sorted)
	}
	if 2*k >= n {
		return mean(sorted)
	}
	return mean(sorted[k : n-k])
}

// mode returns the most frequent price after rounding to cents; ties break
// toward the lowest value.
func mode(values []float64) float64 {
	counts := make(map[int64]int, len(values))
	for _, v := range values {
		counts[int64(math.Round(v*100))]++
	}

	var bestCents int64
	bestCount := 0
	for cents, count := range counts {
		if count > bestCount || (count == bestCount && cents < bestCents) {
			bestCents = cents
			bestCount = count
		}
	}

	return float64(bestCents) / 100
}

// stdevPopulation is the population standard deviation (divide by n).
// Chosen over the sample form because each scan is a complete snapshot of
// the listings at that moment, not a sample of a larger population.
func stdevPopulation(values []float64) float64 {
	if len(values) == 1 {
		return 0
	}

	m := mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}

	return math.Sqrt(sumSq / float64(len(values)))
}

func round2p(v float64) *float64 {
	r := Round2(v)
	return &r
}
