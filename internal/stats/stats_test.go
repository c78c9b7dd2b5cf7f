package stats

import (
	"math"
	"testing"

	"cardmarket-scanner/internal/models"
)

func fptr(v float64) *float64 {
	return &v
}

func offersFromPrices(prices ...float64) []models.OfferSnapshot {
	offers := make([]models.OfferSnapshot, len(prices))
	for i, p := range prices {
		offers[i] = models.OfferSnapshot{
			Position:  i + 1,
			PriceItem: p,
			Total:     fptr(p),
		}
	}
	return offers
}

func TestCalculateMedianLinearInterpolation(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{"odd count exact middle", []float64{10, 20, 30}, 20},
		{"even count interpolated", []float64{10, 20}, 15},
		{"single value", []float64{42.5}, 42.5},
		{"unsorted input", []float64{30, 10, 20}, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := Calculate(offersFromPrices(tt.prices...))
			if agg.MedianTotal == nil {
				t.Fatal("MedianTotal = nil, want value")
			}
			if *agg.MedianTotal != tt.want {
				t.Errorf("MedianTotal = %v, want %v", *agg.MedianTotal, tt.want)
			}
		})
	}
}

func TestCalculatePercentilesMonotonic(t *testing.T) {
	lists := [][]float64{
		{5.99},
		{1.50, 2.00},
		{3.20, 1.10, 9.99, 4.45, 2.80},
		{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		{7.77, 7.77, 7.77, 7.77},
		{0.01, 10000, 5.5, 5.5, 123.45, 67.89, 2.34},
	}

	for _, prices := range lists {
		agg := Calculate(offersFromPrices(prices...))
		ordered := []*float64{
			agg.MinTotal, agg.P10Total, agg.P25Total, agg.MedianTotal,
			agg.P75Total, agg.P90Total, agg.MaxTotal,
		}
		for i := 1; i < len(ordered); i++ {
			if *ordered[i-1] > *ordered[i] {
				t.Errorf("percentiles not monotonic for %v: index %d: %v > %v",
					prices, i, *ordered[i-1], *ordered[i])
			}
		}
	}
}

func TestCalculateTrimmedMean(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		// 10 values, 10% trim drops one per side: mean of 2..9.
		{"ten values drops one per side", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 5.5},
		// floor(5*0.1)=0: nothing trimmed.
		{"five values trims nothing", []float64{1, 2, 3, 4, 100}, 22},
		// trimming everything falls back to the plain mean.
		{"two values falls back to mean", []float64{10, 20}, 15},
		{"single value", []float64{7}, 7},
		// 20 values drop 2 per side.
		{"twenty values drops two per side",
			[]float64{1, 1, 2, 3, 4, 5, 6, 7, 8, 9, 11, 12, 13, 14, 15, 16, 17, 18, 99, 99},
			float64(2+3+4+5+6+7+8+9+11+12+13+14+15+16+17+18) / 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := Calculate(offersFromPrices(tt.prices...))
			want := Round2(tt.want)
			if *agg.TrimmedMeanTotal != want {
				t.Errorf("TrimmedMeanTotal = %v, want %v", *agg.TrimmedMeanTotal, want)
			}
		})
	}
}

func TestCalculateIQRIdentity(t *testing.T) {
	lists := [][]float64{
		{10, 20, 30},
		{1.11, 2.22, 3.33, 4.44, 5.55, 6.66},
		{3.2, 1.1, 9.99, 4.45, 2.8, 100.01, 55.5},
	}

	for _, prices := range lists {
		agg := Calculate(offersFromPrices(prices...))
		want := Round2(*agg.P75Total - *agg.P25Total)
		if *agg.IQRTotal != want {
			t.Errorf("IQRTotal = %v, want p75-p25 = %v for %v", *agg.IQRTotal, want, prices)
		}
	}
}

func TestCalculateEmptyOffers(t *testing.T) {
	agg := Calculate(nil)

	if agg.OfferCount != 0 {
		t.Errorf("OfferCount = %d, want 0", agg.OfferCount)
	}
	if agg.SellerCount != 0 {
		t.Errorf("SellerCount = %d, want 0", agg.SellerCount)
	}

	nilFields := map[string]*float64{
		"MinTotal":         agg.MinTotal,
		"P10Total":         agg.P10Total,
		"P25Total":         agg.P25Total,
		"MedianTotal":      agg.MedianTotal,
		"P75Total":         agg.P75Total,
		"P90Total":         agg.P90Total,
		"MaxTotal":         agg.MaxTotal,
		"MeanTotal":        agg.MeanTotal,
		"TrimmedMeanTotal": agg.TrimmedMeanTotal,
		"ModeTotal":        agg.ModeTotal,
		"StdevTotal":       agg.StdevTotal,
		"IQRTotal":         agg.IQRTotal,
	}
	for name, field := range nilFields {
		if field != nil {
			t.Errorf("%s = %v, want nil for empty input", name, *field)
		}
	}
}

func TestCalculateRejectsInvalidOffers(t *testing.T) {
	offers := offersFromPrices(10, 20, 30)
	offers = append(offers,
		models.OfferSnapshot{Position: 4, PriceItem: -5, Total: fptr(-5)},
		models.OfferSnapshot{Position: 5, PriceItem: 0},
	)

	agg := Calculate(offers)

	if agg.OfferCount != 3 {
		t.Errorf("OfferCount = %d, want 3 (invalid offers rejected individually)", agg.OfferCount)
	}
	if *agg.MedianTotal != 20 {
		t.Errorf("MedianTotal = %v, want 20", *agg.MedianTotal)
	}
}

func TestCalculateFallsBackToItemPrice(t *testing.T) {
	offers := []models.OfferSnapshot{
		{Position: 1, PriceItem: 9.50}, // no Total computed
		{Position: 2, PriceItem: 8.00, Shipping: fptr(1.50), Total: fptr(9.50)},
	}

	agg := Calculate(offers)

	if agg.OfferCount != 2 {
		t.Errorf("OfferCount = %d, want 2", agg.OfferCount)
	}
	if *agg.MeanTotal != 9.50 {
		t.Errorf("MeanTotal = %v, want 9.50", *agg.MeanTotal)
	}
}

func TestCalculateSellerCount(t *testing.T) {
	offers := offersFromPrices(10, 11, 12, 13, 14)
	offers[0].SellerID = "alice"
	offers[1].SellerID = "alice" // duplicate
	offers[2].SellerID = "bob"
	offers[3].SellerName = "carol" // name-only identity
	// offers[4] has no seller identity at all

	agg := Calculate(offers)

	if agg.SellerCount != 3 {
		t.Errorf("SellerCount = %d, want 3 distinct sellers", agg.SellerCount)
	}
}

func TestCalculateMode(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{"clear winner", []float64{5, 5, 5, 9, 10}, 5},
		{"tie picks lowest", []float64{10, 10, 20, 20, 30}, 10},
		{"rounded to cents before counting", []float64{4.999, 5.001, 7.25}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := Calculate(offersFromPrices(tt.prices...))
			if *agg.ModeTotal != tt.want {
				t.Errorf("ModeTotal = %v, want %v", *agg.ModeTotal, tt.want)
			}
		})
	}
}

func TestCalculateStdevPopulation(t *testing.T) {
	// Population stdev of {10, 20} is 5; the sample form would give ~7.07.
	agg := Calculate(offersFromPrices(10, 20))
	if *agg.StdevTotal != 5 {
		t.Errorf("StdevTotal = %v, want 5 (population form)", *agg.StdevTotal)
	}

	agg = Calculate(offersFromPrices(12.34))
	if *agg.StdevTotal != 0 {
		t.Errorf("StdevTotal = %v, want 0 for single value", *agg.StdevTotal)
	}
}

func TestCalculateDeterministic(t *testing.T) {
	offers := offersFromPrices(3.2, 1.1, 9.99, 4.45, 2.8, 1.1, 9.99)
	first := Calculate(offers)
	second := Calculate(offers)

	pairs := []struct {
		name string
		a, b *float64
	}{
		{"MedianTotal", first.MedianTotal, second.MedianTotal},
		{"TrimmedMeanTotal", first.TrimmedMeanTotal, second.TrimmedMeanTotal},
		{"ModeTotal", first.ModeTotal, second.ModeTotal},
		{"StdevTotal", first.StdevTotal, second.StdevTotal},
	}
	for _, p := range pairs {
		if *p.a != *p.b {
			t.Errorf("%s not deterministic: %v vs %v", p.name, *p.a, *p.b)
		}
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{10.004, 10.00},
		{10.006, 10.01},
		{0.125, 0.13},  // half rounds away from zero
		{-0.125, -0.13},
		{99.999, 100.00},
		{-2.344, -2.34},
	}

	for _, tt := range tests {
		if got := Round2(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
