package models

import "strings"

// Condition is the card physical condition grade used by Cardmarket,
// ordered from best (Mint) to worst (Poor).
type Condition string

const (
	ConditionMint      Condition = "MT"
	ConditionNearMint  Condition = "NM"
	ConditionExcellent Condition = "EX"
	ConditionGood      Condition = "GD"
	ConditionLightPlay Condition = "LP"
	ConditionPlayed    Condition = "PL"
	ConditionPoor      Condition = "PO"
)

// conditionRank orders grades for comparison; higher is better.
// Unknown grades rank 0 and never satisfy a minimum.
var conditionRank = map[Condition]int{
	ConditionMint:      7,
	ConditionNearMint:  6,
	ConditionExcellent: 5,
	ConditionGood:      4,
	ConditionLightPlay: 3,
	ConditionPlayed:    2,
	ConditionPoor:      1,
}

// Rank returns the ordinal rank of the condition (7 = Mint ... 1 = Poor,
// 0 = unknown).
func (c Condition) Rank() int {
	return conditionRank[c]
}

// Known reports whether the condition is one of the recognized grades.
func (c Condition) Known() bool {
	return conditionRank[c] > 0
}

// AtLeast reports whether the condition is at least as good as min.
// An unknown condition is never at least anything.
func (c Condition) AtLeast(min Condition) bool {
	r := conditionRank[c]
	return r > 0 && r >= conditionRank[min]
}

// AllConditions returns the recognized grades from best to worst.
func AllConditions() []Condition {
	return []Condition{
		ConditionMint,
		ConditionNearMint,
		ConditionExcellent,
		ConditionGood,
		ConditionLightPlay,
		ConditionPlayed,
		ConditionPoor,
	}
}

// NormalizeCondition maps free-form condition strings from the collector
// ("Near Mint", "nm", "Light Played", ...) to a Condition. Returns "" for
// anything unrecognized; unknown conditions are excluded from deal
// classification rather than assumed acceptable.
func NormalizeCondition(s string) Condition {
	upper := strings.ToUpper(strings.TrimSpace(s))
	if upper == "" {
		return ""
	}

	switch upper {
	case "MT", "M", "MINT":
		return ConditionMint
	case "NM", "NEAR MINT":
		return ConditionNearMint
	case "EX", "EXCELLENT":
		return ConditionExcellent
	case "GD", "GOOD":
		return ConditionGood
	case "LP", "LIGHT PLAYED", "LIGHTLY PLAYED":
		return ConditionLightPlay
	case "PL", "PLAYED":
		return ConditionPlayed
	case "PO", "POOR":
		return ConditionPoor
	}

	// Longer names first so "Light Played" is not matched as "Played".
	switch {
	case strings.Contains(upper, "NEAR MINT"):
		return ConditionNearMint
	case strings.Contains(upper, "MINT"):
		return ConditionMint
	case strings.Contains(upper, "EXCELLENT"):
		return ConditionExcellent
	case strings.Contains(upper, "GOOD"):
		return ConditionGood
	case strings.Contains(upper, "LIGHT"):
		return ConditionLightPlay
	case strings.Contains(upper, "PLAYED"):
		return ConditionPlayed
	case strings.Contains(upper, "POOR"):
		return ConditionPoor
	}

	return ""
}

// CardKey is the composite identity used to correlate scan history:
// card number, set code, seller region and foil variant. It is embedded in
// every table that participates in history lookups.
type CardKey struct {
	CardNumber string `json:"card_number" gorm:"size:16;not null"`
	SetCode    string `json:"set_code" gorm:"size:8;not null"`
	Region     string `json:"region" gorm:"size:2;not null"`
	Foil       bool   `json:"foil" gorm:"not null"`
}

// Key returns the embedded key itself; useful when the key is promoted
// through an embedding model.
func (k CardKey) Key() CardKey {
	return k
}

func (k CardKey) String() string {
	s := k.CardNumber + "/" + k.SetCode + "/" + k.Region
	if k.Foil {
		s += "/foil"
	}
	return s
}

// DealPolicy is the explicit configuration value consumed by the baseline
// estimator and deal classifier. It is passed in at call time; the engine
// never reads thresholds from ambient global state.
type DealPolicy struct {
	// DiscountThreshold is the minimum discount fraction below baseline for
	// an offer to qualify as a deal (0.15 = 15% below).
	DiscountThreshold float64 `json:"discount_threshold"`
	// BaselineWindowScans is the number of most recent successful scans
	// whose medians form the rolling baseline.
	BaselineWindowScans int `json:"baseline_window_scans"`
	// MinSellerRating is the minimum seller rating percentage. Offers with
	// no rating are accepted; unknown information is not penalized.
	MinSellerRating float64 `json:"min_seller_rating"`
	// MinCondition is the worst acceptable condition grade. Offers with an
	// unknown condition are rejected.
	MinCondition Condition `json:"min_condition"`
}
