// Package levels maps lifetime XP onto named tiers for display.
package levels

import "math"

// Tier is one XP band.
type Tier struct {
	Name  string  `json:"name"`
	MinXP float64 `json:"min_xp"`
	MaxXP float64 `json:"max_xp"` // inclusive; +Inf for the top tier
}

// tiers is ordered by MinXP; bands are contiguous and non-overlapping.
var tiers = []Tier{
	{Name: "Beginner", MinXP: 0, MaxXP: 99},
	{Name: "Intermediate", MinXP: 100, MaxXP: 499},
	{Name: "Expert", MinXP: 500, MaxXP: 1499},
	{Name: "Legend", MinXP: 1500, MaxXP: 3999},
	{Name: "Master", MinXP: 4000, MaxXP: 9999},
	{Name: "Champion", MinXP: 10000, MaxXP: math.Inf(1)},
}

// TierFor returns the tier containing the given XP total. Negative XP maps
// to the lowest tier.
func TierFor(xp float64) Tier {
	for _, t := range tiers {
		if xp <= t.MaxXP {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

// NextTier returns the tier after the one containing xp, or nil at the top.
func NextTier(xp float64) *Tier {
	for i, t := range tiers {
		if xp <= t.MaxXP {
			if i == len(tiers)-1 {
				return nil
			}
			next := tiers[i+1]
			return &next
		}
	}
	return nil
}

// ProgressToNext reports how far through the current tier the XP total is,
// as a percentage 0-100. The top tier always reports 100.
func ProgressToNext(xp float64) int {
	t := TierFor(xp)
	if math.IsInf(t.MaxXP, 1) {
		return 100
	}
	if xp < t.MinXP {
		return 0
	}
	span := t.MaxXP + 1 - t.MinXP
	pct := int(math.Round((xp - t.MinXP) / span * 100))
	return min(max(pct, 0), 100)
}
