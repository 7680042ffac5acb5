package subsync

import "strings"

// PlanRanking is a total order over known plan ids. Unknown ids rank at tier 0.
type PlanRanking struct {
	tiers map[string]int
}

// NewPlanRanking ranks plan ids in the given order, lowest first, starting at tier 1.
// Blank ids are skipped so unset price configuration does not shift the order.
func NewPlanRanking(ordered ...string) PlanRanking {
	tiers := make(map[string]int, len(ordered))
	tier := 1
	for _, id := range ordered {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, seen := tiers[id]; seen {
			continue
		}
		tiers[id] = tier
		tier++
	}
	return PlanRanking{tiers: tiers}
}

// PlanRankingFromTiers builds a ranking from an explicit id -> tier mapping.
func PlanRankingFromTiers(tiers map[string]int) PlanRanking {
	copied := make(map[string]int, len(tiers))
	for id, tier := range tiers {
		copied[id] = tier
	}
	return PlanRanking{tiers: copied}
}

// Tier returns the tier of a plan id, or 0 when the id is not ranked.
func (r PlanRanking) Tier(planID string) int {
	return r.tiers[planID]
}

// IsUpgrade reports whether moving from one plan to another climbs the ranking.
func (r PlanRanking) IsUpgrade(from, to string) bool {
	return r.Tier(to) > r.Tier(from)
}

// Len returns the number of ranked plans.
func (r PlanRanking) Len() int {
	return len(r.tiers)
}
