package blackboard

import (
	"sort"

	"github.com/stigmergic-labs/sbp/pkg/pheromone"
)

type sniffMatch struct {
	p         pheromone.Pheromone
	intensity float64
}

func sortMatchesDescending(matches []sniffMatch) {
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].intensity > matches[j].intensity
	})
}

func aggregateByTrailType(matches []sniffMatch) []TrailTypeAggregate {
	type key struct{ trail, typ string }
	byKey := map[key]*TrailTypeAggregate{}
	order := make([]key, 0)

	for _, m := range matches {
		k := key{m.p.Trail, m.p.Type}
		agg, ok := byKey[k]
		if !ok {
			agg = &TrailTypeAggregate{Trail: m.p.Trail, Type: m.p.Type}
			byKey[k] = agg
			order = append(order, k)
		}
		agg.Count++
		agg.SumIntensity += m.intensity
		if m.intensity > agg.MaxIntensity {
			agg.MaxIntensity = m.intensity
		}
	}

	result := make([]TrailTypeAggregate, 0, len(order))
	for _, k := range order {
		agg := byKey[k]
		if agg.Count > 0 {
			agg.AvgIntensity = agg.SumIntensity / float64(agg.Count)
		}
		result = append(result, *agg)
	}
	return result
}
