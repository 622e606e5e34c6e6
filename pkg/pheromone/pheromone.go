// Package pheromone defines the decaying signal type at the heart of the
// blackboard and the pure decay math used to compute its current intensity.
package pheromone

// DecayKind names the shape of a decay model.
type DecayKind string

const (
	Exponential DecayKind = "exponential"
	Linear      DecayKind = "linear"
	Step        DecayKind = "step"
	Immortal    DecayKind = "immortal"
)

// StepPoint is one point in a step decay model: at elapsed >= AtMS, intensity
// becomes Intensity until the next step applies.
type StepPoint struct {
	AtMS      int64   `json:"at_ms"`
	Intensity float64 `json:"intensity"`
}

// DecayModel governs how a pheromone's intensity falls with elapsed time.
// Exactly the fields relevant to Kind are meaningful; the rest are zero.
type DecayModel struct {
	Kind DecayKind `json:"kind"`

	// Exponential
	HalfLifeMS int64 `json:"half_life_ms,omitempty"`

	// Linear
	RatePerMS float64 `json:"rate_per_ms,omitempty"`

	// Step, sorted ascending by AtMS.
	Steps []StepPoint `json:"steps,omitempty"`
}

// TagFilter matches a pheromone's tag set. See MatchTags.
type TagFilter struct {
	Any  []string `json:"any,omitempty"`
	All  []string `json:"all,omitempty"`
	None []string `json:"none,omitempty"`
}

// Pheromone is a decaying signal deposited into a trail. Storage holds only
// InitialIntensity and LastReinforcedAt; current intensity is always
// recomputed from those two plus the clock (see ComputeIntensity).
type Pheromone struct {
	ID                string         `json:"id"`
	Trail             string         `json:"trail"`
	Type              string         `json:"type"`
	EmittedAt         int64          `json:"emitted_at"`
	LastReinforcedAt  int64          `json:"last_reinforced_at"`
	InitialIntensity  float64        `json:"initial_intensity"`
	DecayModel        DecayModel     `json:"decay_model"`
	Payload           map[string]any `json:"payload,omitempty"`
	SourceAgent       string         `json:"source_agent,omitempty"`
	Tags              []string       `json:"tags,omitempty"`
	TTLFloor          float64        `json:"ttl_floor"`
}

// MatchTags reports whether tags satisfies the any/all/none clauses of f.
// An empty or missing clause is always satisfied.
func MatchTags(tags []string, f TagFilter) bool {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}

	if len(f.Any) > 0 {
		ok := false
		for _, t := range f.Any {
			if _, found := set[t]; found {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}

	if len(f.All) > 0 {
		for _, t := range f.All {
			if _, found := set[t]; !found {
				return false
			}
		}
	}

	if len(f.None) > 0 {
		for _, t := range f.None {
			if _, found := set[t]; found {
				return false
			}
		}
	}

	return true
}
