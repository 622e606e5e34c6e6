package pheromone

import "math"

// ComputeIntensity returns p's intensity in [0,1] at wall-clock instant now
// (milliseconds since epoch). It is pure: callers MUST NOT persist the
// result, only InitialIntensity and LastReinforcedAt are stored state.
func ComputeIntensity(p Pheromone, now int64) float64 {
	elapsed := now - p.LastReinforcedAt
	if elapsed < 0 {
		elapsed = 0
	}

	switch p.DecayModel.Kind {
	case Exponential:
		if p.DecayModel.HalfLifeMS <= 0 {
			return clamp01(p.InitialIntensity)
		}
		return clamp01(p.InitialIntensity * math.Pow(0.5, float64(elapsed)/float64(p.DecayModel.HalfLifeMS)))

	case Linear:
		v := p.InitialIntensity - p.DecayModel.RatePerMS*float64(elapsed)
		if v < 0 {
			v = 0
		}
		return clamp01(v)

	case Step:
		intensity := p.InitialIntensity
		for _, s := range p.DecayModel.Steps {
			if s.AtMS <= elapsed {
				intensity = s.Intensity
			}
		}
		return clamp01(intensity)

	case Immortal:
		return clamp01(p.InitialIntensity)

	default:
		return clamp01(p.InitialIntensity)
	}
}

// IsEvaporated reports whether p's intensity at now has fallen below its
// ttl floor.
func IsEvaporated(p Pheromone, now int64) bool {
	return ComputeIntensity(p, now) < p.TTLFloor
}

// TimeToEvaporation estimates the wall-clock instant (ms since epoch) at
// which p will cross its ttl floor, for diagnostics only. Returns ok=false
// for immortal models or models that never cross the floor.
func TimeToEvaporation(p Pheromone) (at int64, ok bool) {
	switch p.DecayModel.Kind {
	case Exponential:
		if p.DecayModel.HalfLifeMS <= 0 || p.InitialIntensity <= p.TTLFloor || p.TTLFloor <= 0 {
			return 0, false
		}
		// initial * 0.5^(t/halfLife) = floor  =>  t = halfLife * log2(initial/floor)
		ratio := p.InitialIntensity / p.TTLFloor
		elapsed := float64(p.DecayModel.HalfLifeMS) * math.Log2(ratio)
		return p.LastReinforcedAt + int64(elapsed), true

	case Linear:
		if p.DecayModel.RatePerMS <= 0 || p.InitialIntensity <= p.TTLFloor {
			return 0, false
		}
		elapsed := (p.InitialIntensity - p.TTLFloor) / p.DecayModel.RatePerMS
		return p.LastReinforcedAt + int64(elapsed), true

	case Step:
		for _, s := range p.DecayModel.Steps {
			if s.Intensity < p.TTLFloor {
				return p.LastReinforcedAt + s.AtMS, true
			}
		}
		return 0, false

	default: // immortal
		return 0, false
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
