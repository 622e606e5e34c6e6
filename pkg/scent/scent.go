// Package scent defines the registered-condition type that wakes a
// dormant agent when its condition holds.
package scent

import "github.com/stigmergic-labs/sbp/pkg/condition"

// TriggerMode determines whether a scent fires on the condition's truth
// value or on its transition.
type TriggerMode string

const (
	Level        TriggerMode = "level"
	EdgeRising   TriggerMode = "edge_rising"
	EdgeFalling  TriggerMode = "edge_falling"
)

// Scent is a dormant trigger: a condition tree plus delivery and timing
// parameters, upserted by registerScent and evaluated every tick.
type Scent struct {
	ScentID string `json:"scent_id"`

	// AgentEndpoint is the HTTP target for sbp/trigger notifications when no
	// in-process handler is registered for this scent.
	AgentEndpoint string `json:"agent_endpoint,omitempty"`

	Condition          condition.Condition `json:"condition"`
	CooldownMS         int64               `json:"cooldown_ms"`
	ActivationPayload  map[string]any      `json:"activation_payload,omitempty"`
	TriggerMode        TriggerMode         `json:"trigger_mode"`
	Hysteresis         float64             `json:"hysteresis,omitempty"`
	MaxExecutionMS     int64               `json:"max_execution_ms"`
	ContextTrails      []string            `json:"context_trails,omitempty"`

	// Runtime fields, mutated by the evaluation loop.
	LastTriggeredAt  *int64 `json:"last_triggered_at"`
	LastConditionMet bool   `json:"last_condition_met"`
}

// CooldownActive reports whether s is still within its cooldown window at
// wall-clock instant now.
func (s Scent) CooldownActive(now int64) bool {
	if s.LastTriggeredAt == nil {
		return false
	}
	return now-*s.LastTriggeredAt < s.CooldownMS
}

// ShouldFire decides whether the evaluation loop should dispatch a trigger
// for s given that its condition evaluated to met at this tick, per its
// TriggerMode. It does not apply cooldown — callers check CooldownActive
// first and skip evaluation entirely when cooldown is active.
func (s Scent) ShouldFire(met bool) bool {
	switch s.TriggerMode {
	case EdgeRising:
		return met && !s.LastConditionMet
	case EdgeFalling:
		return !met && s.LastConditionMet
	default: // Level
		return met
	}
}
