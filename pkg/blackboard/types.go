package blackboard

import (
	"github.com/stigmergic-labs/sbp/pkg/condition"
	"github.com/stigmergic-labs/sbp/pkg/pheromone"
	"github.com/stigmergic-labs/sbp/pkg/scent"
)

// MergeStrategy selects how emit reconciles a new deposit with an existing
// pheromone sharing the same trail/type/payload_hash.
type MergeStrategy string

const (
	MergeNew       MergeStrategy = "new"
	MergeReinforce MergeStrategy = "reinforce"
	MergeReplace   MergeStrategy = "replace"
	MergeMax       MergeStrategy = "max"
	MergeAdd       MergeStrategy = "add"
)

// MergeAction reports which branch emit took.
type MergeAction string

const (
	ActionCreated    MergeAction = "created"
	ActionReinforced MergeAction = "reinforced"
	ActionReplaced   MergeAction = "replaced"
	ActionMerged     MergeAction = "merged"
)

// EmitParams is the input to Emit.
type EmitParams struct {
	Trail         string               `json:"trail"`
	Type          string               `json:"type"`
	Intensity     float64              `json:"intensity"`
	DecayModel    pheromone.DecayModel `json:"decay_model"`
	Payload       map[string]any       `json:"payload,omitempty"`
	SourceAgent   string               `json:"source_agent,omitempty"`
	Tags          []string             `json:"tags,omitempty"`
	TTLFloor      float64              `json:"ttl_floor,omitempty"`
	MergeStrategy MergeStrategy        `json:"merge_strategy,omitempty"`
}

// EmitResult is the output of Emit.
type EmitResult struct {
	ID                string      `json:"id"`
	Action            MergeAction `json:"action"`
	PreviousIntensity float64     `json:"previous_intensity,omitempty"`
	CurrentIntensity  float64     `json:"current_intensity"`
}

// SniffParams is the input to Sniff.
type SniffParams struct {
	Trails            []string            `json:"trails,omitempty"`
	Types             []string            `json:"types,omitempty"`
	MinIntensity      float64             `json:"min_intensity,omitempty"`
	MaxAgeMS          int64               `json:"max_age_ms,omitempty"`
	Tags              pheromone.TagFilter `json:"tags,omitempty"`
	IncludeEvaporated bool                `json:"include_evaporated,omitempty"`
	Limit             int                 `json:"limit,omitempty"`
}

// PheromoneSnapshot is a read-only view of a pheromone with its computed
// current intensity, returned to callers instead of the raw stored fields.
type PheromoneSnapshot struct {
	ID               string         `json:"id"`
	Trail            string         `json:"trail"`
	Type             string         `json:"type"`
	EmittedAt        int64          `json:"emitted_at"`
	LastReinforcedAt int64          `json:"last_reinforced_at"`
	CurrentIntensity float64        `json:"current_intensity"`
	Payload          map[string]any `json:"payload,omitempty"`
	SourceAgent      string         `json:"source_agent,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
}

// TrailTypeAggregate summarizes a filtered, pre-truncation sniff result by
// (trail, type).
type TrailTypeAggregate struct {
	Trail        string  `json:"trail"`
	Type         string  `json:"type"`
	Count        int     `json:"count"`
	SumIntensity float64 `json:"sum_intensity"`
	MaxIntensity float64 `json:"max_intensity"`
	AvgIntensity float64 `json:"avg_intensity"`
}

// SniffResult is the output of Sniff.
type SniffResult struct {
	Pheromones []PheromoneSnapshot   `json:"pheromones"`
	Aggregates []TrailTypeAggregate  `json:"aggregates,omitempty"`
	Timestamp  int64                 `json:"timestamp"`
}

// RegisterScentParams is the input to RegisterScent.
type RegisterScentParams struct {
	ScentID           string               `json:"scent_id"`
	AgentEndpoint     string               `json:"agent_endpoint,omitempty"`
	Condition         condition.Condition  `json:"condition"`
	CooldownMS        int64                `json:"cooldown_ms,omitempty"`
	ActivationPayload map[string]any       `json:"activation_payload,omitempty"`
	TriggerMode       scent.TriggerMode    `json:"trigger_mode,omitempty"`
	Hysteresis        float64              `json:"hysteresis,omitempty"`
	MaxExecutionMS    int64                `json:"max_execution_ms,omitempty"`
	ContextTrails     []string             `json:"context_trails,omitempty"`
}

// RegisterScentResult is the output of RegisterScent.
type RegisterScentResult struct {
	Status              string `json:"status"` // "registered" or "updated"
	CurrentConditionMet bool   `json:"current_condition_met"`
}

// DeregisterScentResult is the output of DeregisterScent.
type DeregisterScentResult struct {
	Status string `json:"status"` // "deregistered" or "not_found"
}

// EvaporateParams is the input to Evaporate.
type EvaporateParams struct {
	Trail          string              `json:"trail,omitempty"`
	Types          []string            `json:"types,omitempty"`
	OlderThanMS    int64               `json:"older_than_ms,omitempty"`
	BelowIntensity float64             `json:"below_intensity,omitempty"`
	Tags           pheromone.TagFilter `json:"tags,omitempty"`
}

// EvaporateResult is the output of Evaporate.
type EvaporateResult struct {
	RemovedCount   int      `json:"removed_count"`
	AffectedTrails []string `json:"affected_trails,omitempty"`
}

// TrailStats is one entry in InspectResult.Trails.
type TrailStats struct {
	Trail          string  `json:"trail"`
	Count          int     `json:"count"`
	TotalIntensity float64 `json:"total_intensity"`
	AvgIntensity   float64 `json:"avg_intensity"`
}

// ScentStats is one entry in InspectResult.Scents.
type ScentStats struct {
	ScentID          string `json:"scent_id"`
	AgentEndpoint    string `json:"agent_endpoint,omitempty"`
	LastConditionMet bool   `json:"last_condition_met"`
	CooldownActive   bool   `json:"cooldown_active"`
	LastTriggeredAt  *int64 `json:"last_triggered_at"`
}

// CoreStats is InspectResult.Stats.
type CoreStats struct {
	TotalPheromones  int   `json:"total_pheromones"`
	ActivePheromones int   `json:"active_pheromones"`
	ScentCount       int   `json:"scent_count"`
	UptimeMS         int64 `json:"uptime_ms"`
}

// InspectParams selects which optional sections InspectResult populates.
// Include names a subset of {"trails", "scents", "stats"}; omitted or empty
// defaults to all three.
type InspectParams struct {
	Include []string `json:"include,omitempty"`
}

// InspectResult is the output of Inspect.
type InspectResult struct {
	Trails []TrailStats `json:"trails,omitempty"`
	Scents []ScentStats `json:"scents,omitempty"`
	Stats  *CoreStats   `json:"stats,omitempty"`
}

// TriggerPayload is what a fired scent delivers to its handler, whether
// in-process or over HTTP as the sbp/trigger notification's params.
type TriggerPayload struct {
	ScentID            string                          `json:"scent_id"`
	TriggeredAt        int64                           `json:"triggered_at"`
	ConditionSnapshot  map[string]ConditionSnapshotItem `json:"condition_snapshot"`
	ContextPheromones  []PheromoneSnapshot             `json:"context_pheromones"`
	ActivationPayload  map[string]any                  `json:"activation_payload,omitempty"`
}

// ConditionSnapshotItem is one entry of TriggerPayload.ConditionSnapshot.
type ConditionSnapshotItem struct {
	Value        float64  `json:"value"`
	PheromoneIDs []string `json:"pheromone_ids"`
}

// TriggerHandler is an in-process callback registered via OnTrigger. A
// present handler preempts HTTP dispatch for that scent.
type TriggerHandler func(TriggerPayload)
