// Package condition implements the scent condition language: threshold,
// composite (and/or/not), rate, and pattern nodes, evaluated against a
// snapshot of live pheromones plus a bounded emission history.
package condition

import (
	"encoding/json"

	"github.com/stigmergic-labs/sbp/pkg/pheromone"
)

// Kind names the variant a Condition holds. Exactly one of the
// corresponding fields on Condition is populated.
type Kind string

const (
	KindThreshold Kind = "threshold"
	KindComposite Kind = "composite"
	KindRate      Kind = "rate"
	KindPattern   Kind = "pattern"
)

// Aggregation is applied over the current_intensity of pheromones matching
// a Threshold condition's filters.
type Aggregation string

const (
	AggSum   Aggregation = "sum"
	AggMax   Aggregation = "max"
	AggAvg   Aggregation = "avg"
	AggCount Aggregation = "count"
	AggAny   Aggregation = "any"
)

// Operator compares an aggregate or metric value against a threshold.
type Operator string

const (
	OpGTE Operator = ">="
	OpGT  Operator = ">"
	OpLTE Operator = "<="
	OpLT  Operator = "<"
	OpEQ  Operator = "=="
	OpNEQ Operator = "!="
)

// CompositeOp is the boolean combinator for a Composite condition.
type CompositeOp string

const (
	CompositeAnd CompositeOp = "and"
	CompositeOr  CompositeOp = "or"
	CompositeNot CompositeOp = "not"
)

// RateMetric selects what a Rate condition measures over the emission
// history window.
type RateMetric string

const (
	RateEmissionsPerSecond RateMetric = "emissions_per_second"
	RateIntensityDelta     RateMetric = "intensity_delta"
)

// Condition is the scent-condition tree node. Exactly one of Threshold,
// Composite, Rate, Pattern is set, matching Kind.
type Condition struct {
	Kind      Kind                 `json:"kind"`
	Threshold *ThresholdCondition  `json:"threshold,omitempty"`
	Composite *CompositeCondition  `json:"composite,omitempty"`
	Rate      *RateCondition       `json:"rate,omitempty"`
	Pattern   *PatternCondition    `json:"pattern,omitempty"`
}

// ThresholdCondition aggregates current_intensity over pheromones matching
// Trail/SignalType/Tags and compares the aggregate to Value via Operator.
// SignalType of "*" matches any type.
type ThresholdCondition struct {
	Trail      string             `json:"trail"`
	SignalType string             `json:"signal_type"`
	Tags       pheromone.TagFilter `json:"tags,omitempty"`
	Aggregation Aggregation        `json:"aggregation"`
	Operator   Operator           `json:"operator"`
	Value      float64            `json:"value"`
}

// CompositeCondition recursively combines child conditions.
type CompositeCondition struct {
	Op       CompositeOp `json:"op"`
	Children []Condition `json:"children"`
}

// RateCondition measures emissions on Trail/SignalType over a trailing
// WindowMS of emission history.
type RateCondition struct {
	Trail      string     `json:"trail"`
	SignalType string     `json:"signal_type"`
	WindowMS   int64      `json:"window_ms"`
	Metric     RateMetric `json:"metric"`
	Operator   Operator   `json:"operator"`
	Value      float64    `json:"value"`
}

// PatternCondition matches a sequence of signal types emitted on Trail
// within WindowMS of emission history. Ordered (default true) requires the
// sequence to appear in order; unordered matches each step against any
// unused record.
type PatternCondition struct {
	Trail    string   `json:"trail"`
	Sequence []string `json:"sequence"`
	WindowMS int64    `json:"window_ms"`
	Ordered  bool     `json:"ordered"`
}

// UnmarshalJSON defaults Ordered to true when the key is absent from the
// wire payload, matching the documented default.
func (p *PatternCondition) UnmarshalJSON(data []byte) error {
	type alias PatternCondition
	aux := struct {
		Ordered *bool `json:"ordered"`
		*alias
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Ordered == nil {
		p.Ordered = true
	} else {
		p.Ordered = *aux.Ordered
	}
	return nil
}

// EmissionRecord is one append-only entry in the bounded emission history,
// fed to rate and pattern conditions.
type EmissionRecord struct {
	Trail     string  `json:"trail"`
	Type      string  `json:"type"`
	Timestamp int64   `json:"timestamp"`
	Intensity float64 `json:"intensity"`
}

// EvaluationContext is the snapshot a Condition is evaluated against.
type EvaluationContext struct {
	Pheromones      []pheromone.Pheromone
	Now             int64
	EmissionHistory []EmissionRecord
}

// Result is the outcome of evaluating a Condition.
type Result struct {
	Met                  bool
	Value                float64
	MatchingPheromoneIDs []string
}
