package condition_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stigmergic-labs/sbp/pkg/condition"
	"github.com/stigmergic-labs/sbp/pkg/pheromone"
)

func immortal(id, trail, typ string, intensity float64, tags ...string) pheromone.Pheromone {
	return pheromone.Pheromone{
		ID:               id,
		Trail:            trail,
		Type:             typ,
		InitialIntensity: intensity,
		DecayModel:       pheromone.DecayModel{Kind: pheromone.Immortal},
		Tags:             tags,
	}
}

var _ = Describe("Evaluate", func() {
	Describe("threshold", func() {
		It("fires on max aggregation above operator", func() {
			ctx := condition.EvaluationContext{
				Now: 1000,
				Pheromones: []pheromone.Pheromone{
					immortal("p1", "a.alert", "x", 0.8),
					immortal("p2", "a.alert", "x", 0.3),
				},
			}
			c := condition.Condition{
				Kind: condition.KindThreshold,
				Threshold: &condition.ThresholdCondition{
					Trail: "a.alert", SignalType: "*",
					Aggregation: condition.AggMax, Operator: condition.OpGTE, Value: 0.7,
				},
			}

			res := condition.Evaluate(c, ctx)
			Expect(res.Met).To(BeTrue())
			Expect(res.Value).To(BeNumerically("~", 0.8, 0.001))
			Expect(res.MatchingPheromoneIDs).To(ConsistOf("p1", "p2"))
		})

		It("excludes evaporated pheromones", func() {
			decayed := pheromone.Pheromone{
				ID: "p1", Trail: "a", Type: "x",
				InitialIntensity: 0.01, TTLFloor: 0.1,
				DecayModel: pheromone.DecayModel{Kind: pheromone.Immortal},
			}
			ctx := condition.EvaluationContext{Now: 0, Pheromones: []pheromone.Pheromone{decayed}}
			c := condition.Condition{
				Kind: condition.KindThreshold,
				Threshold: &condition.ThresholdCondition{
					Trail: "a", SignalType: "*", Aggregation: condition.AggCount,
					Operator: condition.OpGTE, Value: 1,
				},
			}

			res := condition.Evaluate(c, ctx)
			Expect(res.Met).To(BeFalse())
		})

		It("respects tag filters", func() {
			ctx := condition.EvaluationContext{
				Now: 0,
				Pheromones: []pheromone.Pheromone{
					immortal("p1", "a", "x", 0.9, "urgent"),
					immortal("p2", "a", "x", 0.9, "routine"),
				},
			}
			c := condition.Condition{
				Kind: condition.KindThreshold,
				Threshold: &condition.ThresholdCondition{
					Trail: "a", SignalType: "*",
					Tags:        pheromone.TagFilter{Any: []string{"urgent"}},
					Aggregation: condition.AggCount, Operator: condition.OpEQ, Value: 1,
				},
			}

			res := condition.Evaluate(c, ctx)
			Expect(res.Met).To(BeTrue())
			Expect(res.MatchingPheromoneIDs).To(ConsistOf("p1"))
		})
	})

	Describe("composite", func() {
		It("and requires every child to be met", func() {
			met := condition.Condition{Kind: condition.KindThreshold, Threshold: &condition.ThresholdCondition{
				Trail: "a", SignalType: "*", Aggregation: condition.AggAny, Operator: condition.OpEQ, Value: 1,
			}}
			unmet := condition.Condition{Kind: condition.KindThreshold, Threshold: &condition.ThresholdCondition{
				Trail: "b", SignalType: "*", Aggregation: condition.AggAny, Operator: condition.OpEQ, Value: 1,
			}}

			ctx := condition.EvaluationContext{Now: 0, Pheromones: []pheromone.Pheromone{immortal("p1", "a", "x", 0.5)}}

			c := condition.Condition{Kind: condition.KindComposite, Composite: &condition.CompositeCondition{
				Op: condition.CompositeAnd, Children: []condition.Condition{met, unmet},
			}}

			Expect(condition.Evaluate(c, ctx).Met).To(BeFalse())

			c.Composite.Op = condition.CompositeOr
			Expect(condition.Evaluate(c, ctx).Met).To(BeTrue())
		})

		It("not negates its single child", func() {
			unmet := condition.Condition{Kind: condition.KindThreshold, Threshold: &condition.ThresholdCondition{
				Trail: "z", SignalType: "*", Aggregation: condition.AggAny, Operator: condition.OpEQ, Value: 1,
			}}
			c := condition.Condition{Kind: condition.KindComposite, Composite: &condition.CompositeCondition{
				Op: condition.CompositeNot, Children: []condition.Condition{unmet},
			}}

			ctx := condition.EvaluationContext{Now: 0}
			Expect(condition.Evaluate(c, ctx).Met).To(BeTrue())
		})
	})

	Describe("rate", func() {
		It("computes emissions per second over the window", func() {
			ctx := condition.EvaluationContext{
				Now: 10_000,
				EmissionHistory: []condition.EmissionRecord{
					{Trail: "a", Type: "x", Timestamp: 9_000},
					{Trail: "a", Type: "x", Timestamp: 9_500},
					{Trail: "a", Type: "x", Timestamp: 1_000}, // outside window
				},
			}
			c := condition.Condition{Kind: condition.KindRate, Rate: &condition.RateCondition{
				Trail: "a", SignalType: "*", WindowMS: 2_000,
				Metric: condition.RateEmissionsPerSecond, Operator: condition.OpGTE, Value: 1,
			}}

			res := condition.Evaluate(c, ctx)
			Expect(res.Met).To(BeTrue())
			Expect(res.Value).To(BeNumerically("~", 1.0, 0.01))
		})
	})

	Describe("pattern", func() {
		history := func() []condition.EmissionRecord {
			return []condition.EmissionRecord{
				{Trail: "pipeline", Type: "step-1", Timestamp: 0},
				{Trail: "pipeline", Type: "step-2", Timestamp: 100},
				{Trail: "pipeline", Type: "step-3", Timestamp: 200},
			}
		}

		It("matches an ordered sequence", func() {
			ctx := condition.EvaluationContext{Now: 300, EmissionHistory: history()}
			c := condition.Condition{Kind: condition.KindPattern, Pattern: &condition.PatternCondition{
				Trail: "pipeline", Sequence: []string{"step-1", "step-2", "step-3"},
				WindowMS: 1000, Ordered: true,
			}}

			Expect(condition.Evaluate(c, ctx).Met).To(BeTrue())
		})

		It("fails ordered matching against a reversed sequence", func() {
			ctx := condition.EvaluationContext{Now: 300, EmissionHistory: history()}
			c := condition.Condition{Kind: condition.KindPattern, Pattern: &condition.PatternCondition{
				Trail: "pipeline", Sequence: []string{"step-3", "step-2", "step-1"},
				WindowMS: 1000, Ordered: true,
			}}

			Expect(condition.Evaluate(c, ctx).Met).To(BeFalse())
		})

		It("matches a reversed sequence when unordered", func() {
			ctx := condition.EvaluationContext{Now: 300, EmissionHistory: history()}
			c := condition.Condition{Kind: condition.KindPattern, Pattern: &condition.PatternCondition{
				Trail: "pipeline", Sequence: []string{"step-3", "step-2", "step-1"},
				WindowMS: 1000, Ordered: false,
			}}

			Expect(condition.Evaluate(c, ctx).Met).To(BeTrue())
		})

		It("defaults ordered to true when the key is absent from the wire payload", func() {
			raw := []byte(`{"trail":"pipeline","sequence":["step-1","step-2","step-3"],"window_ms":1000}`)
			var p condition.PatternCondition
			Expect(json.Unmarshal(raw, &p)).To(Succeed())
			Expect(p.Ordered).To(BeTrue())

			ctx := condition.EvaluationContext{Now: 300, EmissionHistory: history()}
			reversed := condition.EvaluationContext{Now: 300, EmissionHistory: []condition.EmissionRecord{
				{Trail: "pipeline", Type: "step-3", Timestamp: 0},
				{Trail: "pipeline", Type: "step-2", Timestamp: 100},
				{Trail: "pipeline", Type: "step-1", Timestamp: 200},
			}}
			c := condition.Condition{Kind: condition.KindPattern, Pattern: &p}
			Expect(condition.Evaluate(c, ctx).Met).To(BeTrue())
			Expect(condition.Evaluate(c, reversed).Met).To(BeFalse())
		})

		It("respects an explicit ordered:false in the wire payload", func() {
			raw := []byte(`{"trail":"pipeline","sequence":["step-1","step-2"],"window_ms":1000,"ordered":false}`)
			var p condition.PatternCondition
			Expect(json.Unmarshal(raw, &p)).To(Succeed())
			Expect(p.Ordered).To(BeFalse())
		})
	})
})

var _ = Describe("Validate", func() {
	It("rejects a threshold condition missing its trail", func() {
		c := condition.Condition{Kind: condition.KindThreshold, Threshold: &condition.ThresholdCondition{}}
		Expect(condition.Validate(c)).To(HaveOccurred())
	})

	It("rejects a not composite with more than one child", func() {
		leaf := condition.Condition{Kind: condition.KindThreshold, Threshold: &condition.ThresholdCondition{Trail: "a"}}
		c := condition.Condition{Kind: condition.KindComposite, Composite: &condition.CompositeCondition{
			Op: condition.CompositeNot, Children: []condition.Condition{leaf, leaf},
		}}
		Expect(condition.Validate(c)).To(HaveOccurred())
	})

	It("accepts a well-formed pattern condition", func() {
		c := condition.Condition{Kind: condition.KindPattern, Pattern: &condition.PatternCondition{
			Trail: "a", Sequence: []string{"x"}, WindowMS: 1000,
		}}
		Expect(condition.Validate(c)).NotTo(HaveOccurred())
	})
})
