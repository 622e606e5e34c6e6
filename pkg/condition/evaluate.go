package condition

import (
	"fmt"
	"sort"

	"github.com/stigmergic-labs/sbp/pkg/pheromone"
)

// Evaluate walks a condition tree against ctx and returns whether it holds,
// its aggregate value, and the distinct pheromone ids that contributed.
func Evaluate(c Condition, ctx EvaluationContext) Result {
	switch c.Kind {
	case KindThreshold:
		return evaluateThreshold(c.Threshold, ctx)
	case KindComposite:
		return evaluateComposite(c.Composite, ctx)
	case KindRate:
		return evaluateRate(c.Rate, ctx)
	case KindPattern:
		return evaluatePattern(c.Pattern, ctx)
	default:
		return Result{}
	}
}

func evaluateThreshold(t *ThresholdCondition, ctx EvaluationContext) Result {
	if t == nil {
		return Result{}
	}

	var matches []pheromone.Pheromone
	for _, p := range ctx.Pheromones {
		if p.Trail != t.Trail {
			continue
		}
		if t.SignalType != "*" && p.Type != t.SignalType {
			continue
		}
		if pheromone.IsEvaporated(p, ctx.Now) {
			continue
		}
		if !pheromone.MatchTags(p.Tags, t.Tags) {
			continue
		}
		matches = append(matches, p)
	}

	value := aggregate(matches, ctx.Now, t.Aggregation)
	ids := make([]string, 0, len(matches))
	for _, p := range matches {
		ids = append(ids, p.ID)
	}

	return Result{
		Met:                  compare(value, t.Operator, t.Value),
		Value:                value,
		MatchingPheromoneIDs: ids,
	}
}

func aggregate(matches []pheromone.Pheromone, now int64, agg Aggregation) float64 {
	switch agg {
	case AggCount:
		return float64(len(matches))
	case AggAny:
		if len(matches) > 0 {
			return 1
		}
		return 0
	case AggSum:
		var sum float64
		for _, p := range matches {
			sum += pheromone.ComputeIntensity(p, now)
		}
		return sum
	case AggMax:
		if len(matches) == 0 {
			return 0
		}
		max := pheromone.ComputeIntensity(matches[0], now)
		for _, p := range matches[1:] {
			if v := pheromone.ComputeIntensity(p, now); v > max {
				max = v
			}
		}
		return max
	case AggAvg:
		if len(matches) == 0 {
			return 0
		}
		var sum float64
		for _, p := range matches {
			sum += pheromone.ComputeIntensity(p, now)
		}
		return sum / float64(len(matches))
	default:
		return 0
	}
}

func compare(value float64, op Operator, target float64) bool {
	switch op {
	case OpGTE:
		return value >= target
	case OpGT:
		return value > target
	case OpLTE:
		return value <= target
	case OpLT:
		return value < target
	case OpEQ:
		return value == target
	case OpNEQ:
		return value != target
	default:
		return false
	}
}

func evaluateComposite(c *CompositeCondition, ctx EvaluationContext) Result {
	if c == nil || len(c.Children) == 0 {
		return Result{Met: false}
	}

	if c.Op == CompositeNot {
		child := Evaluate(c.Children[0], ctx)
		met := !child.Met
		value := 0.0
		if child.Met {
			value = 1
		}
		return Result{Met: met, Value: value, MatchingPheromoneIDs: child.MatchingPheromoneIDs}
	}

	metCount := 0
	seen := make(map[string]struct{})
	var ids []string

	for _, child := range c.Children {
		res := Evaluate(child, ctx)
		if res.Met {
			metCount++
		}
		for _, id := range res.MatchingPheromoneIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	var met bool
	switch c.Op {
	case CompositeAnd:
		met = metCount == len(c.Children)
	case CompositeOr:
		met = metCount > 0
	default:
		met = false
	}

	sort.Strings(ids)
	return Result{Met: met, Value: float64(metCount), MatchingPheromoneIDs: ids}
}

func evaluateRate(r *RateCondition, ctx EvaluationContext) Result {
	if r == nil {
		return Result{}
	}

	cutoff := ctx.Now - r.WindowMS
	count := 0
	for _, e := range ctx.EmissionHistory {
		if e.Trail != r.Trail {
			continue
		}
		if r.SignalType != "*" && e.Type != r.SignalType {
			continue
		}
		if e.Timestamp < cutoff {
			continue
		}
		count++
	}

	var value float64
	switch r.Metric {
	case RateEmissionsPerSecond:
		if r.WindowMS <= 0 {
			value = 0
		} else {
			value = float64(count) / (float64(r.WindowMS) / 1000)
		}
	case RateIntensityDelta:
		// intensity_delta is approximated by emission count over the window;
		// EmissionRecord.Intensity is not used here.
		value = float64(count)
	default:
		value = float64(count)
	}

	return Result{Met: compare(value, r.Operator, r.Value), Value: value}
}

func evaluatePattern(p *PatternCondition, ctx EvaluationContext) Result {
	if p == nil || len(p.Sequence) == 0 {
		return Result{}
	}

	cutoff := ctx.Now - p.WindowMS
	var records []EmissionRecord
	for _, e := range ctx.EmissionHistory {
		if e.Trail != p.Trail || e.Timestamp < cutoff {
			continue
		}
		records = append(records, e)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp < records[j].Timestamp })

	var matched int
	if p.Ordered {
		matched = matchOrdered(records, p.Sequence)
	} else {
		matched = matchUnordered(records, p.Sequence)
	}

	return Result{
		Met:   matched == len(p.Sequence),
		Value: float64(matched) / float64(len(p.Sequence)),
	}
}

func matchOrdered(records []EmissionRecord, sequence []string) int {
	cursor := -1
	matched := 0
	for _, sigType := range sequence {
		found := false
		for i := cursor + 1; i < len(records); i++ {
			if records[i].Type == sigType {
				cursor = i
				found = true
				break
			}
		}
		if !found {
			break
		}
		matched++
	}
	return matched
}

func matchUnordered(records []EmissionRecord, sequence []string) int {
	used := make([]bool, len(records))
	matched := 0
	for _, sigType := range sequence {
		for i, r := range records {
			if used[i] || r.Type != sigType {
				continue
			}
			used[i] = true
			matched++
			break
		}
	}
	return matched
}

// Validate reports whether c is a well-formed condition tree, suitable for
// use at the sbp/register_scent RPC boundary where a malformed condition
// must surface as -32006 rather than panic deep inside the evaluator.
func Validate(c Condition) error {
	switch c.Kind {
	case KindThreshold:
		if c.Threshold == nil {
			return fmt.Errorf("threshold condition missing threshold body")
		}
		if c.Threshold.Trail == "" {
			return fmt.Errorf("threshold condition requires a trail")
		}
	case KindComposite:
		if c.Composite == nil || len(c.Composite.Children) == 0 {
			return fmt.Errorf("composite condition requires at least one child")
		}
		if c.Composite.Op == CompositeNot && len(c.Composite.Children) != 1 {
			return fmt.Errorf("not condition requires exactly one child")
		}
		for _, child := range c.Composite.Children {
			if err := Validate(child); err != nil {
				return err
			}
		}
	case KindRate:
		if c.Rate == nil || c.Rate.Trail == "" || c.Rate.WindowMS <= 0 {
			return fmt.Errorf("rate condition requires a trail and positive window_ms")
		}
	case KindPattern:
		if c.Pattern == nil || len(c.Pattern.Sequence) == 0 || c.Pattern.WindowMS <= 0 {
			return fmt.Errorf("pattern condition requires a non-empty sequence and positive window_ms")
		}
	default:
		return fmt.Errorf("unknown condition kind %q", c.Kind)
	}
	return nil
}
