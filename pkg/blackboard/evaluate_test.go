package blackboard_test

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stigmergic-labs/sbp/pkg/blackboard"
	"github.com/stigmergic-labs/sbp/pkg/condition"
	"github.com/stigmergic-labs/sbp/pkg/scent"
	"github.com/stigmergic-labs/sbp/pkg/store/inmemory"
)

func aboveHalfCondition(trail string) condition.Condition {
	return condition.Condition{
		Kind: condition.KindThreshold,
		Threshold: &condition.ThresholdCondition{
			Trail: trail, SignalType: "*", Aggregation: condition.AggMax,
			Operator: condition.OpGTE, Value: 0.5,
		},
	}
}

var _ = Describe("evaluation loop", func() {
	var c *blackboard.Core
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		c = blackboard.New(blackboard.Config{
			Store:              inmemory.NewDriver(),
			EvaluationInterval: 15 * time.Millisecond,
		})
		go c.Run(context.Background())
	})

	AfterEach(func() {
		c.Close()
	})

	It("level mode fires on every tick while the condition holds, with no cooldown", func() {
		var fires atomic.Int32
		c.OnTrigger("s1", func(blackboard.TriggerPayload) { fires.Add(1) })

		_, err := c.RegisterScent(ctx, blackboard.RegisterScentParams{
			ScentID: "s1", Condition: aboveHalfCondition("a"), TriggerMode: scent.Level,
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Emit(ctx, blackboard.EmitParams{Trail: "a", Type: "x", Intensity: 0.9})
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() int32 { return fires.Load() }, "500ms", "10ms").Should(BeNumerically(">=", 3))
	})

	It("edge_rising fires once on the transition and not again while the condition stays met", func() {
		var fires atomic.Int32
		c.OnTrigger("s2", func(blackboard.TriggerPayload) { fires.Add(1) })

		_, err := c.RegisterScent(ctx, blackboard.RegisterScentParams{
			ScentID: "s2", Condition: aboveHalfCondition("b"), TriggerMode: scent.EdgeRising,
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Emit(ctx, blackboard.EmitParams{Trail: "b", Type: "x", Intensity: 0.9})
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() int32 { return fires.Load() }, "300ms", "10ms").Should(Equal(int32(1)))
		Consistently(func() int32 { return fires.Load() }, "150ms", "10ms").Should(Equal(int32(1)))
	})

	It("holds off firing again until the cooldown window elapses", func() {
		var fires atomic.Int32
		c.OnTrigger("s3", func(blackboard.TriggerPayload) { fires.Add(1) })

		_, err := c.RegisterScent(ctx, blackboard.RegisterScentParams{
			ScentID: "s3", Condition: aboveHalfCondition("d"), TriggerMode: scent.Level,
			CooldownMS: 200,
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Emit(ctx, blackboard.EmitParams{Trail: "d", Type: "x", Intensity: 0.9})
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() int32 { return fires.Load() }, "200ms", "10ms").Should(Equal(int32(1)))
		Consistently(func() int32 { return fires.Load() }, "150ms", "10ms").Should(Equal(int32(1)))
		Eventually(func() int32 { return fires.Load() }, "400ms", "10ms").Should(BeNumerically(">=", 2))
	})

	It("in-process handlers preempt HTTP dispatch", func() {
		var fires atomic.Int32
		c.OnTrigger("s4", func(p blackboard.TriggerPayload) { fires.Add(1) })

		_, err := c.RegisterScent(ctx, blackboard.RegisterScentParams{
			ScentID: "s4", Condition: aboveHalfCondition("e"), TriggerMode: scent.Level,
			AgentEndpoint: "http://127.0.0.1:0/unreachable",
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Emit(ctx, blackboard.EmitParams{Trail: "e", Type: "x", Intensity: 0.9})
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() int32 { return fires.Load() }, "300ms", "10ms").Should(BeNumerically(">=", 1))

		c.OffTrigger("s4")
	})
})
