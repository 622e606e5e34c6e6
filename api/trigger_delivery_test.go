package api

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stigmergic-labs/sbp/pkg/condition"
	"github.com/stigmergic-labs/sbp/pkg/scent"

	"github.com/stigmergic-labs/sbp/pkg/blackboard"
)

var _ = Describe("trigger delivery", func() {
	It("fans a fired scent out to a subscribed session's SSE connection", func() {
		server, core := newTestServer(Config{})
		go core.Run(context.Background())
		defer core.Close()

		session := server.sessions.getOrCreate("s1", "")
		server.subscribe(session, "watch-foo")
		conn := server.hub.Connect(session.ID)
		defer server.hub.Disconnect(conn)

		_, err := core.Emit(context.Background(), blackboard.EmitParams{
			Trail: "foo", Type: "note", Intensity: 0.9,
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = core.RegisterScent(context.Background(), blackboard.RegisterScentParams{
			ScentID: "watch-foo",
			Condition: condition.Condition{
				Kind: condition.KindThreshold,
				Threshold: &condition.ThresholdCondition{
					Trail: "foo", SignalType: "*", Aggregation: condition.AggMax,
					Operator: condition.OpGTE, Value: 0.5,
				},
			},
			TriggerMode: scent.Level,
		})
		Expect(err).NotTo(HaveOccurred())

		Eventually(conn.frames).Should(Receive(ContainSubstring("watch-foo")))
	})
})
