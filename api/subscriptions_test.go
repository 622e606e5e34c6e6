package api

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stigmergic-labs/sbp/pkg/blackboard"
)

var _ = Describe("subscribe/unsubscribe", func() {
	var server *Server

	BeforeEach(func() {
		server, _ = newTestServer(Config{})
	})

	It("registers exactly one core handler across multiple subscribers", func() {
		sessionA := server.sessions.getOrCreate("a", "")
		sessionB := server.sessions.getOrCreate("b", "")

		calls := 0
		// OnTrigger is only asserted indirectly: registering it twice would
		// be harmless but wasteful, so we check the ref count instead.
		server.core.OnTrigger("scent-x", func(blackboard.TriggerPayload) { calls++ })

		server.subscribe(sessionA, "scent-x")
		server.subscribe(sessionB, "scent-x")
		Expect(server.scentHandlerRefs["scent-x"]).To(Equal(2))

		server.unsubscribe(sessionA, "scent-x")
		Expect(server.scentHandlerRefs["scent-x"]).To(Equal(1))

		server.unsubscribe(sessionB, "scent-x")
		_, stillTracked := server.scentHandlerRefs["scent-x"]
		Expect(stillTracked).To(BeFalse())
	})

	It("is idempotent", func() {
		session := server.sessions.getOrCreate("a", "")
		server.subscribe(session, "scent-x")
		server.subscribe(session, "scent-x")
		Expect(server.scentHandlerRefs["scent-x"]).To(Equal(1))

		server.unsubscribe(session, "scent-x")
		server.unsubscribe(session, "scent-x")
		_, stillTracked := server.scentHandlerRefs["scent-x"]
		Expect(stillTracked).To(BeFalse())
	})
})
