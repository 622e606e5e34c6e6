package api

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SessionStore", func() {
	var store *SessionStore

	BeforeEach(func() {
		store = newSessionStore(func() int64 { return 100 })
	})

	It("creates a new session when id is empty", func() {
		s := store.getOrCreate("", "agent-1")
		Expect(s.ID).NotTo(BeEmpty())
		Expect(s.AgentID).To(Equal("agent-1"))
		Expect(s.CreatedAt).To(Equal(int64(100)))
	})

	It("returns the same session for a known id", func() {
		first := store.getOrCreate("", "agent-1")
		second := store.getOrCreate(first.ID, "agent-1")
		Expect(second).To(BeIdenticalTo(first))
	})

	It("creates a fresh session for an unknown client-chosen id", func() {
		s := store.getOrCreate("client-chosen-id", "agent-1")
		Expect(s.ID).To(Equal("client-chosen-id"))

		got, ok := store.get("client-chosen-id")
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(s))
	})

	Describe("subscribedTo", func() {
		It("only returns sessions subscribed to the given scent", func() {
			a := store.getOrCreate("a", "")
			b := store.getOrCreate("b", "")
			a.subscribe("scent-1")

			Expect(store.subscribedTo("scent-1")).To(ConsistOf("a"))
			Expect(store.subscribedTo("scent-2")).To(BeEmpty())

			b.subscribe("scent-1")
			Expect(store.subscribedTo("scent-1")).To(ConsistOf("a", "b"))
		})
	})
})

var _ = Describe("Session", func() {
	It("tracks subscriptions idempotently", func() {
		s := newSession("id", "agent", 0)
		Expect(s.isSubscribed("x")).To(BeFalse())

		s.subscribe("x")
		s.subscribe("x")
		Expect(s.subscribedScents()).To(ConsistOf("x"))

		s.unsubscribe("x")
		Expect(s.isSubscribed("x")).To(BeFalse())
	})
})
