package api

import "github.com/stigmergic-labs/sbp/pkg/blackboard"

// subscribe binds scentID to session and, on the first subscriber for that
// scent, registers a core trigger handler that fans out through the hub.
func (s *Server) subscribe(session *Session, scentID string) {
	if session.isSubscribed(scentID) {
		return
	}
	session.subscribe(scentID)

	s.refsMu.Lock()
	defer s.refsMu.Unlock()

	s.scentHandlerRefs[scentID]++
	if s.scentHandlerRefs[scentID] == 1 {
		s.core.OnTrigger(scentID, func(payload blackboard.TriggerPayload) {
			s.hub.Publish(scentID, payload)
		})
	}
}

// unsubscribe removes scentID from session and, once the last session has
// unsubscribed, removes the core trigger handler.
func (s *Server) unsubscribe(session *Session, scentID string) {
	if !session.isSubscribed(scentID) {
		return
	}
	session.unsubscribe(scentID)

	s.refsMu.Lock()
	defer s.refsMu.Unlock()

	s.scentHandlerRefs[scentID]--
	if s.scentHandlerRefs[scentID] <= 0 {
		delete(s.scentHandlerRefs, scentID)
		s.core.OffTrigger(scentID)
	}
}
