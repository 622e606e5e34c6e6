package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// connection is one open SSE stream (one GET /sbp request).
type connection struct {
	clientID  string
	sessionID string
	frames    chan []byte
	done      chan struct{}
}

// ring is a bounded, id-ordered buffer of formatted SSE frames for one
// session, enabling Last-Event-ID replay on reconnect.
type ring struct {
	mu     sync.Mutex
	size   int
	frames []ringFrame
}

type ringFrame struct {
	id   int64
	data []byte
}

func newRing(size int) *ring {
	return &ring{size: size}
}

func (r *ring) append(id int64, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames = append(r.frames, ringFrame{id: id, data: data})
	if len(r.frames) > r.size {
		r.frames = r.frames[len(r.frames)-r.size:]
	}
}

func (r *ring) after(lastEventID int64) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out [][]byte
	for _, f := range r.frames {
		if f.id > lastEventID {
			out = append(out, f.data)
		}
	}
	return out
}

// Hub fans trigger notifications out to connected SSE subscribers, keyed by
// the subscribing session's scent bindings. The core knows nothing about
// subscribers: it calls a single per-scent handler that Hub.Publish backs.
type Hub struct {
	sessions *SessionStore
	logger   *slog.Logger

	nextEventID atomic.Int64

	mu       sync.Mutex
	conns    map[string]*connection
	bySession map[string]map[string]struct{} // sessionID -> set of clientIDs
	rings    map[string]*ring                // sessionID -> replay buffer
	ringSize int
}

func newHub(sessions *SessionStore, ringSize int, logger *slog.Logger) *Hub {
	return &Hub{
		sessions:  sessions,
		logger:    logger,
		conns:     make(map[string]*connection),
		bySession: make(map[string]map[string]struct{}),
		rings:     make(map[string]*ring),
		ringSize:  ringSize,
	}
}

// Connect registers a new SSE connection for sessionID and returns it. The
// caller is responsible for calling Disconnect when the stream ends.
func (h *Hub) Connect(sessionID string) *connection {
	conn := &connection{
		clientID:  uuid.Must(uuid.NewV7()).String(),
		sessionID: sessionID,
		frames:    make(chan []byte, 64),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	h.conns[conn.clientID] = conn
	if h.bySession[sessionID] == nil {
		h.bySession[sessionID] = make(map[string]struct{})
	}
	h.bySession[sessionID][conn.clientID] = struct{}{}
	h.mu.Unlock()

	return conn
}

// Disconnect removes a connection once its underlying socket closes.
func (h *Hub) Disconnect(conn *connection) {
	h.mu.Lock()
	delete(h.conns, conn.clientID)
	if set, ok := h.bySession[conn.sessionID]; ok {
		delete(set, conn.clientID)
		if len(set) == 0 {
			delete(h.bySession, conn.sessionID)
		}
	}
	h.mu.Unlock()

	close(conn.done)
}

// Replay returns every buffered frame for sessionID newer than
// lastEventID, in order.
func (h *Hub) Replay(sessionID string, lastEventID int64) [][]byte {
	h.mu.Lock()
	r, ok := h.rings[sessionID]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return r.after(lastEventID)
}

// Publish delivers a trigger notification to every SSE connection whose
// session is subscribed to scentID, and buffers it in that session's replay
// ring regardless of whether a live connection exists.
func (h *Hub) Publish(scentID string, payload any) {
	body, err := json.Marshal(Notification{JSONRPC: "2.0", Method: "sbp/trigger", Params: payload})
	if err != nil {
		h.logger.Error("marshaling trigger notification failed", "scent_id", scentID, "error", err)
		return
	}

	eventID := h.nextEventID.Add(1)
	frame := formatSSEFrame(eventID, body)

	for _, sessionID := range h.sessions.subscribedTo(scentID) {
		h.bufferFrame(sessionID, eventID, frame)

		h.mu.Lock()
		clientIDs := make([]string, 0, len(h.bySession[sessionID]))
		for clientID := range h.bySession[sessionID] {
			clientIDs = append(clientIDs, clientID)
		}
		h.mu.Unlock()

		for _, clientID := range clientIDs {
			h.mu.Lock()
			c, ok := h.conns[clientID]
			h.mu.Unlock()
			if !ok {
				continue
			}
			select {
			case c.frames <- frame:
			default:
				h.logger.Warn("dropping trigger frame, subscriber channel full", "client_id", c.clientID)
			}
		}
	}
}

func (h *Hub) bufferFrame(sessionID string, eventID int64, frame []byte) {
	h.mu.Lock()
	r, ok := h.rings[sessionID]
	if !ok {
		r = newRing(h.ringSize)
		h.rings[sessionID] = r
	}
	h.mu.Unlock()

	r.append(eventID, frame)
}

// formatSSEFrame renders one SSE "message" event:
// event: message\nid: <id>\ndata: <json>\n\n
func formatSSEFrame(id int64, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("event: message\n")
	fmt.Fprintf(&buf, "id: %d\n", id)
	buf.WriteString("data: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes()
}

const keepaliveComment = ": keepalive\n\n"
