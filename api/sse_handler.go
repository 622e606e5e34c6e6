package api

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// handleSSE opens a GET /sbp subscription stream. Framing and
// keepalive writes happen on a background goroutine feeding an io.Pipe,
// mirroring the proxy's streaming approach: SetBodyStreamWriter buffers
// through an internal channel before flushing, while io.Pipe blocks the
// writer until fasthttp actually drains it to the socket, giving true
// per-frame delivery.
func (s *Server) handleSSE(c *fiber.Ctx) error {
	if !acceptsEventStream(c.Get("Accept")) {
		return c.SendStatus(fiber.StatusNotAcceptable)
	}

	session := s.sessionFromRequest(c)
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	conn := s.hub.Connect(session.ID)

	var replay [][]byte
	if lastID := c.Get("Last-Event-ID"); lastID != "" {
		if n, err := strconv.ParseInt(lastID, 10, 64); err == nil {
			replay = s.hub.Replay(session.ID, n)
		}
	}

	pr, pw := io.Pipe()
	go s.writeSSEStream(pw, conn, replay)

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

func (s *Server) writeSSEStream(pw *io.PipeWriter, conn *connection, replay [][]byte) {
	defer pw.Close()
	defer s.hub.Disconnect(conn)

	for _, frame := range replay {
		if _, err := pw.Write(frame); err != nil {
			return
		}
	}

	keepalive := time.NewTicker(time.Duration(s.config.SSEKeepaliveSeconds) * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case frame, ok := <-conn.frames:
			if !ok {
				return
			}
			if _, err := pw.Write(frame); err != nil {
				return
			}
		case <-keepalive.C:
			if _, err := pw.Write([]byte(keepaliveComment)); err != nil {
				return
			}
		}
	}
}

func acceptsEventStream(accept string) bool {
	if accept == "" {
		return false
	}
	for _, part := range strings.Split(accept, ",") {
		part, _, _ = strings.Cut(strings.TrimSpace(part), ";")
		if part == "text/event-stream" {
			return true
		}
	}
	return false
}
