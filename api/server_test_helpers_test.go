package api

import (
	"log/slog"
	"time"

	"github.com/stigmergic-labs/sbp/pkg/blackboard"
	"github.com/stigmergic-labs/sbp/pkg/store/inmemory"
)

// newTestServer builds a Server backed by a fresh in-memory core, using a
// fixed clock unless overridden by cfg.
func newTestServer(cfg Config) (*Server, *blackboard.Core) {
	now := time.Now().UnixMilli()
	clock := func() int64 { return now }

	core := blackboard.New(blackboard.Config{
		Store: inmemory.NewDriver(),
		Clock: clock,
	})

	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	return NewServer(cfg, core, logger, clock), core
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
