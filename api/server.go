package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/stigmergic-labs/sbp/internal/ratelimit"
	"github.com/stigmergic-labs/sbp/pkg/blackboard"
)

// Server is the SBP transport: one fiber app serving POST/GET /sbp, REST
// aliases, and /health, backed by a blackboard.Core it never mutates
// directly.
type Server struct {
	config  Config
	core    *blackboard.Core
	logger  *slog.Logger
	app     *fiber.App
	sessions *SessionStore
	hub     *Hub
	limiter *ratelimit.Limiter
	startedAt int64
	clock   func() int64

	// scentHandlerRefs counts the sessions subscribed to each scent_id
	// (a repeat subscribe from the same session is not counted), so the single core.OnTrigger handler for a scent is
	// registered once and removed once the last session unsubscribes.
	refsMu           sync.Mutex
	scentHandlerRefs map[string]int
}

// NewServer wires the transport to core. clock defaults to
// time.Now().UnixMilli if nil.
func NewServer(cfg Config, core *blackboard.Core, logger *slog.Logger, clock func() int64) *Server {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = func() int64 { return time.Now().UnixMilli() }
	}

	s := &Server{
		config:           cfg,
		core:             core,
		logger:           logger,
		clock:            clock,
		limiter:          ratelimit.New(cfg.RateLimitRequestsPerMinute),
		scentHandlerRefs: make(map[string]int),
	}
	s.sessions = newSessionStore(clock)
	s.hub = newHub(s.sessions, cfg.ReplayBufferSize, logger)
	s.startedAt = clock()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	s.app = app

	app.Use(s.authMiddleware, s.rateLimitMiddleware)

	app.Get("/health", s.handleHealth)
	app.All("/sbp", s.handleSbp)

	s.registerRESTAliases(app)

	return s
}

// Run starts the transport on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting sbp transport", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully stops the transport.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) now() int64 { return s.clock() }

// handleSbp dispatches the single /sbp endpoint to its POST (JSON-RPC) or
// GET (SSE) handling.
func (s *Server) handleSbp(c *fiber.Ctx) error {
	switch c.Method() {
	case fiber.MethodPost:
		return s.handleRPCRequest(c)
	case fiber.MethodGet:
		return s.handleSSE(c)
	case fiber.MethodOptions:
		return c.SendStatus(fiber.StatusNoContent)
	default:
		return c.SendStatus(fiber.StatusMethodNotAllowed)
	}
}

func (s *Server) sessionFromRequest(c *fiber.Ctx) *Session {
	id := c.Get("Sbp-Session-Id")
	agentID := c.Get("Sbp-Agent-Id")
	session := s.sessions.getOrCreate(id, agentID)
	c.Set("Sbp-Session-Id", session.ID)
	c.Set("Sbp-Protocol-Version", s.config.ProtocolVersion)
	return session
}

// sessionFromHTTPRequest is sessionFromRequest for handlers expressed in
// stdlib net/http terms, bridged into the fiber app via adaptor.
func (s *Server) sessionFromHTTPRequest(w http.ResponseWriter, r *http.Request) *Session {
	id := r.Header.Get("Sbp-Session-Id")
	agentID := r.Header.Get("Sbp-Agent-Id")
	session := s.sessions.getOrCreate(id, agentID)
	w.Header().Set("Sbp-Session-Id", session.ID)
	w.Header().Set("Sbp-Protocol-Version", s.config.ProtocolVersion)
	return session
}

func (s *Server) handleRPCRequest(c *fiber.Ctx) error {
	session := s.sessionFromRequest(c)

	var req Request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse(nil, newError(CodeParseError, "malformed JSON body")))
	}

	if rpcErr := validateEnvelope(req); rpcErr != nil {
		return c.JSON(errorResponse(req.ID, rpcErr))
	}

	handler, ok := methodTable[req.Method]
	if !ok {
		return c.JSON(errorResponse(req.ID, newError(CodeMethodNotFound, "unknown method "+req.Method)))
	}

	result, rpcErr := handler(c.Context(), s, session, req.Params)
	if rpcErr != nil {
		return c.JSON(errorResponse(req.ID, rpcErr))
	}
	return c.JSON(successResponse(req.ID, result))
}
