// Package blackboard is the engine: it owns the pheromone store, the scent
// table, the emission-history ring, and the periodic evaluation loop that
// fires triggers subject to cooldown and edge-trigger semantics.
package blackboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stigmergic-labs/sbp/pkg/condition"
	"github.com/stigmergic-labs/sbp/pkg/pheromone"
	"github.com/stigmergic-labs/sbp/pkg/scent"
	"github.com/stigmergic-labs/sbp/pkg/store"
)

const (
	defaultTTLFloor             = 0.05
	defaultEvaluationInterval   = 100 * time.Millisecond
	defaultEmissionHistoryWindow = 60_000
	// defaultHalfLifeMS is the decay applied to a pheromone emitted with no
	// explicit decay_model, so it still evaporates and remains subject to GC.
	defaultHalfLifeMS int64 = 300_000
)

// Config configures a Core.
type Config struct {
	Store store.Store

	// MaxPheromones triggers garbage collection of evaporated pheromones
	// once the store grows past it. Zero disables the cap.
	MaxPheromones int

	// EmissionHistoryWindowMS bounds how long an emission record survives
	// for rate/pattern evaluation.
	EmissionHistoryWindowMS int64

	// EvaluationInterval is the evaluation loop's tick cadence.
	EvaluationInterval time.Duration

	// Dispatcher delivers triggers over HTTP when no in-process handler is
	// registered for a scent. Nil disables HTTP dispatch (handlers only).
	Dispatcher TriggerDispatcher

	Logger *slog.Logger

	// Clock returns the current wall-clock time in milliseconds since
	// epoch. Defaults to time.Now().UnixMilli; overridable for tests.
	Clock func() int64
}

// TriggerDispatcher delivers a fired trigger to a scent's agent_endpoint
// over HTTP, bounded by the scent's max_execution_ms.
type TriggerDispatcher interface {
	Dispatch(endpoint string, maxExecutionMS int64, payload TriggerPayload)
}

// Core orchestrates emit/sniff/register/deregister/evaporate/inspect and
// the background evaluation loop. The transport layer borrows read access
// through these methods and never mutates state directly.
type Core struct {
	store store.Store

	scentsMu sync.RWMutex
	scents   map[string]*scent.Scent

	historyMu sync.Mutex
	history   []condition.EmissionRecord

	handlersMu sync.RWMutex
	handlers   map[string]TriggerHandler

	emitMu sync.Mutex // serializes compound read-modify-write on the store

	maxPheromones     int
	historyWindowMS   int64
	evaluationInterval time.Duration
	dispatcher        TriggerDispatcher
	logger            *slog.Logger
	clock             func() int64
	startedAt         int64

	stop   chan struct{}
	stopped sync.WaitGroup
}

// New constructs a Core. Store is required; everything else has a sane
// default.
func New(cfg Config) *Core {
	if cfg.EmissionHistoryWindowMS == 0 {
		cfg.EmissionHistoryWindowMS = defaultEmissionHistoryWindow
	}
	if cfg.EvaluationInterval == 0 {
		cfg.EvaluationInterval = defaultEvaluationInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = func() int64 { return time.Now().UnixMilli() }
	}

	return &Core{
		store:              cfg.Store,
		scents:             make(map[string]*scent.Scent),
		handlers:           make(map[string]TriggerHandler),
		maxPheromones:      cfg.MaxPheromones,
		historyWindowMS:    cfg.EmissionHistoryWindowMS,
		evaluationInterval: cfg.EvaluationInterval,
		dispatcher:         cfg.Dispatcher,
		logger:             cfg.Logger,
		clock:              cfg.Clock,
		startedAt:          cfg.Clock(),
		stop:               make(chan struct{}),
	}
}

func (c *Core) now() int64 { return c.clock() }

// Emit deposits or merges a signal.
func (c *Core) Emit(ctx context.Context, p EmitParams) (EmitResult, error) {
	if p.Trail == "" || p.Type == "" {
		return EmitResult{}, fmt.Errorf("trail and type are required")
	}

	intensity := clamp01(p.Intensity)
	now := c.now()

	if p.DecayModel.Kind == "" {
		p.DecayModel = pheromone.DecayModel{Kind: pheromone.Exponential, HalfLifeMS: defaultHalfLifeMS}
	}
	ttlFloor := p.TTLFloor
	if ttlFloor == 0 {
		ttlFloor = defaultTTLFloor
	}
	mergeStrategy := p.MergeStrategy
	if mergeStrategy == "" {
		mergeStrategy = MergeNew
	}

	c.appendEmission(condition.EmissionRecord{
		Trail: p.Trail, Type: p.Type, Timestamp: now, Intensity: intensity,
	})

	payloadHash := pheromone.PayloadHash(p.Payload)

	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	if mergeStrategy != MergeNew {
		existing, id, found, err := c.findMergeCandidate(ctx, p.Trail, p.Type, payloadHash, now)
		if err != nil {
			return EmitResult{}, err
		}
		if found {
			previous := pheromone.ComputeIntensity(existing, now)
			merged, action := applyMerge(existing, mergeStrategy, intensity, now, p)
			if err := c.store.Set(ctx, id, merged); err != nil {
				return EmitResult{}, fmt.Errorf("storing merged pheromone: %w", err)
			}
			return EmitResult{
				ID:                id,
				Action:            action,
				PreviousIntensity: previous,
				CurrentIntensity:  pheromone.ComputeIntensity(merged, now),
			}, nil
		}
	}

	id := uuid.Must(uuid.NewV7()).String()
	np := pheromone.Pheromone{
		ID:               id,
		Trail:            p.Trail,
		Type:             p.Type,
		EmittedAt:        now,
		LastReinforcedAt: now,
		InitialIntensity: intensity,
		DecayModel:       p.DecayModel,
		Payload:          p.Payload,
		SourceAgent:      p.SourceAgent,
		Tags:             p.Tags,
		TTLFloor:         ttlFloor,
	}
	if err := c.store.Set(ctx, id, np); err != nil {
		return EmitResult{}, fmt.Errorf("storing pheromone: %w", err)
	}

	c.maybeGC(ctx, now)

	return EmitResult{
		ID:               id,
		Action:           ActionCreated,
		CurrentIntensity: pheromone.ComputeIntensity(np, now),
	}, nil
}

func (c *Core) findMergeCandidate(ctx context.Context, trail, typ, payloadHash string, now int64) (pheromone.Pheromone, string, bool, error) {
	entries, err := c.store.Entries(ctx)
	if err != nil {
		return pheromone.Pheromone{}, "", false, fmt.Errorf("listing pheromones: %w", err)
	}
	for id, p := range entries {
		if p.Trail != trail || p.Type != typ {
			continue
		}
		if pheromone.IsEvaporated(p, now) {
			continue
		}
		if pheromone.PayloadHash(p.Payload) != payloadHash {
			continue
		}
		return p, id, true, nil
	}
	return pheromone.Pheromone{}, "", false, nil
}

func applyMerge(existing pheromone.Pheromone, strategy MergeStrategy, intensity float64, now int64, p EmitParams) (pheromone.Pheromone, MergeAction) {
	previous := pheromone.ComputeIntensity(existing, now)
	merged := existing

	switch strategy {
	case MergeReinforce:
		merged.InitialIntensity = intensity
		merged.LastReinforcedAt = now
		return merged, ActionReinforced

	case MergeReplace:
		merged.InitialIntensity = intensity
		merged.LastReinforcedAt = now
		merged.Payload = p.Payload
		merged.Tags = p.Tags
		if p.SourceAgent != "" {
			merged.SourceAgent = p.SourceAgent
		}
		return merged, ActionReplaced

	case MergeMax:
		merged.InitialIntensity = max(previous, intensity)
		merged.LastReinforcedAt = now
		return merged, ActionMerged

	case MergeAdd:
		merged.InitialIntensity = clamp01(previous + intensity)
		merged.LastReinforcedAt = now
		return merged, ActionMerged

	default:
		merged.InitialIntensity = intensity
		merged.LastReinforcedAt = now
		return merged, ActionReinforced
	}
}

// Sniff reads a filtered, sorted snapshot of live pheromones.
func (c *Core) Sniff(ctx context.Context, p SniffParams) (SniffResult, error) {
	now := c.now()

	values, err := c.store.Values(ctx)
	if err != nil {
		return SniffResult{}, fmt.Errorf("listing pheromones: %w", err)
	}

	trailSet := toSet(p.Trails)
	typeSet := toSet(p.Types)

	var matches []sniffMatch

	for _, ph := range values {
		if len(trailSet) > 0 {
			if _, ok := trailSet[ph.Trail]; !ok {
				continue
			}
		}
		if len(typeSet) > 0 {
			if _, ok := typeSet[ph.Type]; !ok {
				continue
			}
		}
		if !pheromone.MatchTags(ph.Tags, p.Tags) {
			continue
		}
		if p.MaxAgeMS > 0 && now-ph.EmittedAt > p.MaxAgeMS {
			continue
		}

		intensity := pheromone.ComputeIntensity(ph, now)
		evaporated := intensity < ph.TTLFloor
		if evaporated && !p.IncludeEvaporated {
			continue
		}
		if intensity < p.MinIntensity {
			continue
		}

		matches = append(matches, sniffMatch{p: ph, intensity: intensity})
	}

	aggregates := aggregateByTrailType(matches)

	sortMatchesDescending(matches)

	if p.Limit > 0 && len(matches) > p.Limit {
		matches = matches[:p.Limit]
	}

	snapshots := make([]PheromoneSnapshot, 0, len(matches))
	for _, m := range matches {
		snapshots = append(snapshots, PheromoneSnapshot{
			ID:               m.p.ID,
			Trail:            m.p.Trail,
			Type:             m.p.Type,
			EmittedAt:        m.p.EmittedAt,
			LastReinforcedAt: m.p.LastReinforcedAt,
			CurrentIntensity: m.intensity,
			Payload:          m.p.Payload,
			SourceAgent:      m.p.SourceAgent,
			Tags:             m.p.Tags,
		})
	}

	return SniffResult{Pheromones: snapshots, Aggregates: aggregates, Timestamp: now}, nil
}

// RegisterScent upserts a scent and evaluates its condition once.
func (c *Core) RegisterScent(ctx context.Context, p RegisterScentParams) (RegisterScentResult, error) {
	if err := condition.Validate(p.Condition); err != nil {
		return RegisterScentResult{}, fmt.Errorf("invalid condition: %w", err)
	}

	c.scentsMu.Lock()
	existing, found := c.scents[p.ScentID]

	s := &scent.Scent{
		ScentID:           p.ScentID,
		AgentEndpoint:     p.AgentEndpoint,
		Condition:         p.Condition,
		CooldownMS:        p.CooldownMS,
		ActivationPayload: p.ActivationPayload,
		TriggerMode:       p.TriggerMode,
		Hysteresis:        p.Hysteresis,
		MaxExecutionMS:    p.MaxExecutionMS,
		ContextTrails:     p.ContextTrails,
	}

	if found {
		// LastTriggeredAt is always preserved. LastConditionMet is preserved
		// for level mode and reset for edge modes so a stale "met" state
		// can't suppress or force a spurious transition.
		s.LastTriggeredAt = existing.LastTriggeredAt
		if p.TriggerMode == scent.Level {
			s.LastConditionMet = existing.LastConditionMet
		}
	}

	c.scents[p.ScentID] = s
	c.scentsMu.Unlock()

	res, err := c.evaluateScent(ctx, s)
	if err != nil {
		return RegisterScentResult{}, err
	}

	status := "registered"
	if found {
		status = "updated"
	}

	return RegisterScentResult{Status: status, CurrentConditionMet: res.Met}, nil
}

// DeregisterScent removes a scent and its trigger handler.
func (c *Core) DeregisterScent(_ context.Context, scentID string) DeregisterScentResult {
	c.scentsMu.Lock()
	_, found := c.scents[scentID]
	delete(c.scents, scentID)
	c.scentsMu.Unlock()

	c.handlersMu.Lock()
	delete(c.handlers, scentID)
	c.handlersMu.Unlock()

	if !found {
		return DeregisterScentResult{Status: "not_found"}
	}
	return DeregisterScentResult{Status: "deregistered"}
}

// Evaporate removes pheromones matching every supplied filter.
func (c *Core) Evaporate(ctx context.Context, p EvaporateParams) (EvaporateResult, error) {
	now := c.now()
	typeSet := toSet(p.Types)

	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	entries, err := c.store.Entries(ctx)
	if err != nil {
		return EvaporateResult{}, fmt.Errorf("listing pheromones: %w", err)
	}

	removed := 0
	affected := map[string]struct{}{}

	for id, ph := range entries {
		if p.Trail != "" && ph.Trail != p.Trail {
			continue
		}
		if len(typeSet) > 0 {
			if _, ok := typeSet[ph.Type]; !ok {
				continue
			}
		}
		if p.OlderThanMS > 0 && now-ph.EmittedAt < p.OlderThanMS {
			continue
		}
		if p.BelowIntensity > 0 && pheromone.ComputeIntensity(ph, now) >= p.BelowIntensity {
			continue
		}
		if !pheromone.MatchTags(ph.Tags, p.Tags) {
			continue
		}

		if err := c.store.Delete(ctx, id); err != nil {
			return EvaporateResult{}, fmt.Errorf("deleting pheromone %s: %w", id, err)
		}
		removed++
		affected[ph.Trail] = struct{}{}
	}

	trails := make([]string, 0, len(affected))
	for t := range affected {
		trails = append(trails, t)
	}

	return EvaporateResult{RemovedCount: removed, AffectedTrails: trails}, nil
}

// Inspect returns diagnostic views of the store and scent table.
func (c *Core) Inspect(ctx context.Context, p InspectParams) (InspectResult, error) {
	now := c.now()
	var result InspectResult

	include := p.Include
	if len(include) == 0 {
		include = []string{"trails", "scents", "stats"}
	}
	wantTrails, wantScents, wantStats := false, false, false
	for _, s := range include {
		switch s {
		case "trails":
			wantTrails = true
		case "scents":
			wantScents = true
		case "stats":
			wantStats = true
		}
	}

	if wantTrails {
		values, err := c.store.Values(ctx)
		if err != nil {
			return InspectResult{}, fmt.Errorf("listing pheromones: %w", err)
		}
		byTrail := map[string]*TrailStats{}
		for _, ph := range values {
			if pheromone.IsEvaporated(ph, now) {
				continue
			}
			ts, ok := byTrail[ph.Trail]
			if !ok {
				ts = &TrailStats{Trail: ph.Trail}
				byTrail[ph.Trail] = ts
			}
			ts.Count++
			ts.TotalIntensity += pheromone.ComputeIntensity(ph, now)
		}
		for _, ts := range byTrail {
			if ts.Count > 0 {
				ts.AvgIntensity = ts.TotalIntensity / float64(ts.Count)
			}
			result.Trails = append(result.Trails, *ts)
		}
	}

	if wantScents {
		c.scentsMu.RLock()
		for _, s := range c.scents {
			result.Scents = append(result.Scents, ScentStats{
				ScentID:          s.ScentID,
				AgentEndpoint:    s.AgentEndpoint,
				LastConditionMet: s.LastConditionMet,
				CooldownActive:   s.CooldownActive(now),
				LastTriggeredAt:  s.LastTriggeredAt,
			})
		}
		c.scentsMu.RUnlock()
	}

	if wantStats {
		size, err := c.store.Size(ctx)
		if err != nil {
			return InspectResult{}, fmt.Errorf("sizing store: %w", err)
		}
		values, err := c.store.Values(ctx)
		if err != nil {
			return InspectResult{}, fmt.Errorf("listing pheromones: %w", err)
		}
		active := 0
		for _, ph := range values {
			if !pheromone.IsEvaporated(ph, now) {
				active++
			}
		}

		c.scentsMu.RLock()
		scentCount := len(c.scents)
		c.scentsMu.RUnlock()

		result.Stats = &CoreStats{
			TotalPheromones:  size,
			ActivePheromones: active,
			ScentCount:       scentCount,
			UptimeMS:         now - c.startedAt,
		}
	}

	return result, nil
}

// OnTrigger registers an in-process handler for scentID. A present handler
// preempts HTTP dispatch for that scent.
func (c *Core) OnTrigger(scentID string, handler TriggerHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[scentID] = handler
}

// OffTrigger removes scentID's in-process handler, if any.
func (c *Core) OffTrigger(scentID string) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	delete(c.handlers, scentID)
}

func (c *Core) appendEmission(r condition.EmissionRecord) {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()

	c.history = append(c.history, r)
	c.pruneHistoryLocked(r.Timestamp)
}

func (c *Core) pruneHistoryLocked(now int64) {
	cutoff := now - c.historyWindowMS
	i := 0
	for i < len(c.history) && c.history[i].Timestamp < cutoff {
		i++
	}
	if i > 0 {
		c.history = c.history[i:]
	}
}

func (c *Core) historySnapshot() []condition.EmissionRecord {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()

	snap := make([]condition.EmissionRecord, len(c.history))
	copy(snap, c.history)
	return snap
}

func (c *Core) maybeGC(ctx context.Context, now int64) {
	if c.maxPheromones <= 0 {
		return
	}
	size, err := c.store.Size(ctx)
	if err != nil || size <= c.maxPheromones {
		return
	}
	c.gc(ctx, now)
}

// gc deletes every evaporated pheromone. Safe to call on demand.
func (c *Core) gc(ctx context.Context, now int64) {
	entries, err := c.store.Entries(ctx)
	if err != nil {
		c.logger.Error("gc: listing pheromones failed", "error", err)
		return
	}
	for id, ph := range entries {
		if pheromone.IsEvaporated(ph, now) {
			if err := c.store.Delete(ctx, id); err != nil {
				c.logger.Error("gc: deleting pheromone failed", "id", id, "error", err)
			}
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toSet(items []string) map[string]struct{} {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(items))
	for _, i := range items {
		set[i] = struct{}{}
	}
	return set
}
