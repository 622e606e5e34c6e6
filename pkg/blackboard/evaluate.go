package blackboard

import (
	"context"
	"time"

	"github.com/stigmergic-labs/sbp/pkg/condition"
	"github.com/stigmergic-labs/sbp/pkg/pheromone"
	"github.com/stigmergic-labs/sbp/pkg/scent"
)

// evaluateScent runs s's condition against the current live snapshot,
// without touching cooldown or runtime fields. Used both by RegisterScent's
// immediate evaluation and by the periodic tick.
func (c *Core) evaluateScent(ctx context.Context, s *scent.Scent) (condition.Result, error) {
	pheromones, err := c.store.Values(ctx)
	if err != nil {
		return condition.Result{}, err
	}

	return condition.Evaluate(s.Condition, condition.EvaluationContext{
		Pheromones:      pheromones,
		Now:             c.now(),
		EmissionHistory: c.historySnapshot(),
	}), nil
}

// Run starts the periodic evaluation loop and blocks until ctx is
// cancelled or Close is called.
func (c *Core) Run(ctx context.Context) {
	c.stopped.Add(1)
	defer c.stopped.Done()

	ticker := time.NewTicker(c.evaluationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// Close stops the evaluation loop started by Run and waits for it to exit.
func (c *Core) Close() {
	close(c.stop)
	c.stopped.Wait()
}

func (c *Core) tick(ctx context.Context) {
	now := c.now()

	pheromones, err := c.store.Values(ctx)
	if err != nil {
		c.logger.Error("evaluation tick: listing pheromones failed", "error", err)
		return
	}
	history := c.historySnapshot()

	c.scentsMu.RLock()
	ids := make([]string, 0, len(c.scents))
	for id := range c.scents {
		ids = append(ids, id)
	}
	c.scentsMu.RUnlock()

	for _, id := range ids {
		c.scentsMu.RLock()
		s, ok := c.scents[id]
		var snapshot scent.Scent
		if ok {
			snapshot = *s
		}
		c.scentsMu.RUnlock()
		if !ok {
			continue
		}

		if snapshot.CooldownActive(now) {
			continue
		}

		res := condition.Evaluate(snapshot.Condition, condition.EvaluationContext{
			Pheromones:      pheromones,
			Now:             now,
			EmissionHistory: history,
		})
		fire := snapshot.ShouldFire(res.Met)

		c.scentsMu.Lock()
		if cur, ok := c.scents[id]; ok {
			cur.LastConditionMet = res.Met
			if fire {
				triggeredAt := now
				cur.LastTriggeredAt = &triggeredAt
			}
		}
		c.scentsMu.Unlock()

		if fire {
			c.fireTrigger(ctx, id, snapshot, res, pheromones, now)
		}
	}
}

func (c *Core) fireTrigger(ctx context.Context, scentID string, s scent.Scent, res condition.Result, pheromones []pheromone.Pheromone, now int64) {
	payload := TriggerPayload{
		ScentID:     scentID,
		TriggeredAt: now,
		ConditionSnapshot: map[string]ConditionSnapshotItem{
			scentID: {Value: res.Value, PheromoneIDs: res.MatchingPheromoneIDs},
		},
		ContextPheromones: c.contextSnapshots(s, res, pheromones, now),
		ActivationPayload: s.ActivationPayload,
	}

	c.handlersMu.RLock()
	handler, hasHandler := c.handlers[scentID]
	c.handlersMu.RUnlock()

	if hasHandler {
		c.invokeHandler(handler, payload)
		return
	}

	if s.AgentEndpoint == "" || c.dispatcher == nil {
		return
	}

	c.dispatcher.Dispatch(s.AgentEndpoint, s.MaxExecutionMS, payload)
	_ = ctx
}

// invokeHandler runs handler with a panic guard: trigger delivery is
// best-effort and a misbehaving in-process handler must not crash the
// evaluation loop.
func (c *Core) invokeHandler(handler TriggerHandler, payload TriggerPayload) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("trigger handler panicked", "scent_id", payload.ScentID, "panic", r)
		}
	}()
	handler(payload)
}

func (c *Core) contextSnapshots(s scent.Scent, res condition.Result, pheromones []pheromone.Pheromone, now int64) []PheromoneSnapshot {
	byID := make(map[string]pheromone.Pheromone, len(pheromones))
	for _, p := range pheromones {
		byID[p.ID] = p
	}

	var ids []string
	if len(s.ContextTrails) > 0 {
		trailSet := toSet(s.ContextTrails)
		for _, p := range pheromones {
			if _, ok := trailSet[p.Trail]; ok && !pheromone.IsEvaporated(p, now) {
				ids = append(ids, p.ID)
			}
		}
	} else {
		ids = res.MatchingPheromoneIDs
	}

	snapshots := make([]PheromoneSnapshot, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			continue
		}
		snapshots = append(snapshots, PheromoneSnapshot{
			ID:               p.ID,
			Trail:            p.Trail,
			Type:             p.Type,
			EmittedAt:        p.EmittedAt,
			LastReinforcedAt: p.LastReinforcedAt,
			CurrentIntensity: pheromone.ComputeIntensity(p, now),
			Payload:          p.Payload,
			SourceAgent:      p.SourceAgent,
			Tags:             p.Tags,
		})
	}
	return snapshots
}
