package api

import (
	"context"
	"encoding/json"

	"github.com/stigmergic-labs/sbp/pkg/blackboard"
	"github.com/stigmergic-labs/sbp/pkg/condition"
	"github.com/stigmergic-labs/sbp/pkg/pheromone"
	"github.com/stigmergic-labs/sbp/pkg/scent"
)

type methodHandler func(ctx context.Context, s *Server, session *Session, params json.RawMessage) (any, *RPCError)

var methodTable = map[string]methodHandler{
	"sbp/emit":            handleEmit,
	"sbp/sniff":           handleSniff,
	"sbp/register_scent":  handleRegisterScent,
	"sbp/deregister_scent": handleDeregisterScent,
	"sbp/evaporate":       handleEvaporate,
	"sbp/inspect":         handleInspect,
	"sbp/subscribe":       handleSubscribe,
	"sbp/unsubscribe":     handleUnsubscribe,
}

func decodeParams(params json.RawMessage, v any) *RPCError {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return newError(CodeInvalidParams, "invalid params: "+err.Error())
	}
	return nil
}

type emitParams struct {
	Trail         string               `json:"trail"`
	Type          string               `json:"type"`
	Intensity     float64              `json:"intensity"`
	DecayModel    pheromone.DecayModel `json:"decay_model"`
	Payload       map[string]any       `json:"payload"`
	SourceAgent   string               `json:"source_agent"`
	Tags          []string             `json:"tags"`
	TTLFloor      float64              `json:"ttl_floor"`
	MergeStrategy string               `json:"merge_strategy"`
}

func handleEmit(ctx context.Context, s *Server, _ *Session, raw json.RawMessage) (any, *RPCError) {
	var p emitParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Trail == "" || p.Type == "" {
		return nil, newError(CodeInvalidParams, "trail and type are required")
	}

	res, err := s.core.Emit(ctx, blackboard.EmitParams{
		Trail: p.Trail, Type: p.Type, Intensity: p.Intensity, DecayModel: p.DecayModel,
		Payload: p.Payload, SourceAgent: p.SourceAgent, Tags: p.Tags, TTLFloor: p.TTLFloor,
		MergeStrategy: blackboard.MergeStrategy(p.MergeStrategy),
	})
	if err != nil {
		return nil, newError(CodeInternalError, err.Error())
	}
	return res, nil
}

type sniffParams struct {
	Trails            []string           `json:"trails"`
	Types             []string           `json:"types"`
	MinIntensity      float64            `json:"min_intensity"`
	MaxAgeMS          int64              `json:"max_age_ms"`
	Tags              pheromone.TagFilter `json:"tags"`
	IncludeEvaporated bool               `json:"include_evaporated"`
	Limit             int                `json:"limit"`
}

func handleSniff(ctx context.Context, s *Server, _ *Session, raw json.RawMessage) (any, *RPCError) {
	var p sniffParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}

	res, err := s.core.Sniff(ctx, blackboard.SniffParams{
		Trails: p.Trails, Types: p.Types, MinIntensity: p.MinIntensity, MaxAgeMS: p.MaxAgeMS,
		Tags: p.Tags, IncludeEvaporated: p.IncludeEvaporated, Limit: p.Limit,
	})
	if err != nil {
		return nil, newError(CodeInternalError, err.Error())
	}
	return res, nil
}

type registerScentParams struct {
	ScentID           string              `json:"scent_id"`
	AgentEndpoint     string              `json:"agent_endpoint"`
	Condition         condition.Condition `json:"condition"`
	CooldownMS        int64               `json:"cooldown_ms"`
	ActivationPayload map[string]any      `json:"activation_payload"`
	TriggerMode       string              `json:"trigger_mode"`
	Hysteresis        float64             `json:"hysteresis"`
	MaxExecutionMS    int64               `json:"max_execution_ms"`
	ContextTrails     []string            `json:"context_trails"`
}

func handleRegisterScent(ctx context.Context, s *Server, _ *Session, raw json.RawMessage) (any, *RPCError) {
	var p registerScentParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.ScentID == "" {
		return nil, newError(CodeInvalidParams, "scent_id is required")
	}

	mode := scent.TriggerMode(p.TriggerMode)
	if mode == "" {
		mode = scent.Level
	}

	res, err := s.core.RegisterScent(ctx, blackboard.RegisterScentParams{
		ScentID: p.ScentID, AgentEndpoint: p.AgentEndpoint, Condition: p.Condition,
		CooldownMS: p.CooldownMS, ActivationPayload: p.ActivationPayload, TriggerMode: mode,
		Hysteresis: p.Hysteresis, MaxExecutionMS: p.MaxExecutionMS, ContextTrails: p.ContextTrails,
	})
	if err != nil {
		return nil, newErrorWithData(CodeInvalidCondition, err.Error(), nil)
	}
	return res, nil
}

type scentIDParams struct {
	ScentID string `json:"scent_id"`
}

func handleDeregisterScent(ctx context.Context, s *Server, _ *Session, raw json.RawMessage) (any, *RPCError) {
	var p scentIDParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.ScentID == "" {
		return nil, newError(CodeInvalidParams, "scent_id is required")
	}
	return s.core.DeregisterScent(ctx, p.ScentID), nil
}

type evaporateParams struct {
	Trail          string             `json:"trail"`
	Types          []string           `json:"types"`
	OlderThanMS    int64              `json:"older_than_ms"`
	BelowIntensity float64            `json:"below_intensity"`
	Tags           pheromone.TagFilter `json:"tags"`
}

func handleEvaporate(ctx context.Context, s *Server, _ *Session, raw json.RawMessage) (any, *RPCError) {
	var p evaporateParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}

	res, err := s.core.Evaporate(ctx, blackboard.EvaporateParams{
		Trail: p.Trail, Types: p.Types, OlderThanMS: p.OlderThanMS,
		BelowIntensity: p.BelowIntensity, Tags: p.Tags,
	})
	if err != nil {
		return nil, newError(CodeInternalError, err.Error())
	}
	return res, nil
}

func handleInspect(ctx context.Context, s *Server, _ *Session, raw json.RawMessage) (any, *RPCError) {
	var p blackboard.InspectParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}

	res, err := s.core.Inspect(ctx, p)
	if err != nil {
		return nil, newError(CodeInternalError, err.Error())
	}
	return res, nil
}

func handleSubscribe(_ context.Context, s *Server, session *Session, raw json.RawMessage) (any, *RPCError) {
	var p scentIDParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.ScentID == "" {
		return nil, newError(CodeInvalidParams, "scent_id is required")
	}

	s.subscribe(session, p.ScentID)
	return map[string]string{"status": "subscribed"}, nil
}

func handleUnsubscribe(_ context.Context, s *Server, session *Session, raw json.RawMessage) (any, *RPCError) {
	var p scentIDParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.ScentID == "" {
		return nil, newError(CodeInvalidParams, "scent_id is required")
	}

	s.unsubscribe(session, p.ScentID)
	return map[string]string{"status": "unsubscribed"}, nil
}
