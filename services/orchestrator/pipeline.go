// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"context"
	"log/slog"

	"github.com/EduGuardAI/EduGuard/services/affect"
	"github.com/EduGuardAI/EduGuard/services/agents"
	"github.com/EduGuardAI/EduGuard/services/analytics"
	"github.com/EduGuardAI/EduGuard/services/graph"
	"github.com/EduGuardAI/EduGuard/services/llm"
	"github.com/EduGuardAI/EduGuard/services/memory"
)

// State field names shared by the pipeline nodes. Declared once so the
// node contracts and the result readers cannot drift apart.
const (
	FieldUserInput = "user_input"

	FieldRagContext  = "rag_context"
	FieldRagEvidence = "rag_evidence"
	FieldEmotion     = "emotion"

	FieldTutorResponse  = "tutor_response"
	FieldCoachResponse  = "coach_response"
	FieldCriticResponse = "critic_response"

	FieldFinalResponse = "final_response"
	FieldCrisisFlag    = "crisis_flag"

	FieldRiskScore    = "risk_score"
	FieldRiskLevel    = "risk_level"
	FieldRiskReasons  = "risk_reasons"
	FieldRiskDegraded = "risk_degraded"
)

// PipelineDeps carries the services the pipeline nodes close over.
type PipelineDeps struct {
	LLM        llm.Client
	Memory     *memory.ContextBuilder
	Detector   affect.Detector
	Extractor  *analytics.Extractor
	Parliament *agents.Parliament
}

// BuildPipeline assembles and validates the tutoring graph:
//
//	rag -> affect -> {tutor, coach, critic} -> parliament -> risk
//
// Retrieval and affect tagging run first, the three advisors fan out in
// parallel over the shared retrieval context, the parliament joins
// their outputs, and risk scoring runs last as the critical gate. Any
// contract violation surfaces here as a ConfigError, before a single
// request is served.
func BuildPipeline(deps PipelineDeps) (*graph.Graph, error) {
	nodes := []graph.Node{
		{
			Name:   "rag",
			Reads:  []string{FieldUserInput},
			Writes: []string{FieldRagContext, FieldRagEvidence},
			Run: func(ctx context.Context, state graph.State) (graph.Patch, error) {
				rendered, pack, err := deps.Memory.Build(ctx, state.String(FieldUserInput))
				if err != nil {
					return nil, err
				}
				return graph.Patch{
					FieldRagContext:  rendered,
					FieldRagEvidence: pack,
				}, nil
			},
		},
		{
			Name:   "affect",
			Reads:  []string{FieldUserInput},
			Writes: []string{FieldEmotion},
			Run: func(ctx context.Context, state graph.State) (graph.Patch, error) {
				scores, err := deps.Detector.Detect(ctx, state.String(FieldUserInput))
				if err != nil {
					return nil, err
				}
				return graph.Patch{FieldEmotion: scores}, nil
			},
		},
		advisorNode("tutor", agents.Tutor, FieldTutorResponse, deps.LLM),
		advisorNode("coach", agents.Coach, FieldCoachResponse, deps.LLM),
		advisorNode("critic", agents.Critic, FieldCriticResponse, deps.LLM),
		{
			Name: "parliament",
			Reads: []string{
				FieldTutorResponse, FieldCoachResponse, FieldCriticResponse,
			},
			Writes: []string{FieldFinalResponse, FieldCrisisFlag},
			Run: func(ctx context.Context, state graph.State) (graph.Patch, error) {
				final, crisis := deps.Parliament.Aggregate(
					state.String(FieldTutorResponse),
					state.String(FieldCoachResponse),
					state.String(FieldCriticResponse),
				)
				return graph.Patch{
					FieldFinalResponse: final,
					FieldCrisisFlag:    crisis,
				}, nil
			},
		},
		{
			Name:     "risk",
			Reads:    []string{FieldUserInput, FieldRagContext},
			Writes:   []string{FieldRiskScore, FieldRiskLevel, FieldRiskReasons, FieldRiskDegraded},
			Critical: true,
			Run: func(ctx context.Context, state graph.State) (graph.Patch, error) {
				feats, degraded, err := deps.Extractor.Extract(ctx,
					state.String(FieldUserInput), state.String(FieldRagContext))
				if err != nil {
					// A model-call failure on the risk path aborts the
					// run; a fabricated risk score is not an acceptable
					// substitute. Unparseable output (degraded, nil err)
					// still scores on the zeroed record.
					return nil, err
				}
				if degraded {
					slog.Warn("feature extraction degraded, scoring on a zeroed feature record")
				}
				result := analytics.ScoreRisk(feats)
				return graph.Patch{
					FieldRiskScore:    result.Score,
					FieldRiskLevel:    result.Level,
					FieldRiskReasons:  result.Reasons,
					FieldRiskDegraded: degraded,
				}, nil
			},
		},
	}

	edges := []graph.Edge{
		{From: "rag", To: "affect"},
		{From: "affect", To: "tutor"},
		{From: "affect", To: "coach"},
		{From: "affect", To: "critic"},
		{From: "tutor", To: "parliament"},
		{From: "coach", To: "parliament"},
		{From: "critic", To: "parliament"},
		{From: "parliament", To: "risk"},
	}

	return graph.New(nodes, edges, []string{FieldUserInput})
}

// advisorNode wraps one advisor as a pipeline node. All three advisors
// share the same contract: read the user input and retrieval context,
// write a single response field.
func advisorNode(name string, advisor agents.Advisor, writeField string, client llm.Client) graph.Node {
	return graph.Node{
		Name:   name,
		Reads:  []string{FieldUserInput, FieldRagContext},
		Writes: []string{writeField},
		Run: func(ctx context.Context, state graph.State) (graph.Patch, error) {
			out, err := advisor.Advise(ctx, client,
				state.String(FieldUserInput), state.String(FieldRagContext))
			if err != nil {
				return nil, err
			}
			return graph.Patch{writeField: out}, nil
		},
	}
}
