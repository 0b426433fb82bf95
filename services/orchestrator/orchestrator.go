// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator runs one student query through the tutoring
// pipeline and applies the escalation gate to the assessed risk.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/EduGuardAI/EduGuard/services/affect"
	"github.com/EduGuardAI/EduGuard/services/graph"
	"github.com/EduGuardAI/EduGuard/services/orchestrator/datatypes"
	"github.com/EduGuardAI/EduGuard/services/orchestrator/observability"
	"github.com/EduGuardAI/EduGuard/services/safety"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("eduguard.orchestrator")

// Config tunes per-run behavior. Zero values fall back to the
// documented defaults.
type Config struct {
	// RiskThreshold is the escalation boundary; scores strictly above
	// it notify human support. Zero or out-of-range values fall back
	// to safety.DefaultRiskThreshold.
	RiskThreshold float64

	// NodeTimeout bounds each pipeline node when positive.
	NodeTimeout time.Duration
}

// Orchestrator is the request-scoped entry point: one Handle call per
// student query. Safe for concurrent use.
type Orchestrator struct {
	executor *graph.Executor
	gate     *safety.Gate
	metrics  *observability.PipelineMetrics
}

// New validates the pipeline graph and wires the escalation gate.
// A ConfigError from the graph build is fatal: the process must not
// serve requests over an invalid pipeline.
func New(deps PipelineDeps, escalation safety.EscalationService, metrics *observability.PipelineMetrics, cfg Config) (*Orchestrator, error) {
	g, err := BuildPipeline(deps)
	if err != nil {
		return nil, fmt.Errorf("pipeline build failed: %w", err)
	}
	exec, err := graph.NewExecutor(g)
	if err != nil {
		return nil, err
	}
	exec.NodeTimeout = cfg.NodeTimeout

	threshold := cfg.RiskThreshold
	if threshold == 0 {
		threshold = safety.DefaultRiskThreshold
	}

	return &Orchestrator{
		executor: exec,
		gate:     safety.NewGate(escalation, threshold),
		metrics:  metrics,
	}, nil
}

// Handle runs the pipeline for one request and assembles the full
// response payload. A critical-path failure (risk scoring, contract
// violation, cancellation) returns an error and no response; soft
// failures are absorbed and reported through the Degraded flag.
func (o *Orchestrator) Handle(ctx context.Context, req *datatypes.TutorRequest) (*datatypes.TutorResponse, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.Handle")
	defer span.End()

	req.EnsureDefaults()
	span.SetAttributes(attribute.String("request.id", req.Id))
	start := time.Now()

	result, err := o.executor.Run(ctx, graph.State{FieldUserInput: req.Message})
	if err != nil {
		o.observe("error", time.Since(start), nil)
		return nil, fmt.Errorf("pipeline run failed: %w", err)
	}

	state := result.FinalState
	riskScore := state.Float(FieldRiskScore)
	riskLevel := state.String(FieldRiskLevel)
	crisis, _ := state[FieldCrisisFlag].(bool)
	riskDegraded, _ := state[FieldRiskDegraded].(bool)

	escalation, escErr := o.gate.Decide(ctx, riskScore)
	if escErr != nil {
		// The gate already logged and marked the span; the failed
		// status is surfaced to the caller rather than swallowed.
		slog.Error("escalation gate failed, returning failed status to caller",
			"id", req.Id, "risk_score", riskScore)
	}

	emotion := map[string]float64{}
	if scores, ok := state[FieldEmotion].(affect.Scores); ok {
		emotion = map[string]float64(scores)
	}

	resp := &datatypes.TutorResponse{
		Id:         req.Id,
		Response:   state.String(FieldFinalResponse),
		Emotion:    emotion,
		RiskScore:  riskScore,
		RiskLevel:  riskLevel,
		Escalation: escalation,
		RagContext: state.String(FieldRagContext),
		Crisis:     crisis,
		Degraded:   result.Degraded() || riskDegraded,
	}

	status := "success"
	if crisis {
		status = "crisis"
	}
	o.observe(status, time.Since(start), result)
	o.observeSafety(riskLevel, riskScore, escalation)

	slog.Info("tutoring request completed",
		"id", req.Id,
		"risk_level", riskLevel,
		"escalation", escalation,
		"crisis", crisis,
		"degraded", resp.Degraded,
		"elapsed", result.Elapsed)
	return resp, nil
}

// Threshold exposes the active escalation boundary, for health and
// debug surfaces.
func (o *Orchestrator) Threshold() float64 { return o.gate.Threshold() }

func (o *Orchestrator) observe(status string, elapsed time.Duration, result *graph.Result) {
	if o.metrics == nil {
		return
	}
	o.metrics.RequestsTotal.WithLabelValues(status).Inc()
	durationStatus := status
	if durationStatus == "crisis" {
		durationStatus = "success"
	}
	o.metrics.RequestDurationSeconds.WithLabelValues(durationStatus).Observe(elapsed.Seconds())
	if result != nil {
		for node := range result.Failures {
			o.metrics.NodeSoftFailuresTotal.WithLabelValues(node).Inc()
		}
	}
}

func (o *Orchestrator) observeSafety(level string, score float64, escalation string) {
	if o.metrics == nil {
		return
	}
	if level != "" {
		o.metrics.RiskLevelTotal.WithLabelValues(level).Inc()
	}
	switch {
	case escalation == safety.StatusFailed:
		o.metrics.EscalationsTotal.WithLabelValues("failed").Inc()
	case score > o.gate.Threshold():
		o.metrics.EscalationsTotal.WithLabelValues("escalated").Inc()
	default:
		o.metrics.EscalationsTotal.WithLabelValues("ok").Inc()
	}
}
