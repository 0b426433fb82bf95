// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var escalationTracer = otel.Tracer("eduguard.safety.escalation")

// Escalation statuses returned to the caller.
const (
	// StatusOK means the score stayed at or below the threshold.
	StatusOK = "OK"

	// StatusFailed marks an escalation attempt whose external check
	// errored. It is a distinct outcome: the caller must see that a
	// safety notification may not have gone out.
	StatusFailed = "ESCALATION_FAILED"
)

// DefaultRiskThreshold gates the external check.
const DefaultRiskThreshold = 0.7

// EscalationService is the external human-notification channel.
type EscalationService interface {
	Check(ctx context.Context, riskScore float64) (string, error)
}

// LogEscalation is the default channel when no external service is
// configured: it records the event and returns a descriptor, so the
// pipeline behaves identically in local setups.
type LogEscalation struct{}

func (LogEscalation) Check(ctx context.Context, riskScore float64) (string, error) {
	slog.Warn("Risk threshold exceeded, human escalation triggered", "risk_score", riskScore)
	return fmt.Sprintf("ESCALATED: human support notified (risk=%.2f)", riskScore), nil
}

type escalationRequest struct {
	RiskScore float64 `json:"risk_score"`
}

type escalationResponse struct {
	Status string `json:"status"`
}

// HTTPEscalation posts to an external escalation endpoint.
type HTTPEscalation struct {
	httpClient *http.Client
	url        string
}

// NewEscalationFromEnv reads ESCALATION_SERVICE_URL; unset falls back
// to LogEscalation with a warning.
func NewEscalationFromEnv(timeout time.Duration) EscalationService {
	url := strings.TrimSpace(os.Getenv("ESCALATION_SERVICE_URL"))
	if url == "" {
		slog.Warn("ESCALATION_SERVICE_URL not set, escalations will only be logged")
		return LogEscalation{}
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	slog.Info("Initializing escalation service client", "url", url)
	return &HTTPEscalation{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
	}
}

// Check implements EscalationService.
func (e *HTTPEscalation) Check(ctx context.Context, riskScore float64) (string, error) {
	reqBody, err := json.Marshal(escalationRequest{RiskScore: riskScore})
	if err != nil {
		return "", fmt.Errorf("failed to marshal escalation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create escalation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call the escalation service: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("escalation service returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var parsed escalationResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse escalation response: %w", err)
	}
	if parsed.Status == "" {
		return "", fmt.Errorf("escalation service returned an empty status")
	}
	return parsed.Status, nil
}

// Gate is the escalation decision: a pure threshold comparison with
// no hysteresis or rate limiting. Scores strictly above the threshold
// invoke the external check; everything else is OK.
type Gate struct {
	service   EscalationService
	threshold float64
}

// NewGate wires the gate. A nil service falls back to LogEscalation;
// an out-of-range threshold falls back to the default.
func NewGate(service EscalationService, threshold float64) *Gate {
	if service == nil {
		service = LogEscalation{}
	}
	if threshold < 0 || threshold > 1 {
		slog.Warn("Risk threshold out of range, using default",
			"threshold", threshold, "default", DefaultRiskThreshold)
		threshold = DefaultRiskThreshold
	}
	return &Gate{service: service, threshold: threshold}
}

// Threshold exposes the configured boundary for observability.
func (g *Gate) Threshold() float64 { return g.threshold }

// Decide returns the escalation status for riskScore. A failing
// external check yields StatusFailed and the underlying error; it is
// never folded into OK.
func (g *Gate) Decide(ctx context.Context, riskScore float64) (string, error) {
	ctx, span := escalationTracer.Start(ctx, "Gate.Decide")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("escalation.risk_score", riskScore),
		attribute.Float64("escalation.threshold", g.threshold),
	)

	if riskScore <= g.threshold {
		return StatusOK, nil
	}

	status, err := g.service.Check(ctx, riskScore)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "escalation check failed")
		slog.Error("Escalation service check failed", "risk_score", riskScore, "error", err)
		return StatusFailed, fmt.Errorf("escalation check failed: %w", err)
	}
	span.SetAttributes(attribute.String("escalation.status", status))
	return status, nil
}
