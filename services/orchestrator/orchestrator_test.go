// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/EduGuardAI/EduGuard/services/affect"
	"github.com/EduGuardAI/EduGuard/services/agents"
	"github.com/EduGuardAI/EduGuard/services/analytics"
	"github.com/EduGuardAI/EduGuard/services/memory"
	"github.com/EduGuardAI/EduGuard/services/orchestrator/datatypes"
	"github.com/EduGuardAI/EduGuard/services/safety"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routingClient answers each advisor by its system prompt, so one stub
// serves the whole fan-out plus the feature extractor.
type routingClient struct {
	tutorReply   string
	coachReply   string
	criticReply  string
	featuresJSON string

	advisorErr   error
	extractorErr error
}

func (c *routingClient) Chat(ctx context.Context, system, user string, temperature float32) (string, error) {
	switch {
	case strings.Contains(system, "academic tutor"):
		return c.tutorReply, c.advisorErr
	case strings.Contains(system, "motivational coach"):
		return c.coachReply, c.advisorErr
	case strings.Contains(system, "safety and ethics monitor"):
		return c.criticReply, c.advisorErr
	default:
		return c.featuresJSON, c.extractorErr
	}
}

type stubProvider struct {
	evidence *memory.Evidence
	err      error
}

func (p *stubProvider) Retrieve(ctx context.Context, query, concept string, k, depth int) (*memory.Evidence, error) {
	return p.evidence, p.err
}

type stubDetector struct {
	scores affect.Scores
	err    error
}

func (d *stubDetector) Detect(ctx context.Context, text string) (affect.Scores, error) {
	return d.scores, d.err
}

type stubEscalation struct {
	status string
	err    error
	called bool
	score  float64
}

func (s *stubEscalation) Check(ctx context.Context, riskScore float64) (string, error) {
	s.called = true
	s.score = riskScore
	return s.status, s.err
}

func testDeps(t *testing.T, client *routingClient) PipelineDeps {
	t.Helper()
	policy, err := safety.NewCrisisPolicy()
	require.NoError(t, err)

	provider := &stubProvider{evidence: &memory.Evidence{
		Semantic:   []string{"Photosynthesis converts light energy into chemical energy."},
		Structured: []string{"photosynthesis -[produces]-> glucose"},
	}}

	return PipelineDeps{
		LLM:        client,
		Memory:     memory.NewContextBuilder(provider, nil),
		Detector:   &stubDetector{scores: affect.Scores{"sadness": 0.1, "joy": 0.6}},
		Extractor:  analytics.NewExtractor(client, 0),
		Parliament: agents.NewParliament(policy),
	}
}

func TestBuildPipeline(t *testing.T) {
	g, err := BuildPipeline(testDeps(t, &routingClient{}))
	require.NoError(t, err)
	assert.Equal(t, 7, g.Len())
}

func TestHandleCalmQuery(t *testing.T) {
	client := &routingClient{
		tutorReply:   "Photosynthesis happens in the chloroplasts.",
		coachReply:   "You're asking exactly the right questions.",
		criticReply:  "No safety concerns detected.",
		featuresJSON: `{"sadness": 0.1, "joy": 0.6}`,
	}
	esc := &stubEscalation{status: "ESCALATED: test"}

	orch, err := New(testDeps(t, client), esc, nil, Config{})
	require.NoError(t, err)

	resp, err := orch.Handle(context.Background(), &datatypes.TutorRequest{Message: "how does photosynthesis work?"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Id)
	assert.Equal(t, "Photosynthesis happens in the chloroplasts.\n\nYou're asking exactly the right questions.", resp.Response)
	assert.Equal(t, analytics.LevelLow, resp.RiskLevel)
	assert.Equal(t, safety.StatusOK, resp.Escalation)
	assert.False(t, esc.called, "low-risk runs never touch the escalation service")
	assert.False(t, resp.Crisis)
	assert.False(t, resp.Degraded)
	assert.Contains(t, resp.RagContext, "Photosynthesis converts light energy")
	assert.Contains(t, resp.RagContext, "photosynthesis -[produces]-> glucose")
	assert.InDelta(t, 0.6, resp.Emotion["joy"], 1e-9)
}

func TestHandleCrisisQuery(t *testing.T) {
	client := &routingClient{
		tutorReply:   "Here is the study plan you asked about.",
		coachReply:   "One step at a time.",
		criticReply:  "CRISIS: the message contains self-harm ideation and needs urgent attention.",
		featuresJSON: `{"self_harm_risk": 0.9, "hopelessness": 0.8, "sadness": 0.9, "fear": 0.5}`,
	}
	esc := &stubEscalation{status: "ESCALATED: counselor notified"}

	orch, err := New(testDeps(t, client), esc, nil, Config{})
	require.NoError(t, err)

	resp, err := orch.Handle(context.Background(), &datatypes.TutorRequest{Message: "I can't do this anymore"})
	require.NoError(t, err)

	assert.True(t, resp.Crisis)
	assert.Equal(t, agents.CrisisGuidance, resp.Response)
	assert.Equal(t, analytics.LevelHigh, resp.RiskLevel)
	assert.True(t, esc.called)
	assert.Equal(t, resp.RiskScore, esc.score)
	assert.Equal(t, "ESCALATED: counselor notified", resp.Escalation)
}

func TestHandleEscalationFailure(t *testing.T) {
	client := &routingClient{
		criticReply:  "All clear.",
		featuresJSON: `{"self_harm_risk": 0.95, "hopelessness": 0.9, "urgency": 0.9}`,
	}
	esc := &stubEscalation{err: errors.New("pager service down")}

	orch, err := New(testDeps(t, client), esc, nil, Config{})
	require.NoError(t, err)

	resp, err := orch.Handle(context.Background(), &datatypes.TutorRequest{Message: "please help"})
	require.NoError(t, err, "a failed escalation is surfaced in the payload, not as a request error")
	assert.Equal(t, safety.StatusFailed, resp.Escalation)
	assert.Equal(t, analytics.LevelHigh, resp.RiskLevel)
}

func TestHandleAdvisorOutageDegrades(t *testing.T) {
	client := &routingClient{
		advisorErr:   errors.New("model backend down"),
		featuresJSON: `{"sadness": 0.2}`,
	}
	orch, err := New(testDeps(t, client), &stubEscalation{}, nil, Config{})
	require.NoError(t, err)

	resp, err := orch.Handle(context.Background(), &datatypes.TutorRequest{Message: "what is osmosis?"})
	require.NoError(t, err, "advisor failures are soft; the risk path still completes")

	assert.True(t, resp.Degraded)
	assert.Equal(t, agents.FallbackResponse, resp.Response)
	assert.Equal(t, analytics.LevelLow, resp.RiskLevel)
	assert.Equal(t, safety.StatusOK, resp.Escalation)
}

func TestHandleRiskPathFailureIsHard(t *testing.T) {
	client := &routingClient{
		tutorReply:   "an answer",
		extractorErr: errors.New("model backend down"),
	}
	orch, err := New(testDeps(t, client), &stubEscalation{}, nil, Config{})
	require.NoError(t, err)

	_, err = orch.Handle(context.Background(), &datatypes.TutorRequest{Message: "hello"})
	require.Error(t, err, "no response is fabricated without a risk assessment")
	assert.Contains(t, err.Error(), "pipeline run failed")
}

func TestHandleUnparseableFeaturesDegrade(t *testing.T) {
	client := &routingClient{
		tutorReply:   "an answer",
		criticReply:  "All clear.",
		featuresJSON: "I will not produce JSON today.",
	}
	orch, err := New(testDeps(t, client), &stubEscalation{}, nil, Config{})
	require.NoError(t, err)

	resp, err := orch.Handle(context.Background(), &datatypes.TutorRequest{Message: "hello"})
	require.NoError(t, err)
	assert.True(t, resp.Degraded, "a zeroed feature record is flagged in the audit payload")
	assert.Equal(t, analytics.LevelLow, resp.RiskLevel)
}

func TestHandleKeepsCallerID(t *testing.T) {
	client := &routingClient{
		tutorReply:   "answer",
		featuresJSON: `{}`,
	}
	orch, err := New(testDeps(t, client), &stubEscalation{}, nil, Config{})
	require.NoError(t, err)

	resp, err := orch.Handle(context.Background(), &datatypes.TutorRequest{Id: "req-42", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "req-42", resp.Id)
}

func TestThresholdDefault(t *testing.T) {
	orch, err := New(testDeps(t, &routingClient{}), nil, nil, Config{})
	require.NoError(t, err)
	assert.InDelta(t, safety.DefaultRiskThreshold, orch.Threshold(), 1e-9)

	orch, err = New(testDeps(t, &routingClient{}), nil, nil, Config{RiskThreshold: 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, orch.Threshold(), 1e-9)
}
