// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/EduGuardAI/EduGuard/services/affect"
	"github.com/EduGuardAI/EduGuard/services/agents"
	"github.com/EduGuardAI/EduGuard/services/analytics"
	"github.com/EduGuardAI/EduGuard/services/memory"
	"github.com/EduGuardAI/EduGuard/services/orchestrator"
	"github.com/EduGuardAI/EduGuard/services/orchestrator/datatypes"
	"github.com/EduGuardAI/EduGuard/services/safety"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedClient struct{ reply string }

func (c fixedClient) Chat(ctx context.Context, system, user string, temperature float32) (string, error) {
	if strings.Contains(system, "feature extractor") {
		return `{"sadness": 0.1}`, nil
	}
	return c.reply, nil
}

type emptyProvider struct{}

func (emptyProvider) Retrieve(ctx context.Context, query, concept string, k, depth int) (*memory.Evidence, error) {
	return &memory.Evidence{}, nil
}

func newTestOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	policy, err := safety.NewCrisisPolicy()
	require.NoError(t, err)

	client := fixedClient{reply: "A thoughtful answer."}
	orch, err := orchestrator.New(orchestrator.PipelineDeps{
		LLM:        client,
		Memory:     memory.NewContextBuilder(emptyProvider{}, nil),
		Detector:   affect.NoopDetector{},
		Extractor:  analytics.NewExtractor(client, 0),
		Parliament: agents.NewParliament(policy),
	}, nil, nil, orchestrator.Config{})
	require.NoError(t, err)
	return orch
}

func TestHealthCheck_ReturnsOK(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "ok", response["status"])
}

func TestHandleTutorRequest_Success(t *testing.T) {
	router := gin.New()
	router.POST("/v1/tutor", HandleTutorRequest(newTestOrchestrator(t)))

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"message": "explain cellular respiration"}`)
	req, _ := http.NewRequest("POST", "/v1/tutor", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp datatypes.TutorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Id)
	assert.Contains(t, resp.Response, "A thoughtful answer.")
	assert.Equal(t, analytics.LevelLow, resp.RiskLevel)
	assert.Equal(t, safety.StatusOK, resp.Escalation)
}

func TestHandleTutorRequest_RejectsMissingMessage(t *testing.T) {
	router := gin.New()
	router.POST("/v1/tutor", HandleTutorRequest(newTestOrchestrator(t)))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/tutor", strings.NewReader(`{"id": "x"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request body")
}

func TestHandleTutorRequest_RejectsMalformedJSON(t *testing.T) {
	router := gin.New()
	router.POST("/v1/tutor", HandleTutorRequest(newTestOrchestrator(t)))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/tutor", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
