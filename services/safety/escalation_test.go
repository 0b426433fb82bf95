// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEscalation struct {
	status string
	err    error
	calls  int
}

func (s *stubEscalation) Check(ctx context.Context, riskScore float64) (string, error) {
	s.calls++
	return s.status, s.err
}

func TestGateBelowThresholdIsOK(t *testing.T) {
	svc := &stubEscalation{status: "ESCALATED"}
	g := NewGate(svc, 0.7)

	status, err := g.Decide(context.Background(), 0.5)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Zero(t, svc.calls, "external check is not invoked below the threshold")
}

func TestGateThresholdIsExclusive(t *testing.T) {
	svc := &stubEscalation{status: "ESCALATED"}
	g := NewGate(svc, 0.7)

	status, err := g.Decide(context.Background(), 0.7)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status, "score equal to the threshold does not escalate")
	assert.Zero(t, svc.calls)
}

func TestGateAboveThresholdEscalates(t *testing.T) {
	svc := &stubEscalation{status: "ESCALATED: on-call notified"}
	g := NewGate(svc, 0.7)

	status, err := g.Decide(context.Background(), 0.71)
	require.NoError(t, err)
	assert.Equal(t, "ESCALATED: on-call notified", status)
	assert.Equal(t, 1, svc.calls)
}

func TestGateSurfacesServiceFailure(t *testing.T) {
	svc := &stubEscalation{err: errors.New("channel unreachable")}
	g := NewGate(svc, 0.5)

	status, err := g.Decide(context.Background(), 0.9)
	require.Error(t, err, "a failed escalation is never reported as success")
	assert.Equal(t, StatusFailed, status)
}

func TestNewGateDefaults(t *testing.T) {
	g := NewGate(nil, 1.5)
	assert.Equal(t, DefaultRiskThreshold, g.Threshold())

	status, err := g.Decide(context.Background(), 0.9)
	require.NoError(t, err, "nil service falls back to the logging channel")
	assert.Contains(t, status, "ESCALATED")
}

func TestHTTPEscalationCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req escalationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 0.9, req.RiskScore)
		json.NewEncoder(w).Encode(escalationResponse{Status: "ESCALATED: ticket opened"})
	}))
	defer server.Close()

	e := &HTTPEscalation{httpClient: server.Client(), url: server.URL}
	status, err := e.Check(context.Background(), 0.9)
	require.NoError(t, err)
	assert.Equal(t, "ESCALATED: ticket opened", status)
}

func TestHTTPEscalationErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			},
		},
		{
			name: "empty status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(escalationResponse{})
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			e := &HTTPEscalation{httpClient: server.Client(), url: server.URL}
			_, err := e.Check(context.Background(), 0.8)
			require.Error(t, err)
		})
	}
}
