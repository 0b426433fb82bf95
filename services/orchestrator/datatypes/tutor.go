// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the request and response shapes of the
// tutoring surface.
package datatypes

import (
	"time"

	"github.com/google/uuid"
)

// TutorRequest is one student query.
type TutorRequest struct {
	Id        string `json:"id,omitempty"`
	Message   string `json:"message" binding:"required,min=1,max=8000"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// EnsureDefaults populates the request ID and timestamp when the
// caller omitted them.
func (r *TutorRequest) EnsureDefaults() {
	if r.Id == "" {
		r.Id = uuid.New().String()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
}

// TutorResponse is the full answer payload: the final text plus the
// audit trail (emotion tags, risk assessment, escalation status and
// the retrieval context the answer was grounded in).
type TutorResponse struct {
	Id         string             `json:"id"`
	Response   string             `json:"response"`
	Emotion    map[string]float64 `json:"emotion"`
	RiskScore  float64            `json:"risk_score"`
	RiskLevel  string             `json:"risk_level"`
	Escalation string             `json:"escalation"`
	RagContext string             `json:"rag_context"`

	// Crisis marks responses where safety guidance replaced advisor
	// content. Degraded marks runs where a non-critical node failed
	// softly or the feature extraction fell back to zeros.
	Crisis   bool `json:"crisis,omitempty"`
	Degraded bool `json:"degraded,omitempty"`
}
