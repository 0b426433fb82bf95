// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

import (
	"strings"

	"github.com/EduGuardAI/EduGuard/services/safety"
)

// CrisisGuidance replaces the tutoring answer whenever the critic
// signals a crisis. Safety precedence is the one hard contract of the
// parliament: this text is never mixed with advisor output.
const CrisisGuidance = "I'm really glad you reached out. It sounds like you are going through " +
	"something serious, and you deserve support from a real person. Please consider talking to " +
	"someone you trust, a school counselor, or a crisis line right now. I can stay with you here, " +
	"but a human can help in ways I cannot."

// FallbackResponse is emitted when every advisor failed softly, so
// the surface never returns an empty answer.
const FallbackResponse = "I couldn't put together a full answer just now. Could you try asking again in a moment?"

// Parliament joins the advisor outputs into the final response.
type Parliament struct {
	policy *safety.CrisisPolicy
}

// NewParliament wires the crisis policy used for the safety check.
func NewParliament(policy *safety.CrisisPolicy) *Parliament {
	return &Parliament{policy: policy}
}

// Aggregate builds the final response. When the critic's assessment
// matches the crisis policy, the crisis guidance replaces all advisor
// content; otherwise the tutor and coach responses are concatenated,
// skipping blanks.
func (p *Parliament) Aggregate(tutorResp, coachResp, criticResp string) (string, bool) {
	if p.policy != nil && p.policy.IsCrisis(criticResp) {
		return CrisisGuidance, true
	}

	var parts []string
	if t := strings.TrimSpace(tutorResp); t != "" {
		parts = append(parts, t)
	}
	if c := strings.TrimSpace(coachResp); c != "" {
		parts = append(parts, c)
	}
	if len(parts) == 0 {
		return FallbackResponse, false
	}
	return strings.Join(parts, "\n\n"), false
}
