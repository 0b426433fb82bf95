// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agents holds the three advisors that answer a student in
// parallel — tutor, coach, critic — and the parliament that joins
// their outputs into the final response.
package agents

import (
	"context"
	"fmt"

	"github.com/EduGuardAI/EduGuard/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var advisorTracer = otel.Tracer("eduguard.agents")

// Advisor is one generation role: a fixed system instruction, a fixed
// sampling temperature, and a prompt shape over the shared retrieval
// context.
type Advisor struct {
	Name        string
	System      string
	Temperature float32
	buildPrompt func(userInput, ragContext string) string
}

// Tutor answers the academic question, grounded in retrieval.
var Tutor = Advisor{
	Name:        "tutor",
	System:      "You are an academic tutor. Be precise, structured, and grounded in retrieved context.",
	Temperature: 0.4,
	buildPrompt: func(userInput, ragContext string) string {
		return "You MUST use the following retrieved knowledge as your primary grounding.\n" +
			"If the knowledge is insufficient, say what is missing and ask one clarifying question.\n\n" +
			ragContext + "\n\n" +
			"Student question:\n" + userInput
	},
}

// Coach responds to the student's emotional framing.
var Coach = Advisor{
	Name:        "coach",
	System:      "You are an empathetic motivational coach. Support autonomy, competence, and relatedness.",
	Temperature: 0.7,
	buildPrompt: func(userInput, ragContext string) string {
		return "You are a motivational coach grounded in retrieved knowledge.\n" +
			"Use supportive, autonomy-supportive language (SDT). Avoid medical claims.\n\n" +
			ragContext + "\n\n" +
			"Student message:\n" + userInput
	},
}

// Critic assesses the message for safety and ethics risks.
var Critic = Advisor{
	Name:        "critic",
	System:      "You are a safety and ethics monitor for an educational tutor.",
	Temperature: 0.2,
	buildPrompt: func(userInput, ragContext string) string {
		return "Check safety and ethics risks. If user suggests self-harm, crisis, or severe distress, flag it clearly.\n" +
			"Use the retrieved context only as reference.\n\n" +
			ragContext + "\n\n" +
			"User message:\n" + userInput
	},
}

// Advise runs the advisor's generation against client.
func (a Advisor) Advise(ctx context.Context, client llm.Client, userInput, ragContext string) (string, error) {
	ctx, span := advisorTracer.Start(ctx, "Advisor.Advise")
	defer span.End()
	span.SetAttributes(
		attribute.String("advisor.name", a.Name),
		attribute.Float64("advisor.temperature", float64(a.Temperature)),
	)

	out, err := client.Chat(ctx, a.System, a.buildPrompt(userInput, ragContext), a.Temperature)
	if err != nil {
		return "", fmt.Errorf("%s advisor failed: %w", a.Name, err)
	}
	return out, nil
}
