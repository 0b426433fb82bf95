// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/EduGuardAI/EduGuard/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var extractorTracer = otel.Tracer("eduguard.analytics.extractor")

// DefaultMaxRetries bounds the re-ask loop when the model ignores the
// JSON-only instruction.
const DefaultMaxRetries = 2

const extractorSystemPrompt = "You are a strict feature extractor for an educational tutor safety system.\n" +
	"Task: Given a student's message, output ONLY valid JSON with numeric fields in [0,1].\n" +
	"Do not output any other text.\n" +
	"Do not diagnose; only estimate risk indicators.\n"

// featureSchema describes the twelve model-judged keys. It is shown to
// the model verbatim inside the user prompt.
const featureSchema = `{
  "sadness": "float 0..1",
  "fear": "float 0..1",
  "anger": "float 0..1",
  "joy": "float 0..1",
  "self_harm_risk": "float 0..1 (signals of self-harm or suicidal ideation, if any)",
  "hopelessness": "float 0..1",
  "overwhelm": "float 0..1",
  "panic": "float 0..1",
  "functional_impairment": "float 0..1 (sleep/eat/focus disruption, inability to function)",
  "urgency": "float 0..1 (how urgent it sounds to seek support)",
  "intensity": "float 0..1 (emotional intensity)",
  "negation_or_denial": "float 0..1 (explicitly denies self-harm intent)"
}`

// strictRetryPrefix is prepended to the user prompt on each retry.
const strictRetryPrefix = "IMPORTANT: Output ONLY JSON. No markdown, no explanation.\n"

// Extractor asks the model to judge a student message against the
// feature schema and assembles the bounded record. Extraction runs at
// temperature 0.
type Extractor struct {
	client     llm.Client
	maxRetries int
}

// NewExtractor wraps the model client. maxRetries < 0 falls back to
// the default.
func NewExtractor(client llm.Client, maxRetries int) *Extractor {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Extractor{client: client, maxRetries: maxRetries}
}

// Extract judges userInput and fills the context-quality fields from
// ragContext. The degraded flag is set when the model's output could
// not be parsed and the judged fields fell back to zero; err is
// non-nil only when the model call itself failed.
func (e *Extractor) Extract(ctx context.Context, userInput, ragContext string) (*ExtractedFeatures, bool, error) {
	ctx, span := extractorTracer.Start(ctx, "Extractor.Extract")
	defer span.End()

	userInput = strings.TrimSpace(userInput)
	ragContext = strings.TrimSpace(ragContext)

	feats := &ExtractedFeatures{
		UserLenNorm: lengthNorm(userInput),
		RagLenNorm:  lengthNorm(ragContext),
	}
	if ragContext == "" {
		feats.RagEmpty = 1
	}

	userPrompt := "Return JSON with the following keys and meanings:\n" +
		featureSchema + "\n\n" +
		"Student message:\n" + userInput + "\n"

	raw, err := e.callWithRetries(ctx, userPrompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "feature extraction model call failed")
		return feats, true, fmt.Errorf("feature extraction model call failed: %w", err)
	}

	data, parsed := salvageJSON(raw)
	if !parsed {
		slog.Warn("Feature extraction output was not parseable JSON, falling back to zero features",
			"raw_len", len(raw))
		span.SetAttributes(attribute.Bool("extract.degraded", true))
		return feats, true, nil
	}

	feats.Sadness = clamp01(data["sadness"])
	feats.Fear = clamp01(data["fear"])
	feats.Anger = clamp01(data["anger"])
	feats.Joy = clamp01(data["joy"])
	feats.SelfHarmRisk = clamp01(data["self_harm_risk"])
	feats.Hopelessness = clamp01(data["hopelessness"])
	feats.Overwhelm = clamp01(data["overwhelm"])
	feats.Panic = clamp01(data["panic"])
	feats.FunctionalImpairment = clamp01(data["functional_impairment"])
	feats.Urgency = clamp01(data["urgency"])
	feats.Intensity = clamp01(data["intensity"])
	feats.NegationOrDenial = clamp01(data["negation_or_denial"])

	// Safety tempering: a flagged risk paired with a strong explicit
	// denial is reduced, never zeroed.
	if feats.SelfHarmRisk > 0.6 && feats.NegationOrDenial > 0.7 {
		feats.SelfHarmRisk = math.Max(0.2, feats.SelfHarmRisk*0.5)
	}

	span.SetAttributes(attribute.Float64("extract.self_harm_risk", feats.SelfHarmRisk))
	return feats, false, nil
}

// callWithRetries re-asks with a strengthened instruction until the
// output at least looks like a JSON object. The last answer is
// returned even when the brace check never passed; salvage gets a
// chance at it.
func (e *Extractor) callWithRetries(ctx context.Context, userPrompt string) (string, error) {
	last := ""
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		out, err := e.client.Chat(ctx, extractorSystemPrompt, userPrompt, 0)
		if err != nil {
			return "", err
		}
		last = strings.TrimSpace(out)
		if strings.HasPrefix(last, "{") && strings.HasSuffix(last, "}") {
			return last, nil
		}
		userPrompt = strictRetryPrefix + userPrompt
	}
	return last, nil
}

// salvageJSON parses text as a JSON object, falling back to the
// outermost {...} block when the model wrapped the object in prose.
func salvageJSON(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)

	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err == nil {
		return data, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, false
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &data); err != nil {
		return nil, false
	}
	return data, true
}
