// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analytics turns one tutoring exchange into a bounded risk
// assessment: a model-judged feature record and a deterministic score
// over it. No keyword lists; the only text-derived inputs are model
// judgments and length statistics.
package analytics

import (
	"math"
	"strconv"
)

// ExtractedFeatures is the per-request feature record. Every field is
// in [0,1]; the model-judged fields default to 0 when the extractor
// degrades.
type ExtractedFeatures struct {
	Sadness float64 `json:"sadness"`
	Fear    float64 `json:"fear"`
	Anger   float64 `json:"anger"`
	Joy     float64 `json:"joy"`

	SelfHarmRisk         float64 `json:"self_harm_risk"`
	Hopelessness         float64 `json:"hopelessness"`
	Overwhelm            float64 `json:"overwhelm"`
	Panic                float64 `json:"panic"`
	FunctionalImpairment float64 `json:"functional_impairment"`

	Urgency          float64 `json:"urgency"`
	Intensity        float64 `json:"intensity"`
	NegationOrDenial float64 `json:"negation_or_denial"`

	// Context-quality features, computed locally rather than judged.
	RagEmpty    float64 `json:"rag_empty"`
	RagLenNorm  float64 `json:"rag_len_norm"`
	UserLenNorm float64 `json:"user_len_norm"`
}

// ToMap flattens the record for risk-reason reporting.
func (f *ExtractedFeatures) ToMap() map[string]float64 {
	return map[string]float64{
		"sadness":               f.Sadness,
		"fear":                  f.Fear,
		"anger":                 f.Anger,
		"joy":                   f.Joy,
		"self_harm_risk":        f.SelfHarmRisk,
		"hopelessness":          f.Hopelessness,
		"overwhelm":             f.Overwhelm,
		"panic":                 f.Panic,
		"functional_impairment": f.FunctionalImpairment,
		"urgency":               f.Urgency,
		"intensity":             f.Intensity,
		"negation_or_denial":    f.NegationOrDenial,
		"rag_empty":             f.RagEmpty,
		"rag_len_norm":          f.RagLenNorm,
		"user_len_norm":         f.UserLenNorm,
	}
}

// clamp01 coerces a decoded JSON value to a float in [0,1]. Strings
// that parse as numbers are accepted; anything else, including NaN,
// becomes 0.
func clamp01(v any) float64 {
	var x float64
	switch t := v.(type) {
	case float64:
		x = t
	case int:
		x = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		x = parsed
	default:
		return 0
	}
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x))
}

// lengthNorm maps a text length onto [0,1] with log1p scaling; 2000
// characters saturates the scale.
func lengthNorm(text string) float64 {
	n := float64(len(text))
	return math.Min(1, math.Log1p(n)/math.Log1p(2000))
}
