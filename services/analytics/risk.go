// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analytics

import "math"

// Risk levels, ordered by severity.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// Scoring weights. Self-harm dominates; the affect pair shares one
// weight split 55/45 between sadness and fear.
const (
	weightSelfHarm     = 0.78
	weightHopelessness = 0.22
	weightUrgency      = 0.18
	weightOverwhelm    = 0.14
	weightPanic        = 0.14
	weightAffectPair   = 0.18
	weightImpairment   = 0.10
	weightIntensity    = 0.08

	// Uncertainty bump when the run had no grounding context.
	noContextBump = 0.02

	// Level thresholds. selfHarmOverride forces high regardless of the
	// aggregate score.
	selfHarmOverride = 0.65
	highThreshold    = 0.75
	mediumThreshold  = 0.45
)

// RiskResult is the scored assessment for one exchange. Reasons is the
// full feature record; Degraded marks runs where the judged features
// fell back to zero.
type RiskResult struct {
	Score    float64            `json:"score"`
	Level    string             `json:"level"`
	Reasons  map[string]float64 `json:"reasons"`
	Degraded bool               `json:"degraded,omitempty"`
}

// ScoreRisk computes the weighted risk score and level for a feature
// record. Pure function: the same record always yields the same
// result, and the score stays in [0,1] for any in-range input.
func ScoreRisk(f *ExtractedFeatures) RiskResult {
	score := 0.0
	score += weightSelfHarm * f.SelfHarmRisk
	score += weightHopelessness * f.Hopelessness
	score += weightUrgency * f.Urgency
	score += weightOverwhelm * f.Overwhelm
	score += weightPanic * f.Panic
	score += weightAffectPair * (0.55*f.Sadness + 0.45*f.Fear)
	score += weightImpairment * f.FunctionalImpairment
	score += weightIntensity * f.Intensity

	if f.RagEmpty > 0.5 {
		score += noContextBump
	}

	score = math.Max(0, math.Min(1, score))

	return RiskResult{
		Score:   score,
		Level:   riskLevel(score, f),
		Reasons: f.ToMap(),
	}
}

// riskLevel applies the precedence rules: the self-harm override wins,
// then the score thresholds.
func riskLevel(score float64, f *ExtractedFeatures) string {
	if f.SelfHarmRisk >= selfHarmOverride {
		return LevelHigh
	}
	if score >= highThreshold {
		return LevelHigh
	}
	if score >= mediumThreshold {
		return LevelMedium
	}
	return LevelLow
}
