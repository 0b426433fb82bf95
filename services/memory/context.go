// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var contextTracer = otel.Tracer("eduguard.memory.context")

// Default builder limits. BudgetChars caps the rendered block;
// truncation backs up to a line boundary so a bullet is never cut
// mid-sentence.
const (
	DefaultK           = 6
	DefaultDepth       = 2
	DefaultBudgetChars = 2200
	DefaultSeedTopN    = 1

	// TruncationMarker closes a block that was cut at the budget.
	TruncationMarker = "...(truncated)"
)

// EvidencePack is the structured record of what one retrieval produced.
// It travels alongside the rendered context so downstream consumers
// (risk features, auditing) can inspect what grounded the answer
// without re-parsing prompt text.
type EvidencePack struct {
	Query       string   `json:"query"`
	ConceptSeed string   `json:"concept_seed,omitempty"`
	VectorHits  []string `json:"vector_hits"`
	KGEvidence  []string `json:"kg_evidence"`
}

// Empty reports whether retrieval produced nothing usable.
func (p *EvidencePack) Empty() bool {
	return len(p.VectorHits) == 0 && len(p.KGEvidence) == 0
}

// ContextBuilder assembles a budgeted evidence block from a Provider.
// Zero-valued limits fall back to the package defaults.
type ContextBuilder struct {
	Provider Provider
	Picker   ConceptPicker

	K           int
	Depth       int
	BudgetChars int
	SeedTopN    int
}

// NewContextBuilder returns a builder over provider with default
// limits. picker may be nil; a NoopConceptPicker is substituted.
func NewContextBuilder(provider Provider, picker ConceptPicker) *ContextBuilder {
	if picker == nil {
		picker = NoopConceptPicker{}
	}
	return &ContextBuilder{
		Provider:    provider,
		Picker:      picker,
		K:           DefaultK,
		Depth:       DefaultDepth,
		BudgetChars: DefaultBudgetChars,
		SeedTopN:    DefaultSeedTopN,
	}
}

// Build retrieves evidence for query and renders the context block.
// A failing concept picker degrades to seedless retrieval; a failing
// Provider is a hard error for the caller to classify.
func (b *ContextBuilder) Build(ctx context.Context, query string) (string, *EvidencePack, error) {
	ctx, span := contextTracer.Start(ctx, "ContextBuilder.Build")
	defer span.End()

	if b.Provider == nil {
		return "", nil, fmt.Errorf("context builder has no memory provider")
	}
	k, depth, budget, topN := b.limits()
	query = normalize(query)

	concept := ""
	picker := b.Picker
	if picker == nil {
		picker = NoopConceptPicker{}
	}
	concepts, err := picker.PickConcepts(ctx, query, topN)
	if err != nil {
		// Seed selection is best-effort; retrieval proceeds without one.
		slog.Warn("Concept seed selection failed, retrieving without a seed", "error", err)
		span.AddEvent("concept_pick_failed")
	} else if len(concepts) > 0 {
		concept = concepts[0]
	}
	span.SetAttributes(
		attribute.String("memory.concept_seed", concept),
		attribute.Int("memory.k", k),
		attribute.Int("memory.depth", depth),
	)

	evidence, err := b.Provider.Retrieve(ctx, query, concept, k, depth)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return "", nil, fmt.Errorf("memory retrieval failed: %w", err)
	}

	pack := &EvidencePack{
		Query:       query,
		ConceptSeed: concept,
		VectorHits:  cleanSnippets(evidence.Semantic),
		KGEvidence:  cleanSnippets(evidence.Structured),
	}
	span.SetAttributes(
		attribute.Int("memory.vector_hits", len(pack.VectorHits)),
		attribute.Int("memory.kg_evidence", len(pack.KGEvidence)),
	)

	return renderContext(pack, budget), pack, nil
}

func (b *ContextBuilder) limits() (k, depth, budget, topN int) {
	k, depth, budget, topN = b.K, b.Depth, b.BudgetChars, b.SeedTopN
	if k <= 0 {
		k = DefaultK
	}
	if depth <= 0 {
		depth = DefaultDepth
	}
	if budget <= 0 {
		budget = DefaultBudgetChars
	}
	if topN <= 0 {
		topN = DefaultSeedTopN
	}
	return k, depth, budget, topN
}

// cleanSnippets normalizes whitespace and drops blank entries, keeping
// the provider's order.
func cleanSnippets(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// renderContext lays the pack out as prompt text and enforces the
// character budget.
func renderContext(pack *EvidencePack, budget int) string {
	var lines []string
	lines = append(lines, "You are given retrieved evidence to ground your answer.")
	lines = append(lines, "Use it as primary support; if insufficient, ask one clarifying question.\n")

	if pack.ConceptSeed != "" {
		lines = append(lines, fmt.Sprintf("[KG seed concept] %s\n", pack.ConceptSeed))
	}
	if len(pack.VectorHits) > 0 {
		lines = append(lines, "## Retrieved Notes (Vector Store)")
		for _, hit := range pack.VectorHits {
			lines = append(lines, "- "+hit)
		}
	}
	if len(pack.KGEvidence) > 0 {
		lines = append(lines, "\n## Retrieved Relations (Knowledge Graph)")
		for _, rel := range pack.KGEvidence {
			lines = append(lines, "- "+rel)
		}
	}

	rendered := strings.TrimSpace(strings.Join(lines, "\n"))
	if len(rendered) <= budget {
		return rendered
	}
	cut := rendered[:budget]
	if i := strings.LastIndex(cut, "\n"); i >= 0 {
		cut = cut[:i]
	}
	return cut + "\n" + TruncationMarker
}
