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
)

// HybridMemory combines the vector store and the knowledge graph into
// one Provider. Either half may be nil; the missing half simply
// contributes no evidence. It also implements ConceptPicker over the
// graph's node inventory.
type HybridMemory struct {
	vs VectorSearcher
	kg KnowledgeGraph
}

var (
	_ Provider      = (*HybridMemory)(nil)
	_ ConceptPicker = (*HybridMemory)(nil)
)

// NewHybridMemory wraps the two retrieval backends.
func NewHybridMemory(vs VectorSearcher, kg KnowledgeGraph) *HybridMemory {
	return &HybridMemory{vs: vs, kg: kg}
}

// Retrieve implements Provider. The semantic search failing is an
// error; an empty concept skips graph traversal entirely, and a graph
// failure degrades to semantic-only evidence.
func (m *HybridMemory) Retrieve(ctx context.Context, query, concept string, k, depth int) (*Evidence, error) {
	evidence := &Evidence{}

	if m.vs != nil {
		semantic, err := m.vs.Search(ctx, query, k)
		if err != nil {
			return nil, fmt.Errorf("vector search failed: %w", err)
		}
		evidence.Semantic = semantic
	}

	if m.kg != nil && concept != "" {
		structured, err := m.kg.Query(ctx, concept, depth)
		if err != nil {
			slog.Warn("Knowledge graph query failed, continuing with semantic evidence only",
				"concept", concept, "error", err)
		} else {
			evidence.Structured = structured
		}
	}
	return evidence, nil
}

// PickConcepts implements ConceptPicker by ranking the graph's node
// names against the query. No graph means no seeds, never an error.
func (m *HybridMemory) PickConcepts(ctx context.Context, query string, topN int) ([]string, error) {
	if m.kg == nil {
		return nil, nil
	}
	candidates, err := m.kg.Nodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list graph concepts: %w", err)
	}
	return RankConcepts(query, candidates, topN), nil
}
