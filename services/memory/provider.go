// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package memory provides the retrieval layer for the tutoring pipeline.
//
// It exposes a small Provider interface over two backing stores — a
// Weaviate vector index for semantic notes and a knowledge graph for
// structured relations — plus the concept seed selector and the budgeted
// context builder that turn retrieval output into a grounded prompt
// block.
package memory

import "context"

// Evidence is the raw output of one retrieval call: ordered semantic
// snippets from the vector store and ordered structured snippets from
// the knowledge graph. Either list may be empty.
type Evidence struct {
	Semantic   []string
	Structured []string
}

// Provider retrieves grounding evidence for a query. concept may be
// empty, in which case implementations skip graph traversal. k bounds
// the semantic result count; depth bounds graph traversal.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	Retrieve(ctx context.Context, query, concept string, k, depth int) (*Evidence, error)
}

// ConceptPicker selects graph anchor concepts for a query. Providers
// without a usable concept inventory use NoopConceptPicker; callers
// never probe for the capability at request time.
type ConceptPicker interface {
	PickConcepts(ctx context.Context, query string, topN int) ([]string, error)
}

// NoopConceptPicker is the picker for providers with no concept
// inventory. It always returns nothing, which downstream code treats
// as "retrieve without a seed".
type NoopConceptPicker struct{}

func (NoopConceptPicker) PickConcepts(ctx context.Context, query string, topN int) ([]string, error) {
	return nil, nil
}

// VectorSearcher is the semantic half of a hybrid provider.
type VectorSearcher interface {
	Search(ctx context.Context, query string, k int) ([]string, error)
}

// KnowledgeGraph is the structured half of a hybrid provider. Nodes
// lists the concept inventory used for seed selection.
type KnowledgeGraph interface {
	Query(ctx context.Context, concept string, depth int) ([]string, error)
	Nodes(ctx context.Context) ([]string, error)
}
