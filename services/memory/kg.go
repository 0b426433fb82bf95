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
	"sort"
	"sync"
)

// TripletGraph is the default in-memory knowledge graph: directed
// edges labeled with a relation, loaded at startup from the knowledge
// base. It implements KnowledgeGraph.
type TripletGraph struct {
	mu    sync.RWMutex
	edges map[string][]tripletEdge
	nodes map[string]struct{}
	order []string
}

type tripletEdge struct {
	relation string
	tail     string
}

// NewTripletGraph returns an empty graph.
func NewTripletGraph() *TripletGraph {
	return &TripletGraph{
		edges: make(map[string][]tripletEdge),
		nodes: make(map[string]struct{}),
	}
}

// AddTriplet records head -[relation]-> tail.
func (g *TripletGraph) AddTriplet(head, relation, tail string) {
	if head == "" || tail == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges[head] = append(g.edges[head], tripletEdge{relation: relation, tail: tail})
	for _, n := range []string{head, tail} {
		if _, ok := g.nodes[n]; !ok {
			g.nodes[n] = struct{}{}
			g.order = append(g.order, n)
		}
	}
}

// Query walks outgoing edges from concept up to depth hops and returns
// one snippet per traversed edge, in breadth-first order. Neighbors of
// a node are visited in sorted order so output is deterministic. An
// unknown concept yields no results, not an error.
func (g *TripletGraph) Query(ctx context.Context, concept string, depth int) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[concept]; !ok || depth <= 0 {
		return nil, nil
	}

	type frontierNode struct {
		name string
		hops int
	}
	visited := map[string]struct{}{concept: {}}
	queue := []frontierNode{{name: concept, hops: 0}}
	var out []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.hops >= depth {
			continue
		}
		edges := append([]tripletEdge(nil), g.edges[cur.name]...)
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].tail != edges[j].tail {
				return edges[i].tail < edges[j].tail
			}
			return edges[i].relation < edges[j].relation
		})
		for _, e := range edges {
			out = append(out, fmt.Sprintf("%s -[%s]-> %s", cur.name, e.relation, e.tail))
			if _, seen := visited[e.tail]; !seen {
				visited[e.tail] = struct{}{}
				queue = append(queue, frontierNode{name: e.tail, hops: cur.hops + 1})
			}
		}
	}
	return out, nil
}

// Nodes lists every known concept in insertion order. This is the
// candidate inventory for seed selection.
func (g *TripletGraph) Nodes(ctx context.Context) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...), nil
}
