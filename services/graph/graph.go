// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graph provides the static execution DAG that schedules one
// tutoring request through retrieval, affect tagging, the advisor
// fan-out, aggregation, and risk scoring.
//
// # Design
//
// Nodes declare their read and write field sets up front; the graph is
// validated once at construction and is immutable afterwards. Three
// properties are proven at build time:
//
//  1. The dependency graph is acyclic.
//  2. Any two nodes with no ordering between them have disjoint
//     write-sets, so patches merge by plain union without races.
//  3. Every declared read is supplied by a transitive predecessor's
//     write-set or by an entry field.
//
// Building with an invalid configuration returns a ConfigError; callers
// must treat that as fatal and refuse to serve requests.
//
// # Thread Safety
//
// A Graph is safe for concurrent read access. Each Run gets its own
// State; nothing is shared across runs.
package graph

import (
	"context"
	"sort"
)

// NodeFunc is a unit of work. It receives a read-only snapshot of the
// shared state restricted to the node's declared read-set and returns a
// sparse patch restricted to its declared write-set.
type NodeFunc func(ctx context.Context, state State) (Patch, error)

// Node declares one unit of work and its field contracts.
type Node struct {
	// Name uniquely identifies the node within a graph.
	Name string

	// Reads lists the state fields the node may observe. Fields not
	// listed here are stripped from its snapshot.
	Reads []string

	// Writes lists the state fields the node may produce. Patch keys
	// outside this set are rejected at merge time.
	Writes []string

	// Critical marks the node as part of the safety-assessment path.
	// A critical node's failure aborts the whole run; a non-critical
	// failure is recorded and downstream nodes proceed with the
	// failed node's fields left at their defaults.
	Critical bool

	// Run performs the work. Must be non-nil.
	Run NodeFunc
}

// Edge is a directed dependency: To becomes eligible only after From
// has completed.
type Edge struct {
	From string
	To   string
}

// Graph is an immutable, validated execution DAG.
type Graph struct {
	nodes       []Node // canonical order: sorted by name
	nameToIndex map[string]int

	outgoing [][]int // by canonical index, sorted ascending
	incoming [][]int // by canonical index, sorted ascending
	indeg    []int

	entryFields map[string]bool
}

// New builds and validates a Graph.
//
// entryFields lists the state fields present before any node runs (the
// initiating user input). Validation rejects empty or duplicate node
// names, nil node functions, edges referencing unknown nodes,
// self-loops, duplicate edges, cycles, write-set collisions between
// concurrently-runnable nodes, and reads that no predecessor or entry
// field can satisfy.
func New(nodes []Node, edges []Edge, entryFields []string) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, invalidf("no nodes")
	}

	g := &Graph{
		nameToIndex: make(map[string]int, len(nodes)),
		entryFields: make(map[string]bool, len(entryFields)),
	}
	for _, f := range entryFields {
		g.entryFields[f] = true
	}

	g.nodes = make([]Node, len(nodes))
	copy(g.nodes, nodes)
	sort.Slice(g.nodes, func(i, j int) bool { return g.nodes[i].Name < g.nodes[j].Name })

	for i, n := range g.nodes {
		if n.Name == "" {
			return nil, invalidf("node name is required")
		}
		if n.Run == nil {
			return nil, invalidf("node %q has no run function", n.Name)
		}
		if _, exists := g.nameToIndex[n.Name]; exists {
			return nil, invalidf("duplicate node name: %q", n.Name)
		}
		g.nameToIndex[n.Name] = i
	}

	n := len(g.nodes)
	g.outgoing = make([][]int, n)
	g.incoming = make([][]int, n)
	g.indeg = make([]int, n)

	seen := make(map[[2]int]bool, len(edges))
	for _, e := range edges {
		from, ok := g.nameToIndex[e.From]
		if !ok {
			return nil, invalidf("edge references unknown node: %q", e.From)
		}
		to, ok := g.nameToIndex[e.To]
		if !ok {
			return nil, invalidf("edge references unknown node: %q", e.To)
		}
		if from == to {
			return nil, invalidf("self-loop on node %q", e.From)
		}
		key := [2]int{from, to}
		if seen[key] {
			return nil, invalidf("duplicate edge %q -> %q", e.From, e.To)
		}
		seen[key] = true
		g.outgoing[from] = append(g.outgoing[from], to)
		g.incoming[to] = append(g.incoming[to], from)
		g.indeg[to]++
	}
	for i := range g.outgoing {
		sort.Ints(g.outgoing[i])
		sort.Ints(g.incoming[i])
	}

	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}

	reach := g.reachability()

	if err := g.validateWriteSets(reach); err != nil {
		return nil, err
	}
	if err := g.validateReadSets(reach); err != nil {
		return nil, err
	}

	return g, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// validateAcyclic proves the graph has no cycles using Kahn's
// algorithm; on failure it extracts one deterministic cycle witness
// for the error message.
func (g *Graph) validateAcyclic() error {
	indeg := make([]int, len(g.indeg))
	copy(indeg, g.indeg)

	queue := make([]int, 0, len(indeg))
	for i := range indeg {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}

	visited := 0
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		visited++
		for _, v := range g.outgoing[u] {
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
	if visited == len(g.nodes) {
		return nil
	}
	return cycleError(g.findCycle())
}

// findCycle runs a DFS over canonical indices and returns one cycle
// path as node names.
func (g *Graph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(g.nodes))
	parent := make([]int, len(g.nodes))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range g.outgoing[u] {
			if color[v] == white {
				parent[v] = u
				if dfs(v) {
					return true
				}
				continue
			}
			if color[v] == gray {
				cycle = append(cycle, v)
				for cur := u; cur != -1 && cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range g.nodes {
		if color[i] == white && dfs(i) {
			break
		}
	}

	out := make([]string, 0, len(cycle))
	for i := len(cycle) - 1; i >= 0; i-- {
		out = append(out, g.nodes[cycle[i]].Name)
	}
	return out
}

// reachability computes the full ordering relation: reach[i][j] is true
// when a path exists from i to j. Graphs here are small (tens of
// nodes), so the quadratic matrix is the simplest correct structure.
func (g *Graph) reachability() [][]bool {
	n := len(g.nodes)
	reach := make([][]bool, n)
	for i := range reach {
		reach[i] = make([]bool, n)
		stack := append([]int(nil), g.outgoing[i]...)
		for len(stack) > 0 {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if reach[i][u] {
				continue
			}
			reach[i][u] = true
			stack = append(stack, g.outgoing[u]...)
		}
	}
	return reach
}

// validateWriteSets rejects overlapping write-sets between any two
// nodes with no path between them. Ordered nodes sharing a write field
// are also rejected: fields are write-once per run, so a second writer
// can never be legal.
func (g *Graph) validateWriteSets(reach [][]bool) error {
	writers := make(map[string]int)
	for i, node := range g.nodes {
		for _, f := range node.Writes {
			if g.entryFields[f] {
				return &ConfigError{Kind: ErrWriteConflict,
					Msg: "node " + node.Name + " writes entry field " + f}
			}
			if j, dup := writers[f]; dup {
				other := g.nodes[j].Name
				if !reach[i][j] && !reach[j][i] {
					return &ConfigError{Kind: ErrWriteConflict,
						Msg: "concurrent nodes " + other + " and " + node.Name + " both write " + f}
				}
				return &ConfigError{Kind: ErrWriteConflict,
					Msg: "nodes " + other + " and " + node.Name + " both write " + f}
			}
			writers[f] = i
		}
	}
	return nil
}

// validateReadSets checks that every declared read is covered by the
// union of transitive predecessor write-sets plus the entry fields.
func (g *Graph) validateReadSets(reach [][]bool) error {
	for i, node := range g.nodes {
		available := make(map[string]bool, len(g.entryFields))
		for f := range g.entryFields {
			available[f] = true
		}
		for j := range g.nodes {
			if reach[j][i] {
				for _, f := range g.nodes[j].Writes {
					available[f] = true
				}
			}
		}
		for _, f := range node.Reads {
			if !available[f] {
				return &ConfigError{Kind: ErrUnreadableField,
					Msg: "node " + node.Name + " reads " + f + ", which no predecessor writes"}
			}
		}
	}
	return nil
}
