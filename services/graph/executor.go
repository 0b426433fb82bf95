// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("eduguard.graph")

// Status is the terminal state of a node within one run.
type Status string

const (
	// StatusSucceeded means the node ran and its patch was merged.
	StatusSucceeded Status = "succeeded"

	// StatusSoftFailed means the node failed but was configured as
	// non-critical: its write-set stays at defaults and downstream
	// nodes ran anyway.
	StatusSoftFailed Status = "soft_failed"
)

// Result reports one completed run.
type Result struct {
	// FinalState holds every field written during the run plus the
	// entry fields.
	FinalState State

	// Order is the completion order of the nodes that ran.
	Order []string

	// Statuses maps every node to its terminal status.
	Statuses map[string]Status

	// Failures maps soft-failed nodes to their errors, for the audit
	// payload. Empty when the run was clean.
	Failures map[string]error

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// Degraded reports whether any node soft-failed during the run.
func (r *Result) Degraded() bool { return len(r.Failures) > 0 }

// Executor runs a validated Graph. It holds no per-run state and is
// safe for concurrent use; every Run allocates its own State.
type Executor struct {
	graph *Graph

	// NodeTimeout bounds each node's execution when positive. External
	// calls inside nodes carry their own client timeouts; this is the
	// outer guard.
	NodeTimeout time.Duration
}

// NewExecutor creates an Executor for the given graph.
func NewExecutor(g *Graph) (*Executor, error) {
	if g == nil {
		return nil, fmt.Errorf("nil graph")
	}
	return &Executor{graph: g}, nil
}

type nodeResult struct {
	index int
	patch Patch
	err   error
}

// Run executes the graph once over the given initial state.
//
// A node becomes eligible when all of its predecessors have completed;
// eligible nodes run concurrently, each on its own goroutine with a
// snapshot restricted to its declared read-set. Patches merge under the
// write-once rule. A non-critical node failure is recorded in the
// Result and its dependents proceed with the missing fields at their
// defaults; a critical node failure cancels the run and returns a
// NodeError, because continuing without a risk assessment is not an
// acceptable outcome.
func (e *Executor) Run(ctx context.Context, initial State) (*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "graph.Run")
	defer span.End()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := e.graph
	state := initial.clone()
	for f := range g.entryFields {
		if _, ok := state[f]; !ok {
			return nil, fmt.Errorf("initial state missing entry field %q", f)
		}
	}

	pending := make([]int, len(g.nodes))
	copy(pending, g.indeg)

	results := make(chan nodeResult, len(g.nodes))
	res := &Result{
		Statuses: make(map[string]Status, len(g.nodes)),
		Failures: make(map[string]error),
	}

	inFlight := 0
	launch := func(indices []int) {
		// Deterministic dispatch order; completion order may differ.
		sort.Ints(indices)
		for _, i := range indices {
			node := g.nodes[i]
			snapshot := state.restrict(node.Reads)
			inFlight++
			go e.runNode(runCtx, i, node, snapshot, results)
		}
	}

	var eligible []int
	for i := range g.nodes {
		if pending[i] == 0 {
			eligible = append(eligible, i)
		}
	}
	launch(eligible)

	completed := 0
	var hardErr error

	for completed < len(g.nodes) && hardErr == nil {
		select {
		case <-ctx.Done():
			hardErr = fmt.Errorf("run cancelled: %w", ctx.Err())
		case r := <-results:
			inFlight--
			completed++
			node := g.nodes[r.index]

			if r.err != nil {
				if node.Critical {
					hardErr = &NodeError{Node: node.Name, Err: r.err}
					break
				}
				slog.Warn("graph node failed, continuing without its outputs",
					"node", node.Name, "error", r.err)
				res.Statuses[node.Name] = StatusSoftFailed
				res.Failures[node.Name] = r.err
			} else {
				if err := merge(state, node, r.patch); err != nil {
					// A merge violation is a programming error in the
					// node, never tolerable: the build-time contracts
					// were broken at runtime.
					hardErr = &NodeError{Node: node.Name, Err: err}
					break
				}
				res.Statuses[node.Name] = StatusSucceeded
			}
			res.Order = append(res.Order, node.Name)

			var next []int
			for _, succ := range g.outgoing[r.index] {
				pending[succ]--
				if pending[succ] == 0 {
					next = append(next, succ)
				}
			}
			launch(next)
		}
	}

	if hardErr != nil {
		cancel()
		// Drain in-flight nodes so none outlive the run.
		for inFlight > 0 {
			<-results
			inFlight--
		}
		span.RecordError(hardErr)
		span.SetStatus(codes.Error, hardErr.Error())
		return nil, hardErr
	}

	res.FinalState = state
	res.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.Int("graph.nodes", len(g.nodes)),
		attribute.Int("graph.soft_failures", len(res.Failures)),
	)
	return res, nil
}

// runNode executes a single node, converting panics into errors so one
// misbehaving advisor cannot take down the whole run.
func (e *Executor) runNode(ctx context.Context, index int, node Node, snapshot State, results chan<- nodeResult) {
	defer func() {
		if p := recover(); p != nil {
			results <- nodeResult{index: index, err: fmt.Errorf("panic: %v", p)}
		}
	}()

	ctx, span := tracer.Start(ctx, "graph.node."+node.Name)
	defer span.End()

	if e.NodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.NodeTimeout)
		defer cancel()
	}

	patch, err := node.Run(ctx, snapshot)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	results <- nodeResult{index: index, patch: patch, err: err}
}

// merge applies a patch under the declared-write-set and write-once
// rules. Called only from the coordinator goroutine, so no locking is
// needed.
func merge(state State, node Node, patch Patch) error {
	allowed := make(map[string]bool, len(node.Writes))
	for _, f := range node.Writes {
		allowed[f] = true
	}
	for k, v := range patch {
		if !allowed[k] {
			return fmt.Errorf("node wrote undeclared field %q", k)
		}
		if _, exists := state[k]; exists {
			return fmt.Errorf("field %q written twice", k)
		}
		state[k] = v
	}
	return nil
}
