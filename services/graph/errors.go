// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidGraph marks any build-time configuration failure.
	ErrInvalidGraph = errors.New("invalid execution graph")

	// ErrCycleFound marks a dependency cycle detected at build time.
	ErrCycleFound = errors.New("cycle detected")

	// ErrWriteConflict marks overlapping write-sets between nodes with
	// no ordering between them.
	ErrWriteConflict = errors.New("write-set conflict")

	// ErrUnreadableField marks a declared read that no predecessor (and
	// no entry field) can supply.
	ErrUnreadableField = errors.New("unsatisfiable read-set")
)

// ConfigError wraps graph validation failures detected while building a
// Graph. A ConfigError is fatal: the caller must not attempt to execute
// the graph and should refuse to start serving requests.
type ConfigError struct {
	Kind error
	Msg  string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &ConfigError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []string) error {
	msg := "cycle"
	if len(path) > 0 {
		msg = "cycle: " + strings.Join(path, " -> ")
	}
	return &ConfigError{Kind: ErrCycleFound, Msg: msg}
}

// NodeError reports a hard failure of a single node during execution.
// It is returned by Executor.Run when a critical node fails; soft
// failures are recorded in the Result instead.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q failed: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }
