// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

// State is the shared per-run field map. Fields are write-once: the
// executor rejects any patch that would overwrite a field written
// earlier in the same run. A State is never shared across runs.
type State map[string]any

// Patch is a sparse field update returned by a node. Every key must be
// in the node's declared write-set.
type Patch map[string]any

// String returns the named field as a string, or "" when the field is
// absent or holds a different type. Absence and emptiness are
// deliberately indistinguishable here: a soft-failed producer leaves
// its fields at their documented defaults.
func (s State) String(key string) string {
	v, ok := s[key].(string)
	if !ok {
		return ""
	}
	return v
}

// Float returns the named field as a float64, defaulting to 0.
func (s State) Float(key string) float64 {
	v, ok := s[key].(float64)
	if !ok {
		return 0
	}
	return v
}

// Strings returns the named field as a []string, defaulting to nil.
func (s State) Strings(key string) []string {
	v, ok := s[key].([]string)
	if !ok {
		return nil
	}
	return v
}

// clone returns a shallow copy of the state. Values are assumed
// immutable once written (the write-once rule makes deep copies
// unnecessary as long as nodes never mutate values they read).
func (s State) clone() State {
	cp := make(State, len(s))
	for k, v := range s {
		cp[k] = v
	}
	return cp
}

// restrict returns a copy of the state containing only the listed
// fields. Absent fields stay absent rather than appearing as nil.
func (s State) restrict(fields []string) State {
	cp := make(State, len(fields))
	for _, f := range fields {
		if v, ok := s[f]; ok {
			cp[f] = v
		}
	}
	return cp
}
