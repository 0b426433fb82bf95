// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package memory

import (
	"sort"
	"strings"
)

// RankConcepts scores candidate concept names against a normalized
// query and returns the top-N matches, best first.
//
// Scoring: +2 when the candidate's lowercase form is a substring of the
// lowercase query, +1 per distinct whitespace token the candidate
// shares with the query. Zero-score candidates are dropped. Ties keep
// the candidates' supplied order.
func RankConcepts(query string, candidates []string, topN int) []string {
	if topN <= 0 || len(candidates) == 0 {
		return nil
	}
	q := strings.ToLower(normalize(query))
	queryTokens := make(map[string]struct{})
	for _, tok := range strings.Fields(q) {
		queryTokens[tok] = struct{}{}
	}

	type scored struct {
		name  string
		score int
	}
	var ranked []scored
	for _, name := range candidates {
		lower := strings.ToLower(name)
		score := 0
		if lower != "" && strings.Contains(q, lower) {
			score += 2
		}
		seen := make(map[string]struct{})
		for _, tok := range strings.Fields(lower) {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			if _, ok := queryTokens[tok]; ok {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{name: name, score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if topN > len(ranked) {
		topN = len(ranked)
	}
	out := make([]string, 0, topN)
	for _, c := range ranked[:topN] {
		out = append(out, c.name)
	}
	return out
}

// normalize trims and collapses internal whitespace to single spaces.
func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
