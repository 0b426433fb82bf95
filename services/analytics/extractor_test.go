// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analytics

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient returns canned completions in order, recording the
// prompts it saw. The last completion repeats once the script runs out.
type scriptedClient struct {
	replies []string
	err     error
	prompts []string
}

func (c *scriptedClient) Chat(ctx context.Context, system, user string, temperature float32) (string, error) {
	c.prompts = append(c.prompts, user)
	if c.err != nil {
		return "", c.err
	}
	i := len(c.prompts) - 1
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	return c.replies[i], nil
}

func TestExtractCleanJSON(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"sadness": 0.2, "fear": 0.1, "self_harm_risk": 0.05, "urgency": 0.3}`,
	}}
	e := NewExtractor(client, 2)

	feats, degraded, err := e.Extract(context.Background(), "I failed my exam", "some retrieved context")
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, 0.2, feats.Sadness)
	assert.Equal(t, 0.1, feats.Fear)
	assert.Equal(t, 0.3, feats.Urgency)
	assert.Equal(t, 0.0, feats.Anger, "unspecified fields default to zero")
	assert.Len(t, client.prompts, 1, "well-formed output needs no retry")
}

func TestExtractSalvagesWrappedJSON(t *testing.T) {
	reply := "Sure, here:\n{\"sadness\":0.2,\"fear\":0.1}\nHope that helps!"
	client := &scriptedClient{replies: []string{reply}}
	e := NewExtractor(client, 2)

	feats, degraded, err := e.Extract(context.Background(), "message", "")
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, 0.2, feats.Sadness)
	assert.Equal(t, 0.1, feats.Fear)
	assert.Equal(t, 0.0, feats.SelfHarmRisk)

	// The brace check failed each time, so the loop exhausted its
	// retries with a strengthened instruction before salvage ran.
	require.Len(t, client.prompts, 3)
	assert.False(t, strings.HasPrefix(client.prompts[0], strictRetryPrefix))
	assert.True(t, strings.HasPrefix(client.prompts[1], strictRetryPrefix))
	assert.True(t, strings.HasPrefix(client.prompts[2], strictRetryPrefix+strictRetryPrefix))
}

func TestExtractRetryRecovers(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"I think the student seems sad.",
		`{"sadness": 0.6}`,
	}}
	e := NewExtractor(client, 2)

	feats, degraded, err := e.Extract(context.Background(), "message", "")
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, 0.6, feats.Sadness)
	assert.Len(t, client.prompts, 2)
}

func TestExtractUnparseableDegrades(t *testing.T) {
	client := &scriptedClient{replies: []string{"no json here at all"}}
	e := NewExtractor(client, 1)

	feats, degraded, err := e.Extract(context.Background(), "message", "")
	require.NoError(t, err, "garbage output degrades, it does not fail")
	assert.True(t, degraded)
	assert.Equal(t, 0.0, feats.Sadness)
	assert.Equal(t, 1.0, feats.RagEmpty, "local features survive degradation")
	assert.Greater(t, feats.UserLenNorm, 0.0)
}

func TestExtractModelFailure(t *testing.T) {
	client := &scriptedClient{err: errors.New("backend down")}
	e := NewExtractor(client, 2)

	feats, degraded, err := e.Extract(context.Background(), "message", "")
	require.Error(t, err)
	assert.True(t, degraded)
	require.NotNil(t, feats, "local features are still returned")
	assert.Equal(t, 1.0, feats.RagEmpty)
}

func TestExtractClampsOutOfRangeValues(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"sadness": 1.7, "fear": -0.3, "anger": "0.4", "joy": "not a number", "urgency": null}`,
	}}
	e := NewExtractor(client, 0)

	feats, degraded, err := e.Extract(context.Background(), "message", "ctx")
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, 1.0, feats.Sadness)
	assert.Equal(t, 0.0, feats.Fear)
	assert.Equal(t, 0.4, feats.Anger, "numeric strings are accepted")
	assert.Equal(t, 0.0, feats.Joy)
	assert.Equal(t, 0.0, feats.Urgency)
}

func TestExtractTempering(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"self_harm_risk": 0.9, "negation_or_denial": 0.8}`,
	}}
	e := NewExtractor(client, 0)

	feats, _, err := e.Extract(context.Background(), "message", "ctx")
	require.NoError(t, err)
	assert.InDelta(t, 0.45, feats.SelfHarmRisk, 1e-9,
		"flagged risk with strong denial is halved, floored at 0.2")
}

func TestExtractTemperingRequiresBothSignals(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"self_harm_risk": 0.9, "negation_or_denial": 0.5}`,
	}}
	e := NewExtractor(client, 0)

	feats, _, err := e.Extract(context.Background(), "message", "ctx")
	require.NoError(t, err)
	assert.Equal(t, 0.9, feats.SelfHarmRisk)
}

func TestExtractContextQualityFeatures(t *testing.T) {
	client := &scriptedClient{replies: []string{`{}`}}
	e := NewExtractor(client, 0)

	feats, _, err := e.Extract(context.Background(), strings.Repeat("a", 2000), "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, feats.RagEmpty)
	assert.Equal(t, 0.0, feats.RagLenNorm)
	assert.InDelta(t, 1.0, feats.UserLenNorm, 1e-9, "2000 chars saturates the length scale")

	feats, _, err = e.Extract(context.Background(), "short", "some context")
	require.NoError(t, err)
	assert.Equal(t, 0.0, feats.RagEmpty)
	assert.Greater(t, feats.RagLenNorm, 0.0)
	assert.Less(t, feats.UserLenNorm, 1.0)
}

func TestLengthNorm(t *testing.T) {
	assert.Equal(t, 0.0, lengthNorm(""))
	assert.InDelta(t, 1.0, lengthNorm(strings.Repeat("x", 2000)), 1e-9)
	assert.Equal(t, 1.0, lengthNorm(strings.Repeat("x", 5000)), "capped at 1")
}

func TestSalvageJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"direct object", `{"a": 1}`, true},
		{"prose wrapped", "prefix {\"a\": 1} suffix", true},
		{"no braces", "nothing here", false},
		{"broken braces", "} {", false},
		{"invalid inner", "text {not json} text", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := salvageJSON(tc.in)
			assert.Equal(t, tc.ok, ok)
		})
	}
}
