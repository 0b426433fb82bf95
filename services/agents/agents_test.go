// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/EduGuardAI/EduGuard/services/safety"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	reply string
	err   error

	gotSystem string
	gotUser   string
	gotTemp   float32
}

func (c *recordingClient) Chat(ctx context.Context, system, user string, temperature float32) (string, error) {
	c.gotSystem, c.gotUser, c.gotTemp = system, user, temperature
	return c.reply, c.err
}

func TestAdvisorPromptsAndTemperatures(t *testing.T) {
	tests := []struct {
		advisor     Advisor
		temperature float32
		systemWord  string
		userWord    string
	}{
		{Tutor, 0.4, "academic tutor", "Student question:"},
		{Coach, 0.7, "motivational coach", "Student message:"},
		{Critic, 0.2, "safety and ethics monitor", "User message:"},
	}

	for _, tc := range tests {
		t.Run(tc.advisor.Name, func(t *testing.T) {
			client := &recordingClient{reply: "an answer"}
			out, err := tc.advisor.Advise(context.Background(), client, "why is the sky blue?", "retrieved block")
			require.NoError(t, err)
			assert.Equal(t, "an answer", out)
			assert.Equal(t, tc.temperature, client.gotTemp)
			assert.Contains(t, client.gotSystem, tc.systemWord)
			assert.Contains(t, client.gotUser, tc.userWord)
			assert.Contains(t, client.gotUser, "retrieved block", "retrieval context is embedded in the prompt")
			assert.Contains(t, client.gotUser, "why is the sky blue?")
		})
	}
}

func TestAdvisorWrapsFailure(t *testing.T) {
	client := &recordingClient{err: errors.New("backend down")}
	_, err := Tutor.Advise(context.Background(), client, "q", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tutor advisor failed")
}

func newTestParliament(t *testing.T) *Parliament {
	t.Helper()
	policy, err := safety.NewCrisisPolicy()
	require.NoError(t, err)
	return NewParliament(policy)
}

func TestAggregateCombinesTutorAndCoach(t *testing.T) {
	p := newTestParliament(t)

	final, crisis := p.Aggregate("The mitochondria is the powerhouse of the cell.",
		"You're making great progress, keep going!", "No safety concerns detected.")
	assert.False(t, crisis)
	assert.Equal(t, "The mitochondria is the powerhouse of the cell.\n\nYou're making great progress, keep going!", final)
}

func TestAggregateSkipsBlankAdvisors(t *testing.T) {
	p := newTestParliament(t)

	final, crisis := p.Aggregate("", "  You've got this.  ", "All clear.")
	assert.False(t, crisis)
	assert.Equal(t, "You've got this.", final)
}

func TestAggregateCrisisPrecedence(t *testing.T) {
	p := newTestParliament(t)

	final, crisis := p.Aggregate(
		"Here is how photosynthesis works...",
		"Keep pushing!",
		"CRISIS: the message contains self-harm ideation and needs urgent help.")
	assert.True(t, crisis)
	assert.Equal(t, CrisisGuidance, final)
	assert.NotContains(t, final, "photosynthesis", "advisor content never leaks into a crisis response")
}

func TestAggregateAllAdvisorsFailed(t *testing.T) {
	p := newTestParliament(t)

	final, crisis := p.Aggregate("", "", "")
	assert.False(t, crisis)
	assert.Equal(t, FallbackResponse, final)
}
