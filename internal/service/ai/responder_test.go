package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-tavern/widget/internal/logger"
	"github.com/zhouzirui/z-tavern/widget/internal/model/persona"
)

func concierge() persona.Persona {
	p, _ := persona.NewMemoryStore(persona.Seed()).FindByID("concierge")
	return p
}

func TestScriptedReplies(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"book a flight", "Sure, where would you like to go?"},
		{"Paris", "Great, Paris it is. When would you like to travel?"},
		{"new york please", "Great, New York it is. When would you like to travel?"},
		{"Tomorrow", "Got it, tomorrow. Economy or business class?"},
		{"hello", "Hello again! Concierge here. How can I help?"},
		{"hmm", `You said: "hmm". Could you tell me a bit more?`},
	}

	s := NewScripted()
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			got, err := s.Reply(context.Background(), Request{Persona: concierge(), UserMessage: tc.message})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestScriptedHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScripted().Reply(ctx, Request{UserMessage: "hi"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithFallback(t *testing.T) {
	failing := ResponderFunc(func(context.Context, Request) (string, error) {
		return "", errors.New("model unavailable")
	})
	ok := ResponderFunc(func(context.Context, Request) (string, error) { return "primary", nil })
	backup := ResponderFunc(func(context.Context, Request) (string, error) { return "backup", nil })

	got, err := WithFallback(ok, backup, logger.Discard()).Reply(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "primary", got)

	got, err = WithFallback(failing, backup, logger.Discard()).Reply(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "backup", got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = WithFallback(failing, backup, nil).Reply(ctx, Request{})
	assert.Error(t, err, "a cancelled request is not retried")
}
