package main

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-tavern/widget/internal/client/chatapi"
	"github.com/zhouzirui/z-tavern/widget/internal/config"
	"github.com/zhouzirui/z-tavern/widget/internal/handler"
	"github.com/zhouzirui/z-tavern/widget/internal/handler/chat"
	"github.com/zhouzirui/z-tavern/widget/internal/logger"
	"github.com/zhouzirui/z-tavern/widget/internal/model/persona"
	"github.com/zhouzirui/z-tavern/widget/internal/service/ai"
	chatService "github.com/zhouzirui/z-tavern/widget/internal/service/chat"
)

func newClient(t *testing.T) *chatapi.Client {
	t.Helper()
	srv := httptest.NewServer(handler.NewRouter(handler.Deps{
		Personas:  persona.NewMemoryStore(persona.Seed()),
		Chat:      chatService.NewService(),
		Responder: ai.NewScripted(),
		Options:   chat.Options{SuggestionFormat: config.SuggestionFormatTagged, DefaultPersona: "concierge", MaxSuggestions: 3},
		Logger:    logger.Discard(),
		Quiet:     true,
	}))
	t.Cleanup(srv.Close)
	return chatapi.New(srv.URL)
}

func TestRunLifecycle(t *testing.T) {
	require.NoError(t, runLifecycle(context.Background(), newClient(t), logger.Discard()))
}

func TestCheckDoubleSubmit(t *testing.T) {
	client := newClient(t)

	for _, serialize := range []bool{true, false} {
		result, err := checkDoubleSubmit(context.Background(), client, logger.Discard(), serialize, 4)
		require.NoError(t, err)
		assert.Equal(t, 4, result.Attempts)
		assert.Equal(t, result.Attempts-result.Busy-result.Failed, result.Appended)
		assert.GreaterOrEqual(t, result.Appended, 1)
		if !serialize {
			assert.Zero(t, result.Busy)
		}
	}
}
