package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-tavern/widget/internal/config"
	"github.com/zhouzirui/z-tavern/widget/internal/logger"
	"github.com/zhouzirui/z-tavern/widget/internal/model/persona"
	"github.com/zhouzirui/z-tavern/widget/internal/service/ai"
	chatservice "github.com/zhouzirui/z-tavern/widget/internal/service/chat"
)

func setupRouter(t *testing.T, format string, responder ai.Responder) (*chi.Mux, *chatservice.Service) {
	t.Helper()
	chatSvc := chatservice.NewService()
	store := persona.NewMemoryStore(persona.Seed())
	if responder == nil {
		responder = ai.NewScripted()
	}
	handler := New(chatSvc, store, responder, Options{
		SuggestionFormat: format,
		DefaultPersona:   "concierge",
		MaxSuggestions:   3,
	}, logger.Discard())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func do(t *testing.T, r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	resp := do(t, r, http.MethodPost, "/sessions/create", nil)
	require.Equal(t, http.StatusCreated, resp.Code)

	var body createSessionResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.NotEmpty(t, body.SessionID)
	return body.SessionID
}

func TestCreateSessionDefaultPersona(t *testing.T) {
	r, chatSvc := setupRouter(t, config.SuggestionFormatPlain, nil)

	resp := do(t, r, http.MethodPost, "/sessions/create", nil)
	require.Equal(t, http.StatusCreated, resp.Code)

	var body createSessionResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "Hi! I'm your travel concierge. Where would you like to go?", body.Message)

	turns, err := chatSvc.LoadTranscript(context.Background(), body.SessionID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.True(t, turns[0].IsGreeting())
}

func TestCreateSessionNamedPersona(t *testing.T) {
	r, chatSvc := setupRouter(t, config.SuggestionFormatPlain, nil)

	resp := do(t, r, http.MethodPost, "/sessions/create?persona=helpdesk", nil)
	require.Equal(t, http.StatusCreated, resp.Code)

	var body createSessionResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	session, err := chatSvc.GetSession(context.Background(), body.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "helpdesk", session.PersonaID)
}

func TestCreateSessionInvalidPersona(t *testing.T) {
	r, _ := setupRouter(t, config.SuggestionFormatPlain, nil)

	resp := do(t, r, http.MethodPost, "/sessions/create?persona=non-existent", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSendMessagePlainSuggestions(t *testing.T) {
	r, _ := setupRouter(t, config.SuggestionFormatPlain, nil)
	sessionID := createSession(t, r)

	resp := do(t, r, http.MethodPost, "/messages/post", sendMessageRequest{SessionID: sessionID, Message: "book a flight"})
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		UserMessage     string   `json:"user_message"`
		ChatbotResponse string   `json:"chatbot_response"`
		Suggestions     []string `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "book a flight", body.UserMessage)
	assert.Equal(t, "Sure, where would you like to go?", body.ChatbotResponse)
	assert.Equal(t, []string{"Paris", "Tokyo", "New York"}, body.Suggestions)
}

func TestSendMessageTaggedSuggestions(t *testing.T) {
	r, _ := setupRouter(t, config.SuggestionFormatTagged, nil)
	sessionID := createSession(t, r)

	resp := do(t, r, http.MethodPost, "/messages/post", sendMessageRequest{SessionID: sessionID, Message: "book a flight"})
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Suggestions []struct {
			SID  string `json:"sid"`
			Text string `json:"suggestion_text"`
		} `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Suggestions, 3)
	assert.Equal(t, "Paris", body.Suggestions[0].Text)
	assert.NotEmpty(t, body.Suggestions[0].SID)
	assert.NotEqual(t, body.Suggestions[0].SID, body.Suggestions[1].SID)
}

func TestSendMessageValidation(t *testing.T) {
	r, _ := setupRouter(t, config.SuggestionFormatPlain, nil)
	sessionID := createSession(t, r)

	cases := []struct {
		name string
		body any
		want int
	}{
		{"blank message", sendMessageRequest{SessionID: sessionID, Message: "   "}, http.StatusBadRequest},
		{"missing session id", sendMessageRequest{Message: "hi"}, http.StatusBadRequest},
		{"unknown session", sendMessageRequest{SessionID: "missing", Message: "hi"}, http.StatusNotFound},
		{"no body", nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, r, http.MethodPost, "/messages/post", tc.body)
			assert.Equal(t, tc.want, resp.Code)
		})
	}
}

func TestSendMessageResponderFailure(t *testing.T) {
	failing := ai.ResponderFunc(func(context.Context, ai.Request) (string, error) {
		return "", errors.New("model unavailable")
	})
	r, chatSvc := setupRouter(t, config.SuggestionFormatPlain, failing)
	sessionID := createSession(t, r)

	resp := do(t, r, http.MethodPost, "/messages/post", sendMessageRequest{SessionID: sessionID, Message: "hi"})
	assert.Equal(t, http.StatusBadGateway, resp.Code)

	turns, _ := chatSvc.LoadTranscript(context.Background(), sessionID)
	assert.Len(t, turns, 1, "a failed reply stores nothing")
}

func TestEditMessage(t *testing.T) {
	var seenHistory int
	responder := ai.ResponderFunc(func(ctx context.Context, req ai.Request) (string, error) {
		seenHistory = len(req.History)
		return ai.NewScripted().Reply(ctx, req)
	})
	r, chatSvc := setupRouter(t, config.SuggestionFormatPlain, responder)
	sessionID := createSession(t, r)

	resp := do(t, r, http.MethodPut, "/messages/edit", editMessageRequest{SessionID: sessionID, NewMessage: "book a flight"})
	assert.Equal(t, http.StatusNotFound, resp.Code, "the greeting has no user message to edit")

	do(t, r, http.MethodPost, "/messages/post", sendMessageRequest{SessionID: sessionID, Message: "book a flight"})

	resp = do(t, r, http.MethodPut, "/messages/edit", editMessageRequest{SessionID: sessionID, NewMessage: "Paris"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"success":true}`, resp.Body.String())
	assert.Equal(t, 1, seenHistory, "the edited turn is not part of its own history")

	turns, _ := chatSvc.LoadTranscript(context.Background(), sessionID)
	require.Len(t, turns, 2)
	assert.Equal(t, "Paris", turns[1].UserMessage)
	assert.Equal(t, "Great, Paris it is. When would you like to travel?", turns[1].ChatbotResponse)

	resp = do(t, r, http.MethodPut, "/messages/edit", editMessageRequest{SessionID: sessionID, NewMessage: ""})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDeleteMessage(t *testing.T) {
	r, chatSvc := setupRouter(t, config.SuggestionFormatPlain, nil)
	sessionID := createSession(t, r)
	do(t, r, http.MethodPost, "/messages/post", sendMessageRequest{SessionID: sessionID, Message: "book a flight"})
	do(t, r, http.MethodPost, "/messages/post", sendMessageRequest{SessionID: sessionID, Message: "Paris"})

	resp := do(t, r, http.MethodDelete, "/messages/delete?session_id="+sessionID, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"success":true}`, resp.Body.String())

	resp = do(t, r, http.MethodDelete, "/messages/delete", deleteMessageRequest{SessionID: sessionID})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = do(t, r, http.MethodPost, "/delete", deleteMessageRequest{SessionID: sessionID})
	require.Equal(t, http.StatusOK, resp.Code, "the greeting can be deleted")

	turns, _ := chatSvc.LoadTranscript(context.Background(), sessionID)
	assert.Empty(t, turns)

	resp = do(t, r, http.MethodDelete, "/messages/delete?session_id="+sessionID, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = do(t, r, http.MethodDelete, "/messages/delete", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(t, r, http.MethodDelete, "/messages/delete?session_id=missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
