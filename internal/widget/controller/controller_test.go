package controller

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zhouzirui/z-tavern/widget/internal/client/chatapi"
	"github.com/zhouzirui/z-tavern/widget/internal/logger"
	"github.com/zhouzirui/z-tavern/widget/internal/model/conversation"
	"github.com/zhouzirui/z-tavern/widget/internal/widget/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAPI struct {
	mu     sync.Mutex
	calls  []string
	create func(ctx context.Context) (chatapi.SessionStart, error)
	send   func(ctx context.Context, sessionID, text string) (chatapi.Reply, error)
	delete func(ctx context.Context, sessionID string) error
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) CreateSession(ctx context.Context) (chatapi.SessionStart, error) {
	f.record("create")
	return f.create(ctx)
}

func (f *fakeAPI) SendMessage(ctx context.Context, sessionID, text string) (chatapi.Reply, error) {
	f.record("send:" + text)
	return f.send(ctx, sessionID, text)
}

func (f *fakeAPI) DeleteMessage(ctx context.Context, sessionID string) error {
	f.record("delete")
	return f.delete(ctx, sessionID)
}

var errServer = &chatapi.ServerError{Op: "test", StatusCode: http.StatusInternalServerError, Message: "boom"}

// scriptedAPI answers like the travel example: "book a flight" offers Paris
// and Tokyo, anything else gets a plain acknowledgement.
func scriptedAPI() *fakeAPI {
	return &fakeAPI{
		create: func(context.Context) (chatapi.SessionStart, error) {
			return chatapi.SessionStart{SessionID: "s1", Greeting: "Hi!"}, nil
		},
		send: func(_ context.Context, _ string, text string) (chatapi.Reply, error) {
			if text == "book a flight" {
				return chatapi.Reply{
					ChatbotResponse: "Sure, where to?",
					Suggestions:     []conversation.Suggestion{{Text: "Paris"}, {Text: "Tokyo"}},
				}, nil
			}
			return chatapi.Reply{ChatbotResponse: "Noted: " + text, Suggestions: []conversation.Suggestion{{Text: "Tomorrow"}}}, nil
		},
		delete: func(context.Context, string) error { return nil },
	}
}

func newController(api API, opts Options) (*Controller, *store.Store) {
	st := store.New()
	return New(api, st, logger.Discard(), opts), st
}

// sendFirstMessage drives a fresh widget through initialization and the first send.
func sendFirstMessage(t *testing.T, c *Controller) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.Initialize(ctx))
	c.UpdateInput("book a flight")
	require.NoError(t, c.Send(ctx))
}

func TestInitializeSeedsGreeting(t *testing.T) {
	c, st := newController(scriptedAPI(), DefaultOptions())

	require.NoError(t, c.Initialize(context.Background()))

	state := st.Snapshot()
	assert.Equal(t, "s1", state.SessionID)
	assert.Equal(t, []conversation.Message{{UserMessage: "", ChatbotResponse: "Hi!"}}, state.Messages)
}

func TestSendAppendsTurnAndClearsInput(t *testing.T) {
	c, st := newController(scriptedAPI(), DefaultOptions())
	sendFirstMessage(t, c)

	state := st.Snapshot()
	require.Len(t, state.Messages, 2)
	assert.Equal(t, conversation.Message{
		UserMessage:     "book a flight",
		ChatbotResponse: "Sure, where to?",
		Suggestions:     []conversation.Suggestion{{Text: "Paris"}, {Text: "Tokyo"}},
	}, state.Messages[1])
	assert.Equal(t, "", state.PendingInput)
}

func TestPickSuggestionSupersedesOlderSuggestions(t *testing.T) {
	c, st := newController(scriptedAPI(), DefaultOptions())
	sendFirstMessage(t, c)
	c.UpdateInput("half-typed")

	require.NoError(t, c.PickSuggestion(context.Background(), conversation.Suggestion{Text: "Paris"}))

	state := st.Snapshot()
	require.Len(t, state.Messages, 3)
	assert.Equal(t, "Paris", state.Messages[2].UserMessage)
	assert.False(t, state.SuggestionsActionable(1))
	assert.True(t, state.SuggestionsActionable(2))
	assert.Equal(t, "half-typed", state.PendingInput, "suggestions do not touch the input")

	// Tokyo belonged to the superseded turn and is now inert.
	err := c.PickSuggestion(context.Background(), conversation.Suggestion{Text: "Tokyo"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInertSuggestion)
	assert.Len(t, st.Snapshot().Messages, 3)
}

func TestDeleteLastRevertsToGreeting(t *testing.T) {
	api := scriptedAPI()
	c, st := newController(api, DefaultOptions())
	require.NoError(t, c.Initialize(context.Background()))
	greeted := st.Snapshot()

	c.UpdateInput("book a flight")
	require.NoError(t, c.Send(context.Background()))
	require.NoError(t, c.DeleteLast(context.Background()))

	state := st.Snapshot()
	assert.Equal(t, greeted.Messages, state.Messages)
	assert.Equal(t, greeted.SessionID, state.SessionID)
	assert.Equal(t, []string{"create", "send:book a flight", "delete"}, api.Calls())
}

func TestBlankInputSkipsNetwork(t *testing.T) {
	api := scriptedAPI()
	c, st := newController(api, DefaultOptions())
	require.NoError(t, c.Initialize(context.Background()))
	c.UpdateInput("   ")
	before := st.Snapshot()

	err := c.Send(context.Background())
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.ErrorIs(t, err, ErrBlankInput)
	assert.Equal(t, before, st.Snapshot())
	assert.Equal(t, []string{"create"}, api.Calls())
}

func TestAppendOnlyGrowth(t *testing.T) {
	c, st := newController(scriptedAPI(), DefaultOptions())
	sendFirstMessage(t, c)

	ctx := context.Background()
	prev := st.Snapshot()
	for _, text := range []string{"first", "second", "third"} {
		c.UpdateInput(text)
		require.NoError(t, c.Send(ctx))

		next := st.Snapshot()
		require.Len(t, next.Messages, prev.Len()+1)
		assert.Equal(t, prev.Messages, next.Messages[:prev.Len()])
		prev = next
	}
}

func TestEditLastRestoresInput(t *testing.T) {
	api := scriptedAPI()
	c, st := newController(api, DefaultOptions())
	sendFirstMessage(t, c)
	before := st.Snapshot()

	require.NoError(t, c.EditLast(context.Background()))

	state := st.Snapshot()
	assert.Equal(t, before.Messages[:1], state.Messages)
	assert.Equal(t, "book a flight", state.PendingInput)
	assert.Equal(t, before.Version+1, state.Version, "removal and prefill land together")
	assert.Contains(t, api.Calls(), "delete")
}

func TestFailedActionsLeaveStateUntouched(t *testing.T) {
	failSend := func(api *fakeAPI) {
		api.send = func(context.Context, string, string) (chatapi.Reply, error) { return chatapi.Reply{}, errServer }
	}
	failDelete := func(api *fakeAPI) {
		api.delete = func(context.Context, string) error { return errServer }
	}

	tests := []struct {
		name    string
		fail    func(api *fakeAPI)
		prepare func(c *Controller)
		act     func(c *Controller) error
	}{
		{
			name:    "send",
			fail:    failSend,
			prepare: func(c *Controller) { c.UpdateInput("retry me") },
			act:     func(c *Controller) error { return c.Send(context.Background()) },
		},
		{
			name: "edit last",
			fail: failDelete,
			act:  func(c *Controller) error { return c.EditLast(context.Background()) },
		},
		{
			name: "delete last",
			fail: failDelete,
			act:  func(c *Controller) error { return c.DeleteLast(context.Background()) },
		},
		{
			name: "pick suggestion",
			fail: failSend,
			act: func(c *Controller) error {
				return c.PickSuggestion(context.Background(), conversation.Suggestion{Text: "Paris"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := scriptedAPI()
			c, st := newController(api, DefaultOptions())
			sendFirstMessage(t, c)
			tt.fail(api)
			if tt.prepare != nil {
				tt.prepare(c)
			}
			before := st.Snapshot()

			err := tt.act(c)
			require.Error(t, err)
			assert.ErrorIs(t, err, errServer)
			assert.False(t, IsValidation(err))
			assert.Equal(t, before, st.Snapshot())
			assert.False(t, c.Busy())
		})
	}
}

func TestSendFailureKeepsPendingInput(t *testing.T) {
	api := scriptedAPI()
	c, st := newController(api, DefaultOptions())
	require.NoError(t, c.Initialize(context.Background()))
	api.send = func(context.Context, string, string) (chatapi.Reply, error) {
		return chatapi.Reply{}, &chatapi.NetworkError{Op: "send message", Err: errors.New("connection refused")}
	}

	c.UpdateInput("book a flight")
	err := c.Send(context.Background())
	require.Error(t, err)
	assert.True(t, chatapi.IsNetwork(err))
	assert.Equal(t, "book a flight", st.Snapshot().PendingInput)
	assert.Len(t, st.Snapshot().Messages, 1)
}

func TestSendKeepsInputTypedDuringRequest(t *testing.T) {
	api := scriptedAPI()
	c, st := newController(api, Options{RequireSession: true, SerializeActions: false})
	require.NoError(t, c.Initialize(context.Background()))

	entered := make(chan struct{})
	release := make(chan struct{})
	api.send = func(context.Context, string, string) (chatapi.Reply, error) {
		close(entered)
		<-release
		return chatapi.Reply{ChatbotResponse: "ok"}, nil
	}

	c.UpdateInput("first")
	done := make(chan error, 1)
	go func() { done <- c.Send(context.Background()) }()
	<-entered

	c.UpdateInput("first next")
	close(release)
	require.NoError(t, <-done)

	state := st.Snapshot()
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "first", state.Messages[1].UserMessage)
	assert.Equal(t, "first next", state.PendingInput)
}

func TestInitializeFailureLeavesSessionEmpty(t *testing.T) {
	api := scriptedAPI()
	api.create = func(context.Context) (chatapi.SessionStart, error) { return chatapi.SessionStart{}, errServer }
	c, st := newController(api, DefaultOptions())

	require.Error(t, c.Initialize(context.Background()))
	assert.False(t, st.Snapshot().HasSession())
	assert.Empty(t, st.Snapshot().Messages)

	c.UpdateInput("hello")
	err := c.Send(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, []string{"create"}, api.Calls(), "guarded actions never reach the network")

	// A later retry can still succeed.
	api.create = func(context.Context) (chatapi.SessionStart, error) {
		return chatapi.SessionStart{SessionID: "s2", Greeting: "Hello again"}, nil
	}
	require.NoError(t, c.Initialize(context.Background()))
	assert.Equal(t, "s2", st.Snapshot().SessionID)
}

func TestWithoutSessionGuardRequestsGoThrough(t *testing.T) {
	api := scriptedAPI()
	var gotSession string
	api.send = func(_ context.Context, sessionID, text string) (chatapi.Reply, error) {
		gotSession = sessionID
		return chatapi.Reply{}, errServer
	}
	c, _ := newController(api, Options{RequireSession: false, SerializeActions: true})

	c.UpdateInput("hello")
	err := c.Send(context.Background())
	assert.ErrorIs(t, err, errServer)
	assert.Equal(t, "", gotSession)
}

func TestInitializeTwice(t *testing.T) {
	api := scriptedAPI()
	c, _ := newController(api, DefaultOptions())
	require.NoError(t, c.Initialize(context.Background()))

	assert.ErrorIs(t, c.Initialize(context.Background()), ErrAlreadyInitialized)
	assert.Equal(t, []string{"create"}, api.Calls())
}

func TestEditAndDeleteOnEmptyConversation(t *testing.T) {
	api := scriptedAPI()
	c, _ := newController(api, Options{})

	assert.ErrorIs(t, c.EditLast(context.Background()), ErrEmptyConversation)
	assert.ErrorIs(t, c.DeleteLast(context.Background()), ErrEmptyConversation)
	assert.ErrorIs(t, c.PickSuggestion(context.Background(), conversation.Suggestion{Text: "x"}), ErrEmptyConversation)
	assert.Empty(t, api.Calls())
}

func TestPickSuggestionAt(t *testing.T) {
	c, st := newController(scriptedAPI(), DefaultOptions())
	sendFirstMessage(t, c)

	require.NoError(t, c.PickSuggestionAt(context.Background(), 1))
	assert.Equal(t, "Tokyo", st.Snapshot().Messages[2].UserMessage)

	assert.ErrorIs(t, c.PickSuggestionAt(context.Background(), 5), ErrInertSuggestion)
}

func TestSerializedActionsRejectOverlap(t *testing.T) {
	api := scriptedAPI()
	c, st := newController(api, DefaultOptions())
	require.NoError(t, c.Initialize(context.Background()))

	entered := make(chan struct{})
	release := make(chan struct{})
	api.send = func(context.Context, string, string) (chatapi.Reply, error) {
		close(entered)
		<-release
		return chatapi.Reply{ChatbotResponse: "ok"}, nil
	}

	c.UpdateInput("first")
	done := make(chan error, 1)
	go func() { done <- c.Send(context.Background()) }()
	<-entered

	assert.True(t, c.Busy())
	assert.ErrorIs(t, c.Send(context.Background()), ErrBusy)
	assert.ErrorIs(t, c.DeleteLast(context.Background()), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.Busy())
	assert.Len(t, st.Snapshot().Messages, 2)
	assert.Equal(t, []string{"create", "send:first"}, api.Calls())
}

func TestUnserializedSendsAppendInArrivalOrder(t *testing.T) {
	api := scriptedAPI()
	c, st := newController(api, Options{RequireSession: true, SerializeActions: false})
	require.NoError(t, c.Initialize(context.Background()))

	entered := make(chan string, 2)
	gates := map[string]chan struct{}{
		"first":  make(chan struct{}),
		"second": make(chan struct{}),
	}
	api.send = func(_ context.Context, _ string, text string) (chatapi.Reply, error) {
		entered <- text
		<-gates[text]
		return chatapi.Reply{ChatbotResponse: "re: " + text}, nil
	}

	results := make(map[string]chan error)
	for _, text := range []string{"first", "second"} {
		c.UpdateInput(text)
		ch := make(chan error, 1)
		results[text] = ch
		go func() { ch <- c.Send(context.Background()) }()
		require.Equal(t, text, <-entered)
	}

	close(gates["second"])
	require.NoError(t, <-results["second"])
	close(gates["first"])
	require.NoError(t, <-results["first"])

	msgs := st.Snapshot().Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "second", msgs[1].UserMessage)
	assert.Equal(t, "first", msgs[2].UserMessage)
	assert.False(t, c.Busy())
}
