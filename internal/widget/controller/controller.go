// Package controller turns user actions into API calls and store mutations.
//
// Every action follows the same shape: check preconditions against the current
// snapshot, perform one network round trip, and only if it succeeds dispatch
// the documented mutation batch. A failed call leaves the store untouched.
package controller

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/zhouzirui/z-tavern/widget/internal/client/chatapi"
	"github.com/zhouzirui/z-tavern/widget/internal/model/conversation"
	"github.com/zhouzirui/z-tavern/widget/internal/widget/store"
)

// API is the subset of the chatbot client the controller drives.
type API interface {
	CreateSession(ctx context.Context) (chatapi.SessionStart, error)
	SendMessage(ctx context.Context, sessionID, text string) (chatapi.Reply, error)
	DeleteMessage(ctx context.Context, sessionID string) error
}

// Options toggles the hardening applied on top of the plain action semantics.
type Options struct {
	// RequireSession rejects send, edit, delete and suggestion actions with
	// ErrNoSession until Initialize has succeeded.
	RequireSession bool
	// SerializeActions allows one action in flight; others fail with ErrBusy.
	// When false, overlapping actions all reach the network and their
	// mutations land in response-arrival order.
	SerializeActions bool
}

// DefaultOptions enables both guards.
func DefaultOptions() Options {
	return Options{RequireSession: true, SerializeActions: true}
}

// Controller orchestrates one widget's actions.
type Controller struct {
	api      API
	store    *store.Store
	logger   *log.Logger
	opts     Options
	inflight atomic.Int32
}

// New wires a controller to its API client and store.
func New(api API, st *store.Store, logger *log.Logger, opts Options) *Controller {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Controller{api: api, store: st, logger: logger, opts: opts}
}

// State returns the current store snapshot.
func (c *Controller) State() conversation.State {
	return c.store.Snapshot()
}

// Busy reports whether an action is waiting on the network.
func (c *Controller) Busy() bool {
	return c.inflight.Load() > 0
}

// UpdateInput stages text in the input field.
func (c *Controller) UpdateInput(text string) {
	c.store.Dispatch(store.SetPendingInput{Text: text})
}

// Initialize creates the backend session and seeds the conversation with the
// greeting. On failure the session stays empty and Initialize may be retried.
func (c *Controller) Initialize(ctx context.Context) error {
	const action = "initialize"

	if c.store.Snapshot().HasSession() {
		return c.reject(action, ErrAlreadyInitialized)
	}

	release, err := c.begin(action)
	if err != nil {
		return err
	}
	defer release()

	start, err := c.api.CreateSession(ctx)
	if err != nil {
		return c.fail(action, err)
	}

	c.store.Dispatch(
		store.SetSession{ID: start.SessionID},
		store.AppendMessage{Message: conversation.Message{ChatbotResponse: start.Greeting}},
	)
	c.logger.Info("session initialized", "session", start.SessionID)
	return nil
}

// Send submits the pending input. On success the turn is appended and the
// input cleared unless it was changed in the meantime; on failure the input
// is kept so the user can retry.
func (c *Controller) Send(ctx context.Context) error {
	const action = "send"

	state := c.store.Snapshot()
	input := state.PendingInput
	if strings.TrimSpace(input) == "" {
		return c.invalid(action, ErrBlankInput)
	}
	if err := c.requireSession(action, state); err != nil {
		return err
	}

	release, err := c.begin(action)
	if err != nil {
		return err
	}
	defer release()

	reply, err := c.api.SendMessage(ctx, state.SessionID, input)
	if err != nil {
		return c.fail(action, err)
	}

	c.store.Dispatch(
		store.AppendMessage{Message: conversation.Message{
			UserMessage:     input,
			ChatbotResponse: reply.ChatbotResponse,
			Suggestions:     reply.Suggestions,
		}},
		store.ClearPendingInputIf{Text: input},
	)
	c.logger.Debug("message sent", "session", state.SessionID, "suggestions", len(reply.Suggestions))
	return nil
}

// EditLast withdraws the latest turn and moves its user text back into the
// input field for revision. The server-side turn is deleted first; the user
// resubmits through Send.
func (c *Controller) EditLast(ctx context.Context) error {
	const action = "edit last"

	state := c.store.Snapshot()
	last, ok := state.Last()
	if !ok {
		return c.invalid(action, ErrEmptyConversation)
	}
	if err := c.requireSession(action, state); err != nil {
		return err
	}

	release, err := c.begin(action)
	if err != nil {
		return err
	}
	defer release()

	if err := c.api.DeleteMessage(ctx, state.SessionID); err != nil {
		return c.fail(action, err)
	}

	c.store.Dispatch(
		store.RemoveLastMessage{},
		store.SetPendingInput{Text: last.UserMessage},
	)
	c.logger.Debug("last message withdrawn for editing", "session", state.SessionID)
	return nil
}

// DeleteLast removes the latest turn.
func (c *Controller) DeleteLast(ctx context.Context) error {
	const action = "delete last"

	state := c.store.Snapshot()
	if state.Len() == 0 {
		return c.invalid(action, ErrEmptyConversation)
	}
	if err := c.requireSession(action, state); err != nil {
		return err
	}

	release, err := c.begin(action)
	if err != nil {
		return err
	}
	defer release()

	if err := c.api.DeleteMessage(ctx, state.SessionID); err != nil {
		return c.fail(action, err)
	}

	c.store.Dispatch(store.RemoveLastMessage{})
	c.logger.Debug("last message deleted", "session", state.SessionID)
	return nil
}

// PickSuggestion sends a suggestion of the latest turn as the next user
// message. Suggestions of earlier turns are inert and rejected. The pending
// input is left as is.
func (c *Controller) PickSuggestion(ctx context.Context, suggestion conversation.Suggestion) error {
	const action = "pick suggestion"

	state := c.store.Snapshot()
	last, ok := state.Last()
	if !ok {
		return c.invalid(action, ErrEmptyConversation)
	}
	if strings.TrimSpace(suggestion.Text) == "" {
		return c.invalid(action, ErrBlankInput)
	}
	if _, ok := last.SuggestionByText(suggestion.Text); !ok {
		return c.invalid(action, ErrInertSuggestion)
	}
	if err := c.requireSession(action, state); err != nil {
		return err
	}

	release, err := c.begin(action)
	if err != nil {
		return err
	}
	defer release()

	reply, err := c.api.SendMessage(ctx, state.SessionID, suggestion.Text)
	if err != nil {
		return c.fail(action, err)
	}

	c.store.Dispatch(store.AppendMessage{Message: conversation.Message{
		UserMessage:     suggestion.Text,
		ChatbotResponse: reply.ChatbotResponse,
		Suggestions:     reply.Suggestions,
	}})
	c.logger.Debug("suggestion sent", "session", state.SessionID, "sid", suggestion.ID)
	return nil
}

// PickSuggestionAt picks the n-th (zero-based) suggestion of the latest turn.
func (c *Controller) PickSuggestionAt(ctx context.Context, n int) error {
	active := c.store.Snapshot().ActiveSuggestions()
	if n < 0 || n >= len(active) {
		return c.invalid("pick suggestion", ErrInertSuggestion)
	}
	return c.PickSuggestion(ctx, active[n])
}

func (c *Controller) begin(action string) (func(), error) {
	if c.opts.SerializeActions {
		if !c.inflight.CompareAndSwap(0, 1) {
			return nil, c.reject(action, ErrBusy)
		}
	} else {
		c.inflight.Add(1)
	}
	return func() { c.inflight.Add(-1) }, nil
}

func (c *Controller) requireSession(action string, state conversation.State) error {
	if c.opts.RequireSession && !state.HasSession() {
		return c.reject(action, ErrNoSession)
	}
	return nil
}

func (c *Controller) invalid(action string, cause error) error {
	err := &ValidationError{Action: action, Err: cause}
	c.logger.Debug("action rejected", "action", action, "err", cause)
	return err
}

func (c *Controller) reject(action string, cause error) error {
	c.logger.Warn("action rejected", "action", action, "err", cause)
	return fmt.Errorf("%s: %w", action, cause)
}

func (c *Controller) fail(action string, err error) error {
	c.logger.Error("action failed", "action", action, "err", err)
	return fmt.Errorf("%s: %w", action, err)
}
