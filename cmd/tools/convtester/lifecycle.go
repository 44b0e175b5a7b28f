package main

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/z-tavern/widget/internal/model/conversation"
	"github.com/zhouzirui/z-tavern/widget/internal/widget/controller"
	"github.com/zhouzirui/z-tavern/widget/internal/widget/store"
)

// runLifecycle checks the conversation lifecycle end to end: greeting, send,
// suggestion pick, delete-last and edit-last.
func runLifecycle(ctx context.Context, api controller.API, logr *log.Logger) error {
	ctrl := controller.New(api, store.New(), logr, controller.DefaultOptions())

	if err := ctrl.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	greeted := ctrl.State()
	if greeted.Len() != 1 || !greeted.Messages[0].IsGreeting() {
		return fmt.Errorf("initialize: want one greeting, got %d messages", greeted.Len())
	}
	logr.Info("greeting received", "session", greeted.SessionID, "greeting", greeted.Messages[0].ChatbotResponse)

	ctrl.UpdateInput("book a flight")
	if err := ctrl.Send(ctx); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	first := ctrl.State()
	if first.Len() != 2 || first.PendingInput != "" {
		return fmt.Errorf("send: want 2 messages and cleared input, got %d and %q", first.Len(), first.PendingInput)
	}
	if !reflect.DeepEqual(first.Messages[:1], greeted.Messages) {
		return errors.New("send: earlier messages changed")
	}
	logr.Info("message sent", "reply", first.Messages[1].ChatbotResponse, "suggestions", conversation.Texts(first.Messages[1].Suggestions))

	if len(first.Messages[1].Suggestions) > 0 {
		picked := first.Messages[1].Suggestions[0]
		if err := ctrl.PickSuggestion(ctx, picked); err != nil {
			return fmt.Errorf("pick suggestion: %w", err)
		}
		afterPick := ctrl.State()
		if afterPick.Len() != 3 || afterPick.Messages[2].UserMessage != picked.Text {
			return fmt.Errorf("pick suggestion: want %q appended, got %d messages", picked.Text, afterPick.Len())
		}
		if afterPick.SuggestionsActionable(1) {
			return errors.New("pick suggestion: older suggestions still actionable")
		}
		logr.Info("suggestion picked", "picked", picked.Text, "reply", afterPick.Messages[2].ChatbotResponse)

		if err := ctrl.DeleteLast(ctx); err != nil {
			return fmt.Errorf("delete last: %w", err)
		}
		if !reflect.DeepEqual(ctrl.State().Messages, first.Messages) {
			return errors.New("delete last: conversation did not revert to the first exchange")
		}
		logr.Info("last message deleted", "messages", ctrl.State().Len())
	} else {
		logr.Warn("suggestion pick and delete skipped: service offered no suggestions")
	}

	if err := ctrl.EditLast(ctx); err != nil {
		return fmt.Errorf("edit last: %w", err)
	}
	edited := ctrl.State()
	if !reflect.DeepEqual(edited.Messages, greeted.Messages) || edited.PendingInput != "book a flight" {
		return fmt.Errorf("edit last: want greeting only and input restored, got %d messages and %q", edited.Len(), edited.PendingInput)
	}
	logr.Info("last message withdrawn for editing", "input", edited.PendingInput)
	return nil
}

// doubleSubmitResult summarises one double-submit run.
type doubleSubmitResult struct {
	Attempts int
	Appended int
	Busy     int
	Failed   int
}

// checkDoubleSubmit fires n sends at once from a single widget. With
// serialization on, all but one should be refused with ErrBusy; with it off,
// every send appends in response-arrival order.
func checkDoubleSubmit(ctx context.Context, api controller.API, logr *log.Logger, serialize bool, n int) (doubleSubmitResult, error) {
	opts := controller.DefaultOptions()
	opts.SerializeActions = serialize
	ctrl := controller.New(api, store.New(), logr, opts)

	if err := ctrl.Initialize(ctx); err != nil {
		return doubleSubmitResult{}, err
	}
	before := ctrl.State().Len()

	result := doubleSubmitResult{Attempts: n}
	outcomes := make([]error, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			// UpdateInput and Send are separate steps, so concurrent senders may
			// pick up each other's text. Only counts are checked.
			ctrl.UpdateInput(fmt.Sprintf("message %d", i))
			outcomes[i] = ctrl.Send(ctx)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range outcomes {
		switch {
		case err == nil:
		case errors.Is(err, controller.ErrBusy):
			result.Busy++
		default:
			result.Failed++
		}
	}
	result.Appended = ctrl.State().Len() - before

	succeeded := n - result.Busy - result.Failed
	if result.Appended > succeeded {
		return result, fmt.Errorf("appended %d messages for %d successful sends", result.Appended, succeeded)
	}
	return result, nil
}
