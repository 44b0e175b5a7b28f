package store

import (
	"slices"

	"github.com/zhouzirui/z-tavern/widget/internal/model/conversation"
)

// Action is a single state transition understood by Reduce.
type Action interface {
	isAction()
}

// SetSession replaces the session identifier.
type SetSession struct {
	ID string
}

// AppendMessage adds a turn at the tail of the conversation.
type AppendMessage struct {
	Message conversation.Message
}

// SetPendingInput replaces the staged input text.
type SetPendingInput struct {
	Text string
}

// ClearPendingInputIf empties the staged input only while it still holds
// Text, so input typed after a submission survives the reply.
type ClearPendingInputIf struct {
	Text string
}

// RemoveLastMessage drops the tail turn. It is a no-op on an empty conversation.
type RemoveLastMessage struct{}

// ReplaceLastMessage merges Patch into the tail turn. It is a no-op on an
// empty conversation.
type ReplaceLastMessage struct {
	Patch Patch
}

// Patch lists the fields to overwrite; nil fields are left alone.
type Patch struct {
	UserMessage     *string
	ChatbotResponse *string
	Suggestions     *[]conversation.Suggestion
}

func (SetSession) isAction()          {}
func (AppendMessage) isAction()       {}
func (SetPendingInput) isAction()     {}
func (ClearPendingInputIf) isAction() {}
func (RemoveLastMessage) isAction()   {}
func (ReplaceLastMessage) isAction()  {}

// Reduce returns the state that results from applying a to s. The input state
// is never modified: any change to the conversation produces a new slice, so
// previously published snapshots stay valid.
func Reduce(s conversation.State, a Action) conversation.State {
	switch a := a.(type) {
	case SetSession:
		s.SessionID = a.ID
	case AppendMessage:
		msgs := make([]conversation.Message, len(s.Messages), len(s.Messages)+1)
		copy(msgs, s.Messages)
		s.Messages = append(msgs, cloneMessage(a.Message))
	case SetPendingInput:
		s.PendingInput = a.Text
	case ClearPendingInputIf:
		if s.PendingInput == a.Text {
			s.PendingInput = ""
		}
	case RemoveLastMessage:
		if len(s.Messages) == 0 {
			return s
		}
		s.Messages = slices.Clone(s.Messages[:len(s.Messages)-1])
	case ReplaceLastMessage:
		if len(s.Messages) == 0 {
			return s
		}
		msgs := slices.Clone(s.Messages)
		last := msgs[len(msgs)-1]
		if a.Patch.UserMessage != nil {
			last.UserMessage = *a.Patch.UserMessage
		}
		if a.Patch.ChatbotResponse != nil {
			last.ChatbotResponse = *a.Patch.ChatbotResponse
		}
		if a.Patch.Suggestions != nil {
			last.Suggestions = slices.Clone(*a.Patch.Suggestions)
		}
		msgs[len(msgs)-1] = last
		s.Messages = msgs
	}
	return s
}

func cloneMessage(m conversation.Message) conversation.Message {
	m.Suggestions = slices.Clone(m.Suggestions)
	return m
}
