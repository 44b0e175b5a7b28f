package conversation

// State is the read-only view the presentation layer consumes.
// Messages is never modified once a State has been published; mutations
// always produce a fresh slice.
type State struct {
	SessionID    string    `json:"sessionId"`
	Messages     []Message `json:"messages"`
	PendingInput string    `json:"pendingInput"`
	// Version increments once per applied mutation batch.
	Version uint64 `json:"version"`
}

// HasSession reports whether a session id has been issued.
func (s State) HasSession() bool {
	return s.SessionID != ""
}

// Len returns the number of turns in the conversation.
func (s State) Len() int {
	return len(s.Messages)
}

// Last returns the latest turn.
func (s State) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// IsLatest reports whether index i is the tail of the conversation.
// Edit and delete affordances exist only there.
func (s State) IsLatest(i int) bool {
	return len(s.Messages) > 0 && i == len(s.Messages)-1
}

// SuggestionsActionable reports whether the suggestions of message i can be
// clicked. Suggestions of superseded turns are display-only.
func (s State) SuggestionsActionable(i int) bool {
	return s.IsLatest(i) && len(s.Messages[i].Suggestions) > 0
}

// ActiveSuggestions returns the clickable suggestions, if any.
func (s State) ActiveSuggestions() []Suggestion {
	last, ok := s.Last()
	if !ok {
		return nil
	}
	return last.Suggestions
}
