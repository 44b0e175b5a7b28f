package chat

import "time"

// Suggestion is a quick reply the bot offers after a turn. SID is only sent to
// clients that asked for the tagged wire format.
type Suggestion struct {
	SID  string `json:"sid"`
	Text string `json:"suggestion_text"`
}

// Turn pairs one user message with the chatbot's reply. The greeting turn
// stored at session creation has an empty UserMessage.
type Turn struct {
	ID              string       `json:"id"`
	UserMessage     string       `json:"user_message"`
	ChatbotResponse string       `json:"chatbot_response"`
	Suggestions     []Suggestion `json:"suggestions,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// IsGreeting reports whether the turn is the session opener.
func (t Turn) IsGreeting() bool {
	return t.UserMessage == ""
}

// SuggestionTexts returns the bare texts in order.
func (t Turn) SuggestionTexts() []string {
	if len(t.Suggestions) == 0 {
		return nil
	}
	texts := make([]string, len(t.Suggestions))
	for i, s := range t.Suggestions {
		texts[i] = s.Text
	}
	return texts
}
