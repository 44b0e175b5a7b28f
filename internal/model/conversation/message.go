package conversation

// Suggestion is a quick reply proposed by the chatbot for the latest turn.
// ID carries the server-issued sid when the service sends tagged suggestions.
type Suggestion struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

// Message pairs one user utterance with the chatbot's reply.
// UserMessage is empty only for the greeting inserted at session creation.
type Message struct {
	UserMessage     string       `json:"userMessage"`
	ChatbotResponse string       `json:"chatbotResponse"`
	Suggestions     []Suggestion `json:"suggestions,omitempty"`
}

// IsGreeting reports whether the message is the seed entry with no user text.
func (m Message) IsGreeting() bool {
	return m.UserMessage == ""
}

// SuggestionByText returns the suggestion whose text matches exactly.
func (m Message) SuggestionByText(text string) (Suggestion, bool) {
	for _, s := range m.Suggestions {
		if s.Text == text {
			return s, true
		}
	}
	return Suggestion{}, false
}

// Texts flattens suggestions to their display strings.
func Texts(suggestions []Suggestion) []string {
	if len(suggestions) == 0 {
		return nil
	}
	out := make([]string, len(suggestions))
	for i, s := range suggestions {
		out[i] = s.Text
	}
	return out
}
