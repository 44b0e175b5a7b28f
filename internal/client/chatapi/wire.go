package chatapi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zhouzirui/z-tavern/widget/internal/model/conversation"
)

// Field names below are fixed by the chatbot service and must not change.

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type sendMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type sendMessageResponse struct {
	UserMessage     string          `json:"user_message,omitempty"`
	ChatbotResponse string          `json:"chatbot_response"`
	Suggestions     wireSuggestions `json:"suggestions,omitempty"`
}

type editMessageRequest struct {
	SessionID  string `json:"session_id"`
	NewMessage string `json:"new_message"`
}

type editMessageResponse struct {
	Success bool `json:"success"`
}

type personaResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	OpeningLine string `json:"openingLine"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// taggedSuggestion is the object form of a suggestion on the wire.
type taggedSuggestion struct {
	SID            string `json:"sid"`
	SuggestionText string `json:"suggestion_text"`
}

// wireSuggestions accepts either a list of strings or a list of
// {sid, suggestion_text} objects and normalises both to conversation.Suggestion.
// A list mixing both forms is rejected.
type wireSuggestions []conversation.Suggestion

func (w *wireSuggestions) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*w = nil
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return fmt.Errorf("suggestions: expected array: %w", err)
	}
	if len(items) == 0 {
		*w = nil
		return nil
	}

	kind := shapeOf(items[0])
	out := make([]conversation.Suggestion, 0, len(items))
	for i, raw := range items {
		if got := shapeOf(raw); got != kind {
			return fmt.Errorf("suggestions: element %d is %s, expected %s", i, got, kind)
		}

		switch kind {
		case shapeString:
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return fmt.Errorf("suggestions: element %d: %w", i, err)
			}
			out = append(out, conversation.Suggestion{Text: text})
		case shapeTagged:
			var tagged taggedSuggestion
			if err := json.Unmarshal(raw, &tagged); err != nil {
				return fmt.Errorf("suggestions: element %d: %w", i, err)
			}
			out = append(out, conversation.Suggestion{ID: tagged.SID, Text: tagged.SuggestionText})
		default:
			return fmt.Errorf("suggestions: element %d has unsupported shape", i)
		}
	}

	*w = out
	return nil
}

type suggestionShape string

const (
	shapeString  suggestionShape = "string"
	shapeTagged  suggestionShape = "object"
	shapeUnknown suggestionShape = "unknown"
)

func shapeOf(raw json.RawMessage) suggestionShape {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return shapeUnknown
	}
	switch trimmed[0] {
	case '"':
		return shapeString
	case '{':
		return shapeTagged
	default:
		return shapeUnknown
	}
}
