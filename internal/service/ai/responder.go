package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/zhouzirui/z-tavern/widget/internal/analysis/suggest"
	"github.com/zhouzirui/z-tavern/widget/internal/model/chat"
	"github.com/zhouzirui/z-tavern/widget/internal/model/persona"
)

// Request is everything a responder needs to produce one reply.
type Request struct {
	SessionID   string
	Persona     persona.Persona
	History     []chat.Turn
	UserMessage string
}

// Responder produces the chatbot's reply to one user message.
type Responder interface {
	Reply(ctx context.Context, req Request) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, req Request) (string, error)

// Reply calls f.
func (f ResponderFunc) Reply(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Scripted answers from a fixed table keyed by the topic of the user message.
// It is used when no model is configured and in tests.
type Scripted struct{}

// NewScripted returns the table-driven responder.
func NewScripted() *Scripted {
	return &Scripted{}
}

// Reply implements Responder.
func (s *Scripted) Reply(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	decision := suggest.Classify(req.UserMessage)
	// A Caser holds state and is not safe to share.
	subject := cases.Title(language.English).String(decision.Subject)

	switch decision.Topic {
	case suggest.Greeting:
		return fmt.Sprintf("Hello again! %s here. How can I help?", req.Persona.Name), nil
	case suggest.Travel:
		return "Sure, where would you like to go?", nil
	case suggest.Destination:
		return fmt.Sprintf("Great, %s it is. When would you like to travel?", subject), nil
	case suggest.Schedule:
		return fmt.Sprintf("Got it, %s. Economy or business class?", strings.ToLower(subject)), nil
	case suggest.Lodging:
		return "I can find you a room. How many nights will you stay?", nil
	case suggest.Support:
		return "Sorry about that. Let's fix it together: have you tried signing out and back in?", nil
	case suggest.Billing:
		return "I can help with billing. Would you like a refund or a copy of your invoice?", nil
	case suggest.Drinks:
		return fmt.Sprintf("Good choice! One %s coming right up.", strings.ToLower(subject)), nil
	case suggest.Thanks:
		return "You're welcome! Anything else I can do?", nil
	default:
		return fmt.Sprintf("You said: %q. Could you tell me a bit more?", strings.TrimSpace(req.UserMessage)), nil
	}
}

// WithFallback returns a responder that answers with secondary whenever
// primary fails, unless the request itself was cancelled.
func WithFallback(primary, secondary Responder, logger *log.Logger) Responder {
	return ResponderFunc(func(ctx context.Context, req Request) (string, error) {
		reply, err := primary.Reply(ctx, req)
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		if logger != nil {
			logger.Warn("primary responder failed, using fallback", "session", req.SessionID, "err", err)
		}
		return secondary.Reply(ctx, req)
	})
}
