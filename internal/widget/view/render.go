package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/z-tavern/widget/internal/model/conversation"
)

// MarkdownRenderer turns chatbot markdown into terminal output.
type MarkdownRenderer interface {
	Render(in string) (string, error)
}

// RenderOptions controls transcript rendering.
type RenderOptions struct {
	Width    int
	Styles   Styles
	Markdown MarkdownRenderer
	// Busy hides the edit/delete affordances while a request is outstanding.
	Busy bool
}

// RenderTranscript draws the whole conversation. Edit/delete hints and
// numbered suggestion buttons are only drawn for the latest turn; suggestions
// of older turns are shown dimmed and unnumbered.
func RenderTranscript(state conversation.State, opts RenderOptions) string {
	width := opts.Width
	if width <= 0 {
		width = 80
	}
	bubbleWidth := max(width*7/10, 20)

	var b strings.Builder
	for i, msg := range state.Messages {
		latest := state.IsLatest(i)

		if msg.UserMessage != "" {
			bubble := renderBubble(opts.Styles.UserBubble, msg.UserMessage, bubbleWidth)
			if latest && !opts.Busy {
				bubble = lipgloss.JoinVertical(lipgloss.Right,
					opts.Styles.Affordance.Render("ctrl+e edit · ctrl+d delete"),
					bubble,
				)
			}
			b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Right, bubble))
			b.WriteString("\n")
		}

		if msg.ChatbotResponse != "" {
			body := renderResponse(msg.ChatbotResponse, opts.Markdown)
			bubble := renderBubble(opts.Styles.BotBubble, body, bubbleWidth)
			b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, opts.Styles.BotBadge.Render("CB "), bubble))
			b.WriteString("\n")
		}

		if len(msg.Suggestions) > 0 {
			b.WriteString(renderSuggestions(msg.Suggestions, state.SuggestionsActionable(i), opts.Styles))
			b.WriteString("\n")
		}

		if i < len(state.Messages)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderBubble wraps text at maxWidth but keeps short messages snug.
func renderBubble(style lipgloss.Style, text string, maxWidth int) string {
	w := lipgloss.Width(text) + style.GetHorizontalFrameSize()
	return style.Width(min(w, maxWidth)).Render(text)
}

func renderResponse(text string, md MarkdownRenderer) string {
	if md == nil {
		return text
	}
	out, err := md.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

func renderSuggestions(suggestions []conversation.Suggestion, actionable bool, styles Styles) string {
	buttons := make([]string, 0, len(suggestions))
	for i, s := range suggestions {
		if actionable {
			label := s.Text
			if i < 9 {
				label = fmt.Sprintf("%d %s", i+1, s.Text)
			}
			buttons = append(buttons, styles.Suggestion.Render(label))
			continue
		}
		buttons = append(buttons, styles.InertSuggestion.Render(s.Text))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, buttons...)
}
