package view

import "github.com/charmbracelet/lipgloss"

// Styles groups the lipgloss styles used by the transcript and chrome.
type Styles struct {
	Header          lipgloss.Style
	UserBubble      lipgloss.Style
	BotBubble       lipgloss.Style
	BotBadge        lipgloss.Style
	Affordance      lipgloss.Style
	Suggestion      lipgloss.Style
	InertSuggestion lipgloss.Style
	Toast           lipgloss.Style
	Status          lipgloss.Style
	Help            lipgloss.Style
}

// DefaultStyles mirrors the widget palette: purple user bubbles, grey bot bubbles.
func DefaultStyles() Styles {
	purple := lipgloss.Color("#7d37ff")
	grey := lipgloss.AdaptiveColor{Light: "#DDDDDD", Dark: "#3A3A3A"}
	muted := lipgloss.AdaptiveColor{Light: "#9A9A9A", Dark: "#6B6B6B"}

	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).
			Background(purple).Padding(0, 1),
		UserBubble: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).
			Background(purple).Padding(0, 1),
		BotBubble:  lipgloss.NewStyle().Background(grey).Padding(0, 1),
		BotBadge:   lipgloss.NewStyle().Bold(true).Foreground(purple),
		Affordance: lipgloss.NewStyle().Foreground(muted).Italic(true),
		Suggestion: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			BorderForeground(purple).Padding(0, 1),
		InertSuggestion: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).Foreground(muted).Padding(0, 1),
		Toast:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true),
		Status: lipgloss.NewStyle().Foreground(muted),
		Help:   lipgloss.NewStyle().Foreground(muted),
	}
}
