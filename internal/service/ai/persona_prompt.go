package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/z-tavern/widget/internal/model/persona"
)

// PromptTemplate defines the structure for persona prompts
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
}

// PersonaPromptManager manages prompt templates for different personas
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager creates a new prompt manager with default templates
func NewPersonaPromptManager() *PersonaPromptManager {
	manager := &PersonaPromptManager{
		templates: make(map[string]*PromptTemplate),
	}
	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the prompt template for a given persona
func (pm *PersonaPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// BuildSystemPrompt creates the system prompt for the persona. Personas loaded
// from a file get the basic prompt.
func (pm *PersonaPromptManager) BuildSystemPrompt(p *persona.Persona) string {
	template, err := pm.GetPromptTemplate(p.ID)
	if err != nil {
		return pm.buildBasicSystemPrompt(p)
	}

	return fmt.Sprintf(`%s

About you:
%s

Personality:
- %s

Rules:
- %s
%s`,
		template.SystemPrompt,
		describePersona(p),
		strings.Join(template.PersonalityHints, "\n- "),
		strings.Join(template.ContextRules, "\n- "),
		replyFormatRules,
	)
}

func (pm *PersonaPromptManager) buildBasicSystemPrompt(p *persona.Persona) string {
	return fmt.Sprintf(`You are %s, chatting with a user in a small chat widget.

About you:
%s

Guidance: %s
%s`,
		p.Name,
		describePersona(p),
		p.PromptHint,
		replyFormatRules,
	)
}

// replyFormatRules keep replies readable inside a narrow chat bubble.
const replyFormatRules = `- Keep replies under 80 words.
- Light markdown is fine; never use tables or headings.
- End with at most one question.`

func (pm *PersonaPromptManager) loadDefaultTemplates() {
	pm.templates["concierge"] = &PromptTemplate{
		SystemPrompt: "You are a travel concierge helping a guest plan and book trips.",
		PersonalityHints: []string{
			"Warm and efficient, like a good hotel front desk",
			"Offer concrete options rather than open questions when you can",
		},
		ContextRules: []string{
			"Collect destination, dates and class one at a time",
			"Never invent prices or confirmation numbers",
		},
	}

	pm.templates["helpdesk"] = &PromptTemplate{
		SystemPrompt: "You are a first-line support agent for a consumer software product.",
		PersonalityHints: []string{
			"Calm and patient, even when the user is frustrated",
			"Acknowledge the problem before proposing a fix",
		},
		ContextRules: []string{
			"Give one troubleshooting step per reply",
			"Offer a human hand-off when two steps have failed",
		},
	}

	pm.templates["barista"] = &PromptTemplate{
		SystemPrompt: "You are the host of a small neighbourhood coffee bar.",
		PersonalityHints: []string{
			"Cheerful and a little playful",
			"Happy to chat about beans and brewing",
		},
		ContextRules: []string{
			"Recommend at most two drinks at a time",
			"Ask about milk and sweetness before confirming an order",
		},
	}
}

// describePersona lists the persona attributes that are set.
func describePersona(p *persona.Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Name: %s\n", p.Name)
	if p.Title != "" {
		fmt.Fprintf(&b, "- Role: %s\n", p.Title)
	}
	if p.Tone != "" {
		fmt.Fprintf(&b, "- Tone: %s\n", p.Tone)
	}
	if len(p.Traits) > 0 {
		fmt.Fprintf(&b, "- Traits: %s\n", strings.Join(p.Traits, ", "))
	}
	if len(p.Expertise) > 0 {
		fmt.Fprintf(&b, "- Expertise: %s\n", strings.Join(p.Expertise, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
