package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-tavern/widget/internal/config"
	"github.com/zhouzirui/z-tavern/widget/internal/model/chat"
)

// ErrEmptyReply is returned when the model answers with no text.
var ErrEmptyReply = errors.New("model returned an empty reply")

// Service encapsulates LLM-backed replies.
type Service struct {
	prompts      *PersonaPromptManager
	historyLimit int
	logger       *log.Logger
	chain        compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the Ark chat model from cfg and wraps it in a chain.
func NewService(ctx context.Context, cfg config.AIConfig, logger *log.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg.HistoryLimit, logger)
}

// NewServiceWithModel builds the reply chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, historyLimit int, logger *log.Logger) (*Service, error) {
	if logger == nil {
		logger = log.Default()
	}
	if historyLimit <= 0 {
		historyLimit = 10
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		prompts:      NewPersonaPromptManager(),
		historyLimit: historyLimit,
		logger:       logger,
		chain:        runnable,
	}, nil
}

// Reply implements Responder.
func (s *Service) Reply(ctx context.Context, req Request) (string, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(req))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	content := strings.TrimSpace(response.Content)
	if content == "" {
		return "", ErrEmptyReply
	}

	s.logger.Debug("generated reply", "session", req.SessionID, "persona", req.Persona.ID, "length", len(content))
	return content, nil
}

func (s *Service) buildChainInput(req Request) map[string]any {
	return map[string]any{
		"system":  s.prompts.BuildSystemPrompt(&req.Persona),
		"history": buildHistoryMessages(req.History, s.historyLimit),
		"query":   req.UserMessage,
	}
}

// buildHistoryMessages keeps the last limit turns. The greeting contributes
// only an assistant message.
func buildHistoryMessages(turns []chat.Turn, limit int) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	start := 0
	if len(turns) > limit {
		start = len(turns) - limit
	}

	history := make([]*schema.Message, 0, 2*(len(turns)-start))
	for _, turn := range turns[start:] {
		if turn.UserMessage != "" {
			history = append(history, schema.UserMessage(turn.UserMessage))
		}
		if turn.ChatbotResponse != "" {
			history = append(history, schema.AssistantMessage(turn.ChatbotResponse, nil))
		}
	}
	return history
}

var _ Responder = (*Service)(nil)
