package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zhouzirui/z-tavern/widget/internal/analysis/suggest"
	"github.com/zhouzirui/z-tavern/widget/internal/config"
	"github.com/zhouzirui/z-tavern/widget/internal/model/chat"
	"github.com/zhouzirui/z-tavern/widget/internal/model/persona"
	"github.com/zhouzirui/z-tavern/widget/internal/service/ai"
	chatService "github.com/zhouzirui/z-tavern/widget/internal/service/chat"
	"github.com/zhouzirui/z-tavern/widget/pkg/utils"
)

// Options 控制响应格式。
type Options struct {
	// SuggestionFormat 取 config.SuggestionFormatPlain 或 config.SuggestionFormatTagged。
	SuggestionFormat string
	DefaultPersona   string
	MaxSuggestions   int
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc      *chatService.Service
	personaStore persona.Store
	responder    ai.Responder
	opts         Options
	logger       *log.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, personaStore persona.Store, responder ai.Responder, opts Options, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	if opts.SuggestionFormat == "" {
		opts.SuggestionFormat = config.SuggestionFormatPlain
	}
	return &Handler{
		chatSvc:      chatSvc,
		personaStore: personaStore,
		responder:    responder,
		opts:         opts,
		logger:       logger,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions/create", h.handleCreateSession)
	r.Post("/messages/post", h.handleSendMessage)
	r.Put("/messages/edit", h.handleEditMessage)
	r.Delete("/messages/delete", h.handleDeleteMessage)
	r.Post("/delete", h.handleDeleteMessage)
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type sendMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type sendMessageResponse struct {
	UserMessage     string `json:"user_message"`
	ChatbotResponse string `json:"chatbot_response"`
	Suggestions     any    `json:"suggestions,omitempty"`
}

type editMessageRequest struct {
	SessionID  string `json:"session_id"`
	NewMessage string `json:"new_message"`
}

type deleteMessageRequest struct {
	SessionID string `json:"session_id"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// handleCreateSession 创建会话，问候语作为第一轮对话保存。
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	personaID := strings.TrimSpace(r.URL.Query().Get("persona"))
	if personaID == "" {
		personaID = h.opts.DefaultPersona
	}

	p, ok := h.personaStore.FindByID(personaID)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "persona not found")
		return
	}

	session, greeting, err := h.chatSvc.CreateSession(r.Context(), p.ID, p.OpeningLine)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.logger.Info("session created", "session", session.ID, "persona", p.ID)
	utils.RespondJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: session.ID,
		Message:   greeting.ChatbotResponse,
	})
}

// handleSendMessage 生成回复并追加一轮对话
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload sendMessageRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.SessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := r.Context()
	history, err := h.chatSvc.LoadTranscript(ctx, payload.SessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	turn, err := h.generateTurn(ctx, payload.SessionID, history, payload.Message)
	if err != nil {
		h.respondReplyError(w, payload.SessionID, err)
		return
	}

	turn, err = h.chatSvc.AppendTurn(ctx, payload.SessionID, turn)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.logger.Info("message answered", "session", payload.SessionID, "turn", turn.ID, "suggestions", len(turn.Suggestions))
	utils.RespondJSON(w, http.StatusOK, h.toResponse(turn))
}

// handleEditMessage 替换最后一轮的用户消息并重新生成回复
func (h *Handler) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	var payload editMessageRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.SessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if strings.TrimSpace(payload.NewMessage) == "" {
		utils.RespondError(w, http.StatusBadRequest, "new_message is required")
		return
	}

	ctx := r.Context()
	history, err := h.chatSvc.LoadTranscript(ctx, payload.SessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if len(history) == 0 {
		h.respondServiceError(w, chatService.ErrNoTurns)
		return
	}
	last := history[len(history)-1]
	if last.IsGreeting() {
		h.respondServiceError(w, chatService.ErrNotEditable)
		return
	}

	turn, err := h.generateTurn(ctx, payload.SessionID, history[:len(history)-1], payload.NewMessage)
	if err != nil {
		h.respondReplyError(w, payload.SessionID, err)
		return
	}

	if _, err := h.chatSvc.ReplaceLastTurn(ctx, payload.SessionID, last.ID, turn); err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.logger.Info("message edited", "session", payload.SessionID, "turn", last.ID)
	utils.RespondJSON(w, http.StatusOK, successResponse{Success: true})
}

// handleDeleteMessage 删除最后一轮对话。session_id 可以放在查询参数或请求体中。
func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" && r.ContentLength != 0 {
		var payload deleteMessageRequest
		if err := utils.DecodeJSON(w, r, &payload); err != nil && !errors.Is(err, utils.ErrEmptyBody) {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		sessionID = payload.SessionID
	}
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	deleted, err := h.chatSvc.DeleteLastTurn(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.logger.Info("message deleted", "session", sessionID, "turn", deleted.ID)
	utils.RespondJSON(w, http.StatusOK, successResponse{Success: true})
}

// generateTurn 请求回复生成器给出回复，并附加推荐回复。
func (h *Handler) generateTurn(ctx context.Context, sessionID string, history []chat.Turn, message string) (chat.Turn, error) {
	session, err := h.chatSvc.GetSession(ctx, sessionID)
	if err != nil {
		return chat.Turn{}, err
	}
	p, ok := h.personaStore.FindByID(session.PersonaID)
	if !ok {
		p = persona.Persona{ID: session.PersonaID, Name: session.PersonaID}
	}

	reply, err := h.responder.Reply(ctx, ai.Request{
		SessionID:   sessionID,
		Persona:     p,
		History:     history,
		UserMessage: message,
	})
	if err != nil {
		return chat.Turn{}, err
	}

	decision := suggest.Analyze(message, reply, h.opts.MaxSuggestions)
	suggestions := make([]chat.Suggestion, len(decision.Suggestions))
	for i, text := range decision.Suggestions {
		suggestions[i] = chat.Suggestion{SID: uuid.NewString(), Text: text}
	}
	h.logger.Debug("suggestions chosen", "session", sessionID, "topic", decision.Topic, "score", decision.Score)

	return chat.Turn{
		UserMessage:     message,
		ChatbotResponse: reply,
		Suggestions:     suggestions,
	}, nil
}

func (h *Handler) toResponse(turn chat.Turn) sendMessageResponse {
	resp := sendMessageResponse{
		UserMessage:     turn.UserMessage,
		ChatbotResponse: turn.ChatbotResponse,
	}
	if len(turn.Suggestions) == 0 {
		return resp
	}
	if h.opts.SuggestionFormat == config.SuggestionFormatTagged {
		resp.Suggestions = turn.Suggestions
	} else {
		resp.Suggestions = turn.SuggestionTexts()
	}
	return resp
}

func (h *Handler) respondReplyError(w http.ResponseWriter, sessionID string, err error) {
	if errors.Is(err, chatService.ErrSessionNotFound) {
		h.respondServiceError(w, err)
		return
	}
	h.logger.Error("failed to generate reply", "session", sessionID, "err", err)
	utils.RespondError(w, http.StatusBadGateway, "failed to generate reply")
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrNoTurns):
		utils.RespondError(w, http.StatusNotFound, "no message to modify")
	case errors.Is(err, chatService.ErrNotEditable):
		utils.RespondError(w, http.StatusNotFound, "no user message to edit")
	case errors.Is(err, chatService.ErrStaleTurn):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chatService.ErrPersonaRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("chat service failure", "err", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
