// Package chatapi is the HTTP client for the chatbot session API. It owns the
// wire format; nothing outside this package sees the service's JSON shapes.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/zhouzirui/z-tavern/widget/internal/model/conversation"
)

// Endpoint paths exposed by the chatbot service.
const (
	PathCreateSession = "/sessions/create"
	PathSendMessage   = "/messages/post"
	PathEditMessage   = "/messages/edit"
	PathDeleteMessage = "/messages/delete"
	PathPersonas      = "/personas"

	requestIDHeader = "X-Request-Id"
)

// SessionStart is the result of creating a session.
type SessionStart struct {
	SessionID string
	Greeting  string
}

// Reply is the chatbot's answer to one user message.
type Reply struct {
	ChatbotResponse string
	Suggestions     []conversation.Suggestion
}

// Persona describes a bot persona the service can host.
type Persona struct {
	ID          string
	Name        string
	Title       string
	OpeningLine string
}

// EditResult reports whether the service accepted an edit.
type EditResult struct {
	Success bool
}

// Client talks to the chatbot service. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
	persona    string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPersona asks the service for a specific persona when creating sessions.
func WithPersona(id string) Option {
	return func(c *Client) {
		c.persona = strings.TrimSpace(id)
	}
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession opens a new server-side conversation and returns its id
// together with the greeting to show first.
func (c *Client) CreateSession(ctx context.Context) (SessionStart, error) {
	const op = "create session"

	query := url.Values{}
	if c.persona != "" {
		query.Set("persona", c.persona)
	}

	var resp createSessionResponse
	if err := c.do(ctx, op, http.MethodPost, PathCreateSession, query, nil, &resp); err != nil {
		return SessionStart{}, err
	}
	if resp.SessionID == "" {
		return SessionStart{}, &ServerError{Op: op, StatusCode: http.StatusOK, Message: "response missing session_id"}
	}

	return SessionStart{SessionID: resp.SessionID, Greeting: resp.Message}, nil
}

// SendMessage posts one user message and returns the chatbot's reply.
// Callers are expected to reject blank text before calling.
func (c *Client) SendMessage(ctx context.Context, sessionID, text string) (Reply, error) {
	var resp sendMessageResponse
	body := sendMessageRequest{SessionID: sessionID, Message: text}
	if err := c.do(ctx, "send message", http.MethodPost, PathSendMessage, nil, body, &resp); err != nil {
		return Reply{}, err
	}

	return Reply{
		ChatbotResponse: resp.ChatbotResponse,
		Suggestions:     []conversation.Suggestion(resp.Suggestions),
	}, nil
}

// EditMessage replaces the text of the latest turn on the server.
// The supported contract answers with {success}.
func (c *Client) EditMessage(ctx context.Context, sessionID, newText string) (EditResult, error) {
	var resp editMessageResponse
	body := editMessageRequest{SessionID: sessionID, NewMessage: newText}
	if err := c.do(ctx, "edit message", http.MethodPut, PathEditMessage, nil, body, &resp); err != nil {
		return EditResult{}, err
	}
	return EditResult{Success: resp.Success}, nil
}

// DeleteMessage removes the latest turn from the server-side history.
func (c *Client) DeleteMessage(ctx context.Context, sessionID string) error {
	query := url.Values{}
	query.Set("session_id", sessionID)
	return c.do(ctx, "delete message", http.MethodDelete, PathDeleteMessage, query, nil, nil)
}

// ListPersonas returns the personas the service offers.
func (c *Client) ListPersonas(ctx context.Context) ([]Persona, error) {
	var resp []personaResponse
	if err := c.do(ctx, "list personas", http.MethodGet, PathPersonas, nil, nil, &resp); err != nil {
		return nil, err
	}

	personas := make([]Persona, len(resp))
	for i, p := range resp {
		personas[i] = Persona{ID: p.ID, Name: p.Name, Title: p.Title, OpeningLine: p.OpeningLine}
	}
	return personas, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "op", op, "request_id", requestID, "err", err)
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	c.logger.Debug("request completed",
		"op", op,
		"request_id", requestID,
		"status", resp.StatusCode,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServerError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		if out != nil {
			return &ServerError{Op: op, StatusCode: resp.StatusCode, Message: "empty response body"}
		}
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &ServerError{Op: op, StatusCode: resp.StatusCode, Message: "malformed response body", Err: err}
	}
	return nil
}

func errorMessage(data []byte) string {
	var payload errorResponse
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
