// Package client implements the client half of the send pipeline: a typed
// API client plus the in-flight send controller, transcript reconciliation
// and the delete grace window used by the terminal UI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/parley-app/parley/internal/model/chat"
)

// Failure kinds as reported in the server's error envelope.
const (
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindCancelled  = "cancelled"
	KindUpstream   = "upstream_unavailable"
	KindInternal   = "internal"
)

// APIError is any non-2xx response, decoded from the error envelope.
type APIError struct {
	Status         int
	Kind           string
	Message        string
	SavedMessageID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Kind, e.Message)
}

// SendResult mirrors the server's success shape for one send.
type SendResult struct {
	Message chat.Message `json:"message"`
	Reply   chat.Message `json:"reply"`
}

// ConversationPage mirrors the server's paginated conversation fetch.
type ConversationPage struct {
	Conversation chat.Conversation `json:"conversation"`
	Messages     []chat.Message    `json:"messages"`
	HasMore      bool              `json:"hasMore"`
	NextCursor   string            `json:"nextCursor"`
}

// Client talks to the parley backend.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     zap.NewNop(),
	}
}

func (c *Client) CreateConversation(ctx context.Context, title string) (chat.Conversation, error) {
	var conv chat.Conversation
	err := c.do(ctx, http.MethodPost, "/api/conversations", map[string]string{"title": title}, &conv)
	return conv, err
}

func (c *Client) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	var conversations []chat.Conversation
	err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &conversations)
	return conversations, err
}

// GetConversation fetches one backward transcript page. Leave cursor empty
// for the newest page; limit <= 0 uses the server default.
func (c *Client) GetConversation(ctx context.Context, id, cursor string, limit int) (ConversationPage, error) {
	path := "/api/conversations/" + url.PathEscape(id)
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var page ConversationPage
	err := c.do(ctx, http.MethodGet, path, nil, &page)
	return page, err
}

func (c *Client) RenameConversation(ctx context.Context, id, title string) (chat.Conversation, error) {
	var conv chat.Conversation
	err := c.do(ctx, http.MethodPatch, "/api/conversations/"+url.PathEscape(id), map[string]string{"title": title}, &conv)
	return conv, err
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/conversations/"+url.PathEscape(id), nil, nil)
}

// SendMessage submits one user turn. retryOfMessageID carries the saved
// message id from a prior upstream failure so the server reuses the
// persisted user message instead of writing a duplicate.
func (c *Client) SendMessage(ctx context.Context, conversationID, content, retryOfMessageID string) (SendResult, error) {
	body := map[string]string{"content": content}
	if retryOfMessageID != "" {
		body["retryOfMessageId"] = retryOfMessageID
	}

	var result SendResult
	err := c.do(ctx, http.MethodPost, "/api/conversations/"+url.PathEscape(conversationID)+"/messages", body, &result)
	return result, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		// Unwrap the transport layer so cancellation stays recognizable.
		if errors.Is(err, context.Canceled) {
			return context.Canceled
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return context.DeadlineExceeded
		}
		return err
	}
	defer resp.Body.Close()
	c.Logger.Debug("request done", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	apiErr := &APIError{Status: resp.StatusCode, Kind: KindInternal}
	var envelope struct {
		Error     string `json:"error"`
		Kind      string `json:"kind"`
		MessageID string `json:"messageId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		apiErr.Message = envelope.Error
		apiErr.SavedMessageID = envelope.MessageID
		if envelope.Kind != "" {
			apiErr.Kind = envelope.Kind
		}
	}
	return apiErr
}

// FailureReason maps a send failure to the short phrase shown next to the
// failed message. Raw error text never reaches the transcript.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out - press ctrl+r to retry"
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case KindCancelled:
			return "Cancelled"
		case KindUpstream:
			return "Assistant unavailable - press ctrl+r to retry"
		case KindValidation:
			return "Message rejected - edit and resend"
		case KindNotFound:
			return "Conversation no longer exists"
		}
	}
	return "Send failed - press ctrl+r to retry"
}

// SavedMessageID extracts the persisted user-message id from an upstream
// failure, if the server reported one.
func SavedMessageID(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.SavedMessageID
	}
	return ""
}

// IsCancelled reports whether err represents a user- or timeout-initiated
// abort rather than a real failure.
func IsCancelled(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindCancelled
}
