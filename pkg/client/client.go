// Package client talks to the chat backend over HTTP: loading and creating
// chats, opening message streams, and submitting feedback.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/credentials"
	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/utils"
)

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 4 * 1024

// Config configures a Client.
type Config struct {
	// BaseURL is the backend origin, e.g. http://localhost:8081.
	BaseURL string

	// Tokens supplies the bearer token for every request.
	Tokens credentials.TokenSource

	// HTTPClient defaults to a client without a timeout; streams are
	// long-lived and bounded by the request context instead.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client is a backend API client. It implements stream.Opener.
type Client struct {
	baseURL string
	tokens  credentials.TokenSource
	http    *http.Client
	logger  *slog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if cfg.Tokens == nil {
		return nil, errors.New("client token source is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		tokens:  cfg.Tokens,
		http:    httpClient,
		logger:  logger.OrNop(cfg.Logger),
	}, nil
}

type streamRequest struct {
	Content string `json:"content"`
}

type createChatRequest struct {
	Title string `json:"title,omitempty"`
}

// OpenStream posts content to the chat's stream endpoint and returns the
// response body once a success status has been received. The caller owns the
// body. A non-success status yields a *chat.TransportError.
func (c *Client) OpenStream(ctx context.Context, projectID, chatID, content string) (io.ReadCloser, error) {
	path := "/api/chat/" + url.PathEscape(projectID) + "/chats/" + url.PathEscape(chatID) + "/messages/stream"

	resp, err := c.do(ctx, http.MethodPost, path, streamRequest{Content: content}, "text/event-stream")
	if err != nil {
		return nil, err
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, &chat.TransportError{StatusCode: resp.StatusCode, Err: errors.New("response has no body")}
	}

	c.logger.Debug("stream opened",
		"project_id", projectID,
		"chat_id", chatID,
		"status", resp.StatusCode,
	)

	return resp.Body, nil
}

// LoadChat fetches a chat and its messages.
func (c *Client) LoadChat(ctx context.Context, chatID string) (*chat.ChatWithMessages, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/chat/"+url.PathEscape(chatID), nil, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &chat.ChatWithMessages{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, &chat.TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding chat: %w", err)}
	}
	return out, nil
}

// CreateChat creates an empty chat in projectID.
func (c *Client) CreateChat(ctx context.Context, projectID, title string) (*chat.ChatWithMessages, error) {
	path := "/api/chat/" + url.PathEscape(projectID) + "/chats"

	resp, err := c.do(ctx, http.MethodPost, path, createChatRequest{Title: title}, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &chat.ChatWithMessages{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, &chat.TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding chat: %w", err)}
	}
	return out, nil
}

// SubmitFeedback records a rating on an assistant message.
func (c *Client) SubmitFeedback(ctx context.Context, fb chat.Feedback) error {
	if err := fb.Validate(); err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/feedback", fb, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// do issues an authenticated request and returns the response when its
// status is in the 2xx range. Any other outcome is closed and converted into
// a chat error.
func (c *Client) do(ctx context.Context, method, path string, body any, accept string) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, &chat.PreconditionError{Reason: "not signed in", Err: err}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", utils.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, chat.ErrCancelled
		}
		return nil, &chat.TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &chat.TransportError{
			StatusCode: resp.StatusCode,
			Body:       errorBody(resp.Body),
		}
	}

	return resp, nil
}

// errorBody reads a bounded prefix of a failed response and unwraps the
// backend's {"error": "..."} envelope when present.
func errorBody(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))

	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}

	return strings.TrimSpace(string(raw))
}
