// Package rest talks to the chat backend's JSON API. The Client implements
// the synchronizer's message gateway: message persistence, read-receipt
// acknowledgement and full conversation fetches all go through here.
package rest

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

	"pulse-chat/go-client/pkg/models"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("rest: backend returned %d", e.Status)
	}
	return fmt.Sprintf("rest: backend returned %d: %s", e.Status, e.Body)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// NewClient builds a client for the given backend. Pass an empty token for
// endpoints that do not require auth.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the auth token, for refresh after re-login.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) do(ctx context.Context, method, path string, body any, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("rest: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("rest: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("rest: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("rest: decode response: %w", err)
	}
	return nil
}

// CreateMessage persists a new message. The response carries the message as
// the server stored it, including the conversation id the server chose when
// the request did not name one.
func (c *Client) CreateMessage(ctx context.Context, req models.SendRequest) (models.SendResult, error) {
	var result models.SendResult
	if err := c.do(ctx, http.MethodPost, "/api/messages", req, nil, &result); err != nil {
		return models.SendResult{}, err
	}
	return result, nil
}

// MarkMessagesRead acknowledges a batch of read messages to the backend.
// The body is the bare message array.
func (c *Client) MarkMessagesRead(ctx context.Context, messages []models.Message) error {
	return c.do(ctx, http.MethodPut, "/api/messages/read", messages, nil, nil)
}

// FetchConversations retrieves the caller's full conversation collection.
func (c *Client) FetchConversations(ctx context.Context) ([]models.Conversation, error) {
	var conversations []models.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// SearchUsers looks contacts up by username prefix.
func (c *Client) SearchUsers(ctx context.Context, search string) ([]models.User, error) {
	query := url.Values{}
	query.Set("search", search)
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, query, &users); err != nil {
		return nil, err
	}
	return users, nil
}
