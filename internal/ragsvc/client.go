// Package ragsvc is the stateless HTTP wrapper over the remote
// retrieval-augmented chat service.
//
// It owns the wire formats and nothing else: no conversation state, no
// retries, no caching. Historically inconsistent response shapes (the answer
// field has shipped under several names) are normalized here so the rest of
// the client only ever sees the canonical Reply{Answer, Sources}.
package ragsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raglet/raglet/internal/auth"
	"github.com/raglet/raglet/internal/log"
	"github.com/raglet/raglet/internal/observability"
)

// maxResponseBytes bounds response bodies read into memory.
const maxResponseBytes = 4 << 20

// noAnswerPlaceholder is shown when the service returns a success without
// any recognizable answer field.
const noAnswerPlaceholder = "(the service returned no answer)"

// CredentialSource supplies the current credential snapshot. *auth.Store
// satisfies it; nothing else reads the credential directly.
type CredentialSource interface {
	Current() (auth.Credential, bool)
}

// Conversation is one thread as reported by the list/create endpoints.
type Conversation struct {
	ID        int64     `json:"id"`
	Mode      string    `json:"mode"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayTitle returns the title, or "Conversation <id>" when the server has
// not assigned one yet.
func (c Conversation) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "Conversation " + strconv.FormatInt(c.ID, 10)
}

// HistoryEntry is one message from the history endpoint.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the canonical send result after normalization.
type Reply struct {
	Answer  string
	Sources []string
}

// Client talks to the remote service. It is stateless and safe for
// concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	creds     CredentialSource
	telemetry *observability.Telemetry
	logger    log.Logger
}

// Options configures optional client behavior.
type Options struct {
	// Timeout bounds each request. Zero means 60 seconds.
	Timeout time.Duration

	// Telemetry wraps requests in spans and duration metrics. Nil means no-op.
	Telemetry *observability.Telemetry

	// HTTPClient overrides the transport, for tests. Timeout still applies
	// via per-request contexts.
	HTTPClient *http.Client
}

// New creates a Client for the service at baseURL.
func New(baseURL string, creds CredentialSource, logger log.Logger, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	} else if httpClient.Timeout == 0 {
		httpClient.Timeout = timeout
	}
	telemetry := opts.Telemetry
	if telemetry == nil {
		telemetry = observability.NewNop()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      httpClient,
		creds:     creds,
		telemetry: telemetry,
		logger:    logger,
	}
}

// Login exchanges a username/password pair for a credential.
// Fails with ErrInvalidCredentials when the service rejects the pair.
func (c *Client) Login(ctx context.Context, username, password string) (auth.Credential, error) {
	body := map[string]string{"username": username, "password": password}

	var wire struct {
		Token    string `json:"token"`
		Role     string `json:"role"`
		UserID   string `json:"user_id"`
		Username string `json:"username"`
	}
	err := c.do(ctx, http.MethodPost, "/login", body, &wire)
	if err != nil {
		// The login endpoint's 401 means bad credentials, not an expired
		// session.
		if errors.Is(err, ErrUnauthorized) {
			return auth.Credential{}, ErrInvalidCredentials
		}
		return auth.Credential{}, err
	}

	role, err := auth.ParseRole(wire.Role)
	if err != nil {
		return auth.Credential{}, fmt.Errorf("login response: %w", err)
	}

	return auth.Credential{
		Token:       wire.Token,
		Role:        role,
		UserID:      wire.UserID,
		DisplayName: wire.Username,
	}, nil
}

// Conversations fetches the caller's conversation list for a mode. Order is
// server-defined and returned as received.
func (c *Client) Conversations(ctx context.Context, mode string) ([]Conversation, error) {
	var wire struct {
		Conversations []Conversation `json:"conversations"`
	}
	path := "/conversations?mode=" + mode
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	return wire.Conversations, nil
}

// CreateConversation asks the service for a new conversation in a mode.
func (c *Client) CreateConversation(ctx context.Context, mode string) (Conversation, error) {
	var conv Conversation
	body := map[string]string{"mode": mode}
	if err := c.do(ctx, http.MethodPost, "/conversations", body, &conv); err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

// History fetches a conversation's messages in server order.
func (c *Client) History(ctx context.Context, conversationID int64) ([]HistoryEntry, error) {
	var wire struct {
		History []HistoryEntry `json:"history"`
	}
	path := fmt.Sprintf("/conversations/%d/history", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	return wire.History, nil
}

// Send submits a user message and returns the normalized reply.
//
// Normalization rules: the answer may arrive under "answer", "response", or
// "message" (oldest deployments); the first non-empty wins, and a success
// with none of them yields a placeholder rather than an error. A missing
// sources array means "no sources".
func (c *Client) Send(ctx context.Context, conversationID int64, text string) (Reply, error) {
	body := map[string]string{"text": text}

	var wire struct {
		Answer   string   `json:"answer"`
		Response string   `json:"response"`
		Message  string   `json:"message"`
		Sources  []string `json:"sources"`
	}
	path := fmt.Sprintf("/conversations/%d/send", conversationID)
	if err := c.do(ctx, http.MethodPost, path, body, &wire); err != nil {
		return Reply{}, err
	}

	answer := wire.Answer
	if answer == "" {
		answer = wire.Response
	}
	if answer == "" {
		answer = wire.Message
	}
	if answer == "" {
		c.logger.Warn("send response carried no answer field", "conversation_id", conversationID)
		answer = noAnswerPlaceholder
	}

	sources := wire.Sources
	if sources == nil {
		sources = []string{}
	}
	return Reply{Answer: answer, Sources: sources}, nil
}

// do performs one request/response cycle: encode, send with bearer token and
// request ID, classify errors, decode.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	endpoint := method + " " + strings.SplitN(path, "?", 2)[0]
	ctx, span := c.telemetry.Start(ctx, endpoint)
	defer span.End()

	start := time.Now()
	err := c.roundTrip(ctx, method, path, body, out)
	c.telemetry.RecordRequest(ctx, endpoint, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred, ok := c.creds.Current(); ok {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		terr := transientFrom(err)
		c.logger.Debug("request failed", "method", method, "path", path, "timeout", terr.Timeout, "error", err)
		return terr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transientFrom(err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusBadRequest:
		return &BadRequestError{Detail: errorDetail(data)}
	case resp.StatusCode >= 500:
		return &TransientError{Err: fmt.Errorf("server error: %s", resp.Status)}
	case resp.StatusCode != http.StatusOK:
		return &BadRequestError{Detail: fmt.Sprintf("unexpected status %s", resp.Status)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errorDetail extracts the service's error text. The service reports errors
// as {"detail": "..."}; anything else yields an empty detail.
func errorDetail(data []byte) string {
	var wire struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return ""
	}
	return wire.Detail
}
