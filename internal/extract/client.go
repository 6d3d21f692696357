package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"support-mail-ingest/internal/models"

	"github.com/google/uuid"
)

const (
	requestTimeout = 30 * time.Second

	// Tokens are treated as expired a minute early so a refresh never
	// races the server-side expiry.
	expirySafetyMargin = time.Minute

	// Applied when the token endpoint omits an expiry.
	fallbackTokenTTL = 1700 * time.Second
)

// Client talks to the extraction backend: an OAuth-style token endpoint
// plus a chat-completion endpoint. It is shared by all callers; the token
// cache is refreshed at most once at a time under contention.
type Client struct {
	oauthURL string
	chatURL  string
	authKey  string
	scope    string
	model    string

	httpClient *http.Client
	now        func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// New creates a Client from the extractor configuration.
func New(cfg models.ExtractorConfig) *Client {
	return &Client{
		oauthURL:   cfg.OAuthURL,
		chatURL:    cfg.ChatURL,
		authKey:    cfg.AuthKey,
		scope:      cfg.Scope,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: requestTimeout},
		now:        time.Now,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat sends a single-message completion request and returns the
// generated text. A non-2xx response is fatal for the call.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling extraction backend: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading chat response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("extraction backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return result.Choices[0].Message.Content, nil
}

// ensureToken returns a valid bearer token, refreshing it if the cached
// one is missing or near expiry. Double-checked: the fast path takes a
// read lock only, and concurrent callers behind the write lock re-check
// before refreshing so at most one refresh hits the network.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.tokenValid() {
		token := c.token
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokenValid() {
		return c.token, nil
	}
	if err := c.refreshToken(ctx); err != nil {
		return "", err
	}
	return c.token, nil
}

// tokenValid must be called with at least a read lock held.
func (c *Client) tokenValid() bool {
	return c.token != "" && c.now().Before(c.expiresAt)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"` // unix milliseconds
}

// refreshToken must be called with the write lock held.
func (c *Client) refreshToken(ctx context.Context) error {
	form := url.Values{"scope": {c.scope}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.New().String())
	req.Header.Set("Authorization", "Basic "+c.authKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling token endpoint: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var token tokenResponse
	if err := json.Unmarshal(respBody, &token); err != nil {
		return fmt.Errorf("decoding token response: %w", err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("token endpoint returned an empty access_token")
	}

	c.token = token.AccessToken
	if token.ExpiresAt > 0 {
		c.expiresAt = time.UnixMilli(token.ExpiresAt).Add(-expirySafetyMargin)
	} else {
		c.expiresAt = c.now().Add(fallbackTokenTTL)
	}
	return nil
}
