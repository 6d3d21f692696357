package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"support-mail-ingest/internal/models"
)

func newTestClient(oauthURL, chatURL string) *Client {
	return New(models.ExtractorConfig{
		OAuthURL: oauthURL,
		ChatURL:  chatURL,
		AuthKey:  "dGVzdC1rZXk=",
		Scope:    "GIGACHAT_API_PERS",
		Model:    "GigaChat",
	})
}

func tokenHandler(refreshes *atomic.Int32, expiresAt int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		resp := map[string]any{"access_token": "tok1"}
		if expiresAt > 0 {
			resp["expires_at"] = expiresAt
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestEnsureTokenSingleRefreshUnderContention(t *testing.T) {
	var refreshes atomic.Int32
	srv := httptest.NewServer(tokenHandler(&refreshes, time.Now().Add(time.Hour).UnixMilli()))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	ctx := context.Background()

	var wg sync.WaitGroup
	tokens := make([]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = c.ensureToken(ctx)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("ensureToken() #%d error: %v", i, errs[i])
		}
		if tokens[i] != "tok1" {
			t.Errorf("ensureToken() #%d = %q, want %q", i, tokens[i], "tok1")
		}
	}
	if n := refreshes.Load(); n != 1 {
		t.Errorf("token endpoint called %d times, want 1", n)
	}
}

func TestEnsureTokenReusesCachedToken(t *testing.T) {
	var refreshes atomic.Int32
	srv := httptest.NewServer(tokenHandler(&refreshes, time.Now().Add(time.Hour).UnixMilli()))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.ensureToken(ctx); err != nil {
			t.Fatalf("ensureToken() error: %v", err)
		}
	}
	if n := refreshes.Load(); n != 1 {
		t.Errorf("token endpoint called %d times, want 1", n)
	}
}

func TestRefreshTokenExpiryFallback(t *testing.T) {
	var refreshes atomic.Int32
	srv := httptest.NewServer(tokenHandler(&refreshes, 0))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, err := c.ensureToken(context.Background()); err != nil {
		t.Fatalf("ensureToken() error: %v", err)
	}

	want := now.Add(fallbackTokenTTL)
	if !c.expiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", c.expiresAt, want)
	}
}

func TestRefreshTokenExpiryFromServer(t *testing.T) {
	serverExpiry := time.Now().Add(30 * time.Minute).UnixMilli()
	var refreshes atomic.Int32
	srv := httptest.NewServer(tokenHandler(&refreshes, serverExpiry))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	if _, err := c.ensureToken(context.Background()); err != nil {
		t.Fatalf("ensureToken() error: %v", err)
	}

	want := time.UnixMilli(serverExpiry).Add(-expirySafetyMargin)
	if !c.expiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", c.expiresAt, want)
	}
}

func TestChat(t *testing.T) {
	var refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.Handle("/oauth", tokenHandler(&refreshes, time.Now().Add(time.Hour).UnixMilli()))

	var gotAuth, gotBody string
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) == 1 {
			gotBody = req.Messages[0].Content
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"ok":true}`}},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(srv.URL+"/oauth", srv.URL+"/chat")
	got, err := c.Chat(context.Background(), "extract this")
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if got != `{"ok":true}` {
		t.Errorf("Chat() = %q, want the generated text", got)
	}
	if gotAuth != "Bearer tok1" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok1")
	}
	if gotBody != "extract this" {
		t.Errorf("prompt sent = %q, want %q", gotBody, "extract this")
	}
}

func TestChatHTTPError(t *testing.T) {
	var refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.Handle("/oauth", tokenHandler(&refreshes, time.Now().Add(time.Hour).UnixMilli()))
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(srv.URL+"/oauth", srv.URL+"/chat")
	_, err := c.Chat(context.Background(), "extract this")
	if err == nil {
		t.Fatal("Chat() expected an error for a 500 response")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("Chat() error = %v, want it to mention the status code", err)
	}
}

func TestRefreshTokenAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	_, err := c.ensureToken(context.Background())
	if err == nil {
		t.Fatal("ensureToken() expected an error for a 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("ensureToken() error = %v, want it to mention the status code", err)
	}
}
