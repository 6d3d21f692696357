package tickets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"support-mail-ingest/internal/models"
)

// Record is a persisted ticket as returned by the creation API, keyed by
// its generated identifier.
type Record struct {
	ID string `json:"id"`
	models.ExtractedTicket
}

// Client is a thin HTTP client for the external ticket persistence API.
// BaseURL includes the API prefix, e.g. "http://backend:8000/api/v1".
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the ticket API rooted at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Create persists an extracted ticket and returns its generated identifier.
func (c *Client) Create(ctx context.Context, ticket *models.ExtractedTicket) (string, error) {
	body, err := json.Marshal(ticket)
	if err != nil {
		return "", fmt.Errorf("marshaling ticket: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/preprocessed_email/", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating ticket request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var record Record
	if err := c.do(req, &record); err != nil {
		return "", err
	}
	return record.ID, nil
}

// List retrieves stored tickets with skip/limit pagination.
func (c *Client) List(ctx context.Context, skip, limit int) ([]Record, error) {
	params := url.Values{
		"skip":  {strconv.Itoa(skip)},
		"limit": {strconv.Itoa(limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/preprocessed_email/?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating list request: %w", err)
	}

	var records []Record
	if err := c.do(req, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling ticket API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading ticket API response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ticket API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding ticket API response: %w", err)
	}
	return nil
}
