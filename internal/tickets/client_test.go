package tickets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"support-mail-ingest/internal/models"
)

func strptr(s string) *string { return &s }

func TestCreate(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":              "a44cc2d9-189e-4000-8000-000000000000",
			"date":            gotPayload["date"],
			"emotional_color": gotPayload["emotional_color"],
		})
	}))
	defer srv.Close()

	c := New(srv.URL + "/api/v1")
	ticket := &models.ExtractedTicket{
		Date:           strptr("2026-02-10"),
		Email:          strptr("y.mironova@vostokneft.ru"),
		EmotionalColor: models.ColorUrgent,
		Question:       strptr("Авария на объекте."),
		ShortQuestion:  strptr("Авария"),
	}

	id, err := c.Create(context.Background(), ticket)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if id != "a44cc2d9-189e-4000-8000-000000000000" {
		t.Errorf("Create() id = %q, want the generated identifier", id)
	}
	if gotPath != "/api/v1/preprocessed_email/" {
		t.Errorf("Create() posted to %q, want /api/v1/preprocessed_email/", gotPath)
	}

	// The payload carries all ten schema keys, nulls included.
	for _, key := range []string{"date", "fio", "object", "object_number", "object_type",
		"phone_number", "email", "emotional_color", "question", "short_question"} {
		if _, ok := gotPayload[key]; !ok {
			t.Errorf("Create() payload missing key %q", key)
		}
	}
}

func TestCreateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "validation failed", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Create(context.Background(), &models.ExtractedTicket{EmotionalColor: models.ColorNeutral})
	if err == nil {
		t.Fatal("Create() expected an error for a 422 response")
	}
}

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("skip") != "10" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("List() query = %q, want skip=10 limit=5", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "one", "emotional_color": "neutral"},
			{"id": "two", "emotional_color": "angry"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	records, err := c.List(context.Background(), 10, 5)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("List() returned %d records, want 2", len(records))
	}
	if records[0].ID != "one" || records[1].EmotionalColor != models.ColorAngry {
		t.Errorf("List() records = %+v, want decoded ids and fields", records)
	}
}
