package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EmotionalColor classifies the tone of a support email.
type EmotionalColor string

const (
	ColorNeutral  EmotionalColor = "neutral"
	ColorPositive EmotionalColor = "positive"
	ColorNegative EmotionalColor = "negative"
	ColorAngry    EmotionalColor = "angry"
	ColorUrgent   EmotionalColor = "urgent"
)

// Valid reports whether the color is one of the five allowed values.
func (c EmotionalColor) Valid() bool {
	switch c {
	case ColorNeutral, ColorPositive, ColorNegative, ColorAngry, ColorUrgent:
		return true
	}
	return false
}

// ExtractedTicket is the structured result of running one raw email
// through the extraction backend. Pointer fields distinguish "absent from
// the email" (null) from an empty string.
type ExtractedTicket struct {
	Date           *string        `json:"date"`
	FIO            *string        `json:"fio"`
	Object         *string        `json:"object"`
	ObjectNumber   *string        `json:"object_number"`
	ObjectType     *string        `json:"object_type"`
	PhoneNumber    *string        `json:"phone_number"`
	Email          *string        `json:"email"`
	EmotionalColor EmotionalColor `json:"emotional_color"`
	Question       *string        `json:"question"`
	ShortQuestion  *string        `json:"short_question"`
}

var ticketKeys = []string{
	"date", "fio", "object", "object_number", "object_type",
	"phone_number", "email", "emotional_color", "question", "short_question",
}

// ParseExtractedTicket validates and decodes the extraction backend's
// response text. The backend contract is exactly one JSON object with all
// ten keys present; a missing key, an unknown key, a wrong-typed value or
// an emotional_color outside the enumeration is a contract violation and
// fails the parse.
func ParseExtractedTicket(data []byte) (*ExtractedTicket, error) {
	data = bytes.TrimSpace(data)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	for _, key := range ticketKeys {
		if _, ok := raw[key]; !ok {
			return nil, fmt.Errorf("response missing key %q", key)
		}
	}
	if len(raw) != len(ticketKeys) {
		for key := range raw {
			if !isTicketKey(key) {
				return nil, fmt.Errorf("response has unknown key %q", key)
			}
		}
	}

	var ticket ExtractedTicket
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ticket); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if !ticket.EmotionalColor.Valid() {
		return nil, fmt.Errorf("emotional_color %q is not in the allowed set", ticket.EmotionalColor)
	}
	if ticket.Date != nil {
		if _, err := time.Parse("2006-01-02", *ticket.Date); err != nil {
			return nil, fmt.Errorf("date %q is not a YYYY-MM-DD date", *ticket.Date)
		}
	}
	if (ticket.Question == nil) != (ticket.ShortQuestion == nil) {
		return nil, fmt.Errorf("question and short_question must be null together")
	}
	if ticket.Email != nil {
		lowered := strings.ToLower(*ticket.Email)
		ticket.Email = &lowered
	}

	return &ticket, nil
}

func isTicketKey(key string) bool {
	for _, k := range ticketKeys {
		if k == key {
			return true
		}
	}
	return false
}
