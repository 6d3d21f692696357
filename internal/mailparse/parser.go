package mailparse

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strconv"
	"strings"

	"support-mail-ingest/internal/models"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// ErrNoAddress is returned when a From header carries no angle-bracket
// address form, e.g. a bare "support@example.com" or garbage. Callers
// skip such messages rather than enqueue them with an empty sender.
var ErrNoAddress = errors.New("no angle-bracket address in From header")

const (
	// Fallback subjects, in place of an exception the rest of the
	// pipeline would have to care about.
	subjectMissing     = "(no subject)"
	subjectDecodeError = "(subject decode error)"

	// Trailing marker some gateway appends to delivered bodies.
	successMarker = "Success\r\n"
)

// Parse converts a fetched IMAP message into a RawEmail ready for the
// work queue.
func Parse(msg *goimap.Message) (*models.RawEmail, error) {
	section := &goimap.BodySectionName{}
	r := msg.GetBody(section)
	if r == nil {
		return nil, io.EOF
	}
	return parseReader(r, msg.Uid)
}

func parseReader(r io.Reader, uid uint32) (*models.RawEmail, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, err
	}

	header := mr.Header

	email := &models.RawEmail{
		UID:     strconv.FormatUint(uint64(uid), 10),
		Subject: DecodeSubject(header.Get("Subject")),
		Date:    header.Get("Date"),
		TraceID: uuid.New().String(),
	}

	from, err := ExtractAddress(header.Get("From"))
	if err != nil {
		return nil, fmt.Errorf("parsing From header: %w", err)
	}
	email.From = from

	body, err := extractBody(mr)
	if err != nil {
		return nil, err
	}
	email.Body = body

	return email, nil
}

// extractBody returns the decoded text of the first text/plain part whose
// disposition is not an attachment, with the trailing success marker
// stripped if present. A message without such a part yields an empty body.
func extractBody(mr *mail.Reader) (string, error) {
	var text string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return "", err
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := h.ContentType()
		if err != nil {
			continue
		}
		if contentType != "text/plain" {
			continue
		}
		body, err := io.ReadAll(p.Body)
		if err != nil {
			continue
		}
		text = string(body)
		break
	}

	if strings.HasSuffix(text, successMarker) {
		text = strings.TrimSpace(strings.TrimSuffix(text, successMarker))
	}
	return text, nil
}

// ExtractAddress extracts the address between angle brackets in a From
// header, e.g. `"Yana Mironova" <y.mironova@vostokneft.ru>`. Headers
// without an angle-bracket pair return ErrNoAddress.
func ExtractAddress(fromHeader string) (string, error) {
	start := strings.Index(fromHeader, "<")
	end := strings.Index(fromHeader, ">")
	if start < 0 || end < start {
		return "", ErrNoAddress
	}
	return strings.TrimSpace(fromHeader[start+1 : end]), nil
}

// DecodeSubject decodes a MIME-encoded subject header (e.g. "=?UTF-8?B?...?=")
// to plain text. A missing header or an undecodable encoding yields a
// fixed fallback string rather than an error.
func DecodeSubject(encoded string) string {
	if encoded == "" {
		return subjectMissing
	}
	decoder := &mime.WordDecoder{CharsetReader: charset.Reader}
	decoded, err := decoder.DecodeHeader(encoded)
	if err != nil {
		return subjectDecodeError
	}
	return decoded
}
