package search

import (
	"strings"
	"time"

	"github.com/smartinbox/backend/internal/models"
	"github.com/smartinbox/backend/internal/provider"
)

// Document is the denormalized per-email projection held in the index.
// SentAt is an ISO timestamp string so it sorts lexicographically.
type Document struct {
	ID       string `json:"id"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	RawBody  string `json:"rawBody"`
	From     string `json:"from"`
	ThreadID string `json:"threadId"`
	SentAt   string `json:"sentAt"`
}

// Placeholder text for documents that pass validation with individual
// fields missing.
const (
	placeholderSubject = "(No Subject)"
	placeholderBody    = "(No Body)"
	placeholderSender  = "(Unknown Sender)"
)

// ValidateDocument normalizes a candidate document into the fixed index
// shape. It returns false for documents missing an id or thread id, or
// missing all of subject, body and sender. Individually missing fields of an
// otherwise valid document are filled with placeholder text.
func ValidateDocument(document Document) (Document, bool) {
	doc := Document{
		ID:       strings.TrimSpace(document.ID),
		Subject:  strings.TrimSpace(document.Subject),
		Body:     strings.TrimSpace(document.Body),
		RawBody:  strings.TrimSpace(document.RawBody),
		From:     strings.TrimSpace(document.From),
		ThreadID: strings.TrimSpace(document.ThreadID),
		SentAt:   document.SentAt,
	}

	if doc.ID == "" || doc.ThreadID == "" {
		return Document{}, false
	}

	if doc.Subject == "" && doc.Body == "" && doc.From == "" {
		return Document{}, false
	}

	if doc.Subject == "" {
		doc.Subject = placeholderSubject
	}
	if doc.Body == "" {
		doc.Body = placeholderBody
	}
	if doc.RawBody == "" {
		doc.RawBody = doc.Body
	}
	if doc.From == "" {
		doc.From = placeholderSender
	}
	if doc.SentAt == "" {
		doc.SentAt = time.Now().UTC().Format(time.RFC3339)
	}

	return doc, true
}

// DocumentFromMessage projects a provider message into the index shape.
func DocumentFromMessage(message *provider.EmailMessage) Document {
	return Document{
		ID:       message.ID,
		Subject:  message.Subject,
		Body:     message.Body,
		RawBody:  message.BodySnippet,
		From:     message.From.Address,
		ThreadID: message.ThreadID,
		SentAt:   message.SentAt.UTC().Format(time.RFC3339),
	}
}

// DocumentFromEmail projects a stored email row into the index shape.
func DocumentFromEmail(email *models.Email) Document {
	rawBody := email.BodySnippet
	if rawBody == "" {
		rawBody = email.Body
	}

	return Document{
		ID:       email.ID,
		Subject:  email.Subject,
		Body:     email.Body,
		RawBody:  rawBody,
		From:     email.From.Address,
		ThreadID: email.ThreadID,
		SentAt:   email.SentAt.UTC().Format(time.RFC3339),
	}
}
