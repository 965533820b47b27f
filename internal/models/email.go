package models

import (
	"encoding/json"
	"time"
)

// EmailAddress is a participant identity scoped to an account,
// unique per (account_id, address).
type EmailAddress struct {
	ID        string  `json:"id"`
	AccountID string  `json:"-"`
	Address   string  `json:"address"`
	Name      *string `json:"name,omitempty"`
	Raw       *string `json:"raw,omitempty"`
}

// Thread groups messages sharing a provider-assigned thread identifier.
type Thread struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"-"`
	Subject         string    `json:"subject"`
	LastMessageDate time.Time `json:"last_message_date"`
	ParticipantIDs  []string  `json:"participant_ids"`
	Done            bool      `json:"done"`
	InboxStatus     bool      `json:"inbox_status"`
	DraftStatus     bool      `json:"draft_status"`
	SentStatus      bool      `json:"sent_status"`
	Emails          []Email   `json:"emails,omitempty"`
}

// Email is a single message belonging to exactly one thread. The ID is the
// provider's message id; created/sent/received timestamps are set once on
// first insert and never changed afterwards.
type Email struct {
	ID                string          `json:"id"`
	ThreadID          string          `json:"thread_id"`
	FromID            string          `json:"-"`
	From              EmailAddress    `json:"from"`
	Subject           string          `json:"subject"`
	Body              string          `json:"body"`
	BodySnippet       string          `json:"body_snippet"`
	EmailLabel        string          `json:"email_label"`
	SysLabels         []string        `json:"sys_labels"`
	Keywords          []string        `json:"keywords"`
	HasAttachments    bool            `json:"has_attachments"`
	InternetMessageID string          `json:"internet_message_id"`
	InternetHeaders   json.RawMessage `json:"internet_headers,omitempty"`
	CreatedTime       time.Time       `json:"created_time"`
	SentAt            time.Time       `json:"sent_at"`
	ReceivedAt        time.Time       `json:"received_at"`
	LastModifiedTime  time.Time       `json:"last_modified_time"`
	To                []EmailAddress  `json:"to,omitempty"`
	CC                []EmailAddress  `json:"cc,omitempty"`
	BCC               []EmailAddress  `json:"bcc,omitempty"`
	ReplyTo           []EmailAddress  `json:"reply_to,omitempty"`
	Attachments       []Attachment    `json:"attachments,omitempty"`
}

// Email classification labels, first match wins in the order sent > draft > inbox.
const (
	EmailLabelInbox = "inbox"
	EmailLabelSent  = "sent"
	EmailLabelDraft = "draft"
)

// Attachment metadata for a single email. Content bytes are not stored
// relationally; they live in external blob storage.
type Attachment struct {
	ID        string  `json:"id"`
	EmailID   string  `json:"email_id"`
	Name      string  `json:"name"`
	MimeType  string  `json:"mime_type"`
	Size      int64   `json:"size"`
	Inline    bool    `json:"inline"`
	ContentID *string `json:"content_id,omitempty"`
}
