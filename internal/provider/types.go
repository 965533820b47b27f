package provider

import (
	"encoding/json"
	"time"
)

// EmailAddress is a participant as reported by the provider.
type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
	Raw     string `json:"raw,omitempty"`
}

// EmailAttachment is attachment metadata as reported by the provider.
// Content bytes are fetched separately and are not part of sync payloads.
type EmailAttachment struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MimeType  string `json:"mimeType"`
	Size      int64  `json:"size"`
	Inline    bool   `json:"inline"`
	ContentID string `json:"contentId,omitempty"`
}

// EmailMessage is one message record from a delta sync page.
type EmailMessage struct {
	ID                string            `json:"id"`
	ThreadID          string            `json:"threadId"`
	CreatedTime       time.Time         `json:"createdTime"`
	ReceivedAt        time.Time         `json:"receivedAt"`
	SentAt            time.Time         `json:"sentAt"`
	InternetMessageID string            `json:"internetMessageId"`
	Subject           string            `json:"subject"`
	SysLabels         []string          `json:"sysLabels"`
	Keywords          []string          `json:"keywords"`
	From              EmailAddress      `json:"from"`
	To                []EmailAddress    `json:"to"`
	CC                []EmailAddress    `json:"cc"`
	BCC               []EmailAddress    `json:"bcc"`
	ReplyTo           []EmailAddress    `json:"replyTo"`
	HasAttachments    bool              `json:"hasAttachments"`
	Body              string            `json:"body"`
	BodySnippet       string            `json:"bodySnippet"`
	Attachments       []EmailAttachment `json:"attachments"`
	InternetHeaders   json.RawMessage   `json:"internetHeaders,omitempty"`
}

// SyncResponse is the provider's answer to a start-sync request. The
// provider-side sync job is asynchronous; Ready stays false until the
// initial continuation token is available.
type SyncResponse struct {
	Ready            bool   `json:"ready"`
	SyncUpdatedToken string `json:"syncUpdatedToken"`
}

// SyncUpdatedResponse is one page of a delta fetch. NextDeltaToken, when
// present, replaces the caller's stored continuation token; NextPageToken,
// when present, means more pages follow within this delta fetch.
type SyncUpdatedResponse struct {
	NextDeltaToken string         `json:"nextDeltaToken,omitempty"`
	NextPageToken  string         `json:"nextPageToken,omitempty"`
	Records        []EmailMessage `json:"records"`
}

// SendEmailRequest is a constructed outgoing message. InReplyTo and
// ThreadID link the message into an existing conversation.
type SendEmailRequest struct {
	From      EmailAddress   `json:"from"`
	To        []EmailAddress `json:"to"`
	CC        []EmailAddress `json:"cc,omitempty"`
	BCC       []EmailAddress `json:"bcc,omitempty"`
	ReplyTo   []EmailAddress `json:"replyTo,omitempty"`
	Subject   string         `json:"subject"`
	Body      string         `json:"body"`
	InReplyTo string         `json:"inReplyTo,omitempty"`
	ThreadID  string         `json:"threadId,omitempty"`
}

// SendEmailResponse carries the provider-assigned identifiers of a sent message.
type SendEmailResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// TokenResponse is the result of exchanging an OAuth authorization code.
type TokenResponse struct {
	AccountID   int64  `json:"accountId"`
	AccessToken string `json:"accessToken"`
	UserID      string `json:"userId"`
	UserSession string `json:"userSession"`
}

// AccountDetails describes the mailbox behind an access token.
type AccountDetails struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}
