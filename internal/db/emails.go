package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/models"
)

// ErrEmailNotFound is returned when a requested email cannot be found.
var ErrEmailNotFound = errors.New("email not found")

// Recipient roles as stored in email_recipients.
const (
	RecipientRoleTo      = "to"
	RecipientRoleCC      = "cc"
	RecipientRoleBCC     = "bcc"
	RecipientRoleReplyTo = "reply_to"
)

// SaveEmail upserts an email keyed by its provider message id. Re-delivery of
// the same id during delta catch-up or pagination retry must converge to the
// same row: on conflict, only the mutable fields (labels, keywords,
// attachment flag, body, snippet) are overwritten; the id, thread, sender,
// subject and the created/sent/received timestamps keep their create-time
// values. last_modified_time advances on both paths.
func SaveEmail(ctx context.Context, pool *pgxpool.Pool, email *models.Email) error {
	var headers any
	if len(email.InternetHeaders) > 0 {
		headers = string(email.InternetHeaders)
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO emails (
			id,
			thread_id,
			from_id,
			subject,
			body,
			body_snippet,
			email_label,
			sys_labels,
			keywords,
			has_attachments,
			internet_message_id,
			internet_headers,
			created_time,
			sent_at,
			received_at,
			last_modified_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
		ON CONFLICT (id) DO UPDATE SET
			sys_labels = EXCLUDED.sys_labels,
			keywords = EXCLUDED.keywords,
			has_attachments = EXCLUDED.has_attachments,
			body = EXCLUDED.body,
			body_snippet = EXCLUDED.body_snippet,
			last_modified_time = now()
	`,
		email.ID,
		email.ThreadID,
		email.FromID,
		email.Subject,
		email.Body,
		email.BodySnippet,
		email.EmailLabel,
		email.SysLabels,
		email.Keywords,
		email.HasAttachments,
		email.InternetMessageID,
		headers,
		email.CreatedTime,
		email.SentAt,
		email.ReceivedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save email: %w", err)
	}

	return nil
}

// ReplaceEmailRecipients replaces one role's recipient set for an email,
// mirroring the provider's latest view of the message.
func ReplaceEmailRecipients(ctx context.Context, pool *pgxpool.Pool, emailID, role string, addressIDs []string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM email_recipients
		WHERE email_id = $1 AND role = $2
	`, emailID, role); err != nil {
		return fmt.Errorf("failed to clear recipients: %w", err)
	}

	for _, addressID := range addressIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO email_recipients (email_id, address_id, role)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, emailID, addressID, role); err != nil {
			return fmt.Errorf("failed to insert recipient: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit recipients: %w", err)
	}

	return nil
}

func scanEmail(rows pgx.Rows) (*models.Email, error) {
	var email models.Email
	var fromName, fromRaw *string

	if err := rows.Scan(
		&email.ID,
		&email.ThreadID,
		&email.FromID,
		&email.Subject,
		&email.Body,
		&email.BodySnippet,
		&email.EmailLabel,
		&email.SysLabels,
		&email.Keywords,
		&email.HasAttachments,
		&email.InternetMessageID,
		&email.InternetHeaders,
		&email.CreatedTime,
		&email.SentAt,
		&email.ReceivedAt,
		&email.LastModifiedTime,
		&email.From.Address,
		&fromName,
		&fromRaw,
	); err != nil {
		return nil, fmt.Errorf("failed to scan email: %w", err)
	}

	email.From.ID = email.FromID
	email.From.Name = fromName
	email.From.Raw = fromRaw

	return &email, nil
}

const emailSelectColumns = `
	e.id, e.thread_id, e.from_id, e.subject, COALESCE(e.body, ''), COALESCE(e.body_snippet, ''),
	e.email_label, e.sys_labels, e.keywords, e.has_attachments,
	COALESCE(e.internet_message_id, ''), e.internet_headers,
	e.created_time, e.sent_at, e.received_at, e.last_modified_time,
	a.address, a.name, a.raw`

// GetEmailsForThread returns a thread's emails oldest first, with the sender
// identity joined and the to/cc recipient sets loaded.
func GetEmailsForThread(ctx context.Context, pool *pgxpool.Pool, threadID string) ([]*models.Email, error) {
	rows, err := pool.Query(ctx, `
		SELECT `+emailSelectColumns+`
		FROM emails e
		JOIN email_addresses a ON a.id = e.from_id
		WHERE e.thread_id = $1
		ORDER BY e.sent_at
	`, threadID)

	if err != nil {
		return nil, fmt.Errorf("failed to get emails: %w", err)
	}
	defer rows.Close()

	var emails []*models.Email
	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emails: %w", err)
	}

	if err := loadRecipients(ctx, pool, emails); err != nil {
		return nil, err
	}

	return emails, nil
}

// GetEmailsForThreads returns the emails of several threads in one query,
// grouped by thread id and ordered oldest first within each thread.
func GetEmailsForThreads(ctx context.Context, pool *pgxpool.Pool, threadIDs []string) (map[string][]*models.Email, error) {
	if len(threadIDs) == 0 {
		return map[string][]*models.Email{}, nil
	}

	rows, err := pool.Query(ctx, `
		SELECT `+emailSelectColumns+`
		FROM emails e
		JOIN email_addresses a ON a.id = e.from_id
		WHERE e.thread_id = ANY($1)
		ORDER BY e.sent_at
	`, threadIDs)

	if err != nil {
		return nil, fmt.Errorf("failed to get emails: %w", err)
	}
	defer rows.Close()

	emailsByThread := make(map[string][]*models.Email)
	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emailsByThread[email.ThreadID] = append(emailsByThread[email.ThreadID], email)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emails: %w", err)
	}

	return emailsByThread, nil
}

// loadRecipients fills the To/CC/BCC/ReplyTo sets of the given emails.
func loadRecipients(ctx context.Context, pool *pgxpool.Pool, emails []*models.Email) error {
	if len(emails) == 0 {
		return nil
	}

	emailIDs := make([]string, 0, len(emails))
	byID := make(map[string]*models.Email, len(emails))
	for _, email := range emails {
		emailIDs = append(emailIDs, email.ID)
		byID[email.ID] = email
	}

	rows, err := pool.Query(ctx, `
		SELECT r.email_id, r.role, a.id, a.account_id, a.address, a.name, a.raw
		FROM email_recipients r
		JOIN email_addresses a ON a.id = r.address_id
		WHERE r.email_id = ANY($1)
	`, emailIDs)

	if err != nil {
		return fmt.Errorf("failed to get recipients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var emailID, role string
		var address models.EmailAddress
		if err := rows.Scan(&emailID, &role, &address.ID, &address.AccountID, &address.Address, &address.Name, &address.Raw); err != nil {
			return fmt.Errorf("failed to scan recipient: %w", err)
		}

		email := byID[emailID]
		if email == nil {
			continue
		}

		switch role {
		case RecipientRoleTo:
			email.To = append(email.To, address)
		case RecipientRoleCC:
			email.CC = append(email.CC, address)
		case RecipientRoleBCC:
			email.BCC = append(email.BCC, address)
		case RecipientRoleReplyTo:
			email.ReplyTo = append(email.ReplyTo, address)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating recipients: %w", err)
	}

	return nil
}

// GetRecentEmailsForIndex returns an account's most recent emails, newest
// first, capped at limit. This feeds fresh builds of the search index.
func GetRecentEmailsForIndex(ctx context.Context, pool *pgxpool.Pool, accountID string, limit int) ([]*models.Email, error) {
	rows, err := pool.Query(ctx, `
		SELECT `+emailSelectColumns+`
		FROM emails e
		JOIN email_addresses a ON a.id = e.from_id
		JOIN threads t ON t.id = e.thread_id
		WHERE t.account_id = $1
		ORDER BY e.sent_at DESC
		LIMIT $2
	`, accountID, limit)

	if err != nil {
		return nil, fmt.Errorf("failed to get recent emails: %w", err)
	}
	defer rows.Close()

	var emails []*models.Email
	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emails: %w", err)
	}

	return emails, nil
}

// CountEmailsForAccount returns the number of stored emails for an account.
func CountEmailsForAccount(ctx context.Context, pool *pgxpool.Pool, accountID string) (int, error) {
	var count int

	err := pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM emails e
		JOIN threads t ON t.id = e.thread_id
		WHERE t.account_id = $1
	`, accountID).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("failed to count emails: %w", err)
	}

	return count, nil
}
