package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/models"
)

// SaveAttachment upserts attachment metadata keyed by the provider's
// attachment id. Content bytes are deliberately not stored here; they live
// in external blob storage.
func SaveAttachment(ctx context.Context, pool *pgxpool.Pool, attachment *models.Attachment) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO email_attachments (id, email_id, name, mime_type, size, inline, content_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			mime_type = EXCLUDED.mime_type,
			size = EXCLUDED.size,
			inline = EXCLUDED.inline,
			content_id = EXCLUDED.content_id
	`,
		attachment.ID,
		attachment.EmailID,
		attachment.Name,
		attachment.MimeType,
		attachment.Size,
		attachment.Inline,
		attachment.ContentID,
	)

	if err != nil {
		return fmt.Errorf("failed to save attachment: %w", err)
	}

	return nil
}

// GetAttachmentsForEmail returns the attachment metadata of one email.
func GetAttachmentsForEmail(ctx context.Context, pool *pgxpool.Pool, emailID string) ([]*models.Attachment, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, email_id, name, mime_type, size, inline, content_id
		FROM email_attachments
		WHERE email_id = $1
		ORDER BY name
	`, emailID)

	if err != nil {
		return nil, fmt.Errorf("failed to get attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*models.Attachment
	for rows.Next() {
		var attachment models.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.EmailID,
			&attachment.Name,
			&attachment.MimeType,
			&attachment.Size,
			&attachment.Inline,
			&attachment.ContentID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, &attachment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}

	return attachments, nil
}
