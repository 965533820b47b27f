package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/models"
)

// ErrThreadNotFound is returned when a requested thread cannot be found.
var ErrThreadNotFound = errors.New("thread not found")

// SaveThread upserts a thread keyed by its provider-assigned id.
// On create, the classification flags and done=false are seeded from the
// triggering message. On update, subject and last_message_date are
// overwritten unconditionally and the participant set is merged as a union --
// it only ever grows. The flags are not touched on update.
func SaveThread(ctx context.Context, pool *pgxpool.Pool, thread *models.Thread) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO threads (
			id,
			account_id,
			subject,
			last_message_date,
			participant_ids,
			done,
			inbox_status,
			draft_status,
			sent_status
		) VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			subject = EXCLUDED.subject,
			last_message_date = EXCLUDED.last_message_date,
			participant_ids = (
				SELECT COALESCE(array_agg(DISTINCT pid), '{}')
				FROM unnest(threads.participant_ids || EXCLUDED.participant_ids) AS pid
			)
	`,
		thread.ID,
		thread.AccountID,
		thread.Subject,
		thread.LastMessageDate,
		thread.ParticipantIDs,
		thread.InboxStatus,
		thread.DraftStatus,
		thread.SentStatus,
	)

	if err != nil {
		return fmt.Errorf("failed to save thread: %w", err)
	}

	return nil
}

// GetThread returns a thread by id.
func GetThread(ctx context.Context, pool *pgxpool.Pool, threadID string) (*models.Thread, error) {
	var thread models.Thread

	err := pool.QueryRow(ctx, `
		SELECT id, account_id, subject, last_message_date, participant_ids,
			done, inbox_status, draft_status, sent_status
		FROM threads
		WHERE id = $1
	`, threadID).Scan(
		&thread.ID,
		&thread.AccountID,
		&thread.Subject,
		&thread.LastMessageDate,
		&thread.ParticipantIDs,
		&thread.Done,
		&thread.InboxStatus,
		&thread.DraftStatus,
		&thread.SentStatus,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrThreadNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	return &thread, nil
}

// tabFilter maps an inbox tab name to its classification flag column.
// Unknown tabs apply no flag filter.
func tabFilter(tab string) string {
	switch tab {
	case "inbox":
		return "AND inbox_status = TRUE"
	case "draft":
		return "AND draft_status = TRUE"
	case "sent":
		return "AND sent_status = TRUE"
	default:
		return ""
	}
}

// GetThreadsForTab returns an account's threads on one tab, newest first.
func GetThreadsForTab(ctx context.Context, pool *pgxpool.Pool, accountID, tab string, done bool, limit int) ([]*models.Thread, error) {
	query := fmt.Sprintf(`
		SELECT id, account_id, subject, last_message_date, participant_ids,
			done, inbox_status, draft_status, sent_status
		FROM threads
		WHERE account_id = $1 AND done = $2 %s
		ORDER BY last_message_date DESC
		LIMIT $3
	`, tabFilter(tab))

	rows, err := pool.Query(ctx, query, accountID, done, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get threads: %w", err)
	}
	defer rows.Close()

	var threads []*models.Thread
	for rows.Next() {
		var thread models.Thread
		if err := rows.Scan(
			&thread.ID,
			&thread.AccountID,
			&thread.Subject,
			&thread.LastMessageDate,
			&thread.ParticipantIDs,
			&thread.Done,
			&thread.InboxStatus,
			&thread.DraftStatus,
			&thread.SentStatus,
		); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, &thread)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threads: %w", err)
	}

	return threads, nil
}

// CountThreadsForTab returns the number of threads on one tab, regardless of
// the done flag.
func CountThreadsForTab(ctx context.Context, pool *pgxpool.Pool, accountID, tab string) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM threads
		WHERE account_id = $1 %s
	`, tabFilter(tab))

	var count int
	if err := pool.QueryRow(ctx, query, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count threads: %w", err)
	}

	return count, nil
}

// SetThreadDone updates the user-controlled done flag.
func SetThreadDone(ctx context.Context, pool *pgxpool.Pool, accountID, threadID string, done bool) error {
	tag, err := pool.Exec(ctx, `
		UPDATE threads
		SET done = $3
		WHERE account_id = $1 AND id = $2
	`, accountID, threadID, done)

	if err != nil {
		return fmt.Errorf("failed to update thread: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrThreadNotFound
	}

	return nil
}
