package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/models"
)

// ErrAccountNotFound is returned when a requested account cannot be found.
var ErrAccountNotFound = errors.New("account not found")

// SaveAccount inserts an account on first link, or refreshes the access token
// on relink. The account id comes from the provider and is never generated here.
func SaveAccount(ctx context.Context, pool *pgxpool.Pool, account *models.Account) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO accounts (id, user_id, email_address, name, encrypted_access_token)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			encrypted_access_token = EXCLUDED.encrypted_access_token,
			updated_at = now()
	`, account.ID, account.UserID, account.EmailAddress, account.Name, account.EncryptedAccessToken)

	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	return nil
}

// GetAccount returns an account by its provider-assigned id.
func GetAccount(ctx context.Context, pool *pgxpool.Pool, accountID string) (*models.Account, error) {
	var account models.Account

	err := pool.QueryRow(ctx, `
		SELECT id, user_id, email_address, name, encrypted_access_token, next_delta_token, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, accountID).Scan(
		&account.ID,
		&account.UserID,
		&account.EmailAddress,
		&account.Name,
		&account.EncryptedAccessToken,
		&account.NextDeltaToken,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// GetAccountForUser returns an account only if it belongs to the given user.
func GetAccountForUser(ctx context.Context, pool *pgxpool.Pool, accountID, userID string) (*models.Account, error) {
	account, err := GetAccount(ctx, pool, accountID)
	if err != nil {
		return nil, err
	}

	if account.UserID != userID {
		return nil, ErrAccountNotFound
	}

	return account, nil
}

// GetAccountsForUser returns summaries of all accounts linked by a user.
func GetAccountsForUser(ctx context.Context, pool *pgxpool.Pool, userID string) ([]*models.AccountSummary, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, email_address, name
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)

	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.AccountSummary
	for rows.Next() {
		var account models.AccountSummary
		if err := rows.Scan(&account.ID, &account.EmailAddress, &account.Name); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// UpdateAccountDeltaToken replaces the stored continuation token. The token
// is monotonically replaced, never merged with the previous value.
func UpdateAccountDeltaToken(ctx context.Context, pool *pgxpool.Pool, accountID, deltaToken string) error {
	tag, err := pool.Exec(ctx, `
		UPDATE accounts
		SET next_delta_token = $2, updated_at = now()
		WHERE id = $1
	`, accountID, deltaToken)

	if err != nil {
		return fmt.Errorf("failed to update delta token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// UpdateAccountSearchIndex replaces the serialized search index blob.
func UpdateAccountSearchIndex(ctx context.Context, pool *pgxpool.Pool, accountID string, index []byte) error {
	tag, err := pool.Exec(ctx, `
		UPDATE accounts
		SET search_index = $2, updated_at = now()
		WHERE id = $1
	`, accountID, index)

	if err != nil {
		return fmt.Errorf("failed to update search index: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// GetAccountSearchIndex returns the serialized search index blob, or nil if
// the account has never persisted one.
func GetAccountSearchIndex(ctx context.Context, pool *pgxpool.Pool, accountID string) ([]byte, error) {
	var index []byte

	err := pool.QueryRow(ctx, `
		SELECT search_index
		FROM accounts
		WHERE id = $1
	`, accountID).Scan(&index)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get search index: %w", err)
	}

	return index, nil
}
