package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/models"
)

// SaveEmailAddress inserts a participant identity, or updates its display
// name if (account_id, address) already exists. The display name is the only
// attribute that changes across upserts: the latest non-null name wins, and
// a message carrying no name leaves the stored one untouched. The raw header
// form keeps its first-seen value. The database id is written back onto the
// model.
func SaveEmailAddress(ctx context.Context, pool *pgxpool.Pool, address *models.EmailAddress) error {
	err := pool.QueryRow(ctx, `
		INSERT INTO email_addresses (account_id, address, name, raw)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, address) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, email_addresses.name)
		RETURNING id
	`, address.AccountID, address.Address, address.Name, address.Raw).Scan(&address.ID)

	if err != nil {
		return fmt.Errorf("failed to save email address: %w", err)
	}

	return nil
}

// GetAddressesForAccount returns every participant identity seen for an
// account, used for compose autocomplete suggestions.
func GetAddressesForAccount(ctx context.Context, pool *pgxpool.Pool, accountID string) ([]*models.EmailAddress, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, account_id, address, name, raw
		FROM email_addresses
		WHERE account_id = $1
		ORDER BY address
	`, accountID)

	if err != nil {
		return nil, fmt.Errorf("failed to get addresses: %w", err)
	}
	defer rows.Close()

	var addresses []*models.EmailAddress
	for rows.Next() {
		var address models.EmailAddress
		if err := rows.Scan(&address.ID, &address.AccountID, &address.Address, &address.Name, &address.Raw); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, &address)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating addresses: %w", err)
	}

	return addresses, nil
}
