package models

import "time"

// Account represents one linked mailbox. The ID is assigned by the mail
// provider during the OAuth code exchange, never generated locally.
type Account struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	EmailAddress         string    `json:"email_address"`
	Name                 string    `json:"name"`
	EncryptedAccessToken []byte    `json:"-"`
	NextDeltaToken       *string   `json:"-"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// AccountSummary is the account shape returned by list endpoints.
// Credentials and sync state are never included.
type AccountSummary struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	Name         string `json:"name"`
}
