package api

import (
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/db"
	"github.com/smartinbox/backend/internal/models"
)

// AccountsHandler serves account listing and compose autocomplete requests.
type AccountsHandler struct {
	pool *pgxpool.Pool
}

// NewAccountsHandler creates a new AccountsHandler instance.
func NewAccountsHandler(pool *pgxpool.Pool) *AccountsHandler {
	return &AccountsHandler{pool: pool}
}

// GetAccounts returns the linked accounts of the authenticated user.
func (h *AccountsHandler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w)
	if !ok {
		return
	}

	accounts, err := db.GetAccountsForUser(ctx, h.pool, userID)
	if err != nil {
		log.Printf("AccountsHandler: Failed to list accounts: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if accounts == nil {
		accounts = []*models.AccountSummary{}
	}

	WriteJSONResponse(w, accounts)
}

// Suggestion is one compose autocomplete entry.
type Suggestion struct {
	Address string  `json:"address"`
	Name    *string `json:"name,omitempty"`
}

// GetSuggestions returns every address ever seen on an account, for compose
// autocomplete.
func (h *AccountsHandler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, ok := GetAccountForRequest(ctx, w, r, h.pool)
	if !ok {
		return
	}

	addresses, err := db.GetAddressesForAccount(ctx, h.pool, account.ID)
	if err != nil {
		log.Printf("AccountsHandler: Failed to get suggestions: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	suggestions := make([]Suggestion, 0, len(addresses))
	for _, address := range addresses {
		suggestions = append(suggestions, Suggestion{Address: address.Address, Name: address.Name})
	}

	WriteJSONResponse(w, suggestions)
}
