package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/auth"
	"github.com/smartinbox/backend/internal/db"
	"github.com/smartinbox/backend/internal/models"
)

// GetUserIDFromContext extracts the authenticated user id from context and
// writes a 401 when it is missing. Returns (userID, true) on success.
func GetUserIDFromContext(ctx context.Context, w http.ResponseWriter) (string, bool) {
	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok {
		log.Println("API: No user id in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}

	return userID, true
}

// GetAccountForRequest resolves the accountId query parameter to an account
// owned by the authenticated user, writing appropriate HTTP errors when it
// fails. This is the shared ownership check used across handlers.
func GetAccountForRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, pool *pgxpool.Pool) (*models.Account, bool) {
	userID, ok := GetUserIDFromContext(ctx, w)
	if !ok {
		return nil, false
	}

	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		http.Error(w, "accountId is required", http.StatusBadRequest)
		return nil, false
	}

	account, err := db.GetAccountForUser(ctx, pool, accountID, userID)
	if err != nil {
		if errors.Is(err, db.ErrAccountNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return nil, false
		}
		log.Printf("API: Failed to get account: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}

	return account, true
}

// WriteJSONResponse writes a JSON response body, logging on failure.
// Returns false if writing failed.
func WriteJSONResponse(w http.ResponseWriter, response any) bool {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("API: Failed to write JSON response: %v", err)
		return false
	}
	return true
}
