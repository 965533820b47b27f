package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/config"
	"github.com/smartinbox/backend/internal/crypto"
	"github.com/smartinbox/backend/internal/db"
	"github.com/smartinbox/backend/internal/models"
	"github.com/smartinbox/backend/internal/provider"
	"github.com/smartinbox/backend/internal/sync"
)

// LinkHandler handles the account-linking OAuth callback and the foreground
// initial sync of a freshly linked account.
type LinkHandler struct {
	pool      *pgxpool.Pool
	encryptor *crypto.Encryptor
	engine    *sync.Engine
	cfg       *config.Config
}

// NewLinkHandler creates a new LinkHandler instance.
func NewLinkHandler(pool *pgxpool.Pool, encryptor *crypto.Encryptor, engine *sync.Engine, cfg *config.Config) *LinkHandler {
	return &LinkHandler{pool: pool, encryptor: encryptor, engine: engine, cfg: cfg}
}

// Callback completes the provider's OAuth flow: it exchanges the
// authorization code for an access token, fetches the mailbox identity, and
// upserts the account (relinking refreshes the stored token). The account id
// comes from the provider.
func (h *LinkHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w)
	if !ok {
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}

	token, err := provider.ExchangeCode(ctx, h.cfg.ProviderBaseURL, h.cfg.ProviderClientID, h.cfg.ProviderClientSecret, code)
	if err != nil {
		log.Printf("LinkHandler: Code exchange failed: %v", err)
		http.Error(w, "Failed to link account", http.StatusBadGateway)
		return
	}

	client := provider.NewClient(h.cfg.ProviderBaseURL, token.AccessToken)
	details, err := client.GetAccountDetails(ctx)
	if err != nil {
		log.Printf("LinkHandler: Failed to fetch account details: %v", err)
		http.Error(w, "Failed to link account", http.StatusBadGateway)
		return
	}

	encryptedToken, err := h.encryptor.Encrypt(token.AccessToken)
	if err != nil {
		log.Printf("LinkHandler: Failed to encrypt access token: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	account := &models.Account{
		ID:                   strconv.FormatInt(token.AccountID, 10),
		UserID:               userID,
		EmailAddress:         details.Email,
		Name:                 details.Name,
		EncryptedAccessToken: encryptedToken,
	}
	if err := db.SaveAccount(ctx, h.pool, account); err != nil {
		log.Printf("LinkHandler: Failed to save account: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, map[string]string{"account_id": account.ID})
}

type initialSyncRequest struct {
	AccountID string `json:"account_id"`
}

// InitialSync performs the full initial sync for a linked account in the
// foreground. Failures propagate to the caller as 5xx; a failed initial sync
// leaves the account without mail until the client retries.
func (h *LinkHandler) InitialSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w)
	if !ok {
		return
	}

	var request initialSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.AccountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	if _, err := db.GetAccountForUser(ctx, h.pool, request.AccountID, userID); err != nil {
		if errors.Is(err, db.ErrAccountNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		log.Printf("LinkHandler: Failed to get account: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.engine.InitialSync(ctx, request.AccountID); err != nil {
		log.Printf("LinkHandler: Initial sync failed for account %s: %v", request.AccountID, err)
		http.Error(w, "Failed to sync account", http.StatusBadGateway)
		return
	}

	WriteJSONResponse(w, map[string]bool{"success": true})
}
