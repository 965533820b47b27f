package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/config"
	"github.com/smartinbox/backend/internal/crypto"
	"github.com/smartinbox/backend/internal/db"
	"github.com/smartinbox/backend/internal/provider"
)

// SendHandler submits composed messages to the mail provider for delivery.
type SendHandler struct {
	pool      *pgxpool.Pool
	encryptor *crypto.Encryptor
	cfg       *config.Config
}

// NewSendHandler creates a new SendHandler instance.
func NewSendHandler(pool *pgxpool.Pool, encryptor *crypto.Encryptor, cfg *config.Config) *SendHandler {
	return &SendHandler{pool: pool, encryptor: encryptor, cfg: cfg}
}

type sendRequest struct {
	AccountID string                  `json:"account_id"`
	From      provider.EmailAddress   `json:"from"`
	To        []provider.EmailAddress `json:"to"`
	CC        []provider.EmailAddress `json:"cc,omitempty"`
	BCC       []provider.EmailAddress `json:"bcc,omitempty"`
	ReplyTo   []provider.EmailAddress `json:"reply_to,omitempty"`
	Subject   string                  `json:"subject"`
	Body      string                  `json:"body"`
	InReplyTo string                  `json:"in_reply_to,omitempty"`
	ThreadID  string                  `json:"thread_id,omitempty"`
}

// SendEmail sends a composed message (new mail or a threaded reply) through
// the provider. The sent copy reaches the local store via the next sync
// rather than being written here.
func (h *SendHandler) SendEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w)
	if !ok {
		return
	}

	var request sendRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if request.AccountID == "" || len(request.To) == 0 {
		http.Error(w, "account_id and to are required", http.StatusBadRequest)
		return
	}

	account, err := db.GetAccountForUser(ctx, h.pool, request.AccountID, userID)
	if err != nil {
		if errors.Is(err, db.ErrAccountNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		log.Printf("SendHandler: Failed to get account: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	token, err := h.encryptor.Decrypt(account.EncryptedAccessToken)
	if err != nil {
		log.Printf("SendHandler: Failed to decrypt access token: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	client := provider.NewClient(h.cfg.ProviderBaseURL, token)

	response, err := client.SendEmail(ctx, &provider.SendEmailRequest{
		From:      request.From,
		To:        request.To,
		CC:        request.CC,
		BCC:       request.BCC,
		ReplyTo:   request.ReplyTo,
		Subject:   request.Subject,
		Body:      request.Body,
		InReplyTo: request.InReplyTo,
		ThreadID:  request.ThreadID,
	})
	if err != nil {
		log.Printf("SendHandler: Provider failed to send email for account %s: %v", account.ID, err)
		http.Error(w, "The email provider failed to send the email", http.StatusBadGateway)
		return
	}

	WriteJSONResponse(w, response)
}
