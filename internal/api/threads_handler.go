package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/db"
	"github.com/smartinbox/backend/internal/models"
	"github.com/smartinbox/backend/internal/sync"
)

// threadPageSize is how many threads one list request returns.
const threadPageSize = 15

// ThreadsHandler serves thread list, count and reply-detail requests.
type ThreadsHandler struct {
	pool   *pgxpool.Pool
	engine *sync.Engine
}

// NewThreadsHandler creates a new ThreadsHandler instance.
func NewThreadsHandler(pool *pgxpool.Pool, engine *sync.Engine) *ThreadsHandler {
	return &ThreadsHandler{pool: pool, engine: engine}
}

// GetThreads returns one tab of an account's threads, newest first, with
// each thread's emails attached oldest first. Reading the list
// opportunistically triggers an incremental sync in the background; the
// response never waits for it and never reflects its errors.
func (h *ThreadsHandler) GetThreads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, ok := GetAccountForRequest(ctx, w, r, h.pool)
	if !ok {
		return
	}

	h.engine.SyncInBackground(account.ID)

	tab := r.URL.Query().Get("tab")
	done := r.URL.Query().Get("done") == "true"

	threads, err := db.GetThreadsForTab(ctx, h.pool, account.ID, tab, done, threadPageSize)
	if err != nil {
		log.Printf("ThreadsHandler: Failed to get threads: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	threadIDs := make([]string, 0, len(threads))
	for _, thread := range threads {
		threadIDs = append(threadIDs, thread.ID)
	}

	emailsByThread, err := db.GetEmailsForThreads(ctx, h.pool, threadIDs)
	if err != nil {
		log.Printf("ThreadsHandler: Failed to get thread emails: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	result := make([]*models.Thread, 0, len(threads))
	for _, thread := range threads {
		for _, email := range emailsByThread[thread.ID] {
			thread.Emails = append(thread.Emails, *email)
		}
		result = append(result, thread)
	}

	WriteJSONResponse(w, result)
}

// GetThreadCount returns the number of threads on one tab.
func (h *ThreadsHandler) GetThreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, ok := GetAccountForRequest(ctx, w, r, h.pool)
	if !ok {
		return
	}

	count, err := db.CountThreadsForTab(ctx, h.pool, account.ID, r.URL.Query().Get("tab"))
	if err != nil {
		log.Printf("ThreadsHandler: Failed to count threads: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, map[string]int{"count": count})
}

type setDoneRequest struct {
	ThreadID string `json:"thread_id"`
	Done     bool   `json:"done"`
}

// SetDone marks a thread done or not done, moving it between the main tabs
// and the done view.
func (h *ThreadsHandler) SetDone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, ok := GetAccountForRequest(ctx, w, r, h.pool)
	if !ok {
		return
	}

	var req setDoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ThreadID == "" {
		http.Error(w, "thread_id is required", http.StatusBadRequest)
		return
	}

	if err := db.SetThreadDone(ctx, h.pool, account.ID, req.ThreadID, req.Done); err != nil {
		if errors.Is(err, db.ErrThreadNotFound) {
			http.Error(w, "Thread not found", http.StatusNotFound)
			return
		}
		log.Printf("ThreadsHandler: Failed to update thread done state: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, map[string]bool{"success": true})
}

// ReplyRecipient is one prefilled compose field entry.
type ReplyRecipient struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ReplyDetails prefills a reply or reply-all compose form.
type ReplyDetails struct {
	To        []ReplyRecipient `json:"to"`
	CC        []ReplyRecipient `json:"cc"`
	Subject   string           `json:"subject"`
	InReplyTo string           `json:"in_reply_to"`
}

// GetReplyDetails computes reply recipients from the last message in the
// thread not sent by the account's own address.
func (h *ThreadsHandler) GetReplyDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, ok := GetAccountForRequest(ctx, w, r, h.pool)
	if !ok {
		return
	}

	threadID := r.URL.Query().Get("threadId")
	if threadID == "" {
		http.Error(w, "threadId is required", http.StatusBadRequest)
		return
	}

	replyType := r.URL.Query().Get("replyType")
	if replyType != "reply" && replyType != "replyAll" {
		http.Error(w, "replyType must be reply or replyAll", http.StatusBadRequest)
		return
	}

	thread, err := db.GetThread(ctx, h.pool, threadID)
	if err != nil {
		if errors.Is(err, db.ErrThreadNotFound) {
			http.Error(w, "Thread not found", http.StatusNotFound)
			return
		}
		log.Printf("ThreadsHandler: Failed to get thread: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if thread.AccountID != account.ID {
		http.Error(w, "Thread not found", http.StatusNotFound)
		return
	}

	emails, err := db.GetEmailsForThread(ctx, h.pool, threadID)
	if err != nil {
		log.Printf("ThreadsHandler: Failed to get thread emails: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Last message not sent by this mailbox.
	var lastExternal *models.Email
	for i := len(emails) - 1; i >= 0; i-- {
		if emails[i].From.Address != account.EmailAddress {
			lastExternal = emails[i]
			break
		}
	}

	if lastExternal == nil {
		http.Error(w, "No external email found in thread", http.StatusNotFound)
		return
	}

	details := ReplyDetails{
		To:        formatRecipients([]models.EmailAddress{lastExternal.From}, account.EmailAddress),
		CC:        []ReplyRecipient{},
		Subject:   lastExternal.Subject,
		InReplyTo: lastExternal.InternetMessageID,
	}

	if replyType == "replyAll" {
		details.To = formatRecipients(append([]models.EmailAddress{lastExternal.From}, lastExternal.To...), account.EmailAddress)
		details.CC = formatRecipients(lastExternal.CC, account.EmailAddress)
	}

	WriteJSONResponse(w, details)
}

// formatRecipients converts addresses to compose entries, dropping the
// account's own address so replies never target the sender themselves.
func formatRecipients(addresses []models.EmailAddress, ownAddress string) []ReplyRecipient {
	recipients := make([]ReplyRecipient, 0, len(addresses))
	for _, address := range addresses {
		if address.Address == ownAddress {
			continue
		}
		label := address.Address
		if address.Name != nil && *address.Name != "" {
			label = *address.Name
		}
		recipients = append(recipients, ReplyRecipient{Label: label, Value: address.Address})
	}
	return recipients
}
