package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/db"
	"github.com/smartinbox/backend/internal/models"
	"github.com/smartinbox/backend/internal/sync"
	"github.com/smartinbox/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedThreadWithEmail creates one inbox thread with a single email from the
// given sender.
func seedThreadWithEmail(t *testing.T, pool *pgxpool.Pool, accountID, threadID, emailID, fromAddr, fromName string, sentAt time.Time) {
	t.Helper()

	ctx := context.Background()

	from := &models.EmailAddress{AccountID: accountID, Address: fromAddr}
	if fromName != "" {
		from.Name = &fromName
	}
	require.NoError(t, db.SaveEmailAddress(ctx, pool, from))

	require.NoError(t, db.SaveThread(ctx, pool, &models.Thread{
		ID:              threadID,
		AccountID:       accountID,
		Subject:         "Subject of " + threadID,
		LastMessageDate: sentAt,
		ParticipantIDs:  []string{from.ID},
		InboxStatus:     true,
	}))

	require.NoError(t, db.SaveEmail(ctx, pool, &models.Email{
		ID:                emailID,
		ThreadID:          threadID,
		FromID:            from.ID,
		Subject:           "Subject of " + threadID,
		Body:              "Body of " + emailID,
		EmailLabel:        models.EmailLabelInbox,
		SysLabels:         []string{"inbox"},
		Keywords:          []string{},
		InternetMessageID: "<" + emailID + "@example.com>",
		CreatedTime:       sentAt,
		SentAt:            sentAt,
		ReceivedAt:        sentAt,
	}))
}

func newTestThreadsHandler(t *testing.T, pool *pgxpool.Pool) *ThreadsHandler {
	t.Helper()

	stub := testutil.NewStubProvider(t)
	engine := sync.NewEngine(pool, testutil.GetTestEncryptor(t), nil, stub.URL(), 2)
	return NewThreadsHandler(pool, engine)
}

func TestGetThreads(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	handler := newTestThreadsHandler(t, pool)
	setupTestAccount(t, pool, "acct-1", "user-1", nil)

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	seedThreadWithEmail(t, pool, "acct-1", "thread-old", "email-old", "alice@example.com", "Alice", base)
	seedThreadWithEmail(t, pool, "acct-1", "thread-new", "email-new", "bob@example.com", "Bob", base.Add(time.Hour))

	t.Run("requires auth", func(t *testing.T) {
		VerifyAuthCheck(t, handler.GetThreads, http.MethodGet, "/api/v1/threads?accountId=acct-1&tab=inbox")
	})

	t.Run("returns threads newest first with emails attached", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/threads?accountId=acct-1&tab=inbox", nil, "user-1")
		rr := httptest.NewRecorder()
		handler.GetThreads(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var threads []models.Thread
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &threads))
		require.Len(t, threads, 2)
		assert.Equal(t, "thread-new", threads[0].ID)
		assert.Equal(t, "thread-old", threads[1].ID)
		require.Len(t, threads[0].Emails, 1)
		assert.Equal(t, "email-new", threads[0].Emails[0].ID)
		assert.Equal(t, "bob@example.com", threads[0].Emails[0].From.Address)
	})
}

func TestGetThreadCount(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	handler := newTestThreadsHandler(t, pool)
	setupTestAccount(t, pool, "acct-1", "user-1", nil)

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	seedThreadWithEmail(t, pool, "acct-1", "thread-1", "email-1", "alice@example.com", "Alice", base)

	req := createRequestWithUser(http.MethodGet, "/api/v1/threads/count?accountId=acct-1&tab=inbox", nil, "user-1")
	rr := httptest.NewRecorder()
	handler.GetThreadCount(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"count": 1}`, rr.Body.String())
}

func TestSetDone(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	handler := newTestThreadsHandler(t, pool)
	setupTestAccount(t, pool, "acct-1", "user-1", nil)

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	seedThreadWithEmail(t, pool, "acct-1", "thread-1", "email-1", "alice@example.com", "Alice", base)

	t.Run("marks a thread done", func(t *testing.T) {
		body := strings.NewReader(`{"thread_id": "thread-1", "done": true}`)
		req := createRequestWithUser(http.MethodPost, "/api/v1/threads/done?accountId=acct-1", body, "user-1")
		rr := httptest.NewRecorder()
		handler.SetDone(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		thread, err := db.GetThread(context.Background(), pool, "thread-1")
		require.NoError(t, err)
		assert.True(t, thread.Done)
	})

	t.Run("404s for unknown thread", func(t *testing.T) {
		body := strings.NewReader(`{"thread_id": "no-such-thread", "done": true}`)
		req := createRequestWithUser(http.MethodPost, "/api/v1/threads/done?accountId=acct-1", body, "user-1")
		rr := httptest.NewRecorder()
		handler.SetDone(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestGetReplyDetails(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	handler := newTestThreadsHandler(t, pool)
	account := setupTestAccount(t, pool, "acct-1", "user-1", nil)

	ctx := context.Background()
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	// Incoming message from Alice, addressed to the mailbox owner and Carol.
	seedThreadWithEmail(t, pool, "acct-1", "thread-1", "email-1", "alice@example.com", "Alice", base)

	own := &models.EmailAddress{AccountID: "acct-1", Address: account.EmailAddress}
	require.NoError(t, db.SaveEmailAddress(ctx, pool, own))
	carol := &models.EmailAddress{AccountID: "acct-1", Address: "carol@example.com"}
	require.NoError(t, db.SaveEmailAddress(ctx, pool, carol))
	require.NoError(t, db.ReplaceEmailRecipients(ctx, pool, "email-1", db.RecipientRoleTo, []string{own.ID, carol.ID}))

	t.Run("reply targets only the sender", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/reply-details?accountId=acct-1&threadId=thread-1&replyType=reply", nil, "user-1")
		rr := httptest.NewRecorder()
		handler.GetReplyDetails(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var details ReplyDetails
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &details))
		require.Len(t, details.To, 1)
		assert.Equal(t, "alice@example.com", details.To[0].Value)
		assert.Equal(t, "Alice", details.To[0].Label)
		assert.Empty(t, details.CC)
		assert.Equal(t, "<email-1@example.com>", details.InReplyTo)
	})

	t.Run("reply-all includes other recipients but never the own address", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/reply-details?accountId=acct-1&threadId=thread-1&replyType=replyAll", nil, "user-1")
		rr := httptest.NewRecorder()
		handler.GetReplyDetails(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var details ReplyDetails
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &details))

		values := make([]string, 0, len(details.To))
		for _, recipient := range details.To {
			values = append(values, recipient.Value)
		}
		assert.ElementsMatch(t, []string{"alice@example.com", "carol@example.com"}, values)
		assert.NotContains(t, values, account.EmailAddress)
	})

	t.Run("rejects unknown reply type", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/reply-details?accountId=acct-1&threadId=thread-1&replyType=forward", nil, "user-1")
		rr := httptest.NewRecorder()
		handler.GetReplyDetails(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("404s for a thread on another user's account", func(t *testing.T) {
		setupTestAccount(t, pool, "acct-2", "user-2", nil)
		seedThreadWithEmail(t, pool, "acct-2", "thread-other", "email-other", "dave@example.com", "Dave", base)

		req := createRequestWithUser(http.MethodGet, "/api/v1/reply-details?accountId=acct-1&threadId=thread-other&replyType=reply", nil, "user-1")
		rr := httptest.NewRecorder()
		handler.GetReplyDetails(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.NotContains(t, rr.Body.String(), "dave@example.com")
	})

	t.Run("404s for a missing thread", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/reply-details?accountId=acct-1&threadId=no-such-thread&replyType=reply", nil, "user-1")
		rr := httptest.NewRecorder()
		handler.GetReplyDetails(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
