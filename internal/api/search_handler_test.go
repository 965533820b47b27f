package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartinbox/backend/internal/search"
	"github.com/smartinbox/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	handler := NewSearchHandler(pool)
	setupTestAccount(t, pool, "acct-1", "user-1", nil)

	// Seed a persisted index directly; the handler restores it per request.
	index := search.NewIndex("acct-1")
	index.Insert(search.Document{
		ID:       "email-1",
		Subject:  "Quarterly report",
		Body:     "Numbers look good",
		From:     "alice@example.com",
		ThreadID: "thread-1",
		SentAt:   "2026-02-01T09:00:00Z",
	})
	require.NoError(t, index.Save(context.Background(), pool))

	t.Run("requires auth", func(t *testing.T) {
		VerifyAuthCheck(t, handler.Search, http.MethodGet, "/api/v1/search?accountId=acct-1&q=report")
	})

	t.Run("returns ranked hits", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/search?accountId=acct-1&q=quarterly+report", nil, "user-1")
		rr := httptest.NewRecorder()
		handler.Search(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var response SearchResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		require.Equal(t, 1, response.Count)
		assert.Equal(t, "email-1", response.Hits[0].Document.ID)
		assert.Greater(t, response.Hits[0].Score, 0.0)
	})

	t.Run("short query returns empty result, not an error", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/search?accountId=acct-1&q=a", nil, "user-1")
		rr := httptest.NewRecorder()
		handler.Search(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var response SearchResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		assert.Equal(t, 0, response.Count)
		assert.Empty(t, response.Hits)
	})

	t.Run("rejects another user's account", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/search?accountId=acct-1&q=report", nil, "user-2")
		rr := httptest.NewRecorder()
		handler.Search(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
