package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/auth"
	"github.com/smartinbox/backend/internal/db"
	"github.com/smartinbox/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

// createRequestWithUser creates an HTTP request with a user id in context, as
// the auth middleware would after validating a token.
func createRequestWithUser(method, url string, body io.Reader, userID string) *http.Request {
	req := httptest.NewRequest(method, url, body)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, userID)
	return req.WithContext(ctx)
}

// setupTestAccount saves a linked account for handler tests.
func setupTestAccount(t *testing.T, pool *pgxpool.Pool, accountID, userID string, encryptedToken []byte) *models.Account {
	t.Helper()

	if encryptedToken == nil {
		encryptedToken = []byte("opaque-token")
	}

	account := &models.Account{
		ID:                   accountID,
		UserID:               userID,
		EmailAddress:         accountID + "@example.com",
		Name:                 "Handler Test",
		EncryptedAccessToken: encryptedToken,
	}
	if err := db.SaveAccount(context.Background(), pool, account); err != nil {
		t.Fatalf("SaveAccount failed: %v", err)
	}

	return account
}

// VerifyAuthCheck verifies that the handler returns 401 Unauthorized when no user is in context.
func VerifyAuthCheck(t *testing.T, handlerFunc http.HandlerFunc, method, url string) {
	t.Helper()
	req := httptest.NewRequest(method, url, nil)
	rr := httptest.NewRecorder()
	handlerFunc(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "Expected status 401 when no user id in context")
}
