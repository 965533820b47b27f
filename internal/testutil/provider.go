package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/smartinbox/backend/internal/provider"
)

// SyncPage is one page served by the stub provider during a delta fetch.
type SyncPage struct {
	Records        []provider.EmailMessage
	NextDeltaToken string
	// Fail makes the stub return 500 for this page, simulating a mid-fetch
	// provider failure.
	Fail bool
}

// StubProvider is an in-process HTTP server that mimics the mail provider's
// sync API. Tests configure how many status polls return not-ready and which
// pages each delta token yields.
type StubProvider struct {
	Server *httptest.Server

	mu sync.Mutex
	// Number of sync status polls that report ready=false before the
	// continuation token is handed out.
	ReadyAfterPolls int
	pollCount       int
	// Pages keyed by delta token; within a fetch, subsequent pages are keyed
	// by the page tokens the stub itself generates ("<token>:page<n>").
	pages map[string][]SyncPage

	startSyncCalls int
	updatedCalls   int
	sentRequests   []provider.SendEmailRequest
}

// NewStubProvider starts a stub provider server. It is shut down automatically
// when the test finishes.
func NewStubProvider(t *testing.T) *StubProvider {
	t.Helper()

	s := &StubProvider{
		pages: make(map[string][]SyncPage),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /email/sync", s.handleStartSync)
	mux.HandleFunc("GET /email/sync/updated", s.handleUpdated)
	mux.HandleFunc("POST /email/messages", s.handleSend)
	mux.HandleFunc("GET /account", s.handleAccount)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Server.Close)

	return s
}

// URL returns the stub's base URL for use as a provider base URL.
func (s *StubProvider) URL() string {
	return s.Server.URL
}

// SetPages configures the pages returned for a delta token. The last page's
// NextDeltaToken is what the client should end up storing.
func (s *StubProvider) SetPages(deltaToken string, pages []SyncPage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[deltaToken] = pages
}

// StartSyncCalls reports how many start-sync requests were received.
func (s *StubProvider) StartSyncCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startSyncCalls
}

// UpdatedCalls reports how many delta fetch requests were received.
func (s *StubProvider) UpdatedCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedCalls
}

// SentRequests returns the send requests received so far.
func (s *StubProvider) SentRequests() []provider.SendEmailRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]provider.SendEmailRequest, len(s.sentRequests))
	copy(out, s.sentRequests)
	return out
}

// InitialDeltaToken is the continuation token handed out once the
// provider-side sync job reports ready.
const InitialDeltaToken = "delta-initial"

func (s *StubProvider) handleStartSync(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startSyncCalls++
	s.pollCount++

	resp := provider.SyncResponse{}
	if s.pollCount > s.ReadyAfterPolls {
		resp.Ready = true
		resp.SyncUpdatedToken = InitialDeltaToken
	}
	writeJSON(w, resp)
}

func (s *StubProvider) handleUpdated(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updatedCalls++

	token := r.URL.Query().Get("pageToken")
	pageIdx := 0
	if token == "" {
		token = r.URL.Query().Get("deltaToken")
	} else if i := strings.LastIndex(token, ":"); i >= 0 {
		// Page tokens are "<deltaToken>:page<n>".
		var n int
		if _, err := fmt.Sscanf(token[i+1:], "page%d", &n); err == nil {
			pageIdx = n
			token = token[:i]
		}
	}

	pages, ok := s.pages[token]
	if !ok || pageIdx >= len(pages) {
		http.Error(w, "unknown token", http.StatusBadRequest)
		return
	}

	page := pages[pageIdx]
	if page.Fail {
		http.Error(w, "provider unavailable", http.StatusInternalServerError)
		return
	}

	resp := provider.SyncUpdatedResponse{
		Records:        page.Records,
		NextDeltaToken: page.NextDeltaToken,
	}
	if pageIdx+1 < len(pages) {
		resp.NextPageToken = fmt.Sprintf("%s:page%d", token, pageIdx+1)
	}
	writeJSON(w, resp)
}

func (s *StubProvider) handleSend(w http.ResponseWriter, r *http.Request) {
	var req provider.SendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.sentRequests = append(s.sentRequests, req)
	n := len(s.sentRequests)
	s.mu.Unlock()

	writeJSON(w, provider.SendEmailResponse{
		ID:       fmt.Sprintf("sent-%d", n),
		ThreadID: req.ThreadID,
	})
}

func (s *StubProvider) handleAccount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, provider.AccountDetails{
		Email: "stub@example.com",
		Name:  "Stub Account",
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
