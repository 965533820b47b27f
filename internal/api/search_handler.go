package api

import (
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/search"
)

// SearchHandler serves full-text search requests over an account's index.
type SearchHandler struct {
	pool *pgxpool.Pool
}

// NewSearchHandler creates a new SearchHandler instance.
func NewSearchHandler(pool *pgxpool.Pool) *SearchHandler {
	return &SearchHandler{pool: pool}
}

// SearchResponse is a ranked set of index hits.
type SearchResponse struct {
	Hits  []search.Hit `json:"hits"`
	Count int          `json:"count"`
}

// Search runs a best-effort ranked query against the account's search
// index. Empty and too-short queries return an empty result set rather than
// an error; the index is a cache, and search failures must never surface as
// fatal errors.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, ok := GetAccountForRequest(ctx, w, r, h.pool)
	if !ok {
		return
	}

	term := r.URL.Query().Get("q")

	index := search.NewIndex(account.ID)
	if err := index.Initialize(ctx, h.pool); err != nil {
		// Degrade to an empty result; the relational rows are still intact.
		log.Printf("SearchHandler: Failed to initialize index for account %s: %v", account.ID, err)
		WriteJSONResponse(w, SearchResponse{Hits: []search.Hit{}, Count: 0})
		return
	}

	hits := index.Search(term)
	if hits == nil {
		hits = []search.Hit{}
	}

	WriteJSONResponse(w, SearchResponse{Hits: hits, Count: len(hits)})
}
