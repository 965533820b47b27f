package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/db"
)

// populateLimit caps how many emails a fresh index build reads from the
// relational store. The index is a cache over the most recent mail; the
// relational rows remain the source of truth.
const populateLimit = 100

// maxHits caps the number of ranked results returned by a search.
const maxHits = 10

// minTermLength is the shortest query accepted; anything shorter returns an
// empty result instead of an error.
const minTermLength = 2

// BM25 ranking parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Hit is one ranked search result.
type Hit struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Index is a per-account in-memory full-text index over email documents,
// persisted as a JSON blob on the account row. Concurrent sync invocations
// for the same account race on that blob with last-writer-wins semantics;
// the engine's per-account serialization keeps the window small, and the
// index can always be rebuilt from the relational store.
type Index struct {
	accountID  string
	docs       map[string]Document
	postings   map[string]map[string]int
	docLengths map[string]int
}

// snapshot is the serialized wire form of an Index.
type snapshot struct {
	Docs       map[string]Document       `json:"docs"`
	Postings   map[string]map[string]int `json:"postings"`
	DocLengths map[string]int            `json:"docLengths"`
}

// NewIndex creates an empty index for one account.
func NewIndex(accountID string) *Index {
	return &Index{
		accountID:  accountID,
		docs:       make(map[string]Document),
		postings:   make(map[string]map[string]int),
		docLengths: make(map[string]int),
	}
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	return len(ix.docs)
}

// Initialize restores the index from the account's persisted blob. If no
// blob exists, or the blob fails to deserialize, the index is rebuilt from
// the most recent emails in the relational store and persisted.
func (ix *Index) Initialize(ctx context.Context, pool *pgxpool.Pool) error {
	blob, err := db.GetAccountSearchIndex(ctx, pool, ix.accountID)
	if err != nil {
		return fmt.Errorf("failed to load search index for account %s: %w", ix.accountID, err)
	}

	if len(blob) > 0 {
		if err := ix.restore(blob); err == nil {
			return nil
		}
		log.Printf("Search: stale or corrupt index blob for account %s, rebuilding", ix.accountID)
	}

	return ix.Rebuild(ctx, pool)
}

// Rebuild discards the live index, reconstructs it from the relational store
// and persists the result.
func (ix *Index) Rebuild(ctx context.Context, pool *pgxpool.Pool) error {
	ix.docs = make(map[string]Document)
	ix.postings = make(map[string]map[string]int)
	ix.docLengths = make(map[string]int)

	if err := ix.populate(ctx, pool); err != nil {
		return fmt.Errorf("failed to rebuild index for account %s: %w", ix.accountID, err)
	}

	if err := ix.Save(ctx, pool); err != nil {
		log.Printf("Search: failed to persist rebuilt index for account %s: %v", ix.accountID, err)
	}

	return nil
}

func (ix *Index) populate(ctx context.Context, pool *pgxpool.Pool) error {
	emails, err := db.GetRecentEmailsForIndex(ctx, pool, ix.accountID, populateLimit)
	if err != nil {
		return err
	}

	for _, email := range emails {
		ix.Insert(DocumentFromEmail(email))
	}

	return nil
}

// Insert validates and adds one document to the live index. Validation
// failures are logged and skipped; they never propagate to the sync
// pipeline. Re-inserting an existing id replaces the previous document.
func (ix *Index) Insert(document Document) {
	doc, ok := ValidateDocument(document)
	if !ok {
		log.Printf("Search: skipping invalid document (id=%q, threadId=%q)", document.ID, document.ThreadID)
		return
	}

	if _, exists := ix.docs[doc.ID]; exists {
		ix.remove(doc.ID)
	}

	ix.docs[doc.ID] = doc

	terms := tokenize(doc.Subject + " " + doc.Body + " " + doc.RawBody + " " + doc.From)
	ix.docLengths[doc.ID] = len(terms)

	for _, term := range terms {
		if ix.postings[term] == nil {
			ix.postings[term] = make(map[string]int)
		}
		ix.postings[term][doc.ID]++
	}
}

func (ix *Index) remove(docID string) {
	for term, docs := range ix.postings {
		delete(docs, docID)
		if len(docs) == 0 {
			delete(ix.postings, term)
		}
	}
	delete(ix.docs, docID)
	delete(ix.docLengths, docID)
}

// Search runs a ranked full-text query over the index. Empty or too-short
// terms return an empty result set, never an error; search is best-effort
// over a cache.
func (ix *Index) Search(term string) []Hit {
	term = strings.TrimSpace(term)
	if len([]rune(term)) < minTermLength {
		return nil
	}

	if len(ix.docs) == 0 {
		return nil
	}

	queryTerms := tokenize(term)
	if len(queryTerms) == 0 {
		return nil
	}

	avgDocLength := ix.averageDocLength()
	scores := make(map[string]float64)

	for _, queryTerm := range queryTerms {
		docs := ix.postings[queryTerm]
		if len(docs) == 0 {
			continue
		}

		idf := math.Log(1 + (float64(len(ix.docs))-float64(len(docs))+0.5)/(float64(len(docs))+0.5))

		for docID, freq := range docs {
			norm := 1 - bm25B + bm25B*float64(ix.docLengths[docID])/avgDocLength
			scores[docID] += idf * float64(freq) * (bm25K1 + 1) / (float64(freq) + bm25K1*norm)
		}
	}

	hits := make([]Hit, 0, len(scores))
	for docID, score := range scores {
		hits = append(hits, Hit{Document: ix.docs[docID], Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		// Newest first among equally scored documents.
		return hits[i].Document.SentAt > hits[j].Document.SentAt
	})

	if len(hits) > maxHits {
		hits = hits[:maxHits]
	}

	return hits
}

func (ix *Index) averageDocLength() float64 {
	if len(ix.docLengths) == 0 {
		return 1
	}

	total := 0
	for _, length := range ix.docLengths {
		total += length
	}

	avg := float64(total) / float64(len(ix.docLengths))
	if avg <= 0 {
		return 1
	}
	return avg
}

// Save serializes the live index and writes it back to the account row.
// Callers treat failures as non-fatal: a stale persisted index is not
// corrupting, it just means a colder restart.
func (ix *Index) Save(ctx context.Context, pool *pgxpool.Pool) error {
	blob, err := json.Marshal(snapshot{
		Docs:       ix.docs,
		Postings:   ix.postings,
		DocLengths: ix.docLengths,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize index: %w", err)
	}

	if err := db.UpdateAccountSearchIndex(ctx, pool, ix.accountID, blob); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}

	return nil
}

func (ix *Index) restore(blob []byte) error {
	var snap snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return fmt.Errorf("failed to deserialize index: %w", err)
	}

	if snap.Docs == nil || snap.Postings == nil || snap.DocLengths == nil {
		return fmt.Errorf("index snapshot is incomplete")
	}

	ix.docs = snap.Docs
	ix.postings = snap.Postings
	ix.docLengths = snap.DocLengths

	return nil
}

// tokenize lowercases the input and splits it into alphanumeric terms,
// dropping single-character noise.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		if len([]rune(field)) >= minTermLength {
			terms = append(terms, field)
		}
	}

	return terms
}
