package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/crypto"
	"github.com/smartinbox/backend/internal/db"
	"github.com/smartinbox/backend/internal/models"
	"github.com/smartinbox/backend/internal/provider"
	"github.com/smartinbox/backend/internal/search"
	ws "github.com/smartinbox/backend/internal/websocket"
	"golang.org/x/sync/singleflight"
)

// ErrNoDeltaToken is returned when an incremental sync is attempted for an
// account that has never completed an initial sync.
var ErrNoDeltaToken = errors.New("account has no delta token, run an initial sync first")

// ErrSyncTimeout is returned when the provider-side sync job does not become
// ready within the polling budget.
var ErrSyncTimeout = errors.New("timed out waiting for provider sync to become ready")

// Engine orchestrates full initial syncs and incremental delta syncs against
// the mail provider, driving the upsert layer and the search index per
// batch. Syncs of the same kind for the same account are coalesced through
// a singleflight group so concurrent triggers cannot interleave token and
// index writes.
type Engine struct {
	pool            *pgxpool.Pool
	encryptor       *crypto.Encryptor
	hub             *ws.Hub
	providerBaseURL string
	daysWithin      int
	pollInterval    time.Duration
	maxPollAttempts int
	group           singleflight.Group
}

// NewEngine creates a sync engine. The hub may be nil; sync completion
// events are then not broadcast.
func NewEngine(pool *pgxpool.Pool, encryptor *crypto.Encryptor, hub *ws.Hub, providerBaseURL string, daysWithin int) *Engine {
	return &Engine{
		pool:            pool,
		encryptor:       encryptor,
		hub:             hub,
		providerBaseURL: providerBaseURL,
		daysWithin:      daysWithin,
		pollInterval:    1 * time.Second,
		maxPollAttempts: 60,
	}
}

// InitialSyncResult is the outcome of a completed initial sync: every
// message within the lookback window plus the final continuation token.
type InitialSyncResult struct {
	Emails     []provider.EmailMessage
	DeltaToken string
}

// clientForAccount builds a provider client from the account's stored
// credential.
func (e *Engine) clientForAccount(account *models.Account) (*provider.Client, error) {
	token, err := e.encryptor.Decrypt(account.EncryptedAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token for account %s: %w", account.ID, err)
	}

	return provider.NewClient(e.providerBaseURL, token), nil
}

// PerformInitialSync drives the provider's full-sync state machine: start
// the sync job, poll at a fixed interval until it reports ready (bounded by
// maxPollAttempts), then drain the first delta fetch across all its pages.
// The returned token is the latest nextDeltaToken seen; each replacement
// discards the previous value.
func (e *Engine) PerformInitialSync(ctx context.Context, client *provider.Client) (*InitialSyncResult, error) {
	syncResponse, err := client.StartSync(ctx, e.daysWithin)
	if err != nil {
		return nil, err
	}

	attempts := 1
	for !syncResponse.Ready {
		if attempts >= e.maxPollAttempts {
			return nil, fmt.Errorf("%w (after %d attempts)", ErrSyncTimeout, attempts)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.pollInterval):
		}

		syncResponse, err = client.StartSync(ctx, e.daysWithin)
		if err != nil {
			return nil, err
		}
		attempts++
	}

	emails, deltaToken, err := e.fetchAllPages(ctx, client, syncResponse.SyncUpdatedToken)
	if err != nil {
		return nil, err
	}

	log.Printf("Sync: initial sync fetched %d emails", len(emails))

	return &InitialSyncResult{Emails: emails, DeltaToken: deltaToken}, nil
}

// fetchAllPages runs one delta fetch to completion. The first request uses
// the delta token; subsequent requests follow pagination tokens only. Pages
// are fetched strictly sequentially because each pagination token depends on
// the prior page's response.
func (e *Engine) fetchAllPages(ctx context.Context, client *provider.Client, deltaToken string) ([]provider.EmailMessage, string, error) {
	response, err := client.GetUpdatedEmails(ctx, deltaToken, "")
	if err != nil {
		return nil, "", err
	}

	storedDeltaToken := deltaToken
	if response.NextDeltaToken != "" {
		storedDeltaToken = response.NextDeltaToken
	}

	allEmails := response.Records

	for response.NextPageToken != "" {
		response, err = client.GetUpdatedEmails(ctx, "", response.NextPageToken)
		if err != nil {
			return nil, "", err
		}

		allEmails = append(allEmails, response.Records...)

		if response.NextDeltaToken != "" {
			storedDeltaToken = response.NextDeltaToken
		}
	}

	return allEmails, storedDeltaToken, nil
}

// InitialSync performs the full initial sync for a newly linked account and
// lands the result: continuation token first, then the relational rows and a
// fresh search index. Concurrent initial syncs for the same account are
// coalesced; an initial sync never joins an in-flight incremental sync.
func (e *Engine) InitialSync(ctx context.Context, accountID string) error {
	_, err, _ := e.group.Do(accountID+":initial", func() (any, error) {
		account, err := db.GetAccount(ctx, e.pool, accountID)
		if err != nil {
			return nil, err
		}

		client, err := e.clientForAccount(account)
		if err != nil {
			return nil, err
		}

		result, err := e.PerformInitialSync(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("initial sync failed for account %s: %w", accountID, err)
		}

		if err := db.UpdateAccountDeltaToken(ctx, e.pool, accountID, result.DeltaToken); err != nil {
			return nil, err
		}

		index := search.NewIndex(accountID)
		if err := index.Initialize(ctx, e.pool); err != nil {
			return nil, err
		}

		if err := SyncToDatabase(ctx, e.pool, accountID, result.Emails, index); err != nil {
			return nil, err
		}

		log.Printf("Sync: initial sync completed for account %s (%d emails, token %q)",
			accountID, len(result.Emails), result.DeltaToken)

		e.notify(account, len(result.Emails))

		return nil, nil
	})

	return err
}

// SyncNewEmails performs one incremental delta sync for an account. It
// requires a previously stored continuation token, drains all pages, upserts
// the batch, refreshes and persists the search index, and finally advances
// the stored token. On any fetch error the token is left untouched, so the
// next invocation resumes from the last committed position. Concurrent
// incremental syncs for the same account are coalesced; the key is separate
// from the initial-sync key so the two never share a flight. Returns the
// number of fetched messages.
func (e *Engine) SyncNewEmails(ctx context.Context, accountID string) (int, error) {
	count, err, _ := e.group.Do(accountID+":incremental", func() (any, error) {
		account, err := db.GetAccount(ctx, e.pool, accountID)
		if err != nil {
			return 0, err
		}

		if account.NextDeltaToken == nil || *account.NextDeltaToken == "" {
			return 0, fmt.Errorf("%w (account %s)", ErrNoDeltaToken, accountID)
		}

		client, err := e.clientForAccount(account)
		if err != nil {
			return 0, err
		}

		emails, deltaToken, err := e.fetchAllPages(ctx, client, *account.NextDeltaToken)
		if err != nil {
			return 0, fmt.Errorf("incremental sync failed for account %s: %w", accountID, err)
		}

		index := search.NewIndex(accountID)
		if err := index.Initialize(ctx, e.pool); err != nil {
			return 0, err
		}

		if err := SyncToDatabase(ctx, e.pool, accountID, emails, index); err != nil {
			return 0, err
		}

		if err := db.UpdateAccountDeltaToken(ctx, e.pool, accountID, deltaToken); err != nil {
			return 0, err
		}

		if len(emails) > 0 {
			e.notify(account, len(emails))
		}

		return len(emails), nil
	})

	if err != nil {
		return 0, err
	}

	n, _ := count.(int)
	return n, nil
}

// backgroundSyncTimeout bounds fire-and-forget syncs so a stuck provider
// cannot leak goroutines indefinitely.
const backgroundSyncTimeout = 5 * time.Minute

// SyncInBackground triggers an incremental sync without blocking the
// caller. Errors are logged, never surfaced: a failed opportunistic sync
// just means the inbox view stays stale until the next trigger.
func (e *Engine) SyncInBackground(accountID string) {
	jobID := uuid.NewString()[:8]

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundSyncTimeout)
		defer cancel()

		count, err := e.SyncNewEmails(ctx, accountID)
		if err != nil {
			log.Printf("Sync: background sync %s for account %s failed: %v", jobID, accountID, err)
			return
		}

		log.Printf("Sync: background sync %s for account %s fetched %d emails", jobID, accountID, count)
	}()
}

func (e *Engine) notify(account *models.Account, newEmails int) {
	if e.hub == nil {
		return
	}

	e.hub.SendJSON(account.UserID, ws.Event{
		Type:      ws.EventSyncCompleted,
		AccountID: account.ID,
		NewEmails: newEmails,
	})
}
