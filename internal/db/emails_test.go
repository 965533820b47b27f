package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/models"
	"github.com/smartinbox/backend/internal/testutil"
)

func strPtr(s string) *string { return &s }

// saveTestEmail wires the address, thread and email rows an email test needs.
func saveTestEmail(t *testing.T, pool *pgxpool.Pool, accountID, threadID, emailID, fromAddr string, sentAt time.Time) *models.Email {
	t.Helper()

	ctx := context.Background()

	from := &models.EmailAddress{
		AccountID: accountID,
		Address:   fromAddr,
		Name:      strPtr("Sender"),
	}
	if err := SaveEmailAddress(ctx, pool, from); err != nil {
		t.Fatalf("SaveEmailAddress failed: %v", err)
	}

	if err := SaveThread(ctx, pool, &models.Thread{
		ID:              threadID,
		AccountID:       accountID,
		Subject:         "Test thread",
		LastMessageDate: sentAt,
		ParticipantIDs:  []string{fromAddr},
		InboxStatus:     true,
	}); err != nil {
		t.Fatalf("SaveThread failed: %v", err)
	}

	email := &models.Email{
		ID:                emailID,
		ThreadID:          threadID,
		FromID:            from.ID,
		Subject:           "Test subject",
		Body:              "Test body",
		BodySnippet:       "Test body",
		EmailLabel:        models.EmailLabelInbox,
		SysLabels:         []string{"inbox", "unread"},
		Keywords:          []string{},
		InternetMessageID: "<" + emailID + "@example.com>",
		CreatedTime:       sentAt,
		SentAt:            sentAt,
		ReceivedAt:        sentAt,
	}
	if err := SaveEmail(ctx, pool, email); err != nil {
		t.Fatalf("SaveEmail failed: %v", err)
	}

	return email
}

func TestSaveEmailUpsert(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	createTestAccount(t, pool, "acct-1", "user-1")

	sentAt := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	email := saveTestEmail(t, pool, "acct-1", "thread-1", "email-1", "alice@example.com", sentAt)

	t.Run("redelivery updates mutable fields only", func(t *testing.T) {
		update := *email
		update.Subject = "Changed subject must be ignored"
		update.Body = "Edited body"
		update.BodySnippet = "Edited body"
		update.SysLabels = []string{"inbox"}
		update.SentAt = sentAt.Add(time.Hour)

		if err := SaveEmail(ctx, pool, &update); err != nil {
			t.Fatalf("SaveEmail (redelivery) failed: %v", err)
		}

		emails, err := GetEmailsForThread(ctx, pool, "thread-1")
		if err != nil {
			t.Fatalf("GetEmailsForThread failed: %v", err)
		}
		if len(emails) != 1 {
			t.Fatalf("Expected 1 email after redelivery, got %d", len(emails))
		}

		got := emails[0]
		if got.Subject != "Test subject" {
			t.Errorf("Expected immutable subject, got %q", got.Subject)
		}
		if !got.SentAt.Equal(sentAt) {
			t.Errorf("Expected immutable sent_at %v, got %v", sentAt, got.SentAt)
		}
		if got.Body != "Edited body" {
			t.Errorf("Expected body to update, got %q", got.Body)
		}
		if len(got.SysLabels) != 1 || got.SysLabels[0] != "inbox" {
			t.Errorf("Expected sys_labels to update, got %v", got.SysLabels)
		}
	})
}

func TestEmailRecipients(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	createTestAccount(t, pool, "acct-1", "user-1")

	sentAt := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	saveTestEmail(t, pool, "acct-1", "thread-1", "email-1", "alice@example.com", sentAt)

	saveAddr := func(addr string) string {
		t.Helper()
		a := &models.EmailAddress{AccountID: "acct-1", Address: addr}
		if err := SaveEmailAddress(ctx, pool, a); err != nil {
			t.Fatalf("SaveEmailAddress failed: %v", err)
		}
		return a.ID
	}

	bob := saveAddr("bob@example.com")
	carol := saveAddr("carol@example.com")

	t.Run("replaces a role's recipient set", func(t *testing.T) {
		if err := ReplaceEmailRecipients(ctx, pool, "email-1", RecipientRoleTo, []string{bob, carol}); err != nil {
			t.Fatalf("ReplaceEmailRecipients failed: %v", err)
		}
		// Provider's later view drops carol.
		if err := ReplaceEmailRecipients(ctx, pool, "email-1", RecipientRoleTo, []string{bob}); err != nil {
			t.Fatalf("ReplaceEmailRecipients (second) failed: %v", err)
		}

		emails, err := GetEmailsForThread(ctx, pool, "thread-1")
		if err != nil {
			t.Fatalf("GetEmailsForThread failed: %v", err)
		}
		if len(emails) != 1 {
			t.Fatalf("Expected 1 email, got %d", len(emails))
		}
		if len(emails[0].To) != 1 || emails[0].To[0].Address != "bob@example.com" {
			t.Errorf("Expected to = [bob@example.com], got %v", emails[0].To)
		}
	})

	t.Run("roles stay separate", func(t *testing.T) {
		if err := ReplaceEmailRecipients(ctx, pool, "email-1", RecipientRoleCC, []string{carol}); err != nil {
			t.Fatalf("ReplaceEmailRecipients failed: %v", err)
		}

		emails, err := GetEmailsForThread(ctx, pool, "thread-1")
		if err != nil {
			t.Fatalf("GetEmailsForThread failed: %v", err)
		}
		if len(emails[0].To) != 1 {
			t.Errorf("Expected cc update to leave to untouched, got %v", emails[0].To)
		}
		if len(emails[0].CC) != 1 || emails[0].CC[0].Address != "carol@example.com" {
			t.Errorf("Expected cc = [carol@example.com], got %v", emails[0].CC)
		}
	})
}

func TestSaveEmailAddressNameUpdates(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	createTestAccount(t, pool, "acct-1", "user-1")

	first := &models.EmailAddress{
		AccountID: "acct-1",
		Address:   "alice@example.com",
		Name:      strPtr("Alice"),
		Raw:       strPtr("Alice <alice@example.com>"),
	}
	if err := SaveEmailAddress(ctx, pool, first); err != nil {
		t.Fatalf("SaveEmailAddress failed: %v", err)
	}

	second := &models.EmailAddress{
		AccountID: "acct-1",
		Address:   "alice@example.com",
		Name:      strPtr("Alice Smith"),
		Raw:       strPtr("Alice Smith <alice@example.com>"),
	}
	if err := SaveEmailAddress(ctx, pool, second); err != nil {
		t.Fatalf("SaveEmailAddress (update) failed: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("Expected stable address id, got %s then %s", first.ID, second.ID)
	}

	addresses, err := GetAddressesForAccount(ctx, pool, "acct-1")
	if err != nil {
		t.Fatalf("GetAddressesForAccount failed: %v", err)
	}
	if len(addresses) != 1 {
		t.Fatalf("Expected 1 address, got %d", len(addresses))
	}
	if addresses[0].Name == nil || *addresses[0].Name != "Alice Smith" {
		t.Errorf("Expected last-seen name to win, got %v", addresses[0].Name)
	}
	if addresses[0].Raw == nil || *addresses[0].Raw != "Alice <alice@example.com>" {
		t.Errorf("Expected raw to keep its first-seen value, got %v", addresses[0].Raw)
	}

	// A later message with a bare address must not wipe the stored name.
	third := &models.EmailAddress{
		AccountID: "acct-1",
		Address:   "alice@example.com",
	}
	if err := SaveEmailAddress(ctx, pool, third); err != nil {
		t.Fatalf("SaveEmailAddress (no name) failed: %v", err)
	}

	addresses, err = GetAddressesForAccount(ctx, pool, "acct-1")
	if err != nil {
		t.Fatalf("GetAddressesForAccount failed: %v", err)
	}
	if addresses[0].Name == nil || *addresses[0].Name != "Alice Smith" {
		t.Errorf("Expected a nameless upsert to keep the stored name, got %v", addresses[0].Name)
	}
}

func TestGetRecentEmailsForIndex(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	createTestAccount(t, pool, "acct-1", "user-1")
	createTestAccount(t, pool, "acct-2", "user-1")

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	saveTestEmail(t, pool, "acct-1", "thread-a", "email-old", "alice@example.com", base)
	saveTestEmail(t, pool, "acct-1", "thread-a", "email-new", "alice@example.com", base.Add(time.Hour))
	saveTestEmail(t, pool, "acct-2", "thread-b", "email-other", "bob@example.com", base)

	t.Run("newest first, scoped to account", func(t *testing.T) {
		emails, err := GetRecentEmailsForIndex(ctx, pool, "acct-1", 100)
		if err != nil {
			t.Fatalf("GetRecentEmailsForIndex failed: %v", err)
		}
		if len(emails) != 2 {
			t.Fatalf("Expected 2 emails, got %d", len(emails))
		}
		if emails[0].ID != "email-new" || emails[1].ID != "email-old" {
			t.Errorf("Expected newest first, got %s then %s", emails[0].ID, emails[1].ID)
		}
	})

	t.Run("respects the limit", func(t *testing.T) {
		emails, err := GetRecentEmailsForIndex(ctx, pool, "acct-1", 1)
		if err != nil {
			t.Fatalf("GetRecentEmailsForIndex failed: %v", err)
		}
		if len(emails) != 1 || emails[0].ID != "email-new" {
			t.Fatalf("Expected only the newest email, got %v", emails)
		}
	})

	t.Run("count is scoped to account", func(t *testing.T) {
		count, err := CountEmailsForAccount(ctx, pool, "acct-1")
		if err != nil {
			t.Fatalf("CountEmailsForAccount failed: %v", err)
		}
		if count != 2 {
			t.Errorf("Expected 2 emails for acct-1, got %d", count)
		}
	})
}
