package sync

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartinbox/backend/internal/db"
	"github.com/smartinbox/backend/internal/models"
	"github.com/smartinbox/backend/internal/provider"
	"github.com/smartinbox/backend/internal/search"
)

// ClassifyLabel maps a message's system labels to exactly one classification
// label. First match wins: sent > draft > inbox.
func ClassifyLabel(sysLabels []string) string {
	for _, label := range sysLabels {
		if label == "sent" {
			return models.EmailLabelSent
		}
	}
	for _, label := range sysLabels {
		if label == "draft" {
			return models.EmailLabelDraft
		}
	}
	return models.EmailLabelInbox
}

// SyncToDatabase writes a batch of provider messages into the relational
// store and mirrors each into the search index. A failure on one message is
// logged and skipped; the rest of the batch still lands. The refreshed index
// is persisted once at the end of the batch.
func SyncToDatabase(ctx context.Context, pool *pgxpool.Pool, accountID string, messages []provider.EmailMessage, index *search.Index) error {
	log.Printf("Sync: writing %d emails for account %s", len(messages), accountID)

	for i := range messages {
		message := &messages[i]

		if err := UpsertEmail(ctx, pool, accountID, message); err != nil {
			log.Printf("Sync: failed to upsert email %s for account %s: %v", message.ID, accountID, err)
			continue
		}

		index.Insert(search.DocumentFromMessage(message))
	}

	if err := index.Save(ctx, pool); err != nil {
		log.Printf("Sync: failed to persist search index for account %s: %v", accountID, err)
	}

	return nil
}

// UpsertEmail converts one inbound provider message into consistent
// relational state: participant addresses, the containing thread, the email
// row itself and its attachment metadata, in that order.
func UpsertEmail(ctx context.Context, pool *pgxpool.Pool, accountID string, message *provider.EmailMessage) error {
	label := ClassifyLabel(message.SysLabels)

	// Collect every address appearing in any role, deduplicated by address
	// string. Collection order is preserved; if the same address appears
	// with different display names within one message, the last-seen name
	// wins.
	var order []string
	seen := make(map[string]provider.EmailAddress)

	collect := func(addresses ...provider.EmailAddress) {
		for _, address := range addresses {
			if address.Address == "" {
				continue
			}
			if _, ok := seen[address.Address]; !ok {
				order = append(order, address.Address)
			}
			seen[address.Address] = address
		}
	}

	collect(message.From)
	collect(message.To...)
	collect(message.CC...)
	collect(message.BCC...)
	collect(message.ReplyTo...)

	addressIDs := make(map[string]string, len(order))
	for _, key := range order {
		raw := seen[key]
		record := &models.EmailAddress{
			AccountID: accountID,
			Address:   raw.Address,
		}
		if raw.Name != "" {
			name := raw.Name
			record.Name = &name
		}
		if raw.Raw != "" {
			rawHeader := raw.Raw
			record.Raw = &rawHeader
		}

		if err := db.SaveEmailAddress(ctx, pool, record); err != nil {
			return err
		}
		addressIDs[key] = record.ID
	}

	fromID, ok := addressIDs[message.From.Address]
	if !ok {
		// Should not happen given the collection above; skip the message
		// rather than failing the batch.
		log.Printf("Sync: could not resolve sender address for email %s, skipping", message.ID)
		return nil
	}

	mapIDs := func(addresses []provider.EmailAddress) []string {
		ids := make([]string, 0, len(addresses))
		for _, address := range addresses {
			if id, ok := addressIDs[address.Address]; ok {
				ids = append(ids, id)
			}
		}
		return ids
	}

	toIDs := mapIDs(message.To)
	ccIDs := mapIDs(message.CC)
	bccIDs := mapIDs(message.BCC)
	replyToIDs := mapIDs(message.ReplyTo)

	// Participants are sender plus direct recipients; reply-to addresses do
	// not join the thread's participant set.
	participantIDs := uniqueStrings(append(append(append([]string{fromID}, toIDs...), ccIDs...), bccIDs...))

	thread := &models.Thread{
		ID:              message.ThreadID,
		AccountID:       accountID,
		Subject:         message.Subject,
		LastMessageDate: message.SentAt,
		ParticipantIDs:  participantIDs,
		InboxStatus:     label == models.EmailLabelInbox,
		DraftStatus:     label == models.EmailLabelDraft,
		SentStatus:      label == models.EmailLabelSent,
	}
	if err := db.SaveThread(ctx, pool, thread); err != nil {
		return err
	}

	email := &models.Email{
		ID:                message.ID,
		ThreadID:          message.ThreadID,
		FromID:            fromID,
		Subject:           message.Subject,
		Body:              message.Body,
		BodySnippet:       message.BodySnippet,
		EmailLabel:        label,
		SysLabels:         emptyIfNil(message.SysLabels),
		Keywords:          emptyIfNil(message.Keywords),
		HasAttachments:    message.HasAttachments,
		InternetMessageID: message.InternetMessageID,
		InternetHeaders:   message.InternetHeaders,
		CreatedTime:       message.CreatedTime,
		SentAt:            message.SentAt,
		ReceivedAt:        message.ReceivedAt,
	}
	if err := db.SaveEmail(ctx, pool, email); err != nil {
		return err
	}

	recipientSets := []struct {
		role string
		ids  []string
	}{
		{db.RecipientRoleTo, toIDs},
		{db.RecipientRoleCC, ccIDs},
		{db.RecipientRoleBCC, bccIDs},
		{db.RecipientRoleReplyTo, replyToIDs},
	}
	for _, set := range recipientSets {
		if err := db.ReplaceEmailRecipients(ctx, pool, message.ID, set.role, set.ids); err != nil {
			return err
		}
	}

	for _, raw := range message.Attachments {
		attachment := &models.Attachment{
			ID:       raw.ID,
			EmailID:  message.ID,
			Name:     raw.Name,
			MimeType: raw.MimeType,
			Size:     raw.Size,
			Inline:   raw.Inline,
		}
		if raw.ContentID != "" {
			contentID := raw.ContentID
			attachment.ContentID = &contentID
		}

		if err := db.SaveAttachment(ctx, pool, attachment); err != nil {
			log.Printf("Sync: failed to save attachment %s for email %s: %v", raw.ID, message.ID, err)
		}
	}

	return nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		unique = append(unique, value)
	}
	return unique
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
