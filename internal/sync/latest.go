package sync

import (
	"slices"
	"strings"

	"github.com/parley-chat/parley/internal/store"
)

// TombstoneLabel is shown in place of a deleted message's content.
const TombstoneLabel = "this message was deleted"

// summaryFields is the derived latest-activity portion of a conversation
// summary.
type summaryFields struct {
	LastMessage    string
	LastSenderName string
	Timestamp      int64
}

// sortLatestFirst orders messages newest first: timestamp descending, zero
// timestamps (not-yet-acked local sends) last, msg_id as a deterministic
// tiebreak.
func sortLatestFirst(msgs []store.Message) {
	slices.SortFunc(msgs, func(a, b store.Message) int {
		if a.Timestamp == b.Timestamp {
			return strings.Compare(b.MsgID, a.MsgID)
		}
		if a.Timestamp == 0 {
			return 1
		}
		if b.Timestamp == 0 {
			return -1
		}
		if a.Timestamp > b.Timestamp {
			return -1
		}
		return 1
	})
}

// deriveLatest recomputes the latest-activity fields from the full message
// set. msgs may arrive in any order; this never trusts event arrival order,
// only the stored timestamps.
//
// Rules: with no live (non-deleted) message the summary is emptied, not the
// conversation removed. When the newest row is live it wins. When the newest
// row is a tombstone, the row after it is promoted, substituting the
// tombstone label if that row is itself deleted.
func deriveLatest(msgs []store.Message) summaryFields {
	sorted := slices.Clone(msgs)
	sortLatestFirst(sorted)

	anyLive := false
	for _, m := range sorted {
		if !m.Deleted {
			anyLive = true
			break
		}
	}
	if !anyLive {
		return summaryFields{}
	}

	head := sorted[0]
	if !head.Deleted {
		return summaryFields{
			LastMessage:    head.Content,
			LastSenderName: head.SenderName,
			Timestamp:      head.Timestamp,
		}
	}

	// Head is a tombstone but a live message exists, so a second row exists.
	next := sorted[1]
	fields := summaryFields{
		LastMessage:    next.Content,
		LastSenderName: next.SenderName,
		Timestamp:      next.Timestamp,
	}
	if next.Deleted {
		fields.LastMessage = TombstoneLabel
	}
	return fields
}

// RecomputeSummary refreshes a conversation's latest-activity fields from its
// stored message set and persists the summary when it changed. A missing
// conversation is a no-op.
func RecomputeSummary(db *store.DB, conversationID int64) (bool, error) {
	conv, err := db.GetConversation(conversationID)
	if err != nil {
		return false, err
	}
	if conv == nil {
		return false, nil
	}
	msgs, err := db.MessagesOfConversation(conversationID)
	if err != nil {
		return false, err
	}
	if !applyLatest(conv, deriveLatest(msgs)) {
		return false, nil
	}
	if err := db.UpsertConversation(conv); err != nil {
		return false, err
	}
	return true, nil
}
