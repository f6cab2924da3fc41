package unread

import "sync"

// Aggregator maintains per-conversation unread counts for badge rendering.
// Counts are keyed by msg id, so the at-least-once event stream cannot
// inflate them: marking the same message twice is a no-op.
type Aggregator struct {
	mu   sync.RWMutex
	seen map[int64]map[string]struct{}
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{seen: make(map[int64]map[string]struct{})}
}

// MarkUnread records msgID as unread in its conversation. Idempotent.
func (a *Aggregator) MarkUnread(conversationID int64, msgID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	msgs, ok := a.seen[conversationID]
	if !ok {
		msgs = make(map[string]struct{})
		a.seen[conversationID] = msgs
	}
	msgs[msgID] = struct{}{}
}

// Clear drops all unread markers for a conversation, typically when it
// gains focus.
func (a *Aggregator) Clear(conversationID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.seen, conversationID)
}

// Count returns the number of distinct unread messages in a conversation.
func (a *Aggregator) Count(conversationID int64) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.seen[conversationID])
}

// Total returns the number of distinct unread messages across all
// conversations.
func (a *Aggregator) Total() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	total := 0
	for _, msgs := range a.seen {
		total += len(msgs)
	}
	return total
}
