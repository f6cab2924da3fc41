// Package presence tracks per-user online/offline state derived from push
// events. The tracker exclusively owns this mapping; conversation summaries
// join against it at read time and never persist a copy.
package presence

import "sync"

// Online is the lastActive sentinel meaning "currently online".
const Online int64 = -1

// Entry is one user's presence record. LastActive is a unix-milli instant of
// past activity, or Online.
type Entry struct {
	UserID     int64
	LastActive int64
}

// Tracker maintains the userID -> lastActive mapping. The whole map is
// replaced on reconnect and mutated key-by-key otherwise; no cross-key
// invariant exists, so a single mutex is enough.
type Tracker struct {
	mu      sync.RWMutex
	entries map[int64]int64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[int64]int64),
	}
}

// ResetAll replaces the entire mapping with the given snapshot. Used once
// after (re)connect when the transport provides the full online-user list.
func (t *Tracker) ResetAll(snapshot []Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[int64]int64, len(snapshot))
	for _, e := range snapshot {
		t.entries[e.UserID] = e.LastActive
	}
}

// MarkOnline records that a user is currently online.
func (t *Tracker) MarkOnline(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[userID] = Online
}

// MarkOffline records the instant a user was last active.
func (t *Tracker) MarkOffline(userID, lastActive int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[userID] = lastActive
}

// AnyOnline reports whether at least one of the given users is online.
// A conversation is shown online when any counterpart is; the empty set is
// offline.
func (t *Tracker) AnyOnline(userIDs ...int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, id := range userIDs {
		if t.entries[id] == Online {
			return true
		}
	}
	return false
}

// LastActive returns a user's last-active instant and whether the user is
// known at all.
func (t *Tracker) LastActive(userID int64) (int64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[userID]
	return v, ok
}
