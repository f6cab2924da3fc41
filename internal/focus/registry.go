package focus

import "sync"

// Registry tracks which conversation the user currently has open. The
// reconciliation engine consults it to decide whether an incoming message
// marks its conversation unread.
type Registry struct {
	mu      sync.RWMutex
	current int64
}

// NewRegistry creates a registry with no focused conversation.
func NewRegistry() *Registry {
	return &Registry{}
}

// Set records conversationID as focused, replacing any previous focus.
func (r *Registry) Set(conversationID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = conversationID
}

// Clear drops the focus entirely.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = 0
}

// IsFocused reports whether conversationID is the focused conversation.
func (r *Registry) IsFocused(conversationID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current != 0 && r.current == conversationID
}

// Current returns the focused conversation id, zero when none.
func (r *Registry) Current() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}
