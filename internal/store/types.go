package store

// Message delivery statuses.
const (
	StatusSending   = "sending"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// Message represents one chat message in the local cache.
// MsgID is assigned sender-side before the transport ack, so it is stable
// across retries and globally unique.
type Message struct {
	ID             int64
	MsgID          string
	ConversationID int64
	SenderID       int64
	SenderName     string
	SenderAvatar   string
	Content        string
	Timestamp      int64 // unix millis; 0 until the server assigns one
	Status         string
	Deleted        bool
	ReadBy         []string
	FromMe         bool
}

// Member identifies a conversation participant.
type Member struct {
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
}

// Conversation is the materialized summary record driving list UIs.
// LastMessage, LastSenderName and Timestamp always reflect the most recent
// non-deleted message known locally. Online state is never stored here; it
// is joined against the presence tracker at read time.
type Conversation struct {
	ID             int64
	NameOne        string
	NameTwo        string
	AvatarOne      string
	AvatarTwo      string
	CreatorID      int64
	LastSenderName string
	LastMessage    string
	Timestamp      int64 // unix millis of last activity; 0 when empty
	Members        []Member
	WhosTyping     []string
	Unread         bool
}

// MemberIDs returns the user IDs of all members.
func (c *Conversation) MemberIDs() []int64 {
	ids := make([]int64, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// HasMember reports whether userID participates in the conversation.
func (c *Conversation) HasMember(userID int64) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// OutboxEntry represents a pending outgoing message.
type OutboxEntry struct {
	ID             int64
	MsgID          string
	ConversationID int64
	Content        string
	Status         string // queued, sending, sent, failed
	ErrorMessage   string
}
