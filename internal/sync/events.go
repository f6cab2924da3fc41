package sync

import "github.com/parley-chat/parley/internal/store"

// Payloads for remote.* bus events. The transport parses wire frames into
// these; the engine consumes them. All handlers are idempotent under
// redelivery.

// MessageReceived carries a new message together with the server's
// summary-shaped view of its conversation.
type MessageReceived struct {
	Conversation *store.Conversation
	Message      *store.Message
}

// MessageEdited replaces the body of an existing message. An edit never
// changes send time or sender.
type MessageEdited struct {
	MsgID          string
	ConversationID int64
	Content        string
}

// MessageDeleted tombstones an existing message.
type MessageDeleted struct {
	MsgID          string
	ConversationID int64
}

// MessageRead records a read receipt.
type MessageRead struct {
	MsgID      string
	ReaderName string
}

// Typing signals that a member started or stopped typing.
type Typing struct {
	ConversationID int64
	UserName       string
	Active         bool
}

// UserOnline signals that a user came online.
type UserOnline struct {
	UserID int64
}

// UserOffline signals that a user went offline at LastActive.
type UserOffline struct {
	UserID     int64
	LastActive int64
}
