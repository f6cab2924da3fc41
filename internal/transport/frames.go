package transport

import (
	"github.com/goccy/go-json"
	"github.com/parley-chat/parley/internal/store"
	"github.com/parley-chat/parley/internal/sync"
)

// Wire frame types. Push frames carry server-initiated events; invoke/result
// frames carry request/response pairs correlated by id.
const (
	frameMessageCreated  = "message.created"
	frameMessageEdited   = "message.edited"
	frameMessageDeleted  = "message.deleted"
	frameMessageRead     = "message.read"
	frameTyping          = "typing"
	framePresenceOnline  = "presence.online"
	framePresenceOffline = "presence.offline"
	frameInvoke          = "invoke"
	frameResult          = "result"
)

// frame is the envelope for every wire message.
type frame struct {
	Type    string          `json:"type"`
	ID      int64           `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Args    any             `json:"args,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type conversationPayload struct {
	ID         int64           `json:"id"`
	NameOne    string          `json:"name_one"`
	NameTwo    string          `json:"name_two"`
	AvatarOne  string          `json:"avatar_one"`
	AvatarTwo  string          `json:"avatar_two"`
	CreatorID  int64           `json:"creator_id"`
	Members    []memberPayload `json:"members"`
	WhosTyping []string        `json:"whos_typing"`
}

type memberPayload struct {
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
}

type messagePayload struct {
	MsgID          string `json:"msg_id"`
	ConversationID int64  `json:"conversation_id"`
	SenderID       int64  `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	SenderAvatar   string `json:"sender_avatar"`
	Content        string `json:"content"`
	Timestamp      int64  `json:"timestamp"`
}

type messageCreatedPayload struct {
	Conversation conversationPayload `json:"conversation"`
	Message      messagePayload      `json:"message"`
}

type messageEditedPayload struct {
	MsgID          string `json:"msg_id"`
	ConversationID int64  `json:"conversation_id"`
	Content        string `json:"content"`
}

type messageDeletedPayload struct {
	MsgID          string `json:"msg_id"`
	ConversationID int64  `json:"conversation_id"`
}

type messageReadPayload struct {
	MsgID      string `json:"msg_id"`
	ReaderName string `json:"reader_name"`
}

type typingPayload struct {
	ConversationID int64  `json:"conversation_id"`
	UserName       string `json:"user_name"`
	Active         bool   `json:"active"`
}

type presencePayload struct {
	UserID     int64 `json:"user_id"`
	LastActive int64 `json:"last_active"`
}

type sendArgs struct {
	MsgID          string `json:"msg_id"`
	ConversationID int64  `json:"conversation_id"`
	Content        string `json:"content"`
}

type sendResult struct {
	Timestamp int64 `json:"timestamp"`
}

func (p *conversationPayload) toConversation() *store.Conversation {
	members := make([]store.Member, 0, len(p.Members))
	for _, m := range p.Members {
		members = append(members, store.Member{UserID: m.UserID, UserName: m.UserName})
	}
	return &store.Conversation{
		ID:         p.ID,
		NameOne:    p.NameOne,
		NameTwo:    p.NameTwo,
		AvatarOne:  p.AvatarOne,
		AvatarTwo:  p.AvatarTwo,
		CreatorID:  p.CreatorID,
		Members:    members,
		WhosTyping: p.WhosTyping,
	}
}

func (p *messagePayload) toMessage() *store.Message {
	return &store.Message{
		MsgID:          p.MsgID,
		ConversationID: p.ConversationID,
		SenderID:       p.SenderID,
		SenderName:     p.SenderName,
		SenderAvatar:   p.SenderAvatar,
		Content:        p.Content,
		Timestamp:      p.Timestamp,
		Status:         store.StatusDelivered,
	}
}

func (p *messageCreatedPayload) toEvent() sync.MessageReceived {
	return sync.MessageReceived{
		Conversation: p.Conversation.toConversation(),
		Message:      p.Message.toMessage(),
	}
}
