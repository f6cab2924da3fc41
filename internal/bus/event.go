package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published in this process. Subscribers filter by namespace
// prefix, so "remote." matches every inbound transport event.
const (
	KindRemoteMessageReceived = "remote.message_received"
	KindRemoteMessageEdited   = "remote.message_edited"
	KindRemoteMessageDeleted  = "remote.message_deleted"
	KindRemoteMessageRead     = "remote.message_read"
	KindRemoteTyping          = "remote.typing"
	KindRemoteUserOnline      = "remote.user_online"
	KindRemoteUserOffline     = "remote.user_offline"
	KindRemoteConnected       = "remote.connected"
	KindRemoteDisconnected    = "remote.disconnected"

	KindConversationsChanged = "conversations.changed"
	KindPresenceRefreshed    = "presence.refreshed"
	KindMessageUpserted      = "message.upserted"
	KindMessageSendAck       = "message.send_ack"
	KindMessageSendFailed    = "message.send_failed"
)
