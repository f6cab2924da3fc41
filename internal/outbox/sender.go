package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/bus"
	"github.com/parley-chat/parley/internal/store"
	"github.com/parley-chat/parley/internal/sync"
	"go.uber.org/zap"
)

// MessageSender is the interface for delivering text messages to the server.
type MessageSender interface {
	SendMessage(ctx context.Context, msgID string, conversationID int64, content string) (timestamp int64, err error)
}

// SendAck is the payload for message.send_ack events.
type SendAck struct {
	MsgID     string
	Timestamp int64
}

// SendFailed is the payload for message.send_failed events.
type SendFailed struct {
	MsgID string
	Error string
}

// Sender drains the outbox and delivers messages through the transport.
// Queued sends survive restarts: the outbox row is durable and the
// client-assigned msg id keeps redelivery idempotent on the server.
type Sender struct {
	db       *store.DB
	sender   MessageSender
	bus      *bus.Bus
	selfID   int64
	selfName string
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// NewSender creates a new outbox sender. selfID and selfName identify the
// local user on the optimistic cache rows.
func NewSender(db *store.DB, sender MessageSender, b *bus.Bus, selfID int64, selfName string, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		db:       db,
		sender:   sender,
		bus:      b,
		selfID:   selfID,
		selfName: selfName,
		logger:   logger,
	}
}

// Queue records an outgoing message for delivery and returns its
// client-assigned msg id.
func (s *Sender) Queue(conversationID int64, content string) (string, error) {
	msgID := uuid.NewString()
	if err := s.db.QueueOutbox(msgID, conversationID, content); err != nil {
		return "", err
	}
	return msgID, nil
}

// Start begins polling the outbox for queued messages.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if err := s.db.MarkOutboxSending(entry.MsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("msg_id", entry.MsgID))
			continue
		}

		// Optimistic insert: show the message immediately. Timestamp stays
		// zero until the server acks, so unacked sends sort after everything
		// with a real timestamp.
		_ = s.db.UpsertMessage(&store.Message{
			MsgID:          entry.MsgID,
			ConversationID: entry.ConversationID,
			SenderID:       s.selfID,
			SenderName:     s.selfName,
			Content:        entry.Content,
			Status:         store.StatusSending,
			FromMe:         true,
		})
		s.bus.Emit(bus.KindMessageUpserted, entry.MsgID)

		timestamp, err := s.sender.SendMessage(ctx, entry.MsgID, entry.ConversationID, entry.Content)
		if err != nil {
			s.logger.Error("failed to send message", zap.Error(err), zap.String("msg_id", entry.MsgID))
			_ = s.db.MarkOutboxFailed(entry.MsgID, err.Error())
			_ = s.db.UpsertMessage(&store.Message{
				MsgID:          entry.MsgID,
				ConversationID: entry.ConversationID,
				SenderID:       s.selfID,
				SenderName:     s.selfName,
				Content:        entry.Content,
				Status:         store.StatusFailed,
				FromMe:         true,
			})
			s.bus.Emit(bus.KindMessageSendFailed, SendFailed{MsgID: entry.MsgID, Error: err.Error()})
			continue
		}

		if err := s.db.MarkOutboxSent(entry.MsgID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("msg_id", entry.MsgID))
		}

		// Adopt the server-assigned timestamp and refresh the summary now
		// that the message has a real position in the order.
		_ = s.db.UpsertMessage(&store.Message{
			MsgID:          entry.MsgID,
			ConversationID: entry.ConversationID,
			SenderID:       s.selfID,
			SenderName:     s.selfName,
			Content:        entry.Content,
			Status:         store.StatusDelivered,
			Timestamp:      timestamp,
			FromMe:         true,
		})
		if changed, err := sync.RecomputeSummary(s.db, entry.ConversationID); err != nil {
			s.logger.Error("failed to refresh summary", zap.Error(err), zap.Int64("conversation_id", entry.ConversationID))
		} else if changed {
			s.bus.Emit(bus.KindConversationsChanged, entry.ConversationID)
		}

		s.logger.Info("message sent", zap.String("msg_id", entry.MsgID), zap.Int64("timestamp", timestamp))
		s.bus.Emit(bus.KindMessageUpserted, entry.MsgID)
		s.bus.Emit(bus.KindMessageSendAck, SendAck{MsgID: entry.MsgID, Timestamp: timestamp})
	}
}
