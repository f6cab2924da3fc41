package sync

import (
	"context"
	"fmt"
	"slices"

	"github.com/parley-chat/parley/internal/bus"
	"github.com/parley-chat/parley/internal/presence"
	"github.com/parley-chat/parley/internal/store"
	"go.uber.org/zap"
)

// FocusQuerier reports whether a conversation is currently focused in the UI.
// Supplied by the external routing layer; a pure read, no side effects.
type FocusQuerier interface {
	IsFocused(conversationID int64) bool
}

// UnreadSink receives unread markers for external badge aggregation.
type UnreadSink interface {
	MarkUnread(conversationID int64, msgID string)
}

// SnapshotFetcher returns the full online-user snapshot from the transport.
type SnapshotFetcher interface {
	OnlineSnapshot(ctx context.Context) ([]presence.Entry, error)
}

// Engine reconciles remote events against the local cache. It holds no
// authoritative state of its own: every handler is a read-compute-write
// sequence over the store and the presence tracker, completed before the
// next event is taken, so per-conversation sequences never interleave.
type Engine struct {
	db        *store.DB
	tracker   *presence.Tracker
	bus       *bus.Bus
	focus     FocusQuerier
	unread    UnreadSink
	snapshots SnapshotFetcher
	self      int64
	logger    *zap.Logger
	cancel    context.CancelFunc
}

// NewEngine creates a new reconciliation engine. selfUserID identifies the
// local session's user so its own presence events are ignored.
func NewEngine(db *store.DB, tracker *presence.Tracker, b *bus.Bus, focus FocusQuerier, unread UnreadSink, snapshots SnapshotFetcher, selfUserID int64, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:        db,
		tracker:   tracker,
		bus:       b,
		focus:     focus,
		unread:    unread,
		snapshots: snapshots,
		self:      selfUserID,
		logger:    logger,
	}
}

// Start subscribes to inbound remote events on the bus. All reconciliation
// runs on the single goroutine draining this subscription.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("remote.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(ctx context.Context, evt bus.Event) {
	var err error
	switch evt.Kind {
	case bus.KindRemoteMessageReceived:
		p, ok := evt.Payload.(MessageReceived)
		if !ok || p.Message == nil || p.Message.MsgID == "" || p.Conversation == nil || p.Conversation.ID == 0 {
			e.logger.Warn("dropping malformed event", zap.String("kind", evt.Kind))
			return
		}
		err = e.HandleMessageReceived(p)
	case bus.KindRemoteMessageEdited:
		p, ok := evt.Payload.(MessageEdited)
		if !ok || p.MsgID == "" || p.ConversationID == 0 {
			e.logger.Warn("dropping malformed event", zap.String("kind", evt.Kind))
			return
		}
		err = e.HandleMessageEdited(p)
	case bus.KindRemoteMessageDeleted:
		p, ok := evt.Payload.(MessageDeleted)
		if !ok || p.MsgID == "" || p.ConversationID == 0 {
			e.logger.Warn("dropping malformed event", zap.String("kind", evt.Kind))
			return
		}
		err = e.HandleMessageDeleted(p)
	case bus.KindRemoteMessageRead:
		p, ok := evt.Payload.(MessageRead)
		if !ok || p.MsgID == "" {
			e.logger.Warn("dropping malformed event", zap.String("kind", evt.Kind))
			return
		}
		err = e.HandleMessageRead(p)
	case bus.KindRemoteTyping:
		p, ok := evt.Payload.(Typing)
		if !ok || p.ConversationID == 0 || p.UserName == "" {
			e.logger.Warn("dropping malformed event", zap.String("kind", evt.Kind))
			return
		}
		err = e.HandleTyping(p)
	case bus.KindRemoteUserOnline:
		p, ok := evt.Payload.(UserOnline)
		if !ok || p.UserID == 0 {
			e.logger.Warn("dropping malformed event", zap.String("kind", evt.Kind))
			return
		}
		err = e.HandleUserOnline(p, e.self)
	case bus.KindRemoteUserOffline:
		p, ok := evt.Payload.(UserOffline)
		if !ok || p.UserID == 0 {
			e.logger.Warn("dropping malformed event", zap.String("kind", evt.Kind))
			return
		}
		err = e.HandleUserOffline(p, e.self)
	case bus.KindRemoteConnected:
		err = e.HandleConnected(ctx)
	}
	if err != nil {
		// The event's processing is aborted; the store keeps its pre-event
		// state for the affected keys. Self-healing on the next event.
		e.logger.Error("event processing failed", zap.String("kind", evt.Kind), zap.Error(err))
	}
}

// HandleMessageReceived upserts the message and the conversation summary.
// The summary's display fields come from the payload; the latest-activity
// fields are recomputed from the stored message set, so redelivered or
// out-of-order events converge on the same state.
func (e *Engine) HandleMessageReceived(p MessageReceived) error {
	if err := e.db.UpsertMessage(p.Message); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}

	msgs, err := e.db.MessagesOfConversation(p.Conversation.ID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	fields := deriveLatest(msgs)

	merged := *p.Conversation
	merged.LastMessage = fields.LastMessage
	merged.LastSenderName = fields.LastSenderName
	merged.Timestamp = fields.Timestamp

	focused := e.focus != nil && e.focus.IsFocused(merged.ID)
	merged.Unread = !focused

	if err := e.db.UpsertConversation(&merged); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	if !focused && e.unread != nil {
		e.unread.MarkUnread(merged.ID, p.Message.MsgID)
	}

	e.bus.Emit(bus.KindMessageUpserted, p.Message.MsgID)
	e.bus.Emit(bus.KindConversationsChanged, merged.ID)
	return nil
}

// HandleMessageEdited updates the message body in place and refreshes the
// summary only when the edited message is the conversation's latest. Sender
// and timestamp are preserved.
func (e *Engine) HandleMessageEdited(p MessageEdited) error {
	if err := e.db.UpdateMessageContent(p.MsgID, p.Content); err != nil {
		return fmt.Errorf("update message content: %w", err)
	}

	conv, err := e.db.GetConversation(p.ConversationID)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		// Cold-start: the conversation will be created fresh on the next
		// MessageReceived. Not a fault.
		return nil
	}

	msgs, err := e.db.MessagesOfConversation(p.ConversationID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	fields := deriveLatest(msgs)
	if !applyLatest(conv, fields) {
		return nil
	}
	if err := e.db.UpsertConversation(conv); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	e.bus.Emit(bus.KindConversationsChanged, conv.ID)
	return nil
}

// HandleMessageDeleted tombstones the message, then recomputes the summary's
// latest-activity fields. A delete arriving before its create leaves a stub
// tombstone so both orders converge.
func (e *Engine) HandleMessageDeleted(p MessageDeleted) error {
	if err := e.db.MarkMessageDeleted(p.MsgID, p.ConversationID); err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}

	conv, err := e.db.GetConversation(p.ConversationID)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil
	}

	msgs, err := e.db.MessagesOfConversation(p.ConversationID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	fields := deriveLatest(msgs)
	if !applyLatest(conv, fields) {
		return nil
	}
	if err := e.db.UpsertConversation(conv); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	e.bus.Emit(bus.KindConversationsChanged, conv.ID)
	return nil
}

// applyLatest copies derived fields onto the summary, reporting whether
// anything changed.
func applyLatest(conv *store.Conversation, fields summaryFields) bool {
	if conv.LastMessage == fields.LastMessage &&
		conv.LastSenderName == fields.LastSenderName &&
		conv.Timestamp == fields.Timestamp {
		return false
	}
	conv.LastMessage = fields.LastMessage
	conv.LastSenderName = fields.LastSenderName
	conv.Timestamp = fields.Timestamp
	return true
}

// HandleMessageRead records a read receipt on the message. Summaries are
// unaffected.
func (e *Engine) HandleMessageRead(p MessageRead) error {
	if err := e.db.MarkMessageRead(p.MsgID, p.ReaderName); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	e.bus.Emit(bus.KindMessageUpserted, p.MsgID)
	return nil
}

// HandleTyping updates the conversation's whos-typing set.
func (e *Engine) HandleTyping(p Typing) error {
	conv, err := e.db.GetConversation(p.ConversationID)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil
	}

	idx := slices.Index(conv.WhosTyping, p.UserName)
	switch {
	case p.Active && idx == -1:
		conv.WhosTyping = append(conv.WhosTyping, p.UserName)
	case !p.Active && idx != -1:
		conv.WhosTyping = slices.Delete(conv.WhosTyping, idx, idx+1)
	default:
		return nil
	}

	if err := e.db.UpsertConversation(conv); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	e.bus.Emit(bus.KindConversationsChanged, conv.ID)
	return nil
}

// HandleUserOnline marks a user online. Presence is never persisted; if the
// user participates in any cached conversation a display-only refresh is
// emitted. The local session's own events are ignored.
func (e *Engine) HandleUserOnline(p UserOnline, selfUserID int64) error {
	if p.UserID == selfUserID {
		return nil
	}
	e.tracker.MarkOnline(p.UserID)
	return e.refreshPresenceFor(p.UserID)
}

// HandleUserOffline records the user's last-active instant.
func (e *Engine) HandleUserOffline(p UserOffline, selfUserID int64) error {
	if p.UserID == selfUserID {
		return nil
	}
	e.tracker.MarkOffline(p.UserID, p.LastActive)
	return e.refreshPresenceFor(p.UserID)
}

func (e *Engine) refreshPresenceFor(userID int64) error {
	convs, err := e.db.AllConversations()
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	var affected []int64
	for i := range convs {
		if convs[i].HasMember(userID) {
			affected = append(affected, convs[i].ID)
		}
	}
	if len(affected) > 0 {
		e.bus.Emit(bus.KindPresenceRefreshed, affected)
	}
	return nil
}

// HandleConnected re-synchronizes presence after a (re)connect: the full
// online snapshot replaces the tracker's mapping and every cached
// conversation gets a presence refresh. History gaps are not backfilled here.
func (e *Engine) HandleConnected(ctx context.Context) error {
	if e.snapshots == nil {
		return nil
	}
	snapshot, err := e.snapshots.OnlineSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetch online snapshot: %w", err)
	}
	e.tracker.ResetAll(snapshot)

	convs, err := e.db.AllConversations()
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	ids := make([]int64, 0, len(convs))
	for i := range convs {
		ids = append(ids, convs[i].ID)
	}
	if len(ids) > 0 {
		e.bus.Emit(bus.KindPresenceRefreshed, ids)
	}
	return nil
}

// ConversationView is a summary joined with live presence for rendering.
type ConversationView struct {
	store.Conversation
	IsOnline bool
}

// Conversations returns every cached summary with IsOnline derived from the
// presence tracker at read time.
func (e *Engine) Conversations() ([]ConversationView, error) {
	convs, err := e.db.AllConversations()
	if err != nil {
		return nil, err
	}
	views := make([]ConversationView, 0, len(convs))
	for i := range convs {
		counterparts := make([]int64, 0, len(convs[i].Members))
		for _, m := range convs[i].Members {
			if m.UserID != e.self {
				counterparts = append(counterparts, m.UserID)
			}
		}
		views = append(views, ConversationView{
			Conversation: convs[i],
			IsOnline:     e.tracker.AnyOnline(counterparts...),
		})
	}
	return views, nil
}
