package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/parley-chat/parley/internal/bus"
	"github.com/parley-chat/parley/internal/focus"
	"github.com/parley-chat/parley/internal/lock"
	"github.com/parley-chat/parley/internal/presence"
	"github.com/parley-chat/parley/internal/store"
	intsync "github.com/parley-chat/parley/internal/sync"
	"github.com/parley-chat/parley/internal/unread"
	"go.uber.org/fx"
)

// TestFxModuleWiring verifies the fx dependency graph resolves without errors.
func TestFxModuleWiring(t *testing.T) {
	tmpDir := t.TempDir()
	p := Params{
		ProfileName: "fxtest",
		ServerURL:   "ws://localhost:0/ws",
		UserID:      99,
		UserName:    "me",
		DBPath:      filepath.Join(tmpDir, "parley.db"),
		LogPath:     filepath.Join(tmpDir, "parleyd.log"),
	}
	if err := fx.ValidateApp(Module(p)); err != nil {
		t.Fatalf("fx graph does not resolve: %v", err)
	}
}

// TestDaemonComponents wires the daemon's components by hand and pushes a
// remote event end to end: bus -> engine -> store -> change notification.
func TestDaemonComponents(t *testing.T) {
	tmpDir := t.TempDir()

	lk, err := lock.Acquire(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	db, err := store.Open(filepath.Join(tmpDir, "parley.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	b := bus.New()
	tracker := presence.NewTracker()
	reg := focus.NewRegistry()
	agg := unread.NewAggregator()
	engine := intsync.NewEngine(db, tracker, b, reg, agg, nil, 99, nil)

	changed, unsub := b.Subscribe("conversations.changed", 10)
	defer unsub()

	engine.Start(context.Background())
	defer engine.Stop()

	b.Emit(bus.KindRemoteMessageReceived, intsync.MessageReceived{
		Conversation: &store.Conversation{
			ID:      42,
			NameOne: "Me",
			NameTwo: "Alice",
			Members: []store.Member{{UserID: 99, UserName: "Me"}, {UserID: 1, UserName: "Alice"}},
		},
		Message: &store.Message{
			MsgID:          "m1",
			ConversationID: 42,
			SenderID:       1,
			SenderName:     "Alice",
			Content:        "hello",
			Timestamp:      1000,
			Status:         store.StatusDelivered,
		},
	})

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for conversations.changed")
	}

	conv, err := db.GetConversation(42)
	if err != nil {
		t.Fatal(err)
	}
	if conv == nil {
		t.Fatal("conversation not cached")
	}
	if conv.LastMessage != "hello" || conv.LastSenderName != "Alice" || conv.Timestamp != 1000 {
		t.Errorf("summary = {%q, %q, %d}, want {hello, Alice, 1000}", conv.LastMessage, conv.LastSenderName, conv.Timestamp)
	}
	if !conv.Unread {
		t.Error("unfocused conversation should be unread")
	}
	if got := agg.Count(42); got != 1 {
		t.Errorf("unread count = %d, want 1", got)
	}

	// Presence joins at read time.
	tracker.MarkOnline(1)
	views, err := engine.Conversations()
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || !views[0].IsOnline {
		t.Errorf("views = %+v, want one online conversation", views)
	}
}
