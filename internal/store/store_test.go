package store

import (
	"path/filepath"
	"slices"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestMessageUpsertIdempotent(t *testing.T) {
	db := testDB(t)

	msg := &Message{MsgID: "m1", ConversationID: 42, SenderName: "Alice", Content: "hello", Timestamp: 1000, Status: StatusDelivered}
	if err := db.UpsertMessage(msg); err != nil {
		t.Fatal(err)
	}
	// Re-applying must replace, not append.
	msg.Content = "hello edited"
	if err := db.UpsertMessage(msg); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.MessagesOfConversation(42)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (idempotent upsert)", len(msgs))
	}
	if msgs[0].Content != "hello edited" {
		t.Errorf("content = %q, want 'hello edited'", msgs[0].Content)
	}
}

func TestMessageUpsertKeepsTombstone(t *testing.T) {
	db := testDB(t)

	// Delete arrives before the create.
	if err := db.MarkMessageDeleted("m1", 42); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(&Message{MsgID: "m1", ConversationID: 42, Content: "late create", Timestamp: 1000, Status: StatusDelivered}); err != nil {
		t.Fatal(err)
	}

	m, err := db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if m == nil {
		t.Fatal("message missing")
	}
	if !m.Deleted {
		t.Error("late create resurrected a tombstoned message")
	}
	if m.Content != "" {
		t.Errorf("content = %q, want empty tombstone", m.Content)
	}
	if m.Timestamp != 1000 {
		t.Errorf("timestamp = %d, want 1000 (filled in by late create)", m.Timestamp)
	}
}

func TestUpdateMessageContentSkipsDeleted(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertMessage(&Message{MsgID: "m1", ConversationID: 1, Content: "v1", Timestamp: 10}); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkMessageDeleted("m1", 1); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateMessageContent("m1", "v2"); err != nil {
		t.Fatal(err)
	}

	m, err := db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if m.Content != "" {
		t.Errorf("content = %q, want empty (edits must not touch tombstones)", m.Content)
	}
}

func TestMarkMessageRead(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertMessage(&Message{MsgID: "m1", ConversationID: 1, Content: "hi", Timestamp: 10, Status: StatusDelivered}); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkMessageRead("m1", "Bob"); err != nil {
		t.Fatal(err)
	}
	// Same reader twice is recorded once.
	if err := db.MarkMessageRead("m1", "Bob"); err != nil {
		t.Fatal(err)
	}

	m, err := db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != StatusRead {
		t.Errorf("status = %q, want %q", m.Status, StatusRead)
	}
	if !slices.Equal(m.ReadBy, []string{"Bob"}) {
		t.Errorf("read_by = %v, want [Bob]", m.ReadBy)
	}

	// Unknown message is a no-op, not an error.
	if err := db.MarkMessageRead("missing", "Bob"); err != nil {
		t.Fatal(err)
	}
}

func TestConversationUpsertAndGet(t *testing.T) {
	db := testDB(t)

	conv := &Conversation{
		ID:      42,
		NameOne: "Alice", NameTwo: "Bob",
		CreatorID:   1,
		LastMessage: "hey", LastSenderName: "Bob", Timestamp: 2000,
		Members: []Member{{UserID: 1, UserName: "Alice"}, {UserID: 2, UserName: "Bob"}},
		Unread:  true,
	}
	if err := db.UpsertConversation(conv); err != nil {
		t.Fatal(err)
	}

	// Full-record replace.
	conv.LastMessage = "later"
	conv.Unread = false
	if err := db.UpsertConversation(conv); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetConversation(42)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("conversation missing")
	}
	if got.LastMessage != "later" || got.Unread {
		t.Errorf("got %+v, want last_message=later unread=false", got)
	}
	if len(got.Members) != 2 || got.Members[1].UserName != "Bob" {
		t.Errorf("members = %v, want Alice+Bob", got.Members)
	}
	if !got.HasMember(2) || got.HasMember(3) {
		t.Error("HasMember gave wrong answers")
	}

	missing, err := db.GetConversation(999)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("expected nil for unknown conversation")
	}
}

func TestAllConversationsOrder(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertConversation(&Conversation{ID: 1, Timestamp: 100}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertConversation(&Conversation{ID: 2, Timestamp: 300}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertConversation(&Conversation{ID: 3, Timestamp: 200}); err != nil {
		t.Fatal(err)
	}

	convs, err := db.AllConversations()
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 3 {
		t.Fatalf("got %d conversations, want 3", len(convs))
	}
	if convs[0].ID != 2 || convs[1].ID != 3 || convs[2].ID != 1 {
		t.Errorf("order = %d,%d,%d, want 2,3,1 (most recent first)", convs[0].ID, convs[1].ID, convs[2].ID)
	}
}

func TestDeleteConversation(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertConversation(&Conversation{ID: 1}); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteConversation(1); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetConversation(1)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("conversation still present after delete")
	}
}

func TestOutbox(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox("m1", 42, "hello"); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending, want 1", len(pending))
	}
	if pending[0].MsgID != "m1" || pending[0].ConversationID != 42 {
		t.Errorf("entry = %+v, want m1/42", pending[0])
	}

	if err := db.MarkOutboxSending("m1"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxSent("m1"); err != nil {
		t.Fatal(err)
	}

	pending, err = db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending after sent, want 0", len(pending))
	}
}
