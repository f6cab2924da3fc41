package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertMessage inserts or replaces a message by msg_id. Redelivery of the
// same event overwrites with identical content, a safe no-op. A tombstoned
// row is never resurrected: content and status survive the upsert so that
// delete-before-create reordering converges on the same final state.
func (db *DB) UpsertMessage(m *Message) error {
	readBy, err := encodeJSON(m.ReadBy)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO messages (msg_id, conversation_id, sender_id, sender_name, sender_avatar, content, timestamp, status, deleted, read_by, from_me, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(msg_id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			sender_id = excluded.sender_id,
			sender_name = excluded.sender_name,
			sender_avatar = excluded.sender_avatar,
			content = CASE WHEN messages.deleted = 1 THEN messages.content ELSE excluded.content END,
			timestamp = CASE WHEN excluded.timestamp != 0 THEN excluded.timestamp ELSE messages.timestamp END,
			status = CASE WHEN messages.deleted = 1 THEN messages.status ELSE excluded.status END,
			deleted = MAX(messages.deleted, excluded.deleted),
			read_by = excluded.read_by,
			from_me = excluded.from_me`,
		m.MsgID, m.ConversationID, m.SenderID, m.SenderName, m.SenderAvatar, m.Content,
		m.Timestamp, m.Status, m.Deleted, readBy, m.FromMe, now)
	return err
}

// MessagesOfConversation returns all messages of a conversation. The result
// carries no ordering guarantee; callers sort by timestamp when "latest"
// semantics are needed.
func (db *DB) MessagesOfConversation(conversationID int64) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, msg_id, conversation_id, sender_id, sender_name, sender_avatar, content, timestamp, status, deleted, read_by, from_me
		FROM messages
		WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// GetMessage returns a single message by msg_id, or nil if unknown.
func (db *DB) GetMessage(msgID string) (*Message, error) {
	row := db.QueryRow(`
		SELECT id, msg_id, conversation_id, sender_id, sender_name, sender_avatar, content, timestamp, status, deleted, read_by, from_me
		FROM messages
		WHERE msg_id = ?`, msgID)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateMessageContent replaces the body of a message in place. Tombstoned
// messages are left untouched.
func (db *DB) UpdateMessageContent(msgID, content string) error {
	_, err := db.Exec(`UPDATE messages SET content = ? WHERE msg_id = ? AND deleted = 0`, content, msgID)
	return err
}

// MarkMessageDeleted tombstones a message: the row stays, the content is
// cleared. If the create event has not arrived yet, a stub row is written so
// a late create cannot resurrect the message.
func (db *DB) MarkMessageDeleted(msgID string, conversationID int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (msg_id, conversation_id, content, deleted, created_at)
		VALUES (?, ?, '', 1, ?)
		ON CONFLICT(msg_id) DO UPDATE SET
			deleted = 1,
			content = ''`,
		msgID, conversationID, now)
	return err
}

// MarkMessageRead sets the read status and records the reader's name.
// Idempotent: a reader is recorded once.
func (db *DB) MarkMessageRead(msgID, readerName string) error {
	m, err := db.GetMessage(msgID)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	readBy := m.ReadBy
	found := false
	for _, name := range readBy {
		if name == readerName {
			found = true
			break
		}
	}
	if !found && readerName != "" {
		readBy = append(readBy, readerName)
	}
	encoded, err := encodeJSON(readBy)
	if err != nil {
		return err
	}
	_, err = db.Exec(`UPDATE messages SET status = ?, read_by = ? WHERE msg_id = ?`, StatusRead, encoded, msgID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	var readBy string
	if err := row.Scan(&m.ID, &m.MsgID, &m.ConversationID, &m.SenderID, &m.SenderName,
		&m.SenderAvatar, &m.Content, &m.Timestamp, &m.Status, &m.Deleted, &readBy, &m.FromMe); err != nil {
		return nil, err
	}
	decoded, err := decodeStrings(readBy)
	if err != nil {
		return nil, fmt.Errorf("message %s read_by: %w", m.MsgID, err)
	}
	m.ReadBy = decoded
	return &m, nil
}
