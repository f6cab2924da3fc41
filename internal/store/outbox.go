package store

import "time"

// QueueOutbox adds a message to the send outbox. msgID is the client-assigned
// message id, reused for the optimistic cache row and stable across retries.
func (db *DB) QueueOutbox(msgID string, conversationID int64, content string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outbox (msg_id, conversation_id, content, status, created_at, updated_at)
		VALUES (?, ?, ?, 'queued', ?, ?)`,
		msgID, conversationID, content, now, now)
	return err
}

// MarkOutboxSending updates an outbox entry to 'sending' status.
func (db *DB) MarkOutboxSending(msgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sending', updated_at = ? WHERE msg_id = ?`, now, msgID)
	return err
}

// MarkOutboxSent updates an outbox entry to 'sent'.
func (db *DB) MarkOutboxSent(msgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sent', updated_at = ? WHERE msg_id = ?`, now, msgID)
	return err
}

// MarkOutboxFailed updates an outbox entry to 'failed' with an error message.
func (db *DB) MarkOutboxFailed(msgID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE msg_id = ?`, errMsg, now, msgID)
	return err
}

// PendingOutbox returns outbox entries that are still queued.
func (db *DB) PendingOutbox() ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, msg_id, conversation_id, content, status, error_message
		FROM outbox WHERE status = 'queued' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.MsgID, &e.ConversationID, &e.Content, &e.Status, &e.ErrorMessage); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
