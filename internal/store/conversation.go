package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertConversation inserts or replaces a conversation summary by id.
// Callers pass a full merged record; read-modify-write is the caller's
// responsibility, not the store's.
func (db *DB) UpsertConversation(c *Conversation) error {
	members, err := encodeJSON(c.Members)
	if err != nil {
		return err
	}
	typing, err := encodeJSON(c.WhosTyping)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO conversations (id, name_one, name_two, avatar_one, avatar_two, creator_id, last_sender_name, last_message, timestamp, members, whos_typing, unread, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name_one = excluded.name_one,
			name_two = excluded.name_two,
			avatar_one = excluded.avatar_one,
			avatar_two = excluded.avatar_two,
			creator_id = excluded.creator_id,
			last_sender_name = excluded.last_sender_name,
			last_message = excluded.last_message,
			timestamp = excluded.timestamp,
			members = excluded.members,
			whos_typing = excluded.whos_typing,
			unread = excluded.unread,
			updated_at = excluded.updated_at`,
		c.ID, c.NameOne, c.NameTwo, c.AvatarOne, c.AvatarTwo, c.CreatorID,
		c.LastSenderName, c.LastMessage, c.Timestamp, members, typing, c.Unread, now)
	return err
}

// GetConversation returns a single conversation by id, or nil if unknown.
func (db *DB) GetConversation(id int64) (*Conversation, error) {
	row := db.QueryRow(`
		SELECT id, name_one, name_two, avatar_one, avatar_two, creator_id, last_sender_name, last_message, timestamp, members, whos_typing, unread
		FROM conversations
		WHERE id = ?`, id)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AllConversations returns every conversation summary, most recent activity
// first.
func (db *DB) AllConversations() ([]Conversation, error) {
	rows, err := db.Query(`
		SELECT id, name_one, name_two, avatar_one, avatar_two, creator_id, last_sender_name, last_message, timestamp, members, whos_typing, unread
		FROM conversations
		ORDER BY timestamp DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	return convs, rows.Err()
}

// DeleteConversation removes a conversation summary. Only external archival
// flows call this; the sync core never deletes summaries.
func (db *DB) DeleteConversation(id int64) error {
	_, err := db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	return err
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var c Conversation
	var members, typing string
	if err := row.Scan(&c.ID, &c.NameOne, &c.NameTwo, &c.AvatarOne, &c.AvatarTwo,
		&c.CreatorID, &c.LastSenderName, &c.LastMessage, &c.Timestamp, &members, &typing, &c.Unread); err != nil {
		return nil, err
	}
	decodedMembers, err := decodeMembers(members)
	if err != nil {
		return nil, fmt.Errorf("conversation %d members: %w", c.ID, err)
	}
	decodedTyping, err := decodeStrings(typing)
	if err != nil {
		return nil, fmt.Errorf("conversation %d whos_typing: %w", c.ID, err)
	}
	c.Members = decodedMembers
	c.WhosTyping = decodedTyping
	return &c, nil
}
