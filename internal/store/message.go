package store

import "time"

// UpsertMessage inserts or updates a message row (idempotent on chat_id + msg_id).
func (db *DB) UpsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (chat_id, msg_id, sender_id, from_me, body, content_kind, sending_state, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, msg_id) DO UPDATE SET
			body = excluded.body,
			content_kind = excluded.content_kind,
			sending_state = excluded.sending_state`,
		m.ChatID, m.MsgID, m.SenderID, m.FromMe, m.Body, m.ContentKind, m.SendingState, m.Timestamp, now)
	return err
}

// RekeyMessage swaps a pending local message id for the server-assigned one.
func (db *DB) RekeyMessage(chatID, oldID, newID int64) error {
	_, err := db.Exec(`UPDATE messages SET msg_id = ?, sending_state = 0 WHERE chat_id = ? AND msg_id = ?`,
		newID, chatID, oldID)
	return err
}

// ListMessages returns messages for a chat using keyset pagination by timestamp.
func (db *DB) ListMessages(chatID int64, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, chat_id, msg_id, sender_id, from_me, body, content_kind, sending_state, timestamp
		FROM messages
		WHERE chat_id = ? AND timestamp < ?
		ORDER BY timestamp DESC
		LIMIT ?`, chatID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.RowID, &m.ChatID, &m.MsgID, &m.SenderID, &m.FromMe, &m.Body, &m.ContentKind, &m.SendingState, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// DeleteChatMessages removes every message row for a chat (clear history).
func (db *DB) DeleteChatMessages(chatID int64) error {
	_, err := db.Exec(`DELETE FROM messages WHERE chat_id = ?`, chatID)
	return err
}
