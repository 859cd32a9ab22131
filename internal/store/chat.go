package store

import (
	"database/sql"
	"time"
)

// UpsertChat inserts or updates a chat record. Draft text is preserved on
// update unless the incoming row carries one; drafts have their own write
// path via SetDraftText.
func (db *DB) UpsertChat(c *Chat) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO chats (id, title, kind, username, can_send, unread_count, last_message_at, last_message_preview, draft_text, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			kind = excluded.kind,
			username = excluded.username,
			can_send = excluded.can_send,
			unread_count = excluded.unread_count,
			last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
			last_message_preview = CASE WHEN excluded.last_message_at >= chats.last_message_at THEN excluded.last_message_preview ELSE chats.last_message_preview END,
			draft_text = CASE WHEN excluded.draft_text != '' THEN excluded.draft_text ELSE chats.draft_text END,
			updated_at = excluded.updated_at`,
		c.ID, c.Title, c.Kind, c.Username, c.CanSendMessages, c.UnreadCount, c.LastMessageAt, c.LastMessagePreview, c.DraftText, now)
	return err
}

// BumpLastMessage advances a chat's last-message column pair without
// touching identity or permission columns. UpsertChat replaces the whole
// row and is only for callers holding a full chat record; message ingestion
// carries nothing but the bump and must not zero title, can_send or the
// unread counter.
func (db *DB) BumpLastMessage(chatID, at int64, preview string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO chats (id, last_message_at, last_message_preview, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
			last_message_preview = CASE WHEN excluded.last_message_at >= chats.last_message_at THEN excluded.last_message_preview ELSE chats.last_message_preview END,
			updated_at = excluded.updated_at`,
		chatID, at, preview, now)
	return err
}

// GetChat returns a single chat by id, or nil when unknown.
func (db *DB) GetChat(id int64) (*Chat, error) {
	var c Chat
	err := db.QueryRow(`
		SELECT id, title, kind, username, can_send, unread_count, last_message_at, last_message_preview, draft_text
		FROM chats WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &c.Kind, &c.Username, &c.CanSendMessages, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview, &c.DraftText)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChats returns chats sorted by last message timestamp descending.
func (db *DB) ListChats(limit, offset int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, title, kind, username, can_send, unread_count, last_message_at, last_message_preview, draft_text
		FROM chats
		ORDER BY last_message_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.Title, &c.Kind, &c.Username, &c.CanSendMessages, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview, &c.DraftText); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// SetDraftText writes a chat's persisted draft text. An empty string clears it.
func (db *DB) SetDraftText(chatID int64, text string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO chats (id, draft_text, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET draft_text = excluded.draft_text, updated_at = excluded.updated_at`,
		chatID, text, now)
	return err
}

// DraftText returns the persisted draft text for a chat. Unknown chats have
// an empty draft.
func (db *DB) DraftText(chatID int64) (string, error) {
	var text string
	err := db.QueryRow(`SELECT draft_text FROM chats WHERE id = ?`, chatID).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// SetUnreadCount updates a chat's unread counter.
func (db *DB) SetUnreadCount(chatID int64, unread int) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE chats SET unread_count = ?, updated_at = ? WHERE id = ?`, unread, now, chatID)
	return err
}
