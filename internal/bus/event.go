package bus

import "time"

// Event kinds published on the bus. Subscribers filter by namespace prefix,
// e.g. "chat." receives every chat-store event.
const (
	// Backend push updates, republished by the telegram adapter.
	KindTelegramMessage     = "tg.message"
	KindTelegramMessageSent = "tg.message_sent"
	KindTelegramDraft       = "tg.draft"
	KindTelegramReadInbox   = "tg.read_inbox"
	KindTelegramUserAction  = "tg.user_action"
	KindTelegramFile        = "tg.file"
	KindTelegramChat        = "tg.chat"

	// Chat-store events consumed by list renderers.
	KindChatDraftChanged       = "chat.draft_changed"
	KindChatLastMessageChanged = "chat.last_message_changed"
	KindChatReadStateChanged   = "chat.read_state_changed"
	KindChatUserAction         = "chat.user_action"
	KindChatClearHistory       = "chat.clear_history"

	// Application-store events.
	KindAppActiveChatChanged = "app.active_chat_changed"
	KindAppReplyChanged      = "app.reply_changed"

	// Outgoing message lifecycle.
	KindMessageSent       = "message.sent"
	KindMessageSendFailed = "message.send_failed"
	KindMessageUpserted   = "message.upserted"

	// Session lifecycle.
	KindSessionStatusChanged = "session.status_changed"

	// File-store events.
	KindFileBlobBound       = "file.blob_bound"
	KindFileUploadCompleted = "file.upload_completed"
	KindFileUploadFailed    = "file.upload_failed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// MessageRef identifies a message within a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int64
}

// SendFailure is the payload for message.send_failed events.
type SendFailure struct {
	ChatID int64
	Err    error
}

// DraftChange is the payload for chat.draft_changed and tg.draft events.
type DraftChange struct {
	ChatID int64
	Text   string
}

// FileResolution is the payload for tg.file and file.upload_completed
// events: the backend's authoritative local availability for a file.
type FileResolution struct {
	FileID int64
	Path   string
}

// ReadInbox is the payload for tg.read_inbox and chat.read_state_changed:
// the chat's inbox was read up to MaxID, leaving Unread messages.
type ReadInbox struct {
	ChatID int64
	MaxID  int64
	Unread int
}

// UserAction is the payload for tg.user_action and chat.user_action
// events, e.g. a peer typing in a chat.
type UserAction struct {
	ChatID int64
	UserID int64
	Typing bool
}

// ClearHistory is the payload for chat.clear_history events.
type ClearHistory struct {
	ChatID     int64
	InProgress bool
}

// IDSwap is the payload for tg.message_sent: a pending local message id
// replaced by the server-assigned one.
type IDSwap struct {
	ChatID int64
	OldID  int64
	NewID  int64
}
