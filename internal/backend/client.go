package backend

import "context"

// Client is the asynchronous backend messaging service the core talks to.
// Implementations live behind the network; every call can fail transiently
// and callers surface failures without corrupting local state.
type Client interface {
	// SendMessage issues one send request and returns the resulting message
	// record. Media sends may return a locally-created pending record whose
	// bytes are transferred later by the upload queue.
	SendMessage(ctx context.Context, chatID, replyToMessageID int64, content InputContent) (*Message, error)

	// ForwardMessages forwards messages from sourceChatID to targetChatID.
	ForwardMessages(ctx context.Context, targetChatID, sourceChatID int64, messageIDs []int64) error

	// ViewMessages marks messages as viewed in a chat.
	ViewMessages(ctx context.Context, chatID int64, messageIDs []int64) error

	// SetDraftMessage persists draft text for a chat. Empty text clears it.
	SetDraftMessage(ctx context.Context, chatID int64, text string) error

	// FetchChatList returns chat ids ordered by the backend's dialog order.
	FetchChatList(ctx context.Context, offsetOrder, offsetChatID int64, limit int) ([]int64, error)

	// CreatePrivateChat resolves (or creates) the private chat with a user.
	// Called with the caller's own id it yields the saved-messages chat.
	CreatePrivateChat(ctx context.Context, userID int64, force bool) (*Chat, error)

	// FetchPublicMessageLink returns a public t.me link for a message, or
	// empty when the chat has none.
	FetchPublicMessageLink(ctx context.Context, chatID, messageID int64) (string, error)

	// SendTypingAction notifies the chat that the user is typing.
	// Fire-and-forget; failures are logged, never surfaced.
	SendTypingAction(ctx context.Context, chatID int64) error
}
