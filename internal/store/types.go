package store

// Chat is a mirrored chat row. DraftText is the last draft the backend
// reported (or the client optimistically persisted).
type Chat struct {
	ID                 int64
	Title              string
	Kind               string
	Username           string
	CanSendMessages    bool
	UnreadCount        int
	LastMessageAt      int64
	LastMessagePreview string
	DraftText          string
}

// Message is a mirrored message row, flattened for list rendering. Full
// content records live in Records.
type Message struct {
	RowID        int64
	ChatID       int64
	MsgID        int64
	SenderID     int64
	FromMe       bool
	Body         string
	ContentKind  string
	SendingState int
	Timestamp    int64
}
