package backend

// ChatKind classifies a chat for permission and link purposes.
type ChatKind string

const (
	ChatPrivate ChatKind = "private"
	ChatGroup   ChatKind = "group"
	ChatChannel ChatKind = "channel"
)

// Chat is the client-side view of a chat record.
type Chat struct {
	ID                 int64
	Title              string
	Kind               ChatKind
	Username           string // non-empty for public channels
	CanSendMessages    bool
	UnreadCount        int
	LastMessageAt      int64
	LastMessagePreview string
	DraftText          string
}

// SendingState tracks the delivery progress of an outgoing message.
type SendingState int

const (
	SendingNone SendingState = iota
	SendingPending
	SendingFailed
)

// ContentKind tags the variant held by a message's Content.
type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentPhoto    ContentKind = "photo"
	ContentDocument ContentKind = "document"
)

// Content is a message content variant.
type Content interface {
	Kind() ContentKind
}

// TextContent is plain message text.
type TextContent struct {
	Text string
}

func (TextContent) Kind() ContentKind { return ContentText }

// PhotoContent is a photo with one or more server-side size variants.
type PhotoContent struct {
	Sizes   []PhotoSize
	Caption string
}

func (PhotoContent) Kind() ContentKind { return ContentPhoto }

// PhotoSize is one rendition of a photo.
type PhotoSize struct {
	Type   string
	Width  int
	Height int
	File   *FileRef
}

// DocumentContent is an arbitrary file attachment.
type DocumentContent struct {
	Name string
	File *FileRef
}

func (DocumentContent) Kind() ContentKind { return ContentDocument }

// FileRef is a backend-owned file slot inside message content.
//
// Ready reports that the backend has finished materializing the file record
// (it may still lack bytes). Path is the backend-resolved local location and
// is authoritative. Handle is the optimistic local binding and must never
// overwrite a resolved Path.
type FileRef struct {
	ID     int64
	Size   int64
	Ready  bool
	Path   string
	Handle *LocalHandle
}

// LocalHandle identifies a locally-selected file before upload.
type LocalHandle struct {
	Token  string
	Name   string
	Path   string
	Size   int64
	Width  int // photos only
	Height int // photos only
}

// Message is the client-side view of a message record.
type Message struct {
	ID           int64
	ChatID       int64
	SenderID     int64
	FromMe       bool
	Date         int64
	SendingState SendingState
	Content      Content
}

// InputContent is the tagged content of a pending send.
type InputContent interface {
	InputKind() ContentKind
}

// InputText sends plain text.
type InputText struct {
	Text       string
	ClearDraft bool
}

func (InputText) InputKind() ContentKind { return ContentText }

// InputPhoto sends a locally-selected photo with inferred dimensions.
type InputPhoto struct {
	File   *LocalHandle
	Width  int
	Height int
}

func (InputPhoto) InputKind() ContentKind { return ContentPhoto }

// InputDocument sends a locally-selected file as a document.
type InputDocument struct {
	File *LocalHandle
}

func (InputDocument) InputKind() ContentKind { return ContentDocument }
