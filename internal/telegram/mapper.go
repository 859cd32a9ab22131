package telegram

import (
	"context"
	"sync/atomic"

	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"gram/internal/backend"
	"gram/internal/bus"
)

// Mapper translates raw MTProto updates into domain events on the bus.
// It also feeds the peer cache: every user and chat attached to an update
// envelope is remembered for later outbound resolution.
type Mapper struct {
	peers  *PeerCache
	bus    *bus.Bus
	logger *zap.Logger
	selfID atomic.Int64
}

// NewMapper creates an update mapper.
func NewMapper(peers *PeerCache, b *bus.Bus, logger *zap.Logger) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{peers: peers, bus: b, logger: logger}
}

// SetSelf records the authorized user's id, needed to attribute outgoing
// messages in private chats where Telegram omits the sender.
func (m *Mapper) SetSelf(userID int64) {
	m.selfID.Store(userID)
}

// Handle implements the gotd update handler.
func (m *Mapper) Handle(_ context.Context, u tg.UpdatesClass) error {
	switch v := u.(type) {
	case *tg.Updates:
		m.rememberEntities(v.Users, v.Chats)
		for _, upd := range v.Updates {
			m.apply(upd)
		}
	case *tg.UpdatesCombined:
		m.rememberEntities(v.Users, v.Chats)
		for _, upd := range v.Updates {
			m.apply(upd)
		}
	case *tg.UpdateShort:
		m.apply(v.Update)
	case *tg.UpdateShortMessage:
		m.emitMessage(&backend.Message{
			ID:       int64(v.ID),
			ChatID:   UserChatID(v.UserID),
			SenderID: m.shortSender(v.Out, v.UserID),
			FromMe:   v.Out,
			Date:     int64(v.Date),
			Content:  &backend.TextContent{Text: v.Message},
		})
	case *tg.UpdateShortChatMessage:
		m.emitMessage(&backend.Message{
			ID:       int64(v.ID),
			ChatID:   GroupChatID(v.ChatID),
			SenderID: v.FromID,
			FromMe:   v.Out,
			Date:     int64(v.Date),
			Content:  &backend.TextContent{Text: v.Message},
		})
	}
	return nil
}

func (m *Mapper) shortSender(out bool, userID int64) int64 {
	if out {
		return m.selfID.Load()
	}
	return userID
}

func (m *Mapper) rememberEntities(users []tg.UserClass, chats []tg.ChatClass) {
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			m.peers.RememberUser(user)
		}
	}
	for _, c := range chats {
		m.peers.RememberChat(c)
	}
}

func (m *Mapper) apply(upd tg.UpdateClass) {
	switch v := upd.(type) {
	case *tg.UpdateNewMessage:
		if msg, ok := v.Message.(*tg.Message); ok {
			m.emitMessage(m.MapMessage(msg))
		}
	case *tg.UpdateNewChannelMessage:
		if msg, ok := v.Message.(*tg.Message); ok {
			m.emitMessage(m.MapMessage(msg))
		}
	case *tg.UpdateDraftMessage:
		text := ""
		if d, ok := v.Draft.(*tg.DraftMessage); ok {
			text = d.Message
		}
		m.bus.Emit(bus.KindTelegramDraft, bus.DraftChange{ChatID: PeerChatID(v.Peer), Text: text})
	case *tg.UpdateReadHistoryInbox:
		m.bus.Emit(bus.KindTelegramReadInbox, bus.ReadInbox{
			ChatID: PeerChatID(v.Peer),
			MaxID:  int64(v.MaxID),
			Unread: v.StillUnreadCount,
		})
	case *tg.UpdateReadChannelInbox:
		m.bus.Emit(bus.KindTelegramReadInbox, bus.ReadInbox{
			ChatID: ChannelChatID(v.ChannelID),
			MaxID:  int64(v.MaxID),
			Unread: v.StillUnreadCount,
		})
	case *tg.UpdateUserTyping:
		m.bus.Emit(bus.KindTelegramUserAction, bus.UserAction{
			ChatID: UserChatID(v.UserID),
			UserID: v.UserID,
			Typing: isTyping(v.Action),
		})
	case *tg.UpdateChatUserTyping:
		m.bus.Emit(bus.KindTelegramUserAction, bus.UserAction{
			ChatID: GroupChatID(v.ChatID),
			UserID: peerUserID(v.FromID),
			Typing: isTyping(v.Action),
		})
	case *tg.UpdateChannelUserTyping:
		m.bus.Emit(bus.KindTelegramUserAction, bus.UserAction{
			ChatID: ChannelChatID(v.ChannelID),
			UserID: peerUserID(v.FromID),
			Typing: isTyping(v.Action),
		})
	}
}

func (m *Mapper) emitMessage(msg *backend.Message) {
	if msg == nil {
		return
	}
	m.bus.Emit(bus.KindTelegramMessage, msg)
}

// MapMessage converts a raw message into the client-side record.
func (m *Mapper) MapMessage(msg *tg.Message) *backend.Message {
	out := &backend.Message{
		ID:      int64(msg.ID),
		ChatID:  PeerChatID(msg.PeerID),
		FromMe:  msg.Out,
		Date:    int64(msg.Date),
		Content: mapContent(msg),
	}
	if from, ok := msg.FromID.(*tg.PeerUser); ok {
		out.SenderID = from.UserID
	} else if msg.Out {
		out.SenderID = m.selfID.Load()
	} else if peer, ok := msg.PeerID.(*tg.PeerUser); ok {
		out.SenderID = peer.UserID
	}
	return out
}

func mapContent(msg *tg.Message) backend.Content {
	switch media := msg.Media.(type) {
	case *tg.MessageMediaPhoto:
		if photo, ok := media.Photo.(*tg.Photo); ok {
			return mapPhoto(photo, msg.Message)
		}
	case *tg.MessageMediaDocument:
		if doc, ok := media.Document.(*tg.Document); ok {
			return mapDocument(doc)
		}
	}
	return &backend.TextContent{Text: msg.Message}
}

func mapPhoto(photo *tg.Photo, caption string) *backend.PhotoContent {
	content := &backend.PhotoContent{Caption: caption}
	for _, s := range photo.Sizes {
		ps, ok := s.(*tg.PhotoSize)
		if !ok {
			continue
		}
		content.Sizes = append(content.Sizes, backend.PhotoSize{
			Type:   ps.Type,
			Width:  ps.W,
			Height: ps.H,
			File:   &backend.FileRef{ID: photo.ID, Size: int64(ps.Size), Ready: true},
		})
	}
	return content
}

func mapDocument(doc *tg.Document) *backend.DocumentContent {
	name := "file"
	for _, attr := range doc.Attributes {
		if fn, ok := attr.(*tg.DocumentAttributeFilename); ok {
			name = fn.FileName
		}
	}
	return &backend.DocumentContent{
		Name: name,
		File: &backend.FileRef{ID: doc.ID, Size: doc.Size, Ready: true},
	}
}

// PeerChatID folds a peer into the chat id space.
func PeerChatID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return UserChatID(p.UserID)
	case *tg.PeerChat:
		return GroupChatID(p.ChatID)
	case *tg.PeerChannel:
		return ChannelChatID(p.ChannelID)
	}
	return 0
}

func peerUserID(peer tg.PeerClass) int64 {
	if p, ok := peer.(*tg.PeerUser); ok {
		return p.UserID
	}
	return 0
}

func isTyping(action tg.SendMessageActionClass) bool {
	switch action.(type) {
	case *tg.SendMessageCancelAction:
		return false
	default:
		return true
	}
}
