package telegram

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gotd/td/crypto"
	"github.com/gotd/td/telegram/message/unpack"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"gram/internal/backend"
	"gram/internal/bus"
)

// Outbound adapts the neutral client operations to MTProto RPC.
//
// Text sends are synchronous: the server-assigned id comes back in the RPC
// response. Media sends return immediately with a fabricated pending record
// (negative local id); the upload queue later transfers the bytes, issues
// the real send and publishes the id swap.
type Outbound struct {
	raw    *tg.Client
	peers  *PeerCache
	bus    *bus.Bus
	logger *zap.Logger
	rand   io.Reader

	selfID  atomic.Int64
	localID atomic.Int64

	mu      sync.Mutex
	pending map[int64]pendingMedia
}

type pendingMedia struct {
	chatID  int64
	replyTo int64
	kind    backend.ContentKind
	name    string
	path    string
	caption string
}

var _ backend.Client = (*Outbound)(nil)

// NewOutbound creates the outbound adapter over a raw MTProto client.
func NewOutbound(raw *tg.Client, peers *PeerCache, b *bus.Bus, logger *zap.Logger) *Outbound {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Outbound{
		raw:     raw,
		peers:   peers,
		bus:     b,
		logger:  logger,
		rand:    crypto.DefaultRand(),
		pending: make(map[int64]pendingMedia),
	}
}

// SetSelf records the authorized user's id for self-attributed records.
func (o *Outbound) SetSelf(userID int64) {
	o.selfID.Store(userID)
}

// SendMessage sends text synchronously or stages a media send.
func (o *Outbound) SendMessage(ctx context.Context, chatID, replyToMessageID int64, content backend.InputContent) (*backend.Message, error) {
	switch c := content.(type) {
	case backend.InputText:
		return o.sendText(ctx, chatID, replyToMessageID, c)
	case backend.InputPhoto:
		if c.File == nil {
			return nil, fmt.Errorf("send photo: no file")
		}
		return o.stageMedia(chatID, replyToMessageID, pendingMedia{
			chatID: chatID, replyTo: replyToMessageID,
			kind: backend.ContentPhoto, name: c.File.Name, path: c.File.Path,
		}, func(fileID int64) backend.Content {
			return &backend.PhotoContent{Sizes: []backend.PhotoSize{{
				Type: "m", Width: c.Width, Height: c.Height,
				File: &backend.FileRef{ID: fileID, Size: c.File.Size, Ready: true},
			}}}
		}), nil
	case backend.InputDocument:
		if c.File == nil {
			return nil, fmt.Errorf("send document: no file")
		}
		return o.stageMedia(chatID, replyToMessageID, pendingMedia{
			chatID: chatID, replyTo: replyToMessageID,
			kind: backend.ContentDocument, name: c.File.Name, path: c.File.Path,
		}, func(fileID int64) backend.Content {
			return &backend.DocumentContent{
				Name: c.File.Name,
				File: &backend.FileRef{ID: fileID, Size: c.File.Size, Ready: true},
			}
		}), nil
	default:
		return nil, fmt.Errorf("send message: unsupported content %q", content.InputKind())
	}
}

func (o *Outbound) sendText(ctx context.Context, chatID, replyTo int64, in backend.InputText) (*backend.Message, error) {
	peer, err := o.peers.Resolve(chatID)
	if err != nil {
		return nil, err
	}
	randomID, err := crypto.RandInt64(o.rand)
	if err != nil {
		return nil, fmt.Errorf("send text random id: %w", err)
	}
	req := &tg.MessagesSendMessageRequest{
		Peer:       peer,
		Message:    in.Text,
		RandomID:   randomID,
		ClearDraft: in.ClearDraft,
	}
	if replyTo != 0 {
		req.ReplyTo = &tg.InputReplyToMessage{ReplyToMsgID: int(replyTo)}
	}
	updates, err := o.raw.MessagesSendMessage(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("send text: %w", err)
	}
	id, err := unpack.MessageID(updates, nil)
	if err != nil {
		return nil, fmt.Errorf("extract sent message id: %w", err)
	}
	return &backend.Message{
		ID:       int64(id),
		ChatID:   chatID,
		SenderID: o.selfID.Load(),
		FromMe:   true,
		Date:     time.Now().Unix(),
		Content:  &backend.TextContent{Text: in.Text},
	}, nil
}

// stageMedia fabricates the pending local record for a media send and
// remembers what the upload queue needs to finish it.
func (o *Outbound) stageMedia(chatID, replyTo int64, p pendingMedia, content func(fileID int64) backend.Content) *backend.Message {
	localID := o.localID.Add(-1)
	o.mu.Lock()
	o.pending[localID] = p
	o.mu.Unlock()
	return &backend.Message{
		ID:           localID,
		ChatID:       chatID,
		SenderID:     o.selfID.Load(),
		FromMe:       true,
		Date:         time.Now().Unix(),
		SendingState: backend.SendingPending,
		Content:      content(localID),
	}
}

// Upload transfers a staged media send. On success the server-assigned id
// is published as an id swap and the local path is returned as the
// resolved file location (the bytes are already on disk).
func (o *Outbound) Upload(ctx context.Context, fileID int64, ref bus.MessageRef) (string, error) {
	o.mu.Lock()
	p, ok := o.pending[fileID]
	delete(o.pending, fileID)
	o.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("upload: no staged media for file %d", fileID)
	}

	peer, err := o.peers.Resolve(p.chatID)
	if err != nil {
		return "", err
	}
	f, err := uploader.NewUploader(o.raw).FromPath(ctx, p.path)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", p.path, err)
	}

	var media tg.InputMediaClass
	switch p.kind {
	case backend.ContentPhoto:
		media = &tg.InputMediaUploadedPhoto{File: f}
	default:
		media = &tg.InputMediaUploadedDocument{
			File:     f,
			MimeType: "application/octet-stream",
			Attributes: []tg.DocumentAttributeClass{
				&tg.DocumentAttributeFilename{FileName: p.name},
			},
		}
	}

	randomID, err := crypto.RandInt64(o.rand)
	if err != nil {
		return "", fmt.Errorf("send media random id: %w", err)
	}
	req := &tg.MessagesSendMediaRequest{
		Peer:     peer,
		Media:    media,
		Message:  p.caption,
		RandomID: randomID,
	}
	if p.replyTo != 0 {
		req.ReplyTo = &tg.InputReplyToMessage{ReplyToMsgID: int(p.replyTo)}
	}
	updates, err := o.raw.MessagesSendMedia(ctx, req)
	if err != nil {
		return "", fmt.Errorf("send media: %w", err)
	}
	id, err := unpack.MessageID(updates, nil)
	if err != nil {
		return "", fmt.Errorf("extract sent media id: %w", err)
	}

	o.logger.Debug("media sent",
		zap.Int64("chat_id", p.chatID),
		zap.Int64("local_id", ref.MessageID),
		zap.Int("server_id", id))
	o.bus.Emit(bus.KindTelegramMessageSent, bus.IDSwap{
		ChatID: ref.ChatID,
		OldID:  ref.MessageID,
		NewID:  int64(id),
	})
	return p.path, nil
}

// ForwardMessages forwards messages between chats.
func (o *Outbound) ForwardMessages(ctx context.Context, targetChatID, sourceChatID int64, messageIDs []int64) error {
	from, err := o.peers.Resolve(sourceChatID)
	if err != nil {
		return err
	}
	to, err := o.peers.Resolve(targetChatID)
	if err != nil {
		return err
	}
	ids := make([]int, 0, len(messageIDs))
	randomIDs := make([]int64, 0, len(messageIDs))
	for _, id := range messageIDs {
		randomID, err := crypto.RandInt64(o.rand)
		if err != nil {
			return fmt.Errorf("forward random id: %w", err)
		}
		ids = append(ids, int(id))
		randomIDs = append(randomIDs, randomID)
	}
	if _, err := o.raw.MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
		FromPeer: from,
		ToPeer:   to,
		ID:       ids,
		RandomID: randomIDs,
	}); err != nil {
		return fmt.Errorf("forward to chat %d: %w", targetChatID, err)
	}
	return nil
}

// ViewMessages marks history read up to the highest given id. Locally
// fabricated pending ids are skipped; the server does not know them.
func (o *Outbound) ViewMessages(ctx context.Context, chatID int64, messageIDs []int64) error {
	var maxID int64
	for _, id := range messageIDs {
		if id > maxID {
			maxID = id
		}
	}
	if maxID == 0 {
		return nil
	}
	if ch, err := o.peers.ResolveChannel(chatID); err == nil {
		if _, err := o.raw.ChannelsReadHistory(ctx, &tg.ChannelsReadHistoryRequest{
			Channel: ch,
			MaxID:   int(maxID),
		}); err != nil {
			return fmt.Errorf("read channel history: %w", err)
		}
		return nil
	}
	peer, err := o.peers.Resolve(chatID)
	if err != nil {
		return err
	}
	if _, err := o.raw.MessagesReadHistory(ctx, &tg.MessagesReadHistoryRequest{
		Peer:  peer,
		MaxID: int(maxID),
	}); err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	return nil
}

// SetDraftMessage persists draft text server-side.
func (o *Outbound) SetDraftMessage(ctx context.Context, chatID int64, text string) error {
	peer, err := o.peers.Resolve(chatID)
	if err != nil {
		return err
	}
	if _, err := o.raw.MessagesSaveDraft(ctx, &tg.MessagesSaveDraftRequest{
		Peer:    peer,
		Message: text,
	}); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// FetchChatList pulls one page of the dialog list, feeding the peer cache
// and publishing chat records for the mirror.
func (o *Outbound) FetchChatList(ctx context.Context, offsetOrder, offsetChatID int64, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 50
	}
	res, err := o.raw.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetDate: int(offsetOrder),
		OffsetID:   int(offsetChatID),
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("get dialogs: %w", err)
	}

	var (
		dialogs []tg.DialogClass
		users   []tg.UserClass
		chats   []tg.ChatClass
	)
	switch v := res.(type) {
	case *tg.MessagesDialogs:
		dialogs, users, chats = v.Dialogs, v.Users, v.Chats
	case *tg.MessagesDialogsSlice:
		dialogs, users, chats = v.Dialogs, v.Users, v.Chats
	default:
		return nil, fmt.Errorf("get dialogs: unexpected response %T", res)
	}

	userByID := make(map[int64]*tg.User)
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			userByID[user.ID] = user
			o.peers.RememberUser(user)
		}
	}
	chatByID := make(map[int64]tg.ChatClass)
	for _, c := range chats {
		switch v := c.(type) {
		case *tg.Chat:
			chatByID[GroupChatID(v.ID)] = v
		case *tg.Channel:
			chatByID[ChannelChatID(v.ID)] = v
		}
		o.peers.RememberChat(c)
	}

	var ids []int64
	for _, d := range dialogs {
		dialog, ok := d.(*tg.Dialog)
		if !ok {
			continue
		}
		chatID := PeerChatID(dialog.Peer)
		if chatID == 0 {
			continue
		}
		ids = append(ids, chatID)
		o.bus.Emit(bus.KindTelegramChat, dialogChat(chatID, dialog, userByID, chatByID))
	}
	return ids, nil
}

func dialogChat(chatID int64, dialog *tg.Dialog, users map[int64]*tg.User, chats map[int64]tg.ChatClass) *backend.Chat {
	out := &backend.Chat{
		ID:              chatID,
		Kind:            backend.ChatPrivate,
		CanSendMessages: true,
		UnreadCount:     dialog.UnreadCount,
	}
	if d, ok := dialog.Draft.(*tg.DraftMessage); ok {
		out.DraftText = d.Message
	}
	if user, ok := users[chatID]; ok {
		out.Title = displayName(user)
		return out
	}
	switch c := chats[chatID].(type) {
	case *tg.Chat:
		out.Kind = backend.ChatGroup
		out.Title = c.Title
	case *tg.Channel:
		out.Title = c.Title
		out.Username = c.Username
		if c.Broadcast {
			out.Kind = backend.ChatChannel
			out.CanSendMessages = c.Creator || c.AdminRights.PostMessages
		} else {
			out.Kind = backend.ChatGroup
			out.CanSendMessages = !c.Left
		}
	}
	return out
}

// CreatePrivateChat resolves the private chat with a user. With the
// caller's own id it yields saved messages.
func (o *Outbound) CreatePrivateChat(ctx context.Context, userID int64, force bool) (*backend.Chat, error) {
	var input tg.InputUserClass
	if userID == o.selfID.Load() {
		input = &tg.InputUserSelf{}
	} else if !force {
		if _, err := o.peers.ResolveUser(UserChatID(userID)); err != nil {
			return nil, err
		}
		input = &tg.InputUser{UserID: userID}
	} else {
		resolved, err := o.peers.ResolveUser(UserChatID(userID))
		if err != nil {
			return nil, err
		}
		input = resolved
	}

	users, err := o.raw.UsersGetUsers(ctx, []tg.InputUserClass{input})
	if err != nil {
		return nil, fmt.Errorf("resolve user %d: %w", userID, err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("resolve user %d: not found", userID)
	}
	user, ok := users[0].(*tg.User)
	if !ok {
		return nil, fmt.Errorf("resolve user %d: unexpected %T", userID, users[0])
	}
	o.peers.RememberUser(user)

	title := displayName(user)
	if user.Self {
		title = "Saved Messages"
	}
	return &backend.Chat{
		ID:              UserChatID(user.ID),
		Title:           title,
		Kind:            backend.ChatPrivate,
		CanSendMessages: true,
	}, nil
}

// FetchPublicMessageLink exports the t.me link for a channel message.
// Chats without a public link yield an empty string, not an error.
func (o *Outbound) FetchPublicMessageLink(ctx context.Context, chatID, messageID int64) (string, error) {
	ch, err := o.peers.ResolveChannel(chatID)
	if err != nil {
		return "", nil
	}
	link, err := o.raw.ChannelsExportMessageLink(ctx, &tg.ChannelsExportMessageLinkRequest{
		Channel: ch,
		ID:      int(messageID),
	})
	if err != nil {
		return "", fmt.Errorf("export message link: %w", err)
	}
	return link.Link, nil
}

// SendTypingAction notifies the chat that the user is typing.
func (o *Outbound) SendTypingAction(ctx context.Context, chatID int64) error {
	peer, err := o.peers.Resolve(chatID)
	if err != nil {
		return err
	}
	if _, err := o.raw.MessagesSetTyping(ctx, &tg.MessagesSetTypingRequest{
		Peer:   peer,
		Action: &tg.SendMessageTypingAction{},
	}); err != nil {
		return fmt.Errorf("set typing: %w", err)
	}
	return nil
}

func displayName(user *tg.User) string {
	name := user.FirstName
	if user.LastName != "" {
		if name != "" {
			name += " "
		}
		name += user.LastName
	}
	if name == "" {
		name = user.Username
	}
	return name
}
