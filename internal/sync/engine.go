// Package sync ingests backend push updates into the local mirror.
// It subscribes to "tg." events on the bus, applies them idempotently to
// the sqlite mirror and the record cache, and republishes store-level
// events the UI renders from.
package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gram/internal/backend"
	"gram/internal/bus"
	"gram/internal/store"
)

// Engine applies backend updates to the store.
type Engine struct {
	db      *store.DB
	records *store.Records
	bus     *bus.Bus
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// NewEngine creates a sync engine.
func NewEngine(db *store.DB, records *store.Records, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{db: db, records: records, bus: b, logger: logger}
}

// Start subscribes to inbound backend events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("tg.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindTelegramMessage:
		msg, ok := evt.Payload.(*backend.Message)
		if !ok {
			return
		}
		if err := e.IngestMessage(msg); err != nil {
			e.logger.Error("failed to ingest message", zap.Error(err), zap.Int64("msg_id", msg.ID))
		}
	case bus.KindTelegramMessageSent:
		swap, ok := evt.Payload.(bus.IDSwap)
		if !ok {
			return
		}
		e.records.Rekey(swap.ChatID, swap.OldID, swap.NewID)
		if err := e.db.RekeyMessage(swap.ChatID, swap.OldID, swap.NewID); err != nil {
			e.logger.Error("failed to rekey message", zap.Error(err), zap.Int64("old_id", swap.OldID))
			return
		}
		e.bus.Emit(bus.KindMessageUpserted, bus.MessageRef{ChatID: swap.ChatID, MessageID: swap.NewID})
	case bus.KindTelegramChat:
		chat, ok := evt.Payload.(*backend.Chat)
		if !ok {
			return
		}
		if err := e.db.UpsertChat(mirrorChat(chat)); err != nil {
			e.logger.Error("failed to upsert chat", zap.Error(err), zap.Int64("chat_id", chat.ID))
		}
	case bus.KindTelegramDraft:
		d, ok := evt.Payload.(bus.DraftChange)
		if !ok {
			return
		}
		if err := e.db.SetDraftText(d.ChatID, d.Text); err != nil {
			e.logger.Error("failed to store draft", zap.Error(err), zap.Int64("chat_id", d.ChatID))
			return
		}
		e.bus.Emit(bus.KindChatDraftChanged, d)
	case bus.KindTelegramReadInbox:
		r, ok := evt.Payload.(bus.ReadInbox)
		if !ok {
			return
		}
		if err := e.db.SetUnreadCount(r.ChatID, r.Unread); err != nil {
			e.logger.Error("failed to store read state", zap.Error(err), zap.Int64("chat_id", r.ChatID))
			return
		}
		e.bus.Emit(bus.KindChatReadStateChanged, r)
	case bus.KindTelegramUserAction:
		a, ok := evt.Payload.(bus.UserAction)
		if !ok {
			return
		}
		e.bus.Emit(bus.KindChatUserAction, a)
	case bus.KindTelegramFile:
		f, ok := evt.Payload.(bus.FileResolution)
		if !ok {
			return
		}
		e.records.ResolveFile(f.FileID, f.Path)
	}
}

// IngestMessage applies one message update: the chat row is bumped, the
// flattened row upserted, and the full record cached.
func (e *Engine) IngestMessage(msg *backend.Message) error {
	if err := e.db.BumpLastMessage(msg.ChatID, msg.Date, preview(msg.Content)); err != nil {
		return fmt.Errorf("bump chat: %w", err)
	}
	if err := e.db.UpsertMessage(mirrorMessage(msg)); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	e.records.Put(msg)

	ref := bus.MessageRef{ChatID: msg.ChatID, MessageID: msg.ID}
	e.bus.Emit(bus.KindMessageUpserted, ref)
	e.bus.Emit(bus.KindChatLastMessageChanged, ref)
	return nil
}

func mirrorChat(c *backend.Chat) *store.Chat {
	return &store.Chat{
		ID:                 c.ID,
		Title:              c.Title,
		Kind:               string(c.Kind),
		Username:           c.Username,
		CanSendMessages:    c.CanSendMessages,
		UnreadCount:        c.UnreadCount,
		LastMessageAt:      c.LastMessageAt,
		LastMessagePreview: c.LastMessagePreview,
		DraftText:          c.DraftText,
	}
}

func mirrorMessage(m *backend.Message) *store.Message {
	return &store.Message{
		ChatID:       m.ChatID,
		MsgID:        m.ID,
		SenderID:     m.SenderID,
		FromMe:       m.FromMe,
		Body:         preview(m.Content),
		ContentKind:  string(contentKind(m.Content)),
		SendingState: int(m.SendingState),
		Timestamp:    m.Date,
	}
}

func contentKind(c backend.Content) backend.ContentKind {
	if c == nil {
		return backend.ContentText
	}
	return c.Kind()
}

// preview renders the one-line chat list text for message content.
func preview(c backend.Content) string {
	switch v := c.(type) {
	case *backend.TextContent:
		return truncate(v.Text, 100)
	case *backend.PhotoContent:
		if v.Caption != "" {
			return truncate("Photo, "+v.Caption, 100)
		}
		return "Photo"
	case *backend.DocumentContent:
		return truncate("Document: "+v.Name, 100)
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
