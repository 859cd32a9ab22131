// Package outbox turns composer submissions into backend send requests.
// Every submission runs the same pipeline: flush any pending clear-history
// action for the chat, issue the send, clear reply state, record the
// resulting message and mark the chat read. Media submissions additionally
// bind the local file for immediate rendering and enqueue the upload.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"gram/internal/attach"
	"gram/internal/backend"
	"gram/internal/bus"
	"gram/internal/composer"
	"gram/internal/sched"
	"gram/internal/store"
)

// ClearHistoryKey is the scheduled-action key for a chat's pending
// "undo clear history" reversal.
func ClearHistoryKey(chatID int64) string {
	return fmt.Sprintf("clear_history chat_id=%d", chatID)
}

// Uploads accepts byte-transfer work for media messages already recorded
// as pending sends.
type Uploads interface {
	Enqueue(fileID int64, ref bus.MessageRef)
}

// Dispatcher issues outgoing sends and maintains per-chat reply state.
type Dispatcher struct {
	backend backend.Client
	records *store.Records
	binder  *attach.Binder
	uploads Uploads
	sched   *sched.Registry
	bus     *bus.Bus
	logger  *zap.Logger

	mu      sync.Mutex
	replyTo map[int64]int64 // chat id -> message id being replied to
	paste   map[int64][]*backend.LocalHandle
}

// New creates a dispatcher.
func New(client backend.Client, records *store.Records, binder *attach.Binder, uploads Uploads, reg *sched.Registry, b *bus.Bus, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		backend: client,
		records: records,
		binder:  binder,
		uploads: uploads,
		sched:   reg,
		bus:     b,
		logger:  logger,
		replyTo: make(map[int64]int64),
		paste:   make(map[int64][]*backend.LocalHandle),
	}
}

// SetReply marks messageID as the reply target for subsequent sends in the
// chat. Zero clears it.
func (d *Dispatcher) SetReply(chatID, messageID int64) {
	d.mu.Lock()
	if messageID == 0 {
		delete(d.replyTo, chatID)
	} else {
		d.replyTo[chatID] = messageID
	}
	d.mu.Unlock()
	if d.bus != nil {
		d.bus.Emit(bus.KindAppReplyChanged, bus.MessageRef{ChatID: chatID, MessageID: messageID})
	}
}

// Reply returns the current reply target for a chat, zero when none.
func (d *Dispatcher) Reply(chatID int64) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.replyTo[chatID]
}

func (d *Dispatcher) takeReply(chatID int64) int64 {
	d.mu.Lock()
	id := d.replyTo[chatID]
	delete(d.replyTo, chatID)
	d.mu.Unlock()
	return id
}

// SubmitText sends the composed text as a message. Text that normalizes to
// empty is dropped without touching reply or draft state.
func (d *Dispatcher) SubmitText(ctx context.Context, chatID int64, text string) error {
	text = composer.Normalize(text)
	if text == "" {
		return nil
	}
	_, err := d.send(ctx, chatID, backend.InputText{Text: text, ClearDraft: true}, nil)
	return err
}

// SubmitPhoto sends a locally-selected photo. The pending record is bound
// to the local file so it renders before the upload finishes.
func (d *Dispatcher) SubmitPhoto(ctx context.Context, chatID int64, handle *backend.LocalHandle) error {
	if handle == nil {
		return nil
	}
	_, err := d.send(ctx, chatID, backend.InputPhoto{File: handle, Width: handle.Width, Height: handle.Height}, func(msg *backend.Message) {
		d.binder.BindLocalFile(msg.ChatID, msg.ID, handle, backend.ContentPhoto)
		d.enqueueUpload(msg)
	})
	return err
}

// SubmitDocuments sends each file as its own document message. Files are
// independent: one failure does not stop the rest, and all failures are
// joined into the returned error.
func (d *Dispatcher) SubmitDocuments(ctx context.Context, chatID int64, handles []*backend.LocalHandle) error {
	var errs []error
	for _, h := range handles {
		if h == nil {
			continue
		}
		handle := h
		_, err := d.send(ctx, chatID, backend.InputDocument{File: handle}, func(msg *backend.Message) {
			d.binder.BindLocalFile(msg.ChatID, msg.ID, handle, backend.ContentDocument)
			d.enqueueUpload(msg)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Paste stages dropped-in files for the chat and reports whether a
// confirmation prompt is needed. Empty input stages nothing.
func (d *Dispatcher) Paste(chatID int64, handles []*backend.LocalHandle) bool {
	staged := handles[:0:0]
	for _, h := range handles {
		if h != nil {
			staged = append(staged, h)
		}
	}
	if len(staged) == 0 {
		return false
	}
	d.mu.Lock()
	d.paste[chatID] = staged
	d.mu.Unlock()
	return true
}

// ConfirmPaste sends the staged files and clears the stage. Handles with
// probed image dimensions take the photo path so the pending record gets an
// optimistic preview binding; everything else goes out as documents.
func (d *Dispatcher) ConfirmPaste(ctx context.Context, chatID int64) error {
	d.mu.Lock()
	staged := d.paste[chatID]
	delete(d.paste, chatID)
	d.mu.Unlock()

	var errs []error
	var docs []*backend.LocalHandle
	for _, h := range staged {
		if h.Width > 0 && h.Height > 0 {
			if err := d.SubmitPhoto(ctx, chatID, h); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		docs = append(docs, h)
	}
	if err := d.SubmitDocuments(ctx, chatID, docs); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CancelPaste discards the staged files for a chat.
func (d *Dispatcher) CancelPaste(chatID int64) {
	d.mu.Lock()
	delete(d.paste, chatID)
	d.mu.Unlock()
}

// send is the shared dispatch pipeline. A pending clear-history reversal
// for the chat is flushed first so the send cannot land in history that is
// about to be truncated out from under it. then runs after the message is
// recorded but before the sent event is published.
func (d *Dispatcher) send(ctx context.Context, chatID int64, content backend.InputContent, then func(*backend.Message)) (*backend.Message, error) {
	d.sched.Invoke(ClearHistoryKey(chatID))

	replyTo := d.Reply(chatID)
	msg, err := d.backend.SendMessage(ctx, chatID, replyTo, content)
	if err != nil {
		d.logger.Error("send failed",
			zap.Int64("chat_id", chatID),
			zap.String("kind", string(content.InputKind())),
			zap.Error(err))
		if d.bus != nil {
			d.bus.Emit(bus.KindMessageSendFailed, bus.SendFailure{ChatID: chatID, Err: err})
		}
		return nil, fmt.Errorf("send to chat %d: %w", chatID, err)
	}

	d.takeReply(chatID)
	if d.bus != nil && replyTo != 0 {
		d.bus.Emit(bus.KindAppReplyChanged, bus.MessageRef{ChatID: chatID})
	}
	d.records.Put(msg)

	if err := d.backend.ViewMessages(ctx, chatID, []int64{msg.ID}); err != nil {
		d.logger.Warn("view after send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	if then != nil {
		then(msg)
	}
	if d.bus != nil {
		d.bus.Emit(bus.KindMessageSent, bus.MessageRef{ChatID: chatID, MessageID: msg.ID})
	}
	return msg, nil
}

func (d *Dispatcher) enqueueUpload(msg *backend.Message) {
	if d.uploads == nil {
		return
	}
	for _, ref := range pendingFiles(msg.Content) {
		d.uploads.Enqueue(ref.ID, bus.MessageRef{ChatID: msg.ChatID, MessageID: msg.ID})
	}
}

// pendingFiles returns the content's file slots that still need bytes.
func pendingFiles(content backend.Content) []*backend.FileRef {
	switch c := content.(type) {
	case *backend.PhotoContent:
		var refs []*backend.FileRef
		for i := range c.Sizes {
			if f := c.Sizes[i].File; f != nil && f.Path == "" {
				refs = append(refs, f)
			}
		}
		return refs
	case *backend.DocumentContent:
		if c.File != nil && c.File.Path == "" {
			return []*backend.FileRef{c.File}
		}
	}
	return nil
}
