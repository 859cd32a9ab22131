// Package attach binds locally-selected files to just-created message
// records so the user's own photo or document renders immediately, before
// the backend round-trip that materializes the bytes completes.
package attach

import (
	"go.uber.org/zap"

	"gram/internal/backend"
	"gram/internal/bus"
	"gram/internal/store"
)

// PreviewPhotoSide is the canonical preview rendition a photo binding
// targets. Size variants at or above this side length qualify.
const PreviewPhotoSide = 90

// Binder attaches local file handles to pending message content.
type Binder struct {
	records *store.Records
	bus     *bus.Bus
	logger  *zap.Logger
}

// New creates a binder over the message record cache.
func New(records *store.Records, b *bus.Bus, logger *zap.Logger) *Binder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binder{records: records, bus: b, logger: logger}
}

// BindLocalFile binds handle to the first file reference of the expected
// kind inside the message's content, if and only if the message is still
// send-pending and the reference has no resolved path, no bound handle,
// and backend-reported availability already marked complete. Any failed
// precondition makes the call a safe no-op: the backend's own resolution
// has either happened or will populate the slot.
func (b *Binder) BindLocalFile(chatID, messageID int64, handle *backend.LocalHandle, kind backend.ContentKind) {
	if handle == nil {
		return
	}

	bound := false
	var fileID int64

	b.records.Update(chatID, messageID, func(msg *backend.Message) {
		if msg.SendingState != backend.SendingPending {
			return
		}
		ref := findRef(msg.Content, kind)
		if ref == nil {
			// Content shape changed under us; the backend won.
			return
		}
		if ref.Handle != nil || ref.Path != "" || !ref.Ready {
			return
		}
		ref.Handle = handle
		fileID = ref.ID
		bound = true
	})

	if !bound {
		return
	}
	b.logger.Debug("local file bound",
		zap.Int64("chat_id", chatID),
		zap.Int64("message_id", messageID),
		zap.Int64("file_id", fileID))
	if b.bus != nil {
		b.bus.Emit(bus.KindFileBlobBound, bus.MessageRef{ChatID: chatID, MessageID: messageID})
	}
}

// findRef locates the bindable file reference for the expected content
// kind: the canonical preview size for photos, the single file for
// documents. Returns nil on any shape mismatch.
func findRef(content backend.Content, kind backend.ContentKind) *backend.FileRef {
	switch c := content.(type) {
	case *backend.PhotoContent:
		if kind != backend.ContentPhoto {
			return nil
		}
		return previewSize(c.Sizes)
	case *backend.DocumentContent:
		if kind != backend.ContentDocument {
			return nil
		}
		return c.File
	default:
		return nil
	}
}

// previewSize picks the first size whose longer side reaches the canonical
// preview side, falling back to the largest available.
func previewSize(sizes []backend.PhotoSize) *backend.FileRef {
	var best *backend.PhotoSize
	for i := range sizes {
		s := &sizes[i]
		if s.File == nil {
			continue
		}
		if maxSide(s) >= PreviewPhotoSide {
			return s.File
		}
		if best == nil || maxSide(s) > maxSide(best) {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	return best.File
}

func maxSide(s *backend.PhotoSize) int {
	if s.Width > s.Height {
		return s.Width
	}
	return s.Height
}
