// Package draft decides when in-progress composer text must be persisted
// as a chat draft. Capture happens when the composer is torn down or the
// active chat changes, strictly before the composer rebinds.
package draft

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gram/internal/bus"
	"gram/internal/composer"
)

// Draft is the pending persistence of a chat's composed text.
type Draft struct {
	ChatID int64
	Text   string
}

// Store reads the last known persisted draft for a chat.
type Store interface {
	DraftText(chatID int64) (string, error)
	SetDraftText(chatID int64, text string) error
}

// Persister is the backend call that persists a draft.
type Persister interface {
	SetDraftMessage(ctx context.Context, chatID int64, text string) error
}

// Reconciler computes draft deltas against the persisted mirror and issues
// at most one persistence call per actual text change.
type Reconciler struct {
	store   Store
	backend Persister
	bus     *bus.Bus
	logger  *zap.Logger
}

// New creates a reconciler.
func New(store Store, backend Persister, b *bus.Bus, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, backend: backend, bus: b, logger: logger}
}

// Delta compares the chat's persisted draft with the composed text and
// returns a draft only when they differ, including transitions to and from
// empty. Unchanged text yields nil.
func (r *Reconciler) Delta(chatID int64, composedText string) *Draft {
	if chatID == 0 {
		return nil
	}
	current := composer.Normalize(composedText)
	previous, err := r.store.DraftText(chatID)
	if err != nil {
		r.logger.Warn("draft read failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return nil
	}
	if current == previous {
		return nil
	}
	return &Draft{ChatID: chatID, Text: current}
}

// Commit issues exactly one persistence call for the draft. A nil draft is
// a no-op. On success the local mirror is updated optimistically so a
// repeated Delta for unchanged text yields nil without a backend round-trip.
func (r *Reconciler) Commit(ctx context.Context, d *Draft) error {
	if d == nil {
		return nil
	}
	if err := r.backend.SetDraftMessage(ctx, d.ChatID, d.Text); err != nil {
		return fmt.Errorf("set draft for chat %d: %w", d.ChatID, err)
	}
	if err := r.store.SetDraftText(d.ChatID, d.Text); err != nil {
		r.logger.Warn("draft mirror update failed", zap.Int64("chat_id", d.ChatID), zap.Error(err))
	}
	if r.bus != nil {
		r.bus.Emit(bus.KindChatDraftChanged, bus.DraftChange{ChatID: d.ChatID, Text: d.Text})
	}
	return nil
}

// FlushOnLeave captures and persists the outgoing chat's composed text.
// Called once on composer teardown and once per chat switch, before the
// composer is rebound to the new chat.
func (r *Reconciler) FlushOnLeave(ctx context.Context, chatID int64, composedText string) error {
	return r.Commit(ctx, r.Delta(chatID, composedText))
}
