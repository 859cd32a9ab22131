// Package typing rate-limits outbound "user is typing" notifications to at
// most one backend call per window per chat, no matter the keystroke rate.
package typing

import (
	"context"
	"sync"
	"time"

	"github.com/gotd/td/clock"
	"go.uber.org/zap"
)

// DefaultWindow is how long one typing notification stays fresh.
const DefaultWindow = 8 * time.Second

// Notifier is the backend call the throttle guards.
type Notifier interface {
	SendTypingAction(ctx context.Context, chatID int64) error
}

// Throttle tracks a per-chat typing window. The first keystroke in a chat
// (or the first after the window lapsed) issues one backend notification;
// keystrokes inside the window only refresh local state. The window lapsing
// is the only transition back to idle.
type Throttle struct {
	mu       sync.Mutex
	clock    clock.Clock
	window   time.Duration
	notifier Notifier
	logger   *zap.Logger

	deadlines map[int64]time.Time
	lastTyped map[int64]time.Time
}

// New creates a throttle. A non-positive window falls back to DefaultWindow.
func New(n Notifier, c clock.Clock, window time.Duration, logger *zap.Logger) *Throttle {
	if c == nil {
		c = clock.System
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Throttle{
		clock:     c,
		window:    window,
		notifier:  n,
		logger:    logger,
		deadlines: make(map[int64]time.Time),
		lastTyped: make(map[int64]time.Time),
	}
}

// NotifyTyping records a keystroke in chatID. Fire-and-forget: backend
// failures are logged, the window still opens so a flaky call cannot cause
// a notification flood.
func (t *Throttle) NotifyTyping(ctx context.Context, chatID int64) {
	now := t.clock.Now()

	t.mu.Lock()
	t.lastTyped[chatID] = now
	if deadline, ok := t.deadlines[chatID]; ok && now.Before(deadline) {
		t.mu.Unlock()
		return
	}
	t.deadlines[chatID] = now.Add(t.window)
	t.mu.Unlock()

	if err := t.notifier.SendTypingAction(ctx, chatID); err != nil {
		t.logger.Warn("typing notification failed",
			zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// Idle reports whether the chat's typing window has lapsed.
func (t *Throttle) Idle(chatID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	deadline, ok := t.deadlines[chatID]
	return !ok || !t.clock.Now().Before(deadline)
}
