// Package forward drives the forward-target picker: loading candidate
// chats, toggling selections, fanning the forward out to every selected
// target and producing a shareable public link when one exists.
package forward

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"gram/internal/backend"
	"gram/internal/sched"
	"gram/internal/store"
)

// Phase is the coordinator lifecycle stage.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseReady
	PhaseSending
	PhaseClosed
)

// copyLinkWindow suppresses duplicate "link copied" notifications for the
// same link while one is still on screen.
const copyLinkWindow = 4*time.Second + 2*150*time.Millisecond

// ChatDirectory resolves mirrored chat rows for candidate ids.
type ChatDirectory interface {
	GetChat(chatID int64) (*store.Chat, error)
}

// Candidate is one pickable forward target.
type Candidate struct {
	Chat  *store.Chat
	Saved bool // the user's own saved-messages chat
}

// Coordinator owns one forward interaction: a fixed source chat and
// message set, a loaded candidate list and a mutable selection.
type Coordinator struct {
	backend backend.Client
	chats   ChatDirectory
	sched   *sched.Registry
	logger  *zap.Logger

	selfUserID   int64
	sourceChatID int64
	messageIDs   []int64

	mu         sync.Mutex
	phase      Phase
	candidates []Candidate
	selected   map[int64]int // chat id -> selection order
	nextOrder  int
	publicLink string
}

// New creates a coordinator for forwarding messageIDs out of sourceChatID.
func New(client backend.Client, chats ChatDirectory, reg *sched.Registry, selfUserID, sourceChatID int64, messageIDs []int64, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	ids := make([]int64, len(messageIDs))
	copy(ids, messageIDs)
	return &Coordinator{
		backend:      client,
		chats:        chats,
		sched:        reg,
		logger:       logger,
		selfUserID:   selfUserID,
		sourceChatID: sourceChatID,
		messageIDs:   ids,
		phase:        PhaseLoading,
		selected:     make(map[int64]int),
	}
}

// Load fetches the candidate list and, when a single message from a public
// channel is being forwarded, its shareable link. The dialog fetch and the
// saved-messages resolution run concurrently; either may fail without
// aborting the other, leaving a degraded but usable picker.
func (c *Coordinator) Load(ctx context.Context) {
	var (
		wg      sync.WaitGroup
		chatIDs []int64
		saved   *backend.Chat
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ids, err := c.backend.FetchChatList(ctx, 0, 0, 100)
		if err != nil {
			c.logger.Warn("chat list fetch failed", zap.Error(err))
			return
		}
		chatIDs = ids
	}()
	go func() {
		defer wg.Done()
		chat, err := c.backend.CreatePrivateChat(ctx, c.selfUserID, true)
		if err != nil {
			c.logger.Warn("saved messages resolution failed", zap.Error(err))
			return
		}
		saved = chat
	}()
	wg.Wait()

	candidates := c.assemble(chatIDs, saved)
	link := c.fetchLink(ctx)

	c.mu.Lock()
	if c.phase == PhaseLoading {
		c.candidates = candidates
		c.publicLink = link
		c.phase = PhaseReady
	}
	c.mu.Unlock()
}

// assemble builds the ordered candidate list: saved messages pinned first,
// then the dialog order with the saved chat deduplicated and chats the
// user cannot post to dropped.
func (c *Coordinator) assemble(chatIDs []int64, saved *backend.Chat) []Candidate {
	var out []Candidate
	var savedID int64
	if saved != nil {
		savedID = saved.ID
		out = append(out, Candidate{Saved: true, Chat: &store.Chat{
			ID:              saved.ID,
			Title:           saved.Title,
			Kind:            string(saved.Kind),
			CanSendMessages: true,
		}})
	}
	for _, id := range chatIDs {
		if id == savedID {
			continue
		}
		chat, err := c.chats.GetChat(id)
		if err != nil {
			c.logger.Warn("candidate lookup failed", zap.Int64("chat_id", id), zap.Error(err))
			continue
		}
		if chat == nil || !chat.CanSendMessages {
			continue
		}
		out = append(out, Candidate{Chat: chat})
	}
	return out
}

// fetchLink resolves the public message link, best effort. Only a single
// forwarded message from a public channel has one.
func (c *Coordinator) fetchLink(ctx context.Context) string {
	if len(c.messageIDs) != 1 {
		return ""
	}
	source, err := c.chats.GetChat(c.sourceChatID)
	if err != nil || source == nil || source.Username == "" {
		return ""
	}
	link, err := c.backend.FetchPublicMessageLink(ctx, c.sourceChatID, c.messageIDs[0])
	if err != nil {
		c.logger.Debug("public link fetch failed", zap.Int64("chat_id", c.sourceChatID), zap.Error(err))
		return ""
	}
	return link
}

// Phase returns the current lifecycle stage.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Candidates returns the loaded candidate list.
func (c *Coordinator) Candidates() []Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.candidates
}

// PublicLink returns the shareable link, empty when none applies.
func (c *Coordinator) PublicLink() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publicLink
}

// ToggleTarget adds or removes a chat from the selection. Selection order
// is preserved for the fanout.
func (c *Coordinator) ToggleTarget(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseReady {
		return
	}
	if _, ok := c.selected[chatID]; ok {
		delete(c.selected, chatID)
		return
	}
	c.selected[chatID] = c.nextOrder
	c.nextOrder++
}

// Selected reports whether a chat is currently a target.
func (c *Coordinator) Selected(chatID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.selected[chatID]
	return ok
}

// targets returns the selected chat ids in selection order.
func (c *Coordinator) targets() []int64 {
	ids := make([]int64, 0, len(c.selected))
	for id := range c.selected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return c.selected[ids[i]] < c.selected[ids[j]]
	})
	return ids
}

// Send fans the forward out to every selected target. For each target the
// optional comment is sent first, then the forward, so the comment reads
// as an introduction. Targets are independent: a failure is logged and
// joined into the returned error, and already-delivered targets are never
// rolled back.
func (c *Coordinator) Send(ctx context.Context, comment string) error {
	c.mu.Lock()
	if c.phase != PhaseReady {
		c.mu.Unlock()
		return fmt.Errorf("forward not ready (phase %d)", c.phase)
	}
	c.phase = PhaseSending
	targets := c.targets()
	c.mu.Unlock()

	var errs []error
	for _, target := range targets {
		if comment != "" {
			if _, err := c.backend.SendMessage(ctx, target, 0, backend.InputText{Text: comment}); err != nil {
				c.logger.Error("forward comment failed", zap.Int64("chat_id", target), zap.Error(err))
				errs = append(errs, fmt.Errorf("comment to chat %d: %w", target, err))
			}
		}
		if err := c.backend.ForwardMessages(ctx, target, c.sourceChatID, c.messageIDs); err != nil {
			c.logger.Error("forward failed", zap.Int64("chat_id", target), zap.Error(err))
			errs = append(errs, fmt.Errorf("forward to chat %d: %w", target, err))
		}
	}

	c.mu.Lock()
	c.phase = PhaseClosed
	c.mu.Unlock()
	return errors.Join(errs...)
}

// CopyLink reports whether a "link copied" notification should be shown
// for the coordinator's public link. Repeated copies of the same link
// while the notification window is open are deduplicated.
func (c *Coordinator) CopyLink() bool {
	link := c.PublicLink()
	if link == "" || c.sched == nil {
		return false
	}
	return c.sched.Add("copy_link "+link, copyLinkWindow, nil)
}

// Close abandons the interaction. A fanout already in flight completes.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseSending {
		return
	}
	c.phase = PhaseClosed
}
