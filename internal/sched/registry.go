// Package sched holds the process-wide table of time-boxed reversible
// actions: "undo send", "undo clear history", dismissible notification
// dedup keys. At most one action per key is active at a time.
package sched

import (
	"sync"
	"time"

	"github.com/gotd/td/clock"
)

// Registry tracks pending reversible actions keyed by string.
//
// An action expires silently after its duration; Remove and Invoke cancel
// the timer and fire the reversal callback exactly once. Add/Remove/Invoke
// are atomic with respect to each other for a given key.
type Registry struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]*entry
}

type entry struct {
	timer  clock.Timer
	done   chan struct{}
	action func()
}

// New creates a registry using the given clock for expiry timers.
func New(c clock.Clock) *Registry {
	if c == nil {
		c = clock.System
	}
	return &Registry{
		clock:   c,
		entries: make(map[string]*entry),
	}
}

// Add registers a pending action under key unless one is already active.
// Returns whether it registered. The action is NOT invoked on natural
// expiry; expiry just retires the key.
func (r *Registry) Add(key string, d time.Duration, action func()) bool {
	r.mu.Lock()
	if _, exists := r.entries[key]; exists {
		r.mu.Unlock()
		return false
	}
	e := &entry{
		timer:  r.clock.Timer(d),
		done:   make(chan struct{}),
		action: action,
	}
	r.entries[key] = e
	r.mu.Unlock()

	go r.await(key, e)
	return true
}

// Remove cancels the pending action for key, invoking its reversal callback
// exactly once. Removing an absent key is a no-op.
func (r *Registry) Remove(key string) {
	r.take(key)
}

// Invoke forces the pending action for key to fire before returning, with
// the same effect as Remove. Invoking an absent key returns immediately.
// Used to flush an action a dependent operation must not race with, e.g.
// an "undo clear history" pending while a send is issued.
func (r *Registry) Invoke(key string) {
	r.take(key)
}

// Active reports whether key currently has a pending action.
func (r *Registry) Active(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

// take claims the entry for key, stops its timer and runs the callback.
// Only one caller (or the expiry goroutine) can claim a given entry.
func (r *Registry) take(key string) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	e.timer.Stop()
	close(e.done)
	if e.action != nil {
		e.action()
	}
}

func (r *Registry) await(key string, e *entry) {
	select {
	case <-e.timer.C():
		// Natural expiry: retire the key without firing the callback.
		r.mu.Lock()
		if cur, ok := r.entries[key]; ok && cur == e {
			delete(r.entries, key)
		}
		r.mu.Unlock()
	case <-e.done:
	}
}
