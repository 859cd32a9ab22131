// Package ui holds small presentation components shared by views.
package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// FlashLevel is the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

// FlashMessage is a transient notification with a level and expiry.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// FlashModel holds the current transient notification.
type FlashModel struct {
	mu       sync.RWMutex
	duration time.Duration
	current  FlashMessage
	watchCh  chan FlashMessage
}

// NewFlashModel creates a flash model with the given default display time.
func NewFlashModel(d time.Duration) *FlashModel {
	if d <= 0 {
		d = 4 * time.Second
	}
	return &FlashModel{
		duration: d,
		watchCh:  make(chan FlashMessage, 8),
	}
}

// Info sets an info-level flash message.
func (f *FlashModel) Info(msg string) {
	f.set(msg, FlashInfo, f.duration)
}

// Warn sets a warn-level flash message.
func (f *FlashModel) Warn(msg string) {
	f.set(msg, FlashWarn, f.duration*2)
}

// Err sets an error-level flash message.
func (f *FlashModel) Err(err error) {
	f.set(err.Error(), FlashErr, f.duration*2)
}

func (f *FlashModel) set(msg string, level FlashLevel, d time.Duration) {
	fm := FlashMessage{Text: msg, Level: level, Expires: time.Now().Add(d)}
	f.mu.Lock()
	f.current = fm
	f.mu.Unlock()
	select {
	case f.watchCh <- fm:
	default:
	}
}

// Get returns the current flash text, or empty if expired.
func (f *FlashModel) Get() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.current.Expires) {
		return ""
	}
	return f.current.Text
}

// Watch returns a channel that receives new flash messages.
func (f *FlashModel) Watch() <-chan FlashMessage {
	return f.watchCh
}

// FlashBar renders flash notifications.
type FlashBar struct {
	*tview.TextView
}

// NewFlashBar creates a flash notification bar.
func NewFlashBar() *FlashBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	return &FlashBar{TextView: tv}
}

// Update renders a flash message on the bar.
func (fb *FlashBar) Update(msg FlashMessage) {
	fb.Clear()
	if time.Now().After(msg.Expires) {
		return
	}
	color := "white"
	switch msg.Level {
	case FlashWarn:
		color = "yellow"
	case FlashErr:
		color = "red"
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", color, msg.Text)
}
