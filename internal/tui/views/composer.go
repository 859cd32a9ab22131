package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Composer is the text input for drafting and sending messages. It exposes
// the current text so draft capture can read it at chat-switch time.
type Composer struct {
	*tview.InputField
	onSend   func(text string)
	onTyping func()
}

// NewComposer creates a message composer.
func NewComposer() *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)

	c := &Composer{InputField: input}

	input.SetChangedFunc(func(string) {
		if c.onTyping != nil {
			c.onTyping()
		}
	})
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && c.onSend != nil {
			c.onSend(c.GetText())
			c.SetText("")
		}
	})

	return c
}

// SetOnSend sets the callback when a message is submitted.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

// SetOnTyping sets the callback fired on every keystroke.
func (c *Composer) SetOnTyping(fn func()) {
	c.onTyping = fn
}

// Text returns the current composer text.
func (c *Composer) Text() string {
	return c.GetText()
}

// Clear empties the composer.
func (c *Composer) Clear() {
	c.SetText("")
}
