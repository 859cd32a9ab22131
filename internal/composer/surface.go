// Package composer abstracts the editable text surface the user types into.
// The core never assumes a concrete widget, only that normalization happens
// before any comparison or send.
package composer

import "strings"

// Surface is the composer-state capability: the current text of the visible
// input, and the ability to rebind or clear it on chat switches and sends.
type Surface interface {
	Text() string
	SetText(text string)
	Clear()
}

// Normalize strips the artifacts an editable surface produces around empty
// input: trailing newlines left by the widget, and whitespace-only content,
// which is treated as empty. Visible text is returned with trailing
// newlines trimmed, otherwise intact.
func Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return strings.TrimRight(text, "\n")
}

// Memory is a plain in-memory Surface, used by tests and headless callers.
type Memory struct {
	text string
}

func (m *Memory) Text() string        { return m.text }
func (m *Memory) SetText(text string) { m.text = text }
func (m *Memory) Clear()              { m.text = "" }
