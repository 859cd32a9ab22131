package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"gram/internal/store"
)

// MessageView renders the open chat's message history.
type MessageView struct {
	*tview.TextView
}

// NewMessageView creates the message history view.
func NewMessageView() *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")
	return &MessageView{TextView: tv}
}

// Update re-renders the view with rows in reverse-chronological order, as
// returned by the store; rendering flips them so the newest is last.
func (mv *MessageView) Update(msgs []store.Message) {
	mv.Clear()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		fmt.Fprintf(mv, "%s %s %s\n", time.Unix(m.Timestamp, 0).Format("15:04"), prefix(m), renderBody(m))
	}
	mv.ScrollToEnd()
}

func prefix(m store.Message) string {
	if m.FromMe {
		return "[green]me>[-]"
	}
	return fmt.Sprintf("[yellow]%d>[-]", m.SenderID)
}

func renderBody(m store.Message) string {
	body := tview.Escape(m.Body)
	switch m.ContentKind {
	case "photo":
		body = "[blue][photo][-] " + body
	case "document":
		body = "[blue][file][-] " + body
	}
	switch m.SendingState {
	case 1: // pending
		body += " [gray]⌛[-]"
	case 2: // failed
		body += " [red]✗[-]"
	}
	return body
}
