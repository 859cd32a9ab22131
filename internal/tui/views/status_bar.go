package views

import (
	"fmt"

	"github.com/rivo/tview"
)

// StatusBar shows the session name and connection state.
type StatusBar struct {
	*tview.TextView
	session string
	state   string
}

// NewStatusBar creates the status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	return &StatusBar{TextView: tv, state: "BOOTING"}
}

// SetSession sets the displayed session name.
func (sb *StatusBar) SetSession(name string) {
	sb.session = name
	sb.render()
}

// SetState sets the displayed connection state.
func (sb *StatusBar) SetState(state string) {
	sb.state = state
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	color := "yellow"
	if sb.state == "READY" {
		color = "green"
	}
	fmt.Fprintf(sb, " [white]%s[-] | [%s]%s[-]", sb.session, color, sb.state)
}
