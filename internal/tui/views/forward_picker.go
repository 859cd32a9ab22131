package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"gram/internal/forward"
)

// ForwardPicker is the multi-select target list shown when forwarding.
// Space toggles a target, Enter confirms with the typed comment, Escape
// cancels. 'y' copies the public message link when one exists.
type ForwardPicker struct {
	*tview.Flex
	list    *tview.List
	comment *tview.InputField

	co        *forward.Coordinator
	onConfirm func(comment string)
	onCancel  func()
	onCopy    func()
}

// NewForwardPicker builds the picker over a loaded coordinator.
func NewForwardPicker(co *forward.Coordinator) *ForwardPicker {
	p := &ForwardPicker{
		list:    tview.NewList().ShowSecondaryText(false),
		comment: tview.NewInputField().SetLabel(" Comment: ").SetFieldWidth(0),
		co:      co,
	}
	p.list.SetBorder(true).SetTitle(" Forward to ")

	p.list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyRune && event.Rune() == ' ':
			p.toggleCurrent()
			return nil
		case event.Key() == tcell.KeyRune && event.Rune() == 'y':
			if p.onCopy != nil {
				p.onCopy()
			}
			return nil
		case event.Key() == tcell.KeyEnter:
			if p.onConfirm != nil {
				p.onConfirm(p.comment.GetText())
			}
			return nil
		case event.Key() == tcell.KeyEscape:
			if p.onCancel != nil {
				p.onCancel()
			}
			return nil
		}
		return event
	})

	p.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(p.list, 0, 1, true).
		AddItem(p.comment, 1, 0, false)

	p.Refresh()
	return p
}

// SetOnConfirm sets the callback for a confirmed fanout.
func (p *ForwardPicker) SetOnConfirm(fn func(comment string)) { p.onConfirm = fn }

// SetOnCancel sets the callback for a dismissed picker.
func (p *ForwardPicker) SetOnCancel(fn func()) { p.onCancel = fn }

// SetOnCopy sets the callback for the copy-link key.
func (p *ForwardPicker) SetOnCopy(fn func()) { p.onCopy = fn }

// Refresh re-renders the candidate list with selection markers.
func (p *ForwardPicker) Refresh() {
	index := p.list.GetCurrentItem()
	p.list.Clear()
	for _, c := range p.co.Candidates() {
		marker := "[ ]"
		if p.co.Selected(c.Chat.ID) {
			marker = "[x]"
		}
		title := c.Chat.Title
		if c.Saved {
			title = "Saved Messages"
		}
		p.list.AddItem(fmt.Sprintf(" %s %s", marker, title), "", 0, nil)
	}
	if count := p.list.GetItemCount(); count > 0 && index < count {
		p.list.SetCurrentItem(index)
	}
}

func (p *ForwardPicker) toggleCurrent() {
	candidates := p.co.Candidates()
	idx := p.list.GetCurrentItem()
	if idx < 0 || idx >= len(candidates) {
		return
	}
	p.co.ToggleTarget(candidates[idx].Chat.ID)
	p.Refresh()
}
