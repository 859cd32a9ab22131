package views

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"

	"gram/internal/store"
)

// ChatList is the chat list table. The second column shows, in priority
// order: a typing indicator, the persisted draft, or the last message
// preview.
type ChatList struct {
	*tview.Table
	mu       sync.Mutex
	chats    []store.Chat
	typing   map[int64]time.Time
	onSelect func(chatID int64)
}

const typingIndicatorTTL = 6 * time.Second

// NewChatList creates the chat list table.
func NewChatList() *ChatList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Chats ")

	cl := &ChatList{Table: table, typing: make(map[int64]time.Time)}
	table.SetSelectedFunc(func(row, _ int) {
		if cl.onSelect == nil {
			return
		}
		if id := cl.chatAt(row); id != 0 {
			cl.onSelect(id)
		}
	})
	return cl
}

// SetOnSelect sets the callback when a chat is opened.
func (cl *ChatList) SetOnSelect(fn func(chatID int64)) {
	cl.onSelect = fn
}

// MarkTyping shows the typing indicator for a chat.
func (cl *ChatList) MarkTyping(chatID int64) {
	cl.mu.Lock()
	cl.typing[chatID] = time.Now().Add(typingIndicatorTTL)
	cl.mu.Unlock()
}

// Update refreshes the table with the given chat rows.
func (cl *ChatList) Update(chats []store.Chat) {
	cl.mu.Lock()
	cl.chats = chats
	cl.mu.Unlock()
	cl.Clear()

	cl.SetCell(0, 0, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, chat := range chats {
		row := i + 1
		name := chat.Title
		if name == "" {
			name = fmt.Sprintf("chat %d", chat.ID)
		}
		if chat.UnreadCount > 0 {
			name = fmt.Sprintf("* %s (%d)", name, chat.UnreadCount)
		}
		cl.SetCell(row, 0, tview.NewTableCell(" "+name).SetMaxWidth(30).SetExpansion(1))
		cl.SetCell(row, 1, tview.NewTableCell(" "+cl.secondLine(chat)).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(row, 2, tview.NewTableCell(" "+formatTimestamp(chat.LastMessageAt)).SetMaxWidth(12))
	}
}

func (cl *ChatList) secondLine(chat store.Chat) string {
	cl.mu.Lock()
	until, ok := cl.typing[chat.ID]
	cl.mu.Unlock()
	if ok && time.Now().Before(until) {
		return "[blue]typing...[-]"
	}
	if chat.DraftText != "" {
		return "[green]Draft:[-] " + tview.Escape(chat.DraftText)
	}
	return tview.Escape(chat.LastMessagePreview)
}

func (cl *ChatList) chatAt(row int) int64 {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	idx := row - 1 // header
	if idx >= 0 && idx < len(cl.chats) {
		return cl.chats[idx].ID
	}
	return 0
}

// SelectedChat returns the id of the currently selected chat.
func (cl *ChatList) SelectedChat() int64 {
	row, _ := cl.GetSelection()
	return cl.chatAt(row)
}

func formatTimestamp(sec int64) string {
	if sec == 0 {
		return ""
	}
	t := time.Unix(sec, 0)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
