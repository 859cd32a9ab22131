// Package tui is the terminal frontend. It owns the active-chat state and
// runs the two-phase chat switch: the outgoing chat's composer text is
// captured and persisted before the composer is rebound to the new chat.
package tui

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"gram/internal/backend"
	"gram/internal/bus"
	"gram/internal/draft"
	"gram/internal/files"
	"gram/internal/forward"
	"gram/internal/outbox"
	"gram/internal/sched"
	"gram/internal/status"
	"gram/internal/store"
	"gram/internal/tui/ui"
	"gram/internal/tui/views"
	"gram/internal/typing"
)

// Deps carries everything the frontend is wired to.
type Deps struct {
	Bus        *bus.Bus
	DB         *store.DB
	Client     backend.Client
	Dispatcher *outbox.Dispatcher
	Drafts     *draft.Reconciler
	Typing     *typing.Throttle
	Sched      *sched.Registry
	Flash      *ui.FlashModel
	Logger     *zap.Logger
	Session    string
	SelfID     func() int64
}

// App is the TUI application shell.
type App struct {
	deps  Deps
	app   *tview.Application
	pages *tview.Pages

	statusBar *views.StatusBar
	flashBar  *ui.FlashBar
	chatList  *views.ChatList
	msgView   *views.MessageView
	composer  *views.Composer

	ctx        context.Context
	cancel     context.CancelFunc
	activeChat int64
}

// NewApp creates the TUI application.
func NewApp(deps Deps) *App {
	ctx, cancel := context.WithCancel(context.Background())
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	a := &App{
		deps:      deps,
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		statusBar: views.NewStatusBar(),
		flashBar:  ui.NewFlashBar(),
		chatList:  views.NewChatList(),
		msgView:   views.NewMessageView(),
		composer:  views.NewComposer(),
		ctx:       ctx,
		cancel:    cancel,
	}
	a.statusBar.SetSession(deps.Session)
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupCallbacks() {
	a.chatList.SetOnSelect(a.openChat)

	a.composer.SetOnSend(func(text string) {
		chatID := a.activeChat
		if chatID == 0 {
			return
		}
		go func() {
			if err := a.deps.Dispatcher.SubmitText(a.ctx, chatID, text); err != nil {
				a.deps.Flash.Err(err)
			}
			a.redraw(func() { a.refreshMessages() })
		}()
	})

	a.composer.SetOnTyping(func() {
		chatID := a.activeChat
		if chatID == 0 {
			return
		}
		go a.deps.Typing.NotifyTyping(a.ctx, chatID)
	})

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if a.app.GetFocus() == a.composer.InputField {
			if event.Key() == tcell.KeyEscape {
				a.app.SetFocus(a.chatList)
				return nil
			}
			return event
		}
		switch {
		case event.Key() == tcell.KeyRune && event.Rune() == 'q':
			a.Stop()
			return nil
		case event.Key() == tcell.KeyRune && event.Rune() == 'i':
			a.app.SetFocus(a.composer.InputField)
			return nil
		case event.Key() == tcell.KeyRune && event.Rune() == 'f':
			a.showForward()
			return nil
		}
		return event
	})
}

func (a *App) setupLayout() {
	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)
	main := tview.NewFlex().
		AddItem(a.chatList, 0, 1, true).
		AddItem(right, 0, 2, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(main, 0, 1, true).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.pages.AddPage("main", root, true, true)
	a.app.SetRoot(a.pages, true)
}

// openChat switches the active chat. Phase one captures the outgoing
// chat's draft; phase two rebinds the composer to the new chat's
// persisted draft. The order is load-bearing: a reversed order would
// capture the new chat's text under the old chat's id.
func (a *App) openChat(chatID int64) {
	prev := a.activeChat
	if prev == chatID {
		return
	}
	if prev != 0 {
		if err := a.deps.Drafts.FlushOnLeave(a.ctx, prev, a.composer.Text()); err != nil {
			a.deps.Flash.Warn("draft not saved: " + err.Error())
		}
	}

	a.activeChat = chatID
	text, err := a.deps.DB.DraftText(chatID)
	if err != nil {
		text = ""
	}
	a.composer.SetText(text)
	a.deps.Bus.Emit(bus.KindAppActiveChatChanged, bus.MessageRef{ChatID: chatID})

	a.refreshMessages()
	a.markRead(chatID)
	a.app.SetFocus(a.composer.InputField)
}

func (a *App) markRead(chatID int64) {
	msgs, err := a.deps.DB.ListMessages(chatID, 0, 1)
	if err != nil || len(msgs) == 0 || msgs[0].MsgID <= 0 {
		return
	}
	go func() {
		if err := a.deps.Client.ViewMessages(a.ctx, chatID, []int64{msgs[0].MsgID}); err != nil {
			a.deps.Logger.Warn("mark read failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}()
}

// SendFiles stages dropped-in files behind a confirmation prompt.
func (a *App) SendFiles(paths []string) {
	chatID := a.activeChat
	if chatID == 0 || len(paths) == 0 {
		return
	}
	handles := make([]*backend.LocalHandle, 0, len(paths))
	for _, p := range paths {
		h, err := files.NewHandle(p)
		if err != nil {
			a.deps.Flash.Warn("cannot read " + p)
			continue
		}
		handles = append(handles, h)
	}
	if !a.deps.Dispatcher.Paste(chatID, handles) {
		return
	}

	modal := tview.NewModal().
		SetText(fmt.Sprintf("Send %d file(s) to this chat?", len(handles))).
		AddButtons([]string{"Send", "Cancel"}).
		SetDoneFunc(func(_ int, label string) {
			a.pages.RemovePage("paste")
			if label != "Send" {
				a.deps.Dispatcher.CancelPaste(chatID)
				return
			}
			go func() {
				if err := a.deps.Dispatcher.ConfirmPaste(a.ctx, chatID); err != nil {
					a.deps.Flash.Err(err)
				}
				a.redraw(func() { a.refreshMessages() })
			}()
		})
	a.pages.AddPage("paste", modal, true, true)
}

func (a *App) showForward() {
	sourceChat := a.activeChat
	if sourceChat == 0 {
		return
	}
	msgs, err := a.deps.DB.ListMessages(sourceChat, 0, 1)
	if err != nil || len(msgs) == 0 || msgs[0].MsgID <= 0 {
		a.deps.Flash.Warn("nothing to forward")
		return
	}
	messageIDs := []int64{msgs[0].MsgID}

	co := forward.New(a.deps.Client, a.deps.DB, a.deps.Sched,
		a.deps.SelfID(), sourceChat, messageIDs, a.deps.Logger.Named("forward"))

	go func() {
		co.Load(a.ctx)
		a.redraw(func() {
			picker := views.NewForwardPicker(co)
			picker.SetOnCancel(func() {
				co.Close()
				a.pages.RemovePage("forward")
			})
			picker.SetOnCopy(func() {
				if co.CopyLink() {
					a.deps.Flash.Info("Link copied: " + co.PublicLink())
				}
			})
			picker.SetOnConfirm(func(comment string) {
				a.pages.RemovePage("forward")
				go func() {
					if err := co.Send(a.ctx, comment); err != nil {
						a.deps.Flash.Err(err)
					} else {
						a.deps.Flash.Info("Forwarded")
					}
					a.redraw(func() {})
				}()
			})
			a.pages.AddPage("forward", picker, true, true)
		})
	}()
}

func (a *App) refreshChats() {
	chats, err := a.deps.DB.ListChats(100, 0)
	if err != nil {
		a.deps.Logger.Warn("chat list refresh failed", zap.Error(err))
		return
	}
	a.chatList.Update(chats)
}

func (a *App) refreshMessages() {
	if a.activeChat == 0 {
		return
	}
	msgs, err := a.deps.DB.ListMessages(a.activeChat, 0, 200)
	if err != nil {
		a.deps.Logger.Warn("message refresh failed", zap.Error(err))
		return
	}
	a.msgView.Update(msgs)
}

// redraw queues fn plus a screen refresh on the UI thread.
func (a *App) redraw(fn func()) {
	a.app.QueueUpdateDraw(func() {
		fn()
		a.flashBar.Clear()
		if text := a.deps.Flash.Get(); text != "" {
			fmt.Fprintf(a.flashBar, " %s", tview.Escape(text))
		}
	})
}

// eventLoop applies bus events to the views.
func (a *App) eventLoop() {
	ch, unsub := a.deps.Bus.Subscribe("", 256)
	defer unsub()
	for {
		select {
		case evt := <-ch:
			a.handleEvent(evt)
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindChatDraftChanged, bus.KindChatLastMessageChanged, bus.KindChatReadStateChanged:
		a.redraw(func() { a.refreshChats() })
	case bus.KindChatUserAction:
		if action, ok := evt.Payload.(bus.UserAction); ok && action.Typing {
			a.chatList.MarkTyping(action.ChatID)
			a.redraw(func() { a.refreshChats() })
		}
	case bus.KindMessageUpserted, bus.KindMessageSent, bus.KindFileBlobBound, bus.KindFileUploadCompleted:
		a.redraw(func() {
			a.refreshChats()
			a.refreshMessages()
		})
	case bus.KindMessageSendFailed:
		if failure, ok := evt.Payload.(bus.SendFailure); ok {
			a.deps.Flash.Err(fmt.Errorf("send failed: %w", failure.Err))
		}
		a.redraw(func() {})
	case bus.KindSessionStatusChanged:
		if change, ok := evt.Payload.(status.StatusChange); ok {
			a.redraw(func() { a.statusBar.SetState(string(change.To)) })
		}
	}
}

// Run starts the UI and blocks until it stops.
func (a *App) Run() error {
	a.refreshChats()
	go a.eventLoop()
	return a.app.Run()
}

// Stop tears the UI down, capturing the open chat's draft first.
func (a *App) Stop() {
	if a.activeChat != 0 {
		_ = a.deps.Drafts.FlushOnLeave(a.ctx, a.activeChat, a.composer.Text())
	}
	a.cancel()
	a.app.Stop()
}
