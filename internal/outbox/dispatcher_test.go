package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"gram/internal/attach"
	"gram/internal/backend"
	"gram/internal/bus"
	"gram/internal/sched"
	"gram/internal/store"
)

type sendCall struct {
	chatID  int64
	replyTo int64
	content backend.InputContent
}

// fakeClient records backend calls and fabricates pending records for
// media the way the real adapter does.
type fakeClient struct {
	backend.Client

	sends   []sendCall
	viewed  [][]int64
	sendErr error
	nextID  int64
	log     *[]string
}

func (c *fakeClient) SendMessage(_ context.Context, chatID, replyTo int64, content backend.InputContent) (*backend.Message, error) {
	if c.log != nil {
		*c.log = append(*c.log, "send")
	}
	c.sends = append(c.sends, sendCall{chatID: chatID, replyTo: replyTo, content: content})
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	c.nextID--
	msg := &backend.Message{ID: c.nextID, ChatID: chatID, FromMe: true, SendingState: backend.SendingPending}
	switch in := content.(type) {
	case backend.InputText:
		msg.Content = &backend.TextContent{Text: in.Text}
		msg.SendingState = backend.SendingNone
	case backend.InputPhoto:
		msg.Content = &backend.PhotoContent{Sizes: []backend.PhotoSize{
			{Type: "m", Width: in.Width, Height: in.Height, File: &backend.FileRef{ID: c.nextID, Ready: true}},
		}}
	case backend.InputDocument:
		msg.Content = &backend.DocumentContent{Name: in.File.Name, File: &backend.FileRef{ID: c.nextID, Ready: true}}
	}
	return msg, nil
}

func (c *fakeClient) ViewMessages(_ context.Context, _ int64, ids []int64) error {
	c.viewed = append(c.viewed, ids)
	return nil
}

type fakeUploads struct {
	enqueued []int64
}

func (u *fakeUploads) Enqueue(fileID int64, _ bus.MessageRef) {
	u.enqueued = append(u.enqueued, fileID)
}

func newDispatcher(t *testing.T, c *fakeClient) (*Dispatcher, *store.Records, *fakeUploads, *sched.Registry) {
	t.Helper()
	records := store.NewRecords()
	uploads := &fakeUploads{}
	reg := sched.New(nil)
	d := New(c, records, attach.New(records, nil, nil), uploads, reg, bus.New(), nil)
	return d, records, uploads, reg
}

func TestSubmitTextEmptyIsNoop(t *testing.T) {
	c := &fakeClient{}
	d, _, _, _ := newDispatcher(t, c)

	for _, text := range []string{"", "   ", "\n"} {
		if err := d.SubmitText(context.Background(), 1, text); err != nil {
			t.Fatal(err)
		}
	}
	if len(c.sends) != 0 {
		t.Fatalf("got %d sends for empty text, want 0", len(c.sends))
	}
}

func TestSubmitTextSendsAndViews(t *testing.T) {
	c := &fakeClient{}
	d, records, _, _ := newDispatcher(t, c)

	if err := d.SubmitText(context.Background(), 1, "hello\n"); err != nil {
		t.Fatal(err)
	}
	if len(c.sends) != 1 {
		t.Fatalf("got %d sends, want 1", len(c.sends))
	}
	in, ok := c.sends[0].content.(backend.InputText)
	if !ok || in.Text != "hello" || !in.ClearDraft {
		t.Errorf("content = %+v, want normalized text with ClearDraft", c.sends[0].content)
	}
	if len(c.viewed) != 1 {
		t.Errorf("got %d view calls, want 1", len(c.viewed))
	}
	if records.Get(1, -1) == nil {
		t.Error("sent message not recorded")
	}
}

func TestSendFlushesPendingClearHistory(t *testing.T) {
	var order []string
	c := &fakeClient{log: &order}
	d, _, _, reg := newDispatcher(t, c)

	reg.Add(ClearHistoryKey(1), time.Minute, func() { order = append(order, "clear") })
	reg.Add(ClearHistoryKey(2), time.Minute, func() { order = append(order, "other") })

	if err := d.SubmitText(context.Background(), 1, "hi"); err != nil {
		t.Fatal(err)
	}
	if len(order) < 2 || order[0] != "clear" || order[1] != "send" {
		t.Fatalf("order = %v, want clear before send", order)
	}
	if !reg.Active(ClearHistoryKey(2)) {
		t.Error("unrelated chat's pending action was flushed")
	}
}

func TestSendFailureKeepsReply(t *testing.T) {
	c := &fakeClient{sendErr: errors.New("flood wait")}
	d, _, _, _ := newDispatcher(t, c)
	d.SetReply(1, 33)

	if err := d.SubmitText(context.Background(), 1, "hi"); err == nil {
		t.Fatal("want send error")
	}
	if got := d.Reply(1); got != 33 {
		t.Errorf("reply after failed send = %d, want 33 kept", got)
	}
}

func TestReplyConsumedBySend(t *testing.T) {
	c := &fakeClient{}
	d, _, _, _ := newDispatcher(t, c)
	d.SetReply(1, 33)

	if err := d.SubmitText(context.Background(), 1, "hi"); err != nil {
		t.Fatal(err)
	}
	if c.sends[0].replyTo != 33 {
		t.Errorf("replyTo = %d, want 33", c.sends[0].replyTo)
	}
	if got := d.Reply(1); got != 0 {
		t.Errorf("reply after send = %d, want cleared", got)
	}
}

func TestSubmitPhotoBindsAndEnqueues(t *testing.T) {
	c := &fakeClient{}
	d, records, uploads, _ := newDispatcher(t, c)

	h := &backend.LocalHandle{Token: "p", Path: "/tmp/cat.jpg", Width: 640, Height: 480}
	if err := d.SubmitPhoto(context.Background(), 1, h); err != nil {
		t.Fatal(err)
	}

	msg := records.Get(1, -1)
	if msg == nil {
		t.Fatal("pending photo not recorded")
	}
	photo := msg.Content.(*backend.PhotoContent)
	if photo.Sizes[0].File.Handle != h {
		t.Error("local handle not bound to pending photo")
	}
	if len(uploads.enqueued) != 1 {
		t.Errorf("got %d uploads, want 1", len(uploads.enqueued))
	}
}

func TestSubmitDocumentsIndependentFailures(t *testing.T) {
	c := &fakeClient{}
	d, _, uploads, _ := newDispatcher(t, c)

	handles := []*backend.LocalHandle{
		{Token: "a", Name: "a.pdf"},
		{Token: "b", Name: "b.pdf"},
	}
	// Fail only the first send.
	c.sendErr = errors.New("too large")
	_ = d.SubmitDocuments(context.Background(), 1, handles[:1])
	c.sendErr = nil
	if err := d.SubmitDocuments(context.Background(), 1, handles[1:]); err != nil {
		t.Fatal(err)
	}

	if len(c.sends) != 2 {
		t.Fatalf("got %d sends, want 2", len(c.sends))
	}
	if len(uploads.enqueued) != 1 {
		t.Errorf("got %d uploads, want 1 (only the successful document)", len(uploads.enqueued))
	}
}

func TestSubmitDocumentsJoinsErrors(t *testing.T) {
	c := &fakeClient{sendErr: errors.New("down")}
	d, _, _, _ := newDispatcher(t, c)

	err := d.SubmitDocuments(context.Background(), 1, []*backend.LocalHandle{
		{Token: "a", Name: "a.pdf"},
		{Token: "b", Name: "b.pdf"},
	})
	if err == nil {
		t.Fatal("want joined error")
	}
	if len(c.sends) != 2 {
		t.Fatalf("got %d sends, want both attempted", len(c.sends))
	}
}

func TestPasteStageConfirmCancel(t *testing.T) {
	c := &fakeClient{}
	d, _, _, _ := newDispatcher(t, c)

	if d.Paste(1, nil) {
		t.Error("empty paste should not prompt")
	}
	if !d.Paste(1, []*backend.LocalHandle{{Token: "a", Name: "a.txt"}}) {
		t.Fatal("paste with files should prompt")
	}
	d.CancelPaste(1)
	if err := d.ConfirmPaste(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if len(c.sends) != 0 {
		t.Fatalf("cancelled paste still sent %d messages", len(c.sends))
	}

	d.Paste(1, []*backend.LocalHandle{{Token: "a", Name: "a.txt"}, {Token: "b", Name: "b.txt"}})
	if err := d.ConfirmPaste(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if len(c.sends) != 2 {
		t.Fatalf("got %d sends after confirm, want 2", len(c.sends))
	}
}

func TestConfirmPasteRoutesImagesAsPhotos(t *testing.T) {
	c := &fakeClient{}
	d, records, uploads, _ := newDispatcher(t, c)

	img := &backend.LocalHandle{Token: "p", Name: "cat.jpg", Path: "/tmp/cat.jpg", Width: 640, Height: 480}
	doc := &backend.LocalHandle{Token: "d", Name: "notes.pdf", Path: "/tmp/notes.pdf"}
	d.Paste(1, []*backend.LocalHandle{img, doc})
	if err := d.ConfirmPaste(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	if len(c.sends) != 2 {
		t.Fatalf("got %d sends, want 2", len(c.sends))
	}
	in, ok := c.sends[0].content.(backend.InputPhoto)
	if !ok || in.Width != 640 || in.Height != 480 {
		t.Errorf("first send = %+v, want photo with probed dimensions", c.sends[0].content)
	}
	if _, ok := c.sends[1].content.(backend.InputDocument); !ok {
		t.Errorf("second send = %+v, want document", c.sends[1].content)
	}

	photo := records.Get(1, -1).Content.(*backend.PhotoContent)
	if photo.Sizes[0].File.Handle != img {
		t.Error("pasted image not optimistically bound to its pending photo")
	}
	if len(uploads.enqueued) != 2 {
		t.Errorf("got %d uploads, want both files enqueued", len(uploads.enqueued))
	}
}
