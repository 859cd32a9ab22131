package files

import (
	"context"
	"errors"
	"testing"
	"time"

	"gram/internal/backend"
	"gram/internal/bus"
	"gram/internal/store"
)

type fakeUploader struct {
	paths map[int64]string
	errs  map[int64]error
}

func (u *fakeUploader) Upload(_ context.Context, fileID int64, _ bus.MessageRef) (string, error) {
	if err := u.errs[fileID]; err != nil {
		return "", err
	}
	return u.paths[fileID], nil
}

func waitEvent(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return bus.Event{}
	}
}

func TestUploadResolvesFile(t *testing.T) {
	records := store.NewRecords()
	ref := &backend.FileRef{ID: 9, Ready: true, Handle: &backend.LocalHandle{Token: "tok"}}
	records.Put(&backend.Message{
		ID: -1, ChatID: 1, SendingState: backend.SendingPending,
		Content: &backend.PhotoContent{Sizes: []backend.PhotoSize{{Type: "m", File: ref}}},
	})

	b := bus.New()
	ch, cancel := b.Subscribe("file.", 4)
	defer cancel()

	q := NewQueue(&fakeUploader{paths: map[int64]string{9: "/cache/photo_9.jpg"}}, records, b, nil)
	q.Start(context.Background())
	defer q.Stop()

	q.Enqueue(9, bus.MessageRef{ChatID: 1, MessageID: -1})

	ev := waitEvent(t, ch)
	if ev.Kind != bus.KindFileUploadCompleted {
		t.Fatalf("event = %q, want upload completed", ev.Kind)
	}
	if ref.Path != "/cache/photo_9.jpg" {
		t.Errorf("ref.Path = %q, want resolved", ref.Path)
	}
	if ref.Handle != nil {
		t.Error("optimistic handle survived resolution")
	}
}

func TestUploadFailureEmitsEvent(t *testing.T) {
	records := store.NewRecords()
	b := bus.New()
	ch, cancel := b.Subscribe("file.", 4)
	defer cancel()

	q := NewQueue(&fakeUploader{errs: map[int64]error{3: errors.New("disconnected")}}, records, b, nil)
	q.Start(context.Background())
	defer q.Stop()

	q.Enqueue(3, bus.MessageRef{ChatID: 1, MessageID: -2})

	ev := waitEvent(t, ch)
	if ev.Kind != bus.KindFileUploadFailed {
		t.Fatalf("event = %q, want upload failed", ev.Kind)
	}
}

func TestStopWaitsForLoopExit(t *testing.T) {
	q := NewQueue(&fakeUploader{}, store.NewRecords(), nil, nil)
	q.Start(context.Background())
	q.Stop() // must not hang or panic
}
