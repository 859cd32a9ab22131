package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindChatDraftChanged, Timestamp: time.Now(), Payload: DraftChange{ChatID: 7, Text: "hi"}})

	select {
	case evt := <-ch:
		if evt.Kind != KindChatDraftChanged {
			t.Errorf("got kind %q, want %q", evt.Kind, KindChatDraftChanged)
		}
		dc, ok := evt.Payload.(DraftChange)
		if !ok || dc.ChatID != 7 {
			t.Errorf("payload = %#v, want DraftChange for chat 7", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("file.", 10)
	defer unsub()

	b.Emit(KindChatUserAction, nil)
	b.Emit(KindFileBlobBound, MessageRef{ChatID: 1, MessageID: 2})

	select {
	case evt := <-ch:
		if evt.Kind != KindFileBlobBound {
			t.Errorf("got kind %q, want %q", evt.Kind, KindFileBlobBound)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the chat event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	unsub()

	b.Emit(KindMessageSent, nil)

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmitStampsTimestamp(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("tg.", 1)
	defer unsub()

	before := time.Now()
	b.Emit(KindTelegramDraft, DraftChange{ChatID: 1})

	evt := <-ch
	if evt.Timestamp.Before(before) {
		t.Errorf("timestamp %v predates publish", evt.Timestamp)
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("tg.", 1)
	defer unsub()

	b.Emit(KindTelegramMessage, nil)
	// This one should be dropped (non-blocking publish).
	b.Emit(KindTelegramDraft, nil)

	evt := <-ch
	if evt.Kind != KindTelegramMessage {
		t.Errorf("got %q, want %q", evt.Kind, KindTelegramMessage)
	}
}
