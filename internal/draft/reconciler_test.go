package draft

import (
	"context"
	"errors"
	"testing"
)

// fakeStore is an in-memory draft mirror.
type fakeStore struct {
	drafts map[int64]string
	errs   bool
}

func (s *fakeStore) DraftText(chatID int64) (string, error) {
	if s.errs {
		return "", errors.New("db closed")
	}
	return s.drafts[chatID], nil
}

func (s *fakeStore) SetDraftText(chatID int64, text string) error {
	if s.drafts == nil {
		s.drafts = make(map[int64]string)
	}
	s.drafts[chatID] = text
	return nil
}

// fakePersister records backend draft calls.
type fakePersister struct {
	calls []Draft
	err   error
}

func (p *fakePersister) SetDraftMessage(_ context.Context, chatID int64, text string) error {
	p.calls = append(p.calls, Draft{ChatID: chatID, Text: text})
	return p.err
}

func TestDeltaNilWhenUnchanged(t *testing.T) {
	s := &fakeStore{drafts: map[int64]string{1: "hello"}}
	r := New(s, &fakePersister{}, nil, nil)

	if d := r.Delta(1, "hello"); d != nil {
		t.Errorf("Delta for unchanged text = %+v, want nil", d)
	}
}

func TestDeltaDetectsChangeAndEmptyTransitions(t *testing.T) {
	s := &fakeStore{drafts: map[int64]string{1: "hello"}}
	r := New(s, &fakePersister{}, nil, nil)

	if d := r.Delta(1, "hello there"); d == nil || d.Text != "hello there" {
		t.Errorf("Delta = %+v, want changed draft", d)
	}
	// Transition to empty.
	if d := r.Delta(1, ""); d == nil || d.Text != "" {
		t.Errorf("Delta to empty = %+v, want empty draft", d)
	}
	// Transition from empty.
	s.drafts[2] = ""
	if d := r.Delta(2, "new"); d == nil || d.Text != "new" {
		t.Errorf("Delta from empty = %+v, want draft", d)
	}
	// Whitespace-only is normalized to empty, matching an empty mirror.
	if d := r.Delta(2, "\n"); d != nil {
		t.Errorf("Delta for lone newline = %+v, want nil", d)
	}
}

func TestCommitIdempotence(t *testing.T) {
	s := &fakeStore{drafts: map[int64]string{1: "hello"}}
	p := &fakePersister{}
	r := New(s, p, nil, nil)

	if err := r.FlushOnLeave(context.Background(), 1, "hello there"); err != nil {
		t.Fatal(err)
	}
	// Second capture with the same text: the mirror was updated, so no call.
	if err := r.FlushOnLeave(context.Background(), 1, "hello there"); err != nil {
		t.Fatal(err)
	}

	if len(p.calls) != 1 {
		t.Fatalf("got %d persistence calls, want 1", len(p.calls))
	}
	if p.calls[0] != (Draft{ChatID: 1, Text: "hello there"}) {
		t.Errorf("call = %+v", p.calls[0])
	}
}

func TestCommitNilIsNoop(t *testing.T) {
	p := &fakePersister{}
	r := New(&fakeStore{}, p, nil, nil)
	if err := r.Commit(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(p.calls) != 0 {
		t.Errorf("got %d calls for nil draft, want 0", len(p.calls))
	}
}

func TestCommitFailureLeavesMirrorUntouched(t *testing.T) {
	s := &fakeStore{drafts: map[int64]string{1: "hello"}}
	p := &fakePersister{err: errors.New("network")}
	r := New(s, p, nil, nil)

	if err := r.FlushOnLeave(context.Background(), 1, "edited"); err == nil {
		t.Fatal("want error from failed persistence")
	}
	if s.drafts[1] != "hello" {
		t.Errorf("mirror = %q, want untouched 'hello'", s.drafts[1])
	}
	// The change is still pending: a later capture re-issues it.
	if d := r.Delta(1, "edited"); d == nil {
		t.Error("Delta after failed commit = nil, want pending draft")
	}
}

// Chat switch scenario: leaving X with an edit persists once; entering Y
// persists nothing until Y itself is left with a change.
func TestChatSwitchScenario(t *testing.T) {
	s := &fakeStore{drafts: map[int64]string{10: "hello", 20: "old draft"}}
	p := &fakePersister{}
	r := New(s, p, nil, nil)

	// User edits chat X and switches to Y.
	if err := r.FlushOnLeave(context.Background(), 10, "hello there"); err != nil {
		t.Fatal(err)
	}
	// Entering Y displays its draft; no capture happens for Y here.

	// User leaves Y without editing.
	if err := r.FlushOnLeave(context.Background(), 20, "old draft"); err != nil {
		t.Fatal(err)
	}

	if len(p.calls) != 1 {
		t.Fatalf("got %d calls, want exactly 1 (for chat X)", len(p.calls))
	}
	if p.calls[0].ChatID != 10 || p.calls[0].Text != "hello there" {
		t.Errorf("call = %+v, want chat 10 'hello there'", p.calls[0])
	}
}
