package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var at = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestBusFanOut(t *testing.T) {
	b := NewBus()
	a := b.Subscribe("a", 4)
	c := b.Subscribe("c", 4)
	defer a.Close()
	defer c.Close()

	ev := Event{Kind: KindEncrypted, Payload: "hello", At: at}
	b.Emit(ev)

	for _, s := range []*Subscription{a, c} {
		select {
		case got := <-s.C():
			if diff := cmp.Diff(ev, got); diff != "" {
				t.Fatalf("%s: event mismatch (-want +got):\n%s", s.ID(), diff)
			}
		default:
			t.Fatalf("%s: no event delivered", s.ID())
		}
	}

	last, ok := b.Last(KindEncrypted)
	if !ok || last.Payload != "hello" {
		t.Fatalf("Last = %+v, %v", last, ok)
	}
	if _, ok := b.Last(KindError); ok {
		t.Fatal("Last(KindError) reported an event that never happened")
	}
}

func TestEmitNeverBlocksOnFullSubscriber(t *testing.T) {
	b := NewBus()
	s := b.Subscribe("slow", 1)
	defer s.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Emit(Event{Kind: KindCleared, At: at})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Emit blocked on a full subscriber")
	}
	if got := s.Dropped(); got != 9 {
		t.Fatalf("Dropped() = %d, want 9", got)
	}
}

func TestSubscriptionClose(t *testing.T) {
	b := NewBus()
	s := b.Subscribe("x", 1)
	s.Close()
	s.Close()
	if ids := b.subscribers(); len(ids) != 0 {
		t.Fatalf("subscribers() = %v after Close", ids)
	}
	b.Emit(Event{Kind: KindCleared})
	select {
	case <-s.C():
		t.Fatal("closed subscription received an event")
	default:
	}
}

func TestDrainStopsOnCancel(t *testing.T) {
	b := NewBus()
	s := b.Subscribe("drain", 4)
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan Event, 4)
	finished := make(chan struct{})
	go func() {
		Drain(ctx, s, func(ev Event) { got <- ev })
		close(finished)
	}()

	b.Emit(Event{Kind: KindDecrypted, Payload: "p"})
	select {
	case ev := <-got:
		if ev.Kind != KindDecrypted {
			t.Fatalf("kind = %s", ev.Kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Drain did not deliver")
	}

	cancel()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Drain did not return after cancel")
	}
	if ids := b.subscribers(); len(ids) != 0 {
		t.Fatalf("Drain left subscription registered: %v", ids)
	}
}

func TestNotifierRender(t *testing.T) {
	type shown struct{ Title, Message string }
	var got []shown
	n := &Notifier{notify: func(title, message string) error {
		got = append(got, shown{title, message})
		return errors.New("no notification daemon")
	}}

	n.Handle(Event{Kind: KindEncrypted, Payload: "hunter2"})
	n.Handle(Event{Kind: KindCleared})
	n.Handle(Event{Kind: KindModeChanged, Payload: "force_decrypt"})
	n.Reveal = true
	n.Handle(Event{Kind: KindDecrypted, Payload: "hunter2"})

	want := []shown{
		{"Content Encrypted", "Clipboard text was encrypted."},
		{"Force Decrypt Mode", "Encrypted clipboard content will be decrypted for a short while."},
		{"Content Decrypted", "hunter2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}
}
