package control

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInterrupt(t *testing.T) {
	m := NewManager()
	if m.ShouldInterrupt() {
		t.Fatal("fresh manager should not be interrupted")
	}
	m.Interrupt()
	if !m.ShouldInterrupt() {
		t.Fatal("interrupt flag not set")
	}
	// The flag is sticky.
	if !m.ShouldInterrupt() {
		t.Fatal("interrupt flag must not self-clear")
	}
}

func TestWaitIfPaused(t *testing.T) {
	m := NewManager()

	// Not paused: returns immediately.
	if err := m.WaitIfPaused(context.Background()); err != nil {
		t.Fatal(err)
	}

	m.Pause()
	released := make(chan error, 1)
	go func() {
		released <- m.WaitIfPaused(context.Background())
	}()

	select {
	case <-released:
		t.Fatal("WaitIfPaused returned while paused")
	case <-time.After(50 * time.Millisecond):
	}

	m.Resume()
	select {
	case err := <-released:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not release on resume")
	}
}

func TestWaitIfPaused_ContextCancel(t *testing.T) {
	m := NewManager()
	m.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	released := make(chan error, 1)
	go func() {
		released <- m.WaitIfPaused(ctx)
	}()
	cancel()

	select {
	case err := <-released:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancel did not release WaitIfPaused")
	}
}

func TestInterruptReleasesPause(t *testing.T) {
	m := NewManager()
	m.Pause()

	released := make(chan error, 1)
	go func() {
		released <- m.WaitIfPaused(context.Background())
	}()
	m.Interrupt()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("interrupt must release a paused loop")
	}
	if !m.ShouldInterrupt() {
		t.Fatal("interrupt flag lost")
	}
}

func TestTogglePause(t *testing.T) {
	m := NewManager()
	if !m.TogglePause() {
		t.Fatal("first toggle should pause")
	}
	if m.TogglePause() {
		t.Fatal("second toggle should resume")
	}
	if m.Paused() {
		t.Fatal("manager still paused after toggle pair")
	}
}

func TestInterjectionQueue(t *testing.T) {
	m := NewManager()
	if _, ok := m.PendingUserInput(); ok {
		t.Fatal("empty queue reported input")
	}

	m.Interject("first")
	m.Interject("second")
	m.Interject("") // ignored

	if text, ok := m.PendingUserInput(); !ok || text != "first" {
		t.Fatalf("got %q %v", text, ok)
	}
	if text, ok := m.PendingUserInput(); !ok || text != "second" {
		t.Fatalf("got %q %v", text, ok)
	}
	if _, ok := m.PendingUserInput(); ok {
		t.Fatal("queue should be drained")
	}
}

func TestAsk(t *testing.T) {
	m := NewManager()
	if _, err := m.Ask(context.Background(), "q?", nil); !errors.Is(err, ErrNoPrompter) {
		t.Fatalf("want ErrNoPrompter, got %v", err)
	}

	m.SetPrompter(func(ctx context.Context, question string, options []string) (string, error) {
		return options[1], nil
	})
	answer, err := m.Ask(context.Background(), "pick", []string{"a", "b"})
	if err != nil || answer != "b" {
		t.Fatalf("answer=%q err=%v", answer, err)
	}
}
