// Package control is the per-session control plane: interrupt, pause, and
// interjection signals shared between the keyboard listener and the loop.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoPrompter is returned by Ask when no interactive prompter is wired,
// which happens in non-interactive modes.
var ErrNoPrompter = errors.New("no interactive prompter available")

// Prompter presents a blocking question to the user and returns the
// selected option.
type Prompter func(ctx context.Context, question string, options []string) (string, error)

// Manager carries the three loop control signals. All methods are safe
// for concurrent use; the keyboard listener only ever calls the setters
// and the loop only ever calls the observers.
type Manager struct {
	mu          sync.Mutex
	interrupted bool
	paused      bool
	resume      chan struct{}
	pending     []string
	prompter    Prompter
}

func NewManager() *Manager {
	return &Manager{}
}

// SetPrompter wires the interactive question channel.
func (m *Manager) SetPrompter(p Prompter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompter = p
}

// Interrupt requests loop termination at the next suspension point.
func (m *Manager) Interrupt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interrupted = true
	// An interrupt also unblocks a paused loop so it can terminate.
	if m.paused {
		m.paused = false
		close(m.resume)
		m.resume = nil
	}
}

// ShouldInterrupt reports whether an interrupt is pending. It does not
// clear the flag; the loop observes it once and terminates.
func (m *Manager) ShouldInterrupt() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interrupted
}

// Pause suspends the loop at its next suspension point.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.paused {
		m.paused = true
		m.resume = make(chan struct{})
	}
}

// Resume releases a paused loop.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused {
		m.paused = false
		close(m.resume)
		m.resume = nil
	}
}

// TogglePause flips the pause state and reports the new state.
func (m *Manager) TogglePause() bool {
	m.mu.Lock()
	paused := m.paused
	m.mu.Unlock()
	if paused {
		m.Resume()
		return false
	}
	m.Pause()
	return true
}

// Paused reports the current pause state.
func (m *Manager) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// WaitIfPaused returns immediately unless paused, otherwise blocks until
// resumed or the context ends.
func (m *Manager) WaitIfPaused(ctx context.Context) error {
	m.mu.Lock()
	ch := m.resume
	m.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Interject queues text to be appended as a user message after the
// current assistant turn.
func (m *Manager) Interject(text string) {
	if text == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, text)
}

// PendingUserInput pops one queued interjection, if any.
func (m *Manager) PendingUserInput() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return "", false
	}
	text := m.pending[0]
	m.pending = m.pending[1:]
	return text, true
}

// Ask routes a blocking question through the wired prompter.
func (m *Manager) Ask(ctx context.Context, question string, options []string) (string, error) {
	m.mu.Lock()
	p := m.prompter
	m.mu.Unlock()
	if p == nil {
		return "", ErrNoPrompter
	}
	answer, err := p(ctx, question, options)
	if err != nil {
		return "", fmt.Errorf("question prompt: %w", err)
	}
	return answer, nil
}
