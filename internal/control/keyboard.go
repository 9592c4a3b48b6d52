package control

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/wolo-ai/wolo/internal/logging"
)

const (
	keyInterject = 0x01 // ^A
	keyInterrupt = 0x02 // ^B
	keyExit      = 0x03 // ^C
	keyPause     = 0x10 // ^P
)

// KeyboardListener watches stdin in raw mode and translates shortcuts
// into Manager calls. It never touches session storage.
type KeyboardListener struct {
	manager *Manager
	onExit  func()

	oldState *term.State
	stop     chan struct{}
	done     chan struct{}
}

// NewKeyboardListener builds a listener. onExit is invoked on ^C after
// the terminal is restored; it is expected to save and exit.
func NewKeyboardListener(manager *Manager, onExit func()) *KeyboardListener {
	return &KeyboardListener{manager: manager, onExit: onExit}
}

// Start switches the terminal to raw mode and begins listening. No-op
// with a debug log when stdin is not a terminal.
func (k *KeyboardListener) Start() error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		logging.Debug().Msg("stdin is not a terminal, keyboard shortcuts disabled")
		return nil
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	k.oldState = oldState
	k.stop = make(chan struct{})
	k.done = make(chan struct{})
	go k.listen(fd)
	return nil
}

// Stop restores the terminal and ends the listener.
func (k *KeyboardListener) Stop() {
	if k.oldState == nil {
		return
	}
	close(k.stop)
	term.Restore(int(os.Stdin.Fd()), k.oldState)
	k.oldState = nil
}

func (k *KeyboardListener) listen(fd int) {
	defer close(k.done)
	buf := make([]byte, 1)
	for {
		select {
		case <-k.stop:
			return
		default:
		}
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			return
		}
		switch buf[0] {
		case keyInterrupt:
			fmt.Fprintln(os.Stderr, "\r\n[interrupt requested]")
			k.manager.Interrupt()
		case keyPause:
			if k.manager.TogglePause() {
				fmt.Fprintln(os.Stderr, "\r\n[paused, ^P to resume]")
			} else {
				fmt.Fprintln(os.Stderr, "\r\n[resumed]")
			}
		case keyInterject:
			k.readInterjection(fd)
		case keyExit:
			term.Restore(fd, k.oldState)
			if k.onExit != nil {
				k.onExit()
			}
			return
		}
	}
}

// readInterjection drops out of raw mode to read one line of input, then
// queues it on the manager.
func (k *KeyboardListener) readInterjection(fd int) {
	term.Restore(fd, k.oldState)
	defer func() {
		if state, err := term.MakeRaw(fd); err == nil {
			k.oldState = state
		}
	}()

	fmt.Fprint(os.Stderr, "\r\n> ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return
	}
	line = strings.TrimSpace(line)
	if line != "" {
		k.manager.Interject(line)
		fmt.Fprintln(os.Stderr, "[queued]")
	}
}
