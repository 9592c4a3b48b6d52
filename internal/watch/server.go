// Package watch exposes a session's event stream over a per-session
// Unix socket. Observation is strictly read-only: the server never
// touches session storage.
package watch

import (
	"encoding/json"
	"net"
	"os"
	"sync"
	"time"

	"github.com/wolo-ai/wolo/internal/event"
	"github.com/wolo-ai/wolo/internal/logging"
)

// observerBuffer is the per-client send queue. A client that falls this
// far behind is dropped rather than blocking the bus.
const observerBuffer = 64

// wireEvent is the NDJSON line sent to observers.
type wireEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// Server is one session's watch endpoint.
type Server struct {
	sessionID  string
	socketPath string

	mu        sync.Mutex
	listener  net.Listener
	observers map[net.Conn]chan []byte
	unsub     func()
	stopped   bool
}

// NewServer creates a watch server for the given session socket path.
func NewServer(sessionID, socketPath string) *Server {
	return &Server{
		sessionID:  sessionID,
		socketPath: socketPath,
		observers:  make(map[net.Conn]chan []byte),
	}
}

// Start listens on the socket (mode 0600) and begins forwarding bus
// events. A stale socket file from a dead process is replaced.
func (s *Server) Start() error {
	os.Remove(s.socketPath)
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		os.Remove(s.socketPath)
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.unsub = event.SubscribeAll(s.broadcast)
	s.mu.Unlock()

	go s.acceptLoop(listener)
	return nil
}

// Stop closes all observers, stops forwarding, and removes the socket.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	unsub := s.unsub
	listener := s.listener
	observers := s.observers
	s.observers = make(map[net.Conn]chan []byte)
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if listener != nil {
		listener.Close()
	}
	for conn, ch := range observers {
		close(ch)
		conn.Close()
	}
	os.Remove(s.socketPath)
}

func (s *Server) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		s.addObserver(conn)
	}
}

func (s *Server) addObserver(conn net.Conn) {
	welcome, _ := json.Marshal(wireEvent{
		Type:      "connected",
		SessionID: s.sessionID,
		Timestamp: time.Now().UnixMilli(),
		Data:      map[string]any{"message": "watching session " + s.sessionID},
	})
	if _, err := conn.Write(append(welcome, '\n')); err != nil {
		conn.Close()
		return
	}

	ch := make(chan []byte, observerBuffer)
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.observers[conn] = ch
	s.mu.Unlock()

	go func() {
		for line := range ch {
			if _, err := conn.Write(line); err != nil {
				s.dropObserver(conn)
				return
			}
		}
	}()
}

func (s *Server) dropObserver(conn net.Conn) {
	s.mu.Lock()
	ch, ok := s.observers[conn]
	if ok {
		delete(s.observers, conn)
	}
	s.mu.Unlock()
	if ok {
		close(ch)
		conn.Close()
	}
}

// broadcast forwards one bus event to every observer. Full queues mean
// the observer is too slow; it gets dropped, never blocks.
func (s *Server) broadcast(ev event.Event) {
	line, err := json.Marshal(wireEvent{
		Type:      string(ev.Type),
		SessionID: ev.SessionID,
		Timestamp: time.Now().UnixMilli(),
		Data:      ev.Data,
	})
	if err != nil {
		logging.Debug().Err(err).Msg("unserializable event, skipping")
		return
	}
	line = append(line, '\n')

	s.mu.Lock()
	var slow []net.Conn
	for conn, ch := range s.observers {
		select {
		case ch <- line:
		default:
			slow = append(slow, conn)
		}
	}
	s.mu.Unlock()

	for _, conn := range slow {
		s.dropObserver(conn)
	}
}
