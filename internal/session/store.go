// Package session provides the layered on-disk session store.
//
// Layout under the base directory (default ~/.wolo/sessions):
//
//	{session_id}/
//	  session.json           session metadata, no messages
//	  messages/{msg_id}.json one file per message
//	  todos.json             current todo list
//	  watch.sock             runtime-only watch socket
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wolo-ai/wolo/internal/event"
	"github.com/wolo-ai/wolo/internal/logging"
	"github.com/wolo-ai/wolo/internal/storage"
	"github.com/wolo-ai/wolo/pkg/types"
)

// WatchSocketName is the watch server socket file inside a session directory.
const WatchSocketName = "watch.sock"

// Store is the sole writer of on-disk session data.
type Store struct {
	storage *storage.Storage
}

// NewStore creates a session store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{storage: storage.New(baseDir)}
}

// DefaultBaseDir returns ~/.wolo/sessions.
func DefaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".wolo", "sessions")
}

// Dir returns the directory of a session.
func (s *Store) Dir(sessionID string) string {
	return filepath.Join(s.storage.BasePath(), sessionID)
}

// WatchSocketPath returns the watch socket path of a session.
func (s *Store) WatchSocketPath(sessionID string) string {
	return filepath.Join(s.Dir(sessionID), WatchSocketName)
}

// CreateSession creates a new session. When sessionID is empty an ID is
// generated from the agent name. Fails if the ID already exists.
func (s *Store) CreateSession(ctx context.Context, sessionID, agentName string) (*types.Session, error) {
	if sessionID == "" {
		sessionID = GenerateSessionID(agentName, time.Now())
	}
	if s.storage.Exists(ctx, []string{sessionID, "session"}) {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrAlreadyExists)
	}

	now := time.Now().UnixMilli()
	sess := &types.Session{
		ID:        sessionID,
		AgentType: agentName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storage.Put(ctx, []string{sessionID, "session"}, sess); err != nil {
		return nil, err
	}

	event.Publish(event.Event{Type: event.SessionCreated, SessionID: sessionID})
	return sess, nil
}

// GetSessionMetadata loads session.json, migrating a legacy single-file
// session first if one is found.
func (s *Store) GetSessionMetadata(ctx context.Context, sessionID string) (*types.Session, error) {
	if err := s.migrateLegacy(ctx, sessionID); err != nil {
		logging.Debug().Err(err).Str("session", sessionID).Msg("legacy migration failed")
	}

	var sess types.Session
	if err := s.storage.Get(ctx, []string{sessionID, "session"}, &sess); err != nil {
		if err == storage.ErrNotFound {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		return nil, err
	}
	return &sess, nil
}

// UpdateSessionMetadata applies a partial update under the store's control.
func (s *Store) UpdateSessionMetadata(ctx context.Context, sessionID string, update func(*types.Session)) (*types.Session, error) {
	sess, err := s.GetSessionMetadata(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	update(sess)
	sess.UpdatedAt = time.Now().UnixMilli()
	if err := s.storage.Put(ctx, []string{sessionID, "session"}, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SaveMessage persists one message immediately. This is the critical-path
// save: it must complete before the loop suspends.
func (s *Store) SaveMessage(ctx context.Context, sessionID string, msg *types.Message) error {
	if msg.ID == "" {
		msg.ID = NewID()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	return s.storage.Put(ctx, []string{sessionID, "messages", msg.ID}, msg)
}

// GetMessage loads one message.
func (s *Store) GetMessage(ctx context.Context, sessionID, messageID string) (*types.Message, error) {
	var msg types.Message
	if err := s.storage.Get(ctx, []string{sessionID, "messages", messageID}, &msg); err != nil {
		if err == storage.ErrNotFound {
			return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
		}
		return nil, err
	}
	return &msg, nil
}

// GetAllMessages loads every message of a session sorted by timestamp
// ascending (ID as tie-break, which preserves creation order for ULIDs).
func (s *Store) GetAllMessages(ctx context.Context, sessionID string) ([]*types.Message, error) {
	var messages []*types.Message
	err := s.storage.Scan(ctx, []string{sessionID, "messages"}, func(key string, data json.RawMessage) error {
		var msg types.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Warn().Str("message", key).Err(err).Msg("skipping corrupt message file")
			return nil
		}
		messages = append(messages, &msg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].Timestamp != messages[j].Timestamp {
			return messages[i].Timestamp < messages[j].Timestamp
		}
		return messages[i].ID < messages[j].ID
	})
	return messages, nil
}

// SaveTodos persists the session todo list and publishes todo-updated.
func (s *Store) SaveTodos(ctx context.Context, sessionID string, todos []types.Todo) error {
	if todos == nil {
		todos = []types.Todo{}
	}
	if err := s.storage.Put(ctx, []string{sessionID, "todos"}, todos); err != nil {
		return err
	}
	event.Publish(event.Event{Type: event.TodoUpdated, SessionID: sessionID, Data: todos})
	return nil
}

// GetTodos loads the session todo list. A missing file is an empty list.
func (s *Store) GetTodos(ctx context.Context, sessionID string) ([]types.Todo, error) {
	var todos []types.Todo
	err := s.storage.Get(ctx, []string{sessionID, "todos"}, &todos)
	if err == storage.ErrNotFound {
		return []types.Todo{}, nil
	}
	if err != nil {
		return nil, err
	}
	return todos, nil
}

// DeleteSession removes a session and everything under it.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	return s.storage.DeleteDir(ctx, []string{sessionID})
}

// ListSessions returns metadata for every session plus derived fields.
func (s *Store) ListSessions(ctx context.Context) ([]types.SessionListing, error) {
	ids, err := s.storage.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	listings := make([]types.SessionListing, 0, len(ids))
	for _, id := range ids {
		sess, err := s.GetSessionMetadata(ctx, id)
		if err != nil {
			continue
		}
		count, _ := s.messageCount(ctx, id)
		listings = append(listings, types.SessionListing{
			Session:      *sess,
			MessageCount: count,
			IsRunning:    ownedByLiveProcess(sess.PID),
		})
	}

	sort.Slice(listings, func(i, j int) bool {
		return listings[i].UpdatedAt > listings[j].UpdatedAt
	})
	return listings, nil
}

// LoadFullSession loads metadata plus all messages.
func (s *Store) LoadFullSession(ctx context.Context, sessionID string) (*types.Session, []*types.Message, error) {
	sess, err := s.GetSessionMetadata(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.GetAllMessages(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return sess, messages, nil
}

func (s *Store) messageCount(ctx context.Context, sessionID string) (int, error) {
	items, err := s.storage.List(ctx, []string{sessionID, "messages"})
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// GetSessionStatus reports the runtime status of a session as seen from disk.
func (s *Store) GetSessionStatus(ctx context.Context, sessionID string) types.SessionStatus {
	sess, err := s.GetSessionMetadata(ctx, sessionID)
	if err != nil {
		return types.SessionStatus{Exists: false}
	}

	count, _ := s.messageCount(ctx, sessionID)
	_, sockErr := os.Stat(s.WatchSocketPath(sessionID))

	return types.SessionStatus{
		Exists: true,
		PID:    sess.PID,
		// A process listing itself as running would defeat `wolo -w`,
		// so IsRunning excludes the current process.
		IsRunning:            sess.PID != os.Getpid() && ownedByLiveProcess(sess.PID),
		WatchServerAvailable: sockErr == nil,
		AgentName:            sess.AgentType,
		CreatedAt:            sess.CreatedAt,
		MessageCount:         count,
	}
}
