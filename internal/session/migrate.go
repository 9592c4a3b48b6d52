package session

import (
	"context"

	"github.com/wolo-ai/wolo/internal/logging"
	"github.com/wolo-ai/wolo/pkg/types"
)

// legacySession is the pre-layered single-file session format:
// {base}/{session_id}.json holding metadata and messages together.
type legacySession struct {
	Session  types.Session    `json:"session"`
	Messages []*types.Message `json:"messages"`
	Todos    []types.Todo     `json:"todos,omitempty"`
}

// migrateLegacy splits a legacy single-file session into the layered layout
// and removes the original. One-shot: once the layered session.json exists
// the legacy file is ignored.
func (s *Store) migrateLegacy(ctx context.Context, sessionID string) error {
	if s.storage.Exists(ctx, []string{sessionID, "session"}) {
		return nil
	}
	if !s.storage.Exists(ctx, []string{sessionID}) {
		return nil
	}

	var legacy legacySession
	if err := s.storage.Get(ctx, []string{sessionID}, &legacy); err != nil {
		return err
	}
	if legacy.Session.ID == "" {
		legacy.Session.ID = sessionID
	}

	if err := s.storage.Put(ctx, []string{sessionID, "session"}, &legacy.Session); err != nil {
		return err
	}
	for _, msg := range legacy.Messages {
		if msg.ID == "" {
			msg.ID = NewID()
		}
		if err := s.storage.Put(ctx, []string{sessionID, "messages", msg.ID}, msg); err != nil {
			return err
		}
	}
	if len(legacy.Todos) > 0 {
		if err := s.storage.Put(ctx, []string{sessionID, "todos"}, legacy.Todos); err != nil {
			return err
		}
	}

	if err := s.storage.Delete(ctx, []string{sessionID}); err != nil {
		return err
	}

	logging.Info().
		Str("session", sessionID).
		Int("messages", len(legacy.Messages)).
		Msg("migrated legacy session file to layered layout")
	return nil
}
