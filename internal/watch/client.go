package watch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wolo-ai/wolo/internal/logging"
)

// Follow connects to a session's watch socket and copies NDJSON events
// to out until the context ends or the server disconnects. When no
// socket exists (no live loop), it falls back to watching the session
// directory for file changes so `-w` still shows activity.
func Follow(ctx context.Context, socketPath, sessionDir string, out io.Writer) error {
	conn, err := net.Dial("unix", socketPath)
	if err == nil {
		return followSocket(ctx, conn, out)
	}
	logging.Debug().Err(err).Msg("watch socket unavailable, falling back to file watching")
	return followFiles(ctx, sessionDir, out)
}

func followSocket(ctx context.Context, conn net.Conn, out io.Writer) error {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for scanner.Scan() {
		fmt.Fprintln(out, scanner.Text())
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

func followFiles(ctx context.Context, sessionDir string, out io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(sessionDir); err != nil {
		return fmt.Errorf("session directory: %w", err)
	}
	// Message files live one level down; watch it when present.
	messagesDir := filepath.Join(sessionDir, "messages")
	if info, err := os.Stat(messagesDir); err == nil && info.IsDir() {
		watcher.Add(messagesDir)
	}

	emit := func(kind, path string) {
		line, _ := json.Marshal(map[string]any{
			"type":      "file-changed",
			"op":        kind,
			"path":      path,
			"timestamp": time.Now().UnixMilli(),
		})
		fmt.Fprintln(out, string(line))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				emit(ev.Op.String(), ev.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Debug().Err(err).Msg("file watcher error")
		}
	}
}
