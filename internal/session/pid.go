package session

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/wolo-ai/wolo/internal/logging"
	"github.com/wolo-ai/wolo/pkg/types"
)

// CheckAndSetPID tries to take ownership of a session. It succeeds iff the
// stored PID is absent, equals the current process, or refers to a process
// that is no longer a live instance of this application. On success the
// current PID and time are written into session metadata.
func (s *Store) CheckAndSetPID(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.GetSessionMetadata(ctx, sessionID)
	if err != nil {
		return false, err
	}

	self := os.Getpid()
	if sess.PID != 0 && sess.PID != self && ownedByLiveProcess(sess.PID) {
		return false, nil
	}

	_, err = s.UpdateSessionMetadata(ctx, sessionID, func(sess *types.Session) {
		sess.PID = self
		sess.PIDUpdatedAt = time.Now().UnixMilli()
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ClearPID releases the session lock. Called on every exit path, graceful
// or not, via the process-exit hook.
func (s *Store) ClearPID(ctx context.Context, sessionID string) {
	_, err := s.UpdateSessionMetadata(ctx, sessionID, func(sess *types.Session) {
		if sess.PID == os.Getpid() {
			sess.PID = 0
			sess.PIDUpdatedAt = 0
		}
	})
	if err != nil {
		logging.Debug().Err(err).Str("session", sessionID).Msg("failed to clear pid")
	}
}

// ownedByLiveProcess reports whether pid refers to a live process of this
// application. A dead process, or a recycled PID now running something
// else, does not count as an owner.
func ownedByLiveProcess(pid int) bool {
	if pid <= 0 {
		return false
	}
	if err := syscall.Kill(pid, 0); err != nil {
		return false
	}
	return looksLikeSelf(pid)
}

// looksLikeSelf checks /proc/{pid}/cmdline for this binary's name. On
// systems without procfs the liveness check alone has to do.
func looksLikeSelf(pid int) bool {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "cmdline"))
	if err != nil {
		return true
	}
	argv0 := strings.SplitN(string(data), "\x00", 2)[0]
	return strings.Contains(filepath.Base(argv0), processName())
}

func processName() string {
	return strings.TrimSuffix(filepath.Base(os.Args[0]), ".test")
}
