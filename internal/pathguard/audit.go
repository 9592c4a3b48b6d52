package pathguard

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wolo-ai/wolo/internal/logging"
)

// Auditor appends denied-write records to an append-only log file,
// one line per denial. Audit failures are logged but never block the
// denial itself.
type Auditor struct {
	mu      sync.Mutex
	path    string
	enabled bool
}

// NewAuditor returns an auditor writing to the given file. An empty path
// disables auditing.
func NewAuditor(path string, enabled bool) *Auditor {
	return &Auditor{path: path, enabled: enabled && path != ""}
}

// DefaultAuditLogPath is ~/.wolo/path_audit.log.
func DefaultAuditLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".wolo", "path_audit.log")
}

// RecordDenial appends one timestamped line describing a denied write.
func (a *Auditor) RecordDenial(path, reason string) {
	if !a.enabled {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		logging.Warn().Err(err).Msg("cannot create audit log directory")
		return
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logging.Warn().Err(err).Str("file", a.path).Msg("cannot open audit log")
		return
	}
	defer f.Close()

	line := fmt.Sprintf("%s DENIED pid=%d path=%s reason=%s\n",
		time.Now().Format(time.RFC3339), os.Getpid(), path, reason)
	if _, err := f.WriteString(line); err != nil {
		logging.Warn().Err(err).Msg("audit log write failed")
	}
}
