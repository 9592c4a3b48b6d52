// Package pathguard is the central write-path policy. Every tool that can
// mutate the filesystem consults a Guard before touching disk.
package pathguard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wolo-ai/wolo/internal/logging"
)

// DeniedError is raised when a write target falls outside every allowed
// prefix. The dispatcher converts it into a status=error tool part and the
// loop treats it as fatal for the run.
type DeniedError struct {
	Path string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("path safety: write to %s denied (outside allowed paths, use -P to allow or --wild to disable)", e.Path)
}

// Guard holds the per-session write policy: a set of canonical allowed
// prefixes plus the wild-mode switch that bypasses all checks.
type Guard struct {
	mu       sync.Mutex
	allowed  []string
	wildMode bool
	auditor  *Auditor

	warnedOnce bool
}

// New builds a guard from config-declared paths, CLI -P paths, and the
// session working directory. Paths that cannot be resolved are dropped
// with a warning rather than silently widening or narrowing the policy.
func New(configPaths, cliPaths []string, workDir string, wildMode bool, auditor *Auditor) *Guard {
	g := &Guard{wildMode: wildMode, auditor: auditor}

	candidates := make([]string, 0, len(configPaths)+len(cliPaths)+1)
	candidates = append(candidates, configPaths...)
	candidates = append(candidates, cliPaths...)
	if workDir != "" {
		candidates = append(candidates, workDir)
	}
	for _, p := range candidates {
		canon, err := canonicalize(p)
		if err != nil {
			logging.Warn().Err(err).Str("path", p).Msg("ignoring unresolvable allowed path")
			continue
		}
		g.allowed = append(g.allowed, canon)
	}
	return g
}

// WildMode reports whether path checks are bypassed.
func (g *Guard) WildMode() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.wildMode
}

// AllowedPaths returns a copy of the canonical allowed prefixes.
func (g *Guard) AllowedPaths() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.allowed...)
}

// AllowPath adds another allowed prefix at runtime, for confirmations
// granted mid-session.
func (g *Guard) AllowPath(path string) error {
	canon, err := canonicalize(path)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.allowed = append(g.allowed, canon)
	return nil
}

// CheckWrite validates a write target. Returns nil when allowed, a
// *DeniedError otherwise. Denials are appended to the audit log.
func (g *Guard) CheckWrite(target string) error {
	g.mu.Lock()
	wild := g.wildMode
	allowed := g.allowed
	g.mu.Unlock()

	if wild {
		return nil
	}

	canon, err := canonicalize(target)
	if err != nil {
		// Unresolvable targets are denied, not allowed.
		g.audit(target, "unresolvable: "+err.Error())
		return &DeniedError{Path: target}
	}
	for _, prefix := range allowed {
		if contains(prefix, canon) {
			return nil
		}
	}
	g.audit(canon, "outside allowed prefixes")
	return &DeniedError{Path: canon}
}

func (g *Guard) audit(path, reason string) {
	if g.auditor != nil {
		g.auditor.RecordDenial(path, reason)
	}
}

// WarnSoloWild emits the one-time stderr warning for SOLO-implied wild
// mode. No-op after the first call and when wild mode was explicit.
func (g *Guard) WarnSoloWild() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.warnedOnce {
		return
	}
	g.warnedOnce = true
	fmt.Fprintln(os.Stderr, "warning: solo mode implies --wild (path safety disabled); pass --coop or set allowed paths with -P to re-enable")
}

// canonicalize resolves a path to absolute cleaned form, following
// symlinks through the deepest existing ancestor so that a not-yet-created
// file under a symlinked directory still canonicalizes correctly.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	dir, base := filepath.Split(abs)
	dir = filepath.Clean(dir)
	if dir == abs {
		return abs, nil
	}
	resolvedDir, err := canonicalize(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, base), nil
}

func contains(prefix, path string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}
