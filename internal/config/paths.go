package config

import (
	"os"
	"path/filepath"
)

// Dir returns the wolo config directory. WOLO_CONFIG_DIR overrides the
// default ~/.wolo, mainly for tests.
func Dir() string {
	if dir := os.Getenv("WOLO_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".wolo")
}

// SessionsDir returns the session storage root.
func SessionsDir() string {
	return filepath.Join(Dir(), "sessions")
}

// AuditLogPath returns the path-safety audit log location, honoring a
// configured override.
func AuditLogPath(configured string) string {
	if configured != "" {
		return configured
	}
	return filepath.Join(Dir(), "path_audit.log")
}
