package pathguard

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func TestCheckWrite_AllowedPrefix(t *testing.T) {
	dir := t.TempDir()
	g := New(nil, nil, dir, false, nil)

	if err := g.CheckWrite(filepath.Join(dir, "new.txt")); err != nil {
		t.Errorf("write inside workdir should be allowed: %v", err)
	}
	if err := g.CheckWrite(filepath.Join(dir, "sub", "deep", "new.txt")); err != nil {
		t.Errorf("nested write inside workdir should be allowed: %v", err)
	}
}

func TestCheckWrite_Denied(t *testing.T) {
	dir := t.TempDir()
	g := New(nil, nil, dir, false, nil)

	err := g.CheckWrite("/etc/passwd")
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if denied.Path != "/etc/passwd" {
		t.Errorf("denied path mismatch: %s", denied.Path)
	}
}

func TestCheckWrite_PrefixIsNotSubstring(t *testing.T) {
	dir := t.TempDir()
	g := New(nil, nil, dir, false, nil)

	// dir + "x" shares a string prefix with dir but is a sibling.
	if err := g.CheckWrite(dir + "x/file"); err == nil {
		t.Error("sibling directory sharing a string prefix must be denied")
	}
}

func TestCheckWrite_WildModeShortCircuits(t *testing.T) {
	g := New(nil, nil, t.TempDir(), true, nil)
	if err := g.CheckWrite("/etc/passwd"); err != nil {
		t.Errorf("wild mode must allow everything: %v", err)
	}
}

func TestWarnSoloWild_Once(t *testing.T) {
	g := New(nil, nil, t.TempDir(), true, nil)

	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w
	g.WarnSoloWild()
	g.WarnSoloWild()
	w.Close()
	os.Stderr = old

	var buf strings.Builder
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "solo mode implies --wild") {
		t.Errorf("stderr = %q", out)
	}
	if strings.Count(out, "warning:") != 1 {
		t.Errorf("warning must fire exactly once, stderr = %q", out)
	}
}

// Enabling wild mode never denies a path that plain mode allows, and
// plain mode never allows a path that plain mode would deny.
func TestWildModeMonotonicity(t *testing.T) {
	dir := t.TempDir()
	plain := New(nil, nil, dir, false, nil)
	wild := New(nil, nil, dir, true, nil)

	paths := []string{
		filepath.Join(dir, "ok.txt"),
		"/etc/passwd",
		"/tmp/other",
		dir,
	}
	for _, p := range paths {
		if plain.CheckWrite(p) == nil && wild.CheckWrite(p) != nil {
			t.Errorf("wild mode denied %s which plain mode allows", p)
		}
	}
}

func TestCheckWrite_DotDotEscape(t *testing.T) {
	dir := t.TempDir()
	g := New(nil, nil, dir, false, nil)

	if err := g.CheckWrite(filepath.Join(dir, "..", "escape.txt")); err == nil {
		t.Error("dot-dot traversal out of the allowed prefix must be denied")
	}
}

func TestCheckWrite_SymlinkEscape(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(dir, "out")
	if err := os.Symlink(outside, link); err != nil {
		t.Skip("symlinks unavailable:", err)
	}

	g := New(nil, nil, dir, false, nil)
	if err := g.CheckWrite(filepath.Join(link, "file.txt")); err == nil {
		t.Error("write through a symlink pointing outside must be denied")
	}
}

func TestAllowPath_Runtime(t *testing.T) {
	dir := t.TempDir()
	extra := t.TempDir()
	g := New(nil, nil, dir, false, nil)

	target := filepath.Join(extra, "f")
	if err := g.CheckWrite(target); err == nil {
		t.Fatal("expected denial before grant")
	}
	if err := g.AllowPath(extra); err != nil {
		t.Fatal(err)
	}
	if err := g.CheckWrite(target); err != nil {
		t.Errorf("expected allow after grant: %v", err)
	}
}

func TestAuditor_RecordsDenials(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "audit.log")
	auditor := NewAuditor(logFile, true)
	g := New(nil, nil, dir, false, auditor)

	g.CheckWrite("/etc/passwd")
	g.CheckWrite("/etc/shadow")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 audit lines, got %d: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], "DENIED") || !strings.Contains(lines[0], "/etc/passwd") {
		t.Errorf("audit line malformed: %s", lines[0])
	}
}

func TestShellWriteTargets(t *testing.T) {
	tests := []struct {
		command string
		want    []string
	}{
		{"echo hi > /tmp/out.txt", []string{"/tmp/out.txt"}},
		{"cat a.log >> results.txt", []string{"results.txt"}},
		{"rm -rf build dist", []string{"build", "dist"}},
		{"mv src.txt dest.txt", []string{"dest.txt"}},
		{"cp -r src/ /opt/app", []string{"/opt/app"}},
		{"ls -la", nil},
		{"grep foo file.txt | wc -l", nil},
		{"mkdir -p a/b && touch a/b/c", []string{"a/b", "a/b/c"}},
	}
	for _, tt := range tests {
		got, ok := ShellWriteTargets(tt.command)
		if !ok {
			t.Errorf("%q: parse failed", tt.command)
			continue
		}
		sort.Strings(got)
		want := append([]string(nil), tt.want...)
		sort.Strings(want)
		if len(got) != len(want) {
			t.Errorf("%q: targets %v, want %v", tt.command, got, want)
			continue
		}
		for i := range got {
			if got[i] != want[i] {
				t.Errorf("%q: targets %v, want %v", tt.command, got, want)
				break
			}
		}
	}
}

func TestShellWriteTargets_SkipsExpansions(t *testing.T) {
	got, ok := ShellWriteTargets("rm -rf $HOME/stuff")
	if !ok {
		t.Fatal("parse failed")
	}
	if len(got) != 0 {
		t.Errorf("expanded words must not be reported as checkable paths: %v", got)
	}
}

func TestShellWriteTargets_Unparseable(t *testing.T) {
	if _, ok := ShellWriteTargets("if then fi ((("); ok {
		t.Error("garbage input should report parse failure")
	}
}
