package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrProtected is returned when remediation targets something that must never be touched.
var ErrProtected = errors.New("target is protected")

// Whitelist guards critical paths from remediation, and critical processes
// from remediation of their executables. Removing these would break the host
// or the engine itself.
type Whitelist struct {
	dirs  []string // never remediated, nor anything below them
	exact map[string]bool
	// CriticalNames are process names; they are matched against
	// Threat.ProcessName only, never against file names.
	CriticalNames map[string]bool
}

// NewWhitelist protects the filesystem root, the given directories (typically
// the quarantine jail) and the running executable.
func NewWhitelist(protectedDirs ...string) *Whitelist {
	w := &Whitelist{
		exact: make(map[string]bool),
		CriticalNames: map[string]bool{
			"init":         true,
			"systemd":      true,
			"launchd":      true,
			"smss.exe":     true, // Session Manager
			"csrss.exe":    true,
			"wininit.exe":  true,
			"services.exe": true,
			"lsass.exe":    true,
			"winlogon.exe": true,
			"warden":       true, // Self-protection
			"warden.exe":   true,
		},
	}
	for _, d := range protectedDirs {
		if d != "" {
			w.dirs = append(w.dirs, clean(d))
		}
	}
	if exe, err := os.Executable(); err == nil {
		w.exact[clean(exe)] = true
	}
	return w
}

// IsCritical checks if the process name is in the hardcoded safety list.
func (w *Whitelist) IsCritical(processName string) bool {
	if w == nil || processName == "" {
		return false
	}
	return w.CriticalNames[strings.ToLower(filepath.Base(processName))]
}

// Check returns ErrProtected when path must not be remediated. Only resolved
// paths are protected; file names alone never are.
func (w *Whitelist) Check(path string) error {
	p := clean(path)
	if p == filepath.Dir(p) {
		return ErrProtected
	}
	if w == nil {
		return nil
	}
	if w.exact[p] {
		return ErrProtected
	}
	for _, d := range w.dirs {
		if p == d || strings.HasPrefix(p, d+string(filepath.Separator)) {
			return ErrProtected
		}
	}
	return nil
}

func clean(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
