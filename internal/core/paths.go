package core

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout is the on-disk directory structure under a base directory
type Layout struct {
	Base       string
	Quarantine string
	Logs       string
	Reports    string
	Temp       string
}

// NewLayout derives the standard subdirectories from base. A non-empty
// quarantine overrides the default jail location.
func NewLayout(base, quarantine string) Layout {
	if quarantine == "" {
		quarantine = filepath.Join(base, "Quarantine")
	}
	return Layout{
		Base:       base,
		Quarantine: quarantine,
		Logs:       filepath.Join(base, "Logs"),
		Reports:    filepath.Join(base, "Reports"),
		Temp:       filepath.Join(base, "Temp"),
	}
}

// EnsureDirectories creates the directory structure. The quarantine
// directory is created lazily by the jail with stricter permissions.
func (l Layout) EnsureDirectories() error {
	for _, d := range []string{l.Base, l.Logs, l.Reports, l.Temp} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}
	return nil
}
