// Package collectors gathers candidate files from processes, removable media,
// directories and the network neighbourhood, and runs them through the engine.
package collectors

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync/atomic"

	"warden/internal/core"
	"warden/internal/engine"
)

// DefaultProgressEvery is the default progress cadence in files.
const DefaultProgressEvery = 50

// ErrBusy is returned when a scan is requested while the same collector is
// already running one.
var ErrBusy = errors.New("scan already in progress")

// Engine is the part of the scan engine collectors depend on.
type Engine interface {
	Scan(path string) engine.Verdict
	Escalate(v engine.Verdict) bool
}

// Progress receives periodic updates. It runs on the scanning goroutine, so a
// slow callback slows the scan down.
type Progress func(message string, processed int)

// Guard allows one scan at a time per collector. The zero value is ready.
type Guard struct {
	busy atomic.Bool
}

// TryStart claims the guard, returning ErrBusy if it is already held.
func (g *Guard) TryStart() error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

// Done releases the guard.
func (g *Guard) Done() {
	g.busy.Store(false)
}

// Busy reports whether a scan is running.
func (g *Guard) Busy() bool {
	return g.busy.Load()
}

type ticker struct {
	every    int
	progress Progress
}

func newTicker(every int, p Progress) ticker {
	if every <= 0 {
		every = DefaultProgressEvery
	}
	return ticker{every: every, progress: p}
}

func (t ticker) tick(message string, processed int) {
	if t.progress != nil && processed > 0 && processed%t.every == 0 {
		t.progress(message, processed)
	}
}

func (t ticker) report(message string, processed int) {
	if t.progress != nil {
		t.progress(message, processed)
	}
}

// scanFile runs one file through the engine and folds the outcome into res.
func scanFile(e Engine, source core.SourceKind, path string, res *core.ScanResult) (engine.Verdict, bool) {
	v := e.Scan(path)
	res.Processed++
	if v.Status == engine.StatusError {
		res.Errors++
		return v, false
	}
	if !e.Escalate(v) {
		return v, false
	}
	res.Threats = append(res.Threats, core.NewThreat(source, v))
	return v, true
}

// walkFiles calls fn for every regular file under root, skipping excluded
// directory names and unreadable entries. It stops when ctx is cancelled.
func walkFiles(ctx context.Context, root string, exclude []string, fn func(path string)) (skipped int, err error) {
	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[strings.ToLower(name)] = true
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			skipped++
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && excluded[strings.ToLower(d.Name())] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			skipped++
			return nil
		}
		fn(path)
		return nil
	})
	return skipped, err
}
