// Package sentinel watches directories for newly dropped files and scans them
// as they appear.
package sentinel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"warden/internal/core"
	"warden/internal/engine"
	"warden/internal/logging"
)

// DefaultInterval is the polling period.
const DefaultInterval = 2 * time.Second

// ErrAlreadyRunning is returned by Start on a running monitor.
var ErrAlreadyRunning = errors.New("sentinel is already running")

// State is the monitor lifecycle state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "Running"
	}
	return "Stopped"
}

// Engine is the part of the scan engine the monitor depends on.
type Engine interface {
	Scan(path string) engine.Verdict
	Escalate(v engine.Verdict) bool
}

// Stats counts what the monitor has seen since Start.
type Stats struct {
	Polls   int
	Scanned int
	Skipped int
	Threats int
}

// Monitor polls watched directories and scans entries that were not present
// in the previous snapshot. The first poll runs at Start and scans everything
// already in the directories, unless Baseline is set.
type Monitor struct {
	Engine   Engine
	Dirs     []string
	Interval time.Duration
	// Baseline records the entries present at Start without scanning them.
	Baseline bool
	OnThreat func(core.Threat)
	OnEvent  func(message string)

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	stats  Stats
	logger *zap.Logger
}

func NewMonitor(e Engine, dirs []string, logger *zap.Logger) *Monitor {
	return &Monitor{
		Engine:   e,
		Dirs:     dirs,
		Interval: DefaultInterval,
		logger:   logging.WithComponent(logger, "sentinel"),
	}
}

// Start launches the polling loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state == Running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.state = Running
	m.stats = Stats{}

	go m.run(ctx, interval, m.done)
	m.mu.Unlock()

	m.event(fmt.Sprintf("Sentinel active, watching %v", m.Dirs))
	return nil
}

// Stop cancels the loop and waits for it to exit. No scan starts after Stop
// returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state != Running {
		m.mu.Unlock()
		return
	}
	m.cancel()
	done := m.done
	m.state = Stopped
	m.mu.Unlock()

	<-done
	m.event("Sentinel stopped")
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns a copy of the counters.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Wait blocks until the loop exits, either through Stop or parent cancellation.
func (m *Monitor) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (m *Monitor) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	defer func() {
		m.mu.Lock()
		// a Start racing with Stop may already own the monitor
		if m.done == done {
			m.state = Stopped
		}
		m.mu.Unlock()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	previous := map[string]bool{}
	if m.Baseline {
		previous = m.snapshot()
	} else if previous = m.poll(ctx, previous); previous == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if previous = m.poll(ctx, previous); previous == nil {
			return
		}
	}
}

// poll scans the entries missing from previous and returns the new snapshot,
// or nil once ctx is cancelled.
func (m *Monitor) poll(ctx context.Context, previous map[string]bool) map[string]bool {
	if ctx.Err() != nil {
		return nil
	}
	current := m.snapshot()
	m.count(func(s *Stats) { s.Polls++ })
	for path := range current {
		if previous[path] {
			continue
		}
		// observed before every scan
		if ctx.Err() != nil {
			return nil
		}
		m.inspect(path)
	}
	return current
}

func (m *Monitor) inspect(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		m.count(func(s *Stats) { s.Skipped++ })
		return
	}

	m.event(fmt.Sprintf("New file detected: %s", filepath.Base(path)))
	v := m.Engine.Scan(path)
	m.count(func(s *Stats) { s.Scanned++ })

	if v.Status == engine.StatusError {
		// vanished between detection and scan
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			m.count(func(s *Stats) { s.Skipped++ })
			return
		}
		m.logger.Warn("Scan failed", zap.String("path", path), zap.String("detail", v.Detail))
		return
	}
	if !m.Engine.Escalate(v) {
		return
	}

	threat := core.NewThreat(core.SourceNewDrop, v)
	m.count(func(s *Stats) { s.Threats++ })
	m.logger.Warn("Threat dropped into watched directory",
		zap.String("path", path),
		zap.String("confidence", v.ConfidenceString()))
	m.event(fmt.Sprintf("THREAT DETECTED: %s", filepath.Base(path)))
	if m.OnThreat != nil {
		m.OnThreat(threat)
	}
}

// snapshot lists the direct entries of every watched directory.
func (m *Monitor) snapshot() map[string]bool {
	set := make(map[string]bool)
	for _, dir := range m.Dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			m.logger.Debug("Watched directory unreadable", zap.String("dir", dir), zap.Error(err))
			continue
		}
		for _, e := range entries {
			set[filepath.Join(dir, e.Name())] = true
		}
	}
	return set
}

func (m *Monitor) count(fn func(*Stats)) {
	m.mu.Lock()
	fn(&m.stats)
	m.mu.Unlock()
}

func (m *Monitor) event(msg string) {
	m.logger.Info(msg)
	if m.OnEvent != nil {
		m.OnEvent(msg)
	}
}
