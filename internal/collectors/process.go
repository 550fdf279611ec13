package collectors

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"warden/internal/core"
	"warden/internal/logging"
)

// ProcessInfo describes one running process. Err is set when the backing
// executable could not be resolved.
type ProcessInfo struct {
	PID  int32
	Name string
	Exe  string
	Err  error
}

// ProcessLister enumerates running processes.
type ProcessLister interface {
	Processes(ctx context.Context) ([]ProcessInfo, error)
}

// SystemProcesses lists processes through gopsutil.
type SystemProcesses struct{}

func (SystemProcesses) Processes(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		info := ProcessInfo{PID: p.Pid}
		// Name and Exe race with process exit; failures are reported per process.
		info.Name, _ = p.NameWithContext(ctx)
		info.Exe, info.Err = p.ExeWithContext(ctx)
		out = append(out, info)
	}
	return out, nil
}

// ProcessScanner scans the executables backing running processes.
type ProcessScanner struct {
	Engine   Engine
	Lister   ProcessLister
	Every    int
	Progress Progress

	guard  Guard
	logger *zap.Logger
}

func NewProcessScanner(e Engine, logger *zap.Logger) *ProcessScanner {
	return &ProcessScanner{
		Engine: e,
		Lister: SystemProcesses{},
		logger: logging.WithComponent(logger, "processes"),
	}
}

func (s *ProcessScanner) Name() string { return "processes" }

// Run scans each distinct executable once. Processes that vanish or deny
// access are skipped.
func (s *ProcessScanner) Run(ctx context.Context) (core.ScanResult, error) {
	if err := s.guard.TryStart(); err != nil {
		return core.ScanResult{}, err
	}
	defer s.guard.Done()

	procs, err := s.Lister.Processes(ctx)
	if err != nil {
		return core.ScanResult{}, fmt.Errorf("failed to enumerate processes: %w", err)
	}

	var res core.ScanResult
	t := newTicker(s.Every, s.Progress)
	seen := make(map[string]bool)
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			res.Summary = fmt.Sprintf("Process scan cancelled after %d executables.", res.Processed)
			return res, err
		}
		if p.Err != nil || p.Exe == "" {
			res.Skipped++
			s.logger.Debug("Skipping process", zap.Int32("pid", p.PID), zap.Error(p.Err))
			continue
		}
		if seen[p.Exe] {
			continue
		}
		seen[p.Exe] = true
		if _, err := os.Stat(p.Exe); err != nil {
			res.Skipped++
			continue
		}

		if v, threat := scanFile(s.Engine, core.SourceProcess, p.Exe, &res); threat {
			th := &res.Threats[len(res.Threats)-1]
			th.PID = p.PID
			th.ProcessName = p.Name
			s.logger.Warn("Malicious process",
				zap.Int32("pid", p.PID),
				zap.String("name", p.Name),
				zap.String("exe", p.Exe),
				zap.String("confidence", v.ConfidenceString()))
		}
		t.tick("Scanning processes", res.Processed)
	}

	res.Summary = fmt.Sprintf("Scanned %d process executables.", res.Processed)
	t.report(res.Summary, res.Processed)
	return res, nil
}
