package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/core"
	"warden/internal/engine"
)

type stubScanner struct {
	name   string
	result core.ScanResult
	err    error
	onRun  func()
	ran    bool
}

func (s *stubScanner) Name() string { return s.name }

func (s *stubScanner) Run(context.Context) (core.ScanResult, error) {
	s.ran = true
	if s.onRun != nil {
		s.onRun()
	}
	return s.result, s.err
}

type recordingHandler struct {
	handled []string
}

func (r *recordingHandler) HandleThreat(t core.Threat) (core.QuarantineEntry, error) {
	r.handled = append(r.handled, t.Path)
	return core.QuarantineEntry{}, nil
}

func threat(path string) core.Threat {
	return core.NewThreat(core.SourceFile, engine.Verdict{Path: path, Status: engine.StatusUnsafe, Confidence: 99})
}

func TestRunSweep_AggregatesInOrder(t *testing.T) {
	procs := &stubScanner{name: "processes", result: core.ScanResult{Processed: 4, Summary: "p", Threats: []core.Threat{threat("/bin/miner")}}}
	broken := &stubScanner{name: "media", err: errors.New("no partitions")}
	dirs := &stubScanner{name: "directory", result: core.ScanResult{Processed: 10, Skipped: 1, Summary: "d", Threats: []core.Threat{threat("/tmp/x")}}}
	handler := &recordingHandler{}

	res, err := RunSweep(context.Background(), Options{Remediate: handler},
		Stage{1, "Processes", procs},
		Stage{2, "Removable media", broken},
		Stage{3, "Directories", dirs},
	)
	require.NoError(t, err)
	assert.Equal(t, 14, res.Processed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, "p\nd", res.Summary)
	assert.Len(t, res.Threats, 2)
	assert.Equal(t, []string{"/bin/miner", "/tmp/x"}, handler.handled)
}

func TestRunSweep_CancelStopsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := &stubScanner{name: "processes", result: core.ScanResult{Processed: 1, Threats: []core.Threat{threat("/a")}}, onRun: cancel}
	second := &stubScanner{name: "directory"}

	res, err := RunSweep(ctx, Options{}, Stage{1, "Processes", first}, Stage{2, "Directories", second})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Threats, 1)
	assert.False(t, second.ran)
}
