package stages

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"warden/internal/collectors"
	"warden/internal/core"
	"warden/internal/logging"
)

// Stage is one step of a sweep.
type Stage struct {
	Number      int
	Description string
	Scanner     core.Scanner
}

// ThreatHandler contains a threat found during a sweep.
type ThreatHandler interface {
	HandleThreat(t core.Threat) (core.QuarantineEntry, error)
}

// Options controls a sweep.
type Options struct {
	Logger *zap.Logger
	// Remediate, when set, receives every threat as soon as its stage finishes.
	Remediate ThreatHandler
}

// RunSweep runs stages in order and aggregates their results. A stage that
// fails is logged and the sweep moves on; cancellation stops the remaining
// stages and returns what was found so far.
func RunSweep(ctx context.Context, opts Options, stages ...Stage) (core.ScanResult, error) {
	logger := logging.WithComponent(opts.Logger, "sweep")
	var total core.ScanResult

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := runStage(ctx, logger, st)
		total.Merge(res)
		performRemediation(logger, opts.Remediate, res.Threats)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return total, err
			}
			total.Errors++
			if !errors.Is(err, collectors.ErrBusy) {
				logger.Error("Stage failed", zap.Int("stage", st.Number), zap.Error(err))
			}
		}
	}

	logger.Info("Sweep completed",
		zap.Int("processed", total.Processed),
		zap.Int("threats", len(total.Threats)))
	return total, nil
}

// runStage wraps a single scanner with stage logging
func runStage(ctx context.Context, logger *zap.Logger, st Stage) (core.ScanResult, error) {
	logger.Info("Stage started",
		zap.Int("stage", st.Number),
		zap.String("description", st.Description),
		zap.String("scanner", st.Scanner.Name()))

	res, err := st.Scanner.Run(ctx)

	logger.Info("Stage completed",
		zap.Int("stage", st.Number),
		zap.Int("processed", res.Processed),
		zap.Int("threats", len(res.Threats)))
	return res, err
}

func performRemediation(logger *zap.Logger, handler ThreatHandler, threats []core.Threat) {
	if handler == nil || len(threats) == 0 {
		return
	}
	logger.Warn("Neutralizing threats", zap.Int("count", len(threats)))
	for _, t := range threats {
		if _, err := handler.HandleThreat(t); err != nil {
			logger.Error("Remediation failed", zap.String("path", t.Path), zap.Error(err))
		}
	}
}
