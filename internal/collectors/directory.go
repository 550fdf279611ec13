package collectors

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"warden/internal/core"
	"warden/internal/logging"
)

// DirectoryScanner walks one or more roots and scans every file.
type DirectoryScanner struct {
	Engine   Engine
	Roots    []string
	Exclude  []string // directory names skipped at any depth
	Every    int
	Progress Progress

	guard  Guard
	logger *zap.Logger
}

func NewDirectoryScanner(e Engine, roots []string, logger *zap.Logger) *DirectoryScanner {
	return &DirectoryScanner{
		Engine: e,
		Roots:  roots,
		logger: logging.WithComponent(logger, "directory"),
	}
}

func (s *DirectoryScanner) Name() string { return "directory" }

// Run scans every root in order. Threats found before cancellation are kept.
func (s *DirectoryScanner) Run(ctx context.Context) (core.ScanResult, error) {
	if err := s.guard.TryStart(); err != nil {
		return core.ScanResult{}, err
	}
	defer s.guard.Done()

	var res core.ScanResult
	t := newTicker(s.Every, s.Progress)
	for _, root := range s.Roots {
		skipped, err := walkFiles(ctx, root, s.Exclude, func(path string) {
			if _, threat := scanFile(s.Engine, core.SourceFile, path, &res); threat {
				s.logger.Warn("Threat found", zap.String("path", path))
			}
			t.tick(fmt.Sprintf("Scanning %s", root), res.Processed)
		})
		res.Skipped += skipped
		if err != nil {
			res.Summary = fmt.Sprintf("Scan cancelled after %d files.", res.Processed)
			return res, err
		}
	}

	res.Summary = fmt.Sprintf("Scanned %d files in %s.", res.Processed, strings.Join(s.Roots, ", "))
	t.report(res.Summary, res.Processed)
	s.logger.Info("Directory scan finished",
		zap.Int("processed", res.Processed),
		zap.Int("threats", len(res.Threats)))
	return res, nil
}
