package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"warden/internal/config"
	"warden/internal/engine"
	"warden/internal/logging"
)

func TestScannerExclusions(t *testing.T) {
	cfg := config.Default()
	a := &app{cfg: cfg, logger: logging.Nop(), eng: engine.New(engine.Context{})}

	// host folder names such as Windows are scanned on removable volumes
	media := newMediaScanner(a)
	assert.Empty(t, media.Exclude)

	cfg.MediaExcludeDirs = []string{"System Volume Information"}
	assert.Equal(t, []string{"System Volume Information"}, newMediaScanner(a).Exclude)

	dirs := newDirectoryScanner(a, []string{t.TempDir()})
	assert.Equal(t, cfg.ExcludeDirs, dirs.Exclude)
	assert.Contains(t, dirs.Exclude, "Windows")
}
