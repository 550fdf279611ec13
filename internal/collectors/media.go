package collectors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"

	"warden/internal/core"
	"warden/internal/logging"
)

// PartitionInfo is a mounted volume.
type PartitionInfo struct {
	Device     string
	Mountpoint string
	Fstype     string
	Opts       []string
}

// PartitionLister enumerates mounted volumes.
type PartitionLister interface {
	Partitions(ctx context.Context) ([]PartitionInfo, error)
}

// SystemPartitions lists volumes through gopsutil.
type SystemPartitions struct{}

func (SystemPartitions) Partitions(ctx context.Context) ([]PartitionInfo, error) {
	parts, err := disk.PartitionsWithContext(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]PartitionInfo, 0, len(parts))
	for _, p := range parts {
		out = append(out, PartitionInfo{
			Device:     p.Device,
			Mountpoint: p.Mountpoint,
			Fstype:     p.Fstype,
			Opts:       p.Opts,
		})
	}
	return out, nil
}

var opticalFS = map[string]bool{"iso9660": true, "udf": true, "cdfs": true}

// Removable decides whether a partition is removable or optical media.
// SysBlock is the sysfs block directory consulted on linux.
type Removable struct {
	SysBlock string
}

func (r Removable) Match(p PartitionInfo) bool {
	if opticalFS[strings.ToLower(p.Fstype)] {
		return true
	}
	for _, o := range p.Opts {
		switch strings.ToLower(o) {
		case "removable", "cdrom":
			return true
		}
	}
	if runtime.GOOS == "darwin" && strings.HasPrefix(p.Mountpoint, "/Volumes/") {
		return true
	}
	return r.sysfsRemovable(p.Device)
}

// sysfsRemovable reads /sys/block/<disk>/removable for a partition device
// such as /dev/sdb1 or /dev/mmcblk0p1.
func (r Removable) sysfsRemovable(device string) bool {
	if r.SysBlock == "" || !strings.HasPrefix(device, "/dev/") {
		return false
	}
	name := filepath.Base(device)
	candidates := []string{name}
	base := strings.TrimRight(name, "0123456789")
	if n := len(base); n > 1 && base[n-1] == 'p' && base[n-2] >= '0' && base[n-2] <= '9' {
		base = base[:n-1]
	}
	if base != "" && base != name {
		candidates = append(candidates, base)
	}
	for _, c := range candidates {
		data, err := os.ReadFile(filepath.Join(r.SysBlock, c, "removable"))
		if err == nil {
			return strings.TrimSpace(string(data)) == "1"
		}
	}
	return false
}

// MediaScanner scans every file on mounted removable and optical volumes.
type MediaScanner struct {
	Engine   Engine
	Lister   PartitionLister
	Match    func(PartitionInfo) bool
	Exclude  []string
	Every    int
	Progress Progress

	guard  Guard
	logger *zap.Logger
}

func NewMediaScanner(e Engine, logger *zap.Logger) *MediaScanner {
	return &MediaScanner{
		Engine: e,
		Lister: SystemPartitions{},
		Match:  Removable{SysBlock: "/sys/block"}.Match,
		logger: logging.WithComponent(logger, "media"),
	}
}

func (s *MediaScanner) Name() string { return "media" }

// Volumes returns the mountpoints of removable media, deduplicated.
func (s *MediaScanner) Volumes(ctx context.Context) ([]string, error) {
	parts, err := s.Lister.Partitions(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, p := range parts {
		if p.Mountpoint == "" || seen[p.Mountpoint] || !s.Match(p) {
			continue
		}
		seen[p.Mountpoint] = true
		out = append(out, p.Mountpoint)
	}
	return out, nil
}

// Run walks each removable volume, reporting progress every Every files.
func (s *MediaScanner) Run(ctx context.Context) (core.ScanResult, error) {
	if err := s.guard.TryStart(); err != nil {
		return core.ScanResult{}, err
	}
	defer s.guard.Done()

	volumes, err := s.Volumes(ctx)
	if err != nil {
		return core.ScanResult{}, fmt.Errorf("failed to enumerate volumes: %w", err)
	}
	var res core.ScanResult
	t := newTicker(s.Every, s.Progress)
	if len(volumes) == 0 {
		res.Summary = "No removable drives found"
		t.report(res.Summary, 0)
		return res, nil
	}

	for _, vol := range volumes {
		s.logger.Info("Scanning removable volume", zap.String("mountpoint", vol))
		skipped, err := walkFiles(ctx, vol, s.Exclude, func(path string) {
			if v, threat := scanFile(s.Engine, core.SourceRemovableMedia, path, &res); threat {
				s.logger.Warn("Threat on removable media",
					zap.String("path", path),
					zap.String("confidence", v.ConfidenceString()))
			}
			t.tick(fmt.Sprintf("Scanning %s: %d files", vol, res.Processed), res.Processed)
		})
		res.Skipped += skipped
		if err != nil {
			res.Summary = fmt.Sprintf("Scan cancelled after %d files on removable media.", res.Processed)
			return res, err
		}
	}

	res.Summary = fmt.Sprintf("Scanned %d files on removable media.", res.Processed)
	t.report(res.Summary, res.Processed)
	return res, nil
}
