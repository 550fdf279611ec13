package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"warden/internal/logging"
)

const (
	// QuarantineSuffix marks a contained file
	QuarantineSuffix = ".quarantined"
	manifestName     = "manifest.json"
)

// QuarantineEntry records one contained file
type QuarantineEntry struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	OriginalPath    string    `json:"original_path"`
	QuarantinedPath string    `json:"quarantined_path"`
	SHA256          string    `json:"sha256"`
	QuarantinedAt   time.Time `json:"quarantined_at"`
}

// QuarantineJail manages the isolation of threats
type QuarantineJail struct {
	JailPath string
	logger   *zap.Logger
	mu       sync.Mutex
}

func NewQuarantineJail(path string, logger *zap.Logger) *QuarantineJail {
	return &QuarantineJail{
		JailPath: path,
		logger:   logging.WithComponent(logger, "quarantine"),
	}
}

// Quarantine moves a threat into the jail as <name>.quarantined and records it
// in the manifest. A failed attempt leaves the source in place.
func (q *QuarantineJail) Quarantine(sourcePath string) (QuarantineEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// 1. Validate source
	info, err := os.Lstat(sourcePath)
	if err != nil {
		return QuarantineEntry{}, &RemediationError{Op: "quarantine", Path: sourcePath, Err: err}
	}
	if info.IsDir() {
		return QuarantineEntry{}, &RemediationError{Op: "quarantine", Path: sourcePath, Err: errors.New("is a directory")}
	}

	// 2. Ensure jail exists with strict permissions
	if err := os.MkdirAll(q.JailPath, 0o700); err != nil {
		return QuarantineEntry{}, &RemediationError{Op: "quarantine", Path: sourcePath, Err: fmt.Errorf("failed to create jail: %w", err)}
	}

	// 3. Pick a free cell name
	entry := QuarantineEntry{
		ID:            uuid.NewString(),
		OriginalPath:  clean(sourcePath),
		QuarantinedAt: time.Now().UTC(),
	}
	base := filepath.Base(sourcePath)
	entry.Name = base + QuarantineSuffix
	if _, err := os.Lstat(filepath.Join(q.JailPath, entry.Name)); err == nil {
		entry.Name = fmt.Sprintf("%s.%s%s", base, entry.ID[:8], QuarantineSuffix)
	}
	entry.QuarantinedPath = filepath.Join(q.JailPath, entry.Name)

	// 4. Hash, then move
	if entry.SHA256, err = hashFile(sourcePath); err != nil {
		return QuarantineEntry{}, &RemediationError{Op: "quarantine", Path: sourcePath, Err: err}
	}
	if err := moveFile(sourcePath, entry.QuarantinedPath); err != nil {
		return QuarantineEntry{}, &RemediationError{Op: "quarantine", Path: sourcePath, Err: err}
	}

	// 5. Record. The move already happened, so a manifest failure is only logged.
	entries, err := q.readManifest()
	if err == nil {
		err = q.writeManifest(append(entries, entry))
	}
	if err != nil {
		q.logger.Warn("Failed to update quarantine manifest", zap.Error(err))
	}

	q.logger.Info("Threat quarantined",
		zap.String("source", sourcePath),
		zap.String("destination", entry.QuarantinedPath))
	return entry, nil
}

// Restore moves a quarantined file, identified by cell name or entry ID, back
// to its original location. It refuses to overwrite an existing file.
func (q *QuarantineJail) Restore(nameOrID string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.readManifest()
	if err != nil {
		return "", &RemediationError{Op: "restore", Path: nameOrID, Err: err}
	}
	idx := -1
	for i, e := range entries {
		if e.ID == nameOrID || e.Name == nameOrID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", &RemediationError{Op: "restore", Path: nameOrID, Err: errors.New("no quarantine record")}
	}
	entry := entries[idx]
	cell := filepath.Join(q.JailPath, entry.Name)

	if _, err := os.Lstat(entry.OriginalPath); err == nil {
		return "", &RemediationError{Op: "restore", Path: entry.OriginalPath, Err: os.ErrExist}
	}
	if err := os.MkdirAll(filepath.Dir(entry.OriginalPath), 0o755); err != nil {
		return "", &RemediationError{Op: "restore", Path: entry.OriginalPath, Err: err}
	}
	if err := moveFile(cell, entry.OriginalPath); err != nil {
		return "", &RemediationError{Op: "restore", Path: cell, Err: err}
	}

	if err := q.writeManifest(append(entries[:idx:idx], entries[idx+1:]...)); err != nil {
		q.logger.Warn("Failed to update quarantine manifest", zap.Error(err))
	}
	q.logger.Info("Restored from quarantine",
		zap.String("name", entry.Name),
		zap.String("destination", entry.OriginalPath))
	return entry.OriginalPath, nil
}

// List returns quarantined files, oldest first. Cells with no manifest record
// are included with only Name and QuarantinedPath set.
func (q *QuarantineJail) List() ([]QuarantineEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.readManifest()
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(entries))
	for _, e := range entries {
		known[e.Name] = true
	}

	dirEntries, err := os.ReadDir(q.JailPath)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, err
	}
	var orphans []QuarantineEntry
	for _, d := range dirEntries {
		if d.IsDir() || !strings.HasSuffix(d.Name(), QuarantineSuffix) || known[d.Name()] {
			continue
		}
		orphans = append(orphans, QuarantineEntry{
			Name:            d.Name(),
			QuarantinedPath: filepath.Join(q.JailPath, d.Name()),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].QuarantinedAt.Before(entries[j].QuarantinedAt)
	})
	return append(entries, orphans...), nil
}

func (q *QuarantineJail) manifestPath() string {
	return filepath.Join(q.JailPath, manifestName)
}

func (q *QuarantineJail) readManifest() ([]QuarantineEntry, error) {
	data, err := os.ReadFile(q.manifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return []QuarantineEntry{}, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var entries []QuarantineEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return entries, nil
}

func (q *QuarantineJail) writeManifest(entries []QuarantineEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := q.manifestPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, q.manifestPath())
}
