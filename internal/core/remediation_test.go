package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/engine"
)

func TestDelete_File(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "bad.exe")
	sibling := filepath.Join(dir, "good.txt")
	writeFile(t, target, "x")
	writeFile(t, sibling, "y")

	require.NoError(t, Delete(target))
	assert.NoFileExists(t, target)
	assert.FileExists(t, sibling)
}

func TestDelete_DirectoryTree(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "payload")
	writeFile(t, filepath.Join(dir, "a", "b", "c.bin"), "x")
	writeFile(t, filepath.Join(dir, "d.bin"), "x")

	require.NoError(t, Delete(dir))
	assert.NoDirExists(t, dir)
}

func TestDelete_Missing(t *testing.T) {
	err := Delete(filepath.Join(t.TempDir(), "gone"))
	var rerr *RemediationError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "delete", rerr.Op)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDelete_RefusesRoot(t *testing.T) {
	assert.ErrorIs(t, Delete(string(filepath.Separator)), ErrProtected)
}

func TestRemediationManager_Whitelist(t *testing.T) {
	root := t.TempDir()
	jail := NewQuarantineJail(filepath.Join(root, "jail"), nil)
	mgr := NewRemediationManager(jail, nil)

	inJail := filepath.Join(jail.JailPath, "x.quarantined")
	writeFile(t, inJail, "x")
	_, err := mgr.Quarantine(inJail)
	assert.ErrorIs(t, err, ErrProtected)
	assert.ErrorIs(t, mgr.Delete(jail.JailPath), ErrProtected)
	assert.FileExists(t, inJail)

	// a file merely named like a system process is not protected
	lookalike := filepath.Join(root, "Downloads", "systemd")
	writeFile(t, lookalike, "x")
	entry, err := mgr.Quarantine(lookalike)
	require.NoError(t, err)
	assert.FileExists(t, entry.QuarantinedPath)
	assert.NoFileExists(t, lookalike)

	exe, err := os.Executable()
	require.NoError(t, err)
	assert.ErrorIs(t, mgr.Whitelist.Check(exe), ErrProtected)

	ok := filepath.Join(root, "downloads", "x.exe")
	writeFile(t, ok, "x")
	require.NoError(t, mgr.Delete(ok))
}

func TestRemediationManager_HandleThreat(t *testing.T) {
	root := t.TempDir()
	mgr := NewRemediationManager(NewQuarantineJail(filepath.Join(root, "jail"), nil), nil)

	path := filepath.Join(root, "drop.exe")
	writeFile(t, path, "x")
	threat := NewThreat(SourceNewDrop, engine.Verdict{Path: path, Status: engine.StatusUnsafe, Confidence: 97.3, Evidence: engine.EvidenceModel})

	entry, err := mgr.HandleThreat(threat)
	require.NoError(t, err)
	assert.NoFileExists(t, path)
	assert.FileExists(t, entry.QuarantinedPath)

	// already gone
	entry, err = mgr.HandleThreat(threat)
	require.NoError(t, err)
	assert.Empty(t, entry.QuarantinedPath)
}

func TestRemediationManager_HandleThreat_CriticalProcess(t *testing.T) {
	root := t.TempDir()
	mgr := NewRemediationManager(NewQuarantineJail(filepath.Join(root, "jail"), nil), nil)

	exe := filepath.Join(root, "lib", "systemd")
	writeFile(t, exe, "x")
	threat := NewThreat(SourceProcess, engine.Verdict{Path: exe, Status: engine.StatusUnsafe, Confidence: 99})
	threat.PID, threat.ProcessName = 1, "systemd"

	_, err := mgr.HandleThreat(threat)
	assert.ErrorIs(t, err, ErrProtected)
	assert.FileExists(t, exe)

	// the same file surfaced by a directory scan is remediated
	threat.Source = SourceFile
	entry, err := mgr.HandleThreat(threat)
	require.NoError(t, err)
	assert.FileExists(t, entry.QuarantinedPath)
}

func TestWriteReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	result := ScanResult{Processed: 3, Summary: "Scanned 3 files on removable media."}
	result.Threats = append(result.Threats,
		NewThreat(SourceRemovableMedia, engine.Verdict{Path: "/media/usb/x", Status: engine.StatusUnsafe, Evidence: engine.EvidenceHash, Confidence: 100}))

	path, err := WriteReport(dir, result)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var report Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 1, report.Stats["RemovableMedia"])
	require.Len(t, report.Threats, 1)
	assert.Equal(t, "100% (Hash)", report.Threats[0].Confidence())
}

func TestScanResult_Merge(t *testing.T) {
	var total ScanResult
	total.Merge(ScanResult{Processed: 2, Summary: "a"})
	total.Merge(ScanResult{Processed: 1, Skipped: 4, Errors: 1, Summary: "b"})
	total.Merge(ScanResult{})
	assert.Equal(t, 3, total.Processed)
	assert.Equal(t, 4, total.Skipped)
	assert.Equal(t, 1, total.Errors)
	assert.Equal(t, "a\nb", total.Summary)
}

func TestLayout(t *testing.T) {
	base := filepath.Join(t.TempDir(), "warden")
	l := NewLayout(base, "")
	require.NoError(t, l.EnsureDirectories())
	assert.DirExists(t, l.Logs)
	assert.DirExists(t, l.Reports)
	assert.DirExists(t, l.Temp)
	assert.Equal(t, filepath.Join(base, "Quarantine"), l.Quarantine)
	assert.NoDirExists(t, l.Quarantine)

	assert.Equal(t, "/q", NewLayout(base, "/q").Quarantine)
}
