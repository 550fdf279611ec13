package shadow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "shadow copies must not outlive Read")
}

func TestRead_ReturnsContent(t *testing.T) {
	src := filepath.Join(t.TempDir(), "sample.bin")
	require.NoError(t, os.WriteFile(src, []byte("MZ payload"), 0o400))
	scratch := t.TempDir()

	data, err := Reader{TempDir: scratch}.Read(src)
	require.NoError(t, err)
	assert.Equal(t, []byte("MZ payload"), data)
	assertEmptyDir(t, scratch)
}

func TestRead_EmptyFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(src, nil, 0o600))

	data, err := Reader{TempDir: t.TempDir()}.Read(src)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestRead_Errors(t *testing.T) {
	dir := t.TempDir()
	scratch := t.TempDir()
	big := filepath.Join(dir, "big")
	require.NoError(t, os.WriteFile(big, make([]byte, 64), 0o600))

	tests := []struct {
		name   string
		reader Reader
		path   string
		op     string
		target error
	}{
		{"missing", Reader{TempDir: scratch}, filepath.Join(dir, "gone"), "stat", os.ErrNotExist},
		{"directory", Reader{TempDir: scratch}, dir, "stat", ErrNotRegular},
		{"too large", Reader{TempDir: scratch, MaxBytes: 16}, big, "stat", ErrTooLarge},
		{"bad temp dir", Reader{TempDir: filepath.Join(dir, "no-such-dir")}, big, "open", os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.reader.Read(tt.path)
			var rerr *ReadError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.op, rerr.Op)
			assert.Equal(t, tt.path, rerr.Path)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
	assertEmptyDir(t, scratch)
}

func TestRead_WithinLimit(t *testing.T) {
	src := filepath.Join(t.TempDir(), "exact")
	require.NoError(t, os.WriteFile(src, make([]byte, 16), 0o600))

	data, err := Reader{TempDir: t.TempDir(), MaxBytes: 16}.Read(src)
	require.NoError(t, err)
	assert.Len(t, data, 16)
}
