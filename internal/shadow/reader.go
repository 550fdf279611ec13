// Package shadow reads files through a private temporary copy so that locked
// or actively written targets can still be inspected.
package shadow

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrTooLarge is wrapped by ReadError when a file exceeds Reader.MaxBytes.
var ErrTooLarge = errors.New("file exceeds size limit")

// ErrNotRegular is wrapped by ReadError when the target is not a regular file.
var ErrNotRegular = errors.New("not a regular file")

// ReadError describes a failed shadow read.
type ReadError struct {
	Path string
	Op   string // stat, open, copy, read
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("shadow %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Reader performs shadow reads. The zero value is ready to use.
type Reader struct {
	TempDir  string // directory for shadow copies; os.TempDir() when empty
	MaxBytes int64  // 0 means unlimited
}

// Read copies path to a private temporary file, reads the copy and removes it
// on every exit path. It does not retry.
func (r Reader) Read(path string) (data []byte, err error) {
	// 1. Validate the source
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ReadError{Path: path, Op: "stat", Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &ReadError{Path: path, Op: "stat", Err: ErrNotRegular}
	}
	if r.MaxBytes > 0 && info.Size() > r.MaxBytes {
		return nil, &ReadError{Path: path, Op: "stat", Err: fmt.Errorf("%w (%d > %d bytes)", ErrTooLarge, info.Size(), r.MaxBytes)}
	}

	// 2. Private shadow file, always removed
	tmp, err := os.CreateTemp(r.TempDir, "warden-shadow-*")
	if err != nil {
		return nil, &ReadError{Path: path, Op: "open", Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	defer tmp.Close()

	// 3. Copy source into the shadow
	if err := copyInto(tmp, path, r.MaxBytes); err != nil {
		return nil, &ReadError{Path: path, Op: "copy", Err: err}
	}
	preserveMetadata(tmpPath, info)

	// 4. Read back the snapshot
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, &ReadError{Path: path, Op: "read", Err: err}
	}
	data, err = io.ReadAll(tmp)
	if err != nil {
		return nil, &ReadError{Path: path, Op: "read", Err: err}
	}
	return data, nil
}

func copyInto(dst *os.File, src string, limit int64) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	var reader io.Reader = in
	if limit > 0 {
		// the file may have grown since stat
		reader = io.LimitReader(in, limit+1)
	}
	n, err := io.Copy(dst, reader)
	if err != nil {
		return err
	}
	if limit > 0 && n > limit {
		return fmt.Errorf("%w (grew past %d bytes)", ErrTooLarge, limit)
	}
	return nil
}

// preserveMetadata mirrors mode and timestamps onto the shadow copy. Failures
// are ignored.
func preserveMetadata(path string, info os.FileInfo) {
	_ = os.Chmod(path, info.Mode().Perm()|0o600)
	_ = os.Chtimes(path, info.ModTime(), info.ModTime())
}
