package blob

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/msgbus/wire"
)

// ErrPathOutsideRoot is returned when a requested file path escapes the
// configured root directory.
var ErrPathOutsideRoot = errors.New("resource path outside root")

// ResolveRootedPath canonicalizes rel against root and verifies the result
// stays inside root, per the "file:" resource URL scheme's root confinement
// requirement and the resource-error handling for a path outside root.
func ResolveRootedPath(root, rel string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", errors.WithStack(err)
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", errors.WithStack(err)
	}

	joined := filepath.Join(absRoot, rel)
	resolved, err := filepath.Abs(joined)
	if err != nil {
		return "", errors.WithStack(err)
	}

	if resolved != absRoot && !strings.HasPrefix(resolved, absRoot+string(filepath.Separator)) {
		return "", ErrPathOutsideRoot
	}
	return resolved, nil
}

// FileSourceIO reads an outgoing blob from a file opened for random access.
type FileSourceIO struct {
	f    *os.File
	size int64
}

var _ SourceIO = (*FileSourceIO)(nil)

// OpenFileSourceIO opens path (already resolved via ResolveRootedPath) for
// reading.
func OpenFileSourceIO(path string) (*FileSourceIO, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.WithStack(err)
	}
	return &FileSourceIO{f: f, size: info.Size()}, nil
}

// TotalSize returns the file's size as observed at open time.
func (s *FileSourceIO) TotalSize() int64 { return s.size }

// FetchFragment reads dst from offset via pread-style random access.
func (s *FileSourceIO) FetchFragment(offset int64, dst []byte) int64 {
	n, err := s.f.ReadAt(dst, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0
	}
	return int64(n)
}

// Close releases the underlying file handle.
func (s *FileSourceIO) Close() error {
	return s.f.Close()
}

// FileTargetIO writes an incoming blob to a file opened for random-access
// writing, rooted under a configured directory.
type FileTargetIO struct {
	f        *os.File
	onDone   func(wire.MessageID, time.Duration, Info)
	onCancel func()
}

var _ TargetIO = (*FileTargetIO)(nil)

// CreateFileTargetIO creates (or truncates) path (already resolved via
// ResolveRootedPath) for writing.
func CreateFileTargetIO(
	path string,
	onDone func(wire.MessageID, time.Duration, Info),
	onCancel func(),
) (*FileTargetIO, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &FileTargetIO{f: f, onDone: onDone, onCancel: onCancel}, nil
}

// StoreFragment writes data at offset via pwrite-style random access.
func (t *FileTargetIO) StoreFragment(offset int64, data []byte, _ Info) bool {
	_, err := t.f.WriteAt(data, offset)
	return err == nil
}

// CheckStored re-reads offset and compares it against data.
func (t *FileTargetIO) CheckStored(offset int64, data []byte) bool {
	buf := make([]byte, len(data))
	n, err := t.f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	if n != len(data) {
		return false
	}
	for i := range data {
		if buf[i] != data[i] {
			return false
		}
	}
	return true
}

// HandleFinished closes the file and invokes the configured callback.
func (t *FileTargetIO) HandleFinished(msgID wire.MessageID, age time.Duration, info Info) {
	_ = t.f.Close()
	if t.onDone != nil {
		t.onDone(msgID, age, info)
	}
}

// HandleCancelled closes the file and invokes the configured callback.
func (t *FileTargetIO) HandleCancelled() {
	_ = t.f.Close()
	if t.onCancel != nil {
		t.onCancel()
	}
}
