package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// RotatingWriter is an io.Writer over a log file with size-based
// rotation: codeindex.log rolls to codeindex.log.1, .1 to .2, and so on
// up to maxFiles, after which the oldest is deleted.
type RotatingWriter struct {
	path     string
	maxSize  int64
	maxFiles int

	mu            sync.Mutex
	file          *os.File
	written       int64
	immediateSync bool
}

// NewRotatingWriter opens (or creates) the log file at path, rotating
// once it exceeds maxSizeMB and keeping at most maxFiles rotated copies.
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	w := &RotatingWriter{
		path:     path,
		maxSize:  int64(maxSizeMB) * 1024 * 1024,
		maxFiles: maxFiles,
		// On by default so a concurrent follow sees lines immediately.
		immediateSync: true,
	}
	if err := w.openFile(); err != nil {
		return nil, err
	}
	return w, nil
}

// SetImmediateSync toggles the per-write fsync. Disabling it trades
// follow-latency for throughput.
func (w *RotatingWriter) SetImmediateSync(enabled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.immediateSync = enabled
}

// Write appends p, rotating first when the write would cross the size
// limit. A failed rotation falls back to appending to the current file
// so no log line is ever dropped.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.written+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}

	n, err := w.file.Write(p)
	w.written += int64(n)
	if w.immediateSync && err == nil {
		_ = w.file.Sync()
	}
	return n, err
}

// Sync flushes the current file to disk.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close closes the underlying file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}

func (w *RotatingWriter) openFile() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file = f
	w.written = info.Size()
	return nil
}

// rotate shifts every numbered copy up by one, renames the live file to
// .1, and reopens a fresh file. Copies at or past maxFiles are removed
// instead of shifted.
func (w *RotatingWriter) rotate() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
		w.file = nil
	}

	for n := w.highestRotatedIndex(); n >= 1; n-- {
		src := w.path + "." + strconv.Itoa(n)
		if n >= w.maxFiles {
			_ = os.Remove(src)
			continue
		}
		_ = os.Rename(src, w.path+"."+strconv.Itoa(n+1))
	}

	if _, err := os.Stat(w.path); err == nil {
		if err := os.Rename(w.path, w.path+".1"); err != nil {
			return fmt.Errorf("rotate log file: %w", err)
		}
	}

	w.written = 0
	return w.openFile()
}

// highestRotatedIndex finds the largest N among existing path.N copies.
func (w *RotatingWriter) highestRotatedIndex() int {
	matches, err := filepath.Glob(w.path + ".*")
	if err != nil {
		return 0
	}
	highest := 0
	prefix := filepath.Base(w.path) + "."
	for _, m := range matches {
		n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(m), prefix))
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}
