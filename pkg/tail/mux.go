// Package tail follows a set of log files and multiplexes their new lines
// into one channel.
//
// Files are watched through their parent directory, so a file may be
// registered before it exists; the directory itself must exist. A file that
// already exists when it is added is followed from its current end, a file
// created later is read from its first byte. A poll ticker backs up the
// filesystem notifications for filesystems that do not deliver them.
package tail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/modoterra/tailsync/pkg/core"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	defaultBufferSize   = 1024
	readChunk           = 32 * 1024
)

// Mux tails registered files and emits their lines in arrival order.
type Mux struct {
	watcher *fsnotify.Watcher
	files   map[string]*follower // keyed by absolute path
	order   []*follower
	dirs    map[string]struct{}
	lines   chan core.Event
	poll    time.Duration
	mu      sync.Mutex
	once    sync.Once
	logger  *slog.Logger
}

// Option configures a Mux.
type Option func(*Mux)

// WithPollInterval sets how often files are re-read without a notification.
func WithPollInterval(d time.Duration) Option {
	return func(m *Mux) {
		if d > 0 {
			m.poll = d
		}
	}
}

// WithBufferSize sets the capacity of the Lines channel.
func WithBufferSize(n int) Option {
	return func(m *Mux) {
		if n >= 0 {
			m.lines = make(chan core.Event, n)
		}
	}
}

// New creates a multiplexer with no files registered.
func New(logger *slog.Logger, opts ...Option) (*Mux, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	m := &Mux{
		watcher: w,
		files:   make(map[string]*follower),
		dirs:    make(map[string]struct{}),
		lines:   make(chan core.Event, defaultBufferSize),
		poll:    defaultPollInterval,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Add registers path. The emitted source identifier is path exactly as given.
// Adding the same path again is a no-op; adding another spelling of a file
// that is already followed fails with core.ErrDuplicateSource.
func (m *Mux) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.files[abs]; ok {
		if f.source != path {
			return fmt.Errorf("%w: %s is the same file as %s", core.ErrDuplicateSource, path, f.source)
		}
		return nil
	}

	dir := filepath.Dir(abs)
	if _, ok := m.dirs[dir]; !ok {
		if err := m.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		m.dirs[dir] = struct{}{}
	}

	f := &follower{source: path, path: abs}
	if err := f.openAtEnd(); err != nil {
		return err
	}
	m.files[abs] = f
	m.order = append(m.order, f)
	m.logger.Info("tailing file", "path", path, "exists", f.file != nil)
	return nil
}

// Lines returns the multiplexed line stream.
func (m *Mux) Lines() <-chan core.Event {
	return m.lines
}

// Run follows the registered files until ctx is cancelled, then releases
// every open file and closes the Lines channel.
func (m *Mux) Run(ctx context.Context) error {
	defer close(m.lines)
	defer m.Close()

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			m.handle(ctx, evt)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("watch error", "err", err)
		case <-ticker.C:
			m.readAll(ctx)
		}
	}
}

func (m *Mux) handle(ctx context.Context, evt fsnotify.Event) {
	m.mu.Lock()
	f, ok := m.files[filepath.Clean(evt.Name)]
	m.mu.Unlock()
	if !ok {
		return
	}

	switch {
	case evt.Has(fsnotify.Remove), evt.Has(fsnotify.Rename):
		// Drain whatever was written before the file went away.
		m.read(ctx, f)
		f.release()
	case evt.Has(fsnotify.Create), evt.Has(fsnotify.Write):
		m.read(ctx, f)
	}
}

func (m *Mux) readAll(ctx context.Context) {
	m.mu.Lock()
	followers := make([]*follower, len(m.order))
	copy(followers, m.order)
	m.mu.Unlock()

	for _, f := range followers {
		m.read(ctx, f)
	}
}

// read emits every new complete line of f. Read errors are logged and the
// read is retried on the next notification or tick.
func (m *Mux) read(ctx context.Context, f *follower) {
	lines, err := f.readLines()
	if err != nil {
		m.logger.Warn("read failed", "path", f.source, "err", err)
	}
	for _, line := range lines {
		select {
		case m.lines <- core.Event{Source: f.source, Line: line}:
		case <-ctx.Done():
			return
		}
	}
}

// Close releases the watcher and every open file. Run calls it on exit; it
// only needs calling directly when Run was never started.
func (m *Mux) Close() error {
	var err error
	m.once.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, f := range m.order {
			f.release()
		}
		err = m.watcher.Close()
	})
	return err
}

// follower tracks one file and the unterminated tail of its last read.
type follower struct {
	source  string
	path    string
	file    *os.File
	partial []byte
}

// openAtEnd opens an existing file positioned at its end. A missing file is
// not an error; it will be opened from its start once it appears.
func (f *follower) openAtEnd() error {
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return fmt.Errorf("seek %s: %w", f.path, err)
	}
	f.file = file
	return nil
}

// readLines returns every complete line appended since the last call.
func (f *follower) readLines() ([]string, error) {
	if f.file == nil {
		file, err := os.Open(f.path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, nil
			}
			return nil, fmt.Errorf("open %s: %w", f.path, err)
		}
		f.file = file
	}

	var lines []string
	buf := make([]byte, readChunk)
	for {
		n, err := f.file.Read(buf)
		if n > 0 {
			f.partial = append(f.partial, buf[:n]...)
			lines = f.splitLines(lines)
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return lines, fmt.Errorf("read %s: %w", f.path, err)
		}
	}
}

func (f *follower) splitLines(lines []string) []string {
	for {
		i := bytes.IndexByte(f.partial, '\n')
		if i < 0 {
			return lines
		}
		line := bytes.TrimSuffix(f.partial[:i], []byte{'\r'})
		lines = append(lines, string(line))
		f.partial = f.partial[i+1:]
	}
}

func (f *follower) release() {
	if f.file != nil {
		f.file.Close()
		f.file = nil
	}
	f.partial = nil
}
