package aof

import (
	"bufio"
	"os"
	"sync"
	"time"

	"github.com/pkvartsianyi/spatio/pkg/config"
	"github.com/pkvartsianyi/spatio/pkg/errors"
)

// Writer appends commands to the AOF under a configurable sync policy.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
	cfg    config.Config

	framesSinceSync int
	size            int64

	done   chan struct{}
	ticker *time.Ticker
	closed bool
}

// NewWriter opens (creating if necessary) the AOF file at path in
// append-only mode. The writer's size counter starts from whatever bytes
// already exist at path, so a rewrite threshold stays meaningful across a
// close/reopen.
func NewWriter(path string, cfg config.Config) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, &errors.IOError{Op: "open aof", Err: err}
	}

	var size int64
	if info, statErr := f.Stat(); statErr == nil {
		size = info.Size()
	}

	w := &Writer{
		file:   f,
		writer: bufio.NewWriterSize(f, max(cfg.PersistenceBufferSize, 4096)),
		path:   path,
		cfg:    cfg,
		size:   size,
		done:   make(chan struct{}),
	}

	if cfg.SyncPolicy == config.SyncEverySecond {
		interval := cfg.SyncIntervalDuration
		if interval <= 0 {
			interval = time.Second
		}
		w.ticker = time.NewTicker(interval)
		go w.backgroundSync()
	}

	return w, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Append writes one command as a frame and applies the configured sync
// policy.
func (w *Writer) Append(c Command) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return &errors.DatabaseClosedError{}
	}

	n, err := writeFrame(w.writer, c)
	if err != nil {
		return &errors.IOError{Op: "aof append", Err: err}
	}
	w.size += n

	w.framesSinceSync++

	switch w.cfg.SyncPolicy {
	case config.SyncAlways:
		batch := w.cfg.SyncBatchSize
		if batch < 1 {
			batch = 1
		}
		if w.framesSinceSync >= batch {
			return w.syncLocked()
		}
	}

	return nil
}

// AppendBatch writes a sequence of commands as one contiguous block before
// applying the configured sync policy once, so an atomic batch's commands
// persist as a unit.
func (w *Writer) AppendBatch(cmds []Command) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return &errors.DatabaseClosedError{}
	}

	for _, c := range cmds {
		n, err := writeFrame(w.writer, c)
		if err != nil {
			return &errors.IOError{Op: "aof append batch", Err: err}
		}
		w.size += n
	}

	w.framesSinceSync += len(cmds)

	switch w.cfg.SyncPolicy {
	case config.SyncAlways:
		batch := w.cfg.SyncBatchSize
		if batch < 1 {
			batch = 1
		}
		if w.framesSinceSync >= batch {
			return w.syncLocked()
		}
	}

	return nil
}

// Sync forces the buffered frames to stable storage regardless of policy.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *Writer) syncLocked() error {
	if err := w.writer.Flush(); err != nil {
		return &errors.IOError{Op: "aof flush", Err: err}
	}
	if w.cfg.SyncMode == config.SyncModeData {
		if err := fdatasync(w.file); err != nil {
			return &errors.IOError{Op: "aof fdatasync", Err: err}
		}
	} else {
		if err := w.file.Sync(); err != nil {
			return &errors.IOError{Op: "aof fsync", Err: err}
		}
	}
	w.framesSinceSync = 0
	return nil
}

// Path returns the AOF's file path, used by the snapshot/rewrite
// coordination in pkg/engine.
func (w *Writer) Path() string {
	return w.path
}

// Size returns the number of bytes written to the AOF so far, including
// whatever was already on disk when the writer was opened. Engine compares
// this against config.RewriteThresholdBytes to decide when to rewrite.
func (w *Writer) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Close flushes and fsyncs a final time, then closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.ticker != nil {
		w.ticker.Stop()
		close(w.done)
	}

	if err := w.syncLocked(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *Writer) backgroundSync() {
	for {
		select {
		case <-w.ticker.C:
			w.Sync()
		case <-w.done:
			return
		}
	}
}
