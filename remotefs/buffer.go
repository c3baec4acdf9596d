// Package remotefs provides the building blocks shared by network-backed
// filesystems: a locally buffered file that pulls remote content on
// demand and pushes it back in one piece, a connection manager that
// tracks liveness and reconnects in the background, and a serializable
// descriptor for re-establishing filesystems from stored parameters.
package remotefs

import (
	"bytes"
	"io"
	"sync"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/internal/monitoring"
	"github.com/anyfs/anyfs/vfs"
)

// pullChunk bounds a single read from the remote stream.
const pullChunk = 64 * 1024

// PushFunc uploads the complete buffered contents back to the remote.
type PushFunc func(r io.Reader) error

// Buffer is a file handle backed by a local in-memory copy of a remote
// file. Remote bytes are pulled sequentially and only as far as reads,
// writes, or seeks require; a modified buffer is filled completely and
// pushed in a single call when flushed or closed.
type Buffer struct {
	path string
	mode vfs.Mode

	mu      sync.Mutex
	remote  io.ReadCloser // sequential remote stream, nil once exhausted
	push    PushFunc      // nil for read-only handles
	buf     []byte
	pos     int64
	readlen int64 // bytes of buf mirrored from the remote
	eof     bool  // remote stream fully consumed
	changed bool
	closed  bool

	metrics *monitoring.Metrics
}

// NewBuffer wraps a remote stream in a buffered handle for path.
//
// A truncating write handle discards the remote stream outright, an
// append handle pulls everything and positions at the end, and all other
// modes pull lazily.
func NewBuffer(path string, mode vfs.Mode, remote io.ReadCloser, push PushFunc) (*Buffer, error) {
	b := &Buffer{
		path:    path,
		mode:    mode,
		remote:  remote,
		push:    push,
		metrics: monitoring.Default(),
	}
	switch {
	case mode.Creates():
		// Truncation makes the remote contents irrelevant.
		if remote != nil {
			remote.Close()
		}
		b.remote = nil
		b.eof = true
		b.changed = true
	case mode == vfs.ModeAppend:
		if err := b.fillAll(); err != nil {
			return nil, err
		}
		b.pos = int64(len(b.buf))
	}
	return b, nil
}

// fill pulls remote bytes until at least target bytes are buffered or
// the stream ends. Callers hold b.mu.
func (b *Buffer) fill(target int64) error {
	for b.readlen < target && !b.eof {
		want := target - b.readlen
		if want > pullChunk {
			want = pullChunk
		}
		chunk := make([]byte, want)
		n, err := b.remote.Read(chunk)
		if n > 0 {
			b.buf = append(b.buf[:b.readlen], chunk[:n]...)
			b.readlen += int64(n)
			b.metrics.RemotePullBytes.Add(float64(n))
		}
		b.metrics.RemotePulls.Inc()
		if err == io.EOF {
			b.eof = true
			b.remote.Close()
			b.remote = nil
			return nil
		}
		if err != nil {
			return fserrors.Remote("read", err)
		}
	}
	return nil
}

// fillAll drains the remote stream into the buffer. Callers hold b.mu.
func (b *Buffer) fillAll() error {
	for !b.eof {
		if err := b.fill(b.readlen + pullChunk); err != nil {
			return err
		}
	}
	return nil
}

// Read copies buffered bytes, pulling from the remote as needed.
func (b *Buffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, fserrors.Closed("read")
	}
	if !b.mode.Readable() {
		return 0, fserrors.Unsupported("read")
	}
	if err := b.fill(b.pos + int64(len(p))); err != nil {
		return 0, err
	}
	if b.pos >= int64(len(b.buf)) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.pos:])
	b.pos += int64(n)
	return n, nil
}

// Write stores bytes in the local buffer. Writing beyond the pulled
// region first pulls through the written range so untouched remote
// bytes are preserved.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, fserrors.Closed("write")
	}
	if !b.mode.Writable() {
		return 0, fserrors.Unsupported("write")
	}
	// Pull through the end of the written range first: the remote stream
	// must be consumed past any overwritten bytes, or a later fill would
	// append them over this write.
	end := b.pos + int64(len(p))
	if end > b.readlen && !b.eof {
		if err := b.fill(end); err != nil {
			return 0, err
		}
	}
	if end > int64(len(b.buf)) {
		grown := make([]byte, end)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[b.pos:end], p)
	b.pos = end
	b.changed = true
	return len(p), nil
}

// Seek repositions the handle. Seeking relative to the end pulls the
// whole remote stream since the size is unknown until then.
func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, fserrors.Closed("seek")
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = b.pos + offset
	case io.SeekEnd:
		if err := b.fillAll(); err != nil {
			return 0, err
		}
		pos = int64(len(b.buf)) + offset
	default:
		return 0, fserrors.Invalid(b.path)
	}
	if pos < 0 {
		return 0, fserrors.Invalid(b.path)
	}
	b.pos = pos
	return pos, nil
}

// Truncate resizes the buffered contents.
func (b *Buffer) Truncate(size int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fserrors.Closed("truncate")
	}
	if !b.mode.Writable() {
		return fserrors.Unsupported("truncate")
	}
	if err := b.fillAll(); err != nil {
		return err
	}
	if size <= int64(len(b.buf)) {
		b.buf = b.buf[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, b.buf)
		b.buf = grown
	}
	if b.readlen > size {
		b.readlen = size
	}
	b.changed = true
	return nil
}

// Flush pushes a modified buffer back to the remote. The buffer is
// filled completely first so the push never loses unread remote bytes.
func (b *Buffer) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fserrors.Closed("flush")
	}
	return b.flushLocked()
}

func (b *Buffer) flushLocked() error {
	if !b.changed || b.push == nil {
		return nil
	}
	if err := b.fillAll(); err != nil {
		return err
	}
	if err := b.push(bytes.NewReader(b.buf)); err != nil {
		return fserrors.Remote("flush", err)
	}
	b.metrics.RemotePushes.Inc()
	b.changed = false
	return nil
}

// Close flushes pending changes and releases the remote stream. Closing
// twice is a no-op.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	err := b.flushLocked()
	if b.remote != nil {
		b.remote.Close()
		b.remote = nil
	}
	b.closed = true
	return err
}
