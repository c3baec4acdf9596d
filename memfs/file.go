package memfs

import (
	"io"
	"sync"
	"time"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/vfs"
)

// file is a handle onto a file node. It reads and writes the node's shared
// byte buffer directly; there is no buffering indirection since the whole
// backend is memory-resident.
type file struct {
	fs   *FS
	node *node
	data *fileData
	mode vfs.Mode

	mu     sync.Mutex
	pos    int64
	closed bool
}

func (f *file) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, fserrors.Closed("read")
	}
	if !f.mode.Readable() {
		return 0, fserrors.Unsupported("read")
	}
	f.data.mu.Lock()
	defer f.data.mu.Unlock()
	if f.pos >= int64(len(f.data.bytes)) {
		return 0, io.EOF
	}
	n := copy(p, f.data.bytes[f.pos:])
	f.pos += int64(n)
	f.node.accessed = time.Now()
	return n, nil
}

func (f *file) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, fserrors.Closed("write")
	}
	if !f.mode.Writable() {
		return 0, fserrors.Unsupported("write")
	}
	f.data.mu.Lock()
	defer f.data.mu.Unlock()
	end := f.pos + int64(len(p))
	if end > int64(len(f.data.bytes)) {
		grown := make([]byte, end)
		copy(grown, f.data.bytes)
		f.data.bytes = grown
	}
	copy(f.data.bytes[f.pos:end], p)
	f.pos = end
	f.node.modified = time.Now()
	return len(p), nil
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, fserrors.Closed("seek")
	}
	f.data.mu.Lock()
	size := int64(len(f.data.bytes))
	f.data.mu.Unlock()
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = f.pos + offset
	case io.SeekEnd:
		next = size + offset
	default:
		return 0, fserrors.Invalid("seek")
	}
	if next < 0 {
		return 0, fserrors.Invalid("seek")
	}
	f.pos = next
	return next, nil
}

func (f *file) Truncate(size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fserrors.Closed("truncate")
	}
	if !f.mode.Writable() {
		return fserrors.Unsupported("truncate")
	}
	if size < 0 {
		return fserrors.Invalid("truncate")
	}
	f.data.mu.Lock()
	defer f.data.mu.Unlock()
	if size <= int64(len(f.data.bytes)) {
		f.data.bytes = f.data.bytes[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, f.data.bytes)
		f.data.bytes = grown
	}
	f.node.modified = time.Now()
	return nil
}

// Close is idempotent.
func (f *file) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
