// Package testutil holds shared test fixtures: an operation-counting
// wrapper for asserting how often a backend is touched, and a mockable
// remote content store for exercising buffered remote files.
package testutil

import (
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/anyfs/anyfs/vfs"
	"github.com/anyfs/anyfs/wrapfs"
)

// CountingFS records how many times each operation reaches the wrapped
// backend.
type CountingFS struct {
	*wrapfs.FS

	mu     sync.Mutex
	counts map[string]int
}

// NewCounting wraps inner with operation counting.
func NewCounting(inner vfs.FS) *CountingFS {
	return &CountingFS{
		FS:     wrapfs.New(inner),
		counts: make(map[string]int),
	}
}

// Count reports how many times op reached the backend.
func (c *CountingFS) Count(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[op]
}

// Reset clears all counters.
func (c *CountingFS) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[string]int)
}

func (c *CountingFS) bump(op string) {
	c.mu.Lock()
	c.counts[op]++
	c.mu.Unlock()
}

func (c *CountingFS) Open(path string, mode vfs.Mode) (vfs.File, error) {
	c.bump("open")
	return c.FS.Open(path, mode)
}

func (c *CountingFS) Exists(path string) (bool, error) {
	c.bump("exists")
	return c.FS.Exists(path)
}

func (c *CountingFS) IsDir(path string) (bool, error) {
	c.bump("isdir")
	return c.FS.IsDir(path)
}

func (c *CountingFS) IsFile(path string) (bool, error) {
	c.bump("isfile")
	return c.FS.IsFile(path)
}

func (c *CountingFS) ListDir(path string, opts vfs.ListOptions) ([]string, error) {
	c.bump("listdir")
	return c.FS.ListDir(path, opts)
}

func (c *CountingFS) ListDirInfo(path string, opts vfs.ListOptions) ([]vfs.Info, error) {
	c.bump("listdirinfo")
	return c.FS.ListDirInfo(path, opts)
}

func (c *CountingFS) MakeDir(path string, opts vfs.MakeDirOptions) error {
	c.bump("makedir")
	return c.FS.MakeDir(path, opts)
}

func (c *CountingFS) Remove(path string) error {
	c.bump("remove")
	return c.FS.Remove(path)
}

func (c *CountingFS) RemoveDir(path string, opts vfs.RemoveDirOptions) error {
	c.bump("removedir")
	return c.FS.RemoveDir(path, opts)
}

func (c *CountingFS) Rename(src, dst string) error {
	c.bump("rename")
	return c.FS.Rename(src, dst)
}

func (c *CountingFS) GetInfo(path string) (vfs.Info, error) {
	c.bump("getinfo")
	return c.FS.GetInfo(path)
}

func (c *CountingFS) SetContents(path string, r io.Reader) error {
	c.bump("setcontents")
	return c.FS.SetContents(path, r)
}

// MockStore is a testify mock of a remote content endpoint. Fetch hands
// back the bytes a buffered file pulls; Store receives a pushed upload.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Fetch(path string) ([]byte, error) {
	args := m.Called(path)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockStore) Store(path string, data []byte) error {
	args := m.Called(path, data)
	return args.Error(0)
}

// chunkReader yields remote bytes in bounded chunks and counts reads,
// letting tests observe demand-driven pulling.
type chunkReader struct {
	data   []byte
	pos    int
	chunk  int
	reads  *int
	closed bool
}

// NewChunkReader wraps data in a reader returning at most chunk bytes
// per call, incrementing reads on each call.
func NewChunkReader(data []byte, chunk int, reads *int) io.ReadCloser {
	return &chunkReader{data: data, chunk: chunk, reads: reads}
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.reads != nil {
		*r.reads++
	}
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := len(p)
	if n > r.chunk {
		n = r.chunk
	}
	n = copy(p[:n], r.data[r.pos:])
	r.pos += n
	if r.pos >= len(r.data) {
		return n, io.EOF
	}
	return n, nil
}

func (r *chunkReader) Close() error {
	r.closed = true
	return nil
}
