// Package cachefs memoizes metadata-bearing operations of any filesystem
// behind a path-keyed, time-bounded cache.
//
// Existence and type queries, listings, metadata and extended-attribute
// reads are cached; captured failures are cached too and re-raised on hit.
// Every mutating operation performs the real work first and then
// invalidates the affected path, its whole subtree, and the metadata and
// listing entries of every ancestor up to the root, since aggregate information
// like directory sizes can go stale anywhere up the chain, not just at the
// mutated node.
package cachefs

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/anyfs/anyfs/fspath"
	"github.com/anyfs/anyfs/internal/monitoring"
	"github.com/anyfs/anyfs/vfs"
	"github.com/anyfs/anyfs/wrapfs"
)

// FS is the caching overlay.
type FS struct {
	*wrapfs.FS

	// timeout bounds entry lifetime; zero keeps entries until explicitly
	// invalidated.
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]map[string]entry // path -> op key -> entry

	metrics *monitoring.Metrics
}

type entry struct {
	at    time.Time
	value any
	err   error
}

// Option configures the overlay.
type Option func(*FS)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *FS) { c.now = now }
}

// New wraps inner with a metadata cache whose entries expire after
// timeout. A zero timeout disables expiry.
func New(inner vfs.FS, timeout time.Duration, opts ...Option) *FS {
	c := &FS{
		FS:      wrapfs.New(inner),
		timeout: timeout,
		now:     time.Now,
		entries: make(map[string]map[string]entry),
		metrics: monitoring.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *FS) opKey(op string, args ...any) string {
	if len(args) == 0 {
		return op
	}
	return op + "|" + fmt.Sprint(args...)
}

// get returns a live cache entry, expiring stale ones on sight.
func (c *FS) get(path, key string) (entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ops, ok := c.entries[path]
	if !ok {
		return entry{}, false
	}
	e, ok := ops[key]
	if !ok {
		return entry{}, false
	}
	if c.timeout > 0 && c.now().Sub(e.at) > c.timeout {
		delete(ops, key)
		return entry{}, false
	}
	return e, true
}

func (c *FS) put(path, key string, value any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ops, ok := c.entries[path]
	if !ok {
		ops = make(map[string]entry)
		c.entries[path] = ops
	}
	ops[key] = entry{at: c.now(), value: value, err: err}
}

// ancestor entries dropped on every invalidation: aggregate metadata and
// listings can be stale anywhere up the chain.
var ancestorOps = []string{"getinfo", "listdir", "listdirinfo"}

// invalidate drops everything cached for path and its subtree, plus
// metadata and listing entries for every ancestor up to the root.
func (c *FS) invalidate(path string) {
	p, err := fspath.Abs(path)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.CacheInvalidations.Inc()
	for cached := range c.entries {
		if cached == p || strings.HasPrefix(cached, p+"/") {
			delete(c.entries, cached)
		}
	}
	ancestors, err := fspath.Ancestors(fspath.Dir(p))
	if err != nil {
		return
	}
	for _, anc := range ancestors {
		ops, ok := c.entries[anc]
		if !ok {
			continue
		}
		for key := range ops {
			for _, op := range ancestorOps {
				if key == op || strings.HasPrefix(key, op+"|") {
					delete(ops, key)
					break
				}
			}
		}
	}
}

// cached runs fn through the cache for (path, key), replaying captured
// failures on hit.
func cached[T any](c *FS, op, path, key string, fn func() (T, error)) (T, error) {
	p, err := fspath.Abs(path)
	if err != nil {
		var zero T
		return zero, err
	}
	if e, ok := c.get(p, key); ok {
		c.metrics.CacheHits.WithLabelValues(op).Inc()
		if e.err != nil {
			var zero T
			return zero, e.err
		}
		return e.value.(T), nil
	}
	c.metrics.CacheMisses.WithLabelValues(op).Inc()
	v, err := fn()
	c.put(p, key, v, err)
	return v, err
}

// Exists reports existence through the cache.
func (c *FS) Exists(path string) (bool, error) {
	return cached(c, "exists", path, "exists", func() (bool, error) {
		return c.FS.Exists(path)
	})
}

// IsDir reports directory-ness through the cache.
func (c *FS) IsDir(path string) (bool, error) {
	return cached(c, "isdir", path, "isdir", func() (bool, error) {
		return c.FS.IsDir(path)
	})
}

// IsFile reports file-ness through the cache.
func (c *FS) IsFile(path string) (bool, error) {
	return cached(c, "isfile", path, "isfile", func() (bool, error) {
		return c.FS.IsFile(path)
	})
}

// ListDir lists through the cache, keyed by the full option set.
func (c *FS) ListDir(path string, opts vfs.ListOptions) ([]string, error) {
	return cached(c, "listdir", path, c.opKey("listdir", opts), func() ([]string, error) {
		return c.FS.ListDir(path, opts)
	})
}

// ListDirInfo lists metadata through the cache.
func (c *FS) ListDirInfo(path string, opts vfs.ListOptions) ([]vfs.Info, error) {
	return cached(c, "listdirinfo", path, c.opKey("listdirinfo", opts), func() ([]vfs.Info, error) {
		return c.FS.ListDirInfo(path, opts)
	})
}

// GetInfo returns metadata through the cache.
func (c *FS) GetInfo(path string) (vfs.Info, error) {
	return cached(c, "getinfo", path, "getinfo", func() (vfs.Info, error) {
		return c.FS.GetInfo(path)
	})
}

// GetXAttr reads an extended attribute through the cache.
func (c *FS) GetXAttr(path, name string) (string, error) {
	return cached(c, "getxattr", path, c.opKey("getxattr", name), func() (string, error) {
		return c.FS.GetXAttr(path, name)
	})
}

// ListXAttrs lists extended attributes through the cache.
func (c *FS) ListXAttrs(path string) ([]string, error) {
	return cached(c, "listxattrs", path, "listxattrs", func() ([]string, error) {
		return c.FS.ListXAttrs(path)
	})
}

// Open passes through; writable modes invalidate the path since the
// handle can mutate contents after the call returns.
func (c *FS) Open(path string, mode vfs.Mode) (vfs.File, error) {
	f, err := c.FS.Open(path, mode)
	if err != nil {
		return nil, err
	}
	c.invalidate(path)
	return f, nil
}

// SetContents writes through and invalidates.
func (c *FS) SetContents(path string, r io.Reader) error {
	if err := c.FS.SetContents(path, r); err != nil {
		return err
	}
	c.invalidate(path)
	return nil
}

// MakeDir creates through and invalidates.
func (c *FS) MakeDir(path string, opts vfs.MakeDirOptions) error {
	if err := c.FS.MakeDir(path, opts); err != nil {
		return err
	}
	c.invalidate(path)
	return nil
}

// Remove deletes through and invalidates.
func (c *FS) Remove(path string) error {
	if err := c.FS.Remove(path); err != nil {
		return err
	}
	c.invalidate(path)
	return nil
}

// RemoveDir deletes through and invalidates.
func (c *FS) RemoveDir(path string, opts vfs.RemoveDirOptions) error {
	if err := c.FS.RemoveDir(path, opts); err != nil {
		return err
	}
	c.invalidate(path)
	return nil
}

// Rename renames through and invalidates both paths.
func (c *FS) Rename(src, dst string) error {
	if err := c.FS.Rename(src, dst); err != nil {
		return err
	}
	c.invalidate(src)
	c.invalidate(dst)
	return nil
}

// SetXAttr writes through and invalidates.
func (c *FS) SetXAttr(path, name, value string) error {
	if err := c.FS.SetXAttr(path, name, value); err != nil {
		return err
	}
	c.invalidate(path)
	return nil
}

// DelXAttr deletes through and invalidates.
func (c *FS) DelXAttr(path, name string) error {
	if err := c.FS.DelXAttr(path, name); err != nil {
		return err
	}
	c.invalidate(path)
	return nil
}

// SetTimes stamps through and invalidates.
func (c *FS) SetTimes(path string, accessed, modified time.Time) error {
	if err := c.FS.SetTimes(path, accessed, modified); err != nil {
		return err
	}
	c.invalidate(path)
	return nil
}

// Flush drops every cache entry.
func (c *FS) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]map[string]entry)
}
