// Package memfs implements the filesystem contract over an in-memory tree
// of directory and file nodes.
//
// The whole tree lives behind a single lock guarding structural mutation,
// so multi-step operations (directory moves, forced removals) are observed
// atomically by concurrent readers. No I/O happens inside the lock. A
// handle returned by Open shares the node's byte buffer until Close, so
// concurrent writers to the same file race at byte granularity; that is a
// documented property of the backend, not a defect to paper over.
package memfs

import (
	"io"
	"sync"
	"time"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/fspath"
	"github.com/anyfs/anyfs/vfs"
)

// Config controls construction.
type Config struct {
	// ExclusiveAccess declares single-threaded use, skipping internal
	// locking. Leave false for shared use.
	ExclusiveAccess bool
}

// FS is an in-memory filesystem. The zero value is not usable; construct
// with New.
type FS struct {
	cfg    Config
	mu     sync.RWMutex
	root   *node
	meta   vfs.Meta
	closed bool
}

type node struct {
	name     string
	dir      bool
	children map[string]*node // directories only
	data     *fileData        // files only
	created  time.Time
	accessed time.Time
	modified time.Time
	xattrs   map[string]string
}

// fileData is the shared byte buffer referenced by a file node and every
// open handle on it.
type fileData struct {
	mu    sync.Mutex
	bytes []byte
}

func newDirNode(name string) *node {
	now := time.Now()
	return &node{
		name:     name,
		dir:      true,
		children: make(map[string]*node),
		created:  now,
		accessed: now,
		modified: now,
	}
}

func newFileNode(name string, content []byte) *node {
	now := time.Now()
	return &node{
		name:     name,
		data:     &fileData{bytes: content},
		created:  now,
		accessed: now,
		modified: now,
	}
}

// New constructs an empty in-memory filesystem.
func New() *FS { return NewWithConfig(Config{}) }

// NewWithConfig constructs an empty in-memory filesystem with explicit
// concurrency configuration.
func NewWithConfig(cfg Config) *FS {
	return &FS{
		cfg:  cfg,
		root: newDirNode(""),
		meta: vfs.Meta{
			vfs.MetaReadOnly:             false,
			vfs.MetaNetwork:              false,
			vfs.MetaUnicodePaths:         true,
			vfs.MetaCaseInsensitivePaths: false,
			vfs.MetaAtomicMakeDir:        true,
			vfs.MetaAtomicRename:         true,
			vfs.MetaAtomicSetContents:    true,
		},
	}
}

func (m *FS) lock() {
	if !m.cfg.ExclusiveAccess {
		m.mu.Lock()
	}
}

func (m *FS) unlock() {
	if !m.cfg.ExclusiveAccess {
		m.mu.Unlock()
	}
}

func (m *FS) rlock() {
	if !m.cfg.ExclusiveAccess {
		m.mu.RLock()
	}
}

func (m *FS) runlock() {
	if !m.cfg.ExclusiveAccess {
		m.mu.RUnlock()
	}
}

// resolve walks the tree to the node at path. Lock must be held. Returns
// nil when any segment is missing or crosses a file.
func (m *FS) resolve(path string) *node {
	segs, err := fspath.Segments(path)
	if err != nil {
		return nil
	}
	current := m.root
	for _, seg := range segs {
		if !current.dir {
			return nil
		}
		child, ok := current.children[seg]
		if !ok {
			return nil
		}
		current = child
	}
	return current
}

// parentOf resolves the parent directory of path and the final segment
// name. Lock must be held.
func (m *FS) parentOf(path string) (*node, string, error) {
	parent, name := fspath.Split(path)
	if name == "" {
		return nil, "", fserrors.Invalid(path)
	}
	p := m.resolve(parent)
	if p == nil || !p.dir {
		return nil, "", fserrors.ParentMissing(path)
	}
	return p, name, nil
}

func (m *FS) checkOpen(op string) error {
	if m.closed {
		return fserrors.Closed(op)
	}
	return nil
}

func abs(path string) (string, error) {
	return fspath.Abs(path)
}

// Open opens the file at path. ModeWrite creates a missing file but never
// missing parents; ModeRead, ModeAppend and ModeReadWrite require the file
// to exist.
func (m *FS) Open(path string, mode vfs.Mode) (vfs.File, error) {
	p, err := abs(path)
	if err != nil {
		return nil, err
	}
	m.lock()
	defer m.unlock()
	if err := m.checkOpen("open"); err != nil {
		return nil, err
	}
	n := m.resolve(p)
	if n != nil && n.dir {
		return nil, fserrors.Invalid(p)
	}
	if n == nil {
		if !mode.Creates() {
			return nil, fserrors.NotFound(p)
		}
		parent, name, err := m.parentOf(p)
		if err != nil {
			return nil, err
		}
		n = newFileNode(name, nil)
		parent.children[name] = n
		parent.modified = time.Now()
	} else if mode == vfs.ModeWrite {
		n.data.mu.Lock()
		n.data.bytes = n.data.bytes[:0]
		n.data.mu.Unlock()
		n.modified = time.Now()
	}
	n.accessed = time.Now()
	f := &file{fs: m, node: n, data: n.data, mode: mode}
	if mode == vfs.ModeAppend {
		n.data.mu.Lock()
		f.pos = int64(len(n.data.bytes))
		n.data.mu.Unlock()
	}
	return f, nil
}

// Exists reports whether an entry exists at path.
func (m *FS) Exists(path string) (bool, error) {
	p, err := abs(path)
	if err != nil {
		return false, err
	}
	m.rlock()
	defer m.runlock()
	if err := m.checkOpen("exists"); err != nil {
		return false, err
	}
	return m.resolve(p) != nil, nil
}

// IsDir reports whether path names a directory.
func (m *FS) IsDir(path string) (bool, error) {
	p, err := abs(path)
	if err != nil {
		return false, err
	}
	m.rlock()
	defer m.runlock()
	if err := m.checkOpen("isdir"); err != nil {
		return false, err
	}
	n := m.resolve(p)
	return n != nil && n.dir, nil
}

// IsFile reports whether path names a file.
func (m *FS) IsFile(path string) (bool, error) {
	p, err := abs(path)
	if err != nil {
		return false, err
	}
	m.rlock()
	defer m.runlock()
	if err := m.checkOpen("isfile"); err != nil {
		return false, err
	}
	n := m.resolve(p)
	return n != nil && !n.dir, nil
}

func (m *FS) infoOf(n *node, dir string) vfs.Info {
	info := vfs.Info{
		Name:     n.name,
		Size:     0,
		IsDir:    n.dir,
		Created:  n.created,
		Accessed: n.accessed,
		Modified: n.modified,
	}
	info.Path, _ = fspath.Join(dir, n.name)
	if !n.dir {
		n.data.mu.Lock()
		info.Size = int64(len(n.data.bytes))
		n.data.mu.Unlock()
	}
	return info
}

func (m *FS) listEntries(p string) ([]vfs.Info, error) {
	n := m.resolve(p)
	if n == nil {
		return nil, fserrors.NotFound(p)
	}
	if !n.dir {
		return nil, fserrors.Invalid(p)
	}
	entries := make([]vfs.Info, 0, len(n.children))
	for _, child := range n.children {
		entries = append(entries, m.infoOf(child, p))
	}
	return entries, nil
}

// ListDir lists the names of entries in the directory at path.
func (m *FS) ListDir(path string, opts vfs.ListOptions) ([]string, error) {
	infos, err := m.ListDirInfo(path, opts)
	if err != nil {
		return nil, err
	}
	p, err := abs(path)
	if err != nil {
		return nil, err
	}
	return vfs.RenderNames(p, infos, opts)
}

// ListDirInfo lists metadata for the entries in the directory at path.
func (m *FS) ListDirInfo(path string, opts vfs.ListOptions) ([]vfs.Info, error) {
	p, err := abs(path)
	if err != nil {
		return nil, err
	}
	m.rlock()
	defer m.runlock()
	if err := m.checkOpen("listdir"); err != nil {
		return nil, err
	}
	entries, err := m.listEntries(p)
	if err != nil {
		return nil, err
	}
	return vfs.FilterEntries(entries, opts)
}

// MakeDir creates a directory at path.
func (m *FS) MakeDir(path string, opts vfs.MakeDirOptions) error {
	p, err := abs(path)
	if err != nil {
		return err
	}
	m.lock()
	defer m.unlock()
	if err := m.checkOpen("makedir"); err != nil {
		return err
	}
	if p == "/" {
		if opts.AllowRecreate {
			return nil
		}
		return fserrors.Exists(p)
	}
	segs, err := fspath.Segments(p)
	if err != nil {
		return err
	}
	current := m.root
	for i, seg := range segs {
		last := i == len(segs)-1
		child, ok := current.children[seg]
		switch {
		case ok && child.dir && last:
			if !opts.AllowRecreate {
				return fserrors.Exists(p)
			}
			return nil
		case ok && child.dir:
			current = child
		case ok:
			// A file blocks the path.
			return fserrors.Invalid(p)
		case last || opts.Recursive:
			next := newDirNode(seg)
			current.children[seg] = next
			current.modified = time.Now()
			current = next
		default:
			return fserrors.ParentMissing(p)
		}
	}
	return nil
}

// Remove deletes the file at path.
func (m *FS) Remove(path string) error {
	p, err := abs(path)
	if err != nil {
		return err
	}
	m.lock()
	defer m.unlock()
	if err := m.checkOpen("remove"); err != nil {
		return err
	}
	n := m.resolve(p)
	if n == nil {
		return fserrors.NotFound(p)
	}
	if n.dir {
		return fserrors.Invalid(p)
	}
	parent, name, err := m.parentOf(p)
	if err != nil {
		return err
	}
	delete(parent.children, name)
	parent.modified = time.Now()
	return nil
}

// RemoveDir deletes the directory at path. The root is never removed.
func (m *FS) RemoveDir(path string, opts vfs.RemoveDirOptions) error {
	p, err := abs(path)
	if err != nil {
		return err
	}
	m.lock()
	defer m.unlock()
	if err := m.checkOpen("removedir"); err != nil {
		return err
	}
	if p == "/" {
		return fserrors.Invalid(p)
	}
	n := m.resolve(p)
	if n == nil {
		return fserrors.NotFound(p)
	}
	if !n.dir {
		return fserrors.Invalid(p)
	}
	if len(n.children) > 0 && !opts.Force {
		return fserrors.NotEmpty(p)
	}
	parent, name, err := m.parentOf(p)
	if err != nil {
		return err
	}
	delete(parent.children, name)
	parent.modified = time.Now()
	if opts.Recursive {
		// Prune newly empty ancestors, never the root.
		ancestors, err := fspath.Ancestors(fspath.Dir(p))
		if err != nil {
			return err
		}
		for i := len(ancestors) - 1; i > 0; i-- {
			dir := m.resolve(ancestors[i])
			if dir == nil || !dir.dir || len(dir.children) > 0 {
				break
			}
			gp, gname, err := m.parentOf(ancestors[i])
			if err != nil {
				break
			}
			delete(gp.children, gname)
			gp.modified = time.Now()
		}
	}
	return nil
}

// Rename changes the name of the entry at src to dst's final segment. Both
// paths must reference the same parent directory.
func (m *FS) Rename(src, dst string) error {
	s, err := abs(src)
	if err != nil {
		return err
	}
	d, err := abs(dst)
	if err != nil {
		return err
	}
	if !fspath.SameDir(s, d) {
		return &fserrors.Error{Kind: fserrors.KindInvalid, Op: "rename", Path: s, Path2: d, Msg: "rename cannot cross directories"}
	}
	m.lock()
	defer m.unlock()
	if err := m.checkOpen("rename"); err != nil {
		return err
	}
	return m.relocate(s, d, false)
}

// MoveNative atomically relocates src to dst under the tree lock.
func (m *FS) MoveNative(src, dst string, overwrite bool) error {
	s, err := abs(src)
	if err != nil {
		return err
	}
	d, err := abs(dst)
	if err != nil {
		return err
	}
	m.lock()
	defer m.unlock()
	if err := m.checkOpen("move"); err != nil {
		return err
	}
	return m.relocate(s, d, overwrite)
}

// relocate detaches the node at src and reattaches it at dst. Lock must be
// held.
func (m *FS) relocate(src, dst string, overwrite bool) error {
	n := m.resolve(src)
	if n == nil {
		return fserrors.NotFound(src)
	}
	if n.dir && fspath.IsPrefix(src, dst) {
		return &fserrors.Error{Kind: fserrors.KindInvalid, Op: "move", Path: src, Path2: dst, Msg: "cannot move a directory inside itself"}
	}
	if existing := m.resolve(dst); existing != nil {
		if !overwrite {
			return fserrors.Exists(dst)
		}
	}
	dstParent, dstName, err := m.parentOf(dst)
	if err != nil {
		return err
	}
	srcParent, srcName, err := m.parentOf(src)
	if err != nil {
		return err
	}
	delete(srcParent.children, srcName)
	n.name = dstName
	dstParent.children[dstName] = n
	now := time.Now()
	srcParent.modified = now
	dstParent.modified = now
	return nil
}

// CopyNative deep-clones the entry at src to dst under the tree lock.
func (m *FS) CopyNative(src, dst string, overwrite bool) error {
	s, err := abs(src)
	if err != nil {
		return err
	}
	d, err := abs(dst)
	if err != nil {
		return err
	}
	m.lock()
	defer m.unlock()
	if err := m.checkOpen("copy"); err != nil {
		return err
	}
	n := m.resolve(s)
	if n == nil {
		return fserrors.NotFound(s)
	}
	if n.dir && fspath.IsPrefix(s, d) {
		return &fserrors.Error{Kind: fserrors.KindInvalid, Op: "copy", Path: s, Path2: d, Msg: "cannot copy a directory inside itself"}
	}
	if existing := m.resolve(d); existing != nil && !overwrite {
		return fserrors.Exists(d)
	}
	parent, name, err := m.parentOf(d)
	if err != nil {
		return err
	}
	parent.children[name] = cloneNode(n, name)
	parent.modified = time.Now()
	return nil
}

// cloneNode deep-copies a subtree. No node is ever aliased across two
// parents.
func cloneNode(n *node, name string) *node {
	clone := &node{
		name:     name,
		dir:      n.dir,
		created:  time.Now(),
		accessed: n.accessed,
		modified: n.modified,
	}
	if n.xattrs != nil {
		clone.xattrs = make(map[string]string, len(n.xattrs))
		for k, v := range n.xattrs {
			clone.xattrs[k] = v
		}
	}
	if n.dir {
		clone.children = make(map[string]*node, len(n.children))
		for childName, child := range n.children {
			clone.children[childName] = cloneNode(child, childName)
		}
	} else {
		n.data.mu.Lock()
		content := make([]byte, len(n.data.bytes))
		copy(content, n.data.bytes)
		n.data.mu.Unlock()
		clone.data = &fileData{bytes: content}
	}
	return clone
}

// GetInfo returns metadata for the entry at path.
func (m *FS) GetInfo(path string) (vfs.Info, error) {
	p, err := abs(path)
	if err != nil {
		return vfs.Info{}, err
	}
	m.rlock()
	defer m.runlock()
	if err := m.checkOpen("getinfo"); err != nil {
		return vfs.Info{}, err
	}
	n := m.resolve(p)
	if n == nil {
		return vfs.Info{}, fserrors.NotFound(p)
	}
	info := m.infoOf(n, fspath.Dir(p))
	info.Path = p
	return info, nil
}

// SetContents replaces the contents of the file at path, creating it when
// absent. The swap happens atomically under the tree lock once the reader
// is drained.
func (m *FS) SetContents(path string, r io.Reader) error {
	p, err := abs(path)
	if err != nil {
		return err
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.lock()
	defer m.unlock()
	if err := m.checkOpen("setcontents"); err != nil {
		return err
	}
	n := m.resolve(p)
	if n != nil && n.dir {
		return fserrors.Invalid(p)
	}
	if n == nil {
		parent, name, err := m.parentOf(p)
		if err != nil {
			return err
		}
		parent.children[name] = newFileNode(name, content)
		parent.modified = time.Now()
		return nil
	}
	n.data.mu.Lock()
	n.data.bytes = content
	n.data.mu.Unlock()
	n.modified = time.Now()
	return nil
}

// SetTimes stamps the access and modification times of the entry at path.
func (m *FS) SetTimes(path string, accessed, modified time.Time) error {
	p, err := abs(path)
	if err != nil {
		return err
	}
	m.lock()
	defer m.unlock()
	if err := m.checkOpen("settimes"); err != nil {
		return err
	}
	n := m.resolve(p)
	if n == nil {
		return fserrors.NotFound(p)
	}
	if !accessed.IsZero() {
		n.accessed = accessed
	}
	if !modified.IsZero() {
		n.modified = modified
	}
	return nil
}

// Meta returns the backend's capability metadata.
func (m *FS) Meta() vfs.Meta { return m.meta }

// Close marks the filesystem closed and releases the tree. In-flight
// operations that arrive afterwards fail with FilesystemClosed.
func (m *FS) Close() error {
	m.lock()
	defer m.unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.root = newDirNode("")
	return nil
}
