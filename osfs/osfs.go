// Package osfs exposes a directory of the operating system filesystem
// through the uniform contract. Virtual paths are resolved against the
// configured root and never escape it.
package osfs

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/fspath"
	"github.com/anyfs/anyfs/vfs"
)

// FS is a filesystem rooted at a native directory.
type FS struct {
	root   string
	meta   vfs.Meta
	closed bool
}

// New opens a filesystem over the native directory at root. The
// directory must exist.
func New(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fserrors.FromOS("new", root, err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, fserrors.FromOS("new", root, err)
	}
	if !st.IsDir() {
		return nil, fserrors.Invalid(root)
	}
	return &FS{
		root: abs,
		meta: vfs.Meta{
			vfs.MetaReadOnly:          false,
			vfs.MetaNetwork:           false,
			vfs.MetaUnicodePaths:      true,
			vfs.MetaAtomicMakeDir:     true,
			vfs.MetaAtomicRename:      true,
			vfs.MetaAtomicSetContents: false,
		},
	}, nil
}

// native maps a virtual path to its location under the root.
func (f *FS) native(path string) (string, error) {
	p, err := fspath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.root, filepath.FromSlash(p)), nil
}

func (f *FS) checkOpen(op string) error {
	if f.closed {
		return fserrors.Closed(op)
	}
	return nil
}

// SysPath reports the native location of a virtual path.
func (f *FS) SysPath(path string) (string, bool) {
	sys, err := f.native(path)
	if err != nil {
		return "", false
	}
	return sys, true
}

// Open opens a file handle in the given mode.
func (f *FS) Open(path string, mode vfs.Mode) (vfs.File, error) {
	if err := f.checkOpen("open"); err != nil {
		return nil, err
	}
	sys, err := f.native(path)
	if err != nil {
		return nil, err
	}
	var flag int
	switch mode {
	case vfs.ModeRead:
		flag = os.O_RDONLY
	case vfs.ModeWrite:
		flag = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	case vfs.ModeAppend:
		flag = os.O_WRONLY | os.O_APPEND
	case vfs.ModeReadWrite:
		flag = os.O_RDWR
	default:
		return nil, fserrors.Invalid(path)
	}
	h, err := os.OpenFile(sys, flag, 0o644)
	if err != nil {
		return nil, fserrors.FromOS("open", path, err)
	}
	if mode != vfs.ModeRead {
		if st, err := h.Stat(); err == nil && st.IsDir() {
			h.Close()
			return nil, fserrors.Invalid(path)
		}
	}
	return &file{File: h, path: path, mode: mode}, nil
}

// Exists reports whether a path exists.
func (f *FS) Exists(path string) (bool, error) {
	if err := f.checkOpen("exists"); err != nil {
		return false, err
	}
	sys, err := f.native(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(sys); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fserrors.FromOS("exists", path, err)
	}
	return true, nil
}

// IsDir reports whether a path names a directory.
func (f *FS) IsDir(path string) (bool, error) {
	if err := f.checkOpen("isdir"); err != nil {
		return false, err
	}
	sys, err := f.native(path)
	if err != nil {
		return false, err
	}
	st, err := os.Stat(sys)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fserrors.FromOS("isdir", path, err)
	}
	return st.IsDir(), nil
}

// IsFile reports whether a path names a regular file.
func (f *FS) IsFile(path string) (bool, error) {
	if err := f.checkOpen("isfile"); err != nil {
		return false, err
	}
	sys, err := f.native(path)
	if err != nil {
		return false, err
	}
	st, err := os.Stat(sys)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fserrors.FromOS("isfile", path, err)
	}
	return !st.IsDir(), nil
}

func (f *FS) listInfo(path string) ([]vfs.Info, error) {
	sys, err := f.native(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(sys)
	if err != nil {
		return nil, fserrors.FromOS("listdir", path, err)
	}
	p, err := fspath.Abs(path)
	if err != nil {
		return nil, err
	}
	infos := make([]vfs.Info, 0, len(entries))
	for _, entry := range entries {
		st, err := entry.Info()
		if err != nil {
			continue
		}
		child, err := fspath.Join(p, entry.Name())
		if err != nil {
			continue
		}
		infos = append(infos, vfs.Info{
			Name:     entry.Name(),
			Path:     child,
			Size:     st.Size(),
			IsDir:    entry.IsDir(),
			Modified: st.ModTime(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// ListDir lists entry names in a directory.
func (f *FS) ListDir(path string, opts vfs.ListOptions) ([]string, error) {
	infos, err := f.ListDirInfo(path, opts)
	if err != nil {
		return nil, err
	}
	p, err := fspath.Abs(path)
	if err != nil {
		return nil, err
	}
	return vfs.RenderNames(p, infos, opts)
}

// ListDirInfo lists entry metadata in a directory.
func (f *FS) ListDirInfo(path string, opts vfs.ListOptions) ([]vfs.Info, error) {
	if err := f.checkOpen("listdir"); err != nil {
		return nil, err
	}
	infos, err := f.listInfo(path)
	if err != nil {
		return nil, err
	}
	return vfs.FilterEntries(infos, opts)
}

// MakeDir creates a directory.
func (f *FS) MakeDir(path string, opts vfs.MakeDirOptions) error {
	if err := f.checkOpen("makedir"); err != nil {
		return err
	}
	sys, err := f.native(path)
	if err != nil {
		return err
	}
	if st, err := os.Stat(sys); err == nil {
		if st.IsDir() && opts.AllowRecreate {
			return nil
		}
		if st.IsDir() {
			return fserrors.Exists(path)
		}
		return fserrors.Invalid(path)
	}
	if opts.Recursive {
		if err := os.MkdirAll(sys, 0o755); err != nil {
			return fserrors.FromOS("makedir", path, err)
		}
		return nil
	}
	if err := os.Mkdir(sys, 0o755); err != nil {
		if os.IsNotExist(err) {
			return fserrors.ParentMissing(path)
		}
		return fserrors.FromOS("makedir", path, err)
	}
	return nil
}

// Remove deletes a file.
func (f *FS) Remove(path string) error {
	if err := f.checkOpen("remove"); err != nil {
		return err
	}
	sys, err := f.native(path)
	if err != nil {
		return err
	}
	st, err := os.Stat(sys)
	if err != nil {
		return fserrors.FromOS("remove", path, err)
	}
	if st.IsDir() {
		return fserrors.Invalid(path)
	}
	if err := os.Remove(sys); err != nil {
		return fserrors.FromOS("remove", path, err)
	}
	return nil
}

// RemoveDir deletes a directory.
func (f *FS) RemoveDir(path string, opts vfs.RemoveDirOptions) error {
	if err := f.checkOpen("removedir"); err != nil {
		return err
	}
	p, err := fspath.Abs(path)
	if err != nil {
		return err
	}
	if p == "/" {
		return fserrors.Invalid(path)
	}
	sys, err := f.native(path)
	if err != nil {
		return err
	}
	st, err := os.Stat(sys)
	if err != nil {
		return fserrors.FromOS("removedir", path, err)
	}
	if !st.IsDir() {
		return fserrors.Invalid(path)
	}
	if opts.Force {
		if err := os.RemoveAll(sys); err != nil {
			return fserrors.FromOS("removedir", path, err)
		}
	} else if err := os.Remove(sys); err != nil {
		return fserrors.FromOS("removedir", path, err)
	}
	if opts.Recursive {
		f.pruneAncestors(p)
	}
	return nil
}

// pruneAncestors removes ancestor directories once they become empty,
// stopping at the first non-empty one and never touching the root.
func (f *FS) pruneAncestors(p string) {
	ancestors, err := fspath.Ancestors(fspath.Dir(p))
	if err != nil {
		return
	}
	for i := len(ancestors) - 1; i > 0; i-- {
		sys, err := f.native(ancestors[i])
		if err != nil {
			return
		}
		if err := os.Remove(sys); err != nil {
			return
		}
	}
}

// Rename renames an entry within its directory.
func (f *FS) Rename(src, dst string) error {
	if err := f.checkOpen("rename"); err != nil {
		return err
	}
	s, err := fspath.Abs(src)
	if err != nil {
		return err
	}
	d, err := fspath.Abs(dst)
	if err != nil {
		return err
	}
	if !fspath.SameDir(s, d) {
		return fserrors.Invalid(dst)
	}
	return f.MoveNative(src, dst, false)
}

// MoveNative relocates an entry with a single native rename.
func (f *FS) MoveNative(src, dst string, overwrite bool) error {
	if err := f.checkOpen("move"); err != nil {
		return err
	}
	ssys, err := f.native(src)
	if err != nil {
		return err
	}
	dsys, err := f.native(dst)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(dsys); err == nil {
			return fserrors.Exists(dst)
		}
	}
	if err := os.Rename(ssys, dsys); err != nil {
		return fserrors.FromOS("move", src, err)
	}
	return nil
}

// GetInfo returns metadata for a path, sniffing the content type of
// regular files.
func (f *FS) GetInfo(path string) (vfs.Info, error) {
	if err := f.checkOpen("getinfo"); err != nil {
		return vfs.Info{}, err
	}
	p, err := fspath.Abs(path)
	if err != nil {
		return vfs.Info{}, err
	}
	sys, err := f.native(path)
	if err != nil {
		return vfs.Info{}, err
	}
	st, err := os.Stat(sys)
	if err != nil {
		return vfs.Info{}, fserrors.FromOS("getinfo", path, err)
	}
	info := vfs.Info{
		Name:     fspath.Base(p),
		Path:     p,
		Size:     st.Size(),
		IsDir:    st.IsDir(),
		Modified: st.ModTime(),
	}
	if !st.IsDir() {
		if mt, err := mimetype.DetectFile(sys); err == nil {
			info.MimeType = mt.String()
		}
	}
	return info, nil
}

// SetContents atomically replaces a file's contents by writing to a
// sibling temp file and renaming it into place.
func (f *FS) SetContents(path string, r io.Reader) error {
	if err := f.checkOpen("setcontents"); err != nil {
		return err
	}
	sys, err := f.native(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(sys), ".anyfs-*")
	if err != nil {
		return fserrors.FromOS("setcontents", path, err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fserrors.FromOS("setcontents", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fserrors.FromOS("setcontents", path, err)
	}
	if err := os.Rename(tmp.Name(), sys); err != nil {
		os.Remove(tmp.Name())
		return fserrors.FromOS("setcontents", path, err)
	}
	return nil
}

// SetTimes stamps access and modification times.
func (f *FS) SetTimes(path string, accessed, modified time.Time) error {
	if err := f.checkOpen("settimes"); err != nil {
		return err
	}
	sys, err := f.native(path)
	if err != nil {
		return err
	}
	if err := os.Chtimes(sys, accessed, modified); err != nil {
		return fserrors.FromOS("settimes", path, err)
	}
	return nil
}

// Meta describes the backend's capabilities.
func (f *FS) Meta() vfs.Meta {
	return f.meta.Clone()
}

// Close marks the filesystem closed. Closing twice is a no-op.
func (f *FS) Close() error {
	f.closed = true
	return nil
}

type file struct {
	*os.File
	path string
	mode vfs.Mode
}

func (h *file) Read(p []byte) (int, error) {
	if !h.mode.Readable() {
		return 0, fserrors.Unsupported("read")
	}
	return h.File.Read(p)
}

func (h *file) Write(p []byte) (int, error) {
	if !h.mode.Writable() {
		return 0, fserrors.Unsupported("write")
	}
	n, err := h.File.Write(p)
	if err != nil {
		return n, fserrors.FromOS("write", h.path, err)
	}
	return n, nil
}

func (h *file) Truncate(size int64) error {
	if !h.mode.Writable() {
		return fserrors.Unsupported("truncate")
	}
	if err := h.File.Truncate(size); err != nil {
		return fserrors.FromOS("truncate", h.path, err)
	}
	return nil
}
