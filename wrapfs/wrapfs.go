// Package wrapfs provides the transparent-proxy base used to compose
// filesystem behavior by delegation.
//
// FS forwards every contract operation to exactly one inner filesystem,
// transforming paths through an overridable codec on the way in and
// rewriting error paths back into the outer path space on the way out. A
// file opened through the wrapper can itself be wrapped via the FileWrapper
// hook; that seam is how remote buffering and change notification intercept
// file lifecycle events without touching the backend. Overlays embed *FS
// and shadow only the operations they care about.
package wrapfs

import (
	"io"
	"time"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/vfs"
)

// PathCodec transforms paths between the outer and inner path spaces.
type PathCodec interface {
	// Encode maps an outer path to the inner path space.
	Encode(path string) (string, error)
	// Decode maps an inner path back to the outer path space.
	Decode(path string) (string, error)
}

type identityCodec struct{}

func (identityCodec) Encode(path string) (string, error) { return path, nil }
func (identityCodec) Decode(path string) (string, error) { return path, nil }

// FileWrapper intercepts file handles produced by Open.
type FileWrapper func(f vfs.File, path string, mode vfs.Mode) (vfs.File, error)

// Option configures a wrapper at construction.
type Option func(*FS)

// WithCodec installs a path codec. The default is the identity transform.
func WithCodec(codec PathCodec) Option {
	return func(w *FS) { w.codec = codec }
}

// WithFileWrapper installs a file handle interceptor.
func WithFileWrapper(fw FileWrapper) Option {
	return func(w *FS) { w.fileWrap = fw }
}

// FS is the delegating wrapper base.
type FS struct {
	inner    vfs.FS
	codec    PathCodec
	fileWrap FileWrapper
}

// New wraps inner.
func New(inner vfs.FS, opts ...Option) *FS {
	w := &FS{inner: inner, codec: identityCodec{}}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Inner returns the wrapped filesystem.
func (w *FS) Inner() vfs.FS { return w.inner }

// rewrite maps error paths from the inner space back to the outer one so
// failures reference the paths the caller actually used.
func (w *FS) rewrite(err error, outer, outer2 string) error {
	if err == nil {
		return nil
	}
	return fserrors.WithPaths(err, outer, outer2)
}

// Open opens a file on the inner filesystem, applying the file wrapper
// hook to the returned handle.
func (w *FS) Open(path string, mode vfs.Mode) (vfs.File, error) {
	inner, err := w.codec.Encode(path)
	if err != nil {
		return nil, err
	}
	f, err := w.inner.Open(inner, mode)
	if err != nil {
		return nil, w.rewrite(err, path, "")
	}
	if w.fileWrap != nil {
		return w.fileWrap(f, path, mode)
	}
	return f, nil
}

// Exists delegates to the inner filesystem.
func (w *FS) Exists(path string) (bool, error) {
	inner, err := w.codec.Encode(path)
	if err != nil {
		return false, err
	}
	ok, err := w.inner.Exists(inner)
	return ok, w.rewrite(err, path, "")
}

// IsDir delegates to the inner filesystem.
func (w *FS) IsDir(path string) (bool, error) {
	inner, err := w.codec.Encode(path)
	if err != nil {
		return false, err
	}
	ok, err := w.inner.IsDir(inner)
	return ok, w.rewrite(err, path, "")
}

// IsFile delegates to the inner filesystem.
func (w *FS) IsFile(path string) (bool, error) {
	inner, err := w.codec.Encode(path)
	if err != nil {
		return false, err
	}
	ok, err := w.inner.IsFile(inner)
	return ok, w.rewrite(err, path, "")
}

// ListDir delegates to the inner filesystem, decoding returned entries
// back into the outer path space.
func (w *FS) ListDir(path string, opts vfs.ListOptions) ([]string, error) {
	inner, err := w.codec.Encode(path)
	if err != nil {
		return nil, err
	}
	names, err := w.inner.ListDir(inner, opts)
	if err != nil {
		return nil, w.rewrite(err, path, "")
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		decoded, err := w.codec.Decode(name)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}

// ListDirInfo delegates to the inner filesystem, decoding entry paths.
func (w *FS) ListDirInfo(path string, opts vfs.ListOptions) ([]vfs.Info, error) {
	inner, err := w.codec.Encode(path)
	if err != nil {
		return nil, err
	}
	infos, err := w.inner.ListDirInfo(inner, opts)
	if err != nil {
		return nil, w.rewrite(err, path, "")
	}
	out := make([]vfs.Info, len(infos))
	for i, info := range infos {
		decodedPath, err := w.codec.Decode(info.Path)
		if err != nil {
			return nil, err
		}
		decodedName, err := w.codec.Decode(info.Name)
		if err != nil {
			return nil, err
		}
		info.Path = decodedPath
		info.Name = decodedName
		out[i] = info
	}
	return out, nil
}

// MakeDir delegates to the inner filesystem.
func (w *FS) MakeDir(path string, opts vfs.MakeDirOptions) error {
	inner, err := w.codec.Encode(path)
	if err != nil {
		return err
	}
	return w.rewrite(w.inner.MakeDir(inner, opts), path, "")
}

// Remove delegates to the inner filesystem.
func (w *FS) Remove(path string) error {
	inner, err := w.codec.Encode(path)
	if err != nil {
		return err
	}
	return w.rewrite(w.inner.Remove(inner), path, "")
}

// RemoveDir delegates to the inner filesystem.
func (w *FS) RemoveDir(path string, opts vfs.RemoveDirOptions) error {
	inner, err := w.codec.Encode(path)
	if err != nil {
		return err
	}
	return w.rewrite(w.inner.RemoveDir(inner, opts), path, "")
}

// Rename delegates to the inner filesystem.
func (w *FS) Rename(src, dst string) error {
	innerSrc, err := w.codec.Encode(src)
	if err != nil {
		return err
	}
	innerDst, err := w.codec.Encode(dst)
	if err != nil {
		return err
	}
	return w.rewrite(w.inner.Rename(innerSrc, innerDst), src, dst)
}

// GetInfo delegates to the inner filesystem, decoding the entry path.
func (w *FS) GetInfo(path string) (vfs.Info, error) {
	inner, err := w.codec.Encode(path)
	if err != nil {
		return vfs.Info{}, err
	}
	info, err := w.inner.GetInfo(inner)
	if err != nil {
		return vfs.Info{}, w.rewrite(err, path, "")
	}
	decoded, err := w.codec.Decode(info.Path)
	if err != nil {
		return vfs.Info{}, err
	}
	info.Path = decoded
	return info, nil
}

// SetContents delegates to the inner filesystem.
func (w *FS) SetContents(path string, r io.Reader) error {
	inner, err := w.codec.Encode(path)
	if err != nil {
		return err
	}
	return w.rewrite(w.inner.SetContents(inner, r), path, "")
}

// Meta delegates to the inner filesystem.
func (w *FS) Meta() vfs.Meta { return w.inner.Meta() }

// Close closes the inner filesystem.
func (w *FS) Close() error { return w.inner.Close() }

// GetXAttr delegates when the inner filesystem supports extended
// attributes and fails with Unsupported otherwise.
func (w *FS) GetXAttr(path, name string) (string, error) {
	x, ok := w.inner.(vfs.XAttrFS)
	if !ok {
		return "", fserrors.Unsupported("getxattr")
	}
	inner, err := w.codec.Encode(path)
	if err != nil {
		return "", err
	}
	v, err := x.GetXAttr(inner, name)
	return v, w.rewrite(err, path, "")
}

// SetXAttr delegates xattr writes.
func (w *FS) SetXAttr(path, name, value string) error {
	x, ok := w.inner.(vfs.XAttrFS)
	if !ok {
		return fserrors.Unsupported("setxattr")
	}
	inner, err := w.codec.Encode(path)
	if err != nil {
		return err
	}
	return w.rewrite(x.SetXAttr(inner, name, value), path, "")
}

// DelXAttr delegates xattr removal.
func (w *FS) DelXAttr(path, name string) error {
	x, ok := w.inner.(vfs.XAttrFS)
	if !ok {
		return fserrors.Unsupported("delxattr")
	}
	inner, err := w.codec.Encode(path)
	if err != nil {
		return err
	}
	return w.rewrite(x.DelXAttr(inner, name), path, "")
}

// ListXAttrs delegates xattr listing.
func (w *FS) ListXAttrs(path string) ([]string, error) {
	x, ok := w.inner.(vfs.XAttrFS)
	if !ok {
		return nil, fserrors.Unsupported("listxattrs")
	}
	inner, err := w.codec.Encode(path)
	if err != nil {
		return nil, err
	}
	names, err := x.ListXAttrs(inner)
	return names, w.rewrite(err, path, "")
}

// SysPath delegates native path resolution when the inner filesystem
// supports it.
func (w *FS) SysPath(path string) (string, bool) {
	s, ok := w.inner.(vfs.SysPathFS)
	if !ok {
		return "", false
	}
	inner, err := w.codec.Encode(path)
	if err != nil {
		return "", false
	}
	return s.SysPath(inner)
}

// SetTimes delegates time stamping when the inner filesystem supports it.
func (w *FS) SetTimes(path string, accessed, modified time.Time) error {
	t, ok := w.inner.(vfs.TimesFS)
	if !ok {
		return fserrors.Unsupported("settimes")
	}
	inner, err := w.codec.Encode(path)
	if err != nil {
		return err
	}
	return w.rewrite(t.SetTimes(inner, accessed, modified), path, "")
}
