package wrapfs

import (
	"io"
	"time"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/vfs"
)

// ReadOnlyFS rejects every mutating operation with Unsupported while
// passing reads through. Opened handles are restricted to ModeRead.
type ReadOnlyFS struct {
	*FS
}

// NewReadOnly wraps inner, refusing mutation.
func NewReadOnly(inner vfs.FS) *ReadOnlyFS {
	return &ReadOnlyFS{FS: New(inner)}
}

// Open permits only ModeRead.
func (r *ReadOnlyFS) Open(path string, mode vfs.Mode) (vfs.File, error) {
	if mode != vfs.ModeRead {
		return nil, fserrors.Unsupported("open:" + mode.String())
	}
	return r.FS.Open(path, mode)
}

// MakeDir is unsupported.
func (r *ReadOnlyFS) MakeDir(string, vfs.MakeDirOptions) error {
	return fserrors.Unsupported("makedir")
}

// Remove is unsupported.
func (r *ReadOnlyFS) Remove(string) error {
	return fserrors.Unsupported("remove")
}

// RemoveDir is unsupported.
func (r *ReadOnlyFS) RemoveDir(string, vfs.RemoveDirOptions) error {
	return fserrors.Unsupported("removedir")
}

// Rename is unsupported.
func (r *ReadOnlyFS) Rename(string, string) error {
	return fserrors.Unsupported("rename")
}

// SetContents is unsupported.
func (r *ReadOnlyFS) SetContents(string, io.Reader) error {
	return fserrors.Unsupported("setcontents")
}

// SetXAttr is unsupported.
func (r *ReadOnlyFS) SetXAttr(string, string, string) error {
	return fserrors.Unsupported("setxattr")
}

// DelXAttr is unsupported.
func (r *ReadOnlyFS) DelXAttr(string, string) error {
	return fserrors.Unsupported("delxattr")
}

// SetTimes is unsupported.
func (r *ReadOnlyFS) SetTimes(string, time.Time, time.Time) error {
	return fserrors.Unsupported("settimes")
}

// Meta publishes the read-only capability over the inner metadata.
func (r *ReadOnlyFS) Meta() vfs.Meta {
	meta := r.FS.Meta().Clone()
	meta[vfs.MetaReadOnly] = true
	return meta
}
