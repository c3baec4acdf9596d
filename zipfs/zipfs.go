// Package zipfs exposes a zip archive as a read-only filesystem.
//
// The archive's entry table is indexed once at open; directory entries
// missing from the table are synthesized from file paths. Deflate
// streams decompress through the klauspost implementation.
package zipfs

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/fspath"
	"github.com/anyfs/anyfs/vfs"
)

type entry struct {
	file  *zip.File // nil for directories
	isDir bool
}

// FS is a read-only filesystem over a zip archive.
type FS struct {
	reader *zip.Reader
	closer io.Closer // nil when opened from a reader
	index  map[string]*entry
	meta   vfs.Meta
	closed bool
}

// New opens the archive at the native path.
func New(path string) (*FS, error) {
	h, err := os.Open(path)
	if err != nil {
		return nil, fserrors.FromOS("new", path, err)
	}
	st, err := h.Stat()
	if err != nil {
		h.Close()
		return nil, fserrors.FromOS("new", path, err)
	}
	fsys, err := NewFromReader(h, st.Size())
	if err != nil {
		h.Close()
		return nil, err
	}
	fsys.closer = h
	return fsys, nil
}

// NewFromReader opens an archive from any random-access reader.
func NewFromReader(ra io.ReaderAt, size int64) (*FS, error) {
	r, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fserrors.Storage("new")
	}
	r.RegisterDecompressor(zip.Deflate, func(in io.Reader) io.ReadCloser {
		return flate.NewReader(in)
	})
	fsys := &FS{
		reader: r,
		index:  map[string]*entry{"/": {isDir: true}},
		meta: vfs.Meta{
			vfs.MetaReadOnly:     true,
			vfs.MetaNetwork:      false,
			vfs.MetaUnicodePaths: true,
		},
	}
	for _, zf := range r.File {
		name := strings.TrimSuffix(zf.Name, "/")
		p, err := fspath.Abs(name)
		if err != nil {
			continue
		}
		isDir := strings.HasSuffix(zf.Name, "/") || zf.FileInfo().IsDir()
		if isDir {
			fsys.index[p] = &entry{isDir: true}
		} else {
			fsys.index[p] = &entry{file: zf}
		}
		ancestors, err := fspath.Ancestors(fspath.Dir(p))
		if err != nil {
			continue
		}
		for _, anc := range ancestors {
			if _, ok := fsys.index[anc]; !ok {
				fsys.index[anc] = &entry{isDir: true}
			}
		}
	}
	return fsys, nil
}

func (f *FS) lookup(op, path string) (string, *entry, error) {
	if f.closed {
		return "", nil, fserrors.Closed(op)
	}
	p, err := fspath.Abs(path)
	if err != nil {
		return "", nil, err
	}
	e, ok := f.index[p]
	if !ok {
		return p, nil, fserrors.NotFound(path)
	}
	return p, e, nil
}

// Open returns a read handle on an archived file. The entry is
// decompressed fully at open so the handle can seek.
func (f *FS) Open(path string, mode vfs.Mode) (vfs.File, error) {
	if mode != vfs.ModeRead {
		return nil, fserrors.Unsupported("open")
	}
	p, e, err := f.lookup("open", path)
	if err != nil {
		return nil, err
	}
	if e.isDir {
		return nil, fserrors.Invalid(path)
	}
	rc, err := e.file.Open()
	if err != nil {
		return nil, fserrors.Storage("open")
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fserrors.Storage("open")
	}
	return &file{r: bytes.NewReader(data), path: p}, nil
}

// Exists reports whether a path is present in the archive.
func (f *FS) Exists(path string) (bool, error) {
	_, _, err := f.lookup("exists", path)
	if fserrors.IsKind(err, fserrors.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsDir reports whether a path is an archived directory.
func (f *FS) IsDir(path string) (bool, error) {
	_, e, err := f.lookup("isdir", path)
	if fserrors.IsKind(err, fserrors.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return e.isDir, nil
}

// IsFile reports whether a path is an archived file.
func (f *FS) IsFile(path string) (bool, error) {
	_, e, err := f.lookup("isfile", path)
	if fserrors.IsKind(err, fserrors.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !e.isDir, nil
}

func (f *FS) children(dir string) []vfs.Info {
	var infos []vfs.Info
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}
	for p, e := range f.index {
		if p == "/" || !strings.HasPrefix(p, prefix) || strings.Contains(p[len(prefix):], "/") {
			continue
		}
		info := vfs.Info{
			Name:  fspath.Base(p),
			Path:  p,
			IsDir: e.isDir,
		}
		if e.file != nil {
			info.Size = int64(e.file.UncompressedSize64)
			info.Modified = e.file.Modified
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// ListDir lists entry names in an archived directory.
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

// ListDirInfo lists entry metadata in an archived directory.
func (f *FS) ListDirInfo(path string, opts vfs.ListOptions) ([]vfs.Info, error) {
	p, e, err := f.lookup("listdir", path)
	if err != nil {
		return nil, err
	}
	if !e.isDir {
		return nil, fserrors.Invalid(path)
	}
	return vfs.FilterEntries(f.children(p), opts)
}

// GetInfo returns metadata for an archived entry.
func (f *FS) GetInfo(path string) (vfs.Info, error) {
	p, e, err := f.lookup("getinfo", path)
	if err != nil {
		return vfs.Info{}, err
	}
	info := vfs.Info{
		Name:  fspath.Base(p),
		Path:  p,
		IsDir: e.isDir,
	}
	if e.file != nil {
		info.Size = int64(e.file.UncompressedSize64)
		info.Modified = e.file.Modified
	}
	return info, nil
}

// MakeDir is unsupported on archives.
func (f *FS) MakeDir(path string, opts vfs.MakeDirOptions) error {
	return fserrors.Unsupported("makedir")
}

// Remove is unsupported on archives.
func (f *FS) Remove(path string) error {
	return fserrors.Unsupported("remove")
}

// RemoveDir is unsupported on archives.
func (f *FS) RemoveDir(path string, opts vfs.RemoveDirOptions) error {
	return fserrors.Unsupported("removedir")
}

// Rename is unsupported on archives.
func (f *FS) Rename(src, dst string) error {
	return fserrors.Unsupported("rename")
}

// SetContents is unsupported on archives.
func (f *FS) SetContents(path string, r io.Reader) error {
	return fserrors.Unsupported("setcontents")
}

// Meta describes the backend's capabilities.
func (f *FS) Meta() vfs.Meta {
	return f.meta.Clone()
}

// Close releases the archive. Closing twice is a no-op.
func (f *FS) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

// file is a seekable handle over decompressed entry contents.
type file struct {
	r      *bytes.Reader
	path   string
	closed bool
}

func (h *file) Read(p []byte) (int, error) {
	if h.closed {
		return 0, fserrors.Closed("read")
	}
	return h.r.Read(p)
}

func (h *file) Write(p []byte) (int, error) {
	return 0, fserrors.Unsupported("write")
}

func (h *file) Seek(offset int64, whence int) (int64, error) {
	if h.closed {
		return 0, fserrors.Closed("seek")
	}
	pos, err := h.r.Seek(offset, whence)
	if err != nil {
		return 0, fserrors.Invalid(h.path)
	}
	return pos, nil
}

func (h *file) Truncate(size int64) error {
	return fserrors.Unsupported("truncate")
}

func (h *file) Close() error {
	h.closed = true
	return nil
}
