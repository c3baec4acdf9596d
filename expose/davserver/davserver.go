// Package davserver publishes any filesystem over WebDAV, so trees
// built from the in-memory engine, wrappers, and remote backends can be
// mounted by stock clients.
package davserver

import (
	"context"
	"io"
	iofs "io/fs"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/fspath"
	"github.com/anyfs/anyfs/vfs"
)

// Handler serves fsys over WebDAV with an in-memory lock table.
func Handler(fsys vfs.FS, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &webdav.Handler{
		FileSystem: &adapter{fsys: fsys},
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				log.Warn("webdav request failed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err))
				return
			}
			log.Debug("webdav request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path))
		},
	}
}

// adapter maps the webdav filesystem interface onto the contract.
type adapter struct {
	fsys vfs.FS
}

// osError converts contract errors to the os-level sentinels the webdav
// package bases status codes on.
func osError(err error) error {
	kind, ok := fserrors.KindOf(err)
	if !ok {
		return err
	}
	switch kind {
	case fserrors.KindNotFound, fserrors.KindParentMissing:
		return os.ErrNotExist
	case fserrors.KindExists:
		return os.ErrExist
	case fserrors.KindPermission, fserrors.KindUnsupported:
		return os.ErrPermission
	default:
		return err
	}
}

func (a *adapter) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	if err := a.fsys.MakeDir(name, vfs.MakeDirOptions{}); err != nil {
		return osError(err)
	}
	return nil
}

func (a *adapter) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	p, err := fspath.Abs(name)
	if err != nil {
		return nil, os.ErrInvalid
	}
	if isDir, err := a.fsys.IsDir(p); err == nil && isDir {
		return &dirHandle{fsys: a.fsys, path: p}, nil
	}
	var mode vfs.Mode
	switch {
	case flag&(os.O_WRONLY|os.O_RDWR) == 0:
		mode = vfs.ModeRead
	case flag&os.O_APPEND != 0:
		mode = vfs.ModeAppend
	case flag&os.O_TRUNC != 0 || flag&os.O_CREATE != 0:
		mode = vfs.ModeWrite
	default:
		mode = vfs.ModeReadWrite
	}
	f, err := a.fsys.Open(p, mode)
	if err != nil {
		return nil, osError(err)
	}
	return &fileHandle{fsys: a.fsys, file: f, path: p}, nil
}

func (a *adapter) RemoveAll(ctx context.Context, name string) error {
	isDir, err := a.fsys.IsDir(name)
	if err != nil {
		return osError(err)
	}
	if isDir {
		err = a.fsys.RemoveDir(name, vfs.RemoveDirOptions{Force: true})
	} else {
		err = a.fsys.Remove(name)
	}
	if err != nil && !fserrors.IsKind(err, fserrors.KindNotFound) {
		return osError(err)
	}
	return nil
}

func (a *adapter) Rename(ctx context.Context, oldName, newName string) error {
	isDir, err := a.fsys.IsDir(oldName)
	if err != nil {
		return osError(err)
	}
	if isDir {
		if _, err := vfs.MoveDir(a.fsys, oldName, newName, vfs.DirOptions{Overwrite: true}); err != nil {
			return osError(err)
		}
		return nil
	}
	if err := vfs.Move(a.fsys, oldName, newName, vfs.CopyOptions{Overwrite: true}); err != nil {
		return osError(err)
	}
	return nil
}

func (a *adapter) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	info, err := a.fsys.GetInfo(name)
	if err != nil {
		return nil, osError(err)
	}
	return statInfo{info}, nil
}

// statInfo adapts entry metadata to os.FileInfo.
type statInfo struct {
	info vfs.Info
}

func (s statInfo) Name() string { return s.info.Name }
func (s statInfo) Size() int64  { return s.info.Size }
func (s statInfo) Mode() iofs.FileMode {
	if s.info.IsDir {
		return iofs.ModeDir | 0o755
	}
	return 0o644
}
func (s statInfo) ModTime() time.Time { return s.info.Modified }
func (s statInfo) IsDir() bool        { return s.info.IsDir }
func (s statInfo) Sys() any           { return nil }

// fileHandle adapts a contract file to a webdav file.
type fileHandle struct {
	fsys vfs.FS
	file vfs.File
	path string
}

func (h *fileHandle) Read(p []byte) (int, error)  { return h.file.Read(p) }
func (h *fileHandle) Write(p []byte) (int, error) { return h.file.Write(p) }

func (h *fileHandle) Seek(offset int64, whence int) (int64, error) {
	return h.file.Seek(offset, whence)
}

func (h *fileHandle) Close() error { return h.file.Close() }

func (h *fileHandle) Readdir(count int) ([]os.FileInfo, error) {
	return nil, os.ErrInvalid
}

func (h *fileHandle) Stat() (os.FileInfo, error) {
	info, err := h.fsys.GetInfo(h.path)
	if err != nil {
		return nil, osError(err)
	}
	return statInfo{info}, nil
}

// dirHandle serves directory listings.
type dirHandle struct {
	fsys    vfs.FS
	path    string
	entries []os.FileInfo
	offset  int
	listed  bool
}

func (h *dirHandle) Read(p []byte) (int, error)                   { return 0, os.ErrInvalid }
func (h *dirHandle) Write(p []byte) (int, error)                  { return 0, os.ErrInvalid }
func (h *dirHandle) Seek(offset int64, whence int) (int64, error) { return 0, os.ErrInvalid }
func (h *dirHandle) Close() error                                 { return nil }

func (h *dirHandle) Readdir(count int) ([]os.FileInfo, error) {
	if !h.listed {
		infos, err := h.fsys.ListDirInfo(h.path, vfs.ListOptions{})
		if err != nil {
			return nil, osError(err)
		}
		h.entries = make([]os.FileInfo, len(infos))
		for i, info := range infos {
			h.entries[i] = statInfo{info}
		}
		h.listed = true
	}
	if count <= 0 {
		out := h.entries[h.offset:]
		h.offset = len(h.entries)
		return out, nil
	}
	if h.offset >= len(h.entries) {
		return nil, io.EOF
	}
	end := h.offset + count
	if end > len(h.entries) {
		end = len(h.entries)
	}
	out := h.entries[h.offset:end]
	h.offset = end
	return out, nil
}

func (h *dirHandle) Stat() (os.FileInfo, error) {
	info, err := h.fsys.GetInfo(h.path)
	if err != nil {
		return nil, osError(err)
	}
	return statInfo{info}, nil
}
