// Package httpfs exposes resources under an HTTP base URL as a
// read-only filesystem. Plain HTTP has no listing protocol, so
// directory operations are unsupported; file reads stream through a
// demand-pulled local buffer.
package httpfs

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/fspath"
	"github.com/anyfs/anyfs/remotefs"
	"github.com/anyfs/anyfs/vfs"
)

// FS reads files beneath an HTTP base URL.
type FS struct {
	base   string
	client *resty.Client
	meta   vfs.Meta
	closed bool
}

// Option configures the backend.
type Option func(*FS)

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(f *FS) { f.client.SetTimeout(d) }
}

// WithBasicAuth sends credentials with every request.
func WithBasicAuth(user, pass string) Option {
	return func(f *FS) { f.client.SetBasicAuth(user, pass) }
}

// New opens a filesystem over the given base URL.
func New(base string, opts ...Option) *FS {
	f := &FS{
		base:   strings.TrimRight(base, "/"),
		client: resty.New().SetTimeout(30 * time.Second),
		meta: vfs.Meta{
			vfs.MetaReadOnly:     true,
			vfs.MetaNetwork:      true,
			vfs.MetaUnicodePaths: true,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func init() {
	dial := func(d remotefs.Descriptor) (vfs.FS, error) {
		host := d.Host
		if d.Port != 0 {
			host = fmt.Sprintf("%s:%d", d.Host, d.Port)
		}
		root := d.Root
		if root != "" && root != "/" {
			p, err := fspath.Abs(root)
			if err != nil {
				return nil, err
			}
			root = p
		} else {
			root = ""
		}
		var opts []Option
		if d.Username != "" {
			opts = append(opts, WithBasicAuth(d.Username, d.Password))
		}
		return New(d.Scheme+"://"+host+root, opts...), nil
	}
	remotefs.Register("http", dial)
	remotefs.Register("https", dial)
}

func (f *FS) url(path string) (string, error) {
	p, err := fspath.Abs(path)
	if err != nil {
		return "", err
	}
	return f.base + p, nil
}

// head fetches response headers for a path, nil on 404.
func (f *FS) head(op, path string) (*resty.Response, error) {
	if f.closed {
		return nil, fserrors.Closed(op)
	}
	u, err := f.url(path)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.R().Head(u)
	if err != nil {
		return nil, fserrors.Remote(op, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fserrors.Remote(op, fmt.Errorf("unexpected status %s", resp.Status()))
	}
	return resp, nil
}

// Open returns a buffered read handle streaming the resource body.
func (f *FS) Open(path string, mode vfs.Mode) (vfs.File, error) {
	if mode != vfs.ModeRead {
		return nil, fserrors.Unsupported("open")
	}
	if f.closed {
		return nil, fserrors.Closed("open")
	}
	u, err := f.url(path)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.R().SetDoNotParseResponse(true).Get(u)
	if err != nil {
		return nil, fserrors.Remote("open", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		resp.RawBody().Close()
		return nil, fserrors.NotFound(path)
	}
	if resp.IsError() {
		resp.RawBody().Close()
		return nil, fserrors.Remote("open", fmt.Errorf("unexpected status %s", resp.Status()))
	}
	return remotefs.NewBuffer(path, mode, resp.RawBody(), nil)
}

// Exists reports whether the resource answers to a HEAD request.
func (f *FS) Exists(path string) (bool, error) {
	resp, err := f.head("exists", path)
	if err != nil {
		return false, err
	}
	return resp != nil, nil
}

// IsDir always reports false; plain HTTP exposes no directories.
func (f *FS) IsDir(path string) (bool, error) {
	if f.closed {
		return false, fserrors.Closed("isdir")
	}
	return false, nil
}

// IsFile reports whether the resource exists.
func (f *FS) IsFile(path string) (bool, error) {
	resp, err := f.head("isfile", path)
	if err != nil {
		return false, err
	}
	return resp != nil, nil
}

// ListDir is unsupported; plain HTTP has no listing protocol.
func (f *FS) ListDir(path string, opts vfs.ListOptions) ([]string, error) {
	return nil, fserrors.Unsupported("listdir")
}

// ListDirInfo is unsupported; plain HTTP has no listing protocol.
func (f *FS) ListDirInfo(path string, opts vfs.ListOptions) ([]vfs.Info, error) {
	return nil, fserrors.Unsupported("listdirinfo")
}

// GetInfo builds metadata from response headers.
func (f *FS) GetInfo(path string) (vfs.Info, error) {
	resp, err := f.head("getinfo", path)
	if err != nil {
		return vfs.Info{}, err
	}
	if resp == nil {
		return vfs.Info{}, fserrors.NotFound(path)
	}
	p, err := fspath.Abs(path)
	if err != nil {
		return vfs.Info{}, err
	}
	info := vfs.Info{
		Name:     fspath.Base(p),
		Path:     p,
		Size:     resp.RawResponse.ContentLength,
		MimeType: resp.Header().Get("Content-Type"),
	}
	if lm := resp.Header().Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			info.Modified = t
		}
	}
	return info, nil
}

// MakeDir is unsupported.
func (f *FS) MakeDir(path string, opts vfs.MakeDirOptions) error {
	return fserrors.Unsupported("makedir")
}

// Remove is unsupported.
func (f *FS) Remove(path string) error {
	return fserrors.Unsupported("remove")
}

// RemoveDir is unsupported.
func (f *FS) RemoveDir(path string, opts vfs.RemoveDirOptions) error {
	return fserrors.Unsupported("removedir")
}

// Rename is unsupported.
func (f *FS) Rename(src, dst string) error {
	return fserrors.Unsupported("rename")
}

// SetContents is unsupported.
func (f *FS) SetContents(path string, r io.Reader) error {
	return fserrors.Unsupported("setcontents")
}

// Meta describes the backend's capabilities.
func (f *FS) Meta() vfs.Meta {
	return f.meta.Clone()
}

// Close marks the filesystem closed.
func (f *FS) Close() error {
	f.closed = true
	return nil
}
