// Package davfs is a WebDAV client backend. Metadata comes from
// PROPFIND multistatus responses, contents move over GET and PUT, and
// structural operations map onto MKCOL, DELETE, MOVE, and COPY. All
// requests retry transient failures.
package davfs

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/fspath"
	"github.com/anyfs/anyfs/remotefs"
	"github.com/anyfs/anyfs/vfs"
)

// FS is a filesystem over a WebDAV share.
type FS struct {
	base     string
	client   *retryablehttp.Client
	username string
	password string
	meta     vfs.Meta
	closed   bool
}

// Option configures the backend.
type Option func(*FS)

// WithAuth sends basic credentials with every request.
func WithAuth(user, pass string) Option {
	return func(f *FS) {
		f.username = user
		f.password = pass
	}
}

// WithRetryMax caps retry attempts per request.
func WithRetryMax(n int) Option {
	return func(f *FS) { f.client.RetryMax = n }
}

// New opens a filesystem over the share at the base URL.
func New(base string, opts ...Option) *FS {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.HTTPClient.Timeout = 30 * time.Second
	client.Logger = nil
	f := &FS{
		base:   strings.TrimRight(base, "/"),
		client: client,
		meta: vfs.Meta{
			vfs.MetaReadOnly:      false,
			vfs.MetaNetwork:       true,
			vfs.MetaUnicodePaths:  true,
			vfs.MetaAtomicMakeDir: true,
			vfs.MetaAtomicRename:  true,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func init() {
	remotefs.Register("dav", func(d remotefs.Descriptor) (vfs.FS, error) {
		scheme := "http"
		if d.TLS {
			scheme = "https"
		}
		host := d.Host
		if d.Port != 0 {
			host = fmt.Sprintf("%s:%d", d.Host, d.Port)
		}
		root := ""
		if d.Root != "" && d.Root != "/" {
			p, err := fspath.Abs(d.Root)
			if err != nil {
				return nil, err
			}
			root = p
		}
		var opts []Option
		if d.Username != "" {
			opts = append(opts, WithAuth(d.Username, d.Password))
		}
		return New(scheme+"://"+host+root, opts...), nil
	})
}

func (f *FS) url(path string) (string, error) {
	p, err := fspath.Abs(path)
	if err != nil {
		return "", err
	}
	if p == "/" {
		return f.base + "/", nil
	}
	return f.base + p, nil
}

// do sends one request, translating transport failures and error
// statuses into contract errors.
func (f *FS) do(op, method, path string, body io.ReadSeeker, hdr http.Header) (*http.Response, error) {
	if f.closed {
		return nil, fserrors.Closed(op)
	}
	u, err := f.url(path)
	if err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequest(method, u, body)
	if err != nil {
		return nil, fserrors.Remote(op, err)
	}
	for k, vals := range hdr {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if f.username != "" {
		req.SetBasicAuth(f.username, f.password)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fserrors.Remote(op, err)
	}
	if err := statusError(op, path, resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// statusError maps WebDAV error statuses onto contract errors.
func statusError(op, path string, code int) error {
	switch {
	case code < 400:
		return nil
	case code == http.StatusNotFound:
		return fserrors.NotFound(path)
	case code == http.StatusConflict:
		return fserrors.ParentMissing(path)
	case code == http.StatusMethodNotAllowed || code == http.StatusPreconditionFailed:
		return fserrors.Exists(path)
	case code == http.StatusLocked:
		return fserrors.Locked(path)
	case code == http.StatusForbidden || code == http.StatusUnauthorized:
		return fserrors.Permission(op, path)
	case code == http.StatusInsufficientStorage:
		return fserrors.Storage(op)
	default:
		return fserrors.Remote(op, fmt.Errorf("unexpected status %d", code))
	}
}

// multistatus is the subset of the PROPFIND response the backend needs.
type multistatus struct {
	XMLName   xml.Name      `xml:"multistatus"`
	Responses []davResponse `xml:"response"`
}

type davResponse struct {
	Href  string    `xml:"href"`
	Props []davProp `xml:"propstat>prop"`
}

type davProp struct {
	ResourceType struct {
		Collection *struct{} `xml:"collection"`
	} `xml:"resourcetype"`
	ContentLength string `xml:"getcontentlength"`
	LastModified  string `xml:"getlastmodified"`
	ContentType   string `xml:"getcontenttype"`
}

// propfind queries properties at the given depth.
func (f *FS) propfind(op, path, depth string) (*multistatus, error) {
	hdr := make(http.Header)
	hdr.Set("Depth", depth)
	hdr.Set("Content-Type", "application/xml")
	resp, err := f.do(op, "PROPFIND", path, strings.NewReader(propfindBody), hdr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var ms multistatus
	if err := xml.NewDecoder(resp.Body).Decode(&ms); err != nil {
		return nil, fserrors.Remote(op, err)
	}
	return &ms, nil
}

const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:">
  <D:prop>
    <D:resourcetype/>
    <D:getcontentlength/>
    <D:getlastmodified/>
    <D:getcontenttype/>
  </D:prop>
</D:propfind>`

// infoFromResponse converts one multistatus response into entry
// metadata at the given virtual path.
func infoFromResponse(p string, r davResponse) vfs.Info {
	info := vfs.Info{Path: p, Name: fspath.Base(p)}
	if p == "/" {
		info.Name = ""
	}
	for _, prop := range r.Props {
		if prop.ResourceType.Collection != nil {
			info.IsDir = true
		}
		if prop.ContentLength != "" {
			if n, err := strconv.ParseInt(prop.ContentLength, 10, 64); err == nil {
				info.Size = n
			}
		}
		if prop.LastModified != "" {
			if t, err := http.ParseTime(prop.LastModified); err == nil {
				info.Modified = t
			}
		}
		if prop.ContentType != "" {
			info.MimeType = prop.ContentType
		}
	}
	return info
}

// hrefPath extracts the virtual path of a multistatus href relative to
// the share base.
func (f *FS) hrefPath(href string) (string, bool) {
	href = strings.TrimSuffix(href, "/")
	if i := strings.Index(href, "://"); i >= 0 {
		rest := href[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			href = rest[j:]
		} else {
			href = "/"
		}
	}
	basePath := "/"
	if i := strings.Index(f.base, "://"); i >= 0 {
		rest := f.base[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			basePath = rest[j:]
		}
	}
	if basePath != "/" {
		if !strings.HasPrefix(href, basePath) {
			return "", false
		}
		href = href[len(basePath):]
	}
	if href == "" {
		href = "/"
	}
	p, err := fspath.Abs(href)
	if err != nil {
		return "", false
	}
	return p, true
}

// Open returns a buffered handle. Reads stream the body on demand;
// writes fill the buffer and push the whole file back with PUT.
func (f *FS) Open(path string, mode vfs.Mode) (vfs.File, error) {
	p, err := fspath.Abs(path)
	if err != nil {
		return nil, err
	}
	var remote io.ReadCloser
	if !mode.Creates() {
		resp, err := f.do("open", http.MethodGet, path, nil, nil)
		if err != nil {
			return nil, err
		}
		remote = resp.Body
	}
	var push remotefs.PushFunc
	if mode.Writable() {
		push = func(r io.Reader) error { return f.SetContents(p, r) }
	}
	return remotefs.NewBuffer(p, mode, remote, push)
}

// Exists reports whether the path answers a PROPFIND.
func (f *FS) Exists(path string) (bool, error) {
	_, err := f.propfind("exists", path, "0")
	if fserrors.IsKind(err, fserrors.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsDir reports whether the path is a collection.
func (f *FS) IsDir(path string) (bool, error) {
	info, err := f.GetInfo(path)
	if fserrors.IsKind(err, fserrors.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir, nil
}

// IsFile reports whether the path is a non-collection resource.
func (f *FS) IsFile(path string) (bool, error) {
	info, err := f.GetInfo(path)
	if fserrors.IsKind(err, fserrors.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir, nil
}

// ListDir lists entry names in a collection.
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

// ListDirInfo lists entry metadata in a collection via a depth-one
// PROPFIND.
func (f *FS) ListDirInfo(path string, opts vfs.ListOptions) ([]vfs.Info, error) {
	p, err := fspath.Abs(path)
	if err != nil {
		return nil, err
	}
	ms, err := f.propfind("listdir", path, "1")
	if err != nil {
		return nil, err
	}
	var infos []vfs.Info
	for _, r := range ms.Responses {
		rp, ok := f.hrefPath(r.Href)
		if !ok || rp == p {
			continue
		}
		infos = append(infos, infoFromResponse(rp, r))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return vfs.FilterEntries(infos, opts)
}

// GetInfo returns metadata via a depth-zero PROPFIND.
func (f *FS) GetInfo(path string) (vfs.Info, error) {
	p, err := fspath.Abs(path)
	if err != nil {
		return vfs.Info{}, err
	}
	ms, err := f.propfind("getinfo", path, "0")
	if err != nil {
		return vfs.Info{}, err
	}
	if len(ms.Responses) == 0 {
		return vfs.Info{}, fserrors.NotFound(path)
	}
	return infoFromResponse(p, ms.Responses[0]), nil
}

// MakeDir creates a collection with MKCOL.
func (f *FS) MakeDir(path string, opts vfs.MakeDirOptions) error {
	if opts.Recursive {
		ancestors, err := fspath.Ancestors(path)
		if err != nil {
			return err
		}
		for _, anc := range ancestors[1:] {
			err := f.MakeDir(anc, vfs.MakeDirOptions{AllowRecreate: true})
			if err != nil {
				return fserrors.WithPaths(err, path, "")
			}
		}
		return nil
	}
	resp, err := f.do("makedir", "MKCOL", path, nil, nil)
	if err != nil {
		if opts.AllowRecreate && fserrors.IsKind(err, fserrors.KindExists) {
			if isDir, derr := f.IsDir(path); derr == nil && isDir {
				return nil
			}
		}
		return err
	}
	resp.Body.Close()
	return nil
}

// Remove deletes a file with DELETE.
func (f *FS) Remove(path string) error {
	isDir, err := f.IsDir(path)
	if err != nil {
		return err
	}
	if isDir {
		return fserrors.Invalid(path)
	}
	resp, err := f.do("remove", http.MethodDelete, path, nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// RemoveDir deletes a collection. DELETE on a collection is always deep
// in WebDAV, so a non-forced removal checks emptiness first.
func (f *FS) RemoveDir(path string, opts vfs.RemoveDirOptions) error {
	p, err := fspath.Abs(path)
	if err != nil {
		return err
	}
	if p == "/" {
		return fserrors.Invalid(path)
	}
	isDir, err := f.IsDir(path)
	if err != nil {
		return err
	}
	if !isDir {
		if exists, eerr := f.Exists(path); eerr == nil && !exists {
			return fserrors.NotFound(path)
		}
		return fserrors.Invalid(path)
	}
	if !opts.Force {
		entries, err := f.ListDir(path, vfs.ListOptions{})
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			return fserrors.NotEmpty(path)
		}
	}
	resp, err := f.do("removedir", http.MethodDelete, path, nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if opts.Recursive {
		f.pruneAncestors(p)
	}
	return nil
}

func (f *FS) pruneAncestors(p string) {
	ancestors, err := fspath.Ancestors(fspath.Dir(p))
	if err != nil {
		return
	}
	for i := len(ancestors) - 1; i > 0; i-- {
		entries, err := f.ListDir(ancestors[i], vfs.ListOptions{})
		if err != nil || len(entries) > 0 {
			return
		}
		if f.RemoveDir(ancestors[i], vfs.RemoveDirOptions{}) != nil {
			return
		}
	}
}

// Rename moves an entry within its directory using MOVE.
func (f *FS) Rename(src, dst string) error {
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

// MoveNative relocates an entry with a single MOVE request.
func (f *FS) MoveNative(src, dst string, overwrite bool) error {
	dest, err := f.url(dst)
	if err != nil {
		return err
	}
	hdr := make(http.Header)
	hdr.Set("Destination", dest)
	hdr.Set("Overwrite", overwriteHeader(overwrite))
	resp, err := f.do("move", "MOVE", src, nil, hdr)
	if err != nil {
		return fserrors.WithPaths(err, src, dst)
	}
	resp.Body.Close()
	return nil
}

// CopyNative duplicates an entry with a single COPY request.
func (f *FS) CopyNative(src, dst string, overwrite bool) error {
	dest, err := f.url(dst)
	if err != nil {
		return err
	}
	hdr := make(http.Header)
	hdr.Set("Destination", dest)
	hdr.Set("Overwrite", overwriteHeader(overwrite))
	resp, err := f.do("copy", "COPY", src, nil, hdr)
	if err != nil {
		return fserrors.WithPaths(err, src, dst)
	}
	resp.Body.Close()
	return nil
}

func overwriteHeader(overwrite bool) string {
	if overwrite {
		return "T"
	}
	return "F"
}

// SetContents replaces a file's contents with a single PUT.
func (f *FS) SetContents(path string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fserrors.Remote("setcontents", err)
	}
	resp, err := f.do("setcontents", http.MethodPut, path, bytes.NewReader(data), nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
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
