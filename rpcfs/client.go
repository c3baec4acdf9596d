package rpcfs

import (
	"fmt"
	"io"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/remotefs"
	"github.com/anyfs/anyfs/vfs"
)

// Client is a filesystem whose every operation round-trips to a remote
// server over a websocket. Requests are serialized on the connection;
// a transport failure surfaces as a remote error.
type Client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
	meta   vfs.Meta
	closed bool
}

// Dial connects to a server at a websocket URL.
func Dial(url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fserrors.Remote("dial", err)
	}
	c := &Client{conn: conn}
	resp, err := c.call(request{Op: opMeta})
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.meta = vfs.Meta(resp.Meta)
	if c.meta == nil {
		c.meta = vfs.Meta{}
	}
	c.meta[vfs.MetaNetwork] = true
	return c, nil
}

func init() {
	remotefs.Register("ws", dialDescriptor)
	remotefs.Register("wss", dialDescriptor)
}

// dialDescriptor connects from stored parameters and wraps the client
// in a connection manager so drops are probed and recovered.
func dialDescriptor(d remotefs.Descriptor) (vfs.FS, error) {
	host := d.Host
	if d.Port != 0 {
		host = fmt.Sprintf("%s:%d", d.Host, d.Port)
	}
	root := d.Root
	if root == "" {
		root = "/"
	}
	client, err := Dial(d.Scheme + "://" + host + root)
	if err != nil {
		return nil, err
	}
	return remotefs.NewConnManager(client, nil), nil
}

// call sends one request and waits for its response frame.
func (c *Client) call(req request) (response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return response{}, fserrors.Closed(req.Op)
	}
	c.nextID++
	req.ID = c.nextID
	frame, err := sonic.Marshal(req)
	if err != nil {
		return response{}, fserrors.Remote(req.Op, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return response{}, fserrors.Remote(req.Op, err)
	}
	for {
		_, in, err := c.conn.ReadMessage()
		if err != nil {
			return response{}, fserrors.Remote(req.Op, err)
		}
		var resp response
		if err := sonic.Unmarshal(in, &resp); err != nil {
			return response{}, fserrors.Remote(req.Op, err)
		}
		if resp.ID != req.ID {
			// Stale frame from an interrupted call; skip it.
			continue
		}
		if resp.Err != nil {
			return resp, fromWire(resp.Err)
		}
		return resp, nil
	}
}

// Open opens a remote handle.
func (c *Client) Open(path string, mode vfs.Mode) (vfs.File, error) {
	resp, err := c.call(request{Op: opOpen, Path: path, Mode: mode.String()})
	if err != nil {
		return nil, err
	}
	return &clientFile{client: c, handle: resp.Handle}, nil
}

// Exists queries existence remotely.
func (c *Client) Exists(path string) (bool, error) {
	resp, err := c.call(request{Op: opExists, Path: path})
	return resp.Bool, err
}

// IsDir queries directory-ness remotely.
func (c *Client) IsDir(path string) (bool, error) {
	resp, err := c.call(request{Op: opIsDir, Path: path})
	return resp.Bool, err
}

// IsFile queries file-ness remotely.
func (c *Client) IsFile(path string) (bool, error) {
	resp, err := c.call(request{Op: opIsFile, Path: path})
	return resp.Bool, err
}

// ListDir lists entry names remotely.
func (c *Client) ListDir(path string, opts vfs.ListOptions) ([]string, error) {
	resp, err := c.call(request{Op: opListDir, Path: path, List: opts})
	return resp.Names, err
}

// ListDirInfo lists entry metadata remotely.
func (c *Client) ListDirInfo(path string, opts vfs.ListOptions) ([]vfs.Info, error) {
	resp, err := c.call(request{Op: opListDirInfo, Path: path, List: opts})
	return resp.Infos, err
}

// MakeDir creates a directory remotely.
func (c *Client) MakeDir(path string, opts vfs.MakeDirOptions) error {
	_, err := c.call(request{Op: opMakeDir, Path: path, MkDir: opts})
	return err
}

// Remove deletes a file remotely.
func (c *Client) Remove(path string) error {
	_, err := c.call(request{Op: opRemove, Path: path})
	return err
}

// RemoveDir deletes a directory remotely.
func (c *Client) RemoveDir(path string, opts vfs.RemoveDirOptions) error {
	_, err := c.call(request{Op: opRemoveDir, Path: path, RmDir: opts})
	return err
}

// Rename renames an entry remotely.
func (c *Client) Rename(src, dst string) error {
	_, err := c.call(request{Op: opRename, Path: src, Dst: dst})
	return err
}

// GetInfo fetches metadata remotely.
func (c *Client) GetInfo(path string) (vfs.Info, error) {
	resp, err := c.call(request{Op: opGetInfo, Path: path})
	if err != nil {
		return vfs.Info{}, err
	}
	if resp.Info == nil {
		return vfs.Info{}, fserrors.Remote("getinfo", fmt.Errorf("missing info payload"))
	}
	return *resp.Info, nil
}

// SetContents replaces file contents remotely in one frame.
func (c *Client) SetContents(path string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fserrors.Remote("setcontents", err)
	}
	_, err = c.call(request{Op: opSetContents, Path: path, Data: data})
	return err
}

// Meta reports the server's capabilities as seen at dial time.
func (c *Client) Meta() vfs.Meta {
	return c.meta.Clone()
}

// Close shuts the connection down. Closing twice is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// clientFile proxies handle operations to the server.
type clientFile struct {
	client *Client
	handle uint64
	closed bool
}

func (f *clientFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fserrors.Closed("read")
	}
	resp, err := f.client.call(request{Op: opRead, Handle: f.handle, Count: len(p)})
	if err != nil {
		return 0, err
	}
	n := copy(p, resp.Data)
	if resp.EOF {
		return n, io.EOF
	}
	return n, nil
}

func (f *clientFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, fserrors.Closed("write")
	}
	resp, err := f.client.call(request{Op: opWrite, Handle: f.handle, Data: p})
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (f *clientFile) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, fserrors.Closed("seek")
	}
	resp, err := f.client.call(request{Op: opSeek, Handle: f.handle, Offset: offset, Whence: whence})
	if err != nil {
		return 0, err
	}
	return resp.Offset, nil
}

func (f *clientFile) Truncate(size int64) error {
	if f.closed {
		return fserrors.Closed("truncate")
	}
	_, err := f.client.call(request{Op: opTruncate, Handle: f.handle, Size: size})
	return err
}

func (f *clientFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	_, err := f.client.call(request{Op: opCloseF, Handle: f.handle})
	return err
}
