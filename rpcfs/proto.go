// Package rpcfs tunnels the filesystem contract over a websocket. Each
// request is a single JSON frame answered by a single JSON frame; file
// handles live on the server and are addressed by ID. The client side
// reports transport failures as remote errors so a connection manager
// can track liveness.
package rpcfs

import (
	"errors"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/vfs"
)

// Operation names carried in request frames.
const (
	opOpen        = "open"
	opExists      = "exists"
	opIsDir       = "isdir"
	opIsFile      = "isfile"
	opListDir     = "listdir"
	opListDirInfo = "listdirinfo"
	opMakeDir     = "makedir"
	opRemove      = "remove"
	opRemoveDir   = "removedir"
	opRename      = "rename"
	opGetInfo     = "getinfo"
	opSetContents = "setcontents"
	opMeta        = "meta"

	opRead     = "read"
	opWrite    = "write"
	opSeek     = "seek"
	opTruncate = "truncate"
	opCloseF   = "closefile"
)

// request is one client frame.
type request struct {
	ID   uint64 `json:"id"`
	Op   string `json:"op"`
	Path string `json:"path,omitempty"`
	Dst  string `json:"dst,omitempty"`
	Mode string `json:"mode,omitempty"`

	List   vfs.ListOptions      `json:"list,omitempty"`
	MkDir  vfs.MakeDirOptions   `json:"mkdir,omitempty"`
	RmDir  vfs.RemoveDirOptions `json:"rmdir,omitempty"`
	Data   []byte               `json:"data,omitempty"`
	Handle uint64               `json:"handle,omitempty"`
	Offset int64                `json:"offset,omitempty"`
	Whence int                  `json:"whence,omitempty"`
	Count  int                  `json:"count,omitempty"`
	Size   int64                `json:"size,omitempty"`
}

// response is one server frame.
type response struct {
	ID  uint64     `json:"id"`
	Err *wireError `json:"err,omitempty"`

	Bool   bool           `json:"bool,omitempty"`
	Names  []string       `json:"names,omitempty"`
	Infos  []vfs.Info     `json:"infos,omitempty"`
	Info   *vfs.Info      `json:"info,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
	Data   []byte         `json:"data,omitempty"`
	Handle uint64         `json:"handle,omitempty"`
	Offset int64          `json:"offset,omitempty"`
	EOF    bool           `json:"eof,omitempty"`
	Count  int            `json:"count,omitempty"`
}

// wireError carries a contract error across the connection.
type wireError struct {
	Kind  int    `json:"kind"`
	Op    string `json:"op,omitempty"`
	Path  string `json:"path,omitempty"`
	Path2 string `json:"path2,omitempty"`
	Msg   string `json:"msg,omitempty"`
}

func toWire(err error) *wireError {
	if err == nil {
		return nil
	}
	var fe *fserrors.Error
	if errors.As(err, &fe) {
		return &wireError{
			Kind:  int(fe.Kind),
			Op:    fe.Op,
			Path:  fe.Path,
			Path2: fe.Path2,
			Msg:   fe.Msg,
		}
	}
	return &wireError{Kind: int(fserrors.KindRemote), Msg: err.Error()}
}

func fromWire(we *wireError) error {
	if we == nil {
		return nil
	}
	return &fserrors.Error{
		Kind:  fserrors.Kind(we.Kind),
		Op:    we.Op,
		Path:  we.Path,
		Path2: we.Path2,
		Msg:   we.Msg,
	}
}

func parseMode(s string) (vfs.Mode, bool) {
	switch s {
	case "r":
		return vfs.ModeRead, true
	case "w":
		return vfs.ModeWrite, true
	case "a":
		return vfs.ModeAppend, true
	case "rw":
		return vfs.ModeReadWrite, true
	}
	return 0, false
}
