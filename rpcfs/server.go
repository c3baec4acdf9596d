package rpcfs

import (
	"io"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/vfs"
)

// Server serves a filesystem to websocket clients. Each connection gets
// its own handle table; handles left open when the connection drops are
// closed with it.
type Server struct {
	fsys     vfs.FS
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// ServerOption configures a server.
type ServerOption func(*Server)

// WithServerLogger sets the connection lifecycle logger.
func WithServerLogger(log *zap.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// NewServer serves fsys over websocket upgrades.
func NewServer(fsys vfs.FS, opts ...ServerOption) *Server {
	s := &Server{
		fsys: fsys,
		log:  zap.NewNop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades the request and runs the frame loop until the
// client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	s.log.Info("client connected", zap.String("remote", conn.RemoteAddr().String()))
	sess := &session{fsys: s.fsys, handles: make(map[uint64]vfs.File)}
	defer func() {
		sess.closeAll()
		conn.Close()
		s.log.Info("client disconnected", zap.String("remote", conn.RemoteAddr().String()))
	}()
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req request
		if err := sonic.Unmarshal(frame, &req); err != nil {
			s.log.Warn("bad frame", zap.Error(err))
			return
		}
		resp := sess.handle(req)
		out, err := sonic.Marshal(resp)
		if err != nil {
			s.log.Warn("marshal failed", zap.Error(err))
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			return
		}
	}
}

// session is per-connection server state.
type session struct {
	fsys vfs.FS

	mu      sync.Mutex
	handles map[uint64]vfs.File
	nextID  uint64
}

func (s *session) put(f vfs.File) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.handles[s.nextID] = f
	return s.nextID
}

func (s *session) get(id uint64) (vfs.File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.handles[id]
	return f, ok
}

func (s *session) drop(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, id)
}

func (s *session) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, f := range s.handles {
		f.Close()
		delete(s.handles, id)
	}
}

func (s *session) handle(req request) response {
	resp := response{ID: req.ID}
	switch req.Op {
	case opOpen:
		mode, ok := parseMode(req.Mode)
		if !ok {
			resp.Err = toWire(fserrors.Invalid(req.Path))
			return resp
		}
		f, err := s.fsys.Open(req.Path, mode)
		if err != nil {
			resp.Err = toWire(err)
			return resp
		}
		resp.Handle = s.put(f)
	case opExists:
		ok, err := s.fsys.Exists(req.Path)
		resp.Bool, resp.Err = ok, toWire(err)
	case opIsDir:
		ok, err := s.fsys.IsDir(req.Path)
		resp.Bool, resp.Err = ok, toWire(err)
	case opIsFile:
		ok, err := s.fsys.IsFile(req.Path)
		resp.Bool, resp.Err = ok, toWire(err)
	case opListDir:
		names, err := s.fsys.ListDir(req.Path, req.List)
		resp.Names, resp.Err = names, toWire(err)
	case opListDirInfo:
		infos, err := s.fsys.ListDirInfo(req.Path, req.List)
		resp.Infos, resp.Err = infos, toWire(err)
	case opMakeDir:
		resp.Err = toWire(s.fsys.MakeDir(req.Path, req.MkDir))
	case opRemove:
		resp.Err = toWire(s.fsys.Remove(req.Path))
	case opRemoveDir:
		resp.Err = toWire(s.fsys.RemoveDir(req.Path, req.RmDir))
	case opRename:
		resp.Err = toWire(s.fsys.Rename(req.Path, req.Dst))
	case opGetInfo:
		info, err := s.fsys.GetInfo(req.Path)
		if err != nil {
			resp.Err = toWire(err)
			return resp
		}
		resp.Info = &info
	case opSetContents:
		resp.Err = toWire(vfs.SetContentsBytes(s.fsys, req.Path, req.Data))
	case opMeta:
		resp.Meta = map[string]any(s.fsys.Meta())
	case opRead:
		f, ok := s.get(req.Handle)
		if !ok {
			resp.Err = toWire(fserrors.Closed("read"))
			return resp
		}
		buf := make([]byte, req.Count)
		n, err := f.Read(buf)
		resp.Data = buf[:n]
		if err == io.EOF {
			resp.EOF = true
		} else {
			resp.Err = toWire(err)
		}
	case opWrite:
		f, ok := s.get(req.Handle)
		if !ok {
			resp.Err = toWire(fserrors.Closed("write"))
			return resp
		}
		n, err := f.Write(req.Data)
		resp.Count, resp.Err = n, toWire(err)
	case opSeek:
		f, ok := s.get(req.Handle)
		if !ok {
			resp.Err = toWire(fserrors.Closed("seek"))
			return resp
		}
		pos, err := f.Seek(req.Offset, req.Whence)
		resp.Offset, resp.Err = pos, toWire(err)
	case opTruncate:
		f, ok := s.get(req.Handle)
		if !ok {
			resp.Err = toWire(fserrors.Closed("truncate"))
			return resp
		}
		resp.Err = toWire(f.Truncate(req.Size))
	case opCloseF:
		f, ok := s.get(req.Handle)
		if ok {
			resp.Err = toWire(f.Close())
			s.drop(req.Handle)
		}
	default:
		resp.Err = toWire(fserrors.Unsupported(req.Op))
	}
	return resp
}
