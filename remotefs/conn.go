package remotefs

import (
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/vfs"
	"github.com/anyfs/anyfs/wrapfs"
)

// ProbeFunc checks whether the remote is reachable again. It should be
// cheap and side-effect free.
type ProbeFunc func() error

// ConnManager wraps a network filesystem and tracks whether its remote
// side is reachable. Any operation failing with a remote error flips the
// state to disconnected and starts a background probe loop; once a probe
// succeeds the state flips back and waiters are released.
type ConnManager struct {
	*wrapfs.FS

	probe    ProbeFunc
	interval time.Duration
	log      *zap.Logger

	mu        sync.Mutex
	connected bool
	waiters   chan struct{} // closed when connectivity returns
	probing   bool
	stop      chan struct{}
	done      chan struct{}
}

// ConnOption configures a ConnManager.
type ConnOption func(*ConnManager)

// WithProbeInterval sets the delay between reconnect probes.
func WithProbeInterval(d time.Duration) ConnOption {
	return func(m *ConnManager) { m.interval = d }
}

// WithLogger sets the logger for connectivity transitions.
func WithLogger(log *zap.Logger) ConnOption {
	return func(m *ConnManager) { m.log = log }
}

// NewConnManager wraps inner, using probe to test reachability after a
// remote failure. The default probe queries the root for existence.
func NewConnManager(inner vfs.FS, probe ProbeFunc, opts ...ConnOption) *ConnManager {
	m := &ConnManager{
		FS:        wrapfs.New(inner),
		probe:     probe,
		interval:  5 * time.Second,
		log:       zap.NewNop(),
		connected: true,
		waiters:   make(chan struct{}),
	}
	close(m.waiters)
	if m.probe == nil {
		m.probe = func() error {
			_, err := inner.Exists("/")
			return err
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connected reports the last known reachability state.
func (m *ConnManager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Wait blocks until the remote is reachable or the timeout elapses,
// reporting which happened.
func (m *ConnManager) Wait(timeout time.Duration) bool {
	m.mu.Lock()
	ch := m.waiters
	m.mu.Unlock()
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

// note records the outcome of an operation, flipping connectivity on
// remote failures.
func (m *ConnManager) note(err error) error {
	if err == nil || !fserrors.IsKind(err, fserrors.KindRemote) {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		m.connected = false
		m.waiters = make(chan struct{})
		m.log.Warn("remote unreachable, probing", zap.Duration("interval", m.interval))
	}
	if !m.probing {
		m.probing = true
		m.stop = make(chan struct{})
		m.done = make(chan struct{})
		go m.probeLoop(m.stop, m.done)
	}
	return err
}

func (m *ConnManager) probeLoop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := m.probe(); err != nil {
				m.log.Debug("probe failed", zap.Error(err))
				continue
			}
			m.mu.Lock()
			m.connected = true
			m.probing = false
			close(m.waiters)
			m.mu.Unlock()
			m.log.Info("remote reachable again")
			return
		}
	}
}

// Open passes through and records the outcome.
func (m *ConnManager) Open(path string, mode vfs.Mode) (vfs.File, error) {
	f, err := m.FS.Open(path, mode)
	return f, m.note(err)
}

// Exists passes through and records the outcome.
func (m *ConnManager) Exists(path string) (bool, error) {
	ok, err := m.FS.Exists(path)
	return ok, m.note(err)
}

// IsDir passes through and records the outcome.
func (m *ConnManager) IsDir(path string) (bool, error) {
	ok, err := m.FS.IsDir(path)
	return ok, m.note(err)
}

// IsFile passes through and records the outcome.
func (m *ConnManager) IsFile(path string) (bool, error) {
	ok, err := m.FS.IsFile(path)
	return ok, m.note(err)
}

// ListDir passes through and records the outcome.
func (m *ConnManager) ListDir(path string, opts vfs.ListOptions) ([]string, error) {
	names, err := m.FS.ListDir(path, opts)
	return names, m.note(err)
}

// ListDirInfo passes through and records the outcome.
func (m *ConnManager) ListDirInfo(path string, opts vfs.ListOptions) ([]vfs.Info, error) {
	infos, err := m.FS.ListDirInfo(path, opts)
	return infos, m.note(err)
}

// GetInfo passes through and records the outcome.
func (m *ConnManager) GetInfo(path string) (vfs.Info, error) {
	info, err := m.FS.GetInfo(path)
	return info, m.note(err)
}

// SetContents passes through and records the outcome.
func (m *ConnManager) SetContents(path string, r io.Reader) error {
	return m.note(m.FS.SetContents(path, r))
}

// MakeDir passes through and records the outcome.
func (m *ConnManager) MakeDir(path string, opts vfs.MakeDirOptions) error {
	return m.note(m.FS.MakeDir(path, opts))
}

// Remove passes through and records the outcome.
func (m *ConnManager) Remove(path string) error {
	return m.note(m.FS.Remove(path))
}

// RemoveDir passes through and records the outcome.
func (m *ConnManager) RemoveDir(path string, opts vfs.RemoveDirOptions) error {
	return m.note(m.FS.RemoveDir(path, opts))
}

// Rename passes through and records the outcome.
func (m *ConnManager) Rename(src, dst string) error {
	return m.note(m.FS.Rename(src, dst))
}

// Close stops the probe loop, waits for it to exit, then closes the
// wrapped filesystem.
func (m *ConnManager) Close() error {
	m.mu.Lock()
	if m.probing {
		close(m.stop)
		done := m.done
		m.probing = false
		m.mu.Unlock()
		<-done
	} else {
		m.mu.Unlock()
	}
	return m.FS.Close()
}
