package watchfs

import (
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anyfs/anyfs/fspath"
	"github.com/anyfs/anyfs/internal/monitoring"
	"github.com/anyfs/anyfs/vfs"
	"github.com/anyfs/anyfs/wrapfs"
)

// FS publishes change events for every mutation performed through it.
// Events fire after the underlying operation commits; a failed operation
// publishes nothing.
type FS struct {
	*wrapfs.FS

	log     *zap.Logger
	metrics *monitoring.Metrics

	mu       sync.Mutex
	watchers map[string]*Watcher

	// publish routes events to dispatch by default; the polling wrapper
	// hooks it to keep its snapshot coherent with intercepted changes.
	publish func(Event)
}

// Option configures a watchable filesystem.
type Option func(*FS)

// WithLogger sets the logger used by the notification machinery.
func WithLogger(log *zap.Logger) Option {
	return func(w *FS) { w.log = log }
}

// New wraps inner so that mutations performed through the wrapper are
// observable.
func New(inner vfs.FS, opts ...Option) *FS {
	w := &FS{
		FS:       wrapfs.New(inner),
		log:      zap.NewNop(),
		metrics:  monitoring.Default(),
		watchers: make(map[string]*Watcher),
	}
	w.publish = w.dispatch
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AddWatcher registers fn for events under path. A non-recursive watcher
// sees events on the watched path itself and its immediate children; a
// recursive one sees the whole subtree. An empty kinds slice subscribes
// to everything.
func (w *FS) AddWatcher(fn func(Event), path string, kinds []Kind, recursive bool) (*Watcher, error) {
	p, err := fspath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher := newWatcher(fn, p, kinds, recursive)
	w.mu.Lock()
	w.watchers[watcher.ID] = watcher
	w.mu.Unlock()
	w.metrics.WatchersActive.Inc()
	w.log.Debug("watcher added",
		zap.String("id", watcher.ID),
		zap.String("path", p),
		zap.Bool("recursive", recursive))
	return watcher, nil
}

// DelWatcher removes a watcher. Removing an unknown watcher is a no-op.
func (w *FS) DelWatcher(watcher *Watcher) {
	w.mu.Lock()
	_, ok := w.watchers[watcher.ID]
	delete(w.watchers, watcher.ID)
	w.mu.Unlock()
	if ok {
		w.metrics.WatchersActive.Dec()
		w.log.Debug("watcher removed", zap.String("id", watcher.ID))
	}
}

// matches reports whether the watcher covers the event path.
func (w *Watcher) matches(path string) bool {
	if path == w.Path {
		return true
	}
	if w.Recursive {
		return fspath.IsPrefix(w.Path, path)
	}
	return fspath.Dir(path) == w.Path
}

// Notify publishes an event to every matching watcher. Callbacks run on
// the publishing goroutine.
func (w *FS) Notify(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	w.publish(ev)
}

func (w *FS) dispatch(ev Event) {
	w.mu.Lock()
	var targets []*Watcher
	for _, watcher := range w.watchers {
		if watcher.wants(ev.Kind) && watcher.matches(ev.Path) {
			targets = append(targets, watcher)
		}
	}
	w.mu.Unlock()
	if len(targets) == 0 {
		return
	}
	w.metrics.EventsPublished.WithLabelValues(ev.Kind.String()).Inc()
	for _, watcher := range targets {
		watcher.fn(ev)
	}
}

// subtree snapshots every path under root, root included and sorted
// shallow-first. Used to expand directory moves and recursive removals
// into per-entry events.
func (w *FS) subtree(root string) []string {
	paths := []string{root}
	err := vfs.Walk(w.FS, root, func(dir string, files []vfs.Info) error {
		for _, f := range files {
			paths = append(paths, f.Path)
		}
		if dir != root {
			paths = append(paths, dir)
		}
		return nil
	})
	if err != nil {
		return []string{root}
	}
	return paths
}

// Open intercepts handle creation. Read opens publish Accessed; a
// writable open of a missing path publishes Created; the returned handle
// publishes Modified and Closed when it closes.
func (w *FS) Open(path string, mode vfs.Mode) (vfs.File, error) {
	p, err := fspath.Abs(path)
	if err != nil {
		return nil, err
	}
	existed := false
	if mode.Writable() {
		existed, _ = w.FS.Exists(p)
	}
	f, err := w.FS.Open(path, mode)
	if err != nil {
		return nil, err
	}
	if mode.Writable() && !existed {
		w.Notify(Event{Kind: Created, Path: p})
	}
	if mode == vfs.ModeRead {
		w.Notify(Event{Kind: Accessed, Path: p})
		return f, nil
	}
	return &watchedFile{File: f, fs: w, path: p}, nil
}

// watchedFile publishes Modified and Closed when a writable handle
// closes.
type watchedFile struct {
	vfs.File
	fs     *FS
	path   string
	wrote  bool
	closed bool
}

func (f *watchedFile) Write(p []byte) (int, error) {
	n, err := f.File.Write(p)
	if n > 0 {
		f.wrote = true
	}
	return n, err
}

func (f *watchedFile) Truncate(size int64) error {
	err := f.File.Truncate(size)
	if err == nil {
		f.wrote = true
	}
	return err
}

func (f *watchedFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	err := f.File.Close()
	if err == nil {
		if f.wrote {
			f.fs.Notify(Event{Kind: Modified, Path: f.path, DataChanged: true})
		}
		f.fs.Notify(Event{Kind: Closed, Path: f.path})
	}
	return err
}

// SetContents publishes Created or Modified depending on prior
// existence, then Closed.
func (w *FS) SetContents(path string, r io.Reader) error {
	p, err := fspath.Abs(path)
	if err != nil {
		return err
	}
	existed, _ := w.FS.Exists(p)
	if err := w.FS.SetContents(path, r); err != nil {
		return err
	}
	if existed {
		w.Notify(Event{Kind: Modified, Path: p, DataChanged: true})
	} else {
		w.Notify(Event{Kind: Created, Path: p})
	}
	w.Notify(Event{Kind: Closed, Path: p})
	return nil
}

// MakeDir publishes Created for directories that did not exist before.
func (w *FS) MakeDir(path string, opts vfs.MakeDirOptions) error {
	p, err := fspath.Abs(path)
	if err != nil {
		return err
	}
	existed, _ := w.FS.Exists(p)
	if err := w.FS.MakeDir(path, opts); err != nil {
		return err
	}
	if !existed {
		w.Notify(Event{Kind: Created, Path: p})
	}
	return nil
}

// Remove publishes Removed after deletion.
func (w *FS) Remove(path string) error {
	p, err := fspath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.FS.Remove(path); err != nil {
		return err
	}
	w.Notify(Event{Kind: Removed, Path: p})
	return nil
}

// RemoveDir publishes Removed for the directory. A forced removal
// publishes Removed for every entry the subtree held, deepest first.
func (w *FS) RemoveDir(path string, opts vfs.RemoveDirOptions) error {
	p, err := fspath.Abs(path)
	if err != nil {
		return err
	}
	// Force destroys subtree contents; each doomed entry gets its own
	// event.
	var doomed []string
	if opts.Force {
		doomed = w.subtree(p)
	}
	if err := w.FS.RemoveDir(path, opts); err != nil {
		return err
	}
	if opts.Force {
		for i := len(doomed) - 1; i >= 0; i-- {
			w.Notify(Event{Kind: Removed, Path: doomed[i]})
		}
	} else {
		w.Notify(Event{Kind: Removed, Path: p})
	}
	return nil
}

// Rename publishes MovedFrom at the old path and MovedTo at the new one.
// Renaming a directory publishes the pair for every entry it held.
func (w *FS) Rename(src, dst string) error {
	s, err := fspath.Abs(src)
	if err != nil {
		return err
	}
	d, err := fspath.Abs(dst)
	if err != nil {
		return err
	}
	var moved []string
	if isDir, _ := w.FS.IsDir(s); isDir {
		moved = w.subtree(s)
	} else {
		moved = []string{s}
	}
	if err := w.FS.Rename(src, dst); err != nil {
		return err
	}
	for _, old := range moved {
		now := d
		if old != s {
			joined, err := fspath.Join(d, old[len(s)+1:])
			if err != nil {
				continue
			}
			now = joined
		}
		w.Notify(Event{Kind: MovedFrom, Path: old, Other: now})
		w.Notify(Event{Kind: MovedTo, Path: now, Other: old})
	}
	return nil
}

// Close publishes a final Closed event at the root, then closes the
// wrapped filesystem and drops all watchers.
func (w *FS) Close() error {
	err := w.FS.Close()
	w.Notify(Event{Kind: Closed, Path: "/"})
	w.mu.Lock()
	n := len(w.watchers)
	w.watchers = make(map[string]*Watcher)
	w.mu.Unlock()
	for i := 0; i < n; i++ {
		w.metrics.WatchersActive.Dec()
	}
	return err
}
