package watchfs

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/vfs"
)

// pollState is what a poll pass remembers about one path.
type pollState struct {
	isDir    bool
	size     int64
	modified time.Time
}

// PollingFS adds a background snapshot loop to a watchable filesystem so
// changes made outside the wrapper are observed too. Each pass walks the
// tree, compares it to the previous pass, and publishes the difference.
// Events published by interception update the snapshot in place, so a
// change seen through the wrapper is not reported a second time by the
// next pass.
type PollingFS struct {
	*FS

	interval time.Duration
	limiter  *rate.Limiter
	log      *zap.Logger

	mu       sync.Mutex
	snapshot map[string]pollState
	// recent holds paths whose changes were intercepted since the last
	// pass; the pass re-checks them against the backend and never
	// publishes for them, so intercepted changes are not reported twice
	// however they interleave with a running scan.
	recent map[string]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// PollOption configures a polling filesystem.
type PollOption func(*PollingFS)

// WithPollLogger sets the logger for the poll loop.
func WithPollLogger(log *zap.Logger) PollOption {
	return func(p *PollingFS) { p.log = log }
}

// WithPollRate caps directory stats per second across poll passes,
// keeping slow remote backends from being hammered. Zero means no cap.
func WithPollRate(perSecond float64) PollOption {
	return func(p *PollingFS) {
		if perSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewPolling wraps inner in a watchable filesystem backed by periodic
// snapshots. The first pass seeds the snapshot without publishing; every
// later pass publishes the difference from the pass before.
func NewPolling(inner vfs.FS, interval time.Duration, opts ...PollOption) *PollingFS {
	p := &PollingFS{
		FS:       New(inner),
		interval: interval,
		log:      zap.NewNop(),
		snapshot: make(map[string]pollState),
		recent:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.FS.log = p.log
	p.FS.publish = func(ev Event) {
		p.fold(ev)
		p.FS.dispatch(ev)
	}
	p.snapshot = p.scan()
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx)
	return p
}

func (p *PollingFS) loop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// scan walks the tree into a fresh snapshot. Directories that fail to
// list are retried once within the pass; a directory that is simply gone
// is treated as removed rather than an error.
func (p *PollingFS) scan() map[string]pollState {
	snap := make(map[string]pollState)
	queue := []string{"/"}
	retried := make(map[string]bool)
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]
		if p.limiter != nil {
			_ = p.limiter.Wait(context.Background())
		}
		infos, err := p.FS.FS.ListDirInfo(dir, vfs.ListOptions{})
		if err != nil {
			if fserrors.IsKind(err, fserrors.KindNotFound) {
				delete(snap, dir)
				continue
			}
			if !retried[dir] {
				retried[dir] = true
				queue = append(queue, dir)
				continue
			}
			p.metrics.PollErrors.Inc()
			p.emit(Event{Kind: Error, Path: dir, Err: err})
			continue
		}
		snap[dir] = pollState{isDir: true}
		for _, info := range infos {
			if info.IsDir {
				queue = append(queue, info.Path)
				continue
			}
			snap[info.Path] = pollState{
				size:     info.Size,
				modified: info.Modified,
			}
		}
	}
	return snap
}

// poll takes a snapshot and publishes the diff against the previous one.
func (p *PollingFS) poll(ctx context.Context) {
	p.metrics.PollRuns.Inc()
	fresh := p.scan()
	if ctx.Err() != nil {
		return
	}

	p.mu.Lock()
	recent := p.recent
	p.recent = make(map[string]struct{})
	// Intercepted paths may have changed mid-scan; re-check them so the
	// new snapshot reflects the backend, not a stale listing.
	for path := range recent {
		if info, err := p.FS.FS.GetInfo(path); err != nil {
			delete(fresh, path)
		} else {
			fresh[path] = pollState{isDir: info.IsDir, size: info.Size, modified: info.Modified}
		}
	}
	old := p.snapshot
	p.snapshot = fresh
	p.mu.Unlock()

	var created, removed, modified []string
	for path, state := range fresh {
		if _, seen := recent[path]; seen {
			continue
		}
		prev, ok := old[path]
		if !ok {
			created = append(created, path)
			continue
		}
		if !state.isDir && (state.size != prev.size || !state.modified.Equal(prev.modified)) {
			modified = append(modified, path)
		}
	}
	for path := range old {
		if _, seen := recent[path]; seen {
			continue
		}
		if _, ok := fresh[path]; !ok {
			removed = append(removed, path)
		}
	}
	// Shallow-first for creations, deepest-first for removals, so
	// parents are reported before their contents and vice versa.
	sort.Strings(created)
	sort.Sort(sort.Reverse(sort.StringSlice(removed)))
	sort.Strings(modified)

	for _, path := range created {
		p.emit(Event{Kind: Created, Path: path})
	}
	for _, path := range modified {
		p.emit(Event{Kind: Modified, Path: path, DataChanged: true})
	}
	for _, path := range removed {
		p.emit(Event{Kind: Removed, Path: path})
	}
	if len(created)+len(modified)+len(removed) > 0 {
		p.log.Debug("poll pass published changes",
			zap.Int("created", len(created)),
			zap.Int("modified", len(modified)),
			zap.Int("removed", len(removed)))
	}
}

// emit delivers one of the poller's own events straight to watchers.
// These never pass through fold: marking a poller-reported path as
// recent would make the next pass skip it and swallow any external
// change made in between.
func (p *PollingFS) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	p.FS.dispatch(ev)
}

// fold updates the snapshot for an intercepted event so the next poll
// pass does not report the same change again.
func (p *PollingFS) fold(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch ev.Kind {
	case Created, Modified, MovedTo:
		p.record(ev.Path)
		p.recent[ev.Path] = struct{}{}
	case Removed, MovedFrom:
		p.forget(ev.Path)
		p.recent[ev.Path] = struct{}{}
	}
}

// record refreshes the snapshot entry for path from the backend.
// Callers hold p.mu.
func (p *PollingFS) record(path string) {
	info, err := p.FS.FS.GetInfo(path)
	if err != nil {
		delete(p.snapshot, path)
		return
	}
	p.snapshot[path] = pollState{
		isDir:    info.IsDir,
		size:     info.Size,
		modified: info.Modified,
	}
}

// forget drops path and anything under it from the snapshot. Callers
// hold p.mu.
func (p *PollingFS) forget(path string) {
	for cached := range p.snapshot {
		if cached == path || (len(cached) > len(path) && cached[:len(path)] == path && cached[len(path)] == '/') {
			delete(p.snapshot, cached)
		}
	}
}

// Close stops the poll loop, waits for it to exit, then closes the
// wrapped filesystem.
func (p *PollingFS) Close() error {
	p.cancel()
	<-p.done
	return p.FS.Close()
}
