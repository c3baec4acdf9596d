package watchfs

import (
	"sync"
	"time"

	"github.com/anyfs/anyfs/fserrors"
)

// Iter consumes events from a watchable filesystem as a pull-style
// queue. Events are buffered without bound between calls to Next, so a
// slow consumer never blocks the filesystem.
type Iter struct {
	fs      *FS
	watcher *Watcher

	mu        sync.Mutex
	queue     []Event
	exhausted bool
	wake      chan struct{}
}

// Changes registers a watcher feeding an iterator. The iterator is
// exhausted permanently once a Closed event arrives, including the one
// the filesystem publishes when it closes.
func (w *FS) Changes(path string, kinds []Kind, recursive bool) (*Iter, error) {
	it := &Iter{
		fs:   w,
		wake: make(chan struct{}, 1),
	}
	watcher, err := w.AddWatcher(it.push, path, kinds, recursive)
	if err != nil {
		return nil, err
	}
	it.watcher = watcher
	return it, nil
}

func (it *Iter) push(ev Event) {
	it.mu.Lock()
	if it.exhausted {
		it.mu.Unlock()
		return
	}
	it.queue = append(it.queue, ev)
	if ev.Kind == Closed {
		it.exhausted = true
	}
	it.mu.Unlock()
	select {
	case it.wake <- struct{}{}:
	default:
	}
}

// Next returns the next buffered event, waiting up to timeout for one to
// arrive. A timeout returns a timeout error; an iterator that has
// delivered its Closed event returns a closed error forever after.
func (it *Iter) Next(timeout time.Duration) (Event, error) {
	deadline := time.Now().Add(timeout)
	for {
		it.mu.Lock()
		if len(it.queue) > 0 {
			ev := it.queue[0]
			it.queue = it.queue[1:]
			it.mu.Unlock()
			return ev, nil
		}
		if it.exhausted {
			it.mu.Unlock()
			return Event{}, fserrors.Closed("next")
		}
		it.mu.Unlock()

		wait := time.Until(deadline)
		if wait <= 0 {
			return Event{}, fserrors.Timeout("next")
		}
		select {
		case <-it.wake:
		case <-time.After(wait):
			return Event{}, fserrors.Timeout("next")
		}
	}
}

// Close unregisters the iterator's watcher and exhausts the queue.
func (it *Iter) Close() {
	it.fs.DelWatcher(it.watcher)
	it.mu.Lock()
	it.exhausted = true
	it.queue = nil
	it.mu.Unlock()
	select {
	case it.wake <- struct{}{}:
	default:
	}
}
