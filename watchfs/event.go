// Package watchfs layers change notification over any filesystem.
//
// The wrapper intercepts mutating operations and publishes events to
// registered watchers after each operation commits. For backends that
// change behind the wrapper's back, a polling variant diffs periodic
// snapshots of the tree and publishes the difference.
package watchfs

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies a change event.
type Kind int

const (
	// Accessed fires when a file is opened for reading.
	Accessed Kind = iota
	// Created fires when a file or directory comes into existence.
	Created
	// Removed fires when a file or directory is deleted.
	Removed
	// Modified fires when file contents change.
	Modified
	// MovedFrom fires at the old path of a move.
	MovedFrom
	// MovedTo fires at the new path of a move.
	MovedTo
	// Closed fires when a written file handle closes, and at the root
	// when the filesystem itself closes.
	Closed
	// Error reports a failure inside the notification machinery, such
	// as a poll pass that could not read a directory.
	Error
)

var kindNames = map[Kind]string{
	Accessed:  "accessed",
	Created:   "created",
	Removed:   "removed",
	Modified:  "modified",
	MovedFrom: "moved_from",
	MovedTo:   "moved_to",
	Closed:    "closed",
	Error:     "error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event is a single observed change.
type Event struct {
	Kind Kind   `json:"kind"`
	Path string `json:"path"`
	// Other carries the counterpart path of a move: the destination for
	// MovedFrom, the source for MovedTo.
	Other string `json:"other,omitempty"`
	// DataChanged distinguishes content writes from metadata-only
	// modifications.
	DataChanged bool      `json:"data_changed,omitempty"`
	Err         error     `json:"-"`
	Time        time.Time `json:"time"`
}

// Watcher is a registered interest in a subtree.
type Watcher struct {
	// ID is assigned at registration and identifies the watcher for
	// removal.
	ID        string
	Path      string
	Kinds     []Kind // empty means all kinds
	Recursive bool
	fn        func(Event)
}

func newWatcher(fn func(Event), path string, kinds []Kind, recursive bool) *Watcher {
	return &Watcher{
		ID:        uuid.NewString(),
		Path:      path,
		Kinds:     append([]Kind(nil), kinds...),
		Recursive: recursive,
		fn:        fn,
	}
}

// wants reports whether the watcher subscribes to the event kind.
func (w *Watcher) wants(k Kind) bool {
	if len(w.Kinds) == 0 {
		return true
	}
	for _, want := range w.Kinds {
		if want == k {
			return true
		}
	}
	return false
}
