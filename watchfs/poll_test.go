package watchfs_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/memfs"
	"github.com/anyfs/anyfs/vfs"
	"github.com/anyfs/anyfs/watchfs"
)

// next pulls events until one matches, failing the test on timeout.
func next(t *testing.T, it *watchfs.Iter, want watchfs.Kind, path string) watchfs.Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ev, err := it.Next(time.Second)
		if fserrors.IsKind(err, fserrors.KindTimeout) {
			continue
		}
		require.NoError(t, err)
		if ev.Kind == want && ev.Path == path {
			return ev
		}
	}
	t.Fatalf("no %v event for %s", want, path)
	return watchfs.Event{}
}

func TestPollingSeesExternalChanges(t *testing.T) {
	mem := memfs.New()
	fs := watchfs.NewPolling(mem, 10*time.Millisecond)
	defer fs.Close()

	it, err := fs.Changes("/", nil, true)
	require.NoError(t, err)
	defer it.Close()

	// Mutate the backend directly, behind the wrapper's back.
	require.NoError(t, mem.MakeDir("/outside", vfs.MakeDirOptions{}))
	next(t, it, watchfs.Created, "/outside")

	require.NoError(t, vfs.SetContentsBytes(mem, "/outside/f", []byte("v1")))
	next(t, it, watchfs.Created, "/outside/f")

	require.NoError(t, vfs.SetContentsBytes(mem, "/outside/f", []byte("longer contents")))
	ev := next(t, it, watchfs.Modified, "/outside/f")
	assert.True(t, ev.DataChanged)

	require.NoError(t, mem.Remove("/outside/f"))
	next(t, it, watchfs.Removed, "/outside/f")
}

func TestPollingDoesNotDuplicateInterceptedChanges(t *testing.T) {
	fs := watchfs.NewPolling(memfs.New(), 10*time.Millisecond)
	defer fs.Close()

	var created atomic.Int32
	w, err := fs.AddWatcher(func(ev watchfs.Event) {
		if ev.Kind == watchfs.Created && ev.Path == "/f" {
			created.Add(1)
		}
	}, "/", nil, true)
	require.NoError(t, err)
	defer fs.DelWatcher(w)

	// A change made through the wrapper is folded into the snapshot, so
	// later poll passes stay quiet about it.
	require.NoError(t, vfs.SetContentsBytes(fs, "/f", []byte("x")))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), created.Load())
}

func TestPollingCloseJoinsLoop(t *testing.T) {
	fs := watchfs.NewPolling(memfs.New(), time.Millisecond)
	require.NoError(t, fs.Close())
}
