package cachefs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anyfs/anyfs/cachefs"
	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/internal/testutil"
	"github.com/anyfs/anyfs/memfs"
	"github.com/anyfs/anyfs/vfs"
)

func setup(t *testing.T, timeout time.Duration, opts ...cachefs.Option) (*cachefs.FS, *testutil.CountingFS) {
	t.Helper()
	mem := memfs.New()
	t.Cleanup(func() { mem.Close() })
	require.NoError(t, mem.MakeDir("/d", vfs.MakeDirOptions{}))
	require.NoError(t, vfs.SetContentsBytes(mem, "/d/f", []byte("data")))
	counting := testutil.NewCounting(mem)
	return cachefs.New(counting, timeout, opts...), counting
}

func TestRepeatQueriesHitOnce(t *testing.T) {
	fs, counting := setup(t, 0)

	for i := 0; i < 5; i++ {
		info, err := fs.GetInfo("/d/f")
		require.NoError(t, err)
		assert.Equal(t, int64(4), info.Size)
	}
	assert.Equal(t, 1, counting.Count("getinfo"))

	for i := 0; i < 3; i++ {
		_, err := fs.ListDir("/d", vfs.ListOptions{})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, counting.Count("listdir"))
}

func TestDistinctOptionsCacheSeparately(t *testing.T) {
	fs, counting := setup(t, 0)

	_, err := fs.ListDir("/d", vfs.ListOptions{})
	require.NoError(t, err)
	_, err = fs.ListDir("/d", vfs.ListOptions{Absolute: true})
	require.NoError(t, err)
	_, err = fs.ListDir("/d", vfs.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, counting.Count("listdir"))
}

func TestFailuresAreCached(t *testing.T) {
	fs, counting := setup(t, 0)

	for i := 0; i < 3; i++ {
		_, err := fs.GetInfo("/d/missing")
		assert.True(t, fserrors.IsKind(err, fserrors.KindNotFound))
	}
	assert.Equal(t, 1, counting.Count("getinfo"))
}

func TestMutationInvalidatesSubtreeAndAncestors(t *testing.T) {
	fs, counting := setup(t, 0)

	_, err := fs.GetInfo("/d/f")
	require.NoError(t, err)
	_, err = fs.ListDir("/d", vfs.ListOptions{})
	require.NoError(t, err)
	_, err = fs.ListDir("/", vfs.ListOptions{})
	require.NoError(t, err)
	counting.Reset()

	require.NoError(t, vfs.SetContentsBytes(fs, "/d/f", []byte("rewritten")))

	// The file's own entries and every ancestor listing are gone.
	info, err := fs.GetInfo("/d/f")
	require.NoError(t, err)
	assert.Equal(t, int64(9), info.Size)
	_, err = fs.ListDir("/d", vfs.ListOptions{})
	require.NoError(t, err)
	_, err = fs.ListDir("/", vfs.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, counting.Count("getinfo"))
	assert.Equal(t, 2, counting.Count("listdir"))
}

func TestCoherenceAfterRemove(t *testing.T) {
	fs, _ := setup(t, 0)

	exists, err := fs.Exists("/d/f")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, fs.Remove("/d/f"))

	exists, err = fs.Exists("/d/f")
	require.NoError(t, err)
	assert.False(t, exists)

	names, err := fs.ListDir("/d", vfs.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRenameInvalidatesBothPaths(t *testing.T) {
	fs, _ := setup(t, 0)

	exists, err := fs.Exists("/d/f")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = fs.Exists("/d/g")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, fs.Rename("/d/f", "/d/g"))

	exists, err = fs.Exists("/d/f")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = fs.Exists("/d/g")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestTimeoutExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	fs, counting := setup(t, time.Minute, cachefs.WithClock(clock))

	_, err := fs.GetInfo("/d/f")
	require.NoError(t, err)
	_, err = fs.GetInfo("/d/f")
	require.NoError(t, err)
	assert.Equal(t, 1, counting.Count("getinfo"))

	now = now.Add(2 * time.Minute)
	_, err = fs.GetInfo("/d/f")
	require.NoError(t, err)
	assert.Equal(t, 2, counting.Count("getinfo"))
}

func TestFlush(t *testing.T) {
	fs, counting := setup(t, 0)

	_, err := fs.GetInfo("/d/f")
	require.NoError(t, err)
	fs.Flush()
	_, err = fs.GetInfo("/d/f")
	require.NoError(t, err)
	assert.Equal(t, 2, counting.Count("getinfo"))
}
