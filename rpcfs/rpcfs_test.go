package rpcfs_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/memfs"
	"github.com/anyfs/anyfs/rpcfs"
	"github.com/anyfs/anyfs/vfs"
)

func dialed(t *testing.T) (*rpcfs.Client, *memfs.FS) {
	t.Helper()
	backing := memfs.New()
	srv := httptest.NewServer(rpcfs.NewServer(backing))
	t.Cleanup(srv.Close)

	client, err := rpcfs.Dial("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, backing
}

func TestRoundTrip(t *testing.T) {
	client, backing := dialed(t)

	require.NoError(t, client.MakeDir("/d", vfs.MakeDirOptions{}))
	require.NoError(t, vfs.SetContentsBytes(client, "/d/f", []byte("over the socket")))

	data, err := vfs.GetContents(client, "/d/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("over the socket"), data)

	// The server applied the operation to the backing store.
	data, err = vfs.GetContents(backing, "/d/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("over the socket"), data)
}

func TestQueries(t *testing.T) {
	client, backing := dialed(t)
	require.NoError(t, backing.MakeDir("/d", vfs.MakeDirOptions{}))
	require.NoError(t, vfs.SetContentsBytes(backing, "/d/a", []byte("a")))
	require.NoError(t, vfs.SetContentsBytes(backing, "/d/b", []byte("bb")))

	exists, err := client.Exists("/d/a")
	require.NoError(t, err)
	assert.True(t, exists)
	isDir, err := client.IsDir("/d")
	require.NoError(t, err)
	assert.True(t, isDir)
	isFile, err := client.IsFile("/d/a")
	require.NoError(t, err)
	assert.True(t, isFile)

	names, err := client.ListDir("/d", vfs.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	infos, err := client.ListDirInfo("/d", vfs.ListOptions{})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, int64(2), infos[1].Size)

	info, err := client.GetInfo("/d/b")
	require.NoError(t, err)
	assert.Equal(t, "b", info.Name)
	assert.Equal(t, int64(2), info.Size)
}

func TestErrorKindsCrossTheWire(t *testing.T) {
	client, _ := dialed(t)

	_, err := client.GetInfo("/missing")
	assert.True(t, fserrors.IsKind(err, fserrors.KindNotFound))

	err = client.MakeDir("/a/b/c", vfs.MakeDirOptions{})
	assert.True(t, fserrors.IsKind(err, fserrors.KindParentMissing))

	require.NoError(t, client.MakeDir("/d", vfs.MakeDirOptions{}))
	err = client.MakeDir("/d", vfs.MakeDirOptions{})
	assert.True(t, fserrors.IsKind(err, fserrors.KindExists))
}

func TestRenameAndRemove(t *testing.T) {
	client, _ := dialed(t)
	require.NoError(t, client.MakeDir("/d", vfs.MakeDirOptions{}))
	require.NoError(t, vfs.SetContentsBytes(client, "/d/f", []byte("x")))

	require.NoError(t, client.Rename("/d/f", "/d/g"))
	exists, err := client.Exists("/d/f")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, client.Remove("/d/g"))
	err = client.RemoveDir("/d", vfs.RemoveDirOptions{})
	require.NoError(t, err)
}

func TestRemoteFileHandle(t *testing.T) {
	client, _ := dialed(t)
	require.NoError(t, vfs.SetContentsBytes(client, "/f", []byte("0123456789")))

	h, err := client.Open("/f", vfs.ModeReadWrite)
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := h.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf[:n]))

	pos, err := h.Seek(2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pos)
	_, err = h.Write([]byte("XX"))
	require.NoError(t, err)

	require.NoError(t, h.Truncate(6))
	require.NoError(t, h.Close())

	data, err := vfs.GetContents(client, "/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("01XX45"), data)
}

func TestMeta(t *testing.T) {
	client, _ := dialed(t)
	meta := client.Meta()
	assert.True(t, meta.BoolDefault(vfs.MetaNetwork, false))
}
