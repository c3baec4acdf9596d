package zipfs_test

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/vfs"
	"github.com/anyfs/anyfs/zipfs"
)

func archiveFS(t *testing.T, files map[string]string) *zipfs.FS {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	fs, err := zipfs.NewFromReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })
	return fs
}

func TestReadEntries(t *testing.T) {
	fs := archiveFS(t, map[string]string{
		"readme.md":    "hello",
		"docs/guide":   "guide body",
		"docs/api/ref": "ref body",
	})

	data, err := vfs.GetContents(fs, "/docs/guide")
	require.NoError(t, err)
	assert.Equal(t, []byte("guide body"), data)

	// Parent directories are synthesized from file paths.
	isDir, err := fs.IsDir("/docs/api")
	require.NoError(t, err)
	assert.True(t, isDir)

	names, err := fs.ListDir("/docs", vfs.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "guide"}, names)

	names, err = fs.ListDir("/", vfs.ListOptions{FilesOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"readme.md"}, names)
}

func TestGetInfo(t *testing.T) {
	fs := archiveFS(t, map[string]string{"f.txt": "12345"})

	info, err := fs.GetInfo("/f.txt")
	require.NoError(t, err)
	assert.Equal(t, "f.txt", info.Name)
	assert.Equal(t, int64(5), info.Size)
	assert.False(t, info.IsDir)

	_, err = fs.GetInfo("/nope")
	assert.True(t, fserrors.IsKind(err, fserrors.KindNotFound))
}

func TestHandlesSeek(t *testing.T) {
	fs := archiveFS(t, map[string]string{"f": "0123456789"})

	h, err := fs.Open("/f", vfs.ModeRead)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Seek(5, 0)
	require.NoError(t, err)
	p := make([]byte, 5)
	n, err := h.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "56789", string(p[:n]))
}

func TestReadOnly(t *testing.T) {
	fs := archiveFS(t, map[string]string{"f": "x"})

	assert.True(t, fs.Meta().BoolDefault(vfs.MetaReadOnly, false))

	_, err := fs.Open("/f", vfs.ModeWrite)
	assert.True(t, fserrors.IsKind(err, fserrors.KindUnsupported))
	err = fs.Remove("/f")
	assert.True(t, fserrors.IsKind(err, fserrors.KindUnsupported))
	err = fs.MakeDir("/d", vfs.MakeDirOptions{})
	assert.True(t, fserrors.IsKind(err, fserrors.KindUnsupported))
	err = vfs.SetContentsBytes(fs, "/f", []byte("y"))
	assert.True(t, fserrors.IsKind(err, fserrors.KindUnsupported))
}

func TestClosedArchive(t *testing.T) {
	fs := archiveFS(t, map[string]string{"f": "x"})
	require.NoError(t, fs.Close())
	require.NoError(t, fs.Close())

	_, err := fs.Open("/f", vfs.ModeRead)
	assert.True(t, fserrors.IsKind(err, fserrors.KindClosed))
}
