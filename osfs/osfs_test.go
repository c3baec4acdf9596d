package osfs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/osfs"
	"github.com/anyfs/anyfs/vfs"
)

func open(t *testing.T) *osfs.FS {
	t.Helper()
	fs, err := osfs.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })
	return fs
}

func TestNewRequiresDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := osfs.New(file)
	assert.True(t, fserrors.IsKind(err, fserrors.KindInvalid))
	_, err = osfs.New(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, fserrors.IsKind(err, fserrors.KindNotFound))
}

func TestRoundTrip(t *testing.T) {
	fs := open(t)

	require.NoError(t, fs.MakeDir("/d", vfs.MakeDirOptions{}))
	require.NoError(t, vfs.SetContentsBytes(fs, "/d/f.txt", []byte("native bytes")))

	data, err := vfs.GetContents(fs, "/d/f.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("native bytes"), data)

	names, err := fs.ListDir("/d", vfs.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"f.txt"}, names)
}

func TestAppendRequiresExisting(t *testing.T) {
	fs := open(t)

	_, err := fs.Open("/missing", vfs.ModeAppend)
	assert.True(t, fserrors.IsKind(err, fserrors.KindNotFound))

	require.NoError(t, vfs.SetContentsBytes(fs, "/f", []byte("base")))
	h, err := fs.Open("/f", vfs.ModeAppend)
	require.NoError(t, err)
	_, err = h.Write([]byte("+more"))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	data, err := vfs.GetContents(fs, "/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("base+more"), data)
}

func TestErrorTranslation(t *testing.T) {
	fs := open(t)

	_, err := fs.Open("/missing", vfs.ModeRead)
	assert.True(t, fserrors.IsKind(err, fserrors.KindNotFound))

	err = fs.MakeDir("/no/parent", vfs.MakeDirOptions{})
	assert.True(t, fserrors.IsKind(err, fserrors.KindParentMissing))

	require.NoError(t, fs.MakeDir("/d", vfs.MakeDirOptions{}))
	err = fs.MakeDir("/d", vfs.MakeDirOptions{})
	assert.True(t, fserrors.IsKind(err, fserrors.KindExists))

	require.NoError(t, vfs.SetContentsBytes(fs, "/d/f", []byte("x")))
	err = fs.RemoveDir("/d", vfs.RemoveDirOptions{})
	assert.True(t, fserrors.IsKind(err, fserrors.KindNotEmpty))
}

func TestSysPath(t *testing.T) {
	root := t.TempDir()
	fs, err := osfs.New(root)
	require.NoError(t, err)
	defer fs.Close()

	sys, ok := fs.SysPath("/a/b")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "a", "b"), sys)
}

func TestRenameAndMove(t *testing.T) {
	fs := open(t)
	require.NoError(t, fs.MakeDir("/a", vfs.MakeDirOptions{}))
	require.NoError(t, fs.MakeDir("/b", vfs.MakeDirOptions{}))
	require.NoError(t, vfs.SetContentsBytes(fs, "/a/f", []byte("x")))

	err := fs.Rename("/a/f", "/b/f")
	assert.True(t, fserrors.IsKind(err, fserrors.KindInvalid))
	require.NoError(t, fs.Rename("/a/f", "/a/g"))

	// Cross-directory relocation goes through the native move.
	require.NoError(t, vfs.Move(fs, "/a/g", "/b/g", vfs.CopyOptions{}))
	exists, err := fs.Exists("/b/g")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGetInfoSniffsMimeType(t *testing.T) {
	fs := open(t)
	require.NoError(t, vfs.SetContentsBytes(fs, "/page.html", []byte("<!DOCTYPE html><html></html>")))

	info, err := fs.GetInfo("/page.html")
	require.NoError(t, err)
	assert.Contains(t, info.MimeType, "text/html")
	assert.Equal(t, int64(28), info.Size)
}

func TestWalkAll(t *testing.T) {
	fs := open(t)
	require.NoError(t, fs.MakeDir("/x/y", vfs.MakeDirOptions{Recursive: true}))
	require.NoError(t, vfs.SetContentsBytes(fs, "/x/f1", []byte("1")))
	require.NoError(t, vfs.SetContentsBytes(fs, "/x/y/f2", []byte("2")))

	infos, err := fs.WalkAll("/")
	require.NoError(t, err)
	paths := make([]string, len(infos))
	for i, info := range infos {
		paths[i] = info.Path
	}
	assert.ElementsMatch(t, []string{"/x", "/x/y", "/x/f1", "/x/y/f2"}, paths)
}

func TestSetContentsReplacesAtomically(t *testing.T) {
	fs := open(t)
	require.NoError(t, vfs.SetContentsBytes(fs, "/f", []byte("one")))
	require.NoError(t, vfs.SetContentsBytes(fs, "/f", []byte("two")))

	data, err := vfs.GetContents(fs, "/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	// No temp files left behind.
	names, err := fs.ListDir("/", vfs.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"f"}, names)
}
