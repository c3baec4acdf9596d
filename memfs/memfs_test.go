package memfs

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/vfs"
)

func TestWriteReadRoundTrip(t *testing.T) {
	fs := New()
	defer fs.Close()

	require.NoError(t, vfs.SetContentsBytes(fs, "/hello.txt", []byte("hello world")))

	data, err := vfs.GetContents(fs, "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)

	isFile, err := fs.IsFile("/hello.txt")
	require.NoError(t, err)
	assert.True(t, isFile)
}

func TestOpenModes(t *testing.T) {
	fs := New()
	defer fs.Close()

	require.NoError(t, vfs.SetContentsBytes(fs, "/f", []byte("abc")))

	// Read handles reject writes.
	r, err := fs.Open("/f", vfs.ModeRead)
	require.NoError(t, err)
	_, err = r.Write([]byte("x"))
	assert.True(t, fserrors.IsKind(err, fserrors.KindUnsupported))
	require.NoError(t, r.Close())

	// Append positions at the end.
	a, err := fs.Open("/f", vfs.ModeAppend)
	require.NoError(t, err)
	_, err = a.Write([]byte("def"))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	data, err := vfs.GetContents(fs, "/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), data)

	// Write mode truncates.
	w, err := fs.Open("/f", vfs.ModeWrite)
	require.NoError(t, err)
	_, err = w.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err = vfs.GetContents(fs, "/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func TestOpenMissing(t *testing.T) {
	fs := New()
	defer fs.Close()

	_, err := fs.Open("/nope", vfs.ModeRead)
	assert.True(t, fserrors.IsKind(err, fserrors.KindNotFound))

	_, err = fs.Open("/no/parent", vfs.ModeWrite)
	assert.True(t, fserrors.IsKind(err, fserrors.KindParentMissing))
}

func TestSeekAndTruncate(t *testing.T) {
	fs := New()
	defer fs.Close()
	require.NoError(t, vfs.SetContentsBytes(fs, "/f", []byte("0123456789")))

	h, err := fs.Open("/f", vfs.ModeReadWrite)
	require.NoError(t, err)
	defer h.Close()

	pos, err := h.Seek(-4, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)

	buf := make([]byte, 4)
	n, err := h.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "6789", string(buf[:n]))

	_, err = h.Seek(-1, io.SeekStart)
	assert.True(t, fserrors.IsKind(err, fserrors.KindInvalid))

	require.NoError(t, h.Truncate(3))
	_, err = h.Seek(0, io.SeekStart)
	require.NoError(t, err)
	data, err := io.ReadAll(h)
	require.NoError(t, err)
	assert.Equal(t, "012", string(data))
}

func TestMakeDir(t *testing.T) {
	fs := New()
	defer fs.Close()

	require.NoError(t, fs.MakeDir("/a", vfs.MakeDirOptions{}))

	err := fs.MakeDir("/a", vfs.MakeDirOptions{})
	assert.True(t, fserrors.IsKind(err, fserrors.KindExists))
	assert.NoError(t, fs.MakeDir("/a", vfs.MakeDirOptions{AllowRecreate: true}))

	err = fs.MakeDir("/x/y/z", vfs.MakeDirOptions{})
	assert.True(t, fserrors.IsKind(err, fserrors.KindParentMissing))
	require.NoError(t, fs.MakeDir("/x/y/z", vfs.MakeDirOptions{Recursive: true}))

	// A file blocking the chain is invalid, not missing.
	require.NoError(t, vfs.SetContentsBytes(fs, "/a/f", []byte("x")))
	err = fs.MakeDir("/a/f/sub", vfs.MakeDirOptions{Recursive: true})
	assert.True(t, fserrors.IsKind(err, fserrors.KindInvalid))
}

func TestRemove(t *testing.T) {
	fs := New()
	defer fs.Close()
	require.NoError(t, fs.MakeDir("/d", vfs.MakeDirOptions{}))
	require.NoError(t, vfs.SetContentsBytes(fs, "/d/f", []byte("x")))

	// Remove only deletes files.
	err := fs.Remove("/d")
	assert.True(t, fserrors.IsKind(err, fserrors.KindInvalid))

	require.NoError(t, fs.Remove("/d/f"))
	exists, err := fs.Exists("/d/f")
	require.NoError(t, err)
	assert.False(t, exists)

	err = fs.Remove("/d/f")
	assert.True(t, fserrors.IsKind(err, fserrors.KindNotFound))
}

func TestRemoveDir(t *testing.T) {
	fs := New()
	defer fs.Close()
	require.NoError(t, fs.MakeDir("/a/b/c", vfs.MakeDirOptions{Recursive: true}))
	require.NoError(t, vfs.SetContentsBytes(fs, "/a/b/c/f", []byte("x")))

	err := fs.RemoveDir("/", vfs.RemoveDirOptions{})
	assert.True(t, fserrors.IsKind(err, fserrors.KindInvalid))

	err = fs.RemoveDir("/a/b/c", vfs.RemoveDirOptions{})
	assert.True(t, fserrors.IsKind(err, fserrors.KindNotEmpty))

	require.NoError(t, fs.RemoveDir("/a/b/c", vfs.RemoveDirOptions{Force: true}))

	// Recursive removal prunes emptied ancestors but never the root.
	require.NoError(t, fs.MakeDir("/a/b/c", vfs.MakeDirOptions{Recursive: true}))
	require.NoError(t, fs.RemoveDir("/a/b/c", vfs.RemoveDirOptions{Recursive: true}))
	exists, err := fs.Exists("/a")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = fs.Exists("/")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestListDir(t *testing.T) {
	fs := New()
	defer fs.Close()
	require.NoError(t, fs.MakeDir("/dir/sub", vfs.MakeDirOptions{Recursive: true}))
	require.NoError(t, vfs.SetContentsBytes(fs, "/dir/b.txt", []byte("b")))
	require.NoError(t, vfs.SetContentsBytes(fs, "/dir/a.txt", []byte("a")))

	names, err := fs.ListDir("/dir", vfs.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "sub"}, names)

	names, err = fs.ListDir("/dir", vfs.ListOptions{Wildcard: "*.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)

	names, err = fs.ListDir("/dir", vfs.ListOptions{DirsOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"sub"}, names)

	names, err = fs.ListDir("/dir", vfs.ListOptions{FilesOnly: true, Absolute: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"/dir/a.txt", "/dir/b.txt"}, names)

	_, err = fs.ListDir("/dir", vfs.ListOptions{DirsOnly: true, FilesOnly: true})
	assert.Error(t, err)

	_, err = fs.ListDir("/dir/a.txt", vfs.ListOptions{})
	assert.True(t, fserrors.IsKind(err, fserrors.KindInvalid))
}

func TestRenameSameDirOnly(t *testing.T) {
	fs := New()
	defer fs.Close()
	require.NoError(t, fs.MakeDir("/a", vfs.MakeDirOptions{}))
	require.NoError(t, fs.MakeDir("/b", vfs.MakeDirOptions{}))
	require.NoError(t, vfs.SetContentsBytes(fs, "/a/f", []byte("x")))

	err := fs.Rename("/a/f", "/b/f")
	assert.True(t, fserrors.IsKind(err, fserrors.KindInvalid))

	require.NoError(t, fs.Rename("/a/f", "/a/g"))
	exists, err := fs.Exists("/a/g")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMoveNative(t *testing.T) {
	fs := New()
	defer fs.Close()
	require.NoError(t, fs.MakeDir("/src/deep", vfs.MakeDirOptions{Recursive: true}))
	require.NoError(t, fs.MakeDir("/dst", vfs.MakeDirOptions{}))
	require.NoError(t, vfs.SetContentsBytes(fs, "/src/deep/f", []byte("payload")))

	require.NoError(t, fs.MoveNative("/src/deep", "/dst/deep", false))
	data, err := vfs.GetContents(fs, "/dst/deep/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
	exists, err := fs.Exists("/src/deep")
	require.NoError(t, err)
	assert.False(t, exists)

	// A directory cannot move into its own subtree.
	err = fs.MoveNative("/dst", "/dst/deep/cycle", false)
	assert.Error(t, err)
}

func TestMakeDirRaceSingleWinner(t *testing.T) {
	for round := 0; round < 50; round++ {
		fs := New()

		// Two goroutines race to create the same directory; exactly one
		// wins and the loser sees the existence error.
		errs := make(chan error, 2)
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				errs <- fs.MakeDir("/x", vfs.MakeDirOptions{})
			}()
		}
		close(start)
		wg.Wait()
		close(errs)

		var won, lost int
		for err := range errs {
			if err == nil {
				won++
				continue
			}
			assert.True(t, fserrors.IsKind(err, fserrors.KindExists), "unexpected error: %v", err)
			lost++
		}
		assert.Equal(t, 1, won)
		assert.Equal(t, 1, lost)

		isDir, err := fs.IsDir("/x")
		require.NoError(t, err)
		assert.True(t, isDir)
		require.NoError(t, fs.Close())
	}
}

func TestMoveAtomicUnderConcurrentList(t *testing.T) {
	fs := New()
	defer fs.Close()
	require.NoError(t, fs.MakeDir("/a", vfs.MakeDirOptions{}))
	require.NoError(t, fs.MakeDir("/b", vfs.MakeDirOptions{}))
	for i := 0; i < 20; i++ {
		require.NoError(t, vfs.SetContentsBytes(fs, fmt.Sprintf("/a/f%02d", i), []byte("x")))
	}

	// While files move from /a to /b one by one, every observer must see
	// each file in exactly one of the two directories.
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			av, err := fs.ListDir("/a", vfs.ListOptions{})
			if !assert.NoError(t, err) {
				return
			}
			bv, err := fs.ListDir("/b", vfs.ListOptions{})
			if !assert.NoError(t, err) {
				return
			}
			seen := make(map[string]int)
			for _, n := range av {
				seen[n]++
			}
			for _, n := range bv {
				seen[n]++
			}
			for n, c := range seen {
				assert.Equal(t, 1, c, "file %s visible %d times", n, c)
			}
		}
	}()
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("f%02d", i)
		require.NoError(t, fs.MoveNative("/a/"+name, "/b/"+name, false))
	}
	close(done)
	wg.Wait()

	names, err := fs.ListDir("/b", vfs.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, names, 20)
}

func TestCopyNative(t *testing.T) {
	fs := New()
	defer fs.Close()
	require.NoError(t, fs.MakeDir("/src", vfs.MakeDirOptions{}))
	require.NoError(t, vfs.SetContentsBytes(fs, "/src/f", []byte("orig")))

	require.NoError(t, fs.CopyNative("/src", "/copy", false))
	require.NoError(t, vfs.SetContentsBytes(fs, "/src/f", []byte("changed")))

	data, err := vfs.GetContents(fs, "/copy/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("orig"), data, "copy must not share data with the source")
}

func TestGetInfo(t *testing.T) {
	fs := New()
	defer fs.Close()
	before := time.Now()
	require.NoError(t, vfs.SetContentsBytes(fs, "/f", []byte("12345")))

	info, err := fs.GetInfo("/f")
	require.NoError(t, err)
	assert.Equal(t, "f", info.Name)
	assert.Equal(t, "/f", info.Path)
	assert.Equal(t, int64(5), info.Size)
	assert.False(t, info.IsDir)
	assert.False(t, info.Modified.Before(before))
}

func TestXAttrs(t *testing.T) {
	fs := New()
	defer fs.Close()
	require.NoError(t, vfs.SetContentsBytes(fs, "/f", []byte("x")))

	require.NoError(t, fs.SetXAttr("/f", "user.tag", "blue"))
	require.NoError(t, fs.SetXAttr("/f", "user.owner", "me"))

	v, err := fs.GetXAttr("/f", "user.tag")
	require.NoError(t, err)
	assert.Equal(t, "blue", v)

	names, err := fs.ListXAttrs("/f")
	require.NoError(t, err)
	assert.Equal(t, []string{"user.owner", "user.tag"}, names)

	require.NoError(t, fs.DelXAttr("/f", "user.tag"))
	_, err = fs.GetXAttr("/f", "user.tag")
	assert.True(t, fserrors.IsKind(err, fserrors.KindNotFound))

	// Deleting an absent attribute is not an error.
	assert.NoError(t, fs.DelXAttr("/f", "user.tag"))
}

func TestSetTimes(t *testing.T) {
	fs := New()
	defer fs.Close()
	require.NoError(t, vfs.SetContentsBytes(fs, "/f", []byte("x")))

	stamp := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, fs.SetTimes("/f", stamp, stamp))
	info, err := fs.GetInfo("/f")
	require.NoError(t, err)
	assert.True(t, info.Modified.Equal(stamp))
}

func TestClose(t *testing.T) {
	fs := New()
	require.NoError(t, vfs.SetContentsBytes(fs, "/f", []byte("x")))
	require.NoError(t, fs.Close())
	require.NoError(t, fs.Close())

	_, err := fs.Exists("/f")
	assert.True(t, fserrors.IsKind(err, fserrors.KindClosed))
	err = fs.MakeDir("/d", vfs.MakeDirOptions{})
	assert.True(t, fserrors.IsKind(err, fserrors.KindClosed))
}

func TestMeta(t *testing.T) {
	fs := New()
	defer fs.Close()
	meta := fs.Meta()
	assert.False(t, meta.BoolDefault(vfs.MetaReadOnly, true))
	assert.True(t, meta.BoolDefault(vfs.MetaAtomicRename, false))
	_, err := meta.Get("no_such_capability")
	assert.True(t, fserrors.IsKind(err, fserrors.KindNoMeta))
}
