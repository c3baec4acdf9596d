package remotefs_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/internal/testutil"
	"github.com/anyfs/anyfs/remotefs"
	"github.com/anyfs/anyfs/vfs"
)

func TestReadPullsOnDemand(t *testing.T) {
	reads := 0
	remote := testutil.NewChunkReader([]byte("0123456789"), 4, &reads)
	buf, err := remotefs.NewBuffer("/f", vfs.ModeRead, remote, nil)
	require.NoError(t, err)
	defer buf.Close()

	p := make([]byte, 3)
	n, err := buf.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "012", string(p[:n]))
	firstReads := reads
	assert.Greater(t, firstReads, 0)

	// Re-reading buffered bytes pulls nothing further.
	_, err = buf.Seek(0, io.SeekStart)
	require.NoError(t, err)
	n, err = buf.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "012", string(p[:n]))
	assert.Equal(t, firstReads, reads)
}

func TestReadToEnd(t *testing.T) {
	remote := testutil.NewChunkReader([]byte("hello world"), 4, nil)
	buf, err := remotefs.NewBuffer("/f", vfs.ModeRead, remote, nil)
	require.NoError(t, err)
	defer buf.Close()

	data, err := io.ReadAll(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	_, err = buf.Write([]byte("x"))
	assert.True(t, fserrors.IsKind(err, fserrors.KindUnsupported))
}

func TestSeekEndPullsEverything(t *testing.T) {
	remote := testutil.NewChunkReader([]byte("0123456789"), 3, nil)
	buf, err := remotefs.NewBuffer("/f", vfs.ModeReadWrite, remote, nil)
	require.NoError(t, err)
	defer buf.Close()

	pos, err := buf.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(8), pos)

	p := make([]byte, 2)
	n, err := buf.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "89", string(p[:n]))
}

func TestWritePreservesUnreadRemoteBytes(t *testing.T) {
	store := &testutil.MockStore{}
	store.On("Store", "/f", []byte("01XX456789")).Return(nil)

	remote := testutil.NewChunkReader([]byte("0123456789"), 4, nil)
	buf, err := remotefs.NewBuffer("/f", vfs.ModeReadWrite, remote, func(r io.Reader) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return store.Store("/f", data)
	})
	require.NoError(t, err)

	_, err = buf.Seek(2, io.SeekStart)
	require.NoError(t, err)
	_, err = buf.Write([]byte("XX"))
	require.NoError(t, err)

	// Close fills the remainder from the remote before pushing, so the
	// pushed contents keep the bytes that were never read locally.
	require.NoError(t, buf.Close())
	store.AssertExpectations(t)
}

func TestTruncatingWriteSkipsPull(t *testing.T) {
	reads := 0
	store := &testutil.MockStore{}
	store.On("Store", "/f", []byte("fresh")).Return(nil)

	remote := testutil.NewChunkReader([]byte("old contents"), 4, &reads)
	buf, err := remotefs.NewBuffer("/f", vfs.ModeWrite, remote, func(r io.Reader) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return store.Store("/f", data)
	})
	require.NoError(t, err)

	_, err = buf.Write([]byte("fresh"))
	require.NoError(t, err)
	require.NoError(t, buf.Close())

	assert.Zero(t, reads, "truncating write must not touch the remote stream")
	store.AssertExpectations(t)
}

func TestAppendPositionsAtEnd(t *testing.T) {
	store := &testutil.MockStore{}
	store.On("Store", "/f", []byte("base+more")).Return(nil)

	remote := testutil.NewChunkReader([]byte("base"), 2, nil)
	buf, err := remotefs.NewBuffer("/f", vfs.ModeAppend, remote, func(r io.Reader) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return store.Store("/f", data)
	})
	require.NoError(t, err)

	_, err = buf.Write([]byte("+more"))
	require.NoError(t, err)
	require.NoError(t, buf.Close())
	store.AssertExpectations(t)
}

func TestUnchangedBufferDoesNotPush(t *testing.T) {
	store := &testutil.MockStore{}
	remote := testutil.NewChunkReader([]byte("data"), 4, nil)
	buf, err := remotefs.NewBuffer("/f", vfs.ModeReadWrite, remote, func(r io.Reader) error {
		return store.Store("/f", nil)
	})
	require.NoError(t, err)

	p := make([]byte, 4)
	_, err = buf.Read(p)
	require.NoError(t, err)
	require.NoError(t, buf.Close())
	store.AssertNotCalled(t, "Store", "/f", nil)
}

func TestCloseIdempotent(t *testing.T) {
	remote := testutil.NewChunkReader([]byte("x"), 1, nil)
	buf, err := remotefs.NewBuffer("/f", vfs.ModeRead, remote, nil)
	require.NoError(t, err)
	require.NoError(t, buf.Close())
	require.NoError(t, buf.Close())

	_, err = buf.Read(make([]byte, 1))
	assert.True(t, fserrors.IsKind(err, fserrors.KindClosed))
}
