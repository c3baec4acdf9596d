package remotefs_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/memfs"
	"github.com/anyfs/anyfs/remotefs"
	"github.com/anyfs/anyfs/vfs"
)

func sample() remotefs.Descriptor {
	return remotefs.Descriptor{
		Scheme:   "dav",
		Host:     "files.example.com",
		Port:     8443,
		Root:     "/share",
		Username: "alice",
		TLS:      true,
		Params:   map[string]string{"depth": "1"},
	}
}

func TestDescriptorJSONRoundTrip(t *testing.T) {
	d := sample()
	data, err := d.MarshalJSON()
	require.NoError(t, err)

	back, err := remotefs.ParseDescriptor(data)
	require.NoError(t, err)
	assert.Equal(t, d, back)
}

func TestDescriptorYAMLFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conn.yaml")
	d := sample()
	require.NoError(t, remotefs.SaveDescriptor(path, d))

	back, err := remotefs.LoadDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, d, back)
}

func TestLoadDescriptorMissingFile(t *testing.T) {
	_, err := remotefs.LoadDescriptor(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, fserrors.IsKind(err, fserrors.KindNotFound))
}

func TestDialRegistry(t *testing.T) {
	remotefs.Register("testmem", func(d remotefs.Descriptor) (vfs.FS, error) {
		return memfs.New(), nil
	})
	assert.Contains(t, remotefs.Schemes(), "testmem")

	fsys, err := remotefs.Dial(remotefs.Descriptor{Scheme: "testmem"})
	require.NoError(t, err)
	defer fsys.Close()
	require.NoError(t, fsys.MakeDir("/d", vfs.MakeDirOptions{}))
}

func TestDialUnknownScheme(t *testing.T) {
	_, err := remotefs.Dial(remotefs.Descriptor{Scheme: "gopher"})
	assert.True(t, fserrors.IsKind(err, fserrors.KindUnsupported))
}
