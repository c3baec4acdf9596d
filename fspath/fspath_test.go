package fspath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anyfs/anyfs/fserrors"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"/":              "/",
		"/a/b":           "/a/b",
		"a/b":            "a/b",
		"//a///b":        "/a/b",
		"/a/./b":         "/a/b",
		"/a/b/..":        "/a",
		"/a/b/../c":      "/a/c",
		"a/../b":         "b",
		`\a\b`:           "/a/b",
		"/a/b/c/../../d": "/a/d",
		"foo/bar/":       "foo/bar",
		"./foo":          "foo",
	}
	for in, want := range cases {
		got, err := Normalize(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}
}

func TestNormalizePastRoot(t *testing.T) {
	for _, in := range []string{"..", "/..", "/a/../..", "../a"} {
		_, err := Normalize(in)
		assert.True(t, fserrors.IsKind(err, fserrors.KindPath), "input %q", in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"/a//b/./c/..", "x/y/z", "//", `a\b\..\c`, "/a/b/c"}
	for _, in := range inputs {
		once, err := Normalize(in)
		require.NoError(t, err)
		twice, err := Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestAbsRel(t *testing.T) {
	abs, err := Abs("a/b")
	require.NoError(t, err)
	assert.Equal(t, "/a/b", abs)

	rel, err := Rel("/a/b")
	require.NoError(t, err)
	assert.Equal(t, "a/b", rel)

	rel, err = Rel("/")
	require.NoError(t, err)
	assert.Equal(t, "", rel)
}

func TestJoin(t *testing.T) {
	got, err := Join("a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, "a/b/c", got)

	got, err = Join("/a", "b/c", "..", "d")
	require.NoError(t, err)
	assert.Equal(t, "/a/b/d", got)

	// An absolute segment resets the join.
	got, err = Join("foo/bar", "/baz")
	require.NoError(t, err)
	assert.Equal(t, "/baz", got)

	got, err = Join("", "a", "", "b")
	require.NoError(t, err)
	assert.Equal(t, "a/b", got)
}

func TestJoinSplitLaw(t *testing.T) {
	// Joining a split path reproduces the normalized original.
	for _, p := range []string{"/a", "/a/b", "/a/b/c", "/deep/tree/leaf.txt"} {
		parent, name := Split(p)
		joined, err := Join(parent, name)
		require.NoError(t, err)
		assert.Equal(t, p, joined)
	}
}

func TestSplit(t *testing.T) {
	parent, name := Split("/a/b")
	assert.Equal(t, "/a", parent)
	assert.Equal(t, "b", name)

	parent, name = Split("/a")
	assert.Equal(t, "/", parent)
	assert.Equal(t, "a", name)

	parent, name = Split("/")
	assert.Equal(t, "", parent)
	assert.Equal(t, "", name)

	parent, name = Split("name")
	assert.Equal(t, "", parent)
	assert.Equal(t, "name", name)
}

func TestIsPrefix(t *testing.T) {
	assert.True(t, IsPrefix("/", "/anything"))
	assert.True(t, IsPrefix("/foo", "/foo"))
	assert.True(t, IsPrefix("/foo", "/foo/bar"))
	assert.False(t, IsPrefix("/foo/bar", "/foo"))
	assert.False(t, IsPrefix("/foo/bar", "/foo/barry"))
}

func TestSegmentsAndAncestors(t *testing.T) {
	segs, err := Segments("/a/b/c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, segs)

	segs, err = Segments("/")
	require.NoError(t, err)
	assert.Empty(t, segs)

	anc, err := Ancestors("/a/b")
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/a", "/a/b"}, anc)
}

func TestSameDir(t *testing.T) {
	assert.True(t, SameDir("/a/b", "/a/c"))
	assert.False(t, SameDir("/a/b", "/x/c"))
	assert.True(t, SameDir("/a", "/b"))
}
