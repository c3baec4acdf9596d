package wrapfs

import (
	"strings"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/fspath"
	"github.com/anyfs/anyfs/vfs"
)

// prefixCodec maps the outer root to a subdirectory of the inner
// filesystem.
type prefixCodec struct {
	root string
}

func (c prefixCodec) Encode(path string) (string, error) {
	// Join resets to absolute on a leading separator, so the path is
	// reduced to its relative form before being placed under the root.
	rel, err := fspath.Rel(path)
	if err != nil {
		return "", err
	}
	return fspath.Join(c.root, rel)
}

func (c prefixCodec) Decode(path string) (string, error) {
	norm, err := fspath.Abs(path)
	if err != nil {
		return "", err
	}
	if norm == c.root {
		return "/", nil
	}
	if strings.HasPrefix(norm, c.root+"/") {
		return norm[len(c.root):], nil
	}
	// Bare entry names pass through untouched.
	if !strings.HasPrefix(path, "/") {
		return path, nil
	}
	return "", fserrors.Path(path, "outside subdirectory "+c.root)
}

// SubFS exposes a subdirectory of another filesystem as a filesystem of
// its own. The subdirectory must already exist.
type SubFS struct {
	*FS
	root string
}

// NewSub returns a filesystem rooted at dir on inner.
func NewSub(inner vfs.FS, dir string) (*SubFS, error) {
	root, err := fspath.Abs(dir)
	if err != nil {
		return nil, err
	}
	isDir, err := inner.IsDir(root)
	if err != nil {
		return nil, err
	}
	if !isDir {
		exists, err := inner.Exists(root)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fserrors.NotFound(root)
		}
		return nil, fserrors.Invalid(root)
	}
	return &SubFS{
		FS:   New(inner, WithCodec(prefixCodec{root: root})),
		root: root,
	}, nil
}

// Root returns the inner path this filesystem is rooted at.
func (s *SubFS) Root() string { return s.root }

// Close detaches from the inner filesystem without closing it; the parent
// owns the backend's lifetime.
func (s *SubFS) Close() error { return nil }
