package vfs

import (
	"bytes"
	"io"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/fspath"
)

// NativeMoveFS is implemented by backends that can relocate an entry
// atomically. Move prefers it over the generic copy-and-delete sequence.
type NativeMoveFS interface {
	// MoveNative atomically relocates src to dst. With overwrite unset an
	// existing destination fails with DestinationExists.
	MoveNative(src, dst string, overwrite bool) error
}

// NativeCopyFS is implemented by backends that can deep-copy an entry
// without streaming its contents through the caller.
type NativeCopyFS interface {
	CopyNative(src, dst string, overwrite bool) error
}

// CopyOptions controls single-file Copy and Move.
type CopyOptions struct {
	// Overwrite permits replacing an existing destination.
	Overwrite bool
}

// DirOptions controls CopyDir and MoveDir.
type DirOptions struct {
	// Overwrite permits merging into an existing destination directory
	// and replacing existing destination files.
	Overwrite bool
	// BestEffort continues past per-item failures, reporting them in the
	// returned slice instead of aborting.
	BestEffort bool
}

// ItemError records one per-item failure from a best-effort composite
// operation.
type ItemError struct {
	Path string
	Err  error
}

// GetContents reads the whole file at path.
func GetContents(fsys FS, path string) ([]byte, error) {
	f, err := fsys.Open(path, ModeRead)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// SetContentsBytes replaces the file at path with data.
func SetContentsBytes(fsys FS, path string, data []byte) error {
	return fsys.SetContents(path, bytes.NewReader(data))
}

// Copy copies the file at src to dst on the same filesystem. The source
// must be a file; an existing destination fails with DestinationExists
// unless opts.Overwrite is set.
func Copy(fsys FS, src, dst string, opts CopyOptions) error {
	if isFile, err := fsys.IsFile(src); err != nil {
		return err
	} else if !isFile {
		if exists, err := fsys.Exists(src); err != nil {
			return err
		} else if !exists {
			return fserrors.NotFound(src)
		}
		return fserrors.Invalid(src)
	}
	if !opts.Overwrite {
		if exists, err := fsys.Exists(dst); err != nil {
			return err
		} else if exists {
			return fserrors.Exists(dst)
		}
	}
	if nc, ok := fsys.(NativeCopyFS); ok {
		return nc.CopyNative(src, dst, opts.Overwrite)
	}
	f, err := fsys.Open(src, ModeRead)
	if err != nil {
		return err
	}
	defer f.Close()
	return fsys.SetContents(dst, f)
}

// Move relocates the file at src to dst. When the backend publishes an
// atomic rename capability the native move is used; otherwise the move is
// copy followed by delete.
func Move(fsys FS, src, dst string, opts CopyOptions) error {
	if nm, ok := fsys.(NativeMoveFS); ok && fsys.Meta().BoolDefault(MetaAtomicRename, false) {
		if isFile, err := fsys.IsFile(src); err != nil {
			return err
		} else if !isFile {
			if exists, err := fsys.Exists(src); err != nil {
				return err
			} else if !exists {
				return fserrors.NotFound(src)
			}
			return fserrors.Invalid(src)
		}
		return nm.MoveNative(src, dst, opts.Overwrite)
	}
	if err := Copy(fsys, src, dst, opts); err != nil {
		return err
	}
	return fsys.Remove(src)
}

// CopyDir recursively copies the directory at src to dst, recreating
// structure breadth-first before populating files. With opts.BestEffort the
// walk continues past per-item failures and reports them; otherwise the
// first failure aborts.
func CopyDir(fsys FS, src, dst string, opts DirOptions) ([]ItemError, error) {
	if fspath.IsPrefix(src, dst) {
		return nil, fserrors.Invalid(dst)
	}
	if isDir, err := fsys.IsDir(src); err != nil {
		return nil, err
	} else if !isDir {
		if exists, err := fsys.Exists(src); err != nil {
			return nil, err
		} else if !exists {
			return nil, fserrors.NotFound(src)
		}
		return nil, fserrors.Invalid(src)
	}
	if !opts.Overwrite {
		if exists, err := fsys.Exists(dst); err != nil {
			return nil, err
		} else if exists {
			return nil, fserrors.Exists(dst)
		}
	}
	if err := fsys.MakeDir(dst, MakeDirOptions{Recursive: true, AllowRecreate: true}); err != nil {
		return nil, err
	}

	var failures []ItemError
	fail := func(path string, err error) error {
		if opts.BestEffort {
			failures = append(failures, ItemError{Path: path, Err: err})
			return nil
		}
		return err
	}

	queue := []string{""}
	for len(queue) > 0 {
		rel := queue[0]
		queue = queue[1:]
		srcDir, err := fspath.Join(src, rel)
		if err != nil {
			return failures, err
		}
		entries, err := fsys.ListDirInfo(srcDir, ListOptions{})
		if err != nil {
			if err = fail(srcDir, err); err != nil {
				return failures, err
			}
			continue
		}
		for _, e := range entries {
			childRel, err := fspath.Join(rel, e.Name)
			if err != nil {
				return failures, err
			}
			if e.IsDir {
				dstChild, err := fspath.Join(dst, childRel)
				if err != nil {
					return failures, err
				}
				if err := fsys.MakeDir(dstChild, MakeDirOptions{AllowRecreate: true}); err != nil {
					if err = fail(dstChild, err); err != nil {
						return failures, err
					}
					continue
				}
				queue = append(queue, childRel)
				continue
			}
			srcChild, err := fspath.Join(src, childRel)
			if err != nil {
				return failures, err
			}
			dstChild, err := fspath.Join(dst, childRel)
			if err != nil {
				return failures, err
			}
			if err := Copy(fsys, srcChild, dstChild, CopyOptions{Overwrite: opts.Overwrite}); err != nil {
				if err = fail(srcChild, err); err != nil {
					return failures, err
				}
			}
		}
	}
	return failures, nil
}

// MoveDir relocates the directory at src to dst. The walk is depth-first so
// emptied source directories are removed as it unwinds. Per-item failure
// handling follows opts.BestEffort as in CopyDir; directories that still
// hold failed items are left in place.
func MoveDir(fsys FS, src, dst string, opts DirOptions) ([]ItemError, error) {
	if fspath.IsPrefix(src, dst) {
		return nil, fserrors.Invalid(dst)
	}
	if isDir, err := fsys.IsDir(src); err != nil {
		return nil, err
	} else if !isDir {
		if exists, err := fsys.Exists(src); err != nil {
			return nil, err
		} else if !exists {
			return nil, fserrors.NotFound(src)
		}
		return nil, fserrors.Invalid(src)
	}
	if !opts.Overwrite {
		if exists, err := fsys.Exists(dst); err != nil {
			return nil, err
		} else if exists {
			return nil, fserrors.Exists(dst)
		}
	}
	if nm, ok := fsys.(NativeMoveFS); ok && fsys.Meta().BoolDefault(MetaAtomicRename, false) {
		if exists, err := fsys.Exists(dst); err == nil && !exists {
			if err := nm.MoveNative(src, dst, opts.Overwrite); err == nil {
				return nil, nil
			}
			// Fall through to the generic walk on native failure.
		}
	}
	if err := fsys.MakeDir(dst, MakeDirOptions{Recursive: true, AllowRecreate: true}); err != nil {
		return nil, err
	}

	var failures []ItemError
	fail := func(path string, err error) error {
		if opts.BestEffort {
			failures = append(failures, ItemError{Path: path, Err: err})
			return nil
		}
		return err
	}

	var walk func(rel string) error
	walk = func(rel string) error {
		srcDir, err := fspath.Join(src, rel)
		if err != nil {
			return err
		}
		entries, err := fsys.ListDirInfo(srcDir, ListOptions{})
		if err != nil {
			return fail(srcDir, err)
		}
		for _, e := range entries {
			childRel, err := fspath.Join(rel, e.Name)
			if err != nil {
				return err
			}
			srcChild, err := fspath.Join(src, childRel)
			if err != nil {
				return err
			}
			dstChild, err := fspath.Join(dst, childRel)
			if err != nil {
				return err
			}
			if e.IsDir {
				if err := fsys.MakeDir(dstChild, MakeDirOptions{AllowRecreate: true}); err != nil {
					if err = fail(dstChild, err); err != nil {
						return err
					}
					continue
				}
				if err := walk(childRel); err != nil {
					return err
				}
				if err := fsys.RemoveDir(srcChild, RemoveDirOptions{}); err != nil {
					if err = fail(srcChild, err); err != nil {
						return err
					}
				}
				continue
			}
			if err := Move(fsys, srcChild, dstChild, CopyOptions{Overwrite: opts.Overwrite}); err != nil {
				if err = fail(srcChild, err); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(""); err != nil {
		return failures, err
	}
	if err := fsys.RemoveDir(src, RemoveDirOptions{}); err != nil {
		if opts.BestEffort {
			failures = append(failures, ItemError{Path: src, Err: err})
		} else {
			return failures, err
		}
	}
	return failures, nil
}

// IsDirEmpty reports whether the directory at path has no entries.
func IsDirEmpty(fsys FS, path string) (bool, error) {
	entries, err := fsys.ListDir(path, ListOptions{})
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}
