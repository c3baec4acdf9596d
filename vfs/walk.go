package vfs

import (
	"github.com/anyfs/anyfs/fspath"
)

// WalkFunc receives one directory per call with the file entries it holds.
// Returning an error stops the walk.
type WalkFunc func(dir string, files []Info) error

// Walk traverses the tree rooted at root breadth-first, invoking fn once
// per directory.
func Walk(fsys FS, root string, fn WalkFunc) error {
	start, err := fspath.Abs(root)
	if err != nil {
		return err
	}
	queue := []string{start}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]
		entries, err := fsys.ListDirInfo(dir, ListOptions{})
		if err != nil {
			return err
		}
		var files []Info
		for _, e := range entries {
			if e.IsDir {
				child, err := fspath.Join(dir, e.Name)
				if err != nil {
					return err
				}
				queue = append(queue, child)
			} else {
				files = append(files, e)
			}
		}
		if err := fn(dir, files); err != nil {
			return err
		}
	}
	return nil
}

// WalkFiles returns the absolute paths of every file under root.
func WalkFiles(fsys FS, root string) ([]string, error) {
	var out []string
	err := Walk(fsys, root, func(dir string, files []Info) error {
		for _, f := range files {
			p, err := fspath.Join(dir, f.Name)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

// WalkDirs returns the absolute path of every directory under root,
// including root itself.
func WalkDirs(fsys FS, root string) ([]string, error) {
	var out []string
	err := Walk(fsys, root, func(dir string, _ []Info) error {
		out = append(out, dir)
		return nil
	})
	return out, err
}
