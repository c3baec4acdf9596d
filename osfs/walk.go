package osfs

import (
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/fspath"
	"github.com/anyfs/anyfs/vfs"
)

// WalkAll returns every entry under root, directories included, using a
// parallel traversal of the native tree. Entry order is not guaranteed;
// callers needing a stable order should sort the result.
func (f *FS) WalkAll(root string) ([]vfs.Info, error) {
	if err := f.checkOpen("walk"); err != nil {
		return nil, err
	}
	start, err := f.native(root)
	if err != nil {
		return nil, err
	}
	base, err := fspath.Abs(root)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var infos []vfs.Info
	conf := fastwalk.Config{Follow: false}
	walkErr := fastwalk.Walk(&conf, start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == start {
			return nil
		}
		virt, err := fspath.Join(base, filepath.ToSlash(path[len(start)+1:]))
		if err != nil {
			return nil
		}
		st, err := d.Info()
		if err != nil {
			return nil
		}
		mu.Lock()
		infos = append(infos, vfs.Info{
			Name:     d.Name(),
			Path:     virt,
			Size:     st.Size(),
			IsDir:    d.IsDir(),
			Modified: st.ModTime(),
		})
		mu.Unlock()
		return nil
	})
	if walkErr != nil {
		return nil, fserrors.FromOS("walk", root, walkErr)
	}
	return infos, nil
}
