package memfs

import (
	"sort"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/fspath"
)

// Extended attributes are held directly on tree nodes. Support is an
// explicit capability of this backend; there are no sidecar marker files.

func (m *FS) xattrNode(op, path string) (*node, string, error) {
	p, err := fspath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	if err := m.checkOpen(op); err != nil {
		return nil, "", err
	}
	n := m.resolve(p)
	if n == nil {
		return nil, p, fserrors.NotFound(p)
	}
	return n, p, nil
}

// GetXAttr returns the named attribute of the entry at path.
func (m *FS) GetXAttr(path, name string) (string, error) {
	m.rlock()
	defer m.runlock()
	n, p, err := m.xattrNode("getxattr", path)
	if err != nil {
		return "", err
	}
	v, ok := n.xattrs[name]
	if !ok {
		return "", &fserrors.Error{Kind: fserrors.KindNotFound, Op: "getxattr", Path: p, Msg: name}
	}
	return v, nil
}

// SetXAttr sets the named attribute of the entry at path.
func (m *FS) SetXAttr(path, name, value string) error {
	m.lock()
	defer m.unlock()
	n, _, err := m.xattrNode("setxattr", path)
	if err != nil {
		return err
	}
	if n.xattrs == nil {
		n.xattrs = make(map[string]string)
	}
	n.xattrs[name] = value
	return nil
}

// DelXAttr removes the named attribute of the entry at path. Removing an
// absent attribute is not an error.
func (m *FS) DelXAttr(path, name string) error {
	m.lock()
	defer m.unlock()
	n, _, err := m.xattrNode("delxattr", path)
	if err != nil {
		return err
	}
	delete(n.xattrs, name)
	return nil
}

// ListXAttrs returns the attribute names of the entry at path, sorted.
func (m *FS) ListXAttrs(path string) ([]string, error) {
	m.rlock()
	defer m.runlock()
	n, _, err := m.xattrNode("listxattrs", path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(n.xattrs))
	for k := range n.xattrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}
