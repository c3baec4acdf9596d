package vfs

import "github.com/anyfs/anyfs/fserrors"

// Documented capability names. The set is open; backends may publish
// additional keys.
const (
	MetaReadOnly             = "read_only"
	MetaNetwork              = "network"
	MetaUnicodePaths         = "unicode_paths"
	MetaCaseInsensitivePaths = "case_insensitive_paths"
	MetaAtomicMakeDir        = "atomic.makedir"
	MetaAtomicRename         = "atomic.rename"
	MetaAtomicSetContents    = "atomic.setcontents"
	MetaFreeSpace            = "free_space"
	MetaTotalSpace           = "total_space"
)

// Meta is per-instance capability metadata, written once at construction
// and queried thereafter. A missing key is a distinct condition (NoMeta
// error) from a key that is present with a false or empty value.
type Meta map[string]any

// Get returns the value for name, failing with a NoMeta error when the
// capability is unknown to this filesystem.
func (m Meta) Get(name string) (any, error) {
	if v, ok := m[name]; ok {
		return v, nil
	}
	return nil, fserrors.NoMeta(name)
}

// GetDefault returns the value for name, or def when the capability is
// unknown.
func (m Meta) GetDefault(name string, def any) any {
	if v, ok := m[name]; ok {
		return v
	}
	return def
}

// Has reports whether the capability is known to this filesystem.
func (m Meta) Has(name string) bool {
	_, ok := m[name]
	return ok
}

// BoolDefault returns the capability as a bool, or def when it is unknown
// or not boolean.
func (m Meta) BoolDefault(name string, def bool) bool {
	if v, ok := m[name].(bool); ok {
		return v
	}
	return def
}

// Clone returns a copy of the metadata. Wrappers that adjust capabilities
// clone rather than mutate the inner filesystem's map.
func (m Meta) Clone() Meta {
	out := make(Meta, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
