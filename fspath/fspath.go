// Package fspath provides manipulation of paths in the canonical form used
// by all filesystem objects in this module.
//
// Canonical paths are slash-separated and absolute-normalized: backslashes
// are treated as separators, repeated separators collapse, "." segments are
// dropped and ".." segments resolve against their parent. Backends never see
// a path that has not been through Normalize.
package fspath

import (
	"strings"

	"github.com/anyfs/anyfs/fserrors"
)

// Sep is the canonical path separator.
const Sep = "/"

// Normalize converts a path to canonical form. Backslashes become slashes,
// duplicate separators collapse, "." segments are removed and ".." segments
// pop the preceding segment. Popping past the root fails with a PathError.
// Normalize is idempotent.
func Normalize(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	clean := strings.ReplaceAll(path, "\\", "/")
	absolute := strings.HasPrefix(clean, "/")
	var components []string
	for _, comp := range strings.Split(clean, "/") {
		switch comp {
		case "", ".":
		case "..":
			if len(components) == 0 {
				return "", fserrors.Path(path, "too many backrefs")
			}
			components = components[:len(components)-1]
		default:
			components = append(components, comp)
		}
	}
	joined := strings.Join(components, "/")
	if absolute {
		return "/" + joined, nil
	}
	return joined, nil
}

// Abs converts a path to normalized absolute form, adding a leading slash
// when one is not already present. Filesystem objects have no notion of a
// current directory, so this is purely syntactic.
func Abs(path string) (string, error) {
	norm, err := Normalize(path)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(norm, "/") {
		return "/" + norm, nil
	}
	return norm, nil
}

// Rel strips any leading separators from the normalized path, yielding its
// relative form. It is the inverse of Abs.
func Rel(path string) (string, error) {
	norm, err := Normalize(path)
	if err != nil {
		return "", err
	}
	return strings.TrimLeft(norm, "/"), nil
}

// Join concatenates path segments into a single normalized path. A segment
// that starts with a separator resets the join to absolute from that
// segment, mirroring shell cd semantics: Join("foo/bar", "/baz") == "/baz".
func Join(paths ...string) (string, error) {
	absolute := false
	var parts []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if p[0] == '/' || p[0] == '\\' {
			parts = parts[:0]
			absolute = true
		}
		parts = append(parts, p)
	}
	joined, err := Normalize(strings.Join(parts, "/"))
	if err != nil {
		return "", err
	}
	if absolute && !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return joined, nil
}

// Split divides a normalized path into a (parent, name) pair. The root path
// splits into ("", ""); a single-segment absolute path keeps "/" as parent.
func Split(path string) (parent, name string) {
	norm, err := Normalize(path)
	if err != nil || norm == "" || norm == "/" {
		return "", ""
	}
	idx := strings.LastIndex(norm, "/")
	if idx < 0 {
		return "", norm
	}
	parent = norm[:idx]
	if parent == "" {
		parent = "/"
	}
	return parent, norm[idx+1:]
}

// Dir returns the parent component of Split.
func Dir(path string) string {
	parent, _ := Split(path)
	return parent
}

// Base returns the name component of Split.
func Base(path string) string {
	_, name := Split(path)
	return name
}

// IsPrefix reports whether b equals a or is a descendant of a, comparing
// whole segments after normalization. IsPrefix("/foo/bar", "/foo/barry") is
// false.
func IsPrefix(a, b string) bool {
	na, err := Abs(a)
	if err != nil {
		return false
	}
	nb, err := Abs(b)
	if err != nil {
		return false
	}
	if na == "/" {
		return true
	}
	return nb == na || strings.HasPrefix(nb, na+"/")
}

// Segments returns the individual components of a path, ignoring leading and
// trailing separators. The root path yields no segments.
func Segments(path string) ([]string, error) {
	rel, err := Rel(path)
	if err != nil {
		return nil, err
	}
	if rel == "" {
		return nil, nil
	}
	return strings.Split(rel, "/"), nil
}

// Ancestors returns every normalized absolute prefix of the path from the
// root down to the path itself: Ancestors("/a/b") == ["/", "/a", "/a/b"].
func Ancestors(path string) ([]string, error) {
	segs, err := Segments(path)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(segs)+1)
	out = append(out, "/")
	current := ""
	for _, seg := range segs {
		current = current + "/" + seg
		out = append(out, current)
	}
	return out, nil
}

// SameDir reports whether two paths reference entries in the same directory.
func SameDir(a, b string) bool {
	return Dir(a) == Dir(b)
}
