package vfs

import (
	"errors"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/anyfs/anyfs/fspath"
)

// ErrExclusiveFilters is returned when a listing requests both DirsOnly and
// FilesOnly.
var ErrExclusiveFilters = errors.New("vfs: dirs_only and files_only are mutually exclusive")

// FilterEntries applies a ListOptions filter to raw directory entries. It is
// shared by backends so that wildcard and type filtering behave identically
// everywhere. Entries are returned sorted by name.
func FilterEntries(entries []Info, opts ListOptions) ([]Info, error) {
	if opts.DirsOnly && opts.FilesOnly {
		return nil, ErrExclusiveFilters
	}
	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		if opts.DirsOnly && !e.IsDir {
			continue
		}
		if opts.FilesOnly && e.IsDir {
			continue
		}
		if opts.Wildcard != "" {
			match, err := doublestar.Match(opts.Wildcard, e.Name)
			if err != nil {
				return nil, err
			}
			if !match {
				continue
			}
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// RenderName renders a single entry name per the listing's path mode: bare
// name, the path including the queried directory in relative form ("full"),
// or the absolute path from the filesystem root.
func RenderName(dir string, e Info, opts ListOptions) (string, error) {
	switch {
	case opts.Absolute:
		joined, err := fspath.Join(dir, e.Name)
		if err != nil {
			return "", err
		}
		return fspath.Abs(joined)
	case opts.Full:
		joined, err := fspath.Join(dir, e.Name)
		if err != nil {
			return "", err
		}
		return fspath.Rel(joined)
	default:
		return e.Name, nil
	}
}

// RenderNames maps FilterEntries output to the requested path rendering.
func RenderNames(dir string, entries []Info, opts ListOptions) ([]string, error) {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name, err := RenderName(dir, e, opts)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}
