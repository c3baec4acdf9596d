package vfs

import (
	"io"
	"time"
)

// Mode selects how a file is opened.
type Mode int

const (
	// ModeRead opens an existing file for reading.
	ModeRead Mode = iota
	// ModeWrite truncates an existing file or creates a new one. The
	// parent directory must already exist.
	ModeWrite
	// ModeAppend opens an existing file positioned at its end.
	ModeAppend
	// ModeReadWrite opens an existing file for both reading and writing.
	ModeReadWrite
)

// Readable reports whether the mode permits reads.
func (m Mode) Readable() bool { return m == ModeRead || m == ModeReadWrite }

// Writable reports whether the mode permits writes.
func (m Mode) Writable() bool { return m != ModeRead }

// Creates reports whether the mode creates a missing file.
func (m Mode) Creates() bool { return m == ModeWrite }

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "r"
	case ModeWrite:
		return "w"
	case ModeAppend:
		return "a"
	case ModeReadWrite:
		return "rw"
	}
	return "?"
}

// File is the seekable byte-stream handle returned by FS.Open. Close is
// idempotent.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
	Truncate(size int64) error
}

// Info is the metadata record returned by GetInfo and ListDirInfo. Size is
// always populated; time fields and MimeType are backend-dependent and may
// be zero.
type Info struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	IsDir    bool      `json:"is_dir"`
	Created  time.Time `json:"created,omitempty"`
	Accessed time.Time `json:"accessed,omitempty"`
	Modified time.Time `json:"modified,omitempty"`
	MimeType string    `json:"mime_type,omitempty"`
}

// ListOptions controls directory listing. DirsOnly and FilesOnly are
// mutually exclusive.
type ListOptions struct {
	// Wildcard filters entry names; supports doublestar patterns such as
	// "*.txt". Empty matches everything.
	Wildcard string
	// Full renders entries as paths relative to the queried directory.
	Full bool
	// Absolute renders entries as absolute paths from the filesystem
	// root. Takes precedence over Full.
	Absolute bool
	// DirsOnly restricts the listing to directories.
	DirsOnly bool
	// FilesOnly restricts the listing to files.
	FilesOnly bool
}

// MakeDirOptions controls directory creation.
type MakeDirOptions struct {
	// Recursive creates missing ancestor directories.
	Recursive bool
	// AllowRecreate tolerates the target already existing as a directory.
	AllowRecreate bool
}

// RemoveDirOptions controls directory removal.
type RemoveDirOptions struct {
	// Recursive prunes newly empty ancestor directories upward after the
	// removal, stopping at the first non-empty one. The root is never
	// removed.
	Recursive bool
	// Force destroys the directory's contents bottom-up first.
	Force bool
}

// FS is the abstract filesystem contract. Every path argument is
// normalized with fspath.Abs on entry; implementations may assume canonical
// form after that point. All operations on a closed filesystem fail with a
// FilesystemClosed error.
type FS interface {
	// Open returns a handle on the file at path. See Mode for
	// creation/truncation semantics.
	Open(path string, mode Mode) (File, error)

	// Exists reports whether a file or directory exists at path.
	Exists(path string) (bool, error)

	// IsDir reports whether path names a directory.
	IsDir(path string) (bool, error)

	// IsFile reports whether path names a file.
	IsFile(path string) (bool, error)

	// ListDir lists the entries of the directory at path, rendered and
	// filtered per opts.
	ListDir(path string, opts ListOptions) ([]string, error)

	// ListDirInfo is ListDir returning full metadata per entry.
	ListDirInfo(path string, opts ListOptions) ([]Info, error)

	// MakeDir creates a directory at path.
	MakeDir(path string, opts MakeDirOptions) error

	// Remove deletes the file at path. Directories fail with
	// ResourceInvalid.
	Remove(path string) error

	// RemoveDir deletes the directory at path. A non-empty directory
	// fails with DirectoryNotEmpty unless opts.Force is set.
	RemoveDir(path string, opts RemoveDirOptions) error

	// Rename changes the last path segment of src to dst's. Both paths
	// must share a parent directory; cross-directory relocation goes
	// through Move.
	Rename(src, dst string) error

	// GetInfo returns metadata for the entry at path.
	GetInfo(path string) (Info, error)

	// SetContents atomically replaces the contents of the file at path,
	// creating it if absent. This is the push primitive used by remote
	// buffering.
	SetContents(path string, r io.Reader) error

	// Meta returns the capability metadata fixed at construction.
	Meta() Meta

	// Close releases the filesystem's resources. Safe to call
	// concurrently with in-flight operations, which subsequently fail
	// with FilesystemClosed. Close is idempotent.
	Close() error
}

// XAttrFS is implemented by backends that support extended attributes.
type XAttrFS interface {
	GetXAttr(path, name string) (string, error)
	SetXAttr(path, name, value string) error
	DelXAttr(path, name string) error
	ListXAttrs(path string) ([]string, error)
}

// SysPathFS is implemented by backends whose paths map to native
// filesystem locations.
type SysPathFS interface {
	// SysPath returns the native path for path, or "" with a NoSysPath
	// condition signalled by ok=false.
	SysPath(path string) (syspath string, ok bool)
}

// TimesFS is implemented by backends that can stamp access and
// modification times explicitly.
type TimesFS interface {
	SetTimes(path string, accessed, modified time.Time) error
}
