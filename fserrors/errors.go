// Package fserrors defines the closed error taxonomy shared by every
// filesystem backend and wrapper in this module.
//
// Backend-native failures (OS errno values, HTTP statuses, network errors)
// are translated into one of these kinds at the backend boundary and never
// leak past it. Wrappers re-raise errors with paths rewritten into the outer
// path space but leave the kind and cause untouched.
package fserrors

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
)

// Kind identifies one member of the closed error set.
type Kind int

const (
	// KindPath marks a structurally invalid path string.
	KindPath Kind = iota
	// KindNotFound marks an operation referencing a nonexistent resource.
	KindNotFound
	// KindInvalid marks a resource of the wrong type for the operation,
	// e.g. a file where a directory was expected.
	KindInvalid
	// KindExists marks a destination that already exists.
	KindExists
	// KindNotEmpty marks removal of a non-empty directory.
	KindNotEmpty
	// KindParentMissing marks creation under a missing parent directory.
	KindParentMissing
	// KindLocked marks a resource unavailable due to a lock.
	KindLocked
	// KindUnsupported marks an operation the backend cannot perform.
	KindUnsupported
	// KindPermission marks an operation denied by the backend.
	KindPermission
	// KindRemote marks remote connection trouble.
	KindRemote
	// KindStorage marks insufficient storage space.
	KindStorage
	// KindTimeout marks an operation that exceeded its deadline.
	KindTimeout
	// KindNoMeta marks a capability lookup with no value and no default.
	KindNoMeta
	// KindClosed marks an operation on a closed filesystem.
	KindClosed
)

var kindNames = map[Kind]string{
	KindPath:          "invalid path",
	KindNotFound:      "resource not found",
	KindInvalid:       "resource is invalid",
	KindExists:        "destination exists",
	KindNotEmpty:      "directory is not empty",
	KindParentMissing: "parent directory is missing",
	KindLocked:        "resource is locked",
	KindUnsupported:   "operation not supported",
	KindPermission:    "permission denied",
	KindRemote:        "remote connection error",
	KindStorage:       "insufficient storage space",
	KindTimeout:       "operation timed out",
	KindNoMeta:        "no such capability",
	KindClosed:        "filesystem is closed",
}

// String returns a short human-readable name for the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown error kind %d", int(k))
}

// Error is the single error type raised by filesystem operations. Identity
// lives in Kind and the path fields; the rendered message is presentation
// only.
type Error struct {
	Kind  Kind
	Op    string // operation that failed, e.g. "makedir"
	Path  string // primary path, outer path space
	Path2 string // secondary path for two-path operations
	Msg   string // optional extra detail
	Cause error  // underlying backend error, if any
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Path != "" {
		s += ": " + e.Path
	}
	if e.Path2 != "" {
		s += " -> " + e.Path2
	}
	if e.Msg != "" {
		s += " (" + e.Msg + ")"
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap exposes the underlying cause to errors.Is/errors.As chains.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches two taxonomy errors by kind alone, so sentinel comparisons like
// errors.Is(err, &Error{Kind: KindNotFound}) work regardless of path fields.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// IsKind reports whether err is a taxonomy error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// KindOf returns the kind of a taxonomy error, or ok=false for foreign
// errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Path reports a structurally invalid path string.
func Path(path, msg string) *Error {
	return &Error{Kind: KindPath, Path: path, Msg: msg}
}

// NotFound reports a missing resource.
func NotFound(path string) *Error {
	return &Error{Kind: KindNotFound, Path: path}
}

// Invalid reports a resource of the wrong type.
func Invalid(path string) *Error {
	return &Error{Kind: KindInvalid, Path: path}
}

// Exists reports an already-present destination.
func Exists(path string) *Error {
	return &Error{Kind: KindExists, Path: path}
}

// NotEmpty reports a non-empty directory.
func NotEmpty(path string) *Error {
	return &Error{Kind: KindNotEmpty, Path: path}
}

// ParentMissing reports a missing parent directory.
func ParentMissing(path string) *Error {
	return &Error{Kind: KindParentMissing, Path: path}
}

// Locked reports a locked resource.
func Locked(path string) *Error {
	return &Error{Kind: KindLocked, Path: path}
}

// Unsupported reports an operation the backend cannot perform.
func Unsupported(op string) *Error {
	return &Error{Kind: KindUnsupported, Op: op}
}

// Permission reports a denied operation.
func Permission(op, path string) *Error {
	return &Error{Kind: KindPermission, Op: op, Path: path}
}

// Remote reports remote connection trouble.
func Remote(op string, cause error) *Error {
	return &Error{Kind: KindRemote, Op: op, Cause: cause}
}

// Storage reports insufficient storage space.
func Storage(op string) *Error {
	return &Error{Kind: KindStorage, Op: op}
}

// Timeout reports an operation that exceeded its deadline.
func Timeout(op string) *Error {
	return &Error{Kind: KindTimeout, Op: op}
}

// NoMeta reports a capability lookup that found no value and had no default.
func NoMeta(name string) *Error {
	return &Error{Kind: KindNoMeta, Msg: name}
}

// Closed reports use of a closed filesystem.
func Closed(op string) *Error {
	return &Error{Kind: KindClosed, Op: op}
}

// WithPaths returns a copy of err with its path fields replaced. Wrappers
// use this to rewrite inner paths into the outer path space. Foreign errors
// pass through unchanged.
func WithPaths(err error, path, path2 string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	clone := *e
	clone.Path = path
	clone.Path2 = path2
	return &clone
}

// FromOS translates an operating-system error into the taxonomy. It is the
// boundary used by the native disk backend; the reported path replaces
// whatever native path the OS error carried.
func FromOS(op, path string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	// ENOTEMPTY matches fs.ErrExist as of Go 1.23, so it goes first.
	case errors.Is(err, syscall.ENOTEMPTY):
		return &Error{Kind: KindNotEmpty, Op: op, Path: path, Cause: err}
	case errors.Is(err, fs.ErrNotExist):
		return &Error{Kind: KindNotFound, Op: op, Path: path, Cause: err}
	case errors.Is(err, fs.ErrExist):
		return &Error{Kind: KindExists, Op: op, Path: path, Cause: err}
	case errors.Is(err, fs.ErrPermission):
		return &Error{Kind: KindPermission, Op: op, Path: path, Cause: err}
	case errors.Is(err, os.ErrDeadlineExceeded):
		return &Error{Kind: KindTimeout, Op: op, Path: path, Cause: err}
	case errors.Is(err, syscall.ENOTDIR), errors.Is(err, syscall.EISDIR), errors.Is(err, syscall.EINVAL):
		return &Error{Kind: KindInvalid, Op: op, Path: path, Cause: err}
	case errors.Is(err, syscall.ENOSPC):
		return &Error{Kind: KindStorage, Op: op, Path: path, Cause: err}
	case errors.Is(err, syscall.EOPNOTSUPP), errors.Is(err, syscall.ENOSYS):
		return &Error{Kind: KindUnsupported, Op: op, Path: path, Cause: err}
	default:
		return &Error{Kind: KindInvalid, Op: op, Path: path, Cause: err}
	}
}
