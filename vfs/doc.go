// Package vfs defines the contract every filesystem backend and wrapper in
// this module implements.
//
// The package is organized around a small set of pieces:
//   - FS: the abstract filesystem interface (open, list, make, remove,
//     rename, metadata, capability query)
//   - File: the seekable byte-stream handle returned by Open
//   - Meta: write-once capability metadata with default-bearing lookup
//   - ListOptions and the list filtering helpers shared by backends
//   - composite operations (Copy, Move, CopyDir, MoveDir, Walk) built once
//     from the contract primitives and usable against any backend
//
// Optional capabilities (extended attributes, native system paths, time
// stamping) are modeled as separate interfaces that backends implement when
// they can; the helpers in this package fall back to an Unsupported error
// when they cannot.
package vfs
