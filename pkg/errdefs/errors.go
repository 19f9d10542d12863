// SPDX-License-Identifier: Apache-2.0

// Package errdefs defines the small closed set of error kinds that flow
// out of the cache/DAG/gateway layers. Only pkg/mountfs translates a Kind
// into a syscall.Errno; nothing below it knows about FUSE.
package errdefs

import (
	"github.com/pkg/errors"
)

// Kind classifies a failure the way the rest of the module reasons about
// it, independent of how it will eventually be reported to the kernel.
type Kind int

const (
	// KindInternal covers anything that doesn't fit the other kinds.
	KindInternal Kind = iota
	// KindInvalidPath covers malformed CIDs, UnixFS decode failures, and
	// a resolve() result that isn't rooted at /ipfs/.
	KindInvalidPath
	// KindUnresolvable covers a daemon ErrorResponse on resolve/ls/object.*,
	// cached as a negative sentinel.
	KindUnresolvable
	// KindTimeout covers a daemon RPC that exceeded its deadline. Never
	// cached.
	KindTimeout
	// KindWrongKind covers reading a directory or listing a file.
	KindWrongKind
	// KindReadOnly covers any write flag passed to open().
	KindReadOnly
)

func (k Kind) String() string {
	switch k {
	case KindInvalidPath:
		return "invalid-path"
	case KindUnresolvable:
		return "unresolvable"
	case KindTimeout:
		return "timeout"
	case KindWrongKind:
		return "wrong-kind"
	case KindReadOnly:
		return "read-only"
	default:
		return "internal"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Cause() error  { return e.err }
func (e *kindError) Unwrap() error { return e.err }

// New builds an error of the given kind with a message, in the style of
// errors.New.
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, err: errors.New(msg)}
}

// Wrap attaches a kind to an existing error, preserving its cause chain.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrap(err, msg)}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrapf(err, format, args...)}
}

// GetKind extracts the Kind carried by err, defaulting to KindInternal for
// errors that never passed through this package.
func GetKind(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindInternal
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}

var (
	// ErrInvalidPath is returned for malformed CIDs and UnixFS decode
	// failures that are not expected to ever succeed on retry.
	ErrInvalidPath = New(KindInvalidPath, "invalid IPFS path")
	// ErrUnresolvable marks a path the daemon could not resolve.
	ErrUnresolvable = New(KindUnresolvable, "unresolvable IPFS path")
)
