// SPDX-License-Identifier: Apache-2.0

// Package mountfs is the Filesystem Surface: it translates FUSE callbacks
// into Cached DAG Reader queries, applies the read-only policy, and maps
// Reader outcomes onto POSIX errno values. Nothing below this package
// knows that FUSE exists.
package mountfs

import (
	"syscall"

	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/errdefs"
)

// toErrno maps a Reader error to the errno the kernel should see. Callers
// that need EISDIR/ENOTDIR (reading a directory, or listing a file) decide
// that locally from the node's UnixFS type rather than through this path,
// since the Reader has no notion of which direction the caller wanted.
func toErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	switch errdefs.GetKind(err) {
	case errdefs.KindInvalidPath, errdefs.KindUnresolvable:
		return syscall.ENOENT
	case errdefs.KindTimeout:
		return syscall.EAGAIN
	case errdefs.KindReadOnly:
		return syscall.EROFS
	case errdefs.KindWrongKind:
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}
