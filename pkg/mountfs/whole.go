// SPDX-License-Identifier: Apache-2.0

package mountfs

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/cidclass"
)

// WholeRoot is the root of a whole-namespace mount: it cannot be listed,
// but any syntactically valid CID can be looked up as a top-level name,
// exposing the daemon's entire object namespace without a fixed root.
type WholeRoot struct {
	fs.Inode

	fsys *FS
}

var (
	_ fs.NodeGetattrer = (*WholeRoot)(nil)
	_ fs.NodeLookuper  = (*WholeRoot)(nil)
	_ fs.NodeReaddirer = (*WholeRoot)(nil)
)

// Getattr reports the whole-mode root as a directory with no read
// permission bits: traversal into named children is allowed, listing is
// not.
func (r *WholeRoot) Getattr(_ context.Context, _ fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o111
	out.SetTimeout(r.fsys.attrTimeout)
	return 0
}

// Readdir always fails: the whole-mode root has no enumerable contents.
func (r *WholeRoot) Readdir(context.Context) (fs.DirStream, syscall.Errno) {
	return nil, syscall.EPERM
}

// Lookup treats name as a CID: if it classifies as an object or raw leaf
// and the daemon can classify it, a node for it is returned.
func (r *WholeRoot) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if !cidclass.IsObject(name) && !cidclass.IsV1Raw(name) {
		return nil, syscall.ENOENT
	}

	cctx, cancel := context.WithTimeout(ctx, r.fsys.timeout)
	defer cancel()

	mode, err := nodeMode(cctx, r.fsys, name)
	if err != nil {
		return nil, toErrno(err)
	}
	out.Attr.Mode = mode
	out.SetEntryTimeout(r.fsys.attrTimeout)
	out.SetAttrTimeout(r.fsys.attrTimeout)

	return r.fsys.childNode(ctx, &r.Inode, name, mode), 0
}
