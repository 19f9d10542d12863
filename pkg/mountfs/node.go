// SPDX-License-Identifier: Apache-2.0

package mountfs

import (
	"context"
	"sort"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/errdefs"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/unixfs"
)

const writeFlagsMask = syscall.O_WRONLY | syscall.O_RDWR | syscall.O_APPEND | syscall.O_CREAT | syscall.O_TRUNC

// Node is a FUSE inode backed by one CID. It carries no mutable state of
// its own — every attribute and every byte of content is re-derived from
// the Reader, which is where all caching lives — except its membership in
// fsys.nodes, released on Forget.
type Node struct {
	fs.Inode

	fsys *FS
	cid  string
}

var (
	_ fs.NodeLookuper  = (*Node)(nil)
	_ fs.NodeGetattrer = (*Node)(nil)
	_ fs.NodeReaddirer = (*Node)(nil)
	_ fs.NodeOpener    = (*Node)(nil)
	_ fs.NodeReader    = (*Node)(nil)
	_ fs.NodeForgetter = (*Node)(nil)
)

func (n *Node) path() string { return "/ipfs/" + n.cid }

// Lookup resolves name within the directory named by n.cid.
func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	cctx, cancel := context.WithTimeout(ctx, n.fsys.timeout)
	defer cancel()

	entries, ok, err := n.fsys.reader.Ls(cctx, n.path())
	if err != nil {
		return nil, toErrno(err)
	}
	if !ok {
		return nil, syscall.ENOENT
	}
	link, found := entries[name]
	if !found {
		return nil, syscall.ENOENT
	}

	mode, err := nodeMode(cctx, n.fsys, link.Hash)
	if err != nil {
		return nil, toErrno(err)
	}
	out.Attr.Mode = mode
	out.SetEntryTimeout(n.fsys.attrTimeout)
	out.SetAttrTimeout(n.fsys.attrTimeout)

	return n.fsys.childNode(ctx, &n.Inode, link.Hash, mode), 0
}

// Getattr reports this node's permission bits and, for regular files, its
// logical size. st_atime/st_mtime/st_ctime are left at zero: content
// addressing carries no timestamp.
func (n *Node) Getattr(ctx context.Context, _ fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	cctx, cancel := context.WithTimeout(ctx, n.fsys.timeout)
	defer cancel()

	mode, err := nodeMode(cctx, n.fsys, n.cid)
	if err != nil {
		return toErrno(err)
	}
	out.Mode = mode
	if mode&syscall.S_IFMT == syscall.S_IFREG {
		size, err := n.fsys.reader.Size(cctx, n.cid)
		if err != nil {
			return toErrno(err)
		}
		out.Size = size
	}
	out.SetTimeout(n.fsys.attrTimeout)
	return 0
}

// Readdir lists the directory named by n.cid. The listing is materialized
// once, up front, into a slice sorted by name: readdir observes a point-in-time
// snapshot, not a view that can change mid-iteration as the cache evolves.
func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	cctx, cancel := context.WithTimeout(ctx, n.fsys.timeout)
	defer cancel()

	t, err := n.fsys.reader.CidType(cctx, n.cid)
	if err != nil {
		return nil, toErrno(err)
	}
	if t != unixfs.TypeDirectory && t != unixfs.TypeHAMTShard {
		return nil, syscall.ENOTDIR
	}

	entries, ok, err := n.fsys.reader.Ls(cctx, n.path())
	if err != nil {
		return nil, toErrno(err)
	}
	if !ok {
		return nil, syscall.ENOENT
	}

	list := make([]fuse.DirEntry, 0, len(entries))
	for name, link := range entries {
		mode, err := nodeMode(cctx, n.fsys, link.Hash)
		if err != nil {
			// A child this filesystem cannot classify (malformed
			// CID, unresolvable) is silently omitted rather than
			// failing the whole listing.
			continue
		}
		list = append(list, fuse.DirEntry{Name: name, Mode: mode})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return fs.NewListDirStream(list), 0
}

// Open enforces the read-only and directory-vs-file policy. Any write
// flag fails with EROFS before any daemon RPC is issued; opening a
// directory through this path (rather than Opendir) fails with EISDIR.
func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&writeFlagsMask != 0 {
		return nil, 0, syscall.EROFS
	}

	cctx, cancel := context.WithTimeout(ctx, n.fsys.timeout)
	defer cancel()

	t, err := n.fsys.reader.CidType(cctx, n.cid)
	if err != nil {
		return nil, 0, toErrno(err)
	}
	if t == unixfs.TypeDirectory || t == unixfs.TypeHAMTShard {
		return nil, 0, syscall.EISDIR
	}
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

// Read reconstructs dest from the file subtree rooted at n.cid via the
// recursive range-read algorithm.
func (n *Node) Read(ctx context.Context, _ fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	cctx, cancel := context.WithTimeout(ctx, n.fsys.timeout)
	defer cancel()

	end, err := n.fsys.reader.ReadInto(cctx, n.cid, off, dest)
	if err != nil {
		return nil, toErrno(err)
	}
	written := end - off
	if written < 0 {
		written = 0
	}
	if written > int64(len(dest)) {
		written = int64(len(dest))
	}
	return fuse.ReadResultData(dest[:written]), 0
}

// Forget releases n.cid's slot in the FS's dedup table once the kernel
// has dropped its last reference to this inode.
func (n *Node) Forget() {
	n.fsys.forgetNode(n.cid)
}

// nodeMode classifies cid via the Reader and reports the fixed permission
// bits this filesystem assigns by kind: directories 0555, regular files
// and raw leaves 0444.
func nodeMode(ctx context.Context, fsys *FS, cid string) (uint32, error) {
	t, err := fsys.reader.CidType(ctx, cid)
	if err != nil {
		return 0, err
	}
	switch t {
	case unixfs.TypeDirectory, unixfs.TypeHAMTShard:
		return syscall.S_IFDIR | 0o555, nil
	case unixfs.TypeFile, unixfs.TypeRaw:
		return syscall.S_IFREG | 0o444, nil
	default:
		return 0, errdefs.ErrInvalidPath
	}
}
