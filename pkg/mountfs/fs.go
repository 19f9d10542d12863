// SPDX-License-Identifier: Apache-2.0

package mountfs

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/dagreader"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/errdefs"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/unixfs"
)

const ipfsPathPrefix = "/ipfs/"

const defaultFsName = "ipfs-fuse-mount"

// Options configures one mount, independent of whether it is rooted or
// whole-namespace.
type Options struct {
	// Timeout bounds every daemon RPC issued while servicing a FUSE
	// callback.
	Timeout time.Duration
	// AttrTimeout is handed to the kernel as the attribute cache
	// lifetime; it does not affect Reader-side caching.
	AttrTimeout time.Duration
	AllowOther bool
	// Threaded, when false, serializes all FUSE callbacks onto one
	// goroutine (cooperative mode); when true, the kernel's worker
	// pool may call in concurrently (the default).
	Threaded bool
	FsName   string
	// MaxRead caps the size of a single kernel read request; 0 leaves
	// the kernel default in place.
	MaxRead int
	Debug   bool
}

// FS holds the state shared by every inode of one mount: the Cached DAG
// Reader and a CID-to-Inode table that lets two directory entries naming
// the same content share one inode, as content addressing implies they
// should.
type FS struct {
	reader      *dagreader.Reader
	timeout     time.Duration
	attrTimeout time.Duration

	mu    sync.Mutex
	nodes map[string]*fs.Inode
	nextI uint64
}

func newFS(reader *dagreader.Reader, opts Options) *FS {
	return &FS{
		reader:      reader,
		timeout:     opts.Timeout,
		attrTimeout: opts.AttrTimeout,
		nodes:       map[string]*fs.Inode{},
		nextI:       1,
	}
}

func (fsys *FS) nextIno() uint64 {
	fsys.nextI++
	return fsys.nextI
}

// childNode returns the existing Inode for cid if this FS has already
// handed one out, or builds and registers a new one under parent.
func (fsys *FS) childNode(ctx context.Context, parent *fs.Inode, cid string, mode uint32) *fs.Inode {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	if existing, ok := fsys.nodes[cid]; ok {
		return existing
	}
	child := &Node{fsys: fsys, cid: cid}
	stable := fs.StableAttr{Mode: mode &^ 0o7777, Ino: fsys.nextIno()}
	inode := parent.NewInode(ctx, child, stable)
	fsys.nodes[cid] = inode
	return inode
}

// forgetNode drops cid's entry once the kernel has released its last
// reference, so the table tracks only CIDs the kernel currently holds.
func (fsys *FS) forgetNode(cid string) {
	fsys.mu.Lock()
	delete(fsys.nodes, cid)
	fsys.mu.Unlock()
}

// Mount mounts the subtree rooted at rootPath at mountpoint: the
// mountpoint itself behaves as rootPath's directory. rootPath may be a
// bare CID or a full "/ipfs/..." path; it is resolved up front and the
// mount is refused unless it classifies as a directory, mirroring rooted
// mode's "resolve root; fail if root does not classify as a directory"
// contract.
func Mount(reader *dagreader.Reader, rootPath string, mountpoint string, opts Options) (*fuse.Server, error) {
	cid, err := resolveRoot(reader, rootPath, opts.Timeout)
	if err != nil {
		return nil, err
	}

	fsys := newFS(reader, opts)
	root := &Node{fsys: fsys, cid: cid}
	return mount(root, mountpoint, opts)
}

// resolveRoot resolves rootPath to the CID it names and refuses to
// proceed unless that CID classifies as a directory. A rootPath that
// fails to resolve, or that resolves to a file or raw leaf, is reported
// as errdefs.ErrInvalidPath — the refusal this filesystem uses instead
// of mounting something a directory-shaped root can't be.
func resolveRoot(reader *dagreader.Reader, rootPath string, timeout time.Duration) (string, error) {
	path := rootPath
	if !strings.HasPrefix(path, ipfsPathPrefix) {
		path = ipfsPathPrefix + path
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cid, ok, err := reader.Resolve(ctx, path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errdefs.ErrInvalidPath
	}

	t, err := reader.CidType(ctx, cid)
	if err != nil {
		return "", err
	}
	if t != unixfs.TypeDirectory && t != unixfs.TypeHAMTShard {
		return "", errdefs.ErrInvalidPath
	}
	return cid, nil
}

// MountWhole mounts the daemon's entire object namespace at mountpoint:
// any CID can be looked up as a top-level name, but the root itself
// cannot be listed.
func MountWhole(reader *dagreader.Reader, mountpoint string, opts Options) (*fuse.Server, error) {
	fsys := newFS(reader, opts)
	root := &WholeRoot{fsys: fsys}
	return mount(root, mountpoint, opts)
}

func mount(root fs.InodeEmbedder, mountpoint string, opts Options) (*fuse.Server, error) {
	fsName := opts.FsName
	if fsName == "" {
		fsName = defaultFsName
	}

	mountOpts := &fs.Options{
		MountOptions: fuse.MountOptions{
			AllowOther:     opts.AllowOther,
			FsName:         fsName,
			Name:           "ipfs",
			SingleThreaded: !opts.Threaded,
			MaxWrite:       opts.MaxRead,
			Debug:          opts.Debug,
		},
	}

	return fs.Mount(mountpoint, root, mountOpts)
}
