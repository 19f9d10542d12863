// SPDX-License-Identifier: Apache-2.0

package dagreader

import (
	"context"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/cidclass"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/errdefs"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/gateway"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/lru"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/metrics"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/unixfs"
)

const ipfsPathPrefix = "/ipfs/"

func observe(cache string, hit bool) {
	if hit {
		metrics.CacheHits.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMisses.WithLabelValues(cache).Inc()
	}
}

// Reader answers resolve/stat/ls/read queries against a UnixFS DAG exposed
// over a gateway.Client, short-circuiting on its seven caches before
// issuing a daemon RPC. Every exported method is safe for concurrent use
// from any number of callers.
type Reader struct {
	client gateway.Client
	caches *caches

	// objectGroup coalesces concurrent loads of the same dag-pb object:
	// cid_type, path_size, block and subblock_sizes are all populated
	// from one object.data call, so the fetch itself — not just each
	// cache — is single-flighted by cid.
	objectGroup singleflight.Group
}

// New builds a Reader backed by client, with the given cache capacities.
func New(client gateway.Client, sizes CacheSizes) *Reader {
	return &Reader{client: client, caches: newCaches(sizes)}
}

// Resolve maps a kernel-visible path to the CID it names. ok is false if
// the path is unresolvable (cached as a negative result); it is never
// false as a result of a transient error — those are returned in err.
func (r *Reader) Resolve(ctx context.Context, path string) (cid string, ok bool, err error) {
	if _, hit := r.caches.resolve.Get(path); hit {
		observe(metrics.CacheResolve, true)
	} else {
		observe(metrics.CacheResolve, false)
	}
	opt, err := r.caches.resolve.GetOrLoad(path, func() (lru.Option[string], error) {
		res, err := r.client.Resolve(ctx, path)
		if err != nil {
			return lru.Option[string]{}, err
		}
		if res == nil || !strings.HasPrefix(res.Path, ipfsPathPrefix) {
			return lru.None[string](), nil
		}
		return lru.Some(strings.TrimPrefix(res.Path, ipfsPathPrefix)), nil
	})
	if err != nil {
		return "", false, err
	}
	if !opt.Valid {
		return "", false, nil
	}
	return opt.Value, true, nil
}

// CidType classifies cid: for a dag-pb object, its decoded UnixFS type; for
// a raw leaf, unixfs.TypeRaw. Any other CID shape is errdefs.ErrInvalidPath.
func (r *Reader) CidType(ctx context.Context, cid string) (unixfs.Type, error) {
	if t, ok := r.caches.cidType.Get(cid); ok {
		observe(metrics.CacheCidType, true)
		return t, nil
	}
	observe(metrics.CacheCidType, false)

	switch {
	case cidclass.IsObject(cid):
		d, err := r.loadObjectData(ctx, cid)
		if err != nil {
			return 0, err
		}
		return d.Type, nil
	case cidclass.IsV1Raw(cid):
		r.caches.cidType.Set(cid, unixfs.TypeRaw)
		return unixfs.TypeRaw, nil
	default:
		return 0, errdefs.ErrInvalidPath
	}
}

// PathIsDir reports whether path names a directory. An unresolvable path
// is reported as false, not an error.
func (r *Reader) PathIsDir(ctx context.Context, path string) (bool, error) {
	cid, ok, err := r.Resolve(ctx, path)
	if err != nil || !ok {
		return false, err
	}
	t, err := r.CidType(ctx, cid)
	if err != nil {
		return false, err
	}
	return t == unixfs.TypeDirectory || t == unixfs.TypeHAMTShard, nil
}

// PathIsFile reports whether path names a regular file or raw leaf. An
// unresolvable path is reported as false, not an error.
func (r *Reader) PathIsFile(ctx context.Context, path string) (bool, error) {
	cid, ok, err := r.Resolve(ctx, path)
	if err != nil || !ok {
		return false, err
	}
	t, err := r.CidType(ctx, cid)
	if err != nil {
		return false, err
	}
	return t == unixfs.TypeFile || t == unixfs.TypeRaw, nil
}

// PathSize resolves path and returns its logical size. ok is false if path
// is unresolvable.
func (r *Reader) PathSize(ctx context.Context, path string) (size uint64, ok bool, err error) {
	cid, ok, err := r.Resolve(ctx, path)
	if err != nil || !ok {
		return 0, ok, err
	}
	size, err = r.Size(ctx, cid)
	return size, true, err
}

// Size returns the logical size of the object or raw leaf named by cid:
// the decoded filesize for an object, or the block length for a raw leaf
// (falling back to block.stat when the block itself isn't cached).
func (r *Reader) Size(ctx context.Context, cid string) (uint64, error) {
	if v, ok := r.caches.pathSize.Get(cid); ok {
		observe(metrics.CachePathSize, true)
		return v, nil
	}
	observe(metrics.CachePathSize, false)

	switch {
	case cidclass.IsObject(cid):
		d, err := r.loadObjectData(ctx, cid)
		if err != nil {
			return 0, err
		}
		return d.Filesize, nil
	case cidclass.IsV1Raw(cid):
		if b, ok := r.caches.block.Get(cid); ok {
			return uint64(len(b)), nil
		}
		stat, err := r.client.BlockStat(ctx, cid)
		if err != nil {
			return 0, err
		}
		r.caches.pathSize.Set(cid, stat.Size)
		return stat.Size, nil
	default:
		return 0, errdefs.ErrInvalidPath
	}
}

// Ls lists the directory at path. ok is false if path is unresolvable.
func (r *Reader) Ls(ctx context.Context, path string) (entries map[string]gateway.Link, ok bool, err error) {
	if _, hit := r.caches.ls.Get(path); hit {
		observe(metrics.CacheLs, true)
	} else {
		observe(metrics.CacheLs, false)
	}
	opt, err := r.caches.ls.GetOrLoad(path, func() (lru.Option[map[string]gateway.Link], error) {
		es, err := r.client.Ls(ctx, path)
		if err != nil {
			return lru.Option[map[string]gateway.Link]{}, err
		}
		if es == nil {
			return lru.None[map[string]gateway.Link](), nil
		}
		return lru.Some(es), nil
	})
	if err != nil {
		return nil, false, err
	}
	if !opt.Valid {
		return nil, false, nil
	}
	return opt.Value, true, nil
}

// Block returns the raw bytes directly carried by cid: the inline Data
// field for a dag-pb object, or the full block for a raw leaf.
func (r *Reader) Block(ctx context.Context, cid string) ([]byte, error) {
	if b, ok := r.caches.block.Get(cid); ok {
		observe(metrics.CacheBlock, true)
		return b, nil
	}
	observe(metrics.CacheBlock, false)

	switch {
	case cidclass.IsObject(cid):
		d, err := r.loadObjectData(ctx, cid)
		if err != nil {
			return nil, err
		}
		return d.InlineData, nil
	case cidclass.IsV1Raw(cid):
		return r.caches.block.GetOrLoad(cid, func() ([]byte, error) {
			return r.client.BlockGet(ctx, cid)
		})
	default:
		return nil, errdefs.ErrInvalidPath
	}
}

// SubblockCIDs returns cid's children's CIDs in link order. Empty for raw
// leaves, which carry no links.
func (r *Reader) SubblockCIDs(ctx context.Context, cid string) ([]string, error) {
	if cidclass.IsV1Raw(cid) {
		return nil, nil
	}
	if !cidclass.IsObject(cid) {
		return nil, errdefs.ErrInvalidPath
	}

	if _, hit := r.caches.subblockCIDs.Get(cid); hit {
		observe(metrics.CacheSubblockCIDs, true)
	} else {
		observe(metrics.CacheSubblockCIDs, false)
	}
	return r.caches.subblockCIDs.GetOrLoad(cid, func() ([]string, error) {
		links, err := r.client.ObjectLinks(ctx, cid)
		if err != nil {
			return nil, err
		}
		if links == nil {
			return nil, errdefs.ErrUnresolvable
		}
		cids := make([]string, len(links.Links))
		for i, l := range links.Links {
			cids[i] = l.Hash
		}
		return cids, nil
	})
}

// SubblockSizes returns the logical size contributed by each of cid's
// children, parallel to SubblockCIDs. Empty for raw leaves.
func (r *Reader) SubblockSizes(ctx context.Context, cid string) ([]uint64, error) {
	if cidclass.IsV1Raw(cid) {
		return nil, nil
	}
	if v, ok := r.caches.subblockSizes.Get(cid); ok {
		observe(metrics.CacheSubblockSizes, true)
		return v, nil
	}
	observe(metrics.CacheSubblockSizes, false)
	if !cidclass.IsObject(cid) {
		return nil, errdefs.ErrInvalidPath
	}

	d, err := r.loadObjectData(ctx, cid)
	if err != nil {
		return nil, err
	}
	return d.Blocksizes, nil
}

// loadObjectData fetches and decodes the dag-pb object named by cid,
// populating cid_type, path_size, block and subblock_sizes in the same
// pass. Concurrent loads of the same cid, whichever accessor triggered
// them, coalesce onto a single object.data call.
func (r *Reader) loadObjectData(ctx context.Context, cid string) (*unixfs.Data, error) {
	if d, ok := r.cachedObjectData(cid); ok {
		return d, nil
	}

	v, err, _ := r.objectGroup.Do(cid, func() (interface{}, error) {
		if d, ok := r.cachedObjectData(cid); ok {
			return d, nil
		}

		raw, err := r.client.ObjectData(ctx, cid)
		if err != nil {
			return nil, err
		}
		d, err := unixfs.Decode(raw)
		if err != nil {
			return nil, err
		}

		r.caches.cidType.Set(cid, d.Type)
		r.caches.pathSize.Set(cid, d.Filesize)
		r.caches.block.Set(cid, d.InlineData)
		r.caches.subblockSizes.Set(cid, d.Blocksizes)
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*unixfs.Data), nil
}

func (r *Reader) cachedObjectData(cid string) (*unixfs.Data, bool) {
	t, ok := r.caches.cidType.Get(cid)
	if !ok {
		return nil, false
	}
	size, ok := r.caches.pathSize.Get(cid)
	if !ok {
		return nil, false
	}
	block, ok := r.caches.block.Get(cid)
	if !ok {
		return nil, false
	}
	sizes, ok := r.caches.subblockSizes.Get(cid)
	if !ok {
		return nil, false
	}
	return &unixfs.Data{Type: t, InlineData: block, Filesize: size, Blocksizes: sizes}, true
}

// ReadInto recursively reconstructs the bytes of the file subtree rooted
// at cid, writing as much of buf as is available starting at offset, and
// returns the absolute end offset of the data written (offset +
// bytes_written). A node whose UnixFS type is neither File nor Raw
// contributes no bytes and returns offset unchanged.
func (r *Reader) ReadInto(ctx context.Context, cid string, offset int64, buf []byte) (int64, error) {
	if cidclass.IsObject(cid) {
		t, err := r.CidType(ctx, cid)
		if err != nil {
			return offset, err
		}
		if t != unixfs.TypeFile && t != unixfs.TypeRaw {
			return offset, nil
		}
	}

	block, err := r.Block(ctx, cid)
	if err != nil {
		return offset, err
	}

	blockLen := int64(len(block))
	size := int64(len(buf))

	var n int64
	if offset < blockLen {
		n = min64(size, blockLen-offset)
		if n > 0 {
			copy(buf[:n], block[offset:offset+n])
		}
	}
	end := offset + n
	if size <= n {
		return end, nil
	}

	sizes, err := r.SubblockSizes(ctx, cid)
	if err != nil {
		return end, err
	}
	cids, err := r.SubblockCIDs(ctx, cid)
	if err != nil {
		return end, err
	}

	blockOffset := blockLen
	for i := 0; i < len(sizes) && i < len(cids); i++ {
		childSize := int64(sizes[i])
		childCID := cids[i]

		if offset+size <= blockOffset {
			break
		}
		if blockOffset+childSize > offset {
			childOffset := max64(0, offset-blockOffset)
			bufStart := min64(end-offset, size)
			bufEnd := min64(bufStart+childSize, size)

			recEnd, err := r.ReadInto(ctx, childCID, childOffset, buf[bufStart:bufEnd])
			if err != nil {
				return end, err
			}
			end = recEnd + blockOffset
		}
		blockOffset += childSize
	}

	return end, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
