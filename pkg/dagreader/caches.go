// SPDX-License-Identifier: Apache-2.0

// Package dagreader implements the Cached DAG Reader: it composes the CID
// classifier, UnixFS decoder, gateway adapter, and locking LRU cache to
// answer resolve/stat/read queries against a UnixFS DAG exposed by an IPFS
// daemon, short-circuiting on seven caches before ever hitting the wire.
package dagreader

import (
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/gateway"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/lru"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/metrics"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/unixfs"
)

// Default cache capacities, as specified.
const (
	DefaultResolveCacheSize       = 131072
	DefaultCidTypeCacheSize       = 131072
	DefaultPathSizeCacheSize      = 131072
	DefaultLsCacheSize            = 64
	DefaultBlockCacheSize         = 16
	DefaultSubblockCIDsCacheSize  = 256
	DefaultSubblockSizesCacheSize = 256
)

// CacheSizes configures the capacity of each of the seven caches.
type CacheSizes struct {
	Resolve       int
	CidType       int
	PathSize      int
	Ls            int
	Block         int
	SubblockCIDs  int
	SubblockSizes int
}

// DefaultCacheSizes returns the specified default capacities.
func DefaultCacheSizes() CacheSizes {
	return CacheSizes{
		Resolve:       DefaultResolveCacheSize,
		CidType:       DefaultCidTypeCacheSize,
		PathSize:      DefaultPathSizeCacheSize,
		Ls:            DefaultLsCacheSize,
		Block:         DefaultBlockCacheSize,
		SubblockCIDs:  DefaultSubblockCIDsCacheSize,
		SubblockSizes: DefaultSubblockSizesCacheSize,
	}
}

// caches bundles the seven independently-lockable caches owned by a
// Reader. Each is its own mutex domain; the only cross-cache contention
// point is the per-object single-flight in loadObjectData.
type caches struct {
	resolve       *lru.Cache[string, lru.Option[string]]
	cidType       *lru.Cache[string, unixfs.Type]
	pathSize      *lru.Cache[string, uint64]
	ls            *lru.Cache[string, lru.Option[map[string]gateway.Link]]
	block         *lru.Cache[string, []byte]
	subblockCIDs  *lru.Cache[string, []string]
	subblockSizes *lru.Cache[string, []uint64]
}

func newCaches(sizes CacheSizes) *caches {
	c := &caches{
		resolve:       lru.New[string, lru.Option[string]](sizes.Resolve),
		cidType:       lru.New[string, unixfs.Type](sizes.CidType),
		pathSize:      lru.New[string, uint64](sizes.PathSize),
		ls:            lru.New[string, lru.Option[map[string]gateway.Link]](sizes.Ls),
		block:         lru.New[string, []byte](sizes.Block),
		subblockCIDs:  lru.New[string, []string](sizes.SubblockCIDs),
		subblockSizes: lru.New[string, []uint64](sizes.SubblockSizes),
	}

	c.resolve.OnEvict(evictionRecorder(metrics.CacheResolve))
	c.cidType.OnEvict(evictionRecorder(metrics.CacheCidType))
	c.pathSize.OnEvict(evictionRecorder(metrics.CachePathSize))
	c.ls.OnEvict(evictionRecorder(metrics.CacheLs))
	c.block.OnEvict(evictionRecorder(metrics.CacheBlock))
	c.subblockCIDs.OnEvict(evictionRecorder(metrics.CacheSubblockCIDs))
	c.subblockSizes.OnEvict(evictionRecorder(metrics.CacheSubblockSizes))

	return c
}

func evictionRecorder(name string) func(string) {
	return func(string) {
		metrics.CacheEvictions.WithLabelValues(name).Inc()
	}
}
