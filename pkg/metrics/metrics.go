// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes the mount's cache and gateway behavior as
// Prometheus series: per-cache hit/miss/eviction counters and a gateway
// RPC latency histogram, registered on their own registry and served over
// HTTP the same way the teacher serves its snapshotter metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Cache names, used as the "cache" label value across the hit/miss/
// eviction series.
const (
	CacheResolve       = "resolve"
	CacheCidType       = "cid_type"
	CachePathSize      = "path_size"
	CacheLs            = "ls"
	CacheBlock         = "block"
	CacheSubblockCIDs  = "subblock_cids"
	CacheSubblockSizes = "subblock_sizes"
)

var (
	// CacheHits counts GetOrLoad/Get calls answered from cache, by cache name.
	CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipfs_fuse_mount_cache_hits_total",
		Help: "Number of cache lookups served without a daemon RPC, by cache",
	}, []string{"cache"})

	// CacheMisses counts lookups that required populating the cache, by
	// cache name.
	CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipfs_fuse_mount_cache_misses_total",
		Help: "Number of cache lookups that issued a daemon RPC, by cache",
	}, []string{"cache"})

	// CacheEvictions counts LRU evictions, by cache name.
	CacheEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipfs_fuse_mount_cache_evictions_total",
		Help: "Number of entries evicted under capacity pressure, by cache",
	}, []string{"cache"})

	// GatewayRequestDuration tracks daemon RPC latency, by call name and
	// outcome (success, error_response, timeout, error).
	GatewayRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ipfs_fuse_mount_gateway_request_duration_seconds",
		Help:    "Latency of daemon HTTP RPCs",
		Buckets: prometheus.DefBuckets,
	}, []string{"call", "outcome"})
)

// Registry is this module's own Prometheus registry, separate from the
// default global one so an embedding process can't accidentally pull in
// unrelated collectors.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(CacheHits, CacheMisses, CacheEvictions, GatewayRequestDuration)
}
