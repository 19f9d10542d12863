// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCacheHitsIncrementsByLabel(t *testing.T) {
	CacheHits.Reset()
	CacheHits.WithLabelValues(CacheBlock).Inc()
	CacheHits.WithLabelValues(CacheBlock).Inc()
	CacheHits.WithLabelValues(CacheLs).Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(CacheHits.WithLabelValues(CacheBlock)))
	assert.Equal(t, float64(1), testutil.ToFloat64(CacheHits.WithLabelValues(CacheLs)))
}

func TestRegistryGathersRegisteredSeries(t *testing.T) {
	families, err := Registry.Gather()
	assert := assert.New(t)
	assert.NoError(err)
	assert.NotEmpty(families)
}
