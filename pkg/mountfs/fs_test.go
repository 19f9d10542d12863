// SPDX-License-Identifier: Apache-2.0

package mountfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/dagreader"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/errdefs"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/unixfs"
)

func readerFor(c *fakeClient) *dagreader.Reader {
	return dagreader.New(c, dagreader.DefaultCacheSizes())
}

func TestResolveRootAcceptsDirectory(t *testing.T) {
	c := newFakeClient()
	c.resolve[ipfsPathPrefix+"Qmdir"] = "Qmdir"
	c.objects["Qmdir"] = mustEncode(unixfs.TypeDirectory, nil, 0, nil)

	cid, err := resolveRoot(readerFor(c), "Qmdir", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Qmdir", cid)
}

func TestResolveRootAcceptsFullPath(t *testing.T) {
	c := newFakeClient()
	c.resolve[ipfsPathPrefix+"straight/to/dir"] = "Qmdir"
	c.objects["Qmdir"] = mustEncode(unixfs.TypeDirectory, nil, 0, nil)

	cid, err := resolveRoot(readerFor(c), ipfsPathPrefix+"straight/to/dir", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Qmdir", cid)
}

func TestResolveRootRejectsUnresolvablePath(t *testing.T) {
	c := newFakeClient()

	_, err := resolveRoot(readerFor(c), "straight/to/nonsense", time.Second)
	require.Error(t, err)
	assert.True(t, errdefs.Is(err, errdefs.KindInvalidPath))
}

func TestResolveRootRejectsFile(t *testing.T) {
	c := newFakeClient()
	c.resolve[ipfsPathPrefix+"Qmfile"] = "Qmfile"
	c.objects["Qmfile"] = mustEncode(unixfs.TypeFile, []byte("hi"), 2, nil)

	_, err := resolveRoot(readerFor(c), "Qmfile", time.Second)
	require.Error(t, err)
	assert.True(t, errdefs.Is(err, errdefs.KindInvalidPath))
}

func TestResolveRootAcceptsHAMTShard(t *testing.T) {
	c := newFakeClient()
	c.resolve[ipfsPathPrefix+"Qmshard"] = "Qmshard"
	c.objects["Qmshard"] = mustEncode(unixfs.TypeHAMTShard, nil, 0, nil)

	cid, err := resolveRoot(readerFor(c), "Qmshard", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Qmshard", cid)
}
