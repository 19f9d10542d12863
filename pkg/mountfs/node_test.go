// SPDX-License-Identifier: Apache-2.0

package mountfs

import (
	"context"
	"syscall"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/dagreader"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/errdefs"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/gateway"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/unixfs"
)

// fakeClient mirrors the one in pkg/dagreader's tests: an in-memory
// gateway.Client driven entirely by table lookups.
type fakeClient struct {
	objects map[string][]byte
	raw     map[string][]byte
	resolve map[string]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}, raw: map[string][]byte{}, resolve: map[string]string{}}
}

func (f *fakeClient) Resolve(_ context.Context, path string) (*gateway.ResolveResult, error) {
	cid, ok := f.resolve[path]
	if !ok {
		return nil, nil
	}
	return &gateway.ResolveResult{Path: ipfsPathPrefix + cid}, nil
}

func (f *fakeClient) ObjectData(_ context.Context, cid string) ([]byte, error) {
	raw, ok := f.objects[cid]
	if !ok {
		return nil, errdefs.ErrUnresolvable
	}
	return raw, nil
}

func (f *fakeClient) ObjectLinks(context.Context, string) (*gateway.ObjectLinksResult, error) {
	return nil, nil
}

func (f *fakeClient) BlockGet(_ context.Context, cid string) ([]byte, error) {
	b, ok := f.raw[cid]
	if !ok {
		return nil, errdefs.ErrUnresolvable
	}
	return b, nil
}

func (f *fakeClient) BlockStat(_ context.Context, cid string) (*gateway.BlockStatResult, error) {
	b, ok := f.raw[cid]
	if !ok {
		return nil, errdefs.ErrUnresolvable
	}
	return &gateway.BlockStatResult{Key: cid, Size: uint64(len(b))}, nil
}

func (f *fakeClient) Ls(context.Context, string) (map[string]gateway.Link, error) { return nil, nil }

func testFS(c *fakeClient) *FS {
	return newFS(dagreader.New(c, dagreader.DefaultCacheSizes()), Options{Timeout: time.Second})
}

func TestNodeModeDirectory(t *testing.T) {
	c := newFakeClient()
	c.objects["Qmdir"] = mustEncode(unixfs.TypeDirectory, nil, 0, nil)
	fsys := testFS(c)

	mode, err := nodeMode(context.Background(), fsys, "Qmdir")
	require.NoError(t, err)
	assert.Equal(t, uint32(syscall.S_IFDIR|0o555), mode)
}

func TestNodeModeFile(t *testing.T) {
	c := newFakeClient()
	c.objects["Qmfile"] = mustEncode(unixfs.TypeFile, []byte("hi"), 2, nil)
	fsys := testFS(c)

	mode, err := nodeMode(context.Background(), fsys, "Qmfile")
	require.NoError(t, err)
	assert.Equal(t, uint32(syscall.S_IFREG|0o444), mode)
}

func TestNodeModeUnknownCIDIsInvalidPath(t *testing.T) {
	c := newFakeClient()
	fsys := testFS(c)

	_, err := nodeMode(context.Background(), fsys, "not-a-cid")
	require.Error(t, err)
	assert.True(t, errdefs.Is(err, errdefs.KindInvalidPath))
}

func TestToErrnoMapping(t *testing.T) {
	assert.Equal(t, syscall.Errno(0), toErrno(nil))
	assert.Equal(t, syscall.ENOENT, toErrno(errdefs.ErrInvalidPath))
	assert.Equal(t, syscall.ENOENT, toErrno(errdefs.ErrUnresolvable))
	assert.Equal(t, syscall.EAGAIN, toErrno(errdefs.New(errdefs.KindTimeout, "timed out")))
	assert.Equal(t, syscall.EROFS, toErrno(errdefs.New(errdefs.KindReadOnly, "read only")))
}

// mustEncode builds the wire bytes of a UnixFS Data message, mirroring
// the protobuf layout pkg/unixfs decodes.
func mustEncode(t unixfs.Type, inline []byte, filesize uint64, blocksizes []uint64) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t))
	if inline != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, inline)
	}
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, filesize)
	for _, bs := range blocksizes {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, bs)
	}
	return b
}
