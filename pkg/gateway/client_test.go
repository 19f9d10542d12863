// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/errdefs"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (Client, func()) {
	t.Helper()
	ts := httptest.NewServer(handler)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	host := u.Hostname()
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return New(host, port), ts.Close
}

func TestResolveSuccess(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ipfs/Qmfoo/bar", r.URL.Query().Get("arg"))
		j, _ := json.Marshal(ResolveResult{Path: "/ipfs/Qmresolved"})
		w.Write(j)
	})
	defer closeFn()

	res, err := c.Resolve(context.Background(), "/ipfs/Qmfoo/bar")
	require.NoError(t, err)
	assert.Equal(t, "/ipfs/Qmresolved", res.Path)
}

func TestResolveErrorResponseYieldsNil(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		j, _ := json.Marshal(errorResponse{Message: "no link named bar"})
		w.Write(j)
	})
	defer closeFn()

	res, err := c.Resolve(context.Background(), "/ipfs/Qmfoo/bar")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestRequestTimeoutSurfaces(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("{}"))
	})
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer cancel()

	_, err := c.Resolve(ctx, "/ipfs/Qmfoo")
	require.Error(t, err)
	assert.True(t, errdefs.Is(err, errdefs.KindTimeout))
}

func TestObjectDataSuccess(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("raw-payload"))
	})
	defer closeFn()

	data, err := c.ObjectData(context.Background(), "Qmfoo")
	require.NoError(t, err)
	assert.Equal(t, "raw-payload", string(data))
}

func TestObjectDataErrorResponseYieldsNil(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		j, _ := json.Marshal(errorResponse{Message: "no such object"})
		w.Write(j)
	})
	defer closeFn()

	data, err := c.ObjectData(context.Background(), "Qmmissing")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestBlockGetErrorResponseIsInvalidPath(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		j, _ := json.Marshal(errorResponse{Message: "merkledag: not found"})
		w.Write(j)
	})
	defer closeFn()

	_, err := c.BlockGet(context.Background(), "Qmmissing")
	require.Error(t, err)
	assert.True(t, errdefs.Is(err, errdefs.KindInvalidPath))
}

func TestBlockStatErrorResponseIsInvalidPath(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		j, _ := json.Marshal(errorResponse{Message: "merkledag: not found"})
		w.Write(j)
	})
	defer closeFn()

	_, err := c.BlockStat(context.Background(), "Qmmissing")
	require.Error(t, err)
	assert.True(t, errdefs.Is(err, errdefs.KindInvalidPath))
}

func TestLsBuildsNameMap(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		j, _ := json.Marshal(lsResult{Objects: []lsObject{{
			Hash: "Qmdir",
			Links: []Link{
				{Name: "aaa", Hash: "Qmaaa"},
				{Name: "bbb", Hash: "Qmbbb"},
			},
		}}})
		w.Write(j)
	})
	defer closeFn()

	entries, err := c.Ls(context.Background(), "/ipfs/Qmdir")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Qmaaa", entries["aaa"].Hash)
}

func TestLsErrorResponseYieldsNil(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer closeFn()

	entries, err := c.Ls(context.Background(), "/ipfs/Qmmissing")
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestBlockStatSuccess(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.Path, "block/stat"))
		j, _ := json.Marshal(BlockStatResult{Key: "Qmraw", Size: 42})
		w.Write(j)
	})
	defer closeFn()

	res, err := c.BlockStat(context.Background(), "Qmraw")
	require.NoError(t, err)
	assert.EqualValues(t, 42, res.Size)
}
