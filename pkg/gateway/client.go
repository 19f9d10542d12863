// SPDX-License-Identifier: Apache-2.0

// Package gateway is a thin, typed façade over the IPFS daemon's HTTP RPC
// API: resolve, object.data, object.links, block.get, block.stat, ls.
// Every call takes a context.Context for its deadline; a deadline exceeded
// surfaces as errdefs.KindTimeout, an ErrorResponse from the daemon
// surfaces as a nil result (not a Go error) for the calls the Cached DAG
// Reader treats as cacheable-negative, and anything else is
// errdefs.KindInternal.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/errdefs"
	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/metrics"
)

const (
	endpointResolve     = "/api/v0/resolve"
	endpointObjectData  = "/api/v0/object/data"
	endpointObjectLinks = "/api/v0/object/links"
	endpointBlockGet    = "/api/v0/block/get"
	endpointBlockStat   = "/api/v0/block/stat"
	endpointLs          = "/api/v0/ls"

	defaultHTTPClientTimeout = 30 * time.Second
)

// Client is the daemon RPC surface the Cached DAG Reader depends on.
type Client interface {
	Resolve(ctx context.Context, path string) (*ResolveResult, error)
	ObjectData(ctx context.Context, cid string) ([]byte, error)
	ObjectLinks(ctx context.Context, cid string) (*ObjectLinksResult, error)
	BlockGet(ctx context.Context, cid string) ([]byte, error)
	BlockStat(ctx context.Context, cid string) (*BlockStatResult, error)
	Ls(ctx context.Context, path string) (map[string]Link, error)
}

type client struct {
	httpClient *http.Client
	baseURL    string
}

// New builds a Client talking to the daemon's HTTP API at host:port.
func New(host string, port int) Client {
	return &client{
		httpClient: &http.Client{
			Timeout:   defaultHTTPClientTimeout,
			Transport: buildTransport(),
		},
		baseURL: fmt.Sprintf("http://%s", net.JoinHostPort(host, fmt.Sprint(port))),
	}
}

func buildTransport() http.RoundTripper {
	return &http.Transport{
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

type query = url.Values

func (c *client) url(path string, q query) string {
	u := c.baseURL + path
	if len(q) != 0 {
		u += "?" + q.Encode()
	}
	return u
}

// request issues a POST (the IPFS daemon API convention for all RPCs,
// resolve and stat included) and hands a successful response body to
// respHandler. A deadline exceeded on ctx is reported as errdefs.KindTimeout;
// a non-2xx HTTP status with the daemon's JSON error envelope is reported
// as notFoundKind, so each caller can carry the meaning the spec assigns
// its particular ErrorResponse case — cacheable-negative for resolve,
// object.data, object.links and ls, a surfaced InvalidIPFSPath for
// block.get and block.stat; anything else is errdefs.KindInternal.
func (c *client) request(ctx context.Context, path string, q query, notFoundKind errdefs.Kind, respHandler func(io.Reader) error) (err error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		metrics.GatewayRequestDuration.WithLabelValues(path, outcome).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path, q), nil)
	if err != nil {
		outcome = "error"
		return errdefs.Wrapf(errdefs.KindInternal, err, "construct request %s", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			outcome = "timeout"
			return errdefs.Wrapf(errdefs.KindTimeout, err, "request %s", path)
		}
		outcome = "error"
		return errdefs.Wrapf(errdefs.KindInternal, err, "request %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		outcome = "error_response"
		return errdefs.Wrapf(notFoundKind, errors.Errorf("http status %d: %s", resp.StatusCode, errResp.Message), "%s", path)
	}

	if respHandler == nil {
		return nil
	}
	if err := respHandler(resp.Body); err != nil {
		outcome = "error"
		return err
	}
	return nil
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func (c *client) Resolve(ctx context.Context, path string) (*ResolveResult, error) {
	q := query{}
	q.Add("arg", path)

	var out ResolveResult
	err := c.request(ctx, endpointResolve, q, errdefs.KindUnresolvable, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	})
	if err != nil {
		if errdefs.Is(err, errdefs.KindUnresolvable) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (c *client) ObjectData(ctx context.Context, cid string) ([]byte, error) {
	q := query{}
	q.Add("arg", cid)

	var data []byte
	err := c.request(ctx, endpointObjectData, q, errdefs.KindUnresolvable, func(r io.Reader) error {
		var err error
		data, err = io.ReadAll(r)
		return err
	})
	if err != nil {
		if errdefs.Is(err, errdefs.KindUnresolvable) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (c *client) ObjectLinks(ctx context.Context, cid string) (*ObjectLinksResult, error) {
	q := query{}
	q.Add("arg", cid)

	var out ObjectLinksResult
	err := c.request(ctx, endpointObjectLinks, q, errdefs.KindUnresolvable, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	})
	if err != nil {
		if errdefs.Is(err, errdefs.KindUnresolvable) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (c *client) BlockGet(ctx context.Context, cid string) ([]byte, error) {
	q := query{}
	q.Add("arg", cid)

	var data []byte
	err := c.request(ctx, endpointBlockGet, q, errdefs.KindInvalidPath, func(r io.Reader) error {
		var err error
		data, err = io.ReadAll(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *client) BlockStat(ctx context.Context, cid string) (*BlockStatResult, error) {
	q := query{}
	q.Add("arg", cid)

	var out BlockStatResult
	err := c.request(ctx, endpointBlockStat, q, errdefs.KindInvalidPath, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) Ls(ctx context.Context, path string) (map[string]Link, error) {
	q := query{}
	q.Add("arg", path)

	var out lsResult
	err := c.request(ctx, endpointLs, q, errdefs.KindUnresolvable, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	})
	if err != nil {
		if errdefs.Is(err, errdefs.KindUnresolvable) {
			return nil, nil
		}
		return nil, err
	}

	if len(out.Objects) == 0 {
		return map[string]Link{}, nil
	}

	entries := make(map[string]Link, len(out.Objects[0].Links))
	for _, l := range out.Objects[0].Links {
		entries[l.Name] = l
	}
	return entries, nil
}
