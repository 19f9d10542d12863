// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"net/http"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const endpointPromMetrics = "/v1/metrics"

// Serve binds a Prometheus HTTP endpoint at addr and blocks serving it
// until the listener fails.
func Serve(addr string) error {
	if addr == "" {
		return errors.New("metrics listen address is empty")
	}

	mux := http.NewServeMux()
	mux.Handle(endpointPromMetrics, promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))

	log.L.Infof("starting metrics HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil { //nolint:gosec
		return errors.Wrapf(err, "serve metrics on %s", addr)
	}
	return nil
}
