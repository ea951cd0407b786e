package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/sheetbuilder/sheetbuilder/internal/svcctx"
)

// MetricsEndpoint exposes Prometheus metrics at GET /metrics.
type MetricsEndpoint struct{}

func (e *MetricsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/metrics", e.handler
}

func (e *MetricsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	m := svcctx.MetricsFrom(r.Context())
	if m == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics not initialized")
		return
	}
	m.Handler().ServeHTTP(w, r)
}

func (e *MetricsEndpoint) Command(_ func() string) *cobra.Command {
	return nil
}
