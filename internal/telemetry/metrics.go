// Package telemetry holds the Prometheus instrumentation for the
// augmentation pipeline and its HTTP exposition endpoint.
package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts batch requests answered by the defect node.
	RequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "volaug_requests_total",
		Help: "Batch requests processed by the defect augmentation node.",
	})

	// AugmentedSlices counts augmented slices by kind.
	AugmentedSlices = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volaug_augmented_slices_total",
		Help: "Slices augmented, labelled by augmentation kind.",
	}, []string{"kind"})

	// ExpandedRequests counts requests whose upstream region was grown to
	// feed a slice deformation.
	ExpandedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "volaug_expanded_requests_total",
		Help: "Requests whose upstream region was grown for deformation.",
	})
)

// Expose serves /metrics on the given port in the background.
func Expose(port int) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
	}()
}
