// Package metrics defines the Prometheus collectors exported on /metrics.
//
// Collectors are registered with the default registry at init via promauto.
// HTTP metrics are recorded by the api middleware, tool metrics by the
// transcoder, and job metrics by the pipeline and workflow manager.
package metrics
