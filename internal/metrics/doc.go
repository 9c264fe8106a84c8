// Package metrics records build and pipeline measurements.
//
// Components receive a Recorder and default to NoopRecorder, so nothing needs
// a nil check. The watch command swaps in a PrometheusRecorder when metrics are
// enabled and serves it through HTTPHandler.
package metrics
