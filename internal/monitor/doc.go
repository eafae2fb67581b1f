// Package monitor exposes the live state of a picoctl run over HTTP.
//
// Ownership boundary:
// - bounded in-memory store of recent measurements and burst summaries
// - health, readiness, and Prometheus endpoints
// - read-only JSON views of the device, bursts, and measurements
package monitor
