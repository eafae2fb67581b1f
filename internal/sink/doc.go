// Package sink delivers decoded measurements and burst summaries to their
// destinations.
//
// Ownership boundary:
// - CSV export (';' separated, one column per variable type)
// - structured log output
// - Redis pub/sub fan-out with a bounded history list
// - per-burst TOML report files
// - fan-out across several sinks
package sink
