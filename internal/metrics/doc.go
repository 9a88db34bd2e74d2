// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Events emitted, suppressed and force-flushed per source and type
//   - Data anomalies (gaps, scale, ordering, recovered panics)
//   - Writer line counts, I/O errors and buffer depth
//   - Frame routing and bridge connection state
//   - Consolidation line counts and run duration
//
// Every method is safe to call on a nil *Metrics, so components can be
// built without a registry in tests.
package metrics
