// Package dedup implements the write gate that sits between a source adapter
// and the event writer.
//
// Upstream hosts poll their studies far more often than the values change, so
// naive per-callback emission is dominated by duplicates. The Gate caches,
// per (source, symbol, event type, discriminator), the last written
// (timestamp, bar index) key and a hash of the last written payload. An event
// passes when:
//   - nothing is cached for its key yet (first observation)
//   - its (timestamp, bar index) differs from the cached key and its payload
//     differs from the cached payload
//   - its bar has just closed (forced flush, at most once per bar index)
//
// A Gate belongs to one adapter and is not safe for concurrent use.
package dedup
