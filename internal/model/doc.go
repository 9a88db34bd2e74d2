// Package model defines the MarketEvent record shared by the adapters, the
// event writer and the consolidator.
//
// Conventions:
//   - Timestamps: fractional seconds since Unix epoch (float64)
//   - Prices: normalized, tick aligned float64
//   - BarIndex: monotonic sequence number within one source
//   - Optional host fields are pointers and are omitted from JSON when absent
//
// One event is encoded as one JSON line:
//
//	{"t":1718040000.25,"sym":"ES","type":"bar","i":1234,"open":5300.25,...,"chart":"es_1m"}
//
// Unified (consolidated) lines additionally start with "bucket_t".
package model
