// Package levels maps leveled indicator families (gamma levels, blind spots)
// onto named price levels.
//
// A family publishes N sub-series indexed 0..N-1. Each index with a finite
// positive value becomes one NamedLevel, named through the family's table;
// indices past the table are named "<family>_<index>". Families change far
// less often than price, so each Extractor emits at most once per window of
// event time.
package levels
