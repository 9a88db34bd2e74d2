// Package orderflow derives and classifies per-bar order-flow aggregates.
//
// Derive fills the fields a source may not publish (delta, total volume,
// delta ratio) and reconciles total volume so it is never below ask plus
// bid volume. Classify is a pure function of the bar and three thresholds.
package orderflow
