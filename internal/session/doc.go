// Package session computes the previous session's VWAP and standard
// deviation bands from a volume-at-price profile.
//
// The current session start is found by scanning backward from the current
// bar for a session boundary, never further than MaxLookback bars. When no
// boundary is found the session is taken as the FallbackWindow bars ending
// at the current bar and the result is marked degraded. The previous session
// is the window ending just before the current start, bounded the same way.
//
// Recomputation runs at most once per new bar index, plus once whenever the
// trading day changes even if the index has not moved.
package session
