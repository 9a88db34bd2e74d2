// Package router dispatches host frames to source adapters.
//
// Frames arrive from the bridge, are queued in a bounded buffer that evicts
// the oldest frame under pressure, then recorded into the in-memory host
// port before the adapter for the frame's source is invoked. Frames for
// sources without an adapter are still recorded so peers can read them.
package router
