// Package bridge connects the collector to the charting host plugin.
//
// The host plugin serves a WebSocket and publishes one JSON frame per study
// callback. Client wraps a single connection with keepalive and stale
// detection. Bridge owns a Client, sends the subscribe command for the
// configured sources, forwards frames to the router without blocking, and
// reconnects with exponential backoff when the connection drops.
package bridge
