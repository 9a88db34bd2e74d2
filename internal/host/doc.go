// Package host defines the read-only port through which adapters pull data
// from the charting host, and an in-memory implementation fed by frames.
//
// The charting host publishes one Frame per study callback. Memory keeps the
// most recent bars of every chart so adapters can read the current bar and
// scan back for session boundaries. A View binds a Port to one chart; its
// ReadSeries may still read other charts (correlation peers).
package host
