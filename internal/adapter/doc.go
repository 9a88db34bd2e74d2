// Package adapter turns host callbacks into normalized, gated market events.
//
// One Adapter serves one (source, symbol) chart. It is parameterized by a
// Descriptor that names the host series to read, the instrument's tick and
// corridor, the order-flow thresholds and the level families. Each call to
// OnBarUpdate reads the current bar through the host port, builds one event
// per enabled type, passes each through the write gate, and hands accepted
// events to a non-blocking Sink.
//
// OnBarUpdate never returns an error and never panics. Missing fields are
// omitted and counted, prices outside the instrument corridor are emitted and
// counted, and inverted value areas or bands are swapped and counted.
//
// State holds everything an adapter mutates between calls. It belongs to
// exactly one Adapter and is only touched from the goroutine that drives it.
package adapter
