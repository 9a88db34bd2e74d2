// Package writer implements the EventWriter.
//
// Adapters hand events to Write, which only enqueues into a growable buffer
// and never blocks. A consumer goroutine drains the buffer and appends each
// event as one JSON line to
//
//	<root>/<source>_<type>_<YYYYMMDD>.jsonl
//
// The day is taken from the event timestamp in the configured location.
// Files are append-only and partitioned by (source, type, day), so different
// collectors never write the same file. A failure to open or append one file
// is logged and counted, the event is dropped, and every other file keeps
// being written.
package writer
