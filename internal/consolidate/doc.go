// Package consolidate merges one trading day of per-source JSONL logs into a
// single time-aligned stream.
//
// A run moves through Init, Scanning, Bucketing, Merging, SanityCorrecting,
// Writing and Done. Per-file and per-line faults are counted and the run
// continues (the report is marked partial). Only failing to create the
// output is fatal. Source files may still be appended to while a run reads
// them: a trailing line without a newline is treated as not yet written.
//
// Output is deterministic. Running twice over the same inputs yields
// byte-identical files, compressed or not.
package consolidate
