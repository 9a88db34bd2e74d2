// Package export copies the unified stream into downstream formats.
//
// Row is the flat, columnar form of a unified event: the common keys become
// typed columns and the variant payload stays as its JSON object. Parquet
// writes one file per day next to the unified JSONL; the database package
// bulk-loads the same rows.
package export
