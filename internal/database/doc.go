// Package database loads the unified stream into PostgreSQL/TimescaleDB.
//
// Loader is a consolidation exporter: each run replaces the rows for its day
// inside one transaction and bulk-inserts the new rows with COPY.
package database
