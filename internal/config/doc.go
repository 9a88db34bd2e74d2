// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// A small set of deployment knobs can also be overridden directly from the
// environment (CHARTFLOW_DATA_ROOT, CHARTFLOW_LOG_LEVEL, CHARTFLOW_BRIDGE_URL,
// CHARTFLOW_DATABASE_URL); overrides win over the file.
package config
