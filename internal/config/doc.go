// Package config loads, normalizes, and validates vidpress configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VIDPRESS_STORAGE_ACCESS_KEY. The Config type centralizes every knob the CLI
// and pipeline need, so storage credentials, chunking thresholds, and external
// service endpoints are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
