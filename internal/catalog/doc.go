// Package catalog persists video assets and resumable upload sessions in a
// local SQLite database. A file lock serializes read-write access so only one
// vidpress process mutates the catalog at a time.
package catalog
