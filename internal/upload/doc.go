// Package upload implements the transfer engine that moves video files into
// object storage. Small files go up as a single PUT; files at or above the
// chunk threshold use the storage backend's multipart protocol with a bounded
// worker pool, per-part integrity tokens, and optional resumable persistence.
package upload
