// Package objectstore adapts an S3-compatible store to the transfer engine's
// backend contract, including the multipart protocol used for large files.
package objectstore
