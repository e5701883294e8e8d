package upload

import (
	"context"
	"io"
)

// Method selects the transfer protocol for one upload session.
type Method string

const (
	MethodSingle  Method = "single"
	MethodChunked Method = "chunked"
)

// State represents the lifecycle of an upload session. Transitions are
// one-directional; complete and failed are terminal.
type State string

const (
	StatePreparing    State = "preparing"
	StateTransferring State = "transferring"
	StateFinalizing   State = "finalizing"
	StateComplete     State = "complete"
	StateFailed       State = "failed"
)

// PartStatus tracks one part of a chunked session.
type PartStatus string

const (
	PartPending  PartStatus = "pending"
	PartUploaded PartStatus = "uploaded"
	PartFailed   PartStatus = "failed"
)

// Part is one contiguous byte range of a chunked upload. Part numbers are
// 1-based and gapless from 1..totalParts.
type Part struct {
	Number int
	Offset int64
	Length int64
	Status PartStatus
	ETag   string
}

// Session describes one file transfer attempt. It is owned exclusively by the
// engine that created it.
type Session struct {
	FileName    string
	ContentType string
	SizeBytes   int64
	Method      Method
	State       State
	StorageKey  string
	PublicURL   string
	Parts       []Part
}

// Initiation carries the parameters the storage backend communicates when a
// multipart transfer begins.
type Initiation struct {
	StorageKey    string
	UploadID      string
	PartSizeBytes int64
	TotalParts    int
	PublicURL     string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key       string
	SizeBytes int64
	ETag      string
}

// CompletedPart pairs a part number with the integrity token storage returned
// for it. Finalize requests present these in ascending part-number order.
type CompletedPart struct {
	Number int
	ETag   string
}

// Backend abstracts the object storage collaborator.
type Backend interface {
	InitiateMultipart(ctx context.Context, key, contentType string, sizeBytes int64) (Multipart, Initiation, error)
	ResumeMultipart(ctx context.Context, key, uploadID string) (Multipart, error)
	PutObject(ctx context.Context, key, contentType string, r io.Reader, size int64) (ObjectInfo, error)
	StatObject(ctx context.Context, key string) (ObjectInfo, error)
	PublicURL(key string) string
}

// Multipart is one in-flight multipart transfer on the storage backend.
type Multipart interface {
	UploadPart(ctx context.Context, number int, r io.Reader, size int64) (etag string, err error)
	Complete(ctx context.Context, parts []CompletedPart) (ObjectInfo, error)
	Abort(ctx context.Context) error
}

// Progress receives cumulative byte counts after each completed part.
type Progress func(bytesUploaded, totalBytes int64)

// StoredSession is the externally persisted form of a session, keyed by a
// caller-supplied idempotency key so a restarted transfer can resume.
type StoredSession struct {
	Key           string
	FileName      string
	ContentType   string
	SizeBytes     int64
	Method        Method
	State         State
	StorageKey    string
	UploadID      string
	PublicURL     string
	PartSizeBytes int64
	TotalParts    int
}

// StoredPart is the externally persisted form of a part.
type StoredPart struct {
	Number int
	Offset int64
	Length int64
	Status PartStatus
	ETag   string
}

// SessionStore persists session and part state across process restarts.
// LoadSession returns (nil, nil, nil) when no session exists for the key.
type SessionStore interface {
	LoadSession(ctx context.Context, key string) (*StoredSession, []StoredPart, error)
	SaveSession(ctx context.Context, session *StoredSession) error
	SavePart(ctx context.Context, sessionKey string, part StoredPart) error
}
