package upload_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"vidpress/internal/services"
	"vidpress/internal/upload"
)

const mib = int64(1024 * 1024)

type fakeBackend struct {
	mu          sync.Mutex
	partSize    int64
	putCalls    int
	putKey      string
	putSize     int64
	initiations int
	resumeErr   error
	configure   func(*fakeMultipart)
	multipart   *fakeMultipart
}

func newFakeBackend(partSize int64) *fakeBackend {
	return &fakeBackend{partSize: partSize}
}

func (b *fakeBackend) InitiateMultipart(_ context.Context, key, _ string, sizeBytes int64) (upload.Multipart, upload.Initiation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initiations++
	totalParts := int((sizeBytes + b.partSize - 1) / b.partSize)
	b.multipart = &fakeMultipart{key: key}
	if b.configure != nil {
		b.configure(b.multipart)
	}
	return b.multipart, upload.Initiation{
		StorageKey:    key,
		UploadID:      "upload-1",
		PartSizeBytes: b.partSize,
		TotalParts:    totalParts,
		PublicURL:     "https://storage.example/" + key,
	}, nil
}

func (b *fakeBackend) ResumeMultipart(_ context.Context, key, _ string) (upload.Multipart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.resumeErr != nil {
		return nil, b.resumeErr
	}
	if b.multipart == nil {
		b.multipart = &fakeMultipart{key: key}
	}
	return b.multipart, nil
}

func (b *fakeBackend) PutObject(_ context.Context, key, _ string, r io.Reader, size int64) (upload.ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putCalls++
	b.putKey = key
	b.putSize = size
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return upload.ObjectInfo{}, err
	}
	if n != size {
		return upload.ObjectInfo{}, fmt.Errorf("read %d bytes, declared %d", n, size)
	}
	return upload.ObjectInfo{Key: key, SizeBytes: size, ETag: "etag-single"}, nil
}

func (b *fakeBackend) StatObject(_ context.Context, key string) (upload.ObjectInfo, error) {
	return upload.ObjectInfo{Key: key}, nil
}

func (b *fakeBackend) PublicURL(key string) string {
	return "https://storage.example/" + key
}

type fakeMultipart struct {
	mu        sync.Mutex
	key       string
	uploaded  map[int]int64
	failPart  int
	emptyETag int
	aborted   bool
	completed []upload.CompletedPart
}

func (m *fakeMultipart) UploadPart(_ context.Context, number int, r io.Reader, size int64) (string, error) {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return "", err
	}
	if n != size {
		return "", fmt.Errorf("part %d: read %d bytes, declared %d", number, n, size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPart != 0 && number == m.failPart {
		return "", errors.New("connection reset")
	}
	if m.emptyETag != 0 && number == m.emptyETag {
		return "", nil
	}
	if m.uploaded == nil {
		m.uploaded = make(map[int]int64)
	}
	m.uploaded[number] = size
	return fmt.Sprintf("etag-%d", number), nil
}

func (m *fakeMultipart) Complete(_ context.Context, parts []upload.CompletedPart) (upload.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = parts
	return upload.ObjectInfo{Key: m.key, ETag: "etag-final"}, nil
}

func (m *fakeMultipart) Abort(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aborted = true
	return nil
}

type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*upload.StoredSession
	parts    map[string]map[int]upload.StoredPart
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{
		sessions: make(map[string]*upload.StoredSession),
		parts:    make(map[string]map[int]upload.StoredPart),
	}
}

func (s *memorySessionStore) LoadSession(_ context.Context, key string) (*upload.StoredSession, []upload.StoredPart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[key]
	if !ok {
		return nil, nil, nil
	}
	copied := *session
	parts := make([]upload.StoredPart, 0, len(s.parts[key]))
	for _, part := range s.parts[key] {
		parts = append(parts, part)
	}
	return &copied, parts, nil
}

func (s *memorySessionStore) SaveSession(_ context.Context, session *upload.StoredSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.Key] = &copied
	return nil
}

func (s *memorySessionStore) SavePart(_ context.Context, sessionKey string, part upload.StoredPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.parts[sessionKey] == nil {
		s.parts[sessionKey] = make(map[int]upload.StoredPart)
	}
	s.parts[sessionKey][part.Number] = part
	return nil
}

func sourceOf(size int64) io.ReaderAt {
	return bytes.NewReader(make([]byte, size))
}

func TestTransferSmallFileUsesSinglePut(t *testing.T) {
	backend := newFakeBackend(50 * mib)
	engine, err := upload.NewEngine(backend, upload.EngineConfig{ChunkThreshold: 100 * mib})
	if err != nil {
		t.Fatal(err)
	}

	size := 8 * mib
	result, err := engine.Transfer(context.Background(), upload.Request{
		Key:         "videos/small.mp4",
		FileName:    "small.mp4",
		ContentType: "video/mp4",
		SizeBytes:   size,
		Source:      sourceOf(size),
	})
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if result.Method != upload.MethodSingle {
		t.Fatalf("method = %q, want single", result.Method)
	}
	if backend.putCalls != 1 {
		t.Fatalf("PutObject calls = %d, want 1", backend.putCalls)
	}
	if backend.initiations != 0 {
		t.Fatalf("multipart initiated for a small file")
	}
	if result.Session.State != upload.StateComplete {
		t.Fatalf("state = %q, want complete", result.Session.State)
	}
	if result.PublicURL != "https://storage.example/videos/small.mp4" {
		t.Fatalf("public URL = %q", result.PublicURL)
	}
}

func TestTransferChunkedSplitsIntoParts(t *testing.T) {
	backend := newFakeBackend(50 * mib)
	engine, err := upload.NewEngine(backend, upload.EngineConfig{
		ChunkThreshold: 100 * mib,
		Parallelism:    4,
	})
	if err != nil {
		t.Fatal(err)
	}

	size := 250 * mib
	var lastUploaded int64
	result, err := engine.Transfer(context.Background(), upload.Request{
		Key:         "videos/large.mp4",
		FileName:    "large.mp4",
		ContentType: "video/mp4",
		SizeBytes:   size,
		Source:      sourceOf(size),
		Progress: func(uploaded, total int64) {
			lastUploaded = uploaded
			if total != size {
				t.Errorf("progress total = %d, want %d", total, size)
			}
		},
	})
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if result.Method != upload.MethodChunked {
		t.Fatalf("method = %q, want chunked", result.Method)
	}
	if got := len(result.Session.Parts); got != 5 {
		t.Fatalf("parts = %d, want 5", got)
	}
	if backend.putCalls != 0 {
		t.Fatalf("single PUT used for a chunked transfer")
	}
	if lastUploaded != size {
		t.Fatalf("final progress = %d, want %d", lastUploaded, size)
	}
	completed := backend.multipart.completed
	if len(completed) != 5 {
		t.Fatalf("completed parts = %d, want 5", len(completed))
	}
	for i, part := range completed {
		if part.Number != i+1 {
			t.Fatalf("completed[%d].Number = %d, want ascending 1..5", i, part.Number)
		}
		if part.ETag == "" {
			t.Fatalf("completed part %d missing etag", part.Number)
		}
	}
}

func TestTransferChunkedFinalPartIsShort(t *testing.T) {
	backend := newFakeBackend(50 * mib)
	engine, err := upload.NewEngine(backend, upload.EngineConfig{ChunkThreshold: 100 * mib})
	if err != nil {
		t.Fatal(err)
	}

	size := 120 * mib
	result, err := engine.Transfer(context.Background(), upload.Request{
		Key:       "videos/uneven.mp4",
		SizeBytes: size,
		Source:    sourceOf(size),
	})
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	parts := result.Session.Parts
	if len(parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(parts))
	}
	if parts[2].Length != 20*mib {
		t.Fatalf("final part length = %d, want %d", parts[2].Length, 20*mib)
	}
	var total int64
	for _, part := range parts {
		total += part.Length
	}
	if total != size {
		t.Fatalf("part lengths sum to %d, want %d", total, size)
	}
}

func TestTransferAbortsOnPartFailure(t *testing.T) {
	backend := newFakeBackend(50 * mib)
	engine, err := upload.NewEngine(backend, upload.EngineConfig{ChunkThreshold: 100 * mib})
	if err != nil {
		t.Fatal(err)
	}

	size := 150 * mib
	backend.configure = func(m *fakeMultipart) { m.failPart = 2 }

	_, err = engine.Transfer(context.Background(), upload.Request{
		Key:       "videos/broken.mp4",
		SizeBytes: size,
		Source:    sourceOf(size),
	})
	if err == nil {
		t.Fatal("expected transfer failure")
	}
	if !errors.Is(err, services.ErrTransfer) {
		t.Fatalf("error = %v, want transfer marker", err)
	}
	if !backend.multipart.aborted {
		t.Fatal("multipart session was not aborted after failure")
	}
}

func TestTransferFailsOnMissingIntegrityToken(t *testing.T) {
	backend := newFakeBackend(50 * mib)
	engine, err := upload.NewEngine(backend, upload.EngineConfig{ChunkThreshold: 100 * mib})
	if err != nil {
		t.Fatal(err)
	}

	size := 150 * mib
	backend.configure = func(m *fakeMultipart) { m.emptyETag = 3 }

	_, err = engine.Transfer(context.Background(), upload.Request{
		Key:       "videos/noetag.mp4",
		SizeBytes: size,
		Source:    sourceOf(size),
	})
	if err == nil {
		t.Fatal("expected transfer failure")
	}
	if !errors.Is(err, services.ErrTransfer) {
		t.Fatalf("error = %v, want transfer marker", err)
	}
	if backend.multipart.completed != nil {
		t.Fatal("session finalized despite missing integrity token")
	}
}

func TestTransferResumesSkipsUploadedParts(t *testing.T) {
	backend := newFakeBackend(50 * mib)
	store := newMemorySessionStore()
	engine, err := upload.NewEngine(backend, upload.EngineConfig{
		ChunkThreshold: 100 * mib,
		Sessions:       store,
	})
	if err != nil {
		t.Fatal(err)
	}

	size := 150 * mib
	_ = store.SaveSession(context.Background(), &upload.StoredSession{
		Key:           "resume-key",
		SizeBytes:     size,
		Method:        upload.MethodChunked,
		State:         upload.StateTransferring,
		StorageKey:    "videos/resume.mp4",
		UploadID:      "upload-1",
		PartSizeBytes: 50 * mib,
		TotalParts:    3,
	})
	_ = store.SavePart(context.Background(), "resume-key", upload.StoredPart{
		Number: 1, Offset: 0, Length: 50 * mib,
		Status: upload.PartUploaded, ETag: "etag-1",
	})

	result, err := engine.Transfer(context.Background(), upload.Request{
		Key:            "videos/resume.mp4",
		SizeBytes:      size,
		Source:         sourceOf(size),
		IdempotencyKey: "resume-key",
	})
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if backend.initiations != 0 {
		t.Fatalf("initiated a fresh session instead of resuming")
	}
	if _, sent := backend.multipart.uploaded[1]; sent {
		t.Fatal("part 1 re-uploaded despite stored etag")
	}
	for _, number := range []int{2, 3} {
		if _, sent := backend.multipart.uploaded[number]; !sent {
			t.Fatalf("part %d was not uploaded", number)
		}
	}
	if len(result.Session.Parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(result.Session.Parts))
	}
	stored, _, err := store.LoadSession(context.Background(), "resume-key")
	if err != nil {
		t.Fatal(err)
	}
	if stored.State != upload.StateComplete {
		t.Fatalf("stored state = %q, want complete", stored.State)
	}
}

func TestTransferValidatesRequest(t *testing.T) {
	backend := newFakeBackend(50 * mib)
	engine, err := upload.NewEngine(backend, upload.EngineConfig{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		req  upload.Request
	}{
		{"missing key", upload.Request{SizeBytes: 1, Source: sourceOf(1)}},
		{"missing source", upload.Request{Key: "k", SizeBytes: 1}},
		{"zero size", upload.Request{Key: "k", Source: sourceOf(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Transfer(context.Background(), tt.req)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("error = %v, want validation marker", err)
			}
		})
	}
}
