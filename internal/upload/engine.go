package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"vidpress/internal/logging"
	"vidpress/internal/services"
)

// EngineConfig carries engine construction parameters.
type EngineConfig struct {
	// ChunkThreshold is the size at which transfers become multipart.
	// Zero applies DefaultChunkThreshold.
	ChunkThreshold int64
	// Parallelism bounds the part-transfer worker pool. Zero or one keeps
	// parts sequential.
	Parallelism int
	// Sessions enables resumable transfers when the request carries an
	// idempotency key. Nil disables persistence.
	Sessions SessionStore
	Logger   *slog.Logger
}

// Engine moves files into object storage, choosing between a single PUT and
// the multipart protocol by size.
type Engine struct {
	backend     Backend
	threshold   int64
	parallelism int
	sessions    SessionStore
	logger      *slog.Logger
}

// NewEngine creates a transfer engine over the given storage backend.
func NewEngine(backend Backend, cfg EngineConfig) (*Engine, error) {
	if backend == nil {
		return nil, errors.New("upload: backend is required")
	}
	threshold := cfg.ChunkThreshold
	if threshold <= 0 {
		threshold = DefaultChunkThreshold
	}
	parallelism := cfg.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		backend:     backend,
		threshold:   threshold,
		parallelism: parallelism,
		sessions:    cfg.Sessions,
		logger:      logging.NewComponentLogger(logger, "upload"),
	}, nil
}

// Request describes one file transfer.
type Request struct {
	Key         string
	FileName    string
	ContentType string
	SizeBytes   int64
	Source      io.ReaderAt
	// IdempotencyKey enables resumable persistence when the engine has a
	// session store. Empty disables resume for this transfer.
	IdempotencyKey string
	Progress       Progress
}

// Result is the uniform outcome of both transfer methods.
type Result struct {
	Method     Method
	StorageKey string
	PublicURL  string
	ETag       string
	Session    *Session
}

// Transfer moves the file into object storage and returns a completed session.
// Any part failure, missing integrity token, or finalize rejection fails the
// whole session.
func (e *Engine) Transfer(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	method := SelectMethod(req.SizeBytes, e.threshold)
	session := &Session{
		FileName:    req.FileName,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		Method:      method,
		State:       StatePreparing,
		StorageKey:  req.Key,
	}

	switch method {
	case MethodSingle:
		return e.transferSingle(ctx, req, session)
	default:
		return e.transferChunked(ctx, req, session)
	}
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.Key) == "" {
		return services.Wrap(services.ErrValidation, "transfer", "", "storage key is required", nil)
	}
	if req.Source == nil {
		return services.Wrap(services.ErrValidation, "transfer", "", "source file is required", nil)
	}
	if req.SizeBytes <= 0 {
		return services.Wrap(services.ErrValidation, "transfer", "", "file size must be positive", nil)
	}
	return nil
}

func (e *Engine) transferSingle(ctx context.Context, req Request, session *Session) (*Result, error) {
	session.State = StateTransferring
	reader := io.NewSectionReader(req.Source, 0, req.SizeBytes)
	info, err := e.backend.PutObject(ctx, req.Key, req.ContentType, reader, req.SizeBytes)
	if err != nil {
		session.State = StateFailed
		return nil, transferError(ctx, "put object", err)
	}
	session.State = StateComplete
	session.PublicURL = e.backend.PublicURL(req.Key)
	if req.Progress != nil {
		req.Progress(req.SizeBytes, req.SizeBytes)
	}
	return &Result{
		Method:     MethodSingle,
		StorageKey: req.Key,
		PublicURL:  session.PublicURL,
		ETag:       info.ETag,
		Session:    session,
	}, nil
}

func (e *Engine) transferChunked(ctx context.Context, req Request, session *Session) (*Result, error) {
	mp, init, resumed, err := e.openMultipart(ctx, req)
	if err != nil {
		return nil, transferError(ctx, "initiate multipart", err)
	}

	session.StorageKey = init.StorageKey
	session.PublicURL = init.PublicURL
	session.Parts = planParts(req.SizeBytes, init.PartSizeBytes, init.TotalParts)
	applyResumedParts(session.Parts, resumed)
	session.State = StateTransferring
	e.persistSession(ctx, req, init, session)

	var bytesUploaded int64
	for _, part := range session.Parts {
		if part.Status == PartUploaded {
			bytesUploaded += part.Length
		}
	}
	if req.Progress != nil {
		req.Progress(bytesUploaded, req.SizeBytes)
	}

	if err := e.transferParts(ctx, req, session, mp, &bytesUploaded); err != nil {
		_ = mp.Abort(context.WithoutCancel(ctx))
		session.State = StateFailed
		e.persistSession(ctx, req, init, session)
		return nil, err
	}

	completed, err := finalizableParts(session.Parts, init.TotalParts)
	if err != nil {
		_ = mp.Abort(context.WithoutCancel(ctx))
		session.State = StateFailed
		e.persistSession(ctx, req, init, session)
		return nil, err
	}

	session.State = StateFinalizing
	e.persistSession(ctx, req, init, session)
	info, err := mp.Complete(ctx, completed)
	if err != nil {
		session.State = StateFailed
		e.persistSession(ctx, req, init, session)
		return nil, transferError(ctx, "finalize multipart", err)
	}

	session.State = StateComplete
	if session.PublicURL == "" {
		session.PublicURL = e.backend.PublicURL(session.StorageKey)
	}
	e.persistSession(ctx, req, init, session)
	e.logger.Info("chunked transfer complete",
		logging.String("storage_key", session.StorageKey),
		logging.Int("parts", init.TotalParts),
		logging.Int64("size_bytes", req.SizeBytes),
	)
	return &Result{
		Method:     MethodChunked,
		StorageKey: session.StorageKey,
		PublicURL:  session.PublicURL,
		ETag:       info.ETag,
		Session:    session,
	}, nil
}

// openMultipart resumes a persisted transfer when the idempotency key matches
// a stored session, otherwise initiates a fresh one.
func (e *Engine) openMultipart(ctx context.Context, req Request) (Multipart, Initiation, []StoredPart, error) {
	if e.sessions != nil && req.IdempotencyKey != "" {
		stored, parts, err := e.sessions.LoadSession(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, Initiation{}, nil, err
		}
		if stored != nil && stored.State != StateComplete && stored.State != StateFailed &&
			stored.UploadID != "" && stored.SizeBytes == req.SizeBytes {
			mp, err := e.backend.ResumeMultipart(ctx, stored.StorageKey, stored.UploadID)
			if err == nil {
				e.logger.Info("resuming multipart transfer",
					logging.String("storage_key", stored.StorageKey),
					logging.Int("total_parts", stored.TotalParts),
				)
				init := Initiation{
					StorageKey:    stored.StorageKey,
					UploadID:      stored.UploadID,
					PartSizeBytes: stored.PartSizeBytes,
					TotalParts:    stored.TotalParts,
					PublicURL:     stored.PublicURL,
				}
				return mp, init, parts, nil
			}
			e.logger.Warn("stored multipart session could not be resumed",
				logging.String("storage_key", stored.StorageKey),
				logging.Error(err),
			)
		}
	}

	mp, init, err := e.backend.InitiateMultipart(ctx, req.Key, req.ContentType, req.SizeBytes)
	if err != nil {
		return nil, Initiation{}, nil, err
	}
	return mp, init, nil, nil
}

func (e *Engine) transferParts(ctx context.Context, req Request, session *Session, mp Multipart, bytesUploaded *int64) error {
	pending := make([]int, 0, len(session.Parts))
	for i, part := range session.Parts {
		if part.Status != PartUploaded {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	workers := e.parallelism
	if workers > len(pending) {
		workers = len(pending)
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)
	jobs := make(chan int)

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				part := &session.Parts[idx]
				if workCtx.Err() != nil {
					return
				}
				reader := io.NewSectionReader(req.Source, part.Offset, part.Length)
				etag, err := mp.UploadPart(workCtx, part.Number, reader, part.Length)
				if err != nil {
					mu.Lock()
					part.Status = PartFailed
					mu.Unlock()
					fail(transferError(workCtx, fmt.Sprintf("upload part %d", part.Number), err))
					return
				}
				if strings.TrimSpace(etag) == "" {
					mu.Lock()
					part.Status = PartFailed
					mu.Unlock()
					fail(services.Wrap(services.ErrTransfer, "transfer",
						fmt.Sprintf("upload part %d", part.Number), "storage returned no integrity token", nil))
					return
				}
				mu.Lock()
				part.Status = PartUploaded
				part.ETag = etag
				*bytesUploaded += part.Length
				uploaded := *bytesUploaded
				mu.Unlock()
				if req.Progress != nil {
					req.Progress(uploaded, req.SizeBytes)
				}
				e.persistPart(ctx, req, *part)
			}
		}()
	}

	for _, idx := range pending {
		select {
		case jobs <- idx:
		case <-workCtx.Done():
		}
		if workCtx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return transferError(ctx, "upload parts", err)
	}
	return nil
}

// finalizableParts checks the session invariant (gapless 1..totalParts, all
// uploaded with integrity tokens) and returns the finalize list in ascending
// part-number order regardless of transfer completion order.
func finalizableParts(parts []Part, totalParts int) ([]CompletedPart, error) {
	if len(parts) != totalParts {
		return nil, services.Wrap(services.ErrTransfer, "transfer", "finalize",
			fmt.Sprintf("expected %d parts, have %d", totalParts, len(parts)), nil)
	}
	completed := make([]CompletedPart, 0, len(parts))
	for _, part := range parts {
		if part.Status != PartUploaded {
			return nil, services.Wrap(services.ErrTransfer, "transfer", "finalize",
				fmt.Sprintf("part %d not uploaded", part.Number), nil)
		}
		if part.ETag == "" {
			return nil, services.Wrap(services.ErrTransfer, "transfer", "finalize",
				fmt.Sprintf("part %d missing integrity token", part.Number), nil)
		}
		completed = append(completed, CompletedPart{Number: part.Number, ETag: part.ETag})
	}
	sort.Slice(completed, func(i, j int) bool { return completed[i].Number < completed[j].Number })
	for i, part := range completed {
		if part.Number != i+1 {
			return nil, services.Wrap(services.ErrTransfer, "transfer", "finalize",
				fmt.Sprintf("part numbers not contiguous at %d", part.Number), nil)
		}
	}
	return completed, nil
}

func planParts(sizeBytes, partSize int64, totalParts int) []Part {
	parts := make([]Part, 0, totalParts)
	for number := 1; number <= totalParts; number++ {
		offset := int64(number-1) * partSize
		length := partSize
		if remaining := sizeBytes - offset; remaining < length {
			length = remaining
		}
		parts = append(parts, Part{
			Number: number,
			Offset: offset,
			Length: length,
			Status: PartPending,
		})
	}
	return parts
}

func applyResumedParts(parts []Part, resumed []StoredPart) {
	if len(resumed) == 0 {
		return
	}
	byNumber := make(map[int]StoredPart, len(resumed))
	for _, part := range resumed {
		byNumber[part.Number] = part
	}
	for i := range parts {
		stored, ok := byNumber[parts[i].Number]
		if !ok {
			continue
		}
		if stored.Status == PartUploaded && stored.ETag != "" && stored.Length == parts[i].Length {
			parts[i].Status = PartUploaded
			parts[i].ETag = stored.ETag
		}
	}
}

func (e *Engine) persistSession(ctx context.Context, req Request, init Initiation, session *Session) {
	if e.sessions == nil || req.IdempotencyKey == "" {
		return
	}
	stored := &StoredSession{
		Key:           req.IdempotencyKey,
		FileName:      session.FileName,
		ContentType:   session.ContentType,
		SizeBytes:     session.SizeBytes,
		Method:        session.Method,
		State:         session.State,
		StorageKey:    session.StorageKey,
		UploadID:      init.UploadID,
		PublicURL:     session.PublicURL,
		PartSizeBytes: init.PartSizeBytes,
		TotalParts:    init.TotalParts,
	}
	if err := e.sessions.SaveSession(context.WithoutCancel(ctx), stored); err != nil {
		e.logger.Warn("persist upload session failed", logging.Error(err))
	}
}

func (e *Engine) persistPart(ctx context.Context, req Request, part Part) {
	if e.sessions == nil || req.IdempotencyKey == "" {
		return
	}
	stored := StoredPart{
		Number: part.Number,
		Offset: part.Offset,
		Length: part.Length,
		Status: part.Status,
		ETag:   part.ETag,
	}
	if err := e.sessions.SavePart(context.WithoutCancel(ctx), req.IdempotencyKey, stored); err != nil {
		e.logger.Warn("persist upload part failed",
			logging.Int("part", part.Number),
			logging.Error(err),
		)
	}
}

func transferError(ctx context.Context, operation string, err error) error {
	marker := services.ErrTransfer
	if errors.Is(err, context.Canceled) || (ctx != nil && errors.Is(ctx.Err(), context.Canceled)) {
		marker = services.ErrCancelled
	}
	return services.Wrap(marker, "transfer", operation, "", err)
}
