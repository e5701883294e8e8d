package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidpress/internal/catalog"
	"vidpress/internal/logging"
	"vidpress/internal/services"
	"vidpress/internal/thumbgate"
	"vidpress/internal/transcode"
	"vidpress/internal/transcribe"
	"vidpress/internal/upload"
)

// DefaultMaxFileBytes caps direct client uploads.
const DefaultMaxFileBytes int64 = 5 << 30

// Catalog is the record-store surface the orchestrator mutates.
type Catalog interface {
	CreateAsset(ctx context.Context, asset *catalog.Asset) (*catalog.Asset, error)
	UpdateAsset(ctx context.Context, asset *catalog.Asset) error
	GetAsset(ctx context.Context, id uuid.UUID) (*catalog.Asset, error)
	FindByStorageKey(ctx context.Context, storageKey string) (*catalog.Asset, error)
}

// Transferer moves files into object storage.
type Transferer interface {
	Transfer(ctx context.Context, req upload.Request) (*upload.Result, error)
}

// Transcoder is the video-processing collaborator surface.
type Transcoder interface {
	RequestOptimize(ctx context.Context, storageKey, contentType string) (*transcode.Ack, error)
	SetThumbnailTimestamp(ctx context.Context, streamAssetID string, seconds float64) error
	SetThumbnailImage(ctx context.Context, streamAssetID, imageURL string) error
	DefaultThumbnailURL(streamAssetID string) string
}

// TranscriptionRunner drives the bounded transcription poll.
type TranscriptionRunner interface {
	Run(ctx context.Context, assetID uuid.UUID, mediaURL string) (transcribe.Outcome, error)
}

// Notifier delivers terminal job notifications. Failures are logged, never
// propagated.
type Notifier interface {
	NotifyPublishStarted(ctx context.Context, title string) error
	NotifyPublishCompleted(ctx context.Context, title, playbackURL string) error
	NotifyPublishFailed(ctx context.Context, title, step, reason string) error
}

// StreamURLer builds the managed-CDN URL for a stream asset, when a CDN is
// configured.
type StreamURLer interface {
	StreamURL(streamAssetID string) string
}

// Deps wires the orchestrator's collaborators. Store and Engine are
// required; the rest degrade gracefully when nil.
type Deps struct {
	Store       Catalog
	Engine      Transferer
	Storage     upload.Backend
	Transcoder  Transcoder
	Transcriber TranscriptionRunner
	Notifier    Notifier
	Streams     StreamURLer
	Logger      *slog.Logger

	// MaxFileBytes caps direct uploads. Zero applies DefaultMaxFileBytes.
	MaxFileBytes int64
	// ThumbnailAutoAccept resolves an unattended thumbnail gate to auto
	// after this duration. Zero waits unbounded.
	ThumbnailAutoAccept time.Duration
}

// Orchestrator runs the publish pipeline for one asset at a time.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger
}

// NewOrchestrator validates deps and builds an orchestrator.
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, errors.New("publish: catalog store is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("publish: transfer engine is required")
	}
	if deps.MaxFileBytes <= 0 {
		deps.MaxFileBytes = DefaultMaxFileBytes
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		deps:   deps,
		logger: logging.NewComponentLogger(logger, "publish"),
	}, nil
}

// Request describes one publish run. Either Source (a raw file) or
// StorageKey (a previously stored object, for re-entry) must be set.
type Request struct {
	Title       string
	Description string
	FileName    string
	ContentType string
	SizeBytes   int64
	Source      io.ReaderAt
	StorageKey  string
	// Thumbnail releases the gate. Nil selects the auto strategy without
	// waiting.
	Thumbnail *thumbgate.Gate
	Observers []Observer
}

// Receipt is the terminal result of a successful publish.
type Receipt struct {
	AssetID       uuid.UUID
	PlaybackURL   string
	ThumbnailURL  string
	Transcription catalog.TranscriptionState
	Job           *Job
}

// Run executes validate, transfer, persist, transcode, thumbnail, transcribe,
// and finalize strictly in order. Failure before finalize halts the job and
// surfaces the failing step; completed steps are not rolled back. Thumbnail
// and transcription failures are absorbed.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Receipt, error) {
	job := newJob(req.Observers)

	if err := o.validate(ctx, job, &req); err != nil {
		return nil, o.fail(ctx, job, nil, req.Title, StepValidate, err)
	}

	storageKey, publicURL, err := o.transfer(ctx, job, &req)
	if err != nil {
		return nil, o.fail(ctx, job, nil, req.Title, StepTransfer, err)
	}

	asset, err := o.persist(ctx, job, &req, storageKey, publicURL)
	if err != nil {
		return nil, o.fail(ctx, job, nil, req.Title, StepPersist, err)
	}
	o.notifyStarted(ctx, req.Title)

	if err := o.transcodeStep(ctx, job, asset); err != nil {
		return nil, o.fail(ctx, job, asset, req.Title, StepTranscode, err)
	}

	if err := o.thumbnailStep(ctx, job, asset, req.Thumbnail); err != nil {
		return nil, o.fail(ctx, job, asset, req.Title, StepThumbnail, err)
	}

	if err := o.transcribeStep(ctx, job, asset); err != nil {
		return nil, o.fail(ctx, job, asset, req.Title, StepTranscribe, err)
	}

	receipt, err := o.finalize(ctx, job, asset)
	if err != nil {
		return nil, o.fail(ctx, job, asset, req.Title, StepFinalize, err)
	}
	receipt.Job = job
	return receipt, nil
}

func (o *Orchestrator) validate(ctx context.Context, job *Job, req *Request) error {
	job.startStep(StepValidate, "checking metadata")
	ctx = services.WithStep(ctx, string(StepValidate))

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return services.Wrap(services.ErrValidation, string(StepValidate), "metadata", "title is required", nil)
	}
	hasSource := req.Source != nil
	hasStored := strings.TrimSpace(req.StorageKey) != ""
	if !hasSource && !hasStored {
		return services.Wrap(services.ErrValidation, string(StepValidate), "metadata",
			"either a source file or an existing stored reference is required", nil)
	}
	if hasSource {
		if req.SizeBytes <= 0 {
			return services.Wrap(services.ErrValidation, string(StepValidate), "metadata",
				"file size must be positive", nil)
		}
		if req.SizeBytes > o.deps.MaxFileBytes {
			return services.Wrap(services.ErrValidation, string(StepValidate), "metadata",
				fmt.Sprintf("file exceeds the %d byte upload cap", o.deps.MaxFileBytes), nil)
		}
		if !strings.HasPrefix(req.ContentType, "video/") {
			return services.Wrap(services.ErrValidation, string(StepValidate), "metadata",
				fmt.Sprintf("unsupported content type %q, expected video/*", req.ContentType), nil)
		}
	}

	job.completeStep(StepValidate, "metadata ok")
	return nil
}

func (o *Orchestrator) transfer(ctx context.Context, job *Job, req *Request) (storageKey, publicURL string, err error) {
	job.startStep(StepTransfer, "moving file into storage")
	ctx = services.WithStep(ctx, string(StepTransfer))

	if key := strings.TrimSpace(req.StorageKey); key != "" {
		// Idempotent re-entry: the object is already stored.
		if o.deps.Storage != nil {
			publicURL = o.deps.Storage.PublicURL(key)
		}
		job.completeStep(StepTransfer, "existing stored object reused")
		return key, publicURL, nil
	}

	key := storageKeyFor(req.FileName)
	result, err := o.deps.Engine.Transfer(ctx, upload.Request{
		Key:            key,
		FileName:       req.FileName,
		ContentType:    req.ContentType,
		SizeBytes:      req.SizeBytes,
		Source:         req.Source,
		IdempotencyKey: key,
		Progress: func(uploaded, total int64) {
			if total <= 0 {
				return
			}
			percent := float64(uploaded) / float64(total) * 100
			job.setStepProgress(StepTransfer, percent,
				fmt.Sprintf("%d of %d bytes uploaded", uploaded, total))
		},
	})
	if err != nil {
		return "", "", err
	}
	job.completeStep(StepTransfer, fmt.Sprintf("stored via %s transfer", result.Method))
	return result.StorageKey, result.PublicURL, nil
}

func storageKeyFor(fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return "videos/" + uuid.NewString() + ext
}

func (o *Orchestrator) persist(ctx context.Context, job *Job, req *Request, storageKey, publicURL string) (*catalog.Asset, error) {
	job.startStep(StepPersist, "writing asset record")
	ctx = services.WithStep(ctx, string(StepPersist))

	existing, err := o.deps.Store.FindByStorageKey(ctx, storageKey)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return nil, services.Wrap(services.ErrPersistence, string(StepPersist), "lookup", "", err)
	}

	var asset *catalog.Asset
	if existing != nil {
		existing.Title = req.Title
		existing.Description = req.Description
		existing.FileName = req.FileName
		existing.ContentType = req.ContentType
		if req.SizeBytes > 0 {
			existing.SizeBytes = req.SizeBytes
		}
		existing.PublicURL = publicURL
		existing.Status = catalog.StatusProcessing
		existing.ErrorMessage = ""
		if err := o.deps.Store.UpdateAsset(ctx, existing); err != nil {
			return nil, services.Wrap(services.ErrPersistence, string(StepPersist), "update", "", err)
		}
		asset = existing
	} else {
		asset, err = o.deps.Store.CreateAsset(ctx, &catalog.Asset{
			Title:       req.Title,
			Description: req.Description,
			FileName:    req.FileName,
			ContentType: req.ContentType,
			SizeBytes:   req.SizeBytes,
			StorageKey:  storageKey,
			PublicURL:   publicURL,
			Status:      catalog.StatusProcessing,
		})
		if err != nil {
			return nil, services.Wrap(services.ErrPersistence, string(StepPersist), "create", "", err)
		}
	}

	job.completeStep(StepPersist, "asset record ready")
	o.saveProgress(ctx, asset, job, StepPersist, "asset record ready")
	return asset, nil
}

// transcodeStep asks the processing service to optimize the stored file. The
// call blocks only on acknowledgment; the service keeps working while the
// pipeline moves on.
func (o *Orchestrator) transcodeStep(ctx context.Context, job *Job, asset *catalog.Asset) error {
	job.startStep(StepTranscode, "requesting stream optimization")
	ctx = services.WithStep(ctx, string(StepTranscode))

	if o.deps.Transcoder == nil {
		job.completeStep(StepTranscode, "no transcoder configured")
		o.saveProgress(ctx, asset, job, StepTranscode, "no transcoder configured")
		return nil
	}

	ack, err := o.deps.Transcoder.RequestOptimize(ctx, asset.StorageKey, asset.ContentType)
	if err != nil {
		return services.Wrap(services.ErrTranscode, string(StepTranscode), "request optimize", "", err)
	}
	asset.StreamAssetID = ack.StreamAssetID
	if err := o.deps.Store.UpdateAsset(ctx, asset); err != nil {
		return services.Wrap(services.ErrPersistence, string(StepTranscode), "record stream asset", "", err)
	}

	job.completeStep(StepTranscode, "optimization requested")
	o.saveProgress(ctx, asset, job, StepTranscode, "optimization requested")
	return nil
}

// thumbnailStep waits on the gate and applies the chosen strategy. Strategy
// failures degrade to the auto default and never fail the job; only
// cancellation is fatal here.
func (o *Orchestrator) thumbnailStep(ctx context.Context, job *Job, asset *catalog.Asset, gate *thumbgate.Gate) error {
	job.startStep(StepThumbnail, "waiting for thumbnail decision")
	ctx = services.WithStep(ctx, string(StepThumbnail))

	choice := thumbgate.Choice{Method: thumbgate.MethodAuto}
	if gate != nil {
		resolved, err := gate.WaitWithDeadline(ctx, o.deps.ThumbnailAutoAccept)
		if err != nil {
			return services.Wrap(services.ErrCancelled, string(StepThumbnail), "await decision", "", err)
		}
		choice = resolved
	}

	detail := o.applyThumbnailChoice(ctx, asset, choice)
	job.completeStep(StepThumbnail, detail)
	o.saveProgress(ctx, asset, job, StepThumbnail, detail)
	return nil
}

func (o *Orchestrator) applyThumbnailChoice(ctx context.Context, asset *catalog.Asset, choice thumbgate.Choice) string {
	if o.deps.Transcoder == nil {
		return "no transcoder configured"
	}
	defer func() {
		if asset.ThumbnailURL == "" && asset.StreamAssetID != "" {
			asset.ThumbnailURL = o.deps.Transcoder.DefaultThumbnailURL(asset.StreamAssetID)
		}
		if err := o.deps.Store.UpdateAsset(ctx, asset); err != nil {
			o.logger.Warn("persist thumbnail outcome failed",
				logging.String("asset_id", asset.ID.String()),
				logging.Error(err),
			)
		}
	}()

	switch choice.Method {
	case thumbgate.MethodTimestamp:
		seconds := choice.TimestampSeconds
		if seconds < 0 {
			seconds = 0
		}
		if err := o.deps.Transcoder.SetThumbnailTimestamp(ctx, asset.StreamAssetID, seconds); err != nil {
			o.logger.Warn("thumbnail timestamp request failed, falling back to auto",
				logging.String("asset_id", asset.ID.String()),
				logging.Error(err),
			)
			return "timestamp request failed, default frame used"
		}
		return fmt.Sprintf("thumbnail cut at %.1fs", seconds)
	case thumbgate.MethodCustom:
		if err := o.deps.Transcoder.SetThumbnailImage(ctx, asset.StreamAssetID, choice.CustomImageRef); err != nil {
			o.logger.Warn("custom thumbnail request failed",
				logging.String("asset_id", asset.ID.String()),
				logging.Error(err),
			)
			return "custom image request failed, default frame used"
		}
		asset.ThumbnailURL = choice.CustomImageRef
		return "custom thumbnail applied"
	default:
		if choice.AutoAccepted {
			return "default frame auto-accepted after deadline"
		}
		return "default frame selected"
	}
}

// transcribeStep runs the bounded poll. Whatever the collaborator does, the
// job proceeds; only cancellation is fatal.
func (o *Orchestrator) transcribeStep(ctx context.Context, job *Job, asset *catalog.Asset) error {
	job.startStep(StepTranscribe, "requesting transcription")
	ctx = services.WithStep(ctx, string(StepTranscribe))

	if o.deps.Transcriber == nil {
		job.completeStep(StepTranscribe, "no transcription configured")
		o.saveProgress(ctx, asset, job, StepTranscribe, "no transcription configured")
		return nil
	}

	mediaURL := asset.PublicURL
	outcome, err := o.deps.Transcriber.Run(ctx, asset.ID, mediaURL)
	if err != nil {
		if services.Cancelled(err) {
			return services.Wrap(services.ErrCancelled, string(StepTranscribe), "poll", "", err)
		}
		// Defensive; the poller absorbs collaborator failures itself.
		o.logger.Warn("transcription run failed",
			logging.String("asset_id", asset.ID.String()),
			logging.Error(err),
		)
		job.completeStep(StepTranscribe, "transcription unavailable")
		return nil
	}
	// The poller already persisted the outcome; mirror it here so the
	// progress write below does not clobber the transcript columns.
	asset.TranscriptionState = outcome.State
	if outcome.State == catalog.TranscriptionReady && outcome.Job != nil {
		asset.TranscriptText = outcome.Job.TranscriptText
		asset.CaptionURL = outcome.Job.CaptionURL
		asset.SpeakerCount = outcome.Job.SpeakerCount
	}

	var detail string
	switch {
	case outcome.State == catalog.TranscriptionReady:
		detail = "transcript ready"
	case outcome.Exhausted:
		detail = "transcription still processing, continuing"
	default:
		detail = "transcription unavailable"
	}
	job.completeStep(StepTranscribe, detail)
	o.saveProgress(ctx, asset, job, StepTranscribe, detail)
	return nil
}

func (o *Orchestrator) finalize(ctx context.Context, job *Job, asset *catalog.Asset) (*Receipt, error) {
	job.startStep(StepFinalize, "marking asset live")
	ctx = services.WithStep(ctx, string(StepFinalize))

	current, err := o.deps.Store.GetAsset(ctx, asset.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, string(StepFinalize), "reload asset", "", err)
	}
	current.Status = catalog.StatusLive
	current.SetProgress(string(StepFinalize), "live", 100)
	if err := o.deps.Store.UpdateAsset(ctx, current); err != nil {
		return nil, services.Wrap(services.ErrPersistence, string(StepFinalize), "mark live", "", err)
	}

	playbackURL := current.PublicURL
	if o.deps.Streams != nil && current.StreamAssetID != "" {
		if streamURL := o.deps.Streams.StreamURL(current.StreamAssetID); streamURL != "" {
			playbackURL = streamURL
		}
	}

	job.completeStep(StepFinalize, "asset live")
	o.logger.Info("publish complete",
		logging.String("asset_id", current.ID.String()),
		logging.String("playback_url", playbackURL),
	)
	o.notifyCompleted(ctx, current.Title, playbackURL)

	return &Receipt{
		AssetID:       current.ID,
		PlaybackURL:   playbackURL,
		ThumbnailURL:  current.ThumbnailURL,
		Transcription: current.TranscriptionState,
	}, nil
}

// fail marks the job and, when an asset record exists, the asset itself.
func (o *Orchestrator) fail(ctx context.Context, job *Job, asset *catalog.Asset, title string, id StepID, err error) error {
	job.failStep(id, err)
	o.logger.Error("publish failed",
		logging.String("step", string(id)),
		logging.Error(err),
	)
	if asset != nil {
		asset.SetFailed(err.Error())
		asset.ProgressStep = string(id)
		if updateErr := o.deps.Store.UpdateAsset(context.WithoutCancel(ctx), asset); updateErr != nil {
			o.logger.Warn("persist failed state",
				logging.String("asset_id", asset.ID.String()),
				logging.Error(updateErr),
			)
		}
	}
	o.notifyFailed(ctx, title, id, err)
	return fmt.Errorf("publish step %s: %w", id, err)
}

func (o *Orchestrator) saveProgress(ctx context.Context, asset *catalog.Asset, job *Job, id StepID, detail string) {
	asset.SetProgress(string(id), detail, job.OverallPercent())
	if err := o.deps.Store.UpdateAsset(ctx, asset); err != nil {
		o.logger.Warn("persist progress failed",
			logging.String("asset_id", asset.ID.String()),
			logging.Error(err),
		)
	}
}

func (o *Orchestrator) notifyStarted(ctx context.Context, title string) {
	if o.deps.Notifier == nil {
		return
	}
	if err := o.deps.Notifier.NotifyPublishStarted(ctx, title); err != nil {
		o.logger.Warn("start notification failed", logging.Error(err))
	}
}

func (o *Orchestrator) notifyCompleted(ctx context.Context, title, playbackURL string) {
	if o.deps.Notifier == nil {
		return
	}
	if err := o.deps.Notifier.NotifyPublishCompleted(ctx, title, playbackURL); err != nil {
		o.logger.Warn("completion notification failed", logging.Error(err))
	}
}

func (o *Orchestrator) notifyFailed(ctx context.Context, title string, id StepID, err error) {
	if o.deps.Notifier == nil {
		return
	}
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	notifyErr := o.deps.Notifier.NotifyPublishFailed(context.WithoutCancel(ctx), title, string(id), reason)
	if notifyErr != nil {
		o.logger.Warn("failure notification failed", logging.Error(notifyErr))
	}
}
