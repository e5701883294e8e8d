package transcribe

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vidpress/internal/catalog"
	"vidpress/internal/logging"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxAttempts  = 30
)

// Service is the transcription collaborator surface the poller drives.
type Service interface {
	Submit(ctx context.Context, req Request) (*Job, error)
	Status(ctx context.Context, jobID string) (*Job, error)
}

// Recorder persists terminal transcription outcomes on the asset record.
type Recorder interface {
	SetTranscription(ctx context.Context, id uuid.UUID, state catalog.TranscriptionState, transcript, captionURL string, speakers int) error
}

// PollerConfig carries poller construction parameters.
type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int
	Language    string
	Diarization bool
	Captions    bool
	Logger      *slog.Logger
}

// Poller submits a transcription request and polls it within a bounded
// attempt budget.
type Poller struct {
	service     Service
	recorder    Recorder
	interval    time.Duration
	maxAttempts int
	language    string
	diarization bool
	captions    bool
	logger      *slog.Logger
}

// NewPoller creates a poller over the given collaborator and recorder.
func NewPoller(service Service, recorder Recorder, cfg PollerConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Poller{
		service:     service,
		recorder:    recorder,
		interval:    interval,
		maxAttempts: maxAttempts,
		language:    cfg.Language,
		diarization: cfg.Diarization,
		captions:    cfg.Captions,
		logger:      logging.NewComponentLogger(logger, "transcribe"),
	}
}

// Outcome summarizes one poll run. State reflects what was persisted on the
// asset; Exhausted marks a run that used its whole attempt budget while the
// job was still processing on the service side.
type Outcome struct {
	State     catalog.TranscriptionState
	Job       *Job
	Attempts  int
	Exhausted bool
}

// Run submits a transcription job for the asset's media and polls it until a
// terminal state or attempt exhaustion. Collaborator failures are absorbed:
// the returned error is non-nil only when ctx is cancelled.
func (p *Poller) Run(ctx context.Context, assetID uuid.UUID, mediaURL string) (Outcome, error) {
	job, err := p.service.Submit(ctx, Request{
		MediaURL:    mediaURL,
		Language:    p.language,
		Diarization: p.diarization,
		Captions:    p.captions,
	})
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		p.logger.Warn("transcription submit failed",
			logging.String("asset_id", assetID.String()),
			logging.Error(err),
		)
		p.persist(ctx, assetID, catalog.TranscriptionFailed, nil)
		return Outcome{State: catalog.TranscriptionFailed}, nil
	}

	p.persist(ctx, assetID, catalog.TranscriptionRequested, nil)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return Outcome{Attempts: attempt - 1}, ctx.Err()
		case <-ticker.C:
		}

		status, err := p.service.Status(ctx, job.ID)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{Attempts: attempt}, ctx.Err()
			}
			p.logger.Warn("transcription status check failed",
				logging.String("asset_id", assetID.String()),
				logging.Int("attempt", attempt),
				logging.Error(err),
			)
			continue
		}

		switch status.State {
		case StateReady:
			p.persist(ctx, assetID, catalog.TranscriptionReady, status)
			return Outcome{State: catalog.TranscriptionReady, Job: status, Attempts: attempt}, nil
		case StateFailed:
			p.persist(ctx, assetID, catalog.TranscriptionFailed, nil)
			return Outcome{State: catalog.TranscriptionFailed, Job: status, Attempts: attempt}, nil
		}
	}

	// Budget exhausted while the service is still working. The job is
	// expected to finish out-of-band; the pipeline proceeds regardless.
	p.persist(ctx, assetID, catalog.TranscriptionProcessing, nil)
	p.logger.Info("transcription still processing after attempt budget",
		logging.String("asset_id", assetID.String()),
		logging.Int("attempts", p.maxAttempts),
	)
	return Outcome{
		State:     catalog.TranscriptionProcessing,
		Attempts:  p.maxAttempts,
		Exhausted: true,
	}, nil
}

func (p *Poller) persist(ctx context.Context, assetID uuid.UUID, state catalog.TranscriptionState, job *Job) {
	if p.recorder == nil {
		return
	}
	var transcript, captionURL string
	var speakers int
	if job != nil {
		transcript = job.TranscriptText
		captionURL = job.CaptionURL
		speakers = job.SpeakerCount
	}
	err := p.recorder.SetTranscription(context.WithoutCancel(ctx), assetID, state, transcript, captionURL, speakers)
	if err != nil {
		p.logger.Warn("persist transcription state failed",
			logging.String("asset_id", assetID.String()),
			logging.String("state", string(state)),
			logging.Error(err),
		)
	}
}
