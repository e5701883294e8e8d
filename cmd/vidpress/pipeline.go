package main

import (
	"errors"
	"fmt"

	"vidpress/internal/catalog"
	"vidpress/internal/notifications"
	"vidpress/internal/objectstore"
	"vidpress/internal/playback"
	"vidpress/internal/publish"
	"vidpress/internal/transcode"
	"vidpress/internal/transcribe"
	"vidpress/internal/upload"
)

// pipeline holds the wired collaborators one command invocation uses.
type pipeline struct {
	store        *catalog.Store
	storage      *objectstore.Client
	orchestrator *publish.Orchestrator
	resolver     *playback.Resolver
	notifier     notifications.Service
}

// buildPipeline wires the full publish stack from configuration. The
// transcoder and transcription services are optional; when their base URLs
// are unset the matching steps degrade instead of failing.
func buildPipeline(ctx *commandContext, store *catalog.Store) (*pipeline, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}

	storage, err := objectstore.New(cfg)
	if err != nil {
		return nil, err
	}

	engine, err := upload.NewEngine(storage, upload.EngineConfig{
		ChunkThreshold: cfg.ChunkThresholdBytes(),
		Parallelism:    cfg.Upload.Parallelism,
		Sessions:       store.UploadSessions(),
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	var (
		transcoder  publish.Transcoder
		resolverAPI playback.API
	)
	transcodeClient, err := transcode.NewFromConfig(cfg)
	switch {
	case err == nil:
		transcoder = transcodeClient
		resolverAPI = transcodeClient
	case errors.Is(err, transcode.ErrNotConfigured):
	default:
		return nil, fmt.Errorf("configure transcoder: %w", err)
	}

	var transcriber publish.TranscriptionRunner
	transcribeClient, err := transcribe.NewFromConfig(cfg)
	switch {
	case err == nil:
		transcriber = transcribe.NewPoller(transcribeClient, store, transcribe.PollerConfig{
			Interval:    cfg.PollInterval(),
			MaxAttempts: cfg.Transcription.MaxAttempts,
			Language:    cfg.Transcription.Language,
			Diarization: cfg.Transcription.Diarization,
			Captions:    cfg.Transcription.Captions,
			Logger:      logger,
		})
	case errors.Is(err, transcribe.ErrNotConfigured):
	default:
		return nil, fmt.Errorf("configure transcription: %w", err)
	}

	notifier := notifications.NewService(cfg)

	resolver := playback.NewResolver(
		playback.NewHTTPProber(cfg.ProbeTimeout()),
		storage,
		resolverAPI,
		playback.Config{
			CDNBaseURL:   cfg.Playback.CDNBaseURL,
			ProbeTimeout: cfg.ProbeTimeout(),
			Logger:       logger,
		},
	)

	orchestrator, err := publish.NewOrchestrator(publish.Deps{
		Store:               store,
		Engine:              engine,
		Storage:             storage,
		Transcoder:          transcoder,
		Transcriber:         transcriber,
		Notifier:            notifier,
		Streams:             resolver,
		Logger:              logger,
		MaxFileBytes:        cfg.MaxFileBytes(),
		ThumbnailAutoAccept: cfg.AutoAcceptAfter(),
	})
	if err != nil {
		return nil, err
	}

	return &pipeline{
		store:        store,
		storage:      storage,
		orchestrator: orchestrator,
		resolver:     resolver,
		notifier:     notifier,
	}, nil
}
