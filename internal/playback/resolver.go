// Package playback derives a working media URL for an asset by walking an
// ordered cascade of delivery sources, probing each before committing.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"vidpress/internal/catalog"
	"vidpress/internal/logging"
	"vidpress/internal/services"
	"vidpress/internal/upload"
)

// SourceKind tags one candidate delivery source.
type SourceKind string

const (
	// KindManagedCDN is the optimized stream served by the video-processing
	// service's CDN. Highest quality, tried first.
	KindManagedCDN SourceKind = "managed-cdn"
	// KindObjectStorage is the original file served straight from the bucket.
	KindObjectStorage SourceKind = "object-storage"
	// KindAPIResolved is a URL fetched from the video-processing API at
	// resolve time. Last resort.
	KindAPIResolved SourceKind = "api-resolved"
)

// SourceOrder is the fixed cascade order.
var SourceOrder = []SourceKind{KindManagedCDN, KindObjectStorage, KindAPIResolved}

// Attempt records one probed source.
type Attempt struct {
	Kind     SourceKind
	URL      string
	Reason   string
	TimedOut bool
	Duration time.Duration
	OK       bool
}

// Resolution is a successful resolve outcome plus the attempt log.
type Resolution struct {
	Kind     SourceKind
	URL      string
	Attempts []Attempt
}

// Prober checks that a URL is reachable. Implementations must honor ctx.
type Prober interface {
	Probe(ctx context.Context, mediaURL string) error
}

// Storage is the object-store surface the resolver probes.
type Storage interface {
	StatObject(ctx context.Context, key string) (upload.ObjectInfo, error)
	PublicURL(key string) string
}

// API resolves a playback URL through the video-processing service.
type API interface {
	ResolvePlaybackURL(ctx context.Context, streamAssetID string) (string, error)
}

// Config carries resolver construction parameters.
type Config struct {
	CDNBaseURL   string
	ProbeTimeout time.Duration
	Logger       *slog.Logger
}

// Resolver walks the source cascade for one asset per call. A manual retry
// is a new Resolve call and restarts at the first source.
type Resolver struct {
	cdnBaseURL   string
	probeTimeout time.Duration
	prober       Prober
	storage      Storage
	api          API
	logger       *slog.Logger
}

// NewResolver creates a resolver over the given collaborators. Any of them
// may be nil; the matching source is then skipped.
func NewResolver(prober Prober, storage Storage, api API, cfg Config) *Resolver {
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		cdnBaseURL:   strings.TrimRight(cfg.CDNBaseURL, "/"),
		probeTimeout: timeout,
		prober:       prober,
		storage:      storage,
		api:          api,
		logger:       logging.NewComponentLogger(logger, "playback"),
	}
}

// StreamURL builds the managed-CDN manifest URL for a stream asset.
func (r *Resolver) StreamURL(streamAssetID string) string {
	if r.cdnBaseURL == "" || streamAssetID == "" {
		return ""
	}
	return r.cdnBaseURL + "/" + url.PathEscape(streamAssetID) + "/master.m3u8"
}

// Resolve walks the cascade and returns the first playable source. The
// attempt log always covers every source tried, in order. After the last
// source fails the error carries the playback marker and no further attempts
// are made.
func (r *Resolver) Resolve(ctx context.Context, asset *catalog.Asset) (*Resolution, error) {
	if asset == nil {
		return nil, services.Wrap(services.ErrValidation, "playback", "resolve", "asset is required", nil)
	}

	var attempts []Attempt
	for _, kind := range SourceOrder {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrCancelled, "playback", "resolve", "", err)
		}
		attempt := r.try(ctx, kind, asset)
		attempts = append(attempts, attempt)
		if attempt.OK {
			r.logger.Info("playback source resolved",
				logging.String("asset_id", asset.ID.String()),
				logging.String("source", string(kind)),
			)
			return &Resolution{Kind: kind, URL: attempt.URL, Attempts: attempts}, nil
		}
		r.logger.Debug("playback source unavailable",
			logging.String("asset_id", asset.ID.String()),
			logging.String("source", string(kind)),
			logging.String("reason", attempt.Reason),
		)
	}

	return &Resolution{Attempts: attempts}, services.Wrap(services.ErrPlayback, "playback", "resolve",
		"no playable source available", nil)
}

func (r *Resolver) try(ctx context.Context, kind SourceKind, asset *catalog.Asset) Attempt {
	start := time.Now()
	attempt := Attempt{Kind: kind}

	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	switch kind {
	case KindManagedCDN:
		r.tryCDN(probeCtx, asset, &attempt)
	case KindObjectStorage:
		r.tryStorage(probeCtx, asset, &attempt)
	case KindAPIResolved:
		r.tryAPI(probeCtx, asset, &attempt)
	}

	attempt.Duration = time.Since(start)
	if !attempt.OK && probeCtx.Err() == context.DeadlineExceeded {
		attempt.TimedOut = true
	}
	return attempt
}

func (r *Resolver) tryCDN(ctx context.Context, asset *catalog.Asset, attempt *Attempt) {
	streamURL := r.StreamURL(asset.StreamAssetID)
	if streamURL == "" {
		attempt.Reason = "no stream asset id"
		return
	}
	attempt.URL = streamURL
	if r.prober == nil {
		attempt.Reason = "no prober configured"
		return
	}
	if err := r.prober.Probe(ctx, streamURL); err != nil {
		attempt.Reason = err.Error()
		return
	}
	attempt.OK = true
}

func (r *Resolver) tryStorage(ctx context.Context, asset *catalog.Asset, attempt *Attempt) {
	if asset.StorageKey == "" {
		attempt.Reason = "no storage key"
		return
	}
	if r.storage == nil {
		attempt.Reason = "no storage configured"
		return
	}
	if _, err := r.storage.StatObject(ctx, asset.StorageKey); err != nil {
		attempt.Reason = err.Error()
		return
	}
	directURL := asset.PublicURL
	if directURL == "" {
		directURL = r.storage.PublicURL(asset.StorageKey)
	}
	attempt.URL = directURL
	attempt.OK = directURL != ""
	if !attempt.OK {
		attempt.Reason = "no public URL for stored object"
	}
}

func (r *Resolver) tryAPI(ctx context.Context, asset *catalog.Asset, attempt *Attempt) {
	if asset.StreamAssetID == "" {
		attempt.Reason = "no stream asset id"
		return
	}
	if r.api == nil {
		attempt.Reason = "no API client configured"
		return
	}
	resolved, err := r.api.ResolvePlaybackURL(ctx, asset.StreamAssetID)
	if err != nil {
		attempt.Reason = err.Error()
		return
	}
	if err := validateMediaURL(resolved); err != nil {
		attempt.Reason = err.Error()
		return
	}
	attempt.URL = resolved
	attempt.OK = true
}

func validateMediaURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("API returned no URL")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("API returned malformed URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("API returned URL with unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("API returned URL without a host")
	}
	return nil
}
