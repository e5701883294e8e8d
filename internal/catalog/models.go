package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AssetStatus represents the lifecycle of a published video asset.
type AssetStatus string

const (
	StatusDraft      AssetStatus = "draft"
	StatusProcessing AssetStatus = "processing"
	StatusLive       AssetStatus = "live"
	StatusFailed     AssetStatus = "failed"
)

var allStatuses = []AssetStatus{
	StatusDraft,
	StatusProcessing,
	StatusLive,
	StatusFailed,
}

var statusSet = func() map[AssetStatus]struct{} {
	set := make(map[AssetStatus]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// TranscriptionState mirrors the transcription collaborator's job lifecycle.
type TranscriptionState string

const (
	TranscriptionNone       TranscriptionState = ""
	TranscriptionRequested  TranscriptionState = "requested"
	TranscriptionProcessing TranscriptionState = "processing"
	TranscriptionReady      TranscriptionState = "ready"
	TranscriptionFailed     TranscriptionState = "failed"
)

// Asset represents a managed video asset persisted in SQLite.
type Asset struct {
	ID                 uuid.UUID
	Title              string
	Description        string
	FileName           string
	ContentType        string
	SizeBytes          int64
	StorageKey         string
	PublicURL          string
	StreamAssetID      string
	ThumbnailURL       string
	Status             AssetStatus
	ProgressStep       string
	ProgressPercent    float64
	ProgressMessage    string
	ErrorMessage       string
	TranscriptionState TranscriptionState
	SpeakerCount       int
	TranscriptText     string
	CaptionURL         string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []AssetStatus {
	cp := make([]AssetStatus, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known AssetStatus.
func ParseStatus(value string) (AssetStatus, bool) {
	normalized := AssetStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// SetProgress updates the progress fields together.
// Use this instead of setting ProgressStep, ProgressPercent, and
// ProgressMessage individually.
func (a *Asset) SetProgress(step, message string, percent float64) {
	a.ProgressStep = step
	a.ProgressMessage = message
	a.ProgressPercent = percent
}

// SetFailed marks the asset as failed with the given error message.
func (a *Asset) SetFailed(message string) {
	a.Status = StatusFailed
	a.ErrorMessage = message
	a.ProgressMessage = message
}

// IsTerminal reports whether the asset has reached a final lifecycle state.
func (a *Asset) IsTerminal() bool {
	return a.Status == StatusLive || a.Status == StatusFailed
}

// HealthSummary describes aggregated asset counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Draft      int
	Processing int
	Live       int
	Failed     int
}
