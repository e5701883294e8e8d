package transcribe_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"vidpress/internal/catalog"
	"vidpress/internal/transcribe"
)

type fakeService struct {
	mu        sync.Mutex
	submitErr error
	statuses  []transcribe.Job
	calls     int
}

func (s *fakeService) Submit(_ context.Context, req transcribe.Request) (*transcribe.Job, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	if req.MediaURL == "" {
		return nil, errors.New("missing media url")
	}
	return &transcribe.Job{ID: "job-1", State: transcribe.StateProcessing}, nil
}

func (s *fakeService) Status(context.Context, string) (*transcribe.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls < len(s.statuses) {
		job := s.statuses[s.calls]
		s.calls++
		return &job, nil
	}
	s.calls++
	return &transcribe.Job{ID: "job-1", State: transcribe.StateProcessing}, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	states  []catalog.TranscriptionState
	lastJob struct {
		transcript string
		captionURL string
		speakers   int
	}
}

func (r *fakeRecorder) SetTranscription(_ context.Context, _ uuid.UUID, state catalog.TranscriptionState, transcript, captionURL string, speakers int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	r.lastJob.transcript = transcript
	r.lastJob.captionURL = captionURL
	r.lastJob.speakers = speakers
	return nil
}

func (r *fakeRecorder) lastState() catalog.TranscriptionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return catalog.TranscriptionNone
	}
	return r.states[len(r.states)-1]
}

func newPoller(service *fakeService, recorder *fakeRecorder, maxAttempts int) *transcribe.Poller {
	return transcribe.NewPoller(service, recorder, transcribe.PollerConfig{
		Interval:    time.Millisecond,
		MaxAttempts: maxAttempts,
	})
}

func TestRunPersistsReadyTranscript(t *testing.T) {
	service := &fakeService{statuses: []transcribe.Job{
		{ID: "job-1", State: transcribe.StateProcessing},
		{ID: "job-1", State: transcribe.StateReady, SpeakerCount: 3,
			TranscriptText: "hello", CaptionURL: "https://cdn.example/c.vtt"},
	}}
	recorder := &fakeRecorder{}

	outcome, err := newPoller(service, recorder, 10).Run(context.Background(), uuid.New(), "https://media.example/v.mp4")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.State != catalog.TranscriptionReady {
		t.Fatalf("state = %q, want ready", outcome.State)
	}
	if outcome.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", outcome.Attempts)
	}
	if recorder.lastState() != catalog.TranscriptionReady {
		t.Fatalf("persisted state = %q, want ready", recorder.lastState())
	}
	if recorder.lastJob.transcript != "hello" || recorder.lastJob.speakers != 3 {
		t.Fatalf("persisted job fields = %+v", recorder.lastJob)
	}
}

func TestRunPersistsFailureWithoutError(t *testing.T) {
	service := &fakeService{statuses: []transcribe.Job{
		{ID: "job-1", State: transcribe.StateFailed},
	}}
	recorder := &fakeRecorder{}

	outcome, err := newPoller(service, recorder, 10).Run(context.Background(), uuid.New(), "https://media.example/v.mp4")
	if err != nil {
		t.Fatalf("Run returned error, transcription must be best-effort: %v", err)
	}
	if outcome.State != catalog.TranscriptionFailed {
		t.Fatalf("state = %q, want failed", outcome.State)
	}
	if recorder.lastState() != catalog.TranscriptionFailed {
		t.Fatalf("persisted state = %q, want failed", recorder.lastState())
	}
}

func TestRunExhaustsAttemptBudget(t *testing.T) {
	service := &fakeService{}
	recorder := &fakeRecorder{}

	outcome, err := newPoller(service, recorder, 3).Run(context.Background(), uuid.New(), "https://media.example/v.mp4")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !outcome.Exhausted {
		t.Fatal("expected exhausted outcome")
	}
	if outcome.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", outcome.Attempts)
	}
	if service.calls != 3 {
		t.Fatalf("status calls = %d, want 3", service.calls)
	}
	if recorder.lastState() != catalog.TranscriptionProcessing {
		t.Fatalf("persisted state = %q, want processing", recorder.lastState())
	}
}

func TestRunAbsorbsSubmitFailure(t *testing.T) {
	service := &fakeService{submitErr: errors.New("service unavailable")}
	recorder := &fakeRecorder{}

	outcome, err := newPoller(service, recorder, 3).Run(context.Background(), uuid.New(), "https://media.example/v.mp4")
	if err != nil {
		t.Fatalf("submit failure must be absorbed, got %v", err)
	}
	if outcome.State != catalog.TranscriptionFailed {
		t.Fatalf("state = %q, want failed", outcome.State)
	}
}

func TestRunReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPoller(&fakeService{}, &fakeRecorder{}, 3).Run(ctx, uuid.New(), "https://media.example/v.mp4")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
