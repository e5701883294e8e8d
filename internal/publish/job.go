package publish

import (
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StepID identifies one pipeline stage.
type StepID string

const (
	StepValidate   StepID = "validate"
	StepTransfer   StepID = "transfer"
	StepPersist    StepID = "persist"
	StepTranscode  StepID = "transcode"
	StepThumbnail  StepID = "thumbnail"
	StepTranscribe StepID = "transcribe"
	StepFinalize   StepID = "finalize"
)

// StepOrder is the fixed execution order. Steps run strictly sequentially; a
// step starts only after its predecessor completed.
var StepOrder = []StepID{
	StepValidate,
	StepTransfer,
	StepPersist,
	StepTranscode,
	StepThumbnail,
	StepTranscribe,
	StepFinalize,
}

var stepTitles = cases.Title(language.English)

// DisplayName renders a step id for humans.
func (id StepID) DisplayName() string {
	return stepTitles.String(string(id))
}

// StepStatus is the lifecycle of one step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepError      StepStatus = "error"
)

func (s StepStatus) terminal() bool {
	return s == StepCompleted || s == StepError
}

// StepSnapshot is an immutable view of one step emitted to observers on every
// transition. OverallPercent is derived from completed steps and never
// decreases within a job.
type StepSnapshot struct {
	ID             StepID
	Status         StepStatus
	Percent        float64
	Detail         string
	Duration       time.Duration
	OverallPercent float64
}

// Observer receives step snapshots. Observers must not block; they are called
// synchronously on the publishing goroutine.
type Observer func(StepSnapshot)

type step struct {
	id       StepID
	status   StepStatus
	percent  float64
	detail   string
	started  time.Time
	duration time.Duration
}

// Job tracks one publish run's step state. It is owned by the orchestrator
// that created it; observers only ever see snapshots.
type Job struct {
	mu        sync.Mutex
	steps     []step
	observers []Observer
	failed    StepID
	err       error
}

func newJob(observers []Observer) *Job {
	steps := make([]step, len(StepOrder))
	for i, id := range StepOrder {
		steps[i] = step{id: id, status: StepPending}
	}
	return &Job{steps: steps, observers: observers}
}

func (j *Job) find(id StepID) *step {
	for i := range j.steps {
		if j.steps[i].id == id {
			return &j.steps[i]
		}
	}
	return nil
}

// overallPercentLocked derives progress from completed steps only, so it can
// never decrease.
func (j *Job) overallPercentLocked() float64 {
	completed := 0
	for _, s := range j.steps {
		if s.status == StepCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(j.steps)) * 100
}

func (j *Job) emitLocked(s *step) {
	snapshot := StepSnapshot{
		ID:             s.id,
		Status:         s.status,
		Percent:        s.percent,
		Detail:         s.detail,
		Duration:       s.duration,
		OverallPercent: j.overallPercentLocked(),
	}
	for _, observer := range j.observers {
		observer(snapshot)
	}
}

func (j *Job) startStep(id StepID, detail string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := j.find(id)
	if s == nil || s.status.terminal() {
		return
	}
	s.status = StepProcessing
	s.percent = 0
	s.detail = detail
	s.started = time.Now()
	j.emitLocked(s)
}

// setStepProgress updates a processing step. Percent is clamped to [0,100]
// and never decreases within the step.
func (j *Job) setStepProgress(id StepID, percent float64, detail string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := j.find(id)
	if s == nil || s.status != StepProcessing {
		return
	}
	if percent > 100 {
		percent = 100
	}
	if percent > s.percent {
		s.percent = percent
	}
	if detail != "" {
		s.detail = detail
	}
	j.emitLocked(s)
}

func (j *Job) completeStep(id StepID, detail string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := j.find(id)
	if s == nil || s.status.terminal() {
		return
	}
	s.status = StepCompleted
	s.percent = 100
	if detail != "" {
		s.detail = detail
	}
	if !s.started.IsZero() {
		s.duration = time.Since(s.started)
	}
	j.emitLocked(s)
}

func (j *Job) failStep(id StepID, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := j.find(id)
	if s == nil || s.status.terminal() {
		return
	}
	s.status = StepError
	if err != nil {
		s.detail = err.Error()
	}
	if !s.started.IsZero() {
		s.duration = time.Since(s.started)
	}
	j.failed = id
	j.err = err
	j.emitLocked(s)
}

// FailedStep returns the step that errored, if any.
func (j *Job) FailedStep() (StepID, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failed, j.err
}

// OverallPercent returns the derived job progress.
func (j *Job) OverallPercent() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.overallPercentLocked()
}

// Snapshot returns immutable views of every step in declared order.
func (j *Job) Snapshot() []StepSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	overall := j.overallPercentLocked()
	out := make([]StepSnapshot, len(j.steps))
	for i, s := range j.steps {
		out[i] = StepSnapshot{
			ID:             s.id,
			Status:         s.status,
			Percent:        s.percent,
			Detail:         s.detail,
			Duration:       s.duration,
			OverallPercent: overall,
		}
	}
	return out
}
