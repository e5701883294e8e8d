package publish

import (
	"errors"
	"testing"
)

func TestJobGuardsTerminalSteps(t *testing.T) {
	job := newJob(nil)

	job.startStep(StepValidate, "checking")
	job.completeStep(StepValidate, "ok")

	// Terminal steps never re-enter processing or regress.
	job.startStep(StepValidate, "again")
	job.setStepProgress(StepValidate, 10, "lower")
	job.failStep(StepValidate, errors.New("late failure"))

	snap := job.Snapshot()[0]
	if snap.Status != StepCompleted {
		t.Fatalf("status = %q, want completed", snap.Status)
	}
	if snap.Percent != 100 {
		t.Fatalf("percent = %v, want 100", snap.Percent)
	}
}

func TestJobProgressNeverDecreasesWithinStep(t *testing.T) {
	job := newJob(nil)
	job.startStep(StepTransfer, "uploading")
	job.setStepProgress(StepTransfer, 40, "")
	job.setStepProgress(StepTransfer, 20, "")
	job.setStepProgress(StepTransfer, 130, "")

	var snap StepSnapshot
	for _, s := range job.Snapshot() {
		if s.ID == StepTransfer {
			snap = s
		}
	}
	if snap.Percent != 100 {
		t.Fatalf("percent = %v, want clamped to 100", snap.Percent)
	}
}

func TestJobOverallPercentCountsCompletedSteps(t *testing.T) {
	job := newJob(nil)
	if got := job.OverallPercent(); got != 0 {
		t.Fatalf("initial overall = %v", got)
	}

	job.startStep(StepValidate, "")
	job.completeStep(StepValidate, "")
	want := 100.0 / float64(len(StepOrder))
	if got := job.OverallPercent(); got != want {
		t.Fatalf("overall = %v, want %v", got, want)
	}

	job.startStep(StepTransfer, "")
	job.failStep(StepTransfer, errors.New("boom"))
	if got := job.OverallPercent(); got != want {
		t.Fatalf("overall after failure = %v, want unchanged %v", got, want)
	}
	failed, err := job.FailedStep()
	if failed != StepTransfer || err == nil {
		t.Fatalf("FailedStep = %q, %v", failed, err)
	}
}

func TestStepDisplayName(t *testing.T) {
	if got := StepThumbnail.DisplayName(); got != "Thumbnail" {
		t.Fatalf("DisplayName = %q", got)
	}
}
