package thumbgate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"vidpress/internal/thumbgate"
)

func TestWaitBlocksUntilResolved(t *testing.T) {
	gate := thumbgate.New()

	probe, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := gate.Wait(probe); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unresolved gate released a waiter: %v", err)
	}
	if gate.Resolved() {
		t.Fatal("gate resolved without a choice")
	}

	go func() {
		_ = gate.Resolve(thumbgate.Choice{
			Method:           thumbgate.MethodTimestamp,
			TimestampSeconds: 12,
		})
	}()

	choice, err := gate.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if choice.Method != thumbgate.MethodTimestamp || choice.TimestampSeconds != 12 {
		t.Fatalf("choice = %+v", choice)
	}
}

func TestResolveFirstCallWins(t *testing.T) {
	gate := thumbgate.New()

	if err := gate.Resolve(thumbgate.Choice{Method: thumbgate.MethodAuto}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	err := gate.Resolve(thumbgate.Choice{Method: thumbgate.MethodCustom, CustomImageRef: "img"})
	if !errors.Is(err, thumbgate.ErrAlreadyResolved) {
		t.Fatalf("second Resolve error = %v, want ErrAlreadyResolved", err)
	}

	choice, err := gate.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if choice.Method != thumbgate.MethodAuto {
		t.Fatalf("method = %q, want the first choice", choice.Method)
	}
}

func TestResolveValidatesChoice(t *testing.T) {
	tests := []struct {
		name   string
		choice thumbgate.Choice
	}{
		{"unknown method", thumbgate.Choice{Method: "sideways"}},
		{"negative timestamp", thumbgate.Choice{Method: thumbgate.MethodTimestamp, TimestampSeconds: -1}},
		{"custom without image", thumbgate.Choice{Method: thumbgate.MethodCustom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := thumbgate.New()
			if err := gate.Resolve(tt.choice); err == nil {
				t.Fatal("expected validation error")
			}
			if gate.Resolved() {
				t.Fatal("invalid choice resolved the gate")
			}
		})
	}
}

func TestWaitWithDeadlineAutoAccepts(t *testing.T) {
	gate := thumbgate.New()

	choice, err := gate.WaitWithDeadline(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitWithDeadline: %v", err)
	}
	if choice.Method != thumbgate.MethodAuto || !choice.AutoAccepted {
		t.Fatalf("choice = %+v, want auto-accepted auto", choice)
	}
	if !gate.Resolved() {
		t.Fatal("deadline did not resolve the gate")
	}
}

func TestWaitWithDeadlineZeroWaitsUnbounded(t *testing.T) {
	gate := thumbgate.New()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := gate.WaitWithDeadline(ctx, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("zero deadline must wait unbounded, got %v", err)
	}
	if gate.Resolved() {
		t.Fatal("gate auto-resolved despite disabled deadline")
	}
}
