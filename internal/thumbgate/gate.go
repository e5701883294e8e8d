// Package thumbgate suspends a publish pipeline until a thumbnail decision
// arrives. The gate is a single-resolution future: the first Resolve wins and
// every Wait observes the same choice.
package thumbgate

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Method selects the thumbnail strategy.
type Method string

const (
	// MethodAuto defers to the video-processing service's default frame.
	MethodAuto Method = "auto"
	// MethodTimestamp cuts the thumbnail at a caller-supplied offset.
	MethodTimestamp Method = "timestamp"
	// MethodCustom uploads a caller-supplied still image.
	MethodCustom Method = "custom"
)

// ErrAlreadyResolved indicates a second Resolve call on the same gate.
var ErrAlreadyResolved = errors.New("thumbgate: choice already resolved")

// Choice is the decision that releases the gate.
type Choice struct {
	Method           Method
	TimestampSeconds float64
	CustomImageRef   string
	// AutoAccepted marks a choice produced by the deadline policy rather
	// than a caller.
	AutoAccepted bool
}

// Validate checks the choice's internal consistency.
func (c Choice) Validate() error {
	switch c.Method {
	case MethodAuto:
		return nil
	case MethodTimestamp:
		if c.TimestampSeconds < 0 {
			return errors.New("thumbgate: timestamp must not be negative")
		}
		return nil
	case MethodCustom:
		if c.CustomImageRef == "" {
			return errors.New("thumbgate: custom method requires an image reference")
		}
		return nil
	default:
		return errors.New("thumbgate: unknown method")
	}
}

// Gate blocks a pipeline step until a thumbnail choice is supplied. The
// zero value is not usable; create gates with New.
type Gate struct {
	mu       sync.Mutex
	done     chan struct{}
	choice   Choice
	resolved bool
}

// New creates an unresolved gate.
func New() *Gate {
	return &Gate{done: make(chan struct{})}
}

// Resolve supplies the choice and releases every waiter. Only the first call
// succeeds; later calls return ErrAlreadyResolved.
func (g *Gate) Resolve(choice Choice) error {
	if err := choice.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resolved {
		return ErrAlreadyResolved
	}
	g.choice = choice
	g.resolved = true
	close(g.done)
	return nil
}

// Resolved reports whether a choice has been supplied.
func (g *Gate) Resolved() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolved
}

// Wait blocks until the gate resolves or ctx is cancelled.
func (g *Gate) Wait(ctx context.Context) (Choice, error) {
	select {
	case <-g.done:
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.choice, nil
	case <-ctx.Done():
		return Choice{}, ctx.Err()
	}
}

// WaitWithDeadline blocks like Wait but resolves the gate to an auto-accepted
// default after the given duration. A zero or negative duration disables the
// deadline and waits unbounded.
func (g *Gate) WaitWithDeadline(ctx context.Context, after time.Duration) (Choice, error) {
	if after <= 0 {
		return g.Wait(ctx)
	}
	timer := time.NewTimer(after)
	defer timer.Stop()

	select {
	case <-g.done:
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.choice, nil
	case <-ctx.Done():
		return Choice{}, ctx.Err()
	case <-timer.C:
		fallback := Choice{Method: MethodAuto, AutoAccepted: true}
		if err := g.Resolve(fallback); err != nil {
			// A caller resolved in the race window; use their choice.
			return g.Wait(ctx)
		}
		return fallback, nil
	}
}
