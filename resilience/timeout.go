package resilience

import (
	"context"
	"errors"
	"time"
)

// Timeout bounds each call with a deadline.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a Timeout. A non-positive d defaults to 30 seconds.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = 30 * time.Second
	}
	return &Timeout{d: d}
}

// Duration returns the configured limit.
func (t *Timeout) Duration() time.Duration { return t.d }

// Execute runs op with a deadline. If op does not return in time, Execute
// returns ErrTimeout without waiting for it. A cancelled parent returns the
// parent's error.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	var err error
	select {
	case err = <-done:
		if err == nil {
			return nil
		}
	case <-ctx.Done():
		err = ctx.Err()
	}

	// Only this wrapper's deadline maps to ErrTimeout. A parent deadline
	// passes through.
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return ErrTimeout
	}
	return err
}
