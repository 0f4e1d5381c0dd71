package wizard

import (
	"context"
	"time"
)

// DefaultFloor is the minimum time the generating screen stays up.
const DefaultFloor = 2 * time.Second

// Pacer holds a step on screen for at least Floor. Work that takes longer
// than Floor is not delayed further.
type Pacer struct {
	Floor time.Duration

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewPacer returns a Pacer with the given floor.
func NewPacer(floor time.Duration) Pacer {
	return Pacer{Floor: floor}
}

// Run calls fn and then waits out whatever is left of the floor. fn's error
// is returned after the wait; a cancelled ctx cuts the wait short.
func (p Pacer) Run(ctx context.Context, fn func(context.Context) error) error {
	start := p.clock()
	err := fn(ctx)
	if werr := p.Wait(ctx, start); err == nil {
		err = werr
	}
	return err
}

// Wait blocks until Floor has passed since start.
func (p Pacer) Wait(ctx context.Context, start time.Time) error {
	remaining := p.Floor - p.clock().Sub(start)
	if remaining <= 0 {
		return nil
	}
	if p.sleep != nil {
		return p.sleep(ctx, remaining)
	}
	return sleepCtx(ctx, remaining)
}

func (p Pacer) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
