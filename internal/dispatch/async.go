package dispatch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/solvdai/solvd/internal/analysis"
)

// Async runs analyses in background goroutines.
//
// Each run gets a context detached from the caller's cancellation, so a
// finished HTTP request does not abort it, but bounded by its own timeout so
// nothing leaks.
type Async struct {
	runner Runner
	opts   options
	wg     sync.WaitGroup
}

// NewAsync creates an in-process dispatcher.
func NewAsync(r Runner, opts ...Option) *Async {
	return &Async{runner: r, opts: newOptions(opts)}
}

// Dispatch starts the analysis and returns immediately.
func (a *Async) Dispatch(ctx context.Context, req analysis.Request) {
	detached := context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(detached, a.opts.timeout)
		defer cancel()
		run(ctx, a.runner, req, a.opts)
	}()
}

// Wait blocks until in-flight analyses finish or ctx is done.
func (a *Async) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for analyses: %w", ctx.Err())
	}
}

// run executes one analysis and records the outcome. Shared by Async and
// Worker.
func run(ctx context.Context, r Runner, req analysis.Request, o options) {
	defer func() {
		if p := recover(); p != nil {
			o.metrics.inc(ResultPanic)
			o.logger.Error(ctx, "analysis panicked", zap.Any("panic", p))
		}
	}()

	report := r.Run(ctx, req)
	result := outcome(report)
	o.metrics.inc(result)
	o.logger.Info(ctx, "analysis dispatched",
		zap.String("result", result),
		zap.String("email_id", report.EmailID),
		zap.Bool("fallback", report.AnalysisError != ""))
}

var _ Dispatcher = (*Async)(nil)
