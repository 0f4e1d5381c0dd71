package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/solvdai/solvd/internal/analysis"
	"github.com/solvdai/solvd/internal/logging"
)

// HeaderRequestID carries the originating HTTP request id.
const HeaderRequestID = "Solvd-Request-Id"

// Publisher sends analysis requests to NATS.
type Publisher struct {
	nc      *nats.Conn
	subject string
	opts    options
}

// NewPublisher creates a NATS dispatcher on Subject.
func NewPublisher(nc *nats.Conn, opts ...Option) *Publisher {
	return &Publisher{nc: nc, subject: Subject, opts: newOptions(opts)}
}

// Dispatch publishes req. Publishing is buffered by the client and does not
// wait for a worker.
func (p *Publisher) Dispatch(ctx context.Context, req analysis.Request) {
	if err := p.publish(ctx, req); err != nil {
		p.opts.metrics.inc(ResultPublishFailed)
		p.opts.logger.Error(ctx, "analysis publish failed", zap.Error(err))
		return
	}
	p.opts.metrics.inc(ResultPublished)
}

func (p *Publisher) publish(ctx context.Context, req analysis.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal analysis request: %w", err)
	}
	msg := nats.NewMsg(p.subject)
	msg.Data = data
	if id := logging.RequestIDFromContext(ctx); id != "" {
		msg.Header.Set(HeaderRequestID, id)
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}

// Worker consumes analysis requests from NATS and runs them.
type Worker struct {
	nc     *nats.Conn
	runner Runner
	opts   options
	sub    *nats.Subscription
}

// NewWorker creates a worker. Call Start to subscribe.
func NewWorker(nc *nats.Conn, r Runner, opts ...Option) *Worker {
	return &Worker{nc: nc, runner: r, opts: newOptions(opts)}
}

// Start joins the QueueGroup on Subject.
func (w *Worker) Start() error {
	if w.sub != nil {
		return errors.New("worker already started")
	}
	sub, err := w.nc.QueueSubscribe(Subject, QueueGroup, w.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", Subject, err)
	}
	w.sub = sub
	return nil
}

// Stop drains the subscription, letting in-flight messages finish.
func (w *Worker) Stop() error {
	if w.sub == nil {
		return nil
	}
	err := w.sub.Drain()
	w.sub = nil
	return err
}

func (w *Worker) handle(msg *nats.Msg) {
	ctx := context.Background()
	if id := msg.Header.Get(HeaderRequestID); id != "" {
		ctx = logging.WithRequestID(ctx, id)
	}

	var req analysis.Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		w.opts.metrics.inc(ResultDecodeFailed)
		w.opts.logger.Warn(ctx, "dropping malformed analysis request", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, w.opts.timeout)
	defer cancel()
	run(ctx, w.runner, req, w.opts)
}

var _ Dispatcher = (*Publisher)(nil)
