package research

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/deepresearch/internal/metrics"
)

var tracer trace.Tracer = otel.Tracer("deepresearch/internal/research")

const DefaultMaxConcurrency = 8

type PoolOptions struct {
	// MaxConcurrency caps running workers; excess workers wait in subtask
	// order. 0 runs every worker at once.
	MaxConcurrency int
	// Timeout bounds each worker; expiry settles it as failed.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Pool fans subtasks out to isolated workers and joins their outcomes.
type Pool struct {
	worker         Worker
	maxConcurrency int
	timeout        time.Duration
	logger         *zap.Logger
}

func NewPool(worker Worker, opts PoolOptions) *Pool {
	if opts.MaxConcurrency < 0 {
		opts.MaxConcurrency = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		worker:         worker,
		maxConcurrency: opts.MaxConcurrency,
		timeout:        opts.Timeout,
		logger:         logger.Named("pool"),
	}
}

// RunAll runs one worker per subtask and returns exactly one outcome per
// subtask, sorted by subtask id. Worker failures, panics and timeouts become
// failed outcomes; RunAll itself only errors before any worker starts.
func (p *Pool) RunAll(ctx context.Context, subtasks []Subtask, shared SharedContext) (ReportBundle, error) {
	return p.run(ctx, subtasks, shared, nil)
}

func (p *Pool) run(ctx context.Context, subtasks []Subtask, shared SharedContext, onSettled func(WorkerOutcome)) (ReportBundle, error) {
	if p.worker == nil {
		return nil, ErrNoWorker
	}
	seen := make(map[string]struct{}, len(subtasks))
	for _, st := range subtasks {
		if _, dup := seen[st.ID]; dup {
			return nil, fmt.Errorf("%w %q", ErrDuplicateSubtask, st.ID)
		}
		seen[st.ID] = struct{}{}
	}

	ctx, span := tracer.Start(ctx, "research.fan_out", trace.WithAttributes(
		attribute.Int("subtasks", len(subtasks)),
		attribute.Int("max_concurrency", p.maxConcurrency),
	))
	defer span.End()

	// Each goroutine owns one slot; Wait is the join barrier.
	outcomes := make([]WorkerOutcome, len(subtasks))
	var g errgroup.Group
	if p.maxConcurrency > 0 {
		g.SetLimit(p.maxConcurrency)
	}
	for i, task := range subtasks {
		g.Go(func() error {
			outcomes[i] = p.runOne(ctx, task, shared)
			if onSettled != nil {
				onSettled(outcomes[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	bundle := ReportBundle(outcomes)
	sort.SliceStable(bundle, func(i, j int) bool { return bundle[i].SubtaskID < bundle[j].SubtaskID })

	failed := len(bundle.Failed())
	span.SetAttributes(attribute.Int("failed", failed))
	p.logger.Info("all workers settled", zap.Int("subtasks", len(bundle)), zap.Int("failed", failed))
	return bundle, nil
}

func (p *Pool) runOne(ctx context.Context, task Subtask, shared SharedContext) (out WorkerOutcome) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "research.worker", trace.WithAttributes(
		attribute.String("subtask.id", task.ID),
		attribute.String("subtask.title", task.Title),
	))
	metrics.WorkersInFlight.Inc()
	out = WorkerOutcome{SubtaskID: task.ID, Title: task.Title}

	defer func() {
		if r := recover(); r != nil {
			out.Status = StatusFailed
			out.Payload = fmt.Sprintf("worker panicked: %v", r)
		}
		if out.Failed() {
			span.SetStatus(codes.Error, out.Payload)
			p.logger.Warn("worker failed", zap.String("subtask", task.ID), zap.String("error", out.Payload))
		} else {
			p.logger.Info("worker finished", zap.String("subtask", task.ID), zap.Duration("elapsed", time.Since(start)))
		}
		metrics.WorkersInFlight.Dec()
		metrics.WorkerOutcomes.WithLabelValues(string(out.Status)).Inc()
		metrics.WorkerDuration.Observe(time.Since(start).Seconds())
		span.End()
	}()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	report, err := p.worker.Research(ctx, task, shared)
	if err != nil {
		span.RecordError(err)
		out.Status = StatusFailed
		out.Payload = describeFailure(err, p.timeout)
		return out
	}
	out.Status = StatusSuccess
	out.Payload = report
	return out
}

func describeFailure(err error, timeout time.Duration) string {
	msg := err.Error()
	if msg == "" {
		msg = "unknown error"
	}
	if timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("worker timed out after %s: %s", timeout, msg)
	}
	return msg
}
