package research

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/deepresearch/internal/metrics"
)

type PipelineOptions struct {
	Observer Observer
	Logger   *zap.Logger
}

// Pipeline runs plan, split, fan-out and synthesis for one query at a time
// per call; concurrent calls are independent.
type Pipeline struct {
	planner     *Planner
	splitter    *Splitter
	pool        *Pool
	synthesizer *Synthesizer
	observer    Observer
	logger      *zap.Logger
	now         func() time.Time
}

func NewPipeline(planner *Planner, splitter *Splitter, pool *Pool, synthesizer *Synthesizer, opts PipelineOptions) *Pipeline {
	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		planner:     planner,
		splitter:    splitter,
		pool:        pool,
		synthesizer: synthesizer,
		observer:    observer,
		logger:      logger.Named("pipeline"),
		now:         time.Now,
	}
}

// Run executes a full research run. It either returns the final report or a
// *StageError naming the stage that failed; there is no partial result.
func (p *Pipeline) Run(ctx context.Context, query string) (*Result, error) {
	res := &Result{RunID: uuid.New().String(), Query: query, StartedAt: p.now()}
	logger := p.logger.With(zap.String("run_id", res.RunID))

	ctx, span := tracer.Start(ctx, "research.run", trace.WithAttributes(
		attribute.String("run.id", res.RunID),
	))
	defer span.End()

	fail := func(stage Stage, err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stage))
		metrics.RunsCompleted.WithLabelValues("failed", string(stage)).Inc()
		logger.Error("run failed", zap.String("stage", string(stage)), zap.Error(err))
		p.observer.StageChanged(res.RunID, StageFailed)
		return nil, &StageError{Stage: stage, Err: err}
	}

	logger.Info("run started", zap.String("query", query))

	// planning
	p.enter(res.RunID, StagePlanning)
	err := p.timed(ctx, StagePlanning, func(ctx context.Context) error {
		plan, err := p.planner.Plan(ctx, query, func(chunk string) { p.observer.PlanChunk(res.RunID, chunk) })
		res.Plan = plan
		return err
	})
	if err != nil {
		return fail(StagePlanning, err)
	}

	// splitting
	p.enter(res.RunID, StageSplitting)
	err = p.timed(ctx, StageSplitting, func(ctx context.Context) error {
		subtasks, err := p.splitter.Split(ctx, res.Plan)
		res.Subtasks = subtasks
		return err
	})
	if err != nil {
		return fail(StageSplitting, err)
	}
	metrics.SubtasksPerRun.Observe(float64(len(res.Subtasks)))
	p.observer.SubtasksReady(res.RunID, res.Subtasks)

	// the pool only rejects a subtask list before dispatch, which is reported
	// against the stage that produced the list
	p.enter(res.RunID, StageFanningOut)
	err = p.timed(ctx, StageFanningOut, func(ctx context.Context) error {
		bundle, err := p.pool.run(ctx, res.Subtasks, SharedContext{Query: query, Plan: res.Plan}, func(o WorkerOutcome) {
			p.observer.WorkerSettled(res.RunID, o)
		})
		res.Bundle = bundle
		return err
	})
	if err != nil {
		return fail(StageSplitting, err)
	}

	// synthesizing
	p.enter(res.RunID, StageSynthesizing)
	err = p.timed(ctx, StageSynthesizing, func(ctx context.Context) error {
		report, err := p.synthesizer.Synthesize(ctx, query, res.Plan, res.Bundle)
		res.Report = report
		return err
	})
	if err != nil {
		return fail(StageSynthesizing, err)
	}

	res.FinishedAt = p.now()
	p.observer.StageChanged(res.RunID, StageDone)
	metrics.RunsCompleted.WithLabelValues("done", string(StageDone)).Inc()
	span.SetAttributes(
		attribute.Int("subtasks", len(res.Subtasks)),
		attribute.Int("failed_subtasks", len(res.Bundle.Failed())),
	)
	logger.Info("run finished",
		zap.Int("subtasks", len(res.Subtasks)),
		zap.Int("failed_subtasks", len(res.Bundle.Failed())),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

func (p *Pipeline) enter(runID string, stage Stage) {
	p.observer.StageChanged(runID, stage)
}

func (p *Pipeline) timed(ctx context.Context, stage Stage, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "research."+string(stage))
	defer span.End()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	return err
}
