package research

import (
	"context"

	"github.com/mohammad-safakhou/deepresearch/internal/prompts"
)

// Worker researches a single subtask and returns its markdown report.
// Implementations are shared by every goroutine of a run and must not keep
// per-call state.
type Worker interface {
	Research(ctx context.Context, task Subtask, shared SharedContext) (string, error)
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(ctx context.Context, task Subtask, shared SharedContext) (string, error)

func (f WorkerFunc) Research(ctx context.Context, task Subtask, shared SharedContext) (string, error) {
	return f(ctx, task, shared)
}

// Runner is a tool-using agent loop seeded with a single prompt.
type Runner interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// AgentWorker runs a fresh agent conversation per subtask, seeded with the
// subtask instruction.
type AgentWorker struct {
	Agent Runner
}

func (w AgentWorker) Research(ctx context.Context, task Subtask, shared SharedContext) (string, error) {
	return w.Agent.Run(ctx, prompts.Subtask(prompts.SubtaskContext{
		Query:       shared.Query,
		Plan:        shared.Plan,
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
	}))
}
