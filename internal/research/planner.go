package research

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/deepresearch/internal/llm"
	"github.com/mohammad-safakhou/deepresearch/internal/prompts"
)

type PlannerOptions struct {
	Model string
	// Stream consumes the plan incrementally. The returned plan is the same
	// either way; streaming only changes when chunks reach the observer.
	Stream bool
	Logger *zap.Logger
}

// Planner turns a query into a free-text research plan with one completion.
type Planner struct {
	llm    llm.Completer
	model  string
	stream bool
	logger *zap.Logger
}

func NewPlanner(completer llm.Completer, opts PlannerOptions) *Planner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{llm: completer, model: opts.Model, stream: opts.Stream, logger: logger.Named("planner")}
}

// Plan generates the research plan for query. onChunk, when set, receives the
// plan text as it arrives; in buffered mode it receives the whole plan once.
func (p *Planner) Plan(ctx context.Context, query string, onChunk func(string)) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}
	req := llm.Request{
		Model:    p.model,
		Messages: []llm.Message{llm.System(prompts.Planner), llm.User(query)},
	}
	p.logger.Info("generating research plan", zap.String("model", p.model), zap.Bool("stream", p.stream))

	var (
		resp llm.Response
		err  error
	)
	if p.stream {
		resp, err = p.llm.Stream(ctx, req, onChunk)
	} else {
		resp, err = p.llm.Complete(ctx, req)
		if err == nil && onChunk != nil && resp.Content != "" {
			onChunk(resp.Content)
		}
	}
	if err != nil {
		return "", err
	}
	p.logger.Debug("plan generated", zap.Int("chars", len(resp.Content)))
	return resp.Content, nil
}
