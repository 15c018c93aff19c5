package research

import (
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent"
	"github.com/mohammad-safakhou/deepresearch/internal/llm"
	"github.com/mohammad-safakhou/deepresearch/tools/toolset"
)

// FromConfig wires a pipeline from configuration around a shared completer
// and tool set.
func FromConfig(cfg *config.Config, completer llm.Completer, tools toolset.Toolset, observer Observer, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	worker := AgentWorker{Agent: agent.NewResearcher(completer, tools, agent.Options{
		Model:    cfg.LLM.Worker.Model,
		MaxSteps: cfg.LLM.Worker.MaxSteps,
		Logger:   logger.Named("worker"),
	})}

	var factChecker Runner
	if cfg.LLM.Synthesizer.FactCheck {
		factChecker = agent.NewResearcher(completer, tools, agent.Options{
			Model:    cfg.LLM.Synthesizer.Model,
			MaxSteps: cfg.LLM.Synthesizer.MaxSteps,
			Logger:   logger.Named("factcheck"),
		})
	}

	return NewPipeline(
		NewPlanner(completer, PlannerOptions{
			Model:  cfg.LLM.Planner.Model,
			Stream: cfg.LLM.Planner.Stream,
			Logger: logger,
		}),
		NewSplitter(completer, SplitterOptions{
			Model:       cfg.LLM.Splitter.Model,
			MaxSubtasks: cfg.Workers.MaxSubtasks,
			Logger:      logger,
		}),
		NewPool(worker, PoolOptions{
			MaxConcurrency: cfg.Workers.MaxConcurrency,
			Timeout:        cfg.Workers.Timeout,
			Logger:         logger,
		}),
		NewSynthesizer(completer, SynthesizerOptions{
			Model:       cfg.LLM.Synthesizer.Model,
			FactChecker: factChecker,
			Logger:      logger,
		}),
		PipelineOptions{Observer: observer, Logger: logger},
	)
}
