package research

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/llm"
)

func TestFromConfigWiresAgentWorkers(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLMConfig{
			Planner:     config.PlannerConfig{Model: "planner", Stream: true},
			Splitter:    config.StageModel{Model: "splitter"},
			Worker:      config.WorkerModel{Model: "worker", MaxSteps: 3},
			Synthesizer: config.SynthesizerConfig{Model: "editor", FactCheck: true, MaxSteps: 2},
		},
		Workers: config.WorkersConfig{MaxConcurrency: 2, Timeout: time.Second, MaxSubtasks: 4},
	}
	model := &fakeLLM{split: func(llm.Request) (llm.Response, error) {
		return llm.Response{Content: `{"subtasks":[{"id":"A","title":"t","description":"d"},{"id":"B","title":"t","description":"d"}]}`}, nil
	}}

	res, err := FromConfig(cfg, model, nil, nil, zaptest.NewLogger(t)).Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids(res.Bundle))
	assert.Equal(t, "# Final report", res.Report)

	var workerCalls, editorCalls int
	for _, req := range model.synthesisRequests() {
		switch req.Model {
		case "worker":
			workerCalls++
			assert.Len(t, req.Tools, 2)
		case "editor":
			editorCalls++
			assert.Len(t, req.Tools, 2, "fact checking offers tools to the editor")
		}
	}
	assert.Equal(t, 2, workerCalls)
	assert.Equal(t, 1, editorCalls)
}
