package research

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mohammad-safakhou/deepresearch/internal/llm"
	"github.com/mohammad-safakhou/deepresearch/internal/prompts"
)

const samplePlan = "I want a report on remote work and transit. Cover ridership, fares, and policy. Include tables."

func TestPlannerBufferedAndStreamingAgree(t *testing.T) {
	model := &fakeLLM{plan: func(llm.Request) (llm.Response, error) {
		return llm.Response{Content: samplePlan}, nil
	}}

	buffered := NewPlanner(model, PlannerOptions{Model: "planner", Logger: zaptest.NewLogger(t)})
	var bufferedChunks []string
	planA, err := buffered.Plan(context.Background(), "remote work transit", func(c string) { bufferedChunks = append(bufferedChunks, c) })
	require.NoError(t, err)

	streaming := NewPlanner(model, PlannerOptions{Model: "planner", Stream: true})
	var streamed []string
	planB, err := streaming.Plan(context.Background(), "remote work transit", func(c string) { streamed = append(streamed, c) })
	require.NoError(t, err)

	assert.Equal(t, samplePlan, planA)
	assert.Equal(t, planA, planB)
	assert.Equal(t, []string{samplePlan}, bufferedChunks)
	assert.Greater(t, len(streamed), 1)
}

func TestPlannerSendsInstructionAndQuery(t *testing.T) {
	model := &fakeLLM{}
	_, err := NewPlanner(model, PlannerOptions{Model: "planner-model"}).Plan(context.Background(), "my query", nil)
	require.NoError(t, err)

	require.Len(t, model.requests, 1)
	req := model.requests[0]
	assert.Equal(t, "planner-model", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, prompts.Planner, req.Messages[0].Content)
	assert.Equal(t, "my query", req.Messages[1].Content)
}

func TestPlannerRejectsEmptyQuery(t *testing.T) {
	model := &fakeLLM{}
	_, err := NewPlanner(model, PlannerOptions{}).Plan(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Empty(t, model.requests)
}

func TestPlannerPropagatesGenerationFailure(t *testing.T) {
	model := &fakeLLM{plan: func(llm.Request) (llm.Response, error) {
		return llm.Response{}, &llm.GenerationError{Model: "planner", Err: errors.New("rate limited")}
	}}
	for _, stream := range []bool{false, true} {
		_, err := NewPlanner(model, PlannerOptions{Stream: stream}).Plan(context.Background(), "q", nil)
		assert.ErrorIs(t, err, llm.ErrGenerationFailed)
	}
}
