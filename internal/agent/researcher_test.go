package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mohammad-safakhou/deepresearch/internal/llm"
)

// scriptedLLM replays responses in order and records every request.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []llm.Response
	err       error
	requests  []llm.Request
}

func (s *scriptedLLM) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return llm.Response{}, s.err
	}
	if len(s.responses) == 0 {
		return llm.Response{Content: "done"}, nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func (s *scriptedLLM) Stream(ctx context.Context, req llm.Request, _ func(string)) (llm.Response, error) {
	return s.Complete(ctx, req)
}

type recordingTools struct {
	mu        sync.Mutex
	calls     []string
	searchErr error
	fetchFn   func(ctx context.Context, url string) (string, error)
}

func (r *recordingTools) Search(_ context.Context, query string, limit int) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, "search:"+query)
	r.mu.Unlock()
	if r.searchErr != nil {
		return "", r.searchErr
	}
	return "## result for " + query, nil
}

func (r *recordingTools) Fetch(ctx context.Context, url string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, "fetch:"+url)
	r.mu.Unlock()
	if r.fetchFn != nil {
		return r.fetchFn(ctx, url)
	}
	return "page " + url, nil
}

func call(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Arguments: args}
}

func TestRunAnswersWithoutTools(t *testing.T) {
	model := &scriptedLLM{responses: []llm.Response{{Content: "# A report"}}}
	r := NewResearcher(model, &recordingTools{}, Options{Model: "m", Logger: zaptest.NewLogger(t)})

	out, err := r.Run(context.Background(), "research A")
	require.NoError(t, err)
	assert.Equal(t, "# A report", out)
	require.Len(t, model.requests, 1)
	assert.Len(t, model.requests[0].Tools, 2)
	assert.Equal(t, "m", model.requests[0].Model)
}

func TestRunExecutesToolCallsInOrder(t *testing.T) {
	model := &scriptedLLM{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{
			call("c1", SearchTool, `{"query":"ridership 2023","limit":3}`),
			call("c2", ScrapeTool, `{"url":"https://apta.com"}`),
		}},
		{Content: "final"},
	}}
	tools := &recordingTools{}
	r := NewResearcher(model, tools, Options{Model: "m"})

	out, err := r.Run(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "final", out)
	assert.Equal(t, []string{"search:ridership 2023", "fetch:https://apta.com"}, tools.calls)

	require.Len(t, model.requests, 2)
	msgs := model.requests[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleAssistant, msgs[1].Role)
	assert.Equal(t, llm.RoleTool, msgs[2].Role)
	assert.Equal(t, "c1", msgs[2].ToolCallID)
	assert.Equal(t, "## result for ridership 2023", msgs[2].Content)
	assert.Equal(t, "c2", msgs[3].ToolCallID)
	assert.Equal(t, "page https://apta.com", msgs[3].Content)
}

func TestRunForcesFinalAnswerAfterMaxSteps(t *testing.T) {
	loop := llm.Response{ToolCalls: []llm.ToolCall{call("c", SearchTool, `{"query":"again"}`)}}
	model := &scriptedLLM{responses: []llm.Response{loop, loop, {Content: "forced"}}}
	r := NewResearcher(model, &recordingTools{}, Options{Model: "m", MaxSteps: 2})

	out, err := r.Run(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "forced", out)
	require.Len(t, model.requests, 3)
	assert.NotEmpty(t, model.requests[1].Tools)
	assert.Empty(t, model.requests[2].Tools)
}

func TestRunReportsToolErrorsToModel(t *testing.T) {
	model := &scriptedLLM{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{
			call("c1", SearchTool, `{"query":"x"}`),
			call("c2", "delete_everything", `{}`),
			call("c3", ScrapeTool, `not json`),
		}},
		{Content: "recovered"},
	}}
	tools := &recordingTools{searchErr: errors.New("serper 500")}
	r := NewResearcher(model, tools, Options{Model: "m"})

	out, err := r.Run(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	msgs := model.requests[1].Messages
	assert.Contains(t, msgs[2].Content, "Tool error: serper 500")
	assert.Contains(t, msgs[3].Content, `unknown tool "delete_everything"`)
	assert.Contains(t, msgs[4].Content, "invalid arguments")
}

func TestRunFailsWhenContextEndsDuringTool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := &scriptedLLM{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{call("c1", ScrapeTool, `{"url":"https://slow.example"}`)}},
	}}
	tools := &recordingTools{fetchFn: func(ctx context.Context, url string) (string, error) {
		cancel()
		return "", ctx.Err()
	}}
	r := NewResearcher(model, tools, Options{Model: "m"})

	_, err := r.Run(ctx, "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, model.requests, 1)
}

func TestRunPropagatesGenerationFailure(t *testing.T) {
	model := &scriptedLLM{err: &llm.GenerationError{Model: "m", Err: errors.New("503")}}
	r := NewResearcher(model, &recordingTools{}, Options{Model: "m"})

	_, err := r.Run(context.Background(), "prompt")
	assert.ErrorIs(t, err, llm.ErrGenerationFailed)
}

func TestSpecsDeclareRequiredArguments(t *testing.T) {
	require.Len(t, Specs, 2)
	assert.Equal(t, SearchTool, Specs[0].Name)
	assert.Contains(t, string(Specs[0].Parameters), `"required":["query"]`)
	assert.Contains(t, string(Specs[1].Parameters), `"required":["url"]`)
}
