package research

import (
	"context"
	"strings"
	"sync"

	"github.com/mohammad-safakhou/deepresearch/internal/llm"
	"github.com/mohammad-safakhou/deepresearch/internal/prompts"
)

// fakeLLM answers each stage from a handler and records every request.
type fakeLLM struct {
	mu       sync.Mutex
	requests []llm.Request

	plan      func(req llm.Request) (llm.Response, error)
	split     func(req llm.Request) (llm.Response, error)
	synthesis func(req llm.Request) (llm.Response, error)
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	switch {
	case len(req.Messages) > 0 && req.Messages[0].Content == prompts.Planner:
		if f.plan != nil {
			return f.plan(req)
		}
		return llm.Response{Content: "1. Research the topic."}, nil
	case req.Schema != nil:
		if f.split != nil {
			return f.split(req)
		}
		return llm.Response{Content: `{"subtasks":[]}`}, nil
	default:
		if f.synthesis != nil {
			return f.synthesis(req)
		}
		return llm.Response{Content: "# Final report"}, nil
	}
}

// Stream delivers the buffered content word by word.
func (f *fakeLLM) Stream(ctx context.Context, req llm.Request, onChunk func(string)) (llm.Response, error) {
	resp, err := f.Complete(ctx, req)
	if err != nil {
		return llm.Response{}, err
	}
	if onChunk != nil {
		for _, chunk := range strings.SplitAfter(resp.Content, " ") {
			if chunk != "" {
				onChunk(chunk)
			}
		}
	}
	return resp, nil
}

func (f *fakeLLM) synthesisRequests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []llm.Request
	for _, r := range f.requests {
		if r.Schema == nil && (len(r.Messages) == 0 || r.Messages[0].Content != prompts.Planner) {
			out = append(out, r)
		}
	}
	return out
}

type event struct {
	kind  string
	stage Stage
	data  string
}

// recordingObserver keeps every event in arrival order.
type recordingObserver struct {
	mu       sync.Mutex
	events   []event
	settled  []WorkerOutcome
	subtasks []Subtask
}

func (o *recordingObserver) StageChanged(_ string, stage Stage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event{kind: "stage", stage: stage})
}

func (o *recordingObserver) PlanChunk(_ string, chunk string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event{kind: "chunk", data: chunk})
}

func (o *recordingObserver) SubtasksReady(_ string, subtasks []Subtask) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subtasks = subtasks
}

func (o *recordingObserver) WorkerSettled(_ string, outcome WorkerOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settled = append(o.settled, outcome)
}

func (o *recordingObserver) stages() []Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []Stage
	for _, e := range o.events {
		if e.kind == "stage" {
			out = append(out, e.stage)
		}
	}
	return out
}

func (o *recordingObserver) chunks() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var b strings.Builder
	for _, e := range o.events {
		if e.kind == "chunk" {
			b.WriteString(e.data)
		}
	}
	return b.String()
}

func subtasksOf(ids ...string) []Subtask {
	out := make([]Subtask, 0, len(ids))
	for _, id := range ids {
		out = append(out, Subtask{ID: id, Title: "Title " + id, Description: "Research " + id})
	}
	return out
}

func ids(bundle ReportBundle) []string {
	out := make([]string, 0, len(bundle))
	for _, o := range bundle {
		out = append(out, o.SubtaskID)
	}
	return out
}
