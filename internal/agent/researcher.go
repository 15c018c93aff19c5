// Package agent runs a tool-calling research loop against the completion
// service: the model may search and scrape as often as it needs within a step
// budget, then answers in plain markdown.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/deepresearch/internal/llm"
	"github.com/mohammad-safakhou/deepresearch/tools/toolset"
)

const (
	SearchTool = "search_web"
	ScrapeTool = "scrape_url"

	DefaultMaxSteps = 12
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"minLength=1" jsonschema_description:"The search query."`
	Limit int    `json:"limit,omitempty" jsonschema_description:"Max number of results (default 5)."`
}

type scrapeArgs struct {
	URL string `json:"url" jsonschema:"minLength=1" jsonschema_description:"The URL to scrape."`
}

// Specs declares the two web tools to the model.
var Specs = []llm.ToolSpec{
	{
		Name:        SearchTool,
		Description: "Search the web for information. Returns titles, URLs and snippets.",
		Parameters:  llm.MustSchemaFor(searchArgs{}),
	},
	{
		Name:        ScrapeTool,
		Description: "Scrape a webpage and return its main content as text.",
		Parameters:  llm.MustSchemaFor(scrapeArgs{}),
	},
}

type Options struct {
	Model    string
	MaxSteps int // tool rounds before a final answer is forced
	Logger   *zap.Logger
}

// Researcher is stateless between runs and safe for concurrent use; each Run
// keeps its own conversation.
type Researcher struct {
	llm      llm.Completer
	tools    toolset.Toolset
	model    string
	maxSteps int
	logger   *zap.Logger
}

func NewResearcher(completer llm.Completer, tools toolset.Toolset, opts Options) *Researcher {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Researcher{
		llm:      completer,
		tools:    tools,
		model:    opts.Model,
		maxSteps: opts.MaxSteps,
		logger:   logger,
	}
}

// Run drives the conversation seeded with prompt until the model answers
// without requesting tools. After MaxSteps tool rounds the model is asked once
// more with tools withheld and that answer is final.
func (r *Researcher) Run(ctx context.Context, prompt string) (string, error) {
	messages := []llm.Message{llm.User(prompt)}
	start := time.Now()
	toolCalls := 0

	for step := 0; ; step++ {
		final := step >= r.maxSteps
		req := llm.Request{Model: r.model, Messages: messages}
		if !final {
			req.Tools = Specs
		}
		resp, err := r.llm.Complete(ctx, req)
		if err != nil {
			return "", fmt.Errorf("step %d: %w", step, err)
		}
		if len(resp.ToolCalls) == 0 || final {
			r.logger.Debug("research finished",
				zap.Int("steps", step+1),
				zap.Int("tool_calls", toolCalls),
				zap.Duration("elapsed", time.Since(start)),
			)
			return resp.Content, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			toolCalls++
			out, err := r.invoke(ctx, call)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return "", fmt.Errorf("%s: %w", call.Name, ctxErr)
				}
				r.logger.Debug("tool call failed", zap.String("tool", call.Name), zap.Error(err))
				out = "Tool error: " + err.Error()
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    out,
				ToolCallID: call.ID,
			})
		}
	}
}

func (r *Researcher) invoke(ctx context.Context, call llm.ToolCall) (string, error) {
	args := strings.TrimSpace(call.Arguments)
	if args == "" {
		args = "{}"
	}
	switch call.Name {
	case SearchTool:
		var a searchArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		return r.tools.Search(ctx, a.Query, a.Limit)
	case ScrapeTool:
		var a scrapeArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		if strings.TrimSpace(a.URL) == "" {
			return "", errors.New("url is required")
		}
		return r.tools.Fetch(ctx, a.URL)
	default:
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
}
