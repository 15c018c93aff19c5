package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.openai.com/v1"

// OpenAIOptions configures an OpenAI-compatible chat completions client.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string // any OpenAI-compatible endpoint, e.g. a LiteLLM proxy
	Timeout time.Duration
	// HTTPClient overrides the transport; Timeout is ignored when set.
	HTTPClient *http.Client
}

// OpenAI implements Completer on top of the chat completions API.
type OpenAI struct {
	client *openai.Client
	logger *zap.Logger
}

// NewOpenAI creates a new OpenAI client
func NewOpenAI(opts OpenAIOptions, logger *zap.Logger) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	} else {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), logger: logger.Named("llm")}
}

// Complete sends one buffered chat completion request.
func (c *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, toOpenAIRequest(req))
	if err != nil {
		c.logger.Warn("completion failed", zap.String("model", req.Model), zap.Error(err))
		return Response{}, generationError(req.Model, err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, generationError(req.Model, errors.New("no choices in response"))
	}

	msg := resp.Choices[0].Message
	out := Response{
		Model:   resp.Model,
		Content: msg.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	c.logger.Debug("completion finished",
		zap.String("model", req.Model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("prompt_tokens", out.Usage.PromptTokens),
		zap.Int("completion_tokens", out.Usage.CompletionTokens),
		zap.Int("tool_calls", len(out.ToolCalls)),
	)
	return out, nil
}

// Stream sends a streaming chat completion request and forwards each content
// delta to onChunk. Tool calls are not supported in streaming mode.
func (c *OpenAI) Stream(ctx context.Context, req Request, onChunk func(chunk string)) (Response, error) {
	if len(req.Tools) > 0 {
		return Response{}, generationError(req.Model, errors.New("tools are not supported when streaming"))
	}
	oreq := toOpenAIRequest(req)
	oreq.Stream = true
	stream, err := c.client.CreateChatCompletionStream(ctx, oreq)
	if err != nil {
		return Response{}, generationError(req.Model, err)
	}
	defer stream.Close()

	var (
		sb    strings.Builder
		model string
	)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Response{}, generationError(req.Model, fmt.Errorf("stream: %w", err))
		}
		if model == "" {
			model = chunk.Model
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if onChunk != nil {
			onChunk(delta)
		}
	}
	return Response{Model: model, Content: sb.String()}, nil
}

func toOpenAIRequest(req Request) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out.Messages = append(out.Messages, msg)
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	if req.Schema != nil {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Schema.Name,
				Schema: req.Schema.Definition,
				Strict: req.Schema.Strict,
			},
		}
	}
	return out
}
