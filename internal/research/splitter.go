package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/deepresearch/internal/llm"
	"github.com/mohammad-safakhou/deepresearch/internal/prompts"
)

//go:embed subtasks_schema.json
var subtasksSchemaJSON string

// subtaskListSchema is declared to the model; subtasksSchemaJSON is what the
// response is validated against.
var subtaskListSchema = llm.MustSchemaFor(SubtaskList{})

var (
	compileOnce    sync.Once
	subtasksSchema *jsonschema.Schema
	compileErr     error
)

// SubtasksSchema returns the compiled validation schema for splitter output.
func SubtasksSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("subtasks_schema.json", strings.NewReader(subtasksSchemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("subtasks_schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile subtasks schema: %w", err)
			return
		}
		subtasksSchema = schema
	})
	return subtasksSchema, compileErr
}

// ParseSubtasks validates raw splitter output and decodes it. A single
// surrounding markdown code fence is tolerated; anything else that does not
// match the schema, repeats an id, or exceeds maxSubtasks (when > 0) is an
// ErrSchemaValidation.
func ParseSubtasks(raw string, maxSubtasks int) ([]Subtask, error) {
	schema, err := SubtasksSchema()
	if err != nil {
		return nil, err
	}
	data := []byte(stripFence(raw))
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: not valid JSON: %v", ErrSchemaValidation, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}
	var list SubtaskList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}
	if maxSubtasks > 0 && len(list.Subtasks) > maxSubtasks {
		return nil, fmt.Errorf("%w: %d subtasks exceeds the limit of %d", ErrSchemaValidation, len(list.Subtasks), maxSubtasks)
	}
	seen := make(map[string]struct{}, len(list.Subtasks))
	for _, st := range list.Subtasks {
		if _, dup := seen[st.ID]; dup {
			return nil, fmt.Errorf("%w: %w %q", ErrSchemaValidation, ErrDuplicateSubtask, st.ID)
		}
		seen[st.ID] = struct{}{}
	}
	if list.Subtasks == nil {
		list.Subtasks = []Subtask{}
	}
	return list.Subtasks, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

type SplitterOptions struct {
	Model       string
	MaxSubtasks int
	Logger      *zap.Logger
}

// Splitter decomposes a plan into subtasks with one schema-constrained
// completion.
type Splitter struct {
	llm         llm.Completer
	model       string
	maxSubtasks int
	logger      *zap.Logger
}

func NewSplitter(completer llm.Completer, opts SplitterOptions) *Splitter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Splitter{llm: completer, model: opts.Model, maxSubtasks: opts.MaxSubtasks, logger: logger.Named("splitter")}
}

// Split returns the subtasks in model order. An empty list is valid.
func (s *Splitter) Split(ctx context.Context, plan string) ([]Subtask, error) {
	resp, err := s.llm.Complete(ctx, llm.Request{
		Model:    s.model,
		Messages: []llm.Message{llm.System(prompts.Splitter), llm.User(plan)},
		Schema:   &llm.Schema{Name: "SubtaskList", Definition: subtaskListSchema, Strict: true},
	})
	if err != nil {
		return nil, err
	}
	subtasks, err := ParseSubtasks(resp.Content, s.maxSubtasks)
	if err != nil {
		s.logger.Warn("splitter output rejected", zap.Error(err))
		return nil, err
	}
	s.logger.Info("plan split", zap.Int("subtasks", len(subtasks)))
	return subtasks, nil
}
