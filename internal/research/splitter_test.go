package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/deepresearch/internal/llm"
	"github.com/mohammad-safakhou/deepresearch/internal/prompts"
)

func TestSplitReturnsSubtasksInModelOrder(t *testing.T) {
	model := &fakeLLM{split: func(llm.Request) (llm.Response, error) {
		return llm.Response{Content: `{"subtasks":[
			{"id":"C","title":"Policy","description":"Review policy responses"},
			{"id":"A","title":"Ridership","description":"Collect ridership data"}
		]}`}, nil
	}}
	s := NewSplitter(model, SplitterOptions{Model: "splitter", MaxSubtasks: 8})

	subtasks, err := s.Split(context.Background(), samplePlan)
	require.NoError(t, err)
	require.Len(t, subtasks, 2)
	assert.Equal(t, "C", subtasks[0].ID)
	assert.Equal(t, "Ridership", subtasks[1].Title)

	req := model.requests[0]
	require.NotNil(t, req.Schema)
	assert.Equal(t, "SubtaskList", req.Schema.Name)
	assert.True(t, req.Schema.Strict)
	assert.Equal(t, prompts.Splitter, req.Messages[0].Content)
	assert.Equal(t, samplePlan, req.Messages[1].Content)
}

func TestDeclaredSchemaRequiresAllFields(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal(subtaskListSchema, &doc))
	assert.NotContains(t, doc, "$schema")
	item := doc["properties"].(map[string]any)["subtasks"].(map[string]any)["items"].(map[string]any)
	assert.ElementsMatch(t, []any{"id", "title", "description"}, item["required"])
}

func TestSplitEmptyListIsValid(t *testing.T) {
	subtasks, err := NewSplitter(&fakeLLM{}, SplitterOptions{}).Split(context.Background(), samplePlan)
	require.NoError(t, err)
	assert.NotNil(t, subtasks)
	assert.Empty(t, subtasks)
}

func TestSplitPropagatesGenerationFailure(t *testing.T) {
	model := &fakeLLM{split: func(llm.Request) (llm.Response, error) {
		return llm.Response{}, &llm.GenerationError{Model: "splitter", Err: errors.New("boom")}
	}}
	_, err := NewSplitter(model, SplitterOptions{}).Split(context.Background(), samplePlan)
	assert.ErrorIs(t, err, llm.ErrGenerationFailed)
	assert.NotErrorIs(t, err, ErrSchemaValidation)
}

func TestParseSubtasksAcceptsFencedJSON(t *testing.T) {
	raw := "```json\n{\"subtasks\":[{\"id\":\"A\",\"title\":\"t\",\"description\":\"d\"}]}\n```"
	subtasks, err := ParseSubtasks(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, []Subtask{{ID: "A", Title: "t", Description: "d"}}, subtasks)
}

func TestParseSubtasksRejectsInvalidOutput(t *testing.T) {
	cases := map[string]string{
		"not json":            `Here are your subtasks: A, B`,
		"missing subtasks":    `{"tasks":[]}`,
		"missing description": `{"subtasks":[{"id":"A","title":"t"}]}`,
		"empty id":            `{"subtasks":[{"id":"","title":"t","description":"d"}]}`,
		"blank id":            `{"subtasks":[{"id":"   ","title":"t","description":"d"}]}`,
		"wrong type":          `{"subtasks":[{"id":1,"title":"t","description":"d"}]}`,
		"extra property":      `{"subtasks":[{"id":"A","title":"t","description":"d","priority":1}]}`,
		"not a list":          `{"subtasks":{"id":"A"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSubtasks(raw, 0)
			assert.ErrorIs(t, err, ErrSchemaValidation)
		})
	}
}

func TestParseSubtasksRejectsDuplicateIDs(t *testing.T) {
	raw := `{"subtasks":[
		{"id":"A","title":"t1","description":"d1"},
		{"id":"A","title":"t2","description":"d2"}
	]}`
	_, err := ParseSubtasks(raw, 0)
	assert.ErrorIs(t, err, ErrSchemaValidation)
	assert.ErrorIs(t, err, ErrDuplicateSubtask)
}

func TestParseSubtasksEnforcesUpperBound(t *testing.T) {
	items := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		items = append(items, fmt.Sprintf(`{"id":"%d","title":"t","description":"d"}`, i))
	}
	raw := `{"subtasks":[` + strings.Join(items, ",") + `]}`

	_, err := ParseSubtasks(raw, 3)
	assert.ErrorIs(t, err, ErrSchemaValidation)

	subtasks, err := ParseSubtasks(raw, 4)
	require.NoError(t, err)
	assert.Len(t, subtasks, 4)
}
