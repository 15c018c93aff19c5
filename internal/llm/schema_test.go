package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schemaItem struct {
	ID   string `json:"id" jsonschema:"minLength=1"`
	Note string `json:"note,omitempty"`
}

type schemaList struct {
	Items []schemaItem `json:"items" jsonschema_description:"Things."`
}

func TestSchemaForInlinesAndStripsMeta(t *testing.T) {
	raw, err := SchemaFor(schemaList{})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.NotContains(t, doc, "$schema")
	assert.NotContains(t, doc, "$id")
	assert.NotContains(t, doc, "$defs")
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, false, doc["additionalProperties"])
	assert.Equal(t, []any{"items"}, doc["required"])

	items := doc["properties"].(map[string]any)["items"].(map[string]any)
	assert.Equal(t, "array", items["type"])
	assert.Equal(t, "Things.", items["description"])
	elem := items["items"].(map[string]any)
	assert.Equal(t, []any{"id"}, elem["required"])
	id := elem["properties"].(map[string]any)["id"].(map[string]any)
	assert.Equal(t, float64(1), id["minLength"])
}
