package llm

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects a JSON schema from v's Go type, inlining nested types and
// dropping the $schema and $id keywords that providers reject. Struct fields
// without omitempty are required and unknown properties are disallowed.
func SchemaFor(v any) (json.RawMessage, error) {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
		Anonymous:      true,
	}
	b, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	delete(doc, "$schema")
	delete(doc, "$id")
	return json.Marshal(doc)
}

// MustSchemaFor is SchemaFor for package-level declarations.
func MustSchemaFor(v any) json.RawMessage {
	s, err := SchemaFor(v)
	if err != nil {
		panic(err)
	}
	return s
}
