package extractor

import (
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const outputSchemaURL = "schema://extracted-features.json"

// outputSchema accepts an object whose values are numbers, strings or
// null. Strings are coerced or rejected later by the normalizer.
var outputSchema = map[string]any{
	"type": "object",
	"additionalProperties": map[string]any{
		"type": []any{"number", "string", "null"},
	},
}

var compiled struct {
	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

func compiledSchema() (*jsonschema.Schema, error) {
	compiled.once.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(outputSchemaURL, outputSchema); err != nil {
			compiled.err = fmt.Errorf("add resource: %w", err)
			return
		}
		compiled.schema, compiled.err = c.Compile(outputSchemaURL)
	})
	return compiled.schema, compiled.err
}
