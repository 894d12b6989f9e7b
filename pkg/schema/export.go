package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document for
// the TraceRequest type using invopop/jsonschema.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&TraceRequest{})
	s.ID = "https://github.com/flowlens/flowlens/schemas/trace-request-v0.json"
	s.Title = "Flowlens Trace Request v0"
	s.Description = "Schema for flowlens tracer session requests"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
