package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidateRequest checks a TraceRequest against the generated JSON
// Schema plus domain rules the schema cannot express. Returns one
// message per problem; an empty slice means valid.
func ValidateRequest(req *TraceRequest) ([]string, error) {
	var problems []string

	// Semantic: JSON Schema validation of the serialized request.
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return nil, fmt.Errorf("generate schema: %w", err)
	}
	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("trace-request-v0.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile("trace-request-v0.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				loc := strings.Join(cause.InstanceLocation, "/")
				problems = append(problems, fmt.Sprintf("%s: %v", loc, cause.ErrorKind))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	// Domain rules.
	if req.EntryFullID == "" {
		problems = append(problems, "entry_full_id is required")
	} else if _, err := ParseEntryID(req.EntryFullID); err != nil {
		problems = append(problems, err.Error())
	}
	if req.StopLine < 0 {
		problems = append(problems, fmt.Sprintf("stop_line %d must not be negative", req.StopLine))
	}

	return problems, nil
}

// flattenValidationErrors collects leaf causes from a nested validation
// error tree.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var leaves []*sjsonschema.ValidationError
	for _, c := range ve.Causes {
		leaves = append(leaves, flattenValidationErrors(c)...)
	}
	return leaves
}
