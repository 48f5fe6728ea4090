package plan

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// metadataSchemaJSON is the JSON Schema PlanValidator's extracted metadata
// (declared dimensions and operation sequence) must satisfy, independent of
// the risk-score heuristics in Validate. Grounded on the teacher's
// validatePayloadJSONAgainstSchema in registry/service.go, which compiles
// and validates a tool-call payload against a schema the same way.
const metadataSchemaJSON = `{
  "type": "object",
  "properties": {
    "dimensions": {
      "type": "array",
      "items": {"type": "number"}
    },
    "operations": {
      "type": "array",
      "items": {"type": "string"},
      "minItems": 1
    }
  },
  "required": ["operations"]
}`

// Metadata is the structured plan payload validated against
// metadataSchemaJSON before PlanValidator's risk scoring runs.
type Metadata struct {
	Dimensions []float64 `json:"dimensions"`
	Operations []string  `json:"operations"`
}

var metadataSchema = mustCompileMetadataSchema()

func mustCompileMetadataSchema() *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(metadataSchemaJSON), &doc); err != nil {
		panic(fmt.Errorf("plan: unmarshal metadata schema: %w", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("plan-metadata.json", doc); err != nil {
		panic(fmt.Errorf("plan: add metadata schema resource: %w", err))
	}
	schema, err := c.Compile("plan-metadata.json")
	if err != nil {
		panic(fmt.Errorf("plan: compile metadata schema: %w", err))
	}
	return schema
}

// ValidateMetadataSchema checks m's shape (an operation sequence is
// present; any declared dimensions are numeric) before risk scoring runs,
// catching a malformed extraction before it reaches Validate's heuristics.
func ValidateMetadataSchema(m Metadata) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("plan: marshal metadata: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("plan: unmarshal metadata: %w", err)
	}
	if err := metadataSchema.Validate(doc); err != nil {
		return fmt.Errorf("plan: metadata failed schema validation: %w", err)
	}
	return nil
}

// MetadataFromSteps builds the schema-checked Metadata PlanValidator uses
// from a parsed Plan's build steps and its raw-text declared dimensions.
func MetadataFromSteps(steps []BuildStep) Metadata {
	ops := make([]string, len(steps))
	for i, s := range steps {
		ops[i] = string(s.Operation)
	}
	return Metadata{Operations: ops}
}
