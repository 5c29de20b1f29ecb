package rules

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from the
// rule table Go types.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&Table{})
	s.ID = "https://github.com/manimagic/manimagic/schemas/rules-v1.json"
	s.Title = "Manim compatibility rule table (rules/v1)"
	s.Description = "Schema for compatibility rule table YAML documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal rules schema: %w", err)
	}
	return data, nil
}
