package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidTable is wrapped by every error Validate and Compile return for
// a table that fails its checks.
var ErrInvalidTable = errors.New("invalid rule table")

// TableError is one problem found in a rule table.
type TableError struct {
	Phase   string `json:"phase"` // semantic, domain
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e *TableError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s at %s", e.Phase, e.Message, e.Path)
	}
	return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
}

func errorf(phase, path, msg string, args ...any) *TableError {
	return &TableError{Phase: phase, Path: path, Message: fmt.Sprintf(msg, args...)}
}

// Validate runs the semantic (JSON Schema) and domain checks on a decoded
// table. Domain checks are skipped when the schema check fails.
func Validate(t *Table) []*TableError {
	errs := validateSemantic(t)
	if len(errs) > 0 {
		return errs
	}
	return validateDomain(t)
}

// validateSemantic validates the table against the reflected JSON Schema.
func validateSemantic(t *Table) []*TableError {
	data, err := json.Marshal(t)
	if err != nil {
		return []*TableError{errorf("semantic", "", "marshal for schema validation: %v", err)}
	}
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return []*TableError{errorf("semantic", "", "generate schema: %v", err)}
	}

	schemaDoc, err := sjsonschema.UnmarshalJSON(strings.NewReader(string(schemaJSON)))
	if err != nil {
		return []*TableError{errorf("semantic", "", "unmarshal schema: %v", err)}
	}
	c := sjsonschema.NewCompiler()
	if err := c.AddResource("rules-v1.json", schemaDoc); err != nil {
		return []*TableError{errorf("semantic", "", "add schema resource: %v", err)}
	}
	sch, err := c.Compile("rules-v1.json")
	if err != nil {
		return []*TableError{errorf("semantic", "", "compile schema: %v", err)}
	}

	doc, err := sjsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return []*TableError{errorf("semantic", "", "unmarshal document: %v", err)}
	}

	if err := sch.Validate(doc); err != nil {
		var ve *sjsonschema.ValidationError
		if !errors.As(err, &ve) {
			return []*TableError{errorf("semantic", "", "%v", err)}
		}
		var errs []*TableError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, errorf("semantic", strings.Join(cause.InstanceLocation, "/"), "%v", cause.ErrorKind))
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// validateDomain runs the hand-coded rules the schema cannot express.
func validateDomain(t *Table) []*TableError {
	var errs []*TableError

	if t.Version != TableVersion {
		errs = append(errs, errorf("domain", "version", "expected %q, got %q", TableVersion, t.Version))
	}

	ids := map[string]string{} // id → path
	for i := range t.Rules {
		r := &t.Rules[i]
		path := fmt.Sprintf("rules[%d]", i)

		if prev, ok := ids[r.ID]; ok {
			errs = append(errs, errorf("domain", path+".id", "duplicate rule ID %q (first at %s)", r.ID, prev))
		} else {
			ids[r.ID] = path
		}

		if !r.Kind.IsCompatibility() {
			errs = append(errs, errorf("domain", path+".kind", "kind %q cannot be reported by a compatibility rule", r.Kind))
		}

		m := r.Match
		if len(m.Contains) == 0 && m.Regex == "" && m.Call == "" {
			errs = append(errs, errorf("domain", path+".match", "match needs at least one of contains, regex or call"))
		}
		if m.When != "" && m.Call == "" {
			errs = append(errs, errorf("domain", path+".match.when", "when requires call"))
		}
		if m.Regex != "" {
			if _, err := regexp.Compile(m.Regex); err != nil {
				errs = append(errs, errorf("domain", path+".match.regex", "invalid regex: %v", err))
			}
		}
		if m.When != "" {
			if _, err := compileWhen(m.When); err != nil {
				errs = append(errs, errorf("domain", path+".match.when", "%v", err))
			}
		}
		for j, fx := range r.Fix {
			if _, err := regexp.Compile(fx.Pattern); err != nil {
				errs = append(errs, errorf("domain", fmt.Sprintf("%s.fix[%d].pattern", path, j), "invalid regex: %v", err))
			}
		}
	}
	return errs
}

func joinTableErrors(errs []*TableError) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return fmt.Errorf("%w: %s", ErrInvalidTable, strings.Join(msgs, "; "))
}
