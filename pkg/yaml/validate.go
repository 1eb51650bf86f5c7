package yaml

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/invopop/jsonschema"

	jsv "github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator validates data against a JSON schema.
// Uses [github.com/santhosh-tekuri/jsonschema/v6].
type Validator struct {
	schema *jsv.Schema
}

// NewValidator creates a new [Validator] with the provided JSON schema data.
func NewValidator(url string, schemaData []byte) (*Validator, error) {
	var schema any

	err := json.Unmarshal(schemaData, &schema)
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	compiler := jsv.NewCompiler()

	err = compiler.AddResource(url, schema)
	if err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	jss, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{schema: jss}, nil
}

// NewValidatorFor reflects a JSON schema from the Go type of v, and creates a
// [Validator] from it. Fields without `omitempty` are required, and unknown
// fields are rejected.
func NewValidatorFor(url string, v any) (*Validator, error) {
	schemaData, err := ReflectSchema(v)
	if err != nil {
		return nil, err
	}

	return NewValidator(url, schemaData)
}

func MustNewValidatorFor(url string, v any) *Validator {
	val, err := NewValidatorFor(url, v)
	if err != nil {
		panic(err)
	}

	return val
}

// ReflectSchema generates the JSON schema for the Go type of v.
// Uses [github.com/invopop/jsonschema].
func ReflectSchema(v any) ([]byte, error) {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		ExpandedStruct: true,
	}

	b, err := json.MarshalIndent(r.Reflect(v), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return b, nil
}

// Validate validates the given data against the schema.
// It returns an [*Error] whose Path points at the most specific failing
// location, which can be resolved against the source for reporting.
func (s *Validator) Validate(data any) error {
	err := s.schema.Validate(data)
	if err == nil {
		return nil
	}

	var validationErr *jsv.ValidationError
	if !errors.As(err, &validationErr) {
		return fmt.Errorf("schema validation: %w", err)
	}

	return &Error{
		Err:  validationErr,
		Path: buildPathFromLocation(findMostSpecificLocation(validationErr)),
	}
}

// findMostSpecificLocation recursively searches through all causes to find the
// one with the longest InstanceLocation.
func findMostSpecificLocation(err *jsv.ValidationError) []string {
	longest := err.InstanceLocation

	for _, cause := range err.Causes {
		candidate := findMostSpecificLocation(cause)
		if len(candidate) > len(longest) {
			longest = candidate
		}
	}

	return longest
}

// buildPathFromLocation converts an InstanceLocation slice to a [yaml.Path].
func buildPathFromLocation(location []string) *yaml.Path {
	current := NewPathBuilder().Root()

	for _, part := range location {
		index, err := strconv.ParseUint(part, 10, 64)
		if err == nil {
			current = current.Index(uint(index))
		} else {
			current = current.Child(part)
		}
	}

	return current.Build()
}
