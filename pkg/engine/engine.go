// Package engine is the validation authority for rule files: it decides
// whether raw rule text compiles into an executable rule.
//
// Compilation checks, in order, that the content is a YAML document, that it
// matches the rule file schema, that the condition compiles to a boolean CEL
// program, and that every action compiles to a CEL program.
package engine

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/macropower/rulesync/pkg/expr"
	"github.com/macropower/rulesync/pkg/rule"
	"github.com/macropower/rulesync/pkg/yaml"
)

//go:generate go run ../../internal/schemagen/main.go -kind rule -o ../rule/rule.v1.json
const schemaURL = "https://raw.githubusercontent.com/macropower/rulesync/refs/heads/main/pkg/rule/rule.v1.json"

var (
	// ErrCompile is returned when rule content does not compile.
	ErrCompile = errors.New("invalid rule")

	errMultipleDocuments = errors.New("rule file must hold a single YAML document")
)

// Compiler compiles raw rule file content.
type Compiler interface {
	Compile(raw []byte) (*CompiledRule, error)
}

// CompiledRule is the executable form of a rule file.
type CompiledRule struct {
	Condition cel.Program
	Actions   []cel.Program
	Spec      rule.Spec
}

// Engine implements [Compiler] using CEL.
type Engine struct {
	env       *expr.Environment
	validator *yaml.Validator
}

// New creates a new [Engine].
func New() (*Engine, error) {
	env, err := expr.NewEnvironment()
	if err != nil {
		return nil, err
	}

	validator, err := yaml.NewValidatorFor(schemaURL, &rule.Spec{})
	if err != nil {
		return nil, fmt.Errorf("create rule validator: %w", err)
	}

	return &Engine{env: env, validator: validator}, nil
}

// MustNew creates a new [Engine] and panics on error.
func MustNew() *Engine {
	e, err := New()
	if err != nil {
		panic(err)
	}

	return e
}

// Compile compiles raw rule file content. All errors wrap [ErrCompile], and
// carry a [*yaml.Error] locating the problem when one can be determined.
func (e *Engine) Compile(raw []byte) (*CompiledRule, error) {
	ew := yaml.NewErrorWrapper(yaml.WithSource(raw))

	var doc any

	err := yaml.NewDecoder(bytes.NewReader(raw)).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, ew.Wrap(err))
	}

	err = e.validator.Validate(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, ew.Wrap(err))
	}

	spec := rule.Spec{}

	dec := yaml.NewStrictDecoder(bytes.NewReader(raw))

	err = dec.Decode(&spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, ew.Wrap(err))
	}

	var extra any

	err = dec.Decode(&extra)
	switch {
	case errors.Is(err, yaml.ErrEmptyDocument):
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrCompile, ew.Wrap(err))
	case extra != nil:
		return nil, fmt.Errorf("%w: %w", ErrCompile, errMultipleDocuments)
	}

	cr := &CompiledRule{
		Spec:    spec,
		Actions: make([]cel.Program, 0, len(spec.Actions)),
	}

	cr.Condition, err = e.env.CompileCondition(spec.Condition)
	if err != nil {
		path := yaml.NewPathBuilder().Root().Child("condition").Build()

		return nil, fmt.Errorf("%w: %w", ErrCompile,
			yaml.NewError(fmt.Errorf("condition: %w", err), yaml.WithPath(path), yaml.WithSource(raw)))
	}

	for i, action := range spec.Actions {
		program, err := e.env.Compile(action)
		if err != nil {
			path := yaml.NewPathBuilder().Root().Child("actions").Index(uint(i)).Build() //nolint:gosec // G115: index is non-negative.

			return nil, fmt.Errorf("%w: %w", ErrCompile,
				yaml.NewError(fmt.Errorf("action %d: %w", i, err), yaml.WithPath(path), yaml.WithSource(raw)))
		}

		cr.Actions = append(cr.Actions, program)
	}

	return cr, nil
}
