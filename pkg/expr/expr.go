package expr

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// ErrNotBoolean is returned when a condition does not evaluate to a boolean.
var ErrNotBoolean = errors.New("expression must evaluate to bool")

// Protect CEL environment creation and compilation from concurrent access.
var celMutex sync.Mutex

// Environment provides a thread-safe wrapper around a [*cel.Env].
type Environment struct {
	env *cel.Env
}

// NewEnvironment creates a new [Environment].
func NewEnvironment(opts ...cel.EnvOption) (*Environment, error) {
	env, err := createEnvironment(opts...)
	if err != nil {
		return nil, err
	}

	return &Environment{env: env}, nil
}

// MustNewEnvironment creates a new [Environment] and panics on error.
func MustNewEnvironment(opts ...cel.EnvOption) *Environment {
	env, err := NewEnvironment(opts...)
	if err != nil {
		panic(err)
	}

	return env
}

func createEnvironment(opts ...cel.EnvOption) (*cel.Env, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	opts = append(opts, cel.Lib(&lib{}))

	celEnv, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return celEnv, nil
}

// Compile compiles a CEL expression and returns a program.
//
//nolint:ireturn // Following CEL's function signature.
func (e *Environment) Compile(expression string) (cel.Program, error) {
	program, _, err := e.compile(expression)

	return program, err
}

// CompileCondition compiles a CEL expression that must evaluate to a
// boolean. Expressions typed as dyn are accepted, since their result type is
// only known at evaluation time.
//
//nolint:ireturn // Following CEL's function signature.
func (e *Environment) CompileCondition(expression string) (cel.Program, error) {
	program, outputType, err := e.compile(expression)
	if err != nil {
		return nil, err
	}

	switch outputType {
	case "bool", "dyn":
		return program, nil
	}

	return nil, fmt.Errorf("%w, got %s", ErrNotBoolean, outputType)
}

//nolint:ireturn // Following CEL's function signature.
func (e *Environment) compile(expression string) (cel.Program, string, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, "", fmt.Errorf("compile expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, "", fmt.Errorf("create program: %w", err)
	}

	return program, ast.OutputType().String(), nil
}
