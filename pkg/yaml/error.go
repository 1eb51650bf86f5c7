package yaml

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
	"github.com/goccy/go-yaml/printer"
	"github.com/goccy/go-yaml/token"
)

func NewPathBuilder() *yaml.PathBuilder {
	return &yaml.PathBuilder{}
}

type ErrorWrapper struct {
	Opts []ErrorOpt
}

func NewErrorWrapper(opts ...ErrorOpt) *ErrorWrapper {
	return &ErrorWrapper{
		Opts: opts,
	}
}

// Wrap wraps an error with additional context for [Error]s.
// If the error isn't an [Error], it returns the original error unmodified.
func (ew *ErrorWrapper) Wrap(err error, opts ...ErrorOpt) error {
	if err == nil {
		return nil
	}

	var yamlErr *Error
	if errors.As(err, &yamlErr) {
		for _, opt := range ew.Opts {
			opt(yamlErr)
		}

		for _, opt := range opts {
			opt(yamlErr)
		}

		return yamlErr
	}

	return err
}

// Error represents a YAML error. It includes the original error, and either
// the [*token.Token] where the error occurred or a [*yaml.Path] that can be
// resolved against Source.
type Error struct {
	Err    error
	Path   *yaml.Path
	Token  *token.Token
	Source []byte
}

func NewError(err error, opts ...ErrorOpt) *Error {
	e := &Error{Err: err}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

type ErrorOpt func(e *Error)

func WithPath(path *yaml.Path) ErrorOpt {
	return func(e *Error) {
		e.Path = path
	}
}

func WithToken(tk *token.Token) ErrorOpt {
	return func(e *Error) {
		e.Token = tk
	}
}

func WithSource(source []byte) ErrorOpt {
	return func(e *Error) {
		e.Source = source
	}
}

func (e Error) Error() string {
	if e.Err == nil {
		return ""
	}
	if e.Path == nil && e.Token == nil {
		return e.Err.Error()
	}

	msg, err := e.annotateSource()
	if err != nil {
		if e.Path != nil {
			return fmt.Sprintf("error at %s: %v", e.Path.String(), e.Err)
		}

		return e.Err.Error()
	}

	return msg
}

func (e Error) Unwrap() error {
	return e.Err
}

// Line returns the 1-based line of the error, or 0 if it is unknown.
func (e Error) Line() int {
	tk, err := e.token()
	if err != nil || tk == nil {
		return 0
	}

	return tk.Position.Line
}

func (e Error) token() (*token.Token, error) {
	if e.Token != nil {
		return e.Token, nil
	}
	if e.Path == nil || len(e.Source) == 0 {
		return nil, errors.New("no source to resolve path")
	}

	return getTokenFromPath(e.Source, e.Path)
}

func (e Error) annotateSource() (string, error) {
	tk, err := e.token()
	if err != nil {
		return "", err
	}

	var pp printer.Printer

	src := strings.TrimRight(pp.PrintErrorToken(tk, false), "\n")

	return fmt.Sprintf("[%d:%d] %v:\n%s", tk.Position.Line, tk.Position.Column, e.Err, src), nil
}

func getTokenFromPath(source []byte, path *yaml.Path) (*token.Token, error) {
	file, err := parser.ParseBytes(source, 0)
	if err != nil {
		return nil, fmt.Errorf("parse source bytes into ast.File: %w", err)
	}

	node, err := path.FilterFile(file)
	if err != nil {
		return nil, fmt.Errorf("filter from ast.File by YAMLPath: %w", err)
	}

	// Point at the KEY rather than the value when the path names a field.
	keyToken := findKeyToken(file, path)
	if keyToken != nil {
		return keyToken, nil
	}

	return node.GetToken(), nil
}

// findKeyToken attempts to find the KEY token for the given path by looking
// in the parent node.
func findKeyToken(file *ast.File, path *yaml.Path) *token.Token {
	pathStr := path.String()

	lastDot := strings.LastIndex(pathStr, ".")
	lastBracket := strings.LastIndex(pathStr, "[")

	if lastDot == -1 && lastBracket == -1 {
		return nil
	}

	if lastDot <= lastBracket {
		return nil
	}

	parentPath, err := yaml.PathString(pathStr[:lastDot])
	if err != nil {
		return nil
	}

	parentNode, err := parentPath.FilterFile(file)
	if err != nil {
		return nil
	}

	lastSegment := pathStr[lastDot+1:]

	if mapping, ok := parentNode.(*ast.MappingNode); ok {
		for _, val := range mapping.Values {
			if val.Key.String() == lastSegment {
				return val.Key.GetToken()
			}
		}
	}

	return nil
}
