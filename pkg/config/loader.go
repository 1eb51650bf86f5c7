package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/macropower/rulesync/pkg/yaml"
)

// Validator validates configuration data against a schema.
type Validator interface {
	Validate(data any) error
}

// Loader validates and decodes configuration data.
type Loader struct {
	validator Validator
	yamlError *yaml.ErrorWrapper
	data      []byte
}

// LoaderOpt configures a [Loader].
type LoaderOpt func(*Loader)

// WithValidator sets a custom validator.
func WithValidator(v Validator) LoaderOpt {
	return func(l *Loader) {
		l.validator = v
	}
}

func NewLoaderFromBytes(data []byte, opts ...LoaderOpt) *Loader {
	l := &Loader{
		validator: DefaultValidator,
		data:      data,
		yamlError: yaml.NewErrorWrapper(yaml.WithSource(data)),
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

func NewLoaderFromFile(path string, opts ...LoaderOpt) (*Loader, error) {
	data, err := readConfig(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return NewLoaderFromBytes(data, opts...), nil
}

// Validate validates the configuration data against the schema without
// decoding it into a [Config].
func (l *Loader) Validate() error {
	var anyConfig any

	err := yaml.NewDecoder(bytes.NewReader(l.data)).Decode(&anyConfig)
	if err != nil {
		return l.yamlError.Wrap(err)
	}

	if l.validator != nil {
		err = l.validator.Validate(anyConfig)
		if err != nil {
			return l.yamlError.Wrap(err)
		}
	}

	return nil
}

// Load validates and decodes the configuration, then applies defaults.
func (l *Loader) Load() (*Config, error) {
	err := l.Validate()
	if err != nil {
		return nil, err
	}

	c := &Config{}

	err = yaml.NewStrictDecoder(bytes.NewReader(l.data)).Decode(c)
	if err != nil {
		return nil, l.yamlError.Wrap(err)
	}

	c.EnsureDefaults()

	err = c.Validate()
	if err != nil {
		return nil, err
	}

	return c, nil
}

func readConfig(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: %w: path is a directory", path, os.ErrInvalid)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}
