package yaml

import (
	"bytes"
	"errors"
	"io"

	"github.com/goccy/go-yaml"
)

// ErrEmptyDocument is returned when the input contains no YAML document.
var ErrEmptyDocument = errors.New("empty document")

type Decoder struct {
	d *yaml.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		d: yaml.NewDecoder(r),
	}
}

// NewStrictDecoder creates a [Decoder] that rejects duplicate map keys and
// fields that are not present in the target struct.
func NewStrictDecoder(r io.Reader) *Decoder {
	return &Decoder{
		d: yaml.NewDecoder(r, yaml.Strict()),
	}
}

func (d *Decoder) Decode(v any) error {
	err := d.d.Decode(v)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return ErrEmptyDocument
	}

	var yamlErr yaml.Error
	if errors.As(err, &yamlErr) {
		return &Error{
			Err:   errors.New(yamlErr.GetMessage()),
			Token: yamlErr.GetToken(),
		}
	}

	//nolint:wrapcheck // Return the original error if it's not a [yaml.Error].
	return err
}

// Unmarshal decodes a single document from data into v. Errors are annotated
// with data as their source.
func Unmarshal(data []byte, v any) error {
	err := NewDecoder(bytes.NewReader(data)).Decode(v)
	if err != nil {
		return NewErrorWrapper(WithSource(data)).Wrap(err)
	}

	return nil
}
