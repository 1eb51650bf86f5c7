package yaml_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulesync/pkg/yaml"
)

type testDoc struct {
	Name  string   `json:"name"            jsonschema:"minLength=1"`
	Tags  []string `json:"tags,omitempty"`
	Count int      `json:"count,omitempty"`
}

func TestNewValidator(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		errMsg     string
		schemaData []byte
		wantErr    bool
	}{
		"valid schema": {
			schemaData: []byte(`{
				"type": "object",
				"properties": {"name": {"type": "string"}},
				"required": ["name"]
			}`),
		},
		"invalid json": {
			schemaData: []byte(`{"invalid": json}`),
			wantErr:    true,
			errMsg:     "unmarshal schema",
		},
		"invalid schema": {
			schemaData: []byte(`{"type": "invalid_type"}`),
			wantErr:    true,
			errMsg:     "compile schema",
		},
		"empty schema": {
			schemaData: []byte(`{}`),
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			validator, err := yaml.NewValidator("test", tc.schemaData)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
				assert.Nil(t, validator)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, validator)
		})
	}
}

func TestValidatorFor_Validate(t *testing.T) {
	t.Parallel()

	validator, err := yaml.NewValidatorFor("test.json", &testDoc{})
	require.NoError(t, err)

	tcs := map[string]struct {
		data         any
		expectedPath string
		wantErr      bool
	}{
		"valid": {
			data: map[string]any{"name": "a", "tags": []any{"x"}, "count": 2},
		},
		"missing required field": {
			data:         map[string]any{"tags": []any{"x"}},
			wantErr:      true,
			expectedPath: "$",
		},
		"wrong type": {
			data:         map[string]any{"name": 5},
			wantErr:      true,
			expectedPath: "$.name",
		},
		"invalid array item": {
			data:         map[string]any{"name": "a", "tags": []any{"x", 1}},
			wantErr:      true,
			expectedPath: "$.tags[1]",
		},
		"unknown field": {
			data:         map[string]any{"name": "a", "extra": true},
			wantErr:      true,
			expectedPath: "$",
		},
		"empty name": {
			data:         map[string]any{"name": ""},
			wantErr:      true,
			expectedPath: "$.name",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := validator.Validate(tc.data)
			if !tc.wantErr {
				require.NoError(t, err)

				return
			}

			var yamlErr *yaml.Error
			require.ErrorAs(t, err, &yamlErr)
			require.NotNil(t, yamlErr.Path)
			assert.Equal(t, tc.expectedPath, yamlErr.Path.String())
		})
	}
}

func TestReflectSchema(t *testing.T) {
	t.Parallel()

	b, err := yaml.ReflectSchema(&testDoc{})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"required"`)
	assert.Contains(t, string(b), `"name"`)
}

func TestError_Error(t *testing.T) {
	t.Parallel()

	src := []byte("name: a\ncount: nope\n")

	tcs := map[string]struct {
		err      yaml.Error
		contains []string
	}{
		"plain": {
			err:      yaml.Error{Err: errors.New("boom")},
			contains: []string{"boom"},
		},
		"path without source": {
			err: yaml.Error{
				Err:  errors.New("value is required"),
				Path: yaml.NewPathBuilder().Root().Child("field").Build(),
			},
			contains: []string{"error at $.field: value is required"},
		},
		"path with source": {
			err: yaml.Error{
				Err:    errors.New("expected integer"),
				Path:   yaml.NewPathBuilder().Root().Child("count").Build(),
				Source: src,
			},
			contains: []string{"[2:1] expected integer", "count"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := tc.err.Error()
			for _, want := range tc.contains {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestUnmarshal(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		want    testDoc
		input   string
		wantErr error
	}{
		"valid": {
			input: "name: a\ntags: [x, y]\n",
			want:  testDoc{Name: "a", Tags: []string{"x", "y"}},
		},
		"empty": {
			input:   "",
			wantErr: yaml.ErrEmptyDocument,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var got testDoc

			err := yaml.Unmarshal([]byte(tc.input), &got)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestUnmarshal_SyntaxError(t *testing.T) {
	t.Parallel()

	var got map[string]any

	err := yaml.Unmarshal([]byte("name: [unclosed\n"), &got)
	require.Error(t, err)

	var yamlErr *yaml.Error
	require.ErrorAs(t, err, &yamlErr)
	assert.Positive(t, yamlErr.Line())
}
