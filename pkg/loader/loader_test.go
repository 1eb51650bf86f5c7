package loader_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulesync/pkg/engine"
	"github.com/macropower/rulesync/pkg/loader"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func ruleFor(name string) string {
	return "name: " + name + "\ncondition: \"true\"\nactions:\n  - \"'noop'\"\n"
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	loadedAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tcs := map[string]struct {
		files        map[string]string
		filename     string
		wantErr      error
		wantName     string
		wantDeclared string
		wantOverride bool
	}{
		"matching name": {
			files:        map[string]string{"Alpha.yml": ruleFor("Alpha")},
			filename:     "Alpha.yml",
			wantName:     "Alpha",
			wantDeclared: "Alpha",
		},
		"case-insensitive match keeps declared name": {
			files:        map[string]string{"Foo.yml": ruleFor("foo")},
			filename:     "Foo.yml",
			wantName:     "Foo",
			wantDeclared: "foo",
		},
		"mismatched name is overridden": {
			files:        map[string]string{"Foo.yml": ruleFor("bar")},
			filename:     "Foo.yml",
			wantName:     "Foo",
			wantDeclared: "bar",
			wantOverride: true,
		},
		"yaml extension": {
			files:        map[string]string{"gamma.YAML": ruleFor("gamma")},
			filename:     "gamma.YAML",
			wantName:     "gamma",
			wantDeclared: "gamma",
		},
		"full path is reduced to base name": {
			files:        map[string]string{"Alpha.yml": ruleFor("Alpha")},
			filename:     filepath.Join("elsewhere", "Alpha.yml"),
			wantName:     "Alpha",
			wantDeclared: "Alpha",
		},
		"unsupported extension": {
			files:    map[string]string{"notes.txt": "hello"},
			filename: "notes.txt",
			wantErr:  loader.ErrUnsupportedFile,
		},
		"missing file": {
			filename: "Ghost.yml",
			wantErr:  loader.ErrNotFound,
		},
		"malformed content": {
			files:    map[string]string{"Beta.yml": "name: [broken\n"},
			filename: "Beta.yml",
			wantErr:  loader.ErrParse,
		},
		"empty file": {
			files:    map[string]string{"Empty.yml": ""},
			filename: "Empty.yml",
			wantErr:  loader.ErrParse,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			for fn, content := range tc.files {
				writeFile(t, dir, fn, content)
			}

			l := loader.New(dir, engine.MustNew(), loader.WithClock(func() time.Time { return loadedAt }))

			def, err := l.Load(t.Context(), tc.filename)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, def)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantName, def.Name)
			assert.Equal(t, tc.wantDeclared, def.DeclaredName)
			assert.Equal(t, tc.wantOverride, def.NameOverridden())
			assert.Equal(t, loadedAt, def.LoadedAt)
			assert.Equal(t, filepath.Join(dir, filepath.Base(tc.filename)), def.SourcePath)
			assert.Equal(t, []string{"'noop'"}, def.Spec.Actions)
			assert.NotEmpty(t, def.Content)

			if tc.wantOverride {
				assert.Equal(t, tc.wantName, def.Spec.Name)
			} else {
				assert.Equal(t, tc.wantDeclared, def.Spec.Name)
			}
		})
	}
}

func TestLoader_Load_Directory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yml"), 0o750))

	l := loader.New(dir, engine.MustNew())

	_, err := l.Load(t.Context(), "nested.yml")
	require.ErrorIs(t, err, loader.ErrUnsupportedFile)
}

func TestLoader_Extensions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "Alpha.rule", ruleFor("Alpha"))
	writeFile(t, dir, "Beta.yml", ruleFor("Beta"))

	l := loader.New(dir, engine.MustNew(), loader.WithExtensions(".rule"))

	def, err := l.Load(t.Context(), "Alpha.rule")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", def.Name)

	_, err = l.Load(t.Context(), "Beta.yml")
	require.ErrorIs(t, err, loader.ErrUnsupportedFile)
}

func TestErrorClass(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "Beta.yml", "name: [broken\n")

	l := loader.New(dir, engine.MustNew())

	_, err := l.Load(t.Context(), "Beta.yml")
	assert.Equal(t, "parse", loader.ErrorClass(err))

	_, err = l.Load(t.Context(), "Ghost.yml")
	assert.Equal(t, "not_found", loader.ErrorClass(err))

	_, err = l.Load(t.Context(), "notes.md")
	assert.Equal(t, "unsupported", loader.ErrorClass(err))

	assert.Equal(t, "ok", loader.ErrorClass(nil))
}
