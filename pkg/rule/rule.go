package rule

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// DefaultExtensions are the file extensions recognized as rule files.
var DefaultExtensions = []string{".yml", ".yaml"}

// Spec is the content of a rule file. Condition and Actions are opaque to
// the catalog; they are compiled by the validation authority and executed by
// the evaluation engine.
type Spec struct {
	// Name is the name declared by the author.
	Name string `json:"name" jsonschema:"title=Name,minLength=1"`
	// Description is a human-readable summary of the rule.
	Description string `json:"description,omitempty" jsonschema:"title=Description"`
	// Condition is an expression that must evaluate to a boolean.
	Condition string `json:"condition" jsonschema:"title=Condition,minLength=1"`
	// Actions are expressions evaluated when the condition holds.
	Actions []string `json:"actions" jsonschema:"title=Actions,minItems=1"`
	// Priority orders rules for the evaluation engine, lower runs first.
	Priority int `json:"priority,omitempty" jsonschema:"title=Priority"`
}

// Definition is a validated rule, keyed in the catalog by Name.
type Definition struct {
	// LoadedAt is when the definition was loaded from disk.
	LoadedAt time.Time `json:"loadedAt"`
	// Name is the canonical name, derived from the source filename.
	Name string `json:"name"`
	// DeclaredName is the name as authored in the file.
	DeclaredName string `json:"declaredName"`
	// SourcePath is the file the definition was loaded from.
	SourcePath string `json:"sourcePath"`
	// Content is the verbatim file content.
	Content []byte `json:"-"`
	// Spec is the decoded body of the rule file. Spec.Name is replaced with
	// Name when the declared name does not match it.
	Spec Spec `json:"spec"`
}

// NameOverridden reports whether the declared name differed from the
// canonical name and was replaced.
func (d *Definition) NameOverridden() bool {
	return !SameName(d.DeclaredName, d.Name)
}

func (d *Definition) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.SourcePath)
}

// CanonicalName returns filename with its recognized extension removed.
// The extension match is case-insensitive. It returns false if filename does
// not have one of exts, or if nothing is left once the extension is removed.
func CanonicalName(filename string, exts []string) (string, bool) {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)

	if ext == "" || !slices.ContainsFunc(exts, func(e string) bool {
		return strings.EqualFold(e, ext)
	}) {
		return "", false
	}

	name := strings.TrimSuffix(base, ext)
	if name == "" || strings.HasPrefix(name, ".") {
		return "", false
	}

	return name, true
}

// SameName compares a declared name with a canonical name.
func SameName(declared, canonical string) bool {
	return strings.EqualFold(declared, canonical)
}
