package expr

import (
	"path"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
)

type lib struct{}

func (lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		ext.Math(),
		ext.Strings(),
		ext.Lists(),
		ext.Sets(),

		cel.Variable("facts", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("rule", cel.StringType),

		// `globMatch` reports whether the string matches a shell glob pattern.
		// Example: globMatch("java*", facts.process).
		cel.Function("globMatch",
			cel.Overload("glob_match_string_string", []*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
				cel.BinaryBinding(func(pattern, value ref.Val) ref.Val {
					patternValue, ok := pattern.(types.String)
					if !ok {
						return types.NewErr("globMatch: invalid pattern value")
					}

					strValue, ok := value.(types.String)
					if !ok {
						return types.NewErr("globMatch: invalid string value")
					}

					matched, err := path.Match(string(patternValue), string(strValue))
					if err != nil {
						return types.NewErr("globMatch: %v", err)
					}

					return types.Bool(matched)
				}),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}
