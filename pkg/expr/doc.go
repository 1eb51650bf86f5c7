// Package expr provides the CEL (Common Expression Language) environment that
// rule conditions and actions are compiled against.
//
// Expressions have access to variables:
//   - `facts` (map<string, dyn>): The facts the evaluation engine is run with
//   - `rule` (string): The canonical name of the rule being evaluated
//
// In addition to the CEL standard library and the strings, lists, math and
// sets extensions, the environment provides:
//   - globMatch(pattern, string): Reports whether string matches a shell glob
package expr
