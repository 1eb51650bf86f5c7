// Package yaml wraps [github.com/goccy/go-yaml] for decoding rule and
// configuration files.
//
// Decoding and schema validation failures are returned as [*Error] values,
// which carry the offending token (or a [yaml.Path] into the document) so
// that diagnostics can point at the exact line of a rule file.
package yaml
