// Package mcp exposes a read-only view of the rule catalog as MCP tools.
package mcp

const (
	name         = "rulesync"
	instructions = `MCP Server 'rulesync' exposes the live catalog of validated rules loaded from a watched directory.

Rules are keyed by their canonical name, which is always the rule file's name without its extension.
Rule files that fail validation are not in the catalog.

Workflow:
1. Use 'list_rules' to see every rule with its name, source file and summary.
2. Use 'get_rule' with an EXACT name from the 'list_rules' output to read the full definition.

These tools are read-only. To change a rule, edit its file; the catalog updates automatically.
`
)
