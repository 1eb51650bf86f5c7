package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ListRulesParams defines parameters for the list_rules tool.
type ListRulesParams struct{}

// RuleSummary describes one catalog entry.
type RuleSummary struct {
	Name         string `json:"name"`
	DeclaredName string `json:"declaredName,omitempty"`
	Description  string `json:"description,omitempty"`
	SourcePath   string `json:"sourcePath"`
	Priority     int    `json:"priority"`
}

// ListRulesResult contains the result of listing rules.
type ListRulesResult struct {
	Message   string        `json:"message"`
	Rules     []RuleSummary `json:"rules"`
	Revision  uint64        `json:"revision"`
	RuleCount int           `json:"ruleCount"`
}

func (s *Server) handleListRules(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ListRulesParams,
) (*mcp.CallToolResult, ListRulesResult, error) {
	// Read the revision first, so a concurrent change is reported by the
	// next call rather than missed.
	result := ListRulesResult{
		Revision: s.rules.Revision(),
		Rules:    []RuleSummary{},
	}

	for _, def := range s.rules.Snapshot() {
		summary := RuleSummary{
			Name:        def.Name,
			Description: def.Spec.Description,
			SourcePath:  def.SourcePath,
			Priority:    def.Spec.Priority,
		}
		if def.NameOverridden() {
			summary.DeclaredName = def.DeclaredName
		}

		result.Rules = append(result.Rules, summary)
	}

	result.RuleCount = len(result.Rules)
	result.Message = fmt.Sprintf("Found %d rules.", result.RuleCount)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: result.Message},
		},
	}, result, nil
}
