package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrRuleNotFound is returned when no rule has the requested name.
var ErrRuleNotFound = errors.New("rule not found")

// GetRuleParams defines parameters for the get_rule tool.
type GetRuleParams struct {
	Name string `json:"name" jsonschema:"the canonical name of the rule, as returned by list_rules"`
}

// GetRuleResult contains a single rule definition.
type GetRuleResult struct {
	Name         string   `json:"name"`
	DeclaredName string   `json:"declaredName"`
	Description  string   `json:"description,omitempty"`
	Condition    string   `json:"condition"`
	SourcePath   string   `json:"sourcePath"`
	LoadedAt     string   `json:"loadedAt"`
	Content      string   `json:"content"`
	Actions      []string `json:"actions"`
	Priority     int      `json:"priority"`
}

func (s *Server) handleGetRule(
	_ context.Context,
	_ *mcp.CallToolRequest,
	params GetRuleParams,
) (*mcp.CallToolResult, GetRuleResult, error) {
	def, ok := s.rules.Get(params.Name)
	if !ok {
		return nil, GetRuleResult{}, fmt.Errorf("%w: %q", ErrRuleNotFound, params.Name)
	}

	result := GetRuleResult{
		Name:         def.Name,
		DeclaredName: def.DeclaredName,
		Description:  def.Spec.Description,
		Condition:    def.Spec.Condition,
		SourcePath:   def.SourcePath,
		LoadedAt:     def.LoadedAt.Format(time.RFC3339),
		Content:      string(def.Content),
		Actions:      def.Spec.Actions,
		Priority:     def.Spec.Priority,
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: result.Content},
		},
	}, result, nil
}
