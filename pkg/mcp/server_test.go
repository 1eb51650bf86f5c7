package mcp_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/rulesync/pkg/catalog"
	"github.com/macropower/rulesync/pkg/mcp"
	"github.com/macropower/rulesync/pkg/rule"
)

func newCatalog() *catalog.Catalog {
	cat := catalog.New()
	cat.Upsert(&rule.Definition{
		LoadedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Name:         "Foo",
		DeclaredName: "bar",
		SourcePath:   "Rules/Foo.yml",
		Content:      []byte("name: bar\ncondition: \"true\"\nactions: [\"1\"]\n"),
		Spec: rule.Spec{
			Name:      "Foo",
			Condition: "true",
			Actions:   []string{"1"},
		},
	})
	cat.Upsert(&rule.Definition{
		Name:         "Alpha",
		DeclaredName: "alpha",
		SourcePath:   "Rules/Alpha.yml",
		Spec: rule.Spec{
			Name:        "alpha",
			Description: "high cpu",
			Condition:   "facts.cpu > 0.9",
			Actions:     []string{"'scale-up'"},
			Priority:    1,
		},
	})

	return cat
}

func connect(t *testing.T, rules catalog.Reader) *sdk.ClientSession {
	t.Helper()

	server := mcp.NewServer("", rules)
	serverTransport, clientTransport := sdk.NewInMemoryTransports()

	serverSession, err := server.Server().Connect(t.Context(), serverTransport, nil)
	require.NoError(t, err)

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	session, err := client.Connect(t.Context(), clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, session.Close())
		assert.NoError(t, serverSession.Wait())
	})

	return session
}

func decode[T any](t *testing.T, res *sdk.CallToolResult) T {
	t.Helper()

	var out T

	data, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))

	return out
}

func TestServer_ListTools(t *testing.T) {
	t.Parallel()

	session := connect(t, newCatalog())

	res, err := session.ListTools(t.Context(), &sdk.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}

	assert.ElementsMatch(t, []string{"list_rules", "get_rule"}, names)
}

func TestServer_ListRules(t *testing.T) {
	t.Parallel()

	cat := newCatalog()
	session := connect(t, cat)

	res, err := session.CallTool(t.Context(), &sdk.CallToolParams{
		Name:      "list_rules",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	got := decode[mcp.ListRulesResult](t, res)
	assert.Equal(t, 2, got.RuleCount)
	assert.Equal(t, "Found 2 rules.", got.Message)
	assert.Equal(t, cat.Revision(), got.Revision)
	require.Len(t, got.Rules, 2)

	assert.Equal(t, mcp.RuleSummary{
		Name:        "Alpha",
		Description: "high cpu",
		SourcePath:  "Rules/Alpha.yml",
		Priority:    1,
	}, got.Rules[0])
	assert.Equal(t, "Foo", got.Rules[1].Name)
	assert.Equal(t, "bar", got.Rules[1].DeclaredName)
}

func TestServer_ListRules_Empty(t *testing.T) {
	t.Parallel()

	session := connect(t, catalog.New())

	res, err := session.CallTool(t.Context(), &sdk.CallToolParams{
		Name:      "list_rules",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)

	got := decode[mcp.ListRulesResult](t, res)
	assert.Equal(t, 0, got.RuleCount)
	assert.Empty(t, got.Rules)
}

func TestServer_GetRule(t *testing.T) {
	t.Parallel()

	session := connect(t, newCatalog())

	tcs := map[string]struct {
		name    string
		want    mcp.GetRuleResult
		wantErr bool
	}{
		"overridden name": {
			name: "Foo",
			want: mcp.GetRuleResult{
				Name:         "Foo",
				DeclaredName: "bar",
				Condition:    "true",
				SourcePath:   "Rules/Foo.yml",
				LoadedAt:     "2024-05-01T12:00:00Z",
				Content:      "name: bar\ncondition: \"true\"\nactions: [\"1\"]\n",
				Actions:      []string{"1"},
			},
		},
		"declared name is not a key": {
			name:    "bar",
			wantErr: true,
		},
		"unknown": {
			name:    "Nope",
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			res, err := session.CallTool(t.Context(), &sdk.CallToolParams{
				Name:      "get_rule",
				Arguments: map[string]any{"name": tc.name},
			})
			require.NoError(t, err)

			if tc.wantErr {
				assert.True(t, res.IsError)

				return
			}

			require.False(t, res.IsError)
			assert.Equal(t, tc.want, decode[mcp.GetRuleResult](t, res))
		})
	}
}
