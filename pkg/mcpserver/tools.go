package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dd0wney/cluso-attackgraph/pkg/algorithms"
	"github.com/dd0wney/cluso-attackgraph/pkg/logging"
	"github.com/dd0wney/cluso-attackgraph/pkg/model"
	"github.com/dd0wney/cluso-attackgraph/pkg/tools"
	"github.com/dd0wney/cluso-attackgraph/pkg/validation"
)

type toolSpec struct {
	name        string
	title       string
	description string
	schema      map[string]any
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func idListProp(description string, maxItems int) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": description,
		"items":       map[string]any{"type": "string"},
		"maxItems":    maxItems,
	}
}

func tacticProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description, "pattern": `^TA\d{4}$`}
}

func specs() []toolSpec {
	return []toolSpec{
		{
			name:  tools.ToolSearch,
			title: "Search Knowledge Base",
			description: `Case-insensitive substring search over the names and descriptions of techniques, tactics, groups
and mitigations, plus group aliases. "*" or "" returns every entity.

EXAMPLE INPUTS:
• {"query": "injection"}
• {"query": "APT29"}`,
			schema: objectSchema(map[string]any{
				"query": map[string]any{"type": "string", "description": "Text to look for.", "maxLength": 256},
			}, "query"),
		},
		{
			name:        tools.ToolGetTechnique,
			title:       "Get Technique",
			description: `Returns a technique with its tactics, mitigations, parent, sub-techniques and the groups using it.`,
			schema: objectSchema(map[string]any{
				"technique_id": stringProp("ATT&CK technique id, e.g. T1055 or T1055.001."),
			}, "technique_id"),
		},
		{
			name:        tools.ToolListTactics,
			title:       "List Tactics",
			description: `Lists the loaded tactics in kill-chain order, Reconnaissance through Impact.`,
			schema:      objectSchema(map[string]any{}),
		},
		{
			name:        tools.ToolGetGroupTechniques,
			title:       "Get Group Techniques",
			description: `Returns a threat group and every technique it is recorded as using.`,
			schema: objectSchema(map[string]any{
				"group_id": stringProp("ATT&CK group id, e.g. G0016."),
			}, "group_id"),
		},
		{
			name:        tools.ToolGetTechniqueMitigations,
			title:       "Get Technique Mitigations",
			description: `Returns a technique and the mitigations recorded against it.`,
			schema: objectSchema(map[string]any{
				"technique_id": stringProp("ATT&CK technique id, e.g. T1003."),
			}, "technique_id"),
		},
		{
			name:  tools.ToolBuildAttackPath,
			title: "Build Attack Path",
			description: `Lays techniques over the kill chain from start_tactic to end_tactic, one stage per tactic.
With group_id only that group's techniques are placed; platform filters techniques by platform.
Reports covered stages, completeness (percent of stages with at least one technique) and the gap tactics.

EXAMPLE INPUTS:
• {"start_tactic": "TA0001", "end_tactic": "TA0004", "group_id": "G0016"}
• {"start_tactic": "TA0043", "end_tactic": "TA0040", "platform": "Windows"}`,
			schema: objectSchema(map[string]any{
				"start_tactic": tacticProp("First tactic of the path."),
				"end_tactic":   tacticProp("Last tactic of the path; must not precede start_tactic."),
				"group_id":     stringProp("Restrict to techniques used by this group."),
				"platform":     stringProp("Restrict to techniques for this platform (case-insensitive)."),
			}, "start_tactic", "end_tactic"),
		},
		{
			name:  tools.ToolAnalyzeCoverageGaps,
			title: "Analyze Coverage Gaps",
			description: `Finds the techniques used by the given groups that have no mitigation.
technique_list replaces the groups' techniques as the set analysed; exclude_mitigations treats those
mitigations as not deployed. Gaps are sorted by how many of the groups use them.

EXAMPLE INPUTS:
• {"threat_groups": ["G0016", "G0007"]}
• {"threat_groups": ["G0032"], "exclude_mitigations": ["M1040"]}`,
			schema: objectSchema(map[string]any{
				"threat_groups":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "minItems": 1, "maxItems": 100, "description": "Group ids whose techniques are analysed."},
				"technique_list":      idListProp("Explicit technique ids to analyse instead.", 2000),
				"exclude_mitigations": idListProp("Mitigation ids to ignore.", 500),
			}, "threat_groups"),
		},
		{
			name:  tools.ToolDetectRelationships,
			title: "Detect Technique Relationships",
			description: `Breadth-first walk of the relationship graph from a technique, grouped into attribution,
detection, mitigation, hierarchy and other. Sub-techniques are nested under their parent.

EXAMPLE INPUTS:
• {"technique_id": "T1055"}
• {"technique_id": "T1486", "depth": 3, "relationship_types": ["uses", "mitigates"]}`,
			schema: objectSchema(map[string]any{
				"technique_id":       stringProp("Technique to start from."),
				"relationship_types": idListProp("Only follow these relationship types.", 16),
				"depth": map[string]any{
					"type":        "integer",
					"description": "Maximum hops from the technique.",
					"default":     algorithms.DefaultTraversalDepth,
					"minimum":     validation.MinDepth,
					"maximum":     validation.MaxDepth,
				},
			}, "technique_id"),
		},
		{
			name:        tools.ToolGetLoadStatus,
			title:       "Get Load Status",
			description: `Reports whether the knowledge base is loaded, its snapshot id, entity counts and load warnings.`,
			schema:      objectSchema(map[string]any{}),
		},
	}
}

// registerTools adds every tool operation to the MCP server
func (s *Server) registerTools() {
	for _, spec := range specs() {
		s.mcp.AddTool(
			&mcp.Tool{
				Name:        spec.name,
				Title:       spec.title,
				Description: spec.description,
				InputSchema: spec.schema,
				Annotations: &mcp.ToolAnnotations{
					Title:          spec.title,
					ReadOnlyHint:   true,
					IdempotentHint: true,
					OpenWorldHint:  boolPtr(false),
				},
			},
			s.handler(spec.name),
		)
	}
}

func (s *Server) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := s.tools.Call(ctx, name, req.Params.Arguments)
		if err != nil {
			te := tools.AsError(err)
			if te.Kind == model.KindInternal {
				s.logger.Error("tool failed", logging.Tool(name), logging.Error(te))
			}
			return errorResult(te), nil
		}
		return jsonResult(res)
	}
}
