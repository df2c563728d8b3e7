package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Resource URIs
const (
	ResourceStatus  = "attackgraph://status"
	ResourceTactics = "attackgraph://tactics"
)

// registerResources exposes read-only views that clients may cache
func (s *Server) registerResources() {
	s.addJSONResource(ResourceStatus, "Knowledge Base Status",
		"Load state, snapshot id, entity counts and the first load warnings.",
		func(ctx context.Context) (any, error) { return s.tools.GetLoadStatus(ctx) })

	s.addJSONResource(ResourceTactics, "ATT&CK Tactics",
		"Loaded tactics in kill-chain order.",
		func(ctx context.Context) (any, error) { return s.tools.ListTactics(ctx) })
}

func (s *Server) addJSONResource(uri, name, description string, read func(context.Context) (any, error)) {
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         uri,
			Name:        name,
			Description: description,
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			v, err := read(ctx)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", uri, err)
			}
			data, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("marshaling %s: %w", uri, err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: uri, MIMEType: "application/json", Text: string(data)},
				},
			}, nil
		},
	)
}
