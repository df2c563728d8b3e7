package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dd0wney/cluso-attackgraph/pkg/model"
)

// Names lists every tool in registration order
func Names() []string {
	return []string{
		ToolSearch,
		ToolGetTechnique,
		ToolListTactics,
		ToolGetGroupTechniques,
		ToolGetTechniqueMitigations,
		ToolBuildAttackPath,
		ToolAnalyzeCoverageGaps,
		ToolDetectRelationships,
		ToolGetLoadStatus,
	}
}

// Call runs the named tool with JSON-encoded arguments. Empty arguments are
// treated as an empty object. The error is always nil or an *Error.
func (s *Service) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	switch name {
	case ToolSearch:
		return call(ctx, name, args, s.Search)
	case ToolGetTechnique:
		return call(ctx, name, args, s.GetTechnique)
	case ToolListTactics:
		return callNoArgs(ctx, s.ListTactics)
	case ToolGetGroupTechniques:
		return call(ctx, name, args, s.GetGroupTechniques)
	case ToolGetTechniqueMitigations:
		return call(ctx, name, args, s.GetTechniqueMitigations)
	case ToolBuildAttackPath:
		return call(ctx, name, args, s.BuildAttackPath)
	case ToolAnalyzeCoverageGaps:
		return call(ctx, name, args, s.AnalyzeCoverageGaps)
	case ToolDetectRelationships:
		return call(ctx, name, args, s.DetectTechniqueRelationships)
	case ToolGetLoadStatus:
		return callNoArgs(ctx, s.GetLoadStatus)
	default:
		return nil, AsError(model.InvalidParameterError("call", "name", fmt.Sprintf("unknown tool %q", name)))
	}
}

func call[Req any, Res any](ctx context.Context, name string, args json.RawMessage, fn func(context.Context, Req) (Res, error)) (any, error) {
	var req Req
	if err := decodeArgs(name, args, &req); err != nil {
		return nil, AsError(err)
	}
	res, err := fn(ctx, req)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func callNoArgs[Res any](ctx context.Context, fn func(context.Context) (Res, error)) (any, error) {
	res, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func decodeArgs(name string, args json.RawMessage, dst any) error {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		return model.InvalidParameterError(name, "arguments", "malformed JSON: "+err.Error())
	}
	return nil
}
