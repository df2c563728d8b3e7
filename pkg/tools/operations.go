package tools

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dd0wney/cluso-attackgraph/pkg/algorithms"
	"github.com/dd0wney/cluso-attackgraph/pkg/loader"
	"github.com/dd0wney/cluso-attackgraph/pkg/model"
	"github.com/dd0wney/cluso-attackgraph/pkg/query"
	"github.com/dd0wney/cluso-attackgraph/pkg/store"
	"github.com/dd0wney/cluso-attackgraph/pkg/validation"
)

// Tool names
const (
	ToolSearch                  = "search"
	ToolGetTechnique            = "get_technique"
	ToolListTactics             = "list_tactics"
	ToolGetGroupTechniques      = "get_group_techniques"
	ToolGetTechniqueMitigations = "get_technique_mitigations"
	ToolBuildAttackPath         = "build_attack_path"
	ToolAnalyzeCoverageGaps     = "analyze_coverage_gaps"
	ToolDetectRelationships     = "detect_technique_relationships"
	ToolGetLoadStatus           = "get_load_status"
)

// MaxStatusWarnings caps the warnings listed by get_load_status
const MaxStatusWarnings = 20

// SearchResult is the result of search
type SearchResult struct {
	Query   string      `json:"query"`
	Count   int         `json:"count"`
	Results []store.Hit `json:"results"`
}

// TacticList is the result of list_tactics
type TacticList struct {
	Count   int            `json:"count"`
	Tactics []model.Tactic `json:"tactics"`
}

// GroupTechniques is the result of get_group_techniques
type GroupTechniques struct {
	Group      model.Group       `json:"group"`
	Count      int               `json:"count"`
	Techniques []model.Technique `json:"techniques"`
}

// TechniqueMitigations is the result of get_technique_mitigations
type TechniqueMitigations struct {
	Technique   model.Technique    `json:"technique"`
	Count       int                `json:"count"`
	Mitigations []model.Mitigation `json:"mitigations"`
}

// LoadStatus is the result of get_load_status
type LoadStatus struct {
	State                loader.State    `json:"state"`
	Source               string          `json:"source"`
	SnapshotID           string          `json:"snapshot_id,omitempty"`
	LoadedAt             *time.Time      `json:"loaded_at,omitempty"`
	LastError            string          `json:"last_error,omitempty"`
	Loads                int             `json:"loads"`
	Failures             int             `json:"failures"`
	Counts               store.Counts    `json:"counts"`
	Relationships        int             `json:"relationships"`
	DroppedRelationships int             `json:"dropped_relationships"`
	WarningCount         int             `json:"warning_count"`
	Warnings             []model.Warning `json:"warnings"`
}

// Search finds techniques, groups and mitigations by substring
func (s *Service) Search(ctx context.Context, req validation.SearchRequest) (*SearchResult, error) {
	return invoke(ctx, s, ToolSearch, func(ctx context.Context) (*SearchResult, error) {
		if err := validation.Struct(ToolSearch, req); err != nil {
			return nil, err
		}
		snap, err := s.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		hits := query.New(snap).Search(*req.Query)
		return &SearchResult{Query: *req.Query, Count: len(hits), Results: hits}, nil
	})
}

// GetTechnique returns a technique with its resolved associations
func (s *Service) GetTechnique(ctx context.Context, req validation.TechniqueRequest) (*query.TechniqueDetail, error) {
	return invoke(ctx, s, ToolGetTechnique, func(ctx context.Context) (*query.TechniqueDetail, error) {
		if err := validation.Struct(ToolGetTechnique, req); err != nil {
			return nil, err
		}
		snap, err := s.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return query.New(snap).GetTechnique(req.TechniqueID)
	})
}

// ListTactics returns every loaded tactic in kill-chain order
func (s *Service) ListTactics(ctx context.Context) (*TacticList, error) {
	return invoke(ctx, s, ToolListTactics, func(ctx context.Context) (*TacticList, error) {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		tactics := query.New(snap).ListTactics()
		return &TacticList{Count: len(tactics), Tactics: tactics}, nil
	})
}

// GetGroupTechniques returns a group and the techniques it uses
func (s *Service) GetGroupTechniques(ctx context.Context, req validation.GroupRequest) (*GroupTechniques, error) {
	return invoke(ctx, s, ToolGetGroupTechniques, func(ctx context.Context) (*GroupTechniques, error) {
		if err := validation.Struct(ToolGetGroupTechniques, req); err != nil {
			return nil, err
		}
		snap, err := s.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		engine := query.New(snap)
		group, err := engine.Group(req.GroupID)
		if err != nil {
			return nil, err
		}
		techniques, err := engine.GroupTechniques(req.GroupID)
		if err != nil {
			return nil, err
		}
		return &GroupTechniques{Group: group, Count: len(techniques), Techniques: techniques}, nil
	})
}

// GetTechniqueMitigations returns a technique and the mitigations for it
func (s *Service) GetTechniqueMitigations(ctx context.Context, req validation.TechniqueRequest) (*TechniqueMitigations, error) {
	return invoke(ctx, s, ToolGetTechniqueMitigations, func(ctx context.Context) (*TechniqueMitigations, error) {
		if err := validation.Struct(ToolGetTechniqueMitigations, req); err != nil {
			return nil, err
		}
		snap, err := s.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		engine := query.New(snap)
		technique, err := engine.Technique(req.TechniqueID)
		if err != nil {
			return nil, err
		}
		mitigations, err := engine.TechniqueMitigations(req.TechniqueID)
		if err != nil {
			return nil, err
		}
		return &TechniqueMitigations{Technique: technique, Count: len(mitigations), Mitigations: mitigations}, nil
	})
}

// BuildAttackPath lays out the kill chain between two tactics
func (s *Service) BuildAttackPath(ctx context.Context, req validation.AttackPathRequest) (*algorithms.AttackPath, error) {
	return invoke(ctx, s, ToolBuildAttackPath, func(ctx context.Context) (*algorithms.AttackPath, error) {
		if err := validation.Struct(ToolBuildAttackPath, req); err != nil {
			return nil, err
		}
		snap, err := s.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		path, err := algorithms.BuildAttackPath(snap, algorithms.AttackPathOptions{
			StartTactic: req.StartTactic,
			EndTactic:   req.EndTactic,
			GroupID:     req.GroupID,
			Platform:    req.Platform,
		})
		if err != nil {
			return nil, err
		}
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.Int("attack_path.stages", path.TotalStages),
			attribute.Float64("attack_path.completeness", path.Completeness),
		)
		return path, nil
	})
}

// AnalyzeCoverageGaps reports which techniques of the given groups lack mitigations
func (s *Service) AnalyzeCoverageGaps(ctx context.Context, req validation.CoverageRequest) (*algorithms.CoverageReport, error) {
	return invoke(ctx, s, ToolAnalyzeCoverageGaps, func(ctx context.Context) (*algorithms.CoverageReport, error) {
		if err := validation.Struct(ToolAnalyzeCoverageGaps, req); err != nil {
			return nil, err
		}
		snap, err := s.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		report, err := algorithms.AnalyzeCoverage(snap, algorithms.CoverageOptions{
			GroupIDs:           req.ThreatGroups,
			TechniqueIDs:       req.TechniqueList,
			ExcludeMitigations: req.ExcludeMitigations,
		})
		if err != nil {
			return nil, err
		}
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.Int("coverage.techniques", report.TotalTechniques),
			attribute.Int("coverage.gaps", report.GapCount),
		)
		return report, nil
	})
}

// DetectTechniqueRelationships walks the relationship graph around a technique
func (s *Service) DetectTechniqueRelationships(ctx context.Context, req validation.RelationshipsRequest) (*algorithms.RelationshipTree, error) {
	return invoke(ctx, s, ToolDetectRelationships, func(ctx context.Context) (*algorithms.RelationshipTree, error) {
		if err := validation.Struct(ToolDetectRelationships, req); err != nil {
			return nil, err
		}
		snap, err := s.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		tree, err := algorithms.TraverseRelationships(ctx, snap, algorithms.TraversalOptions{
			TechniqueID: req.TechniqueID,
			Types:       req.RelationshipTypes,
			Depth:       req.EffectiveDepth(s.defaultDepth),
		})
		if err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.RecordTraversal(tree.TotalNodes)
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("traversal.nodes", tree.TotalNodes))
		return tree, nil
	})
}

// GetLoadStatus reports the manager state and, once loaded, the snapshot
// contents. It never fails with NotLoaded.
func (s *Service) GetLoadStatus(ctx context.Context) (*LoadStatus, error) {
	return invoke(ctx, s, ToolGetLoadStatus, func(ctx context.Context) (*LoadStatus, error) {
		st := s.manager.Status()
		out := &LoadStatus{
			State:     st.State,
			Source:    st.Source,
			LastError: st.LastError,
			Loads:     st.Loads,
			Failures:  st.Failures,
			Warnings:  make([]model.Warning, 0),
		}

		snap, err := s.manager.Snapshot(ctx, loader.NoWait)
		if err != nil {
			return out, nil
		}
		loadedAt := snap.LoadedAt
		out.SnapshotID = snap.ID
		out.LoadedAt = &loadedAt
		out.Counts = snap.Stats.Entities
		out.Relationships = snap.Stats.Relationships
		out.DroppedRelationships = snap.Stats.DroppedRelationships
		out.WarningCount = len(snap.Warnings)
		n := min(len(snap.Warnings), MaxStatusWarnings)
		out.Warnings = append(out.Warnings, snap.Warnings[:n]...)
		return out, nil
	})
}
