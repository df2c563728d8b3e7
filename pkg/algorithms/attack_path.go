// Package algorithms implements the analyses run over a knowledge-base
// snapshot: kill-chain attack paths, mitigation coverage gaps and bounded
// relationship traversal.
package algorithms

import (
	"fmt"
	"math"

	"github.com/dd0wney/cluso-attackgraph/pkg/model"
	"github.com/dd0wney/cluso-attackgraph/pkg/snapshot"
)

const opAttackPath = "build_attack_path"

// AttackPathOptions configures attack path construction.
type AttackPathOptions struct {
	StartTactic string
	EndTactic   string
	GroupID     string // optional; restricts stages to the group's techniques
	Platform    string // optional; matched case-insensitively
}

// TechniqueRef is the summary of a technique carried by a stage
type TechniqueRef struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Platforms []string `json:"platforms"`
}

// Stage is one kill-chain step of an attack path
type Stage struct {
	TacticID   string         `json:"tactic_id"`
	TacticName string         `json:"tactic_name"`
	Position   int            `json:"position"`
	Techniques []TechniqueRef `json:"techniques"`
	Count      int            `json:"count"`
}

// AttackPath is the ordered stage list between two tactics
type AttackPath struct {
	StartTactic   string   `json:"start_tactic"`
	EndTactic     string   `json:"end_tactic"`
	GroupID       string   `json:"group_id,omitempty"`
	Platform      string   `json:"platform,omitempty"`
	Stages        []Stage  `json:"stages"`
	CoveredStages int      `json:"covered_stages"`
	TotalStages   int      `json:"total_stages"`
	Completeness  float64  `json:"completeness"`
	Gaps          []string `json:"gaps"`
}

// BuildAttackPath emits one stage per canonical tactic from StartTactic to
// EndTactic inclusive. Empty stages are kept so callers see where the chain
// breaks; a technique may appear in several stages.
func BuildAttackPath(snap *snapshot.Snapshot, opts AttackPathOptions) (*AttackPath, error) {
	startPos, err := tacticPosition(snap, "start_tactic", opts.StartTactic)
	if err != nil {
		return nil, err
	}
	endPos, err := tacticPosition(snap, "end_tactic", opts.EndTactic)
	if err != nil {
		return nil, err
	}
	if startPos > endPos {
		return nil, model.InvalidParameterError(opAttackPath, "start_tactic",
			fmt.Sprintf("%s comes after %s in the kill chain", opts.StartTactic, opts.EndTactic))
	}

	var allowed map[string]bool
	if opts.GroupID != "" {
		if _, err := snap.Store.Group(opts.GroupID); err != nil {
			return nil, model.NotFoundError(opAttackPath, model.KindGroup, opts.GroupID)
		}
		ids := snap.Index.TechniquesOfGroup(opts.GroupID)
		allowed = make(map[string]bool, len(ids))
		for _, id := range ids {
			allowed[id] = true
		}
	}

	chain := model.CanonicalTactics()[startPos : endPos+1]
	path := &AttackPath{
		StartTactic: opts.StartTactic,
		EndTactic:   opts.EndTactic,
		GroupID:     opts.GroupID,
		Platform:    opts.Platform,
		Stages:      make([]Stage, 0, len(chain)),
		TotalStages: len(chain),
		Gaps:        make([]string, 0),
	}

	for _, canonical := range chain {
		stage := Stage{
			TacticID:   canonical.ID,
			TacticName: canonical.Name,
			Position:   canonical.Position,
			Techniques: make([]TechniqueRef, 0),
		}
		if loaded, err := snap.Store.Tactic(canonical.ID); err == nil && loaded.Name != "" {
			stage.TacticName = loaded.Name
		}

		snap.Store.ForEachTechnique(func(t *model.Technique) bool {
			if !t.HasTactic(canonical.ID) {
				return true
			}
			if allowed != nil && !allowed[t.ID] {
				return true
			}
			if opts.Platform != "" && !t.HasPlatform(opts.Platform) {
				return true
			}
			stage.Techniques = append(stage.Techniques, TechniqueRef{
				ID:        t.ID,
				Name:      t.Name,
				Platforms: append([]string(nil), t.Platforms...),
			})
			return true
		})

		stage.Count = len(stage.Techniques)
		if stage.Count > 0 {
			path.CoveredStages++
		} else {
			path.Gaps = append(path.Gaps, stage.TacticID)
		}
		path.Stages = append(path.Stages, stage)
	}

	path.Completeness = percentage(path.CoveredStages, path.TotalStages)
	return path, nil
}

func tacticPosition(snap *snapshot.Snapshot, field, id string) (int, error) {
	if _, err := snap.Store.Tactic(id); err != nil {
		return 0, model.InvalidParameterError(opAttackPath, field, fmt.Sprintf("unknown tactic %s", id))
	}
	pos, ok := model.KillChainPosition(id)
	if !ok {
		return 0, model.InvalidParameterError(opAttackPath, field, fmt.Sprintf("tactic %s is not part of the enterprise kill chain", id))
	}
	return pos, nil
}

// percentage returns part/whole*100 rounded to two decimals, or 0 when whole is 0
func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 100
}
