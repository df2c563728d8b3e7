// Package query answers read-only lookups against one knowledge-base snapshot.
package query

import (
	"github.com/dd0wney/cluso-attackgraph/pkg/graph"
	"github.com/dd0wney/cluso-attackgraph/pkg/model"
	"github.com/dd0wney/cluso-attackgraph/pkg/snapshot"
	"github.com/dd0wney/cluso-attackgraph/pkg/store"
)

// Engine executes lookups. It holds no mutable state and may be shared by
// any number of goroutines.
type Engine struct {
	snap  *snapshot.Snapshot
	store *store.EntityStore
	index *graph.Index
}

// New creates an engine bound to snap
func New(snap *snapshot.Snapshot) *Engine {
	return &Engine{snap: snap, store: snap.Store, index: snap.Index}
}

// Snapshot returns the snapshot the engine reads
func (e *Engine) Snapshot() *snapshot.Snapshot {
	return e.snap
}

// TechniqueDetail is a technique with its associations resolved
type TechniqueDetail struct {
	Technique     model.Technique    `json:"technique"`
	Tactics       []model.Tactic     `json:"tactics"`
	Mitigations   []model.Mitigation `json:"mitigations"`
	Parent        *model.Technique   `json:"parent,omitempty"`
	Subtechniques []model.Technique  `json:"subtechniques"`
	Groups        []model.Group      `json:"groups"`
}

// Search matches entities by substring; see store.EntityStore.Search.
func (e *Engine) Search(q string) []store.Hit {
	return e.store.Search(q)
}

// GetTechnique returns the technique with its tactics (in the technique's
// own order), mitigations, hierarchy and the groups using it.
func (e *Engine) GetTechnique(id string) (*TechniqueDetail, error) {
	t, err := e.store.Technique(id)
	if err != nil {
		return nil, model.NotFoundError("get_technique", model.KindTechnique, id)
	}

	detail := &TechniqueDetail{
		Technique:     t,
		Tactics:       make([]model.Tactic, 0, len(t.TacticIDs)),
		Mitigations:   e.mitigations(e.index.MitigationsOfTechnique(id)),
		Subtechniques: e.techniques(e.index.SubtechniquesOf(id)),
		Groups:        make([]model.Group, 0),
	}
	for _, tacticID := range t.TacticIDs {
		if tactic, err := e.store.Tactic(tacticID); err == nil {
			detail.Tactics = append(detail.Tactics, tactic)
		}
	}
	if parentID, ok := e.index.ParentOf(id); ok {
		if parent, err := e.store.Technique(parentID); err == nil {
			detail.Parent = &parent
		}
	}
	for _, groupID := range e.index.GroupsUsingTechnique(id) {
		if g, err := e.store.Group(groupID); err == nil {
			detail.Groups = append(detail.Groups, g)
		}
	}
	return detail, nil
}

// ListTactics returns the loaded tactics in kill-chain order
func (e *Engine) ListTactics() []model.Tactic {
	return e.store.Tactics()
}

// Group returns the group with the given id
func (e *Engine) Group(id string) (model.Group, error) {
	g, err := e.store.Group(id)
	if err != nil {
		return model.Group{}, model.NotFoundError("get_group", model.KindGroup, id)
	}
	return g, nil
}

// Technique returns the technique with the given id
func (e *Engine) Technique(id string) (model.Technique, error) {
	t, err := e.store.Technique(id)
	if err != nil {
		return model.Technique{}, model.NotFoundError("get_technique", model.KindTechnique, id)
	}
	return t, nil
}

// GroupTechniques returns the techniques a group uses, in relationship order
func (e *Engine) GroupTechniques(groupID string) ([]model.Technique, error) {
	if _, err := e.store.Group(groupID); err != nil {
		return nil, model.NotFoundError("get_group_techniques", model.KindGroup, groupID)
	}
	return e.techniques(e.index.TechniquesOfGroup(groupID)), nil
}

// TechniqueMitigations returns the mitigations of a technique, in
// relationship order
func (e *Engine) TechniqueMitigations(techniqueID string) ([]model.Mitigation, error) {
	if _, err := e.store.Technique(techniqueID); err != nil {
		return nil, model.NotFoundError("get_technique_mitigations", model.KindTechnique, techniqueID)
	}
	return e.mitigations(e.index.MitigationsOfTechnique(techniqueID)), nil
}

func (e *Engine) techniques(ids []string) []model.Technique {
	out := make([]model.Technique, 0, len(ids))
	for _, id := range ids {
		if t, err := e.store.Technique(id); err == nil {
			out = append(out, t)
		}
	}
	return out
}

func (e *Engine) mitigations(ids []string) []model.Mitigation {
	out := make([]model.Mitigation, 0, len(ids))
	for _, id := range ids {
		if m, err := e.store.Mitigation(id); err == nil {
			out = append(out, m)
		}
	}
	return out
}
