package snapshot

import (
	"fmt"

	"github.com/dd0wney/cluso-attackgraph/pkg/logging"
	"github.com/dd0wney/cluso-attackgraph/pkg/model"
)

// builder accumulates warnings while entity lists are cleaned
type builder struct {
	logger          logging.Logger
	warnings        []model.Warning
	droppedEntities int
	seen            map[string]model.Kind
}

func (b *builder) warn(w model.Warning) {
	b.warnings = append(b.warnings, w)
	b.logger.Debug(w.Message)
}

// admit enforces non-empty, globally unique ids. The first record wins.
func (b *builder) admit(kind model.Kind, id string) bool {
	if b.seen == nil {
		b.seen = make(map[string]model.Kind)
	}
	if id == "" {
		b.droppedEntities++
		b.warn(model.Warning{Kind: model.PartialDataWarning, Message: fmt.Sprintf("%s record without id dropped", kind)})
		return false
	}
	if prev, dup := b.seen[id]; dup {
		b.droppedEntities++
		b.warn(model.Warning{Kind: model.PartialDataWarning, Message: fmt.Sprintf("duplicate id %s (%s, first seen as %s) dropped", id, kind, prev), SourceID: id})
		return false
	}
	b.seen[id] = kind
	return true
}

func (b *builder) techniques(in []model.Technique) []model.Technique {
	out := make([]model.Technique, 0, len(in))
	for _, t := range in {
		if !b.admit(model.KindTechnique, t.ID) {
			continue
		}
		t.Platforms = nonNil(t.Platforms)
		t.TacticIDs = dedupe(t.TacticIDs)
		out = append(out, t)
	}
	return out
}

// tactics keeps canonical tactics only and takes positions from the kill chain.
func (b *builder) tactics(in []model.Tactic) []model.Tactic {
	out := make([]model.Tactic, 0, len(in))
	for _, t := range in {
		pos, canonical := model.KillChainPosition(t.ID)
		if t.ID != "" && !canonical {
			b.droppedEntities++
			b.warn(model.Warning{Kind: model.PartialDataWarning, Message: fmt.Sprintf("tactic %s is not part of the canonical kill chain, dropped", t.ID), SourceID: t.ID})
			continue
		}
		if !b.admit(model.KindTactic, t.ID) {
			continue
		}
		t.Position = pos
		out = append(out, t)
	}
	return out
}

func (b *builder) groups(in []model.Group) []model.Group {
	out := make([]model.Group, 0, len(in))
	for _, g := range in {
		if !b.admit(model.KindGroup, g.ID) {
			continue
		}
		g.Aliases = nonNil(g.Aliases)
		out = append(out, g)
	}
	return out
}

func (b *builder) mitigations(in []model.Mitigation) []model.Mitigation {
	out := make([]model.Mitigation, 0, len(in))
	for _, m := range in {
		if !b.admit(model.KindMitigation, m.ID) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// pruneTacticRefs removes technique tactic references that do not resolve to
// a loaded tactic.
func (b *builder) pruneTacticRefs(techniques []model.Technique, tactics []model.Tactic) {
	loaded := make(map[string]bool, len(tactics))
	for _, t := range tactics {
		loaded[t.ID] = true
	}
	for i := range techniques {
		t := &techniques[i]
		kept := make([]string, 0, len(t.TacticIDs))
		for _, id := range t.TacticIDs {
			if loaded[id] {
				kept = append(kept, id)
				continue
			}
			b.warn(model.Warning{
				Kind:     model.PartialDataWarning,
				Message:  fmt.Sprintf("technique %s references unknown tactic %s", t.ID, id),
				SourceID: t.ID,
				TargetID: id,
			})
		}
		t.TacticIDs = kept
	}
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
