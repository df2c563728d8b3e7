package graph

import (
	"sort"
	"strings"

	"github.com/dd0wney/cluso-attackgraph/pkg/model"
)

// Direction controls which adjacency table a neighbour query reads.
type Direction int

const (
	Forward Direction = iota // source -> target
	Reverse                  // target -> source
	Both
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return "both"
	}
}

// Neighbor is one adjacency entry
type Neighbor struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Direction Direction `json:"-"`
}

// Dropped records a relationship rejected during construction
type Dropped struct {
	Relationship model.Relationship
	Reason       string
}

// Index is the relationship adjacency structure of one snapshot: forward
// (source -> [(target, type)]) and reverse (target -> [(source, type)]) tables
// plus views derived from them once at construction.
type Index struct {
	forward map[string][]Neighbor
	reverse map[string][]Neighbor
	types   map[string]int
	edges   int

	techniquesOfGroup      map[string][]string
	groupsUsingTechnique   map[string][]string
	mitigationsOfTechnique map[string][]string
	techniquesOfMitigation map[string][]string
	subtechniquesOf        map[string][]string
	parentOf               map[string]string
}

// Resolver answers the existence and kind questions construction needs.
type Resolver interface {
	KindOf(id string) (model.Kind, bool)
}

type edgeKey struct {
	source, target, typ string
}

// Build makes a single pass over rels. Every relationship whose endpoints
// both resolve is inserted into both tables in stream order; the rest are
// returned as dropped. techniqueIDs (insertion order) feeds the id-prefix
// fallback for sub-technique resolution.
func Build(rels []model.Relationship, resolver Resolver, techniqueIDs []string) (*Index, []Dropped) {
	idx := &Index{
		forward:                make(map[string][]Neighbor),
		reverse:                make(map[string][]Neighbor),
		types:                  make(map[string]int),
		techniquesOfGroup:      make(map[string][]string),
		groupsUsingTechnique:   make(map[string][]string),
		mitigationsOfTechnique: make(map[string][]string),
		techniquesOfMitigation: make(map[string][]string),
		subtechniquesOf:        make(map[string][]string),
		parentOf:               make(map[string]string),
	}

	var dropped []Dropped
	seen := make(map[edgeKey]bool, len(rels))

	for _, rel := range rels {
		srcKind, srcOK := resolver.KindOf(rel.SourceID)
		dstKind, dstOK := resolver.KindOf(rel.TargetID)
		switch {
		case !srcOK:
			dropped = append(dropped, Dropped{Relationship: rel, Reason: "missing source"})
			continue
		case !dstOK:
			dropped = append(dropped, Dropped{Relationship: rel, Reason: "missing target"})
			continue
		}

		key := edgeKey{rel.SourceID, rel.TargetID, rel.Type}
		if seen[key] {
			continue
		}
		seen[key] = true

		idx.forward[rel.SourceID] = append(idx.forward[rel.SourceID], Neighbor{ID: rel.TargetID, Type: rel.Type, Direction: Forward})
		idx.reverse[rel.TargetID] = append(idx.reverse[rel.TargetID], Neighbor{ID: rel.SourceID, Type: rel.Type, Direction: Reverse})
		idx.types[rel.Type]++
		idx.edges++

		idx.derive(rel, srcKind, dstKind)
	}

	idx.resolveSubtechniqueFallback(techniqueIDs)

	return idx, dropped
}

func (idx *Index) derive(rel model.Relationship, srcKind, dstKind model.Kind) {
	switch rel.Type {
	case model.RelUses:
		if srcKind == model.KindGroup && dstKind == model.KindTechnique {
			idx.techniquesOfGroup[rel.SourceID] = append(idx.techniquesOfGroup[rel.SourceID], rel.TargetID)
			idx.groupsUsingTechnique[rel.TargetID] = append(idx.groupsUsingTechnique[rel.TargetID], rel.SourceID)
		}
	case model.RelMitigates:
		if srcKind == model.KindMitigation && dstKind == model.KindTechnique {
			idx.mitigationsOfTechnique[rel.TargetID] = append(idx.mitigationsOfTechnique[rel.TargetID], rel.SourceID)
			idx.techniquesOfMitigation[rel.SourceID] = append(idx.techniquesOfMitigation[rel.SourceID], rel.TargetID)
		}
	case model.RelSubtechniqueOf:
		if srcKind == model.KindTechnique && dstKind == model.KindTechnique {
			if _, hasParent := idx.parentOf[rel.SourceID]; !hasParent {
				idx.parentOf[rel.SourceID] = rel.TargetID
				idx.subtechniquesOf[rel.TargetID] = append(idx.subtechniquesOf[rel.TargetID], rel.SourceID)
			}
		}
	}
}

// resolveSubtechniqueFallback links each dotted child that has no recorded
// parent to its id prefix when that parent is loaded. Recorded children keep
// their place ahead of prefix-linked ones.
func (idx *Index) resolveSubtechniqueFallback(techniqueIDs []string) {
	known := make(map[string]bool, len(techniqueIDs))
	for _, id := range techniqueIDs {
		known[id] = true
	}

	for _, id := range techniqueIDs {
		dot := strings.IndexByte(id, '.')
		if dot <= 0 {
			continue
		}
		parent := id[:dot]
		if !known[parent] {
			continue
		}
		if _, hasParent := idx.parentOf[id]; hasParent {
			continue
		}
		idx.parentOf[id] = parent
		idx.subtechniquesOf[parent] = append(idx.subtechniquesOf[parent], id)
	}
}

// Neighbors returns adjacency entries for id. An empty types list means all
// types. Forward entries precede reverse entries when direction is Both.
func (idx *Index) Neighbors(id string, direction Direction, types ...string) []Neighbor {
	var filter map[string]bool
	if len(types) > 0 {
		filter = make(map[string]bool, len(types))
		for _, t := range types {
			filter[t] = true
		}
	}

	out := make([]Neighbor, 0)
	if direction == Forward || direction == Both {
		out = appendFiltered(out, idx.forward[id], filter)
	}
	if direction == Reverse || direction == Both {
		out = appendFiltered(out, idx.reverse[id], filter)
	}
	return out
}

func appendFiltered(dst, src []Neighbor, filter map[string]bool) []Neighbor {
	for _, n := range src {
		if filter != nil && !filter[n.Type] {
			continue
		}
		dst = append(dst, n)
	}
	return dst
}

// TechniquesOfGroup returns technique ids reached from a group by a single
// "uses" edge, in relationship order.
func (idx *Index) TechniquesOfGroup(groupID string) []string {
	return copyIDs(idx.techniquesOfGroup[groupID])
}

// GroupsUsingTechnique is the reverse of TechniquesOfGroup.
func (idx *Index) GroupsUsingTechnique(techniqueID string) []string {
	return copyIDs(idx.groupsUsingTechnique[techniqueID])
}

// MitigationsOfTechnique returns mitigation ids with a "mitigates" edge to the technique.
func (idx *Index) MitigationsOfTechnique(techniqueID string) []string {
	return copyIDs(idx.mitigationsOfTechnique[techniqueID])
}

// TechniquesOfMitigation is the reverse of MitigationsOfTechnique.
func (idx *Index) TechniquesOfMitigation(mitigationID string) []string {
	return copyIDs(idx.techniquesOfMitigation[mitigationID])
}

// SubtechniquesOf returns the children of a technique.
func (idx *Index) SubtechniquesOf(techniqueID string) []string {
	return copyIDs(idx.subtechniquesOf[techniqueID])
}

// ParentOf returns the parent technique of a sub-technique.
func (idx *Index) ParentOf(techniqueID string) (string, bool) {
	p, ok := idx.parentOf[techniqueID]
	return p, ok
}

// HasType reports whether any indexed relationship has the given type.
func (idx *Index) HasType(relType string) bool {
	return idx.types[relType] > 0
}

// Types returns every indexed relationship type, sorted.
func (idx *Index) Types() []string {
	out := make([]string, 0, len(idx.types))
	for t := range idx.types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// TypeCounts returns the number of edges per relationship type.
func (idx *Index) TypeCounts() map[string]int {
	out := make(map[string]int, len(idx.types))
	for t, n := range idx.types {
		out[t] = n
	}
	return out
}

// EdgeCount returns the number of indexed relationships.
func (idx *Index) EdgeCount() int {
	return idx.edges
}

func copyIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
