package algorithms

import (
	"context"
	"fmt"

	"github.com/dd0wney/cluso-attackgraph/pkg/graph"
	"github.com/dd0wney/cluso-attackgraph/pkg/model"
	"github.com/dd0wney/cluso-attackgraph/pkg/snapshot"
)

const opRelationships = "detect_technique_relationships"

// Traversal depth bounds
const (
	MinTraversalDepth     = 1
	MaxTraversalDepth     = 5
	DefaultTraversalDepth = 2
)

// Relationship categories
const (
	CategoryAttribution = "attribution"
	CategoryDetection   = "detection"
	CategoryMitigation  = "mitigation"
	CategoryHierarchy   = "hierarchy"
	CategoryOther       = "other"
)

// TraversalOptions configures a relationship walk from a technique.
type TraversalOptions struct {
	TechniqueID string
	Types       []string // nil means every relationship type
	Depth       int
}

// DefaultTraversalOptions returns options for a two-hop walk over every type.
func DefaultTraversalOptions(techniqueID string) TraversalOptions {
	return TraversalOptions{TechniqueID: techniqueID, Depth: DefaultTraversalDepth}
}

// RelatedNode is one entity discovered by the walk
type RelatedNode struct {
	ID            string         `json:"id"`
	Kind          model.Kind     `json:"kind"`
	Name          string         `json:"name"`
	Hop           int            `json:"hop"`
	Via           string         `json:"via"`
	Direction     string         `json:"direction"`
	Types         []string       `json:"types"`
	Subtechniques []*RelatedNode `json:"subtechniques,omitempty"`
}

// RelationshipTree groups discovered nodes by category. Sub-techniques hang
// off their parent's entry (or Subtechniques for the start technique) instead
// of appearing as siblings.
type RelationshipTree struct {
	TechniqueID   string         `json:"technique_id"`
	Name          string         `json:"name"`
	Depth         int            `json:"depth"`
	Types         []string       `json:"types"`
	Subtechniques []*RelatedNode `json:"subtechniques"`
	Attribution   []*RelatedNode `json:"attribution"`
	Detection     []*RelatedNode `json:"detection"`
	Mitigation    []*RelatedNode `json:"mitigation"`
	Hierarchy     []*RelatedNode `json:"hierarchy"`
	Other         []*RelatedNode `json:"other"`
	TotalNodes    int            `json:"total_nodes"`
}

// Category maps a relationship type to its tree section
func Category(relType string) string {
	switch relType {
	case model.RelUses, model.RelAttributedTo:
		return CategoryAttribution
	case model.RelDetects:
		return CategoryDetection
	case model.RelMitigates:
		return CategoryMitigation
	case model.RelSubtechniqueOf:
		return CategoryHierarchy
	default:
		return CategoryOther
	}
}

type traversalEntry struct {
	id   string
	kind model.Kind
	hop  int
	node *RelatedNode // nil for the start technique
}

// link is every edge between the expanding node and one neighbour
type link struct {
	id        string
	direction graph.Direction
	types     []string
	child     bool // neighbour is a sub-technique of the expanding technique
}

// TraverseRelationships walks forward and reverse edges breadth-first from
// the technique. Each entity is emitted once, at its shallowest hop. ctx is
// checked before every expansion; cancellation fails the whole walk.
func TraverseRelationships(ctx context.Context, snap *snapshot.Snapshot, opts TraversalOptions) (*RelationshipTree, error) {
	if opts.Depth < MinTraversalDepth || opts.Depth > MaxTraversalDepth {
		return nil, model.InvalidParameterError(opRelationships, "depth",
			fmt.Sprintf("must be between %d and %d, got %d", MinTraversalDepth, MaxTraversalDepth, opts.Depth))
	}
	if err := checkTypes(snap.Index, opts.Types); err != nil {
		return nil, err
	}
	start, err := snap.Store.Technique(opts.TechniqueID)
	if err != nil {
		return nil, model.NotFoundError(opRelationships, model.KindTechnique, opts.TechniqueID)
	}

	tree := &RelationshipTree{
		TechniqueID:   start.ID,
		Name:          start.Name,
		Depth:         opts.Depth,
		Types:         append(make([]string, 0, len(opts.Types)), opts.Types...),
		Subtechniques: make([]*RelatedNode, 0),
		Attribution:   make([]*RelatedNode, 0),
		Detection:     make([]*RelatedNode, 0),
		Mitigation:    make([]*RelatedNode, 0),
		Hierarchy:     make([]*RelatedNode, 0),
		Other:         make([]*RelatedNode, 0),
	}

	visited := map[string]bool{start.ID: true}
	queue := []traversalEntry{{id: start.ID, kind: model.KindTechnique}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, model.CancelledError(opRelationships, err)
		}

		current := queue[0]
		queue = queue[1:]
		if current.hop >= opts.Depth {
			continue
		}

		for _, l := range collectLinks(snap.Index, current, opts.Types) {
			if visited[l.id] {
				continue
			}
			visited[l.id] = true

			kind, _ := snap.Store.KindOf(l.id)
			node := &RelatedNode{
				ID:        l.id,
				Kind:      kind,
				Hop:       current.hop + 1,
				Via:       current.id,
				Direction: l.direction.String(),
				Types:     l.types,
			}
			if e, err := snap.Store.Get(l.id); err == nil {
				node.Name = e.EntityName()
			}

			switch {
			case l.child && current.node == nil:
				tree.Subtechniques = append(tree.Subtechniques, node)
			case l.child:
				current.node.Subtechniques = append(current.node.Subtechniques, node)
			default:
				tree.add(Category(l.types[0]), node)
			}
			tree.TotalNodes++

			queue = append(queue, traversalEntry{id: l.id, kind: kind, hop: node.Hop, node: node})
		}
	}

	return tree, nil
}

// collectLinks merges the edges to each neighbour, keeping first-seen
// neighbour and type order.
func collectLinks(idx *graph.Index, from traversalEntry, types []string) []link {
	neighbors := idx.Neighbors(from.id, graph.Both, types...)
	links := make([]link, 0, len(neighbors))
	pos := make(map[string]int, len(neighbors))

	for _, n := range neighbors {
		i, ok := pos[n.ID]
		if !ok {
			i = len(links)
			pos[n.ID] = i
			links = append(links, link{id: n.ID, direction: n.Direction})
		}
		l := &links[i]
		if !contains(l.types, n.Type) {
			l.types = append(l.types, n.Type)
		}
		if from.kind == model.KindTechnique && n.Type == model.RelSubtechniqueOf && n.Direction == graph.Reverse {
			l.child = true
		}
	}

	// Hierarchy resolved by id prefix has no edge in the tables
	if from.kind != model.KindTechnique || (len(types) > 0 && !contains(types, model.RelSubtechniqueOf)) {
		return links
	}
	if parent, ok := idx.ParentOf(from.id); ok {
		if _, seen := pos[parent]; !seen {
			pos[parent] = len(links)
			links = append(links, link{id: parent, direction: graph.Forward, types: []string{model.RelSubtechniqueOf}})
		}
	}
	for _, child := range idx.SubtechniquesOf(from.id) {
		if _, seen := pos[child]; !seen {
			pos[child] = len(links)
			links = append(links, link{id: child, direction: graph.Reverse, types: []string{model.RelSubtechniqueOf}, child: true})
		}
	}
	return links
}

func (t *RelationshipTree) add(category string, node *RelatedNode) {
	switch category {
	case CategoryAttribution:
		t.Attribution = append(t.Attribution, node)
	case CategoryDetection:
		t.Detection = append(t.Detection, node)
	case CategoryMitigation:
		t.Mitigation = append(t.Mitigation, node)
	case CategoryHierarchy:
		t.Hierarchy = append(t.Hierarchy, node)
	default:
		t.Other = append(t.Other, node)
	}
}

func checkTypes(idx *graph.Index, types []string) error {
	known := model.KnownRelationshipTypes()
	for _, typ := range types {
		if !contains(known, typ) && !idx.HasType(typ) {
			return model.InvalidParameterError(opRelationships, "relationship_types",
				fmt.Sprintf("unknown relationship type %q", typ))
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
