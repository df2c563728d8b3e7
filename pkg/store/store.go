package store

import (
	"sort"
	"strings"

	"github.com/dd0wney/cluso-attackgraph/pkg/model"
)

// Hit is a single search match
type Hit struct {
	Kind   model.Kind   `json:"kind"`
	Entity model.Entity `json:"entity"`
}

type entryRef struct {
	kind  model.Kind
	index int
}

// EntityStore holds the validated records of one snapshot. It is built once
// and only read afterwards, so it carries no locks.
type EntityStore struct {
	techniques  []model.Technique
	tactics     []model.Tactic
	groups      []model.Group
	mitigations []model.Mitigation

	byID map[string]entryRef

	// Lower-cased searchable text per entity, parallel to the slices above
	techniqueText  [][]string
	tacticText     [][]string
	groupText      [][]string
	mitigationText [][]string

	tacticsByPosition []int
}

// Counts reports the number of entities of each kind
type Counts struct {
	Techniques  int `json:"techniques"`
	Tactics     int `json:"tactics"`
	Groups      int `json:"groups"`
	Mitigations int `json:"mitigations"`
}

// Total returns the number of entities across all kinds.
func (c Counts) Total() int {
	return c.Techniques + c.Tactics + c.Groups + c.Mitigations
}

// New builds a store from entity lists. Ids are expected to be unique across
// all kinds; a later duplicate is ignored.
func New(techniques []model.Technique, tactics []model.Tactic, groups []model.Group, mitigations []model.Mitigation) *EntityStore {
	s := &EntityStore{
		byID: make(map[string]entryRef, len(techniques)+len(tactics)+len(groups)+len(mitigations)),
	}

	for _, t := range techniques {
		if s.claim(t.ID, model.KindTechnique, len(s.techniques)) {
			s.techniques = append(s.techniques, t)
			s.techniqueText = append(s.techniqueText, lowerAll(t.Name, t.Description))
		}
	}
	for _, t := range tactics {
		if s.claim(t.ID, model.KindTactic, len(s.tactics)) {
			s.tactics = append(s.tactics, t)
			s.tacticText = append(s.tacticText, lowerAll(t.Name, t.Description))
		}
	}
	for _, g := range groups {
		if s.claim(g.ID, model.KindGroup, len(s.groups)) {
			s.groups = append(s.groups, g)
			s.groupText = append(s.groupText, lowerAll(append([]string{g.Name, g.Description}, g.Aliases...)...))
		}
	}
	for _, m := range mitigations {
		if s.claim(m.ID, model.KindMitigation, len(s.mitigations)) {
			s.mitigations = append(s.mitigations, m)
			s.mitigationText = append(s.mitigationText, lowerAll(m.Name, m.Description))
		}
	}

	s.tacticsByPosition = make([]int, len(s.tactics))
	for i := range s.tactics {
		s.tacticsByPosition[i] = i
	}
	sort.SliceStable(s.tacticsByPosition, func(a, b int) bool {
		return s.tactics[s.tacticsByPosition[a]].Position < s.tactics[s.tacticsByPosition[b]].Position
	})

	return s
}

func (s *EntityStore) claim(id string, kind model.Kind, index int) bool {
	if _, exists := s.byID[id]; exists {
		return false
	}
	s.byID[id] = entryRef{kind: kind, index: index}
	return true
}

func lowerAll(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

// Has reports whether any entity uses id.
func (s *EntityStore) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// KindOf returns the kind of the entity with the given id.
func (s *EntityStore) KindOf(id string) (model.Kind, bool) {
	ref, ok := s.byID[id]
	return ref.kind, ok
}

// Get returns the entity with the given id regardless of kind.
func (s *EntityStore) Get(id string) (model.Entity, error) {
	ref, ok := s.byID[id]
	if !ok {
		return nil, model.NewError("get").Entity("entity", id).Cause(model.ErrEntityNotFound).Err()
	}
	return s.entity(ref), nil
}

func (s *EntityStore) entity(ref entryRef) model.Entity {
	switch ref.kind {
	case model.KindTechnique:
		return cloneTechnique(s.techniques[ref.index])
	case model.KindTactic:
		return s.tactics[ref.index]
	case model.KindGroup:
		return cloneGroup(s.groups[ref.index])
	default:
		return cloneMitigation(s.mitigations[ref.index])
	}
}

func (s *EntityStore) lookup(id string, kind model.Kind) (int, error) {
	ref, ok := s.byID[id]
	if !ok || ref.kind != kind {
		return 0, model.NotFoundError("get", kind, id)
	}
	return ref.index, nil
}

// Technique returns the technique with the given id.
func (s *EntityStore) Technique(id string) (model.Technique, error) {
	i, err := s.lookup(id, model.KindTechnique)
	if err != nil {
		return model.Technique{}, err
	}
	return cloneTechnique(s.techniques[i]), nil
}

// Tactic returns the tactic with the given id.
func (s *EntityStore) Tactic(id string) (model.Tactic, error) {
	i, err := s.lookup(id, model.KindTactic)
	if err != nil {
		return model.Tactic{}, err
	}
	return s.tactics[i], nil
}

// Group returns the group with the given id.
func (s *EntityStore) Group(id string) (model.Group, error) {
	i, err := s.lookup(id, model.KindGroup)
	if err != nil {
		return model.Group{}, err
	}
	return cloneGroup(s.groups[i]), nil
}

// Mitigation returns the mitigation with the given id.
func (s *EntityStore) Mitigation(id string) (model.Mitigation, error) {
	i, err := s.lookup(id, model.KindMitigation)
	if err != nil {
		return model.Mitigation{}, err
	}
	return cloneMitigation(s.mitigations[i]), nil
}

// Techniques returns all techniques in insertion order.
func (s *EntityStore) Techniques() []model.Technique {
	out := make([]model.Technique, len(s.techniques))
	for i, t := range s.techniques {
		out[i] = cloneTechnique(t)
	}
	return out
}

// Tactics returns all tactics in kill-chain order.
func (s *EntityStore) Tactics() []model.Tactic {
	out := make([]model.Tactic, len(s.tacticsByPosition))
	for i, idx := range s.tacticsByPosition {
		out[i] = s.tactics[idx]
	}
	return out
}

// Groups returns all groups in insertion order.
func (s *EntityStore) Groups() []model.Group {
	out := make([]model.Group, len(s.groups))
	for i, g := range s.groups {
		out[i] = cloneGroup(g)
	}
	return out
}

// Mitigations returns all mitigations in insertion order.
func (s *EntityStore) Mitigations() []model.Mitigation {
	out := make([]model.Mitigation, len(s.mitigations))
	for i, m := range s.mitigations {
		out[i] = cloneMitigation(m)
	}
	return out
}

// Counts returns entity totals per kind.
func (s *EntityStore) Counts() Counts {
	return Counts{
		Techniques:  len(s.techniques),
		Tactics:     len(s.tactics),
		Groups:      len(s.groups),
		Mitigations: len(s.mitigations),
	}
}

// ForEachTechnique visits techniques in insertion order without copying.
// fn must not retain or modify the slices of the record it receives.
func (s *EntityStore) ForEachTechnique(fn func(t *model.Technique) bool) {
	for i := range s.techniques {
		if !fn(&s.techniques[i]) {
			return
		}
	}
}

func cloneTechnique(t model.Technique) model.Technique {
	t.Platforms = cloneStrings(t.Platforms)
	t.TacticIDs = cloneStrings(t.TacticIDs)
	t.MitigationIDs = cloneStrings(t.MitigationIDs)
	t.SubtechniqueIDs = cloneStrings(t.SubtechniqueIDs)
	return t
}

func cloneGroup(g model.Group) model.Group {
	g.Aliases = cloneStrings(g.Aliases)
	g.TechniqueIDs = cloneStrings(g.TechniqueIDs)
	return g
}

func cloneMitigation(m model.Mitigation) model.Mitigation {
	m.TechniqueIDs = cloneStrings(m.TechniqueIDs)
	return m
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
