package store

import (
	"strings"

	"github.com/dd0wney/cluso-attackgraph/pkg/model"
)

// MatchAll is the wildcard query accepted by Search
const MatchAll = "*"

// Search filters entities by a case-insensitive substring of their name,
// description or (for groups) aliases. An empty or "*" query matches every
// entity. Results are kind-major (techniques, tactics, groups, mitigations)
// and keep insertion order within a kind; there is no scoring.
func (s *EntityStore) Search(query string) []Hit {
	q := strings.ToLower(strings.TrimSpace(query))
	all := q == "" || q == MatchAll

	hits := make([]Hit, 0)
	for i, t := range s.techniques {
		if all || matches(s.techniqueText[i], q) {
			hits = append(hits, Hit{Kind: model.KindTechnique, Entity: cloneTechnique(t)})
		}
	}
	for i, t := range s.tactics {
		if all || matches(s.tacticText[i], q) {
			hits = append(hits, Hit{Kind: model.KindTactic, Entity: t})
		}
	}
	for i, g := range s.groups {
		if all || matches(s.groupText[i], q) {
			hits = append(hits, Hit{Kind: model.KindGroup, Entity: cloneGroup(g)})
		}
	}
	for i, m := range s.mitigations {
		if all || matches(s.mitigationText[i], q) {
			hits = append(hits, Hit{Kind: model.KindMitigation, Entity: cloneMitigation(m)})
		}
	}
	return hits
}

func matches(texts []string, q string) bool {
	for _, text := range texts {
		if strings.Contains(text, q) {
			return true
		}
	}
	return false
}
