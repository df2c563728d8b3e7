package graph

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dd0wney/cluso-attackgraph/pkg/model"
)

// relationshipUniverse mixes resolvable ids with dangling ones so generated
// streams exercise both insert and drop paths.
var relationshipUniverse = []string{"G0016", "G0007", "T1055", "T1001", "T1003", "M1040", "TA0004", "G0404", "T9999"}

func genRelationship() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, len(relationshipUniverse)-1),
		gen.IntRange(0, len(relationshipUniverse)-1),
		gen.OneConstOf(model.RelUses, model.RelMitigates, model.RelSubtechniqueOf, model.RelDetects),
	).Map(func(vals []any) model.Relationship {
		return model.Relationship{
			SourceID: relationshipUniverse[vals[0].(int)],
			TargetID: relationshipUniverse[vals[1].(int)],
			Type:     vals[2].(string),
		}
	})
}

// TestIndexInvariants uses property-based testing to verify index invariants
func TestIndexInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	resolver := testResolver()

	// Property 1: every relationship is inserted, dropped, or a duplicate
	properties.Property("relationships are accounted for", prop.ForAll(
		func(rels []model.Relationship) bool {
			idx, dropped := Build(rels, resolver, testTechniqueIDs)

			unique := make(map[string]bool)
			valid := 0
			for _, r := range rels {
				_, srcOK := resolver.KindOf(r.SourceID)
				_, dstOK := resolver.KindOf(r.TargetID)
				if !srcOK || !dstOK {
					continue
				}
				valid++
				unique[fmt.Sprintf("%s|%s|%s", r.SourceID, r.TargetID, r.Type)] = true
			}
			return len(dropped) == len(rels)-valid && idx.EdgeCount() == len(unique)
		},
		gen.SliceOf(genRelationship()),
	))

	// Property 2: no indexed edge references a missing entity
	properties.Property("indexed endpoints exist", prop.ForAll(
		func(rels []model.Relationship) bool {
			idx, _ := Build(rels, resolver, testTechniqueIDs)
			for _, id := range relationshipUniverse {
				_, ok := resolver.KindOf(id)
				if !ok && len(idx.Neighbors(id, Both)) > 0 {
					return false
				}
				for _, n := range idx.Neighbors(id, Both) {
					if _, exists := resolver.KindOf(n.ID); !exists {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(genRelationship()),
	))

	// Property 3: TechniquesOfGroup is exactly the set of technique targets of forward "uses" edges
	properties.Property("techniquesOfGroup matches uses edges", prop.ForAll(
		func(rels []model.Relationship) bool {
			idx, _ := Build(rels, resolver, testTechniqueIDs)
			for _, g := range []string{"G0016", "G0007"} {
				want := make(map[string]bool)
				for _, n := range idx.Neighbors(g, Forward, model.RelUses) {
					if k, _ := resolver.KindOf(n.ID); k == model.KindTechnique {
						want[n.ID] = true
					}
				}
				got := idx.TechniquesOfGroup(g)
				if len(got) != len(want) {
					return false
				}
				for _, id := range got {
					if !want[id] {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(genRelationship()),
	))

	properties.TestingRun(t)
}
