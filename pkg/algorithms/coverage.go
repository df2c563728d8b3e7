package algorithms

import (
	"sort"

	"github.com/dd0wney/cluso-attackgraph/pkg/model"
	"github.com/dd0wney/cluso-attackgraph/pkg/snapshot"
)

const opCoverage = "analyze_coverage_gaps"

// CoverageOptions configures gap analysis. TechniqueIDs, when set, replaces
// the technique universe derived from the groups.
type CoverageOptions struct {
	GroupIDs           []string
	TechniqueIDs       []string
	ExcludeMitigations []string
}

// Gap is a technique with no remaining mitigation
type Gap struct {
	TechniqueID string   `json:"technique_id"`
	Name        string   `json:"name"`
	GroupCount  int      `json:"group_count"`
	Groups      []string `json:"groups"`
}

// CoveredTechnique is a technique that still has at least one mitigation
type CoveredTechnique struct {
	TechniqueID          string   `json:"technique_id"`
	Name                 string   `json:"name"`
	RemainingMitigations []string `json:"remaining_mitigations"`
}

// CoverageReport summarises mitigation coverage for a technique universe
type CoverageReport struct {
	Groups             []string           `json:"groups"`
	TotalTechniques    int                `json:"total_techniques"`
	CoveredTechniques  int                `json:"covered_techniques"`
	GapCount           int                `json:"gap_count"`
	GapPercentage      float64            `json:"gap_percentage"`
	ExcludeMitigations []string           `json:"exclude_mitigations"`
	Gaps               []Gap              `json:"gaps"`
	Covered            []CoveredTechnique `json:"covered"`
}

// AnalyzeCoverage finds the techniques of the requested groups whose
// mitigations are all excluded (or that have none). Gaps are ranked by how
// many requested groups use them, then by id.
func AnalyzeCoverage(snap *snapshot.Snapshot, opts CoverageOptions) (*CoverageReport, error) {
	if len(opts.GroupIDs) == 0 {
		return nil, model.InvalidParameterError(opCoverage, "threat_groups", "at least one group is required")
	}

	groups := dedupe(opts.GroupIDs)
	requested := make(map[string]bool, len(groups))
	for _, id := range groups {
		if _, err := snap.Store.Group(id); err != nil {
			return nil, model.NotFoundError(opCoverage, model.KindGroup, id)
		}
		requested[id] = true
	}

	excluded := make(map[string]bool, len(opts.ExcludeMitigations))
	for _, id := range opts.ExcludeMitigations {
		if _, err := snap.Store.Mitigation(id); err != nil {
			return nil, model.NotFoundError(opCoverage, model.KindMitigation, id)
		}
		excluded[id] = true
	}

	var universe []string
	if len(opts.TechniqueIDs) > 0 {
		universe = dedupe(opts.TechniqueIDs)
		for _, id := range universe {
			if _, err := snap.Store.Technique(id); err != nil {
				return nil, model.NotFoundError(opCoverage, model.KindTechnique, id)
			}
		}
	} else {
		var all []string
		for _, g := range groups {
			all = append(all, snap.Index.TechniquesOfGroup(g)...)
		}
		universe = dedupe(all)
	}

	report := &CoverageReport{
		Groups:             groups,
		TotalTechniques:    len(universe),
		ExcludeMitigations: dedupe(opts.ExcludeMitigations),
		Gaps:               make([]Gap, 0),
		Covered:            make([]CoveredTechnique, 0),
	}

	for _, id := range universe {
		t, err := snap.Store.Technique(id)
		if err != nil {
			continue
		}

		remaining := make([]string, 0)
		for _, m := range snap.Index.MitigationsOfTechnique(id) {
			if !excluded[m] {
				remaining = append(remaining, m)
			}
		}
		if len(remaining) > 0 {
			report.Covered = append(report.Covered, CoveredTechnique{TechniqueID: id, Name: t.Name, RemainingMitigations: remaining})
			continue
		}

		users := make([]string, 0)
		for _, g := range snap.Index.GroupsUsingTechnique(id) {
			if requested[g] {
				users = append(users, g)
			}
		}
		report.Gaps = append(report.Gaps, Gap{TechniqueID: id, Name: t.Name, GroupCount: len(users), Groups: users})
	}

	sort.SliceStable(report.Gaps, func(i, j int) bool {
		a, b := report.Gaps[i], report.Gaps[j]
		if a.GroupCount != b.GroupCount {
			return a.GroupCount > b.GroupCount
		}
		return a.TechniqueID < b.TechniqueID
	})

	report.CoveredTechniques = len(report.Covered)
	report.GapCount = len(report.Gaps)
	report.GapPercentage = percentage(report.GapCount, report.TotalTechniques)
	return report, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
