package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-attackgraph/pkg/algorithms"
	"github.com/dd0wney/cluso-attackgraph/pkg/query"
	"github.com/dd0wney/cluso-attackgraph/pkg/tools"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFF00"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(0, 1)
)

// renderJSON writes v as indented JSON
func renderJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func renderError(w io.Writer, err error) {
	te := tools.AsError(err)
	fmt.Fprintf(w, "%s %s\n", errorStyle.Render(string(te.Kind)), te.Message)
}

// render pretty-prints a tool result. Types without a dedicated layout fall
// back to JSON.
func render(w io.Writer, res any) error {
	var b strings.Builder
	switch r := res.(type) {
	case *tools.SearchResult:
		renderSearch(&b, r)
	case *query.TechniqueDetail:
		renderTechnique(&b, r)
	case *tools.TacticList:
		renderTactics(&b, r)
	case *tools.GroupTechniques:
		renderGroup(&b, r)
	case *tools.TechniqueMitigations:
		renderMitigations(&b, r)
	case *algorithms.AttackPath:
		renderAttackPath(&b, r)
	case *algorithms.CoverageReport:
		renderCoverage(&b, r)
	case *algorithms.RelationshipTree:
		renderTree(&b, r)
	case *tools.LoadStatus:
		renderStatus(&b, r)
	default:
		return renderJSON(w, res)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func line(b *strings.Builder, indent int, id, name string) {
	fmt.Fprintf(b, "%s%s  %s\n", strings.Repeat("  ", indent), idStyle.Render(id), name)
}

func renderSearch(b *strings.Builder, r *tools.SearchResult) {
	fmt.Fprintf(b, "%s %s\n", titleStyle.Render(fmt.Sprintf("%d results for", r.Count)), fmt.Sprintf("%q", r.Query))
	for _, hit := range r.Results {
		fmt.Fprintf(b, "  %-11s %s  %s\n", mutedStyle.Render(string(hit.Kind)), idStyle.Render(hit.Entity.EntityID()), hit.Entity.EntityName())
	}
}

func renderTechnique(b *strings.Builder, r *query.TechniqueDetail) {
	t := r.Technique
	fmt.Fprintln(b, titleStyle.Render(t.ID+"  "+t.Name))
	if len(t.Platforms) > 0 {
		fmt.Fprintf(b, "%s %s\n", mutedStyle.Render("platforms:"), strings.Join(t.Platforms, ", "))
	}
	if r.Parent != nil {
		fmt.Fprintln(b, headerStyle.Render("Parent"))
		line(b, 1, r.Parent.ID, r.Parent.Name)
	}
	if len(r.Tactics) > 0 {
		fmt.Fprintln(b, headerStyle.Render("Tactics"))
		for _, tac := range r.Tactics {
			line(b, 1, tac.ID, tac.Name)
		}
	}
	if len(r.Subtechniques) > 0 {
		fmt.Fprintln(b, headerStyle.Render("Sub-techniques"))
		for _, sub := range r.Subtechniques {
			line(b, 1, sub.ID, sub.Name)
		}
	}
	if len(r.Mitigations) > 0 {
		fmt.Fprintln(b, headerStyle.Render("Mitigations"))
		for _, m := range r.Mitigations {
			line(b, 1, m.ID, m.Name)
		}
	}
	if len(r.Groups) > 0 {
		fmt.Fprintln(b, headerStyle.Render("Used by"))
		for _, g := range r.Groups {
			line(b, 1, g.ID, g.Name)
		}
	}
}

func renderTactics(b *strings.Builder, r *tools.TacticList) {
	fmt.Fprintln(b, titleStyle.Render(fmt.Sprintf("%d tactics", r.Count)))
	for _, t := range r.Tactics {
		fmt.Fprintf(b, "  %2d. %s  %s\n", t.Position, idStyle.Render(t.ID), t.Name)
	}
}

func renderGroup(b *strings.Builder, r *tools.GroupTechniques) {
	fmt.Fprintln(b, titleStyle.Render(r.Group.ID+"  "+r.Group.Name))
	if len(r.Group.Aliases) > 0 {
		fmt.Fprintf(b, "%s %s\n", mutedStyle.Render("aliases:"), strings.Join(r.Group.Aliases, ", "))
	}
	fmt.Fprintln(b, headerStyle.Render(fmt.Sprintf("Techniques (%d)", r.Count)))
	for _, t := range r.Techniques {
		line(b, 1, t.ID, t.Name)
	}
}

func renderMitigations(b *strings.Builder, r *tools.TechniqueMitigations) {
	fmt.Fprintln(b, titleStyle.Render(r.Technique.ID+"  "+r.Technique.Name))
	fmt.Fprintln(b, headerStyle.Render(fmt.Sprintf("Mitigations (%d)", r.Count)))
	for _, m := range r.Mitigations {
		line(b, 1, m.ID, m.Name)
	}
}

func renderAttackPath(b *strings.Builder, r *algorithms.AttackPath) {
	title := fmt.Sprintf("Attack path %s → %s", r.StartTactic, r.EndTactic)
	if r.GroupID != "" {
		title += " for " + r.GroupID
	}
	fmt.Fprintln(b, titleStyle.Render(title))
	for _, st := range r.Stages {
		marker := successStyle.Render("●")
		if st.Count == 0 {
			marker = errorStyle.Render("○")
		}
		fmt.Fprintf(b, "%s %d. %s  %s %s\n", marker, st.Position, idStyle.Render(st.TacticID), st.TacticName, mutedStyle.Render(fmt.Sprintf("(%d)", st.Count)))
		for _, t := range st.Techniques {
			line(b, 2, t.ID, t.Name)
		}
	}
	summary := fmt.Sprintf("%d/%d stages covered, %.2f%% complete", r.CoveredStages, r.TotalStages, r.Completeness)
	if len(r.Gaps) > 0 {
		summary += "\ngaps: " + strings.Join(r.Gaps, ", ")
	}
	fmt.Fprintln(b, boxStyle.Render(summary))
}

func renderCoverage(b *strings.Builder, r *algorithms.CoverageReport) {
	fmt.Fprintln(b, titleStyle.Render("Coverage gaps for "+strings.Join(r.Groups, ", ")))
	for _, g := range r.Gaps {
		fmt.Fprintf(b, "  %s  %s %s\n", idStyle.Render(g.TechniqueID), g.Name, mutedStyle.Render(fmt.Sprintf("[%s]", strings.Join(g.Groups, ", "))))
	}
	summary := fmt.Sprintf("%d of %d techniques unmitigated (%.2f%%)", r.GapCount, r.TotalTechniques, r.GapPercentage)
	if len(r.ExcludeMitigations) > 0 {
		summary += "\nexcluded: " + strings.Join(r.ExcludeMitigations, ", ")
	}
	fmt.Fprintln(b, boxStyle.Render(summary))
}

func renderNodes(b *strings.Builder, indent int, nodes []*algorithms.RelatedNode) {
	for _, n := range nodes {
		fmt.Fprintf(b, "%s%s  %s %s\n", strings.Repeat("  ", indent), idStyle.Render(n.ID), n.Name,
			mutedStyle.Render(fmt.Sprintf("(%s, hop %d via %s)", n.Kind, n.Hop, n.Via)))
		renderNodes(b, indent+1, n.Subtechniques)
	}
}

func renderTree(b *strings.Builder, r *algorithms.RelationshipTree) {
	fmt.Fprintln(b, titleStyle.Render(fmt.Sprintf("%s  %s (depth %d)", r.TechniqueID, r.Name, r.Depth)))
	sections := []struct {
		name  string
		nodes []*algorithms.RelatedNode
	}{
		{"Sub-techniques", r.Subtechniques},
		{"Attribution", r.Attribution},
		{"Detection", r.Detection},
		{"Mitigation", r.Mitigation},
		{"Hierarchy", r.Hierarchy},
		{"Other", r.Other},
	}
	for _, s := range sections {
		if len(s.nodes) == 0 {
			continue
		}
		fmt.Fprintln(b, headerStyle.Render(s.name))
		renderNodes(b, 1, s.nodes)
	}
	fmt.Fprintln(b, mutedStyle.Render(fmt.Sprintf("%d related nodes", r.TotalNodes)))
}

func renderStatus(b *strings.Builder, r *tools.LoadStatus) {
	state := successStyle.Render(string(r.State))
	if r.SnapshotID == "" {
		state = errorStyle.Render(string(r.State))
	}
	fmt.Fprintf(b, "%s %s\n", titleStyle.Render("Knowledge base"), state)
	fmt.Fprintf(b, "  source:        %s\n", r.Source)
	if r.SnapshotID != "" {
		fmt.Fprintf(b, "  snapshot:      %s\n", r.SnapshotID)
	}
	if r.LoadedAt != nil {
		fmt.Fprintf(b, "  loaded at:     %s\n", r.LoadedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if r.LastError != "" {
		fmt.Fprintf(b, "  last error:    %s\n", errorStyle.Render(r.LastError))
	}
	fmt.Fprintf(b, "  loads:         %d (%d failed)\n", r.Loads, r.Failures)
	fmt.Fprintf(b, "  entities:      %d techniques, %d tactics, %d groups, %d mitigations\n",
		r.Counts.Techniques, r.Counts.Tactics, r.Counts.Groups, r.Counts.Mitigations)
	fmt.Fprintf(b, "  relationships: %d (%d dropped)\n", r.Relationships, r.DroppedRelationships)
	for _, w := range r.Warnings {
		fmt.Fprintf(b, "  %s %s\n", mutedStyle.Render("warn:"), w.Message)
	}
	if r.WarningCount > len(r.Warnings) {
		fmt.Fprintf(b, "  %s\n", mutedStyle.Render(fmt.Sprintf("... %d more warnings", r.WarningCount-len(r.Warnings))))
	}
}
