package snapshot_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dd0wney/cluso-attackgraph/pkg/model"
	"github.com/dd0wney/cluso-attackgraph/pkg/snapshot"
	"github.com/dd0wney/cluso-attackgraph/pkg/snapshot/snapshottest"
)

func TestBuild_Scenario(t *testing.T) {
	snap := snapshottest.Scenario(t)

	if snap.ID == "" {
		t.Error("snapshot id not assigned")
	}
	if !snap.LoadedAt.Equal(snapshottest.LoadedAt) {
		t.Errorf("LoadedAt = %v", snap.LoadedAt)
	}
	if len(snap.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", snap.Warnings)
	}

	g, err := snap.Store.Group("G0016")
	if err != nil {
		t.Fatalf("Group(G0016): %v", err)
	}
	if !reflect.DeepEqual(g.TechniqueIDs, []string{"T1055", "T1001"}) {
		t.Errorf("G0016 techniques = %v", g.TechniqueIDs)
	}

	tech, _ := snap.Store.Technique("T1055")
	if !reflect.DeepEqual(tech.MitigationIDs, []string{"M1040"}) {
		t.Errorf("T1055 mitigations = %v", tech.MitigationIDs)
	}
	m, _ := snap.Store.Mitigation("M1040")
	if !reflect.DeepEqual(m.TechniqueIDs, []string{"T1055"}) {
		t.Errorf("M1040 techniques = %v", m.TechniqueIDs)
	}

	if snap.Stats.Relationships != 3 || snap.Stats.DroppedRelationships != 0 {
		t.Errorf("unexpected stats %+v", snap.Stats)
	}
}

func TestBuild_MalformedBundle(t *testing.T) {
	tests := []struct {
		name   string
		bundle *model.ParsedBundle
	}{
		{"nil bundle", nil},
		{"missing techniques", &model.ParsedBundle{Tactics: []model.Tactic{}, Groups: []model.Group{}, Mitigations: []model.Mitigation{}}},
		{"missing mitigations", &model.ParsedBundle{Techniques: []model.Technique{}, Tactics: []model.Tactic{}, Groups: []model.Group{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := snapshot.Build(tt.bundle, snapshot.Options{})
			if !errors.Is(err, model.ErrMalformedBundle) {
				t.Errorf("expected ErrMalformedBundle, got %v", err)
			}
		})
	}
}

func TestBuild_EmptyListsAreValid(t *testing.T) {
	snap, err := snapshot.Build(&model.ParsedBundle{
		Techniques:  []model.Technique{},
		Tactics:     []model.Tactic{},
		Groups:      []model.Group{},
		Mitigations: []model.Mitigation{},
	}, snapshot.Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if snap.Stats.Entities.Total() != 0 {
		t.Errorf("expected empty store, got %+v", snap.Stats.Entities)
	}
}

func TestBuild_DanglingRelationshipsBecomeWarnings(t *testing.T) {
	snap := snapshottest.Enterprise(t)

	if snap.Stats.DroppedRelationships != 2 {
		t.Fatalf("dropped = %d, want 2", snap.Stats.DroppedRelationships)
	}

	var partial int
	for _, w := range snap.Warnings {
		if !errors.Is(w, model.ErrPartialData) {
			t.Errorf("warning %v does not wrap ErrPartialData", w)
		}
		if w.Kind == model.PartialDataWarning && w.Type == model.RelUses {
			partial++
		}
	}
	if partial != 2 {
		t.Errorf("expected 2 relationship warnings, got %d", partial)
	}

	// Every indexed endpoint resolves in the store
	total := len(snapshottest.EnterpriseBundle().Relationships)
	if snap.Stats.Relationships+snap.Stats.DroppedRelationships != total {
		t.Errorf("indexed %d + dropped %d != %d", snap.Stats.Relationships, snap.Stats.DroppedRelationships, total)
	}
}

func TestBuild_SubtechniqueResolution(t *testing.T) {
	snap := snapshottest.Enterprise(t)

	tests := []struct {
		parent   string
		children []string
	}{
		{"T1566", []string{"T1566.001"}},
		{"T1059", []string{"T1059.001"}},
		{"T1055", []string{"T1055.001"}}, // no record, resolved by id prefix
	}
	for _, tt := range tests {
		t.Run(tt.parent, func(t *testing.T) {
			parent, err := snap.Store.Technique(tt.parent)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(parent.SubtechniqueIDs, tt.children) {
				t.Errorf("children = %v, want %v", parent.SubtechniqueIDs, tt.children)
			}
			child, _ := snap.Store.Technique(tt.children[0])
			if child.ParentID != tt.parent {
				t.Errorf("ParentID = %q, want %q", child.ParentID, tt.parent)
			}
		})
	}
}

func TestBuild_MixedSubtechniqueRecords(t *testing.T) {
	bundle := snapshottest.ScenarioBundle()
	bundle.Techniques = append(bundle.Techniques,
		model.Technique{ID: "T1055.001", Name: "Dynamic-link Library Injection", TacticIDs: []string{"TA0004"}},
		model.Technique{ID: "T1055.002", Name: "Portable Executable Injection", TacticIDs: []string{"TA0004"}},
	)
	bundle.Relationships = append(bundle.Relationships,
		model.Relationship{SourceID: "T1055.001", TargetID: "T1055", Type: model.RelSubtechniqueOf},
	)
	snap := snapshottest.Build(t, bundle)

	parent, _ := snap.Store.Technique("T1055")
	if want := []string{"T1055.001", "T1055.002"}; !reflect.DeepEqual(parent.SubtechniqueIDs, want) {
		t.Errorf("children = %v, want %v", parent.SubtechniqueIDs, want)
	}
	for _, id := range []string{"T1055.001", "T1055.002"} {
		child, _ := snap.Store.Technique(id)
		if child.ParentID != "T1055" {
			t.Errorf("%s ParentID = %q, want T1055", id, child.ParentID)
		}
	}
}

func TestBuild_DropsBadEntities(t *testing.T) {
	bundle := snapshottest.ScenarioBundle()
	bundle.Techniques = append(bundle.Techniques,
		model.Technique{ID: "", Name: "No id"},
		model.Technique{ID: "T1055", Name: "Duplicate"},
		model.Technique{ID: "T1027", Name: "Obfuscated Files", TacticIDs: []string{"TA0005", "TA0005", "TA9999"}},
	)
	bundle.Tactics = append(bundle.Tactics, model.Tactic{ID: "TA0100", Name: "Not canonical"})
	bundle.Groups = append(bundle.Groups, model.Group{ID: "T1001", Name: "Collides with a technique"})

	snap := snapshottest.Build(t, bundle)

	if snap.Stats.DroppedEntities != 4 {
		t.Errorf("DroppedEntities = %d, want 4", snap.Stats.DroppedEntities)
	}
	tech, _ := snap.Store.Technique("T1055")
	if tech.Name != "Process Injection" {
		t.Errorf("first record should win, got %q", tech.Name)
	}
	obf, err := snap.Store.Technique("T1027")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(obf.TacticIDs, []string{"TA0005"}) {
		t.Errorf("TacticIDs = %v, want deduplicated known tactics", obf.TacticIDs)
	}
	if _, err := snap.Store.Tactic("TA0100"); !model.IsNotFound(err) {
		t.Errorf("non-canonical tactic should be dropped, got %v", err)
	}
}

func TestBuild_PositionsComeFromKillChain(t *testing.T) {
	bundle := snapshottest.ScenarioBundle()
	bundle.Tactics[0].Position = 99

	snap := snapshottest.Build(t, bundle)
	tactics := snap.Store.Tactics()
	for i := 1; i < len(tactics); i++ {
		if tactics[i-1].Position >= tactics[i].Position {
			t.Fatalf("tactics out of kill-chain order: %v", tactics)
		}
	}
	ta, _ := snap.Store.Tactic("TA0001")
	if ta.Position != 2 {
		t.Errorf("TA0001 position = %d, want 2", ta.Position)
	}
}

func TestBuild_DoesNotAliasInput(t *testing.T) {
	bundle := snapshottest.ScenarioBundle()
	snap := snapshottest.Build(t, bundle)

	bundle.Techniques[0].Platforms[0] = "Plan9"
	tech, _ := snap.Store.Technique("T1055")
	if tech.Platforms[0] != "Windows" {
		t.Error("snapshot shares platform slice with the input bundle")
	}
}
