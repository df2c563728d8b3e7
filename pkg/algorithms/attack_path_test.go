package algorithms

import (
	"testing"

	"github.com/dd0wney/cluso-attackgraph/pkg/model"
	"github.com/dd0wney/cluso-attackgraph/pkg/snapshot/snapshottest"
)

func TestBuildAttackPath_GroupWithEmptyStage(t *testing.T) {
	snap := snapshottest.Scenario(t)

	path, err := BuildAttackPath(snap, AttackPathOptions{StartTactic: "TA0001", EndTactic: "TA0004", GroupID: "G0016"})
	if err != nil {
		t.Fatalf("BuildAttackPath failed: %v", err)
	}

	if len(path.Stages) != 4 {
		t.Fatalf("expected 4 stages, got %d", len(path.Stages))
	}
	first := path.Stages[0]
	if first.TacticID != "TA0001" || first.Count != 0 || first.Techniques == nil {
		t.Errorf("first stage = %+v, want empty TA0001 stage", first)
	}
	assertIDs(t, "TA0004 stage", stageIDs(path.Stages[3]), []string{"T1055"})

	if path.Completeness >= 100 || path.Completeness != 25 {
		t.Errorf("completeness = %v, want 25", path.Completeness)
	}
	assertIDs(t, "gaps", path.Gaps, []string{"TA0001", "TA0002", "TA0003"})
}

func TestBuildAttackPath_FullChainWithPlatform(t *testing.T) {
	snap := snapshottest.Enterprise(t)

	path, err := BuildAttackPath(snap, AttackPathOptions{StartTactic: "TA0043", EndTactic: "TA0040", Platform: "windows"})
	if err != nil {
		t.Fatal(err)
	}

	if path.TotalStages != 14 || len(path.Stages) != 14 {
		t.Fatalf("expected 14 stages, got %d", len(path.Stages))
	}

	// Resource Development is canonical but absent from the bundle
	rd := path.Stages[1]
	if rd.TacticID != "TA0042" || rd.TacticName != "Resource Development" || rd.Count != 0 {
		t.Errorf("unexpected TA0042 stage %+v", rd)
	}

	assertIDs(t, "TA0001", stageIDs(path.Stages[2]), []string{"T1566", "T1566.001"})
	assertIDs(t, "TA0004", stageIDs(path.Stages[5]), []string{"T1055", "T1055.001"})
	assertIDs(t, "TA0005", stageIDs(path.Stages[6]), []string{"T1055", "T1055.001"})
	assertIDs(t, "gaps", path.Gaps, []string{"TA0043", "TA0042", "TA0003", "TA0007", "TA0009", "TA0010"})

	if path.CoveredStages != 8 || path.Completeness != 57.14 {
		t.Errorf("covered=%d completeness=%v, want 8 and 57.14", path.CoveredStages, path.Completeness)
	}
}

func TestBuildAttackPath_StagesFollowKillChain(t *testing.T) {
	snap := snapshottest.Enterprise(t)

	path, err := BuildAttackPath(snap, AttackPathOptions{StartTactic: "TA0001", EndTactic: "TA0006", GroupID: "G0007"})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"TA0001", "TA0002", "TA0003", "TA0004", "TA0005", "TA0006"}
	for i, s := range path.Stages {
		if s.TacticID != want[i] {
			t.Errorf("stage %d = %s, want %s", i, s.TacticID, want[i])
		}
		if i > 0 && s.Position <= path.Stages[i-1].Position {
			t.Errorf("stage %d position %d not increasing", i, s.Position)
		}
	}
	assertIDs(t, "TA0002", stageIDs(path.Stages[1]), []string{"T1059.001"})
	if path.Completeness != 83.33 {
		t.Errorf("completeness = %v, want 83.33", path.Completeness)
	}
}

func TestBuildAttackPath_SingleStage(t *testing.T) {
	snap := snapshottest.Scenario(t)

	path, err := BuildAttackPath(snap, AttackPathOptions{StartTactic: "TA0011", EndTactic: "TA0011"})
	if err != nil {
		t.Fatal(err)
	}
	if path.TotalStages != 1 || path.Completeness != 100 {
		t.Errorf("got %d stages at %v%%", path.TotalStages, path.Completeness)
	}
}

func TestBuildAttackPath_Errors(t *testing.T) {
	snap := snapshottest.Enterprise(t)

	tests := []struct {
		name string
		opts AttackPathOptions
		want model.ErrorKind
	}{
		{"reversed", AttackPathOptions{StartTactic: "TA0040", EndTactic: "TA0001"}, model.KindInvalidParameter},
		{"unknown start", AttackPathOptions{StartTactic: "TA9999", EndTactic: "TA0040"}, model.KindInvalidParameter},
		{"unknown end", AttackPathOptions{StartTactic: "TA0001", EndTactic: "TA9999"}, model.KindInvalidParameter},
		{"unloaded tactic", AttackPathOptions{StartTactic: "TA0042", EndTactic: "TA0040"}, model.KindInvalidParameter},
		{"unknown group", AttackPathOptions{StartTactic: "TA0001", EndTactic: "TA0040", GroupID: "G9999"}, model.KindEntityNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildAttackPath(snap, tt.opts)
			assertKind(t, err, tt.want)
		})
	}
}

func TestBuildAttackPath_UnmatchedPlatform(t *testing.T) {
	snap := snapshottest.Enterprise(t)

	path, err := BuildAttackPath(snap, AttackPathOptions{StartTactic: "TA0001", EndTactic: "TA0040", Platform: "Android"})
	if err != nil {
		t.Fatal(err)
	}
	if path.CoveredStages != 0 || path.Completeness != 0 {
		t.Errorf("expected an empty path, got %d covered stages", path.CoveredStages)
	}
	if len(path.Gaps) != path.TotalStages {
		t.Errorf("gaps = %d, stages = %d", len(path.Gaps), path.TotalStages)
	}
}
