package stix

import (
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-attackgraph/pkg/model"
)

func decodeFixture(t *testing.T) *Result {
	t.Helper()
	f, err := os.Open("testdata/enterprise-mini.json")
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()

	res, err := DecodeResult(f)
	if err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	return res
}

func techniqueIDs(ts []model.Technique) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func TestDecode_Entities(t *testing.T) {
	res := decodeFixture(t)
	b := res.Bundle

	wantTechniques := []string{"T1566", "T1566.001", "T1059", "T1055", "T1001", "T1003"}
	if got := techniqueIDs(b.Techniques); !reflect.DeepEqual(got, wantTechniques) {
		t.Errorf("techniques = %v, want %v", got, wantTechniques)
	}
	if len(b.Tactics) != 5 || len(b.Groups) != 2 || len(b.Mitigations) != 1 {
		t.Errorf("counts: tactics=%d groups=%d mitigations=%d", len(b.Tactics), len(b.Groups), len(b.Mitigations))
	}

	g := b.Groups[0]
	if g.ID != "G0016" || !reflect.DeepEqual(g.Aliases, []string{"Cozy Bear", "NOBELIUM"}) {
		t.Errorf("group = %+v", g)
	}
	if b.Tactics[0].ShortName != "initial-access" {
		t.Errorf("tactic short name = %q", b.Tactics[0].ShortName)
	}
	if b.Mitigations[0].ID != "M1040" {
		t.Errorf("mitigation = %+v", b.Mitigations[0])
	}
}

func TestDecode_KillChainPhases(t *testing.T) {
	b := decodeFixture(t).Bundle

	tests := []struct {
		id      string
		tactics []string
	}{
		{"T1566", []string{"TA0001"}},
		{"T1055", []string{"TA0004", "TA0005"}}, // mobile phases ignored
		{"T1003", []string{"TA0006"}},           // resolved from the canonical kill chain
	}
	byID := make(map[string]model.Technique)
	for _, tech := range b.Techniques {
		byID[tech.ID] = tech
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := byID[tt.id].TacticIDs; !reflect.DeepEqual(got, tt.tactics) {
				t.Errorf("TacticIDs = %v, want %v", got, tt.tactics)
			}
		})
	}
	if got := byID["T1055"].Platforms; !reflect.DeepEqual(got, []string{"Windows", "Linux", "macOS"}) {
		t.Errorf("platforms = %v", got)
	}
}

func TestDecode_Relationships(t *testing.T) {
	res := decodeFixture(t)

	want := []model.Relationship{
		{SourceID: "G0016", TargetID: "T1055", Type: model.RelUses},
		{SourceID: "G0016", TargetID: "T1001", Type: model.RelUses},
		{SourceID: "M1040", TargetID: "T1055", Type: model.RelMitigates},
		{SourceID: "T1566.001", TargetID: "T1566", Type: model.RelSubtechniqueOf},
		{SourceID: "G0007", TargetID: "T1566.001", Type: model.RelUses},
		{SourceID: "G0007", TargetID: "attack-pattern--missing", Type: model.RelUses},
	}
	if !reflect.DeepEqual(res.Bundle.Relationships, want) {
		t.Errorf("relationships =\n%v\nwant\n%v", res.Bundle.Relationships, want)
	}
	if res.Stats.SkippedRelationships != 5 {
		t.Errorf("SkippedRelationships = %d, want 5", res.Stats.SkippedRelationships)
	}
}

func TestDecode_Stats(t *testing.T) {
	s := decodeFixture(t).Stats

	if s.BundleID != "bundle--mini" {
		t.Errorf("BundleID = %q", s.BundleID)
	}
	if s.Objects != 32 {
		t.Errorf("Objects = %d, want 32", s.Objects)
	}
	if s.ByType[TypeAttackPattern] != 9 || s.ByType[TypeRelationship] != 11 {
		t.Errorf("ByType = %v", s.ByType)
	}
	if s.SkippedRevoked != 2 {
		t.Errorf("SkippedRevoked = %d, want 2", s.SkippedRevoked)
	}
	if s.SkippedNoID != 2 {
		t.Errorf("SkippedNoID = %d, want 2", s.SkippedNoID)
	}
	if s.Techniques != 6 || s.Relationships != 6 {
		t.Errorf("Techniques=%d Relationships=%d", s.Techniques, s.Relationships)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", "{"},
		{"not a bundle", `{"type":"x-mitre-collection","objects":[]}`},
		{"bad object", `{"type":"bundle","objects":[42]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			if !errors.Is(err, model.ErrMalformedBundle) {
				t.Errorf("expected ErrMalformedBundle, got %v", err)
			}
		})
	}
}

func TestDecode_EmptyBundle(t *testing.T) {
	b, err := Decode(strings.NewReader(`{"type":"bundle","id":"bundle--empty","objects":[]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if b.Techniques == nil || b.Tactics == nil || b.Groups == nil || b.Mitigations == nil {
		t.Error("entity lists of an empty bundle must be non-nil")
	}
}
