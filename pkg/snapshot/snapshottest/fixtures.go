// Package snapshottest provides small ATT&CK bundles and snapshot helpers for
// tests in other packages.
package snapshottest

import (
	"testing"
	"time"

	"github.com/dd0wney/cluso-attackgraph/pkg/model"
	"github.com/dd0wney/cluso-attackgraph/pkg/snapshot"
)

// LoadedAt is the fixed timestamp given to fixture snapshots
var LoadedAt = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// ScenarioBundle holds T1055 (TA0004, TA0005), T1001, group G0016 using both
// techniques and M1040 mitigating T1055. Initial Access is loaded but has no
// techniques.
func ScenarioBundle() *model.ParsedBundle {
	return &model.ParsedBundle{
		Techniques: []model.Technique{
			{ID: "T1055", Name: "Process Injection", Description: "Adversaries may inject code into processes.", Platforms: []string{"Windows", "Linux", "macOS"}, TacticIDs: []string{"TA0004", "TA0005"}},
			{ID: "T1001", Name: "Data Obfuscation", Description: "Adversaries may obfuscate command and control traffic.", Platforms: []string{"Windows", "Linux", "macOS"}, TacticIDs: []string{"TA0011"}},
		},
		Tactics: []model.Tactic{
			{ID: "TA0001", Name: "Initial Access", ShortName: "initial-access"},
			{ID: "TA0002", Name: "Execution", ShortName: "execution"},
			{ID: "TA0003", Name: "Persistence", ShortName: "persistence"},
			{ID: "TA0004", Name: "Privilege Escalation", ShortName: "privilege-escalation"},
			{ID: "TA0005", Name: "Defense Evasion", ShortName: "defense-evasion"},
			{ID: "TA0011", Name: "Command and Control", ShortName: "command-and-control"},
		},
		Groups: []model.Group{
			{ID: "G0016", Name: "APT29", Description: "Russian state-sponsored group.", Aliases: []string{"Cozy Bear", "NOBELIUM"}},
		},
		Mitigations: []model.Mitigation{
			{ID: "M1040", Name: "Behavior Prevention on Endpoint", Description: "Prevent suspicious behavior patterns on endpoints."},
		},
		Relationships: []model.Relationship{
			{SourceID: "G0016", TargetID: "T1055", Type: model.RelUses},
			{SourceID: "G0016", TargetID: "T1001", Type: model.RelUses},
			{SourceID: "M1040", TargetID: "T1055", Type: model.RelMitigates},
		},
	}
}

// EnterpriseBundle is a richer bundle: three groups, sub-techniques resolved
// both by record and by id prefix, two dangling relationships and a kill
// chain missing Resource Development (TA0042).
func EnterpriseBundle() *model.ParsedBundle {
	all := []string{"Windows", "Linux", "macOS"}
	return &model.ParsedBundle{
		Techniques: []model.Technique{
			{ID: "T1595", Name: "Active Scanning", Description: "Adversaries may scan victim infrastructure.", Platforms: []string{"PRE"}, TacticIDs: []string{"TA0043"}},
			{ID: "T1566", Name: "Phishing", Description: "Adversaries may send phishing messages.", Platforms: all, TacticIDs: []string{"TA0001"}},
			{ID: "T1566.001", Name: "Spearphishing Attachment", Description: "Phishing with a malicious attachment.", Platforms: all, TacticIDs: []string{"TA0001"}},
			{ID: "T1059", Name: "Command and Scripting Interpreter", Description: "Adversaries may abuse interpreters.", Platforms: all, TacticIDs: []string{"TA0002"}},
			{ID: "T1059.001", Name: "PowerShell", Description: "Adversaries may abuse PowerShell.", Platforms: []string{"Windows"}, TacticIDs: []string{"TA0002"}},
			{ID: "T1055", Name: "Process Injection", Description: "Adversaries may inject code into processes.", Platforms: all, TacticIDs: []string{"TA0004", "TA0005"}},
			{ID: "T1055.001", Name: "Dynamic-link Library Injection", Description: "Adversaries may inject DLLs into processes.", Platforms: []string{"Windows"}, TacticIDs: []string{"TA0004", "TA0005"}},
			{ID: "T1003", Name: "OS Credential Dumping", Description: "Adversaries may dump credentials.", Platforms: []string{"Windows", "Linux"}, TacticIDs: []string{"TA0006"}},
			{ID: "T1021", Name: "Remote Services", Description: "Adversaries may log into remote services.", Platforms: all, TacticIDs: []string{"TA0008"}},
			{ID: "T1001", Name: "Data Obfuscation", Description: "Adversaries may obfuscate command and control traffic.", Platforms: all, TacticIDs: []string{"TA0011"}},
			{ID: "T1486", Name: "Data Encrypted for Impact", Description: "Adversaries may encrypt data to interrupt availability.", Platforms: []string{"Windows", "Linux"}, TacticIDs: []string{"TA0040"}},
		},
		Tactics: []model.Tactic{
			{ID: "TA0043", Name: "Reconnaissance", ShortName: "reconnaissance"},
			{ID: "TA0001", Name: "Initial Access", ShortName: "initial-access"},
			{ID: "TA0002", Name: "Execution", ShortName: "execution"},
			{ID: "TA0003", Name: "Persistence", ShortName: "persistence"},
			{ID: "TA0004", Name: "Privilege Escalation", ShortName: "privilege-escalation"},
			{ID: "TA0005", Name: "Defense Evasion", ShortName: "defense-evasion"},
			{ID: "TA0006", Name: "Credential Access", ShortName: "credential-access"},
			{ID: "TA0007", Name: "Discovery", ShortName: "discovery"},
			{ID: "TA0008", Name: "Lateral Movement", ShortName: "lateral-movement"},
			{ID: "TA0009", Name: "Collection", ShortName: "collection"},
			{ID: "TA0011", Name: "Command and Control", ShortName: "command-and-control"},
			{ID: "TA0010", Name: "Exfiltration", ShortName: "exfiltration"},
			{ID: "TA0040", Name: "Impact", ShortName: "impact"},
		},
		Groups: []model.Group{
			{ID: "G0016", Name: "APT29", Description: "Russian state-sponsored group.", Aliases: []string{"Cozy Bear", "NOBELIUM"}},
			{ID: "G0007", Name: "APT28", Description: "Russian military intelligence group.", Aliases: []string{"Fancy Bear", "Sofacy"}},
			{ID: "G0032", Name: "Lazarus Group", Description: "North Korean state-sponsored group.", Aliases: []string{"HIDDEN COBRA"}},
		},
		Mitigations: []model.Mitigation{
			{ID: "M1040", Name: "Behavior Prevention on Endpoint", Description: "Prevent suspicious behavior patterns on endpoints."},
			{ID: "M1049", Name: "Antivirus/Antimalware", Description: "Detect and quarantine malicious software."},
			{ID: "M1026", Name: "Privileged Account Management", Description: "Manage privileged accounts."},
		},
		Relationships: []model.Relationship{
			{SourceID: "G0016", TargetID: "T1055", Type: model.RelUses},
			{SourceID: "G0016", TargetID: "T1001", Type: model.RelUses},
			{SourceID: "G0007", TargetID: "T1566.001", Type: model.RelUses},
			{SourceID: "G0007", TargetID: "T1055", Type: model.RelUses},
			{SourceID: "G0007", TargetID: "T1003", Type: model.RelUses},
			{SourceID: "G0007", TargetID: "T1059.001", Type: model.RelUses},
			{SourceID: "G0032", TargetID: "T1566", Type: model.RelUses},
			{SourceID: "G0032", TargetID: "T1059", Type: model.RelUses},
			{SourceID: "G0032", TargetID: "T1486", Type: model.RelUses},
			{SourceID: "G0032", TargetID: "T1055", Type: model.RelUses},
			{SourceID: "M1040", TargetID: "T1055", Type: model.RelMitigates},
			{SourceID: "M1040", TargetID: "T1486", Type: model.RelMitigates},
			{SourceID: "M1049", TargetID: "T1566.001", Type: model.RelMitigates},
			{SourceID: "M1049", TargetID: "T1059", Type: model.RelMitigates},
			{SourceID: "M1026", TargetID: "T1003", Type: model.RelMitigates},
			{SourceID: "M1026", TargetID: "T1021", Type: model.RelMitigates},
			{SourceID: "T1566.001", TargetID: "T1566", Type: model.RelSubtechniqueOf},
			{SourceID: "T1059.001", TargetID: "T1059", Type: model.RelSubtechniqueOf},
			{SourceID: "G0016", TargetID: "T9999", Type: model.RelUses},
			{SourceID: "S0002", TargetID: "T1003", Type: model.RelUses},
		},
	}
}

// Build constructs a snapshot from bundle and fails the test on error
func Build(tb testing.TB, bundle *model.ParsedBundle) *snapshot.Snapshot {
	tb.Helper()
	snap, err := snapshot.Build(bundle, snapshot.Options{
		Source: "fixture",
		Now:    func() time.Time { return LoadedAt },
	})
	if err != nil {
		tb.Fatalf("snapshot.Build: %v", err)
	}
	return snap
}

// Scenario builds ScenarioBundle
func Scenario(tb testing.TB) *snapshot.Snapshot {
	tb.Helper()
	return Build(tb, ScenarioBundle())
}

// Enterprise builds EnterpriseBundle
func Enterprise(tb testing.TB) *snapshot.Snapshot {
	tb.Helper()
	return Build(tb, EnterpriseBundle())
}
