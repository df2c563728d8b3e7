package model

// killChain is the canonical enterprise tactic ordering. Position is the slice index.
var killChain = []Tactic{
	{ID: "TA0043", Name: "Reconnaissance", ShortName: "reconnaissance"},
	{ID: "TA0042", Name: "Resource Development", ShortName: "resource-development"},
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
}

var killChainIndex = func() map[string]int {
	idx := make(map[string]int, len(killChain))
	for i, t := range killChain {
		idx[t.ID] = i
	}
	return idx
}()

// KillChainPosition returns the canonical position of a tactic id.
func KillChainPosition(tacticID string) (int, bool) {
	pos, ok := killChainIndex[tacticID]
	return pos, ok
}

// CanonicalTactics returns a copy of the canonical kill chain with positions set.
func CanonicalTactics() []Tactic {
	out := make([]Tactic, len(killChain))
	for i, t := range killChain {
		t.Position = i
		out[i] = t
	}
	return out
}

// CanonicalTacticByShortName resolves a kill-chain phase name such as "initial-access".
func CanonicalTacticByShortName(shortName string) (Tactic, bool) {
	for i, t := range killChain {
		if t.ShortName == shortName {
			t.Position = i
			return t, true
		}
	}
	return Tactic{}, false
}
