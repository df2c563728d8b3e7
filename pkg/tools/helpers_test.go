package tools

import "github.com/dd0wney/cluso-attackgraph/pkg/validation"

func searchReq(q string) validation.SearchRequest {
	return validation.SearchRequest{Query: strPtr(q)}
}

func techniqueReq(id string) validation.TechniqueRequest {
	return validation.TechniqueRequest{TechniqueID: id}
}

func groupReq(id string) validation.GroupRequest {
	return validation.GroupRequest{GroupID: id}
}

func attackPathReq(start, end, group string) validation.AttackPathRequest {
	return validation.AttackPathRequest{StartTactic: start, EndTactic: end, GroupID: group}
}

func coverageReq(groups ...string) validation.CoverageRequest {
	return validation.CoverageRequest{ThreatGroups: groups}
}

func relReq(id string, depth *int) validation.RelationshipsRequest {
	return validation.RelationshipsRequest{TechniqueID: id, Depth: depth}
}
