package stix

import "encoding/json"

// STIX object types mapped onto the knowledge base
const (
	TypeBundle         = "bundle"
	TypeAttackPattern  = "attack-pattern"
	TypeTactic         = "x-mitre-tactic"
	TypeIntrusionSet   = "intrusion-set"
	TypeCourseOfAction = "course-of-action"
	TypeRelationship   = "relationship"
)

const (
	sourceMITRE    = "mitre-attack"
	killChainMITRE = "mitre-attack"
)

type rawBundle struct {
	Type    string            `json:"type"`
	ID      string            `json:"id"`
	Objects []json.RawMessage `json:"objects"`
}

type externalReference struct {
	SourceName string `json:"source_name"`
	ExternalID string `json:"external_id,omitempty"`
	URL        string `json:"url,omitempty"`
}

type killChainPhase struct {
	KillChainName string `json:"kill_chain_name"`
	PhaseName     string `json:"phase_name"`
}

// object carries the union of the fields read from the supported types
type object struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Revoked     bool   `json:"revoked"`
	Deprecated  bool   `json:"x_mitre_deprecated"`

	ExternalReferences []externalReference `json:"external_references"`

	// attack-pattern
	KillChainPhases []killChainPhase `json:"kill_chain_phases"`
	Platforms       []string         `json:"x_mitre_platforms"`
	IsSubtechnique  bool             `json:"x_mitre_is_subtechnique"`

	// x-mitre-tactic
	ShortName string `json:"x_mitre_shortname"`

	// intrusion-set
	Aliases []string `json:"aliases"`

	// relationship
	RelationshipType string `json:"relationship_type"`
	SourceRef        string `json:"source_ref"`
	TargetRef        string `json:"target_ref"`
}

// attackID returns the ATT&CK external id (T1055, TA0001, G0016, M1040)
func (o *object) attackID() string {
	for _, ref := range o.ExternalReferences {
		if ref.SourceName == sourceMITRE && ref.ExternalID != "" {
			return ref.ExternalID
		}
	}
	return ""
}

// Stats describes what a decode pass kept and skipped
type Stats struct {
	BundleID             string         `json:"bundle_id"`
	Objects              int            `json:"objects"`
	ByType               map[string]int `json:"by_type"`
	Techniques           int            `json:"techniques"`
	Tactics              int            `json:"tactics"`
	Groups               int            `json:"groups"`
	Mitigations          int            `json:"mitigations"`
	Relationships        int            `json:"relationships"`
	SkippedRevoked       int            `json:"skipped_revoked"`
	SkippedNoID          int            `json:"skipped_no_id"`
	SkippedRelationships int            `json:"skipped_relationships"`
}
