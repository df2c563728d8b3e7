package model

import "strings"

// Kind identifies one of the four entity kinds held by the knowledge base.
type Kind string

const (
	KindTechnique  Kind = "technique"
	KindTactic     Kind = "tactic"
	KindGroup      Kind = "group"
	KindMitigation Kind = "mitigation"
)

// Kinds returns every entity kind in kind-major order.
func Kinds() []Kind {
	return []Kind{KindTechnique, KindTactic, KindGroup, KindMitigation}
}

// Relationship types found in ATT&CK bundles
const (
	RelUses           = "uses"
	RelMitigates      = "mitigates"
	RelDetects        = "detects"
	RelSubtechniqueOf = "subtechnique-of"
	RelAttributedTo   = "attributed-to"
	RelRevokedBy      = "revoked-by"
)

// KnownRelationshipTypes lists the relationship types the engine understands
// without having seen them in a bundle.
func KnownRelationshipTypes() []string {
	return []string{RelUses, RelMitigates, RelDetects, RelSubtechniqueOf, RelAttributedTo, RelRevokedBy}
}

// Entity is the capability shared by every entity kind
type Entity interface {
	EntityID() string
	EntityName() string
	EntityDescription() string
	EntityKind() Kind
}

// Technique is an ATT&CK technique or sub-technique (e.g. T1055, T1055.001)
type Technique struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Platforms   []string `json:"platforms"`
	TacticIDs   []string `json:"tactic_ids"`

	// Derived from relationships at load time
	MitigationIDs   []string `json:"mitigation_ids"`
	ParentID        string   `json:"parent_id,omitempty"`
	SubtechniqueIDs []string `json:"subtechnique_ids,omitempty"`
}

func (t Technique) EntityID() string          { return t.ID }
func (t Technique) EntityName() string        { return t.Name }
func (t Technique) EntityDescription() string { return t.Description }
func (t Technique) EntityKind() Kind          { return KindTechnique }

// IsSubtechnique reports whether the id carries a dotted sub-technique suffix.
func (t Technique) IsSubtechnique() bool {
	return strings.Contains(t.ID, ".")
}

// HasTactic reports whether the technique belongs to the given tactic.
func (t Technique) HasTactic(tacticID string) bool {
	for _, id := range t.TacticIDs {
		if id == tacticID {
			return true
		}
	}
	return false
}

// HasPlatform compares platform names case-insensitively.
func (t Technique) HasPlatform(platform string) bool {
	for _, p := range t.Platforms {
		if strings.EqualFold(p, platform) {
			return true
		}
	}
	return false
}

// Tactic is a kill-chain stage (e.g. TA0001 Initial Access)
type Tactic struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ShortName   string `json:"short_name,omitempty"`
	Position    int    `json:"position"`
}

func (t Tactic) EntityID() string          { return t.ID }
func (t Tactic) EntityName() string        { return t.Name }
func (t Tactic) EntityDescription() string { return t.Description }
func (t Tactic) EntityKind() Kind          { return KindTactic }

// Group is a threat actor (intrusion set)
type Group struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases"`

	// Derived from "uses" relationships
	TechniqueIDs []string `json:"technique_ids"`
}

func (g Group) EntityID() string          { return g.ID }
func (g Group) EntityName() string        { return g.Name }
func (g Group) EntityDescription() string { return g.Description }
func (g Group) EntityKind() Kind          { return KindGroup }

// Mitigation is a defensive control (course of action)
type Mitigation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// Derived from "mitigates" relationships
	TechniqueIDs []string `json:"technique_ids"`
}

func (m Mitigation) EntityID() string          { return m.ID }
func (m Mitigation) EntityName() string        { return m.Name }
func (m Mitigation) EntityDescription() string { return m.Description }
func (m Mitigation) EntityKind() Kind          { return KindMitigation }

// Relationship is a directed, typed edge between two entity ids
type Relationship struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Type     string `json:"type"`
}

// ParsedBundle is the validated record set produced by a bundle parser.
// A nil entity list means the list was missing from the source document.
type ParsedBundle struct {
	Techniques    []Technique
	Tactics       []Tactic
	Groups        []Group
	Mitigations   []Mitigation
	Relationships []Relationship
}

// WarningKind classifies non-fatal load findings
type WarningKind string

const (
	// PartialDataWarning marks records dropped because they referenced missing data
	PartialDataWarning WarningKind = "PartialDataWarning"
)

// Warning is a non-fatal finding recorded while building a snapshot
type Warning struct {
	Kind     WarningKind `json:"kind"`
	Message  string      `json:"message"`
	SourceID string      `json:"source_id,omitempty"`
	TargetID string      `json:"target_id,omitempty"`
	Type     string      `json:"type,omitempty"`
}

// Error makes a warning usable with errors.Is(w, ErrPartialData).
func (w Warning) Error() string {
	return w.Message
}

// Unwrap ties every warning to the partial-data sentinel.
func (w Warning) Unwrap() error {
	return ErrPartialData
}
