// Package stix decodes MITRE ATT&CK STIX 2.x bundles into the record set the
// knowledge base is built from.
package stix

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dd0wney/cluso-attackgraph/pkg/model"
)

// Result is a decoded bundle plus decode statistics
type Result struct {
	Bundle *model.ParsedBundle
	Stats  Stats
}

// Decode reads a STIX bundle and returns the parsed record set
func Decode(r io.Reader) (*model.ParsedBundle, error) {
	res, err := DecodeResult(r)
	if err != nil {
		return nil, err
	}
	return res.Bundle, nil
}

// DecodeResult reads a STIX bundle and also reports what was skipped.
//
// Revoked and deprecated objects are skipped, as are relationships touching
// them. Relationships whose endpoints are object types outside the four
// modelled kinds (malware, tools, campaigns, data components) are skipped and
// counted. A relationship referencing a modelled type that the bundle does
// not define keeps its raw STIX ref, so snapshot construction drops and
// reports it.
func DecodeResult(r io.Reader) (*Result, error) {
	var raw rawBundle
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode STIX bundle: %v", model.ErrMalformedBundle, err)
	}
	if raw.Type != TypeBundle {
		return nil, fmt.Errorf("%w: expected STIX bundle, got type %q", model.ErrMalformedBundle, raw.Type)
	}

	d := &decoder{
		ids:     make(map[string]string),
		skipped: make(map[string]bool),
		phases:  make(map[int][]string),
		stats:   Stats{BundleID: raw.ID, ByType: make(map[string]int)},
		bundle: &model.ParsedBundle{
			Techniques:    make([]model.Technique, 0),
			Tactics:       make([]model.Tactic, 0),
			Groups:        make([]model.Group, 0),
			Mitigations:   make([]model.Mitigation, 0),
			Relationships: make([]model.Relationship, 0),
		},
	}

	var rels []object
	for i, msg := range raw.Objects {
		var obj object
		if err := json.Unmarshal(msg, &obj); err != nil {
			return nil, fmt.Errorf("%w: object %d: %v", model.ErrMalformedBundle, i, err)
		}
		d.stats.Objects++
		d.stats.ByType[obj.Type]++

		if obj.Type == TypeRelationship {
			rels = append(rels, obj)
			continue
		}
		d.entity(&obj)
	}

	d.resolveTactics()
	for i := range rels {
		d.relationship(&rels[i])
	}

	d.stats.Techniques = len(d.bundle.Techniques)
	d.stats.Tactics = len(d.bundle.Tactics)
	d.stats.Groups = len(d.bundle.Groups)
	d.stats.Mitigations = len(d.bundle.Mitigations)
	d.stats.Relationships = len(d.bundle.Relationships)

	return &Result{Bundle: d.bundle, Stats: d.stats}, nil
}

type decoder struct {
	bundle *model.ParsedBundle
	stats  Stats

	ids     map[string]string // STIX id -> ATT&CK id
	skipped map[string]bool   // revoked, deprecated or id-less objects
	phases  map[int][]string  // technique index -> kill chain phase names

	tacticByShortName map[string]string
}

func modelled(stixType string) bool {
	switch stixType {
	case TypeAttackPattern, TypeTactic, TypeIntrusionSet, TypeCourseOfAction:
		return true
	}
	return false
}

// refType returns the object type encoded in a STIX id ("intrusion-set--<uuid>")
func refType(ref string) string {
	t, _, _ := strings.Cut(ref, "--")
	return t
}

func (d *decoder) entity(obj *object) {
	if !modelled(obj.Type) {
		return
	}
	if obj.Revoked || obj.Deprecated {
		d.skipped[obj.ID] = true
		d.stats.SkippedRevoked++
		return
	}
	id := obj.attackID()
	if !idMatchesType(obj.Type, id) {
		d.skipped[obj.ID] = true
		d.stats.SkippedNoID++
		return
	}
	d.ids[obj.ID] = id

	switch obj.Type {
	case TypeAttackPattern:
		var phases []string
		for _, p := range obj.KillChainPhases {
			if p.KillChainName == killChainMITRE {
				phases = append(phases, p.PhaseName)
			}
		}
		d.phases[len(d.bundle.Techniques)] = phases
		d.bundle.Techniques = append(d.bundle.Techniques, model.Technique{
			ID:          id,
			Name:        obj.Name,
			Description: obj.Description,
			Platforms:   nonNil(obj.Platforms),
			TacticIDs:   []string{},
		})
	case TypeTactic:
		d.bundle.Tactics = append(d.bundle.Tactics, model.Tactic{
			ID:          id,
			Name:        obj.Name,
			Description: obj.Description,
			ShortName:   obj.ShortName,
		})
	case TypeIntrusionSet:
		aliases := make([]string, 0, len(obj.Aliases))
		for _, a := range obj.Aliases {
			if a != obj.Name {
				aliases = append(aliases, a)
			}
		}
		d.bundle.Groups = append(d.bundle.Groups, model.Group{
			ID:          id,
			Name:        obj.Name,
			Description: obj.Description,
			Aliases:     aliases,
		})
	case TypeCourseOfAction:
		d.bundle.Mitigations = append(d.bundle.Mitigations, model.Mitigation{
			ID:          id,
			Name:        obj.Name,
			Description: obj.Description,
		})
	}
}

// idMatchesType rejects objects whose ATT&CK id belongs to another kind, such
// as pre-2019 course-of-action objects that reuse technique ids.
func idMatchesType(stixType, id string) bool {
	if id == "" {
		return false
	}
	switch stixType {
	case TypeAttackPattern:
		return strings.HasPrefix(id, "T") && !strings.HasPrefix(id, "TA")
	case TypeTactic:
		return strings.HasPrefix(id, "TA")
	case TypeIntrusionSet:
		return strings.HasPrefix(id, "G")
	case TypeCourseOfAction:
		return strings.HasPrefix(id, "M")
	}
	return false
}

// resolveTactics maps kill chain phase names to tactic ids once every tactic
// object has been seen. Names the bundle does not define fall back to the
// canonical kill chain.
func (d *decoder) resolveTactics() {
	d.tacticByShortName = make(map[string]string, len(d.bundle.Tactics))
	for _, t := range d.bundle.Tactics {
		if t.ShortName != "" {
			d.tacticByShortName[t.ShortName] = t.ID
		}
	}
	for i := range d.bundle.Techniques {
		for _, phase := range d.phases[i] {
			id, ok := d.tacticByShortName[phase]
			if !ok {
				canonical, found := model.CanonicalTacticByShortName(phase)
				if !found {
					continue
				}
				id = canonical.ID
			}
			d.bundle.Techniques[i].TacticIDs = append(d.bundle.Techniques[i].TacticIDs, id)
		}
	}
}

func (d *decoder) relationship(obj *object) {
	if obj.Revoked || obj.Deprecated || obj.RelationshipType == "" {
		d.stats.SkippedRelationships++
		return
	}
	if !modelled(refType(obj.SourceRef)) || !modelled(refType(obj.TargetRef)) {
		d.stats.SkippedRelationships++
		return
	}
	if d.skipped[obj.SourceRef] || d.skipped[obj.TargetRef] {
		d.stats.SkippedRelationships++
		return
	}
	d.bundle.Relationships = append(d.bundle.Relationships, model.Relationship{
		SourceID: d.translate(obj.SourceRef),
		TargetID: d.translate(obj.TargetRef),
		Type:     obj.RelationshipType,
	})
}

func (d *decoder) translate(ref string) string {
	if id, ok := d.ids[ref]; ok {
		return id
	}
	return ref
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
