package snapshot

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-attackgraph/pkg/graph"
	"github.com/dd0wney/cluso-attackgraph/pkg/logging"
	"github.com/dd0wney/cluso-attackgraph/pkg/model"
	"github.com/dd0wney/cluso-attackgraph/pkg/store"
)

// Snapshot is one fully built, immutable knowledge base. Readers share it
// without locking; a reload builds a new Snapshot instead of touching this one.
type Snapshot struct {
	ID       string
	LoadedAt time.Time
	Source   string

	Store *store.EntityStore
	Index *graph.Index

	Warnings []model.Warning
	Stats    Stats
}

// Stats summarises what construction kept and dropped
type Stats struct {
	Entities             store.Counts   `json:"entities"`
	Relationships        int            `json:"relationships"`
	DroppedRelationships int            `json:"dropped_relationships"`
	DroppedEntities      int            `json:"dropped_entities"`
	RelationshipTypes    map[string]int `json:"relationship_types"`
}

// Options configures snapshot construction
type Options struct {
	Source string
	Logger logging.Logger
	Now    func() time.Time
}

// Build validates a parsed bundle and constructs the entity store, the
// relationship index and every derived view. Only a bundle with a missing
// entity list fails; dangling references are dropped and recorded as
// PartialDataWarnings.
func Build(bundle *model.ParsedBundle, opts Options) (*Snapshot, error) {
	if err := checkBundle(bundle); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	b := &builder{logger: logger.With(logging.Component("snapshot"), logging.Source(opts.Source))}

	techniques := b.techniques(bundle.Techniques)
	tactics := b.tactics(bundle.Tactics)
	groups := b.groups(bundle.Groups)
	mitigations := b.mitigations(bundle.Mitigations)

	b.pruneTacticRefs(techniques, tactics)

	// Index construction needs existence checks before the final store exists
	resolver := store.New(techniques, tactics, groups, mitigations)
	techniqueIDs := make([]string, len(techniques))
	for i, t := range techniques {
		techniqueIDs[i] = t.ID
	}

	idx, dropped := graph.Build(bundle.Relationships, resolver, techniqueIDs)
	for _, d := range dropped {
		b.warn(model.Warning{
			Kind:     model.PartialDataWarning,
			Message:  fmt.Sprintf("relationship %s -> %s (%s) dropped: %s", d.Relationship.SourceID, d.Relationship.TargetID, d.Relationship.Type, d.Reason),
			SourceID: d.Relationship.SourceID,
			TargetID: d.Relationship.TargetID,
			Type:     d.Relationship.Type,
		})
	}

	applyDerived(techniques, groups, mitigations, idx)

	st := store.New(techniques, tactics, groups, mitigations)
	snap := &Snapshot{
		ID:       uuid.New().String(),
		LoadedAt: now(),
		Source:   opts.Source,
		Store:    st,
		Index:    idx,
		Warnings: b.warnings,
		Stats: Stats{
			Entities:             st.Counts(),
			Relationships:        idx.EdgeCount(),
			DroppedRelationships: len(dropped),
			DroppedEntities:      b.droppedEntities,
			RelationshipTypes:    idx.TypeCounts(),
		},
	}

	if len(dropped) > 0 {
		b.logger.Warn("dropped dangling relationships", logging.Count(len(dropped)))
	}
	b.logger.Info("snapshot built",
		logging.SnapshotID(snap.ID),
		logging.Int("techniques", snap.Stats.Entities.Techniques),
		logging.Int("tactics", snap.Stats.Entities.Tactics),
		logging.Int("groups", snap.Stats.Entities.Groups),
		logging.Int("mitigations", snap.Stats.Entities.Mitigations),
		logging.Int("relationships", snap.Stats.Relationships),
		logging.Int("warnings", len(snap.Warnings)),
	)

	return snap, nil
}

func checkBundle(bundle *model.ParsedBundle) error {
	if bundle == nil {
		return model.NewError("load").Cause(model.ErrMalformedBundle).Context("bundle is nil").Err()
	}
	var missing []string
	if bundle.Techniques == nil {
		missing = append(missing, "techniques")
	}
	if bundle.Tactics == nil {
		missing = append(missing, "tactics")
	}
	if bundle.Groups == nil {
		missing = append(missing, "groups")
	}
	if bundle.Mitigations == nil {
		missing = append(missing, "mitigations")
	}
	if len(missing) > 0 {
		return model.NewError("load").Cause(model.ErrMalformedBundle).Context(fmt.Sprintf("missing entity lists: %v", missing)).Err()
	}
	return nil
}

// applyDerived writes relationship-derived associations into the entity
// copies that the final store will own.
func applyDerived(techniques []model.Technique, groups []model.Group, mitigations []model.Mitigation, idx *graph.Index) {
	for i := range techniques {
		t := &techniques[i]
		t.MitigationIDs = idx.MitigationsOfTechnique(t.ID)
		t.SubtechniqueIDs = idx.SubtechniquesOf(t.ID)
		if parent, ok := idx.ParentOf(t.ID); ok {
			t.ParentID = parent
		} else {
			t.ParentID = ""
		}
	}
	for i := range groups {
		groups[i].TechniqueIDs = idx.TechniquesOfGroup(groups[i].ID)
	}
	for i := range mitigations {
		mitigations[i].TechniqueIDs = idx.TechniquesOfMitigation(mitigations[i].ID)
	}
}
