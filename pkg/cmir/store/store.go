package store

import (
	"context"
	"time"

	"github.com/cognicore/cmir/pkg/cmir/registry"
)

// Store is the main interface for persisting and querying parsed playlist data
type Store interface {
	Close() error

	// Entity references (the classification registry)
	UpsertEntityRef(ctx context.Context, r EntityRef) error
	GetEntityRefs(ctx context.Context, ref string) ([]EntityRef, error)

	// Raw entity strings, keyed by (string, source field, station)
	UpsertEntityString(ctx context.Context, es EntityString) error
	GetEntityStrings(ctx context.Context, station, sourceFld string) ([]EntityString, error)

	// Play sequence fingerprints
	UpsertPlaySeq(ctx context.Context, ps PlaySeq) error
	GetPlaySeqsByHash(ctx context.Context, seqHash int64, level int) ([]PlaySeq, error)
	GetPlaySeqsByStation(ctx context.Context, station string, level int) ([]PlaySeq, error)

	// Read-through view over entity_ref; nil when no refs are stored
	EntityRefs() EntityRefView
}

// EntityRef is one known entity name with its type and source.
type EntityRef struct {
	Ref      string
	Type     string
	Source   string
	Strength int
}

// EntityString is a raw playlist string and what it was parsed into.
type EntityString struct {
	Str         string
	SourceField string
	Station     string
	PlayID      int64
	ParsedData  string // JSON-encoded musicent.PlayData
	UpdatedAt   time.Time
}

// PlaySeq is one fingerprint level for a play.
type PlaySeq struct {
	ULID      string
	SeqHash   int64
	HashLevel int
	HashType  int
	PlayID    int64
	Station   string
	Session   string
}

// EntityRefView provides read access to entity_ref. Classify returns the
// strongest row for a candidate string.
type EntityRefView interface {
	registry.Classifier
	AllRefs() []EntityRef
}

// LoadRegistry copies every ref in v into reg.
func LoadRegistry(v EntityRefView, reg *registry.Registry) int {
	if v == nil {
		return 0
	}
	refs := v.AllRefs()
	for _, r := range refs {
		reg.Add(r.Ref, r.Type, r.Strength)
	}
	return len(refs)
}
