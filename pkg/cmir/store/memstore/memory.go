package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/cmir/pkg/cmir/internalerr"
	"github.com/cognicore/cmir/pkg/cmir/registry"
	"github.com/cognicore/cmir/pkg/cmir/store"
)

type refKey struct {
	ref, typ, source string
}

type strKey struct {
	str, fld, station string
}

type seqKey struct {
	station    string
	level, typ int
	playID     int64
}

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu      sync.RWMutex
	refs    map[refKey]store.EntityRef
	strs    map[strKey]store.EntityString
	strSeq  map[strKey]int
	seqs    map[seqKey]store.PlaySeq
	seqSeq  map[seqKey]int
	counter int
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		refs:   make(map[refKey]store.EntityRef),
		strs:   make(map[strKey]store.EntityString),
		strSeq: make(map[strKey]int),
		seqs:   make(map[seqKey]store.PlaySeq),
		seqSeq: make(map[seqKey]int),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// UpsertEntityRef stores a ref, keeping the higher strength on conflict.
func (s *Store) UpsertEntityRef(ctx context.Context, r store.EntityRef) error {
	r.Ref = registry.Key(r.Ref)
	if r.Ref == "" || r.Type == "" {
		return fmt.Errorf("entity ref %q/%q: %w", r.Ref, r.Type, internalerr.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := refKey{r.Ref, r.Type, r.Source}
	if cur, ok := s.refs[k]; ok && cur.Strength > r.Strength {
		r.Strength = cur.Strength
	}
	s.refs[k] = r
	return nil
}

// GetEntityRefs returns the rows for ref, strongest first.
func (s *Store) GetEntityRefs(ctx context.Context, ref string) ([]store.EntityRef, error) {
	key := registry.Key(ref)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.EntityRef
	for k, r := range s.refs {
		if k.ref == key {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Source < out[j].Source
	})
	return out, nil
}

// UpsertEntityString stores a raw string; the latest parse wins.
func (s *Store) UpsertEntityString(ctx context.Context, es store.EntityString) error {
	if es.Str == "" || es.SourceField == "" {
		return fmt.Errorf("entity string %q/%q: %w", es.Str, es.SourceField, internalerr.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := strKey{es.Str, es.SourceField, es.Station}
	if _, ok := s.strSeq[k]; !ok {
		s.counter++
		s.strSeq[k] = s.counter
	}
	es.UpdatedAt = time.Now().UTC()
	s.strs[k] = es
	return nil
}

// GetEntityStrings lists a station's strings in insertion order.
func (s *Store) GetEntityStrings(ctx context.Context, station, sourceFld string) ([]store.EntityString, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []strKey
	for k := range s.strs {
		if k.station == station && (sourceFld == "" || k.fld == sourceFld) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return s.strSeq[keys[i]] < s.strSeq[keys[j]] })

	out := make([]store.EntityString, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.strs[k])
	}
	return out, nil
}

// UpsertPlaySeq stores one fingerprint level, replacing any row for the
// same (level, type, play).
func (s *Store) UpsertPlaySeq(ctx context.Context, ps store.PlaySeq) error {
	if ps.HashLevel < 1 || ps.PlayID == 0 {
		return fmt.Errorf("play seq level %d play %d: %w", ps.HashLevel, ps.PlayID, internalerr.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := seqKey{ps.Station, ps.HashLevel, ps.HashType, ps.PlayID}
	if cur, ok := s.seqs[k]; ok {
		ps.ULID = cur.ULID
	} else {
		s.counter++
		s.seqSeq[k] = s.counter
		if ps.ULID == "" {
			ps.ULID = ulid.Make().String()
		}
	}
	s.seqs[k] = ps
	return nil
}

// GetPlaySeqsByHash returns rows sharing seqHash at level (level < 1 means
// any level).
func (s *Store) GetPlaySeqsByHash(ctx context.Context, seqHash int64, level int) ([]store.PlaySeq, error) {
	return s.filterSeqs(func(ps store.PlaySeq) bool {
		return ps.SeqHash == seqHash && (level < 1 || ps.HashLevel == level)
	}), nil
}

// GetPlaySeqsByStation returns a station's rows at level in insertion order.
func (s *Store) GetPlaySeqsByStation(ctx context.Context, station string, level int) ([]store.PlaySeq, error) {
	return s.filterSeqs(func(ps store.PlaySeq) bool {
		return ps.Station == station && (level < 1 || ps.HashLevel == level)
	}), nil
}

func (s *Store) filterSeqs(keep func(store.PlaySeq) bool) []store.PlaySeq {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []seqKey
	for k, ps := range s.seqs {
		if keep(ps) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return s.seqSeq[keys[i]] < s.seqSeq[keys[j]] })

	out := make([]store.PlaySeq, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.seqs[k])
	}
	return out
}

// EntityRefs returns a view of the stored refs, or nil when there are none.
func (s *Store) EntityRefs() store.EntityRefView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.refs) == 0 {
		return nil
	}
	return &memRefView{s: s}
}

type memRefView struct{ s *Store }

func (v *memRefView) Classify(candidate string) (registry.Classification, bool) {
	refs, _ := v.s.GetEntityRefs(context.Background(), candidate)
	if len(refs) == 0 {
		return registry.Classification{}, false
	}
	return registry.Classification{Type: refs[0].Type, Strength: refs[0].Strength}, true
}

func (v *memRefView) AllRefs() []store.EntityRef {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	out := make([]store.EntityRef, 0, len(v.s.refs))
	for _, r := range v.s.refs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Ref != b.Ref {
			return a.Ref < b.Ref
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Source < b.Source
	})
	return out
}
