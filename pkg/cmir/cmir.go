// Package cmir is the playlist processing facade: it assembles play
// records from raw entity strings, records the strings and fingerprints
// play sequences for syndication matching.
package cmir

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cognicore/cmir/pkg/cmir/assemble"
	"github.com/cognicore/cmir/pkg/cmir/entstr"
	"github.com/cognicore/cmir/pkg/cmir/hashseq"
	"github.com/cognicore/cmir/pkg/cmir/musicent"
	"github.com/cognicore/cmir/pkg/cmir/store"
)

// Processor is the main processing facade
type Processor struct {
	store    store.Store
	asm      *assemble.Assembler
	hashType int
}

// Options configures a Processor
type Options struct {
	// Store may be nil, in which case nothing is persisted.
	Store     store.Store
	Assembler *assemble.Assembler
	HashType  int
}

// New creates a Processor with the given dependencies
func New(opts Options) *Processor {
	ht := opts.HashType
	if ht < 1 {
		ht = 1
	}
	return &Processor{store: opts.Store, asm: opts.Assembler, hashType: ht}
}

// Close cleanly shuts down the Processor
func (p *Processor) Close() error {
	if p.store == nil {
		return nil
	}
	return p.store.Close()
}

// Play is one play as delivered by a station adapter
type Play struct {
	ID      int64
	Strings musicent.EntityStrData
	// Data holds fields the adapter mapped directly; parsed entities are
	// merged into it.
	Data musicent.PlayData
	// Force fingerprints the play even when it repeats the previous one.
	Force bool
}

// PlayResult is the outcome of ProcessPlay
type PlayResult struct {
	Data     musicent.PlayData
	PlayName string
	// Levels is nil when the play repeated its predecessor and was not
	// fingerprinted.
	Levels []int64
}

// entityStrPatterns is the parsed_data recorded with each entity string.
type entityStrPatterns struct {
	Cleaned  string `json:"cleaned"`
	Pattern1 string `json:"pattern1"`
	Pattern2 string `json:"pattern2,omitempty"`
}

// ProcessPlay assembles the play record, stores its entity strings and
// folds "<composer> - <work>" into the session fingerprinter, writing one
// play_seq row per returned level.
func (p *Processor) ProcessPlay(ctx context.Context, sess *hashseq.Session, play Play) (PlayResult, error) {
	d := play.Data
	if d == nil {
		d = musicent.NewPlayData()
	}
	d.Merge(p.asm.AssemblePlay(play.Strings))

	if err := p.storeEntityStrings(ctx, sess.Station, play); err != nil {
		return PlayResult{}, err
	}

	res := PlayResult{Data: d, PlayName: d.PlayName()}
	res.Levels = sess.Seq.Add(res.PlayName, play.Force)
	if res.Levels == nil {
		log.Debug().Int64("play_id", play.ID).Str("play", res.PlayName).Msg("skipping hash_seq for duplicate play")
		return res, nil
	}

	if p.store == nil || play.ID == 0 {
		return res, nil
	}
	for i, h := range res.Levels {
		ps := store.PlaySeq{
			SeqHash:   h,
			HashLevel: i + 1,
			HashType:  p.hashType,
			PlayID:    play.ID,
			Station:   sess.Station,
			Session:   sess.ID.String(),
		}
		if err := p.store.UpsertPlaySeq(ctx, ps); err != nil {
			return res, fmt.Errorf("play %d level %d: %w", play.ID, i+1, err)
		}
	}
	return res, nil
}

func (p *Processor) storeEntityStrings(ctx context.Context, station string, play Play) error {
	if p.store == nil {
		return nil
	}
	for _, ss := range play.Strings.Strings() {
		pat, err := p.asm.Tokenizer().Examine(ss.Str)
		if err != nil {
			return fmt.Errorf("examine %s string: %w", ss.Field, err)
		}
		parsed, err := json.Marshal(entityStrPatterns{Cleaned: pat.Cleaned, Pattern1: pat.Pattern1, Pattern2: pat.Pattern2})
		if err != nil {
			return err
		}
		es := store.EntityString{
			Str:         ss.Str,
			SourceField: ss.Field,
			Station:     station,
			PlayID:      play.ID,
			ParsedData:  string(parsed),
		}
		if err := p.store.UpsertEntityString(ctx, es); err != nil {
			return err
		}
	}
	return nil
}

// SyndicationMatch pairs a local play_seq row with an identical
// fingerprint seen on another station.
type SyndicationMatch struct {
	Local  store.PlaySeq
	Remote store.PlaySeq
}

// FindSyndicated lists rows from other stations sharing a fingerprint with
// one of station's rows at level. Level 1 matches single plays; higher
// levels match runs of consecutive plays.
func (p *Processor) FindSyndicated(ctx context.Context, station string, level int) ([]SyndicationMatch, error) {
	if p.store == nil {
		return nil, nil
	}
	local, err := p.store.GetPlaySeqsByStation(ctx, station, level)
	if err != nil {
		return nil, err
	}

	var out []SyndicationMatch
	for _, ps := range local {
		remote, err := p.store.GetPlaySeqsByHash(ctx, ps.SeqHash, ps.HashLevel)
		if err != nil {
			return nil, err
		}
		for _, r := range remote {
			if r.Station == station || r.HashType != ps.HashType {
				continue
			}
			out = append(out, SyndicationMatch{Local: ps, Remote: r})
		}
	}
	return out, nil
}

// Examine exposes the tokenizer patterns for one raw string.
func (p *Processor) Examine(s string) (entstr.Patterns, error) {
	return p.asm.Tokenizer().Examine(s)
}
