// Package assemble turns the raw entity strings of one play into a
// structured musicent.PlayData record.
package assemble

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/rs/zerolog/log"

	"github.com/cognicore/cmir/pkg/cmir/entstr"
	"github.com/cognicore/cmir/pkg/cmir/musicent"
	"github.com/cognicore/cmir/pkg/cmir/names"
)

// DefaultSkipEnsembles are placeholder ensemble names stations emit that
// do not name a real ensemble.
var DefaultSkipEnsembles = []string{"ensemble", "soloists"}

var roleRe = regexp2.MustCompile(`^[\p{L}\.'\(\)/ -]+\z`, regexp2.None)

// Assembler orchestrates the parse flow for one play:
// raw string → tokenizer rules → mk* record → finalize → name normalizer
type Assembler struct {
	tok     *entstr.Tokenizer
	norm    *names.Normalizer
	skipEns map[string]struct{}
}

// New creates an Assembler. A nil norm uses the default vocabulary.
func New(tok *entstr.Tokenizer, norm *names.Normalizer) *Assembler {
	if norm == nil {
		norm = names.NewNormalizer(names.DefaultVocab())
	}
	a := &Assembler{tok: tok, norm: norm}
	a.SetSkipEnsembles(DefaultSkipEnsembles)
	return a
}

// SetSkipEnsembles replaces the ignored ensemble names (case-insensitive).
func (a *Assembler) SetSkipEnsembles(ens []string) {
	a.skipEns = make(map[string]struct{}, len(ens))
	for _, e := range ens {
		a.skipEns[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
}

// Tokenizer returns the tokenizer the assembler parses with.
func (a *Assembler) Tokenizer() *entstr.Tokenizer { return a.tok }

// AssemblePlay parses every raw string of one play and merges the results.
func (a *Assembler) AssemblePlay(data musicent.EntityStrData) musicent.PlayData {
	d := musicent.NewPlayData()
	for _, s := range data.Composer {
		if s != "" {
			d.Merge(a.ParseComposerStr(s))
		}
	}
	for _, s := range data.Work {
		if s != "" {
			d.Merge(a.ParseWorkStr(s))
		}
	}
	for _, s := range data.Conductor {
		if s != "" {
			d.Merge(a.ParseConductorStr(s))
		}
	}
	for _, s := range data.Performers {
		if s != "" {
			d.Merge(a.ParsePerformerStr(s))
		}
	}
	for _, s := range data.Ensembles {
		if s != "" {
			d.Merge(a.ParseEnsembleStr(s))
		}
	}
	for _, s := range data.Recording {
		if s != "" {
			d.Merge(a.ParseRecordingStr(s))
		}
	}
	if len(data.Label) > 0 {
		if rec := d.Entity(musicent.KeyRecording); rec != nil {
			rec["label"] = strings.TrimSpace(data.Label[0])
		}
	}

	src := musicent.Entity{}
	for _, ss := range data.Strings() {
		list, _ := src[ss.Field].([]string)
		src[ss.Field] = append(list, ss.Str)
	}
	d[musicent.KeyEntityStr] = src
	return d
}

// ParseComposerStr parses a composer string.
func (a *Assembler) ParseComposerStr(s string) musicent.PlayData {
	ctx := a.tok.NewCtx(s, entstr.Composer)
	comp := ctx.MkComp(ctx.ParseEntityStr(0), "")
	d := musicent.PlayData{musicent.KeyComposer: comp}
	ctx.Finalize(d)
	a.normalizePerson(comp)
	return d
}

// ParseWorkStr parses a work title.
func (a *Assembler) ParseWorkStr(s string) musicent.PlayData {
	ctx := a.tok.NewCtx(s, entstr.Work)
	d := musicent.PlayData{musicent.KeyWork: ctx.MkWork(ctx.ParseEntityStr(0), "")}
	ctx.Finalize(d)
	return d
}

// ParseConductorStr parses a conductor string; a trailing conductor role
// is dropped.
func (a *Assembler) ParseConductorStr(s string) musicent.PlayData {
	ctx := a.tok.NewCtx(s, entstr.Conductor)
	cond := ctx.MkCond(ctx.ParseEntityStr(0), "")
	d := musicent.PlayData{musicent.KeyConductor: cond}
	ctx.Finalize(d)
	a.normalizePerson(cond)
	return d
}

// ParsePerformerStr parses one or more "name, role" performers separated
// by the major delimiters.
func (a *Assembler) ParsePerformerStr(s string) musicent.PlayData {
	var perfs []musicent.Entity
	for _, field := range entstr.SplitFields(entstr.UnwrapBrackets(entstr.Cleanup(s))) {
		name, role := a.splitRole(field)
		ctx := a.tok.NewCtx(name, entstr.Performer)
		perf := ctx.MkPerf(ctx.ParseEntityStr(0), role, field)
		ctx.Finalize(musicent.PlayData{musicent.KeyPerformers: []musicent.Entity{perf}})
		if person, ok := perf[musicent.FieldPerson].(musicent.Entity); ok {
			a.normalizePerson(person)
		}
		perfs = append(perfs, perf)
	}
	return musicent.PlayData{musicent.KeyPerformers: perfs}
}

// ParseEnsembleStr parses one or more ensembles separated by the major
// delimiters. Placeholder names are dropped.
func (a *Assembler) ParseEnsembleStr(s string) musicent.PlayData {
	var ens []musicent.Entity
	for _, field := range entstr.SplitFields(entstr.UnwrapBrackets(entstr.Cleanup(s))) {
		ctx := a.tok.NewCtx(field, entstr.Ensemble)
		name := ctx.ParseEntityStr(0)
		if _, skip := a.skipEns[strings.ToLower(name)]; skip {
			log.Debug().Str("input", s).Str("ensemble", name).Msg("skipping placeholder ensemble")
			continue
		}
		e := ctx.MkEns(name, "")
		ctx.Finalize(musicent.PlayData{musicent.KeyEnsembles: []musicent.Entity{e}})
		ens = append(ens, e)
	}
	return musicent.PlayData{musicent.KeyEnsembles: ens}
}

// ParseRecordingStr parses an album or recording title.
func (a *Assembler) ParseRecordingStr(s string) musicent.PlayData {
	ctx := a.tok.NewCtx(s, entstr.Recording)
	d := musicent.PlayData{musicent.KeyRecording: ctx.MkRec(ctx.ParseEntityStr(0), "")}
	ctx.Finalize(d)
	return d
}

// splitRole splits "Name, role" on the last comma. The tail counts as a
// role when it is a conductor role, or a lowercase role-like word that is
// not a name suffix ("Smith, John" and "John Smith, Jr." stay whole).
func (a *Assembler) splitRole(field string) (name, role string) {
	idx := strings.LastIndex(field, ", ")
	if idx < 0 {
		return field, ""
	}
	tail := strings.TrimSpace(field[idx+2:])
	if tail == "" || entstr.IsNameSuffix(tail) {
		return field, ""
	}
	if a.tok.IsCondRole(tail) || (startsLower(tail) && matches(roleRe, tail)) {
		return strings.TrimSpace(field[:idx]), tail
	}
	return field, ""
}

// normalizePerson rewrites e's name into canonical form in place and
// attaches the normalizer's aliases.
func (a *Assembler) normalizePerson(e musicent.Entity) {
	name := e.Name()
	if name == "" {
		return
	}
	res := a.norm.Normalize(name, 0)
	if res.Name != name {
		log.Debug().Str("name", name).Str("normalized", res.Name).Msg("normalized person name")
		if e[musicent.FieldRawName] == nil {
			e[musicent.FieldRawName] = name
		}
		e[musicent.FieldName] = res.Name
	}
	if len(res.Aliases) > 0 {
		e[musicent.FieldAliases] = res.Aliases
	}
}

func startsLower(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLower(r)
}

func matches(re *regexp2.Regexp, s string) bool {
	ok, err := re.MatchString(s)
	if err != nil {
		log.Error().Err(err).Str("pattern", re.String()).Msg("regexp match")
		return false
	}
	return ok
}
