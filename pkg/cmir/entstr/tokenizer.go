// Package entstr tokenizes and classifies free-text entity strings taken
// from station playlists (composer, work, performer, ensemble, ...).
package entstr

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cognicore/cmir/pkg/cmir/internalerr"
	"github.com/cognicore/cmir/pkg/cmir/registry"
)

// Unident marks a segment the registry could not classify.
const Unident = "UNIDENT"

const (
	replChar         = "\ufffd"
	replCharMojibake = "\u00ef\u00bf\u00bd" // U+FFFD's UTF-8 bytes read as Latin-1
)

var brackets = map[byte]byte{
	'"':  '"',
	'\'': '\'',
	'(':  ')',
	'[':  ']',
}

var (
	wsRunRe       = regexp.MustCompile(`[\s\p{Zs}]{2,}`)
	majorDelimsRe = regexp.MustCompile(` ?/ ?| ?; ?| - | \* | & `)
	commaDelimsRe = regexp.MustCompile(` ?, ?`)
)

// DefaultCondRoles are role strings that mark a person as conductor.
var DefaultCondRoles = []string{"conductor", "cond.", "cond"}

// Tokenizer classifies entity string segments against a registry and hands
// out per-string parse contexts.
type Tokenizer struct {
	reg       registry.Classifier
	condRoles map[string]struct{}
}

// NewTokenizer creates a tokenizer backed by reg. A nil reg classifies
// nothing.
func NewTokenizer(reg registry.Classifier) *Tokenizer {
	t := &Tokenizer{reg: reg}
	t.SetCondRoles(DefaultCondRoles)
	return t
}

// SetCondRoles replaces the conductor role vocabulary (matched
// case-insensitively).
func (t *Tokenizer) SetCondRoles(roles []string) {
	t.condRoles = make(map[string]struct{}, len(roles))
	for _, r := range roles {
		t.condRoles[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
}

// IsCondRole reports whether role names the conductor.
func (t *Tokenizer) IsCondRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	_, ok := t.condRoles[role]
	return ok
}

// NewCtx creates a parse context for one raw entity string.
func (t *Tokenizer) NewCtx(entStr string, flags ParseFlag) *StringCtx {
	return &StringCtx{
		EntStr:  entStr,
		OrigStr: entStr,
		flags:   flags,
		tok:     t,
	}
}

// Patterns is the annotated output of Examine.
type Patterns struct {
	// Cleaned is the input after charset cleanup and bracket unwrapping.
	Cleaned string
	// Pattern1 reflects the major-delimiter split only.
	Pattern1 string
	// Pattern2 refines Pattern1's input on commas; empty when there is no comma.
	Pattern2 string
}

// Cleanup applies the idempotent charset and whitespace fixups: mis-decoded
// replacement characters, runs of whitespace, trailing asterisks.
func Cleanup(s string) string {
	if strings.Contains(s, replCharMojibake) {
		log.Debug().Str("input", s).Msg("fixing mis-decoded replacement character")
		s = strings.ReplaceAll(s, replCharMojibake, replChar)
	}
	if wsRunRe.MatchString(s) {
		log.Debug().Str("input", s).Msg("collapsing whitespace")
		s = wsRunRe.ReplaceAllString(s, " ")
	}
	if strings.HasSuffix(s, "*") {
		log.Debug().Str("input", s).Msg("removing trailing asterisks")
		s = strings.TrimRight(s, "*")
	}
	return s
}

// UnwrapBrackets strips enclosing or unterminated leading brackets and
// quotes from s. It stops, leaving s as is, at the first leading bracket it
// cannot account for.
func UnwrapBrackets(s string) string {
	for s != "" {
		open := s[0]
		cls, ok := brackets[open]
		if !ok {
			break
		}

		var countOpen, countCls int
		if open == cls {
			n := strings.Count(s, string(open))
			countOpen = n/2 + n%2
			countCls = n / 2
		} else {
			countOpen = strings.Count(s, string(open))
			countCls = strings.Count(s, string(cls))
		}

		switch {
		case s[len(s)-1] == cls:
			log.Debug().Str("input", s).Msg("removing enclosing brackets")
			if len(s) < 2 {
				s = ""
			} else {
				s = s[1 : len(s)-1]
			}
		case countOpen-countCls == 1:
			log.Debug().Str("input", s).Msg("stripping unterminated leading bracket")
			s = s[1:]
		default:
			if countOpen != countCls {
				log.Warn().Str("input", s).Int("open", countOpen).Int("close", countCls).
					Msg("mismatched interior brackets")
			}
			return s
		}
	}
	return s
}

// segment is a slice of the examined string plus the delimiter after it.
// [start, end) covers both.
type segment struct {
	text  string
	start int
	delim string
	end   int
	n     int
}

func splitOn(re *regexp.Regexp, s string) []segment {
	var segs []segment
	start := 0
	for _, m := range re.FindAllStringIndex(s, -1) {
		segs = append(segs, segment{
			text:  s[start:m[0]],
			start: start,
			delim: s[m[0]:m[1]],
			end:   m[1],
			n:     1,
		})
		start = m[1]
	}
	return append(segs, segment{text: s[start:], start: start, end: len(s), n: 1})
}

// join merges adjacent segments a and b, keeping a's delimiter inside the text.
func join(a, b segment) segment {
	return segment{
		text:  a.text + a.delim + b.text,
		start: a.start,
		delim: b.delim,
		end:   b.end,
		n:     a.n + b.n,
	}
}

// SplitFields splits s on the major delimiters and returns the trimmed,
// non-empty fields.
func SplitFields(s string) []string {
	var out []string
	for _, seg := range splitOn(majorDelimsRe, s) {
		if f := strings.TrimSpace(seg.text); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// classify returns the placeholder for text and whether it was recognized.
func (t *Tokenizer) classify(text string) (string, bool) {
	if t.reg == nil {
		return Unident, false
	}
	c, ok := t.reg.Classify(text)
	if !ok {
		return Unident, false
	}
	return "{{" + c.Type + "}}", true
}

// Examine cleans entStr and produces its entity patterns. The only error
// it returns is a *internalerr.LogicError for a comma covering that does not
// tile the string.
func (t *Tokenizer) Examine(entStr string) (Patterns, error) {
	s := UnwrapBrackets(Cleanup(entStr))
	if s != entStr {
		log.Debug().Str("input", entStr).Str("cleaned", s).Msg("examine cleanup")
	}

	p := Patterns{Cleaned: s, Pattern1: t.pattern1(s)}
	if strings.Contains(s, ",") {
		p2, err := t.pattern2(s)
		if err != nil {
			return p, err
		}
		p.Pattern2 = p2
	}
	return p, nil
}

func (t *Tokenizer) pattern1(s string) string {
	var b strings.Builder
	for _, seg := range splitOn(majorDelimsRe, s) {
		if seg.text != "" {
			tok, _ := t.classify(seg.text)
			b.WriteString(tok)
		}
		b.WriteString(seg.delim)
	}
	return b.String()
}

type candidate struct {
	segment
	token string
	known bool
}

// pattern2 covers s with comma-joined 1/2/3-gram candidates. Recognized
// candidates are preferred over unrecognized ones, longer spans over
// shorter, earlier over later.
func (t *Tokenizer) pattern2(s string) (string, error) {
	segs := splitOn(commaDelimsRe, s)

	var grams []segment
	for i := range segs {
		grams = append(grams, segs[i])
		if i >= 1 {
			two := join(segs[i-1], segs[i])
			grams = append(grams, two)
			if i >= 2 {
				grams = append(grams, join(segs[i-2], two))
			}
		}
	}

	cands := make([]candidate, 0, len(grams))
	for _, g := range grams {
		c := candidate{segment: g}
		if g.text == "" {
			c.token, c.known = g.delim, true
		} else {
			tok, ok := t.classify(g.text)
			c.token, c.known = tok+g.delim, ok
		}
		cands = append(cands, c)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.known != b.known {
			return a.known
		}
		if a.n != b.n {
			return a.n > b.n
		}
		return a.start < b.start
	})

	var accepted []candidate
	for _, c := range cands {
		conflict := -1
		for i, a := range accepted {
			if !(c.end <= a.start || c.start >= a.end) {
				conflict = i
				break
			}
		}
		if conflict < 0 {
			accepted = append(accepted, c)
			continue
		}
		if a := accepted[conflict]; c.known && a.known && c.n == a.n && c.text != "" {
			log.Debug().Str("input", s).Str("kept", a.text).Str("dropped", c.text).
				Msg("ambiguous comma covering, equal claims")
		}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].start < accepted[j].start })
	var b strings.Builder
	prev := 0
	for _, a := range accepted {
		if a.start != prev {
			err := internalerr.NewLogicError(s, "comma covering gap at offset %d (next span starts at %d)", prev, a.start)
			log.Error().Err(err).Msg("entity pattern covering")
			return "", err
		}
		prev = a.end
		b.WriteString(a.token)
	}
	if prev != len(s) {
		err := internalerr.NewLogicError(s, "comma covering ends at %d of %d", prev, len(s))
		log.Error().Err(err).Msg("entity pattern covering")
		return "", err
	}
	return b.String(), nil
}
