package entstr

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cognicore/cmir/pkg/cmir/musicent"
)

// SuffixToken stands in for a comma-introduced name suffix while the rest
// of the string is rearranged. Finalize puts the suffix back.
const SuffixToken = "{{SUFFIX}}"

var (
	suffixSearchRe = regexp2.MustCompile(`(,? (?:Jr|Sr)\.?)(?:\W|$)`, regexp2.IgnoreCase)
	lastFirstRe    = regexp2.MustCompile("^([\\w\ufffd<>-]+),((?:\\s+[\\w\ufffd-]+)+)\\z", regexp2.None)
	nameRoleRe     = regexp2.MustCompile(`^(.+), ([\w\./ ]+)\z`, regexp2.None)
	singleQuotedRe = regexp2.MustCompile(`^(.*)'([^']*)'([^']*)\z`, regexp2.None)
	nameSuffixRe   = regexp2.MustCompile(`^((?:Jr|Sr)\.?)(?:\W|$)`, regexp2.IgnoreCase)
)

// Completion is a deferred edit applied to the assembled play record.
type Completion func(d musicent.PlayData)

// StringCtx carries one raw entity string through parsing. It is not safe
// for concurrent use.
type StringCtx struct {
	// EntStr is the current working string.
	EntStr string
	// OrigStr is the string as received.
	OrigStr string

	flags      ParseFlag
	completion []Completion
	tok        *Tokenizer
}

// Examine produces the entity patterns for the current working string.
func (c *StringCtx) Examine() (Patterns, error) {
	return c.tok.Examine(c.EntStr)
}

// ParseEntityStr applies structural cleanup and the rule passes selected by
// flags (combined with the context's own flags), stores the result as the
// working string and returns it.
func (c *StringCtx) ParseEntityStr(flags ParseFlag) string {
	flags |= c.flags
	s := UnwrapBrackets(Cleanup(c.EntStr))

	if flags.Has(Title) {
		s = ParseTitleStr(s)
	}
	if flags.Has(Person) {
		s = c.parsePersonStr(s, flags)
	}

	c.EntStr = s
	return s
}

func (c *StringCtx) parsePersonStr(s string, flags ParseFlag) string {
	if m := findMatch(suffixSearchRe, s); m != nil {
		suffix := m.GroupByNumber(1).String()
		log.Debug().Str("input", s).Str("suffix", suffix).Msg("preserving name suffix")
		s = strings.Replace(s, suffix, SuffixToken, 1)
		c.completion = append(c.completion, restoreSuffix(suffix))
	}

	// "Last, First Middle" -> "First Middle Last"; a held-back suffix goes last
	// unless that would turn "Muti, conductor" into "conductor Muti"
	bare := strings.Replace(s, SuffixToken, "", 1)
	if m := findMatch(lastFirstRe, bare); m != nil && !(flags.Has(Conductor) && c.tok.IsCondRole(m.GroupByNumber(2).String())) {
		log.Debug().Str("input", s).Msg("reversing last, first")
		first := wsRunRe.ReplaceAllString(strings.TrimLeftFunc(m.GroupByNumber(2).String(), unicode.IsSpace), " ")
		rev := first + " " + m.GroupByNumber(1).String()
		if bare != s {
			rev += SuffixToken
		}
		s = rev
	}

	if flags.Has(Conductor) {
		if m := findMatch(nameRoleRe, s); m != nil {
			if role := m.GroupByNumber(2).String(); c.tok.IsCondRole(role) {
				log.Debug().Str("input", s).Str("role", role).Msg("removing conductor role")
				s = m.GroupByNumber(1).String()
			}
		}
	}
	return s
}

func restoreSuffix(suffix string) Completion {
	restored := cases.Title(language.Und).String(suffix)
	return func(d musicent.PlayData) {
		musicent.DeepReplace(d, SuffixToken, restored)
	}
}

// ParseTitleStr converts single-quoted substrings to double quotes, working
// from the last well-formed pair backwards.
func ParseTitleStr(s string) string {
	for m := findMatch(singleQuotedRe, s); m != nil; m = findMatch(singleQuotedRe, s) {
		log.Debug().Str("input", s).Msg("converting single-quoted title")
		s = m.GroupByNumber(1).String() + `"` + m.GroupByNumber(2).String() + `"` + m.GroupByNumber(3).String()
	}
	return s
}

// IsNameSuffix reports whether s is itself a name suffix such as "Jr." (as
// happens when a station splits "Smith, John, Jr." on commas).
func IsNameSuffix(s string) bool {
	return findMatch(nameSuffixRe, strings.TrimSpace(s)) != nil
}

// Finalize runs the registered completions, in registration order, against
// the assembled record.
func (c *StringCtx) Finalize(d musicent.PlayData) {
	for _, fn := range c.completion {
		fn(d)
	}
}

// MkComp builds a composer record.
func (c *StringCtx) MkComp(name, orig string) musicent.Entity {
	e := c.mkEntity("composer", name, orig)
	e[musicent.FieldIsComposer] = true
	return e
}

// MkWork builds a work record.
func (c *StringCtx) MkWork(name, orig string) musicent.Entity {
	return c.mkEntity("work", name, orig)
}

// MkCond builds a conductor record.
func (c *StringCtx) MkCond(name, orig string) musicent.Entity {
	e := c.mkEntity("conductor", name, orig)
	e[musicent.FieldIsConductor] = true
	return e
}

// MkPerf builds a performer record: the person plus the role. A conductor
// role leaves is_performer unset.
func (c *StringCtx) MkPerf(name, role, orig string) musicent.Entity {
	role = strings.TrimSpace(role)
	person := c.mkEntity("performer", name, orig)
	if !c.tok.IsCondRole(role) {
		person[musicent.FieldIsPerformer] = true
	}
	var r any
	if role != "" {
		r = role
	}
	return musicent.Entity{musicent.FieldPerson: person, musicent.FieldRole: r}
}

// MkEns builds an ensemble record.
func (c *StringCtx) MkEns(name, orig string) musicent.Entity {
	return c.mkEntity("ensemble", name, orig)
}

// MkRec builds a recording record.
func (c *StringCtx) MkRec(name, orig string) musicent.Entity {
	return c.mkEntity("recording", name, orig)
}

func (c *StringCtx) mkEntity(kind, name, orig string) musicent.Entity {
	if orig == "" {
		orig = c.OrigStr
	}
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		log.Info().Bool("notice", true).Str("kind", kind).Str("orig", orig).Msg("empty name")
	case !startsWithWordChar(name):
		log.Info().Bool("notice", true).Str("kind", kind).Str("name", name).Str("orig", orig).
			Msg("bad leading character in name")
	}

	var raw any
	if name != orig {
		raw = orig
	}
	return musicent.Entity{musicent.FieldName: name, musicent.FieldRawName: raw}
}

func startsWithWordChar(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// findMatch returns the first match of re in s, or nil. regexp2 only errors
// on match timeouts, which are not configured here.
func findMatch(re *regexp2.Regexp, s string) *regexp2.Match {
	m, err := re.FindStringMatch(s)
	if err != nil {
		log.Error().Err(err).Str("pattern", re.String()).Msg("regexp match")
		return nil
	}
	return m
}
