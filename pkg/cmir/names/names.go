// Package names normalizes western-style person names ("Last, First",
// with honorifics, suffixes, codex and anonymous markers) into a
// canonical "First Last" form plus aliases.
package names

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/rs/zerolog/log"
)

// NormFlag tunes Normalize.
type NormFlag uint8

const (
	// InclSelf adds the cleaned input to the aliases when it differs from
	// the canonical name.
	InclSelf NormFlag = 1 << iota
)

const nameChars = `[\p{L}\.,' -]+`

var (
	wsRunRe    = regexp.MustCompile(`[\s\p{Zs}]{2,}`)
	commaRunRe = regexp.MustCompile(`,{2,}`)
	commaGapRe = regexp.MustCompile(`,(\S)`)
	nonNameRe  = regexp.MustCompile(`[^\p{L}\.,' -]`)

	quotedNickRe = regexp2.MustCompile(`^(`+nameChars+`) (")(`+nameChars+`)" (`+nameChars+`)\z`, regexp2.None)
	parenNickRe  = regexp2.MustCompile(`^(`+nameChars+`) (\()(`+nameChars+`)\) (`+nameChars+`)\z`, regexp2.None)
)

// Result is a normalized name.
type Result struct {
	// Name is the canonical "First [Middle] Last [Suffix]" form.
	Name string
	// Aliases is sorted and never contains "".
	Aliases []string
	// Raw is the input after whitespace and comma cleanup.
	Raw string
}

// Normalizer normalizes names against a fixed vocabulary. It holds no
// per-call state and is safe for concurrent use.
type Normalizer struct {
	honorifics wordSet
	suffixes   wordSet
	codex      wordSet
	anonymous  wordSet

	suffixRe *regexp2.Regexp
	honorRe  *regexp2.Regexp
}

// NewNormalizer builds a Normalizer for v; empty lists take the defaults.
func NewNormalizer(v Vocab) *Normalizer {
	v = v.WithDefaults()
	return &Normalizer{
		honorifics: newWordSet(v.Honorifics),
		suffixes:   newWordSet(v.Suffixes),
		codex:      newWordSet(v.Codex),
		anonymous:  newWordSet(v.Anonymous),
		suffixRe:   regexp2.MustCompile(`^(.+)(,? )(`+alternation(v.Suffixes)+`)\z`, regexp2.None),
		honorRe:    regexp2.MustCompile(`^(`+alternation(v.Honorifics)+`) (.+)\z`, regexp2.None),
	}
}

// alternation escapes words and joins them longest first, so "III" is
// tried before "II".
func alternation(words []string) string {
	ws := make([]string, len(words))
	for i, w := range words {
		ws[i] = regexp2.Escape(w)
	}
	sort.SliceStable(ws, func(i, j int) bool { return len(ws[i]) > len(ws[j]) })
	return strings.Join(ws, "|")
}

var defaultNormalizer = NewNormalizer(DefaultVocab())

// Normalize normalizes name with the default vocabulary.
func Normalize(name string, flags NormFlag) Result {
	return defaultNormalizer.Normalize(name, flags)
}

// Normalize decomposes name, expected as "Last, First [Middle]" or a close
// variant, and reassembles it in canonical order. Data-quality problems
// are logged as notices; a best-effort result is always returned.
func (n *Normalizer) Normalize(name string, flags NormFlag) Result {
	aliases := make(map[string]struct{})
	addAlias := func(a string) {
		if a != "" {
			aliases[a] = struct{}{}
		}
	}

	name = cleanup(name)
	parts := strings.Split(name, ", ")

	var honor, suffix, suffixSep, codex, anon string
	if len(parts) > 2 {
		if honor, parts = n.extract(parts, n.honorifics, "honorific", name); honor != "" {
			addAlias(strings.Join(parts, ", "))
		}
		if suffix, parts = n.extract(parts, n.suffixes, "suffix", name); suffix != "" {
			suffixSep = ", "
		}
		codex, parts = n.extract(parts, n.codex, "codex", name)
		anon, parts = n.extract(parts, n.anonymous, "anonymous", name)
	}

	if suffix == "" {
		last := parts[len(parts)-1]
		switch {
		case len(parts) > 1 && n.suffixes.has(last):
			// "First Last, Jr."
			suffix, suffixSep = last, ", "
			parts = parts[:len(parts)-1]
		default:
			if m := findMatch(n.suffixRe, last); m != nil {
				parts[len(parts)-1] = m.GroupByNumber(1).String()
				suffixSep = m.GroupByNumber(2).String()
				suffix = m.GroupByNumber(3).String()
			}
		}
	}

	if !n.markAnonymous(parts, anon, addAlias) {
		reverse(parts)
		n.markAnonymous(parts, anon, addAlias)
	}

	if honor != "" {
		parts = append([]string{honor}, parts...)
	}
	if suffix != "" {
		parts[len(parts)-1] += suffixSep + suffix
	}
	if codex != "" {
		parts = append([]string{codex}, parts...)
	}
	if anon != "" {
		parts = append([]string{anon + ","}, parts...)
	}
	normalized := strings.Join(parts, " ")

	if m := nicknameMatch(normalized); m != nil {
		first, delim, nick, last := m.GroupByNumber(1).String(), m.GroupByNumber(2).String(),
			m.GroupByNumber(3).String(), m.GroupByNumber(4).String()
		addAlias(first + " " + last)
		addAlias(nick + " " + last)
		addAlias(`"` + nick + `" ` + last)
		if delim == "(" {
			addAlias(first + ` "` + nick + `" ` + last)
		}
	} else if nonNameRe.MatchString(normalized) {
		log.Info().Bool("notice", true).Str("name", normalized).Str("raw", name).
			Msg("non-standard characters in normalized name")
	}

	if honor == "" {
		if m := findMatch(n.honorRe, normalized); m != nil {
			addAlias(m.GroupByNumber(2).String())
		}
	}

	for len(parts) > 2 {
		parts = parts[1:]
		addAlias(strings.Join(parts, " "))
	}

	if normalized != name && flags&InclSelf != 0 {
		addAlias(name)
	}
	if normalized == "" {
		log.Info().Bool("notice", true).Str("raw", name).Msg("empty normalized name")
	}

	return Result{Name: normalized, Aliases: sortedKeys(aliases), Raw: name}
}

func cleanup(name string) string {
	name = wsRunRe.ReplaceAllString(name, " ")
	name = commaRunRe.ReplaceAllString(name, ",")
	name = commaGapRe.ReplaceAllString(name, ", $1")
	return strings.Trim(name, " ,;")
}

// extract removes the first part found in set. Further hits are left in
// place and logged. The last remaining part is never removed.
func (n *Normalizer) extract(parts []string, set wordSet, kind, name string) (string, []string) {
	if len(parts) < 2 {
		return "", parts
	}
	idx := -1
	for i, p := range parts {
		if !set.has(p) {
			continue
		}
		if idx < 0 {
			idx = i
			continue
		}
		log.Info().Bool("notice", true).Str("name", name).Str("kind", kind).Str("ignored", p).
			Msg("multiple name markers of one kind")
	}
	if idx < 0 {
		return "", parts
	}
	hit := parts[idx]
	rest := make([]string, 0, len(parts)-1)
	rest = append(rest, parts[:idx]...)
	rest = append(rest, parts[idx+1:]...)
	return hit, rest
}

// markAnonymous handles a leading anonymous marker in place: "Anonymous"
// followed by more parts becomes "Anonymous," and the rest is an alias.
// It reports whether parts[0] was such a marker.
func (n *Normalizer) markAnonymous(parts []string, anon string, addAlias func(string)) bool {
	if !n.anonymous.has(parts[0]) {
		return false
	}
	if anon != "" {
		log.Info().Bool("notice", true).Str("name", strings.Join(parts, ", ")).Str("anonymous", anon).
			Msg("multiple name markers of one kind")
	}
	if len(parts) > 1 {
		parts[0] += ","
		addAlias(strings.Join(parts[1:], " "))
	}
	return true
}

func nicknameMatch(s string) *regexp2.Match {
	if m := findMatch(quotedNickRe, s); m != nil {
		return m
	}
	return findMatch(parenNickRe, s)
}

func reverse(parts []string) {
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func findMatch(re *regexp2.Regexp, s string) *regexp2.Match {
	m, err := re.FindStringMatch(s)
	if err != nil {
		log.Error().Err(err).Str("pattern", re.String()).Msg("regexp match")
		return nil
	}
	return m
}
