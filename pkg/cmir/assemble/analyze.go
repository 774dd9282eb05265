package assemble

import (
	"sort"

	"github.com/cognicore/cmir/pkg/cmir/entstr"
)

// PatternCounts tallies entity patterns across a playlist.
type PatternCounts map[string]int

// PatternCount is one row of PatternCounts.Sorted.
type PatternCount struct {
	Pattern string
	Count   int
}

// CountPatterns examines each string and adds its pattern 1 and pattern 2
// to counts. Empty patterns and a bare UNIDENT are not counted. The first
// logic error stops the scan.
func (a *Assembler) CountPatterns(strs []string, counts PatternCounts) error {
	for _, s := range strs {
		if s == "" {
			continue
		}
		p, err := a.tok.Examine(s)
		if err != nil {
			return err
		}
		for _, pat := range []string{p.Pattern1, p.Pattern2} {
			if pat == "" || pat == entstr.Unident {
				continue
			}
			counts[pat]++
		}
	}
	return nil
}

// Sorted returns the counts, most frequent first.
func (c PatternCounts) Sorted() []PatternCount {
	out := make([]PatternCount, 0, len(c))
	for p, n := range c {
		out = append(out, PatternCount{Pattern: p, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Pattern < out[j].Pattern
	})
	return out
}
