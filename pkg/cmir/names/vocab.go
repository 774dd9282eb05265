package names

// Vocab holds the fixed word lists the normalizer extracts from names.
// Entries are matched exactly against comma-separated name parts.
type Vocab struct {
	Honorifics []string `yaml:"honorifics"`
	Suffixes   []string `yaml:"suffixes"`
	Codex      []string `yaml:"codex"`
	Anonymous  []string `yaml:"anonymous"`
}

// DefaultVocab returns the built-in vocabularies.
func DefaultVocab() Vocab {
	return Vocab{
		Honorifics: []string{"Frei", "Sir", "Count", "Comtessa", "Compte", "Sister", "Dame", "Capt.", "Cpl.", "Rev.", "Dr."},
		Suffixes:   []string{"Jr.", "Sr.", "Jr", "Sr", "II", "III", "IV"},
		Codex:      []string{"Codex", "Tablature", "Manuscript", "Book", "Breviary", "Hymnorum", "Cordiforme", "Nonnberg", "Ottelio"},
		Anonymous:  []string{"Anonymous", "Unknown"},
	}
}

// WithDefaults fills any empty list from DefaultVocab.
func (v Vocab) WithDefaults() Vocab {
	d := DefaultVocab()
	if len(v.Honorifics) == 0 {
		v.Honorifics = d.Honorifics
	}
	if len(v.Suffixes) == 0 {
		v.Suffixes = d.Suffixes
	}
	if len(v.Codex) == 0 {
		v.Codex = d.Codex
	}
	if len(v.Anonymous) == 0 {
		v.Anonymous = d.Anonymous
	}
	return v
}

type wordSet map[string]struct{}

func newWordSet(words []string) wordSet {
	s := make(wordSet, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func (s wordSet) has(w string) bool {
	_, ok := s[w]
	return ok
}
