package entstr

import "strings"

// ParseFlag selects which sub-parsers run for an entity string.
type ParseFlag uint16

const (
	Composer ParseFlag = 1 << iota
	Conductor
	Performer
	Ensemble
	Work
	Label
	Recording

	// Person gates the person-name rules.
	Person = Composer | Conductor | Performer
	// Title gates the title quote rules.
	Title = Work | Recording
)

var flagNames = []struct {
	flag ParseFlag
	name string
}{
	{Composer, "COMPOSER"},
	{Conductor, "CONDUCTOR"},
	{Performer, "PERFORMER"},
	{Ensemble, "ENSEMBLE"},
	{Work, "WORK"},
	{Label, "LABEL"},
	{Recording, "RECORDING"},
}

// Has reports whether any bit of o is set in f.
func (f ParseFlag) Has(o ParseFlag) bool {
	return f&o != 0
}

func (f ParseFlag) String() string {
	if f == 0 {
		return "NONE"
	}
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}
