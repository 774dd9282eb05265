// Package musicent defines the structured play record produced by entity
// string parsing and consumed by persistence.
package musicent

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// Top-level PlayData keys.
const (
	KeyPlay       = "play"
	KeyComposer   = "composer"
	KeyWork       = "work"
	KeyConductor  = "conductor"
	KeyPerformers = "performers"
	KeyEnsembles  = "ensembles"
	KeyRecording  = "recording"
	KeyEntityStr  = "entity_str"
)

// Entity field names.
const (
	FieldName        = "name"
	FieldRawName     = "raw_name"
	FieldAliases     = "aliases"
	FieldRole        = "role"
	FieldPerson      = "person"
	FieldIsComposer  = "is_composer"
	FieldIsConductor = "is_conductor"
	FieldIsPerformer = "is_performer"
)

// Entity is one normalized record: name, raw_name (nil when unchanged) and
// optional type-specific fields.
type Entity map[string]any

// Name returns the entity's name field, or "".
func (e Entity) Name() string {
	s, _ := e[FieldName].(string)
	return s
}

// PlayData is the nested structure assembled for a single play.
type PlayData map[string]any

// NewPlayData returns a PlayData with every top-level key present and empty.
func NewPlayData() PlayData {
	return PlayData{
		KeyPlay:       Entity{},
		KeyComposer:   Entity{},
		KeyWork:       Entity{},
		KeyConductor:  Entity{},
		KeyPerformers: []Entity{},
		KeyEnsembles:  []Entity{},
		KeyRecording:  Entity{},
		KeyEntityStr:  Entity{},
	}
}

// Entity returns the mapping stored under key, or nil.
func (d PlayData) Entity(key string) Entity {
	switch v := d[key].(type) {
	case Entity:
		return v
	case map[string]any:
		return v
	}
	return nil
}

// List returns the entity list stored under key, or nil.
func (d PlayData) List(key string) []Entity {
	l, _ := d[key].([]Entity)
	return l
}

// PlayName is the canonical "<composer> - <work>" string fed to the play
// sequence fingerprinter.
func (d PlayData) PlayName() string {
	return d.Entity(KeyComposer).Name() + " - " + d.Entity(KeyWork).Name()
}

// Merge folds other into d in place. Absent keys are copied, lists are
// extended, empty values are replaced; a populated value is never
// overwritten.
func (d PlayData) Merge(other PlayData) {
	for k, v := range other {
		cur, ok := d[k]
		if !ok {
			d[k] = v
			continue
		}
		if list, isList := cur.([]Entity); isList {
			add, _ := v.([]Entity)
			if len(add) > 0 {
				d[k] = append(list, add...)
			} else if len(list) > 0 {
				log.Trace().Str("key", k).Msg("skipping overwrite of list with empty value")
			}
			continue
		}
		if isEmpty(cur) {
			d[k] = v
			continue
		}
		if !isEmpty(v) {
			log.Debug().Str("key", k).Interface("have", cur).Interface("new", v).
				Msg("not overwriting populated play data key")
		}
	}
}

// DeepReplace replaces every occurrence of from with to in all strings
// reachable from v (maps, entity lists and string lists), in place.
func DeepReplace(v map[string]any, from, to string) {
	for k, val := range v {
		v[k] = replaceValue(val, from, to)
	}
}

func replaceValue(val any, from, to string) any {
	switch x := val.(type) {
	case string:
		return strings.ReplaceAll(x, from, to)
	case Entity:
		DeepReplace(x, from, to)
	case PlayData:
		DeepReplace(x, from, to)
	case map[string]any:
		DeepReplace(x, from, to)
	case []Entity:
		for _, e := range x {
			DeepReplace(e, from, to)
		}
	case []string:
		for i := range x {
			x[i] = strings.ReplaceAll(x[i], from, to)
		}
	case []any:
		for i := range x {
			x[i] = replaceValue(x[i], from, to)
		}
	}
	return val
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case Entity:
		return len(x) == 0
	case PlayData:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	case []Entity:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case []any:
		return len(x) == 0
	case bool:
		return !x
	}
	return false
}

// EntityStrData holds the raw strings a station adapter extracted for one
// play, per source field.
type EntityStrData struct {
	Composer   []string `json:"composer,omitempty"`
	Work       []string `json:"work,omitempty"`
	Conductor  []string `json:"conductor,omitempty"`
	Performers []string `json:"performers,omitempty"`
	Ensembles  []string `json:"ensembles,omitempty"`
	Recording  []string `json:"recording,omitempty"`
	Label      []string `json:"label,omitempty"`
}

// SourceString is one raw entity string tagged with its source field.
type SourceString struct {
	Field string
	Str   string
}

// Strings lists every non-empty raw string in field order.
func (e EntityStrData) Strings() []SourceString {
	var out []SourceString
	add := func(field string, strs []string) {
		for _, s := range strs {
			if s != "" {
				out = append(out, SourceString{Field: field, Str: s})
			}
		}
	}
	add(KeyComposer, e.Composer)
	add(KeyWork, e.Work)
	add(KeyConductor, e.Conductor)
	add(KeyPerformers, e.Performers)
	add(KeyEnsembles, e.Ensembles)
	add(KeyRecording, e.Recording)
	add("label", e.Label)
	return out
}
