package musicent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeFillsEmptyAndExtendsLists(t *testing.T) {
	t.Parallel()

	d := NewPlayData()
	d.Merge(PlayData{KeyComposer: Entity{FieldName: "Bach"}})
	d.Merge(PlayData{KeyPerformers: []Entity{{FieldName: "A"}}})
	d.Merge(PlayData{KeyPerformers: []Entity{{FieldName: "B"}}})
	d.Merge(PlayData{KeyPerformers: []Entity{}})

	assert.Equal(t, "Bach", d.Entity(KeyComposer).Name())
	require.Len(t, d.List(KeyPerformers), 2)
	assert.Equal(t, "B", d.List(KeyPerformers)[1].Name())
}

func TestMergeKeepsPopulated(t *testing.T) {
	t.Parallel()

	d := PlayData{KeyWork: Entity{FieldName: "Mass in B minor"}}
	d.Merge(PlayData{KeyWork: Entity{FieldName: "Magnificat"}, "extra": "x"})

	assert.Equal(t, "Mass in B minor", d.Entity(KeyWork).Name())
	assert.Equal(t, "x", d["extra"])
}

func TestDeepReplace(t *testing.T) {
	t.Parallel()

	d := PlayData{
		KeyConductor: Entity{FieldName: "John Smith{{S}}", FieldAliases: []string{"Smith{{S}}"}},
		KeyPerformers: []Entity{
			{FieldPerson: Entity{FieldName: "Ann Lee{{S}}"}, FieldRole: "piano"},
		},
		"notes": []any{"a{{S}}", 3},
		"count": 7,
	}
	DeepReplace(d, "{{S}}", ", Jr.")

	assert.Equal(t, "John Smith, Jr.", d.Entity(KeyConductor).Name())
	assert.Equal(t, []string{"Smith, Jr."}, d.Entity(KeyConductor)[FieldAliases])
	perf := d.List(KeyPerformers)[0][FieldPerson].(Entity)
	assert.Equal(t, "Ann Lee, Jr.", perf.Name())
	assert.Equal(t, []any{"a, Jr.", 3}, d["notes"])
	assert.Equal(t, 7, d["count"])
}

func TestEntityStrDataStrings(t *testing.T) {
	t.Parallel()

	e := EntityStrData{
		Composer:   []string{"Bach, Johann Sebastian"},
		Work:       []string{"", "Cantata 140"},
		Performers: []string{"Smith, piano"},
	}
	got := e.Strings()
	assert.Equal(t, []SourceString{
		{Field: KeyComposer, Str: "Bach, Johann Sebastian"},
		{Field: KeyWork, Str: "Cantata 140"},
		{Field: KeyPerformers, Str: "Smith, piano"},
	}, got)
}

func TestPlayName(t *testing.T) {
	t.Parallel()

	d := NewPlayData()
	d[KeyComposer] = Entity{FieldName: "Johann Sebastian Bach"}
	d[KeyWork] = Entity{FieldName: "Mass in B minor"}
	assert.Equal(t, "Johann Sebastian Bach - Mass in B minor", d.PlayName())

	assert.Equal(t, " - ", PlayData{}.PlayName())
}
