package entstr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/cmir/pkg/cmir/musicent"
)

func TestParsePersonStr(t *testing.T) {
	t.Parallel()

	tok := NewTokenizer(nil)

	tests := []struct {
		name  string
		input string
		flags ParseFlag
		want  string
	}{
		{name: "last first", input: "Smith, John", flags: Composer, want: "John Smith"},
		{name: "last first middle", input: "Smith,   John Paul", flags: Performer, want: "John Paul Smith"},
		{name: "hyphenated", input: "Rimsky-Korsakov, Nikolai", flags: Composer, want: "Nikolai Rimsky-Korsakov"},
		{name: "already first last", input: "John Smith", flags: Composer, want: "John Smith"},
		{name: "two word last name", input: "Von Karajan, Herbert", flags: Conductor, want: "Von Karajan, Herbert"},
		{name: "conductor role", input: "Riccardo Muti, conductor", flags: Conductor, want: "Riccardo Muti"},
		{name: "abbreviated role", input: "Riccardo Muti, Cond.", flags: Conductor, want: "Riccardo Muti"},
		{name: "role not reversed", input: "Muti, conductor", flags: Conductor, want: "Muti"},
		{name: "other role kept", input: "Riccardo Muti, piano", flags: Conductor, want: "Riccardo Muti, piano"},
		{name: "ensemble untouched", input: "Smith, John", flags: Ensemble, want: "Smith, John"},
		{name: "bracketed", input: "(Smith, John)", flags: Composer, want: "John Smith"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := tok.NewCtx(tt.input, tt.flags)
			got := ctx.ParseEntityStr(0)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, ctx.EntStr)
			assert.Equal(t, tt.input, ctx.OrigStr)
		})
	}
}

func TestParsePersonStrKeepsConductorRoleUnreversed(t *testing.T) {
	t.Parallel()

	tok := NewTokenizer(nil)

	// a bare "<name>, <conductor role>" is a name plus role, not "Last, First"
	ctx := tok.NewCtx("Muti, conductor", Conductor)
	assert.Equal(t, "Muti", ctx.ParseEntityStr(0))
	assert.NotEqual(t, "conductor Muti", ctx.EntStr)

	// outside conductor mode the same shape is an ordinary reversal
	ctx = tok.NewCtx("Muti, conductor", Performer)
	assert.Equal(t, "conductor Muti", ctx.ParseEntityStr(0))
}

func TestParsePersonStrSuffix(t *testing.T) {
	t.Parallel()

	tok := NewTokenizer(nil)

	tests := []struct {
		input  string
		parsed string
		final  string
	}{
		{input: "Smith, John, Jr.", parsed: "John Smith" + SuffixToken, final: "John Smith, Jr."},
		{input: "Smith, John jr", parsed: "John Smith" + SuffixToken, final: "John Smith Jr"},
		{input: "John Smith, Sr.", parsed: "John Smith" + SuffixToken, final: "John Smith, Sr."},
	}

	for _, tt := range tests {
		ctx := tok.NewCtx(tt.input, Composer)
		got := ctx.ParseEntityStr(0)
		require.Equal(t, tt.parsed, got, tt.input)

		d := musicent.NewPlayData()
		d[musicent.KeyComposer] = ctx.MkComp(got, "")
		ctx.Finalize(d)

		comp := d.Entity(musicent.KeyComposer)
		assert.Equal(t, tt.final, comp.Name(), tt.input)
		assert.Equal(t, tt.input, comp[musicent.FieldRawName], tt.input)
	}
}

func TestParseEntityStrCombinesFlags(t *testing.T) {
	t.Parallel()

	tok := NewTokenizer(nil)
	ctx := tok.NewCtx("Smith, John", Work)
	assert.Equal(t, "Smith, John", ctx.ParseEntityStr(0))
	assert.Equal(t, "John Smith", ctx.ParseEntityStr(Composer))
}

func TestParseTitleStr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{input: "Symphony No. 3 'Eroica'", want: `Symphony No. 3 "Eroica"`},
		{input: "Rondo 'alla turca' from Sonata 'K. 331'", want: `Rondo "alla turca" from Sonata "K. 331"`},
		{input: "Bach's 'Air'", want: `Bach's "Air"`},
		{input: "Bach's Air", want: "Bach's Air"},
		{input: "Messiah", want: "Messiah"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseTitleStr(tt.input), tt.input)
	}
}

func TestParseEntityStrTitle(t *testing.T) {
	t.Parallel()

	tok := NewTokenizer(nil)
	assert.Equal(t, "Messiah", tok.NewCtx("'Messiah'", Work).ParseEntityStr(0))
	assert.Equal(t, `Symphony "Eroica"`, tok.NewCtx("Symphony  'Eroica'*", Recording).ParseEntityStr(0))
}

func TestMkEntities(t *testing.T) {
	t.Parallel()

	tok := NewTokenizer(nil)
	ctx := tok.NewCtx("Bach", Composer)

	comp := ctx.MkComp(" Bach ", "")
	assert.Equal(t, "Bach", comp.Name())
	assert.Nil(t, comp[musicent.FieldRawName])
	assert.Equal(t, true, comp[musicent.FieldIsComposer])

	comp = ctx.MkComp("Johann Sebastian Bach", "")
	assert.Equal(t, "Bach", comp[musicent.FieldRawName])

	comp = ctx.MkComp("J.S. Bach", "Bach, J.S.")
	assert.Equal(t, "Bach, J.S.", comp[musicent.FieldRawName])

	cond := ctx.MkCond("Bach", "")
	assert.Equal(t, true, cond[musicent.FieldIsConductor])

	work := ctx.MkWork("", "")
	assert.Equal(t, "", work.Name())
	assert.Equal(t, "Bach", work[musicent.FieldRawName])

	ens := ctx.MkEns("-Choir", "")
	assert.Equal(t, "-Choir", ens.Name())
	assert.NotContains(t, ens, musicent.FieldIsPerformer)
}

func TestMkPerf(t *testing.T) {
	t.Parallel()

	tok := NewTokenizer(nil)
	ctx := tok.NewCtx("Jane Doe, piano", Performer)

	perf := ctx.MkPerf("Jane Doe", " piano ", "")
	assert.Equal(t, "piano", perf[musicent.FieldRole])
	person, ok := perf[musicent.FieldPerson].(musicent.Entity)
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", person.Name())
	assert.Equal(t, "Jane Doe, piano", person[musicent.FieldRawName])
	assert.Equal(t, true, person[musicent.FieldIsPerformer])

	perf = ctx.MkPerf("Riccardo Muti", "Conductor", "")
	person = perf[musicent.FieldPerson].(musicent.Entity)
	assert.NotContains(t, person, musicent.FieldIsPerformer)

	perf = ctx.MkPerf("Jane Doe", "", "")
	assert.Nil(t, perf[musicent.FieldRole])
}

func TestIsNameSuffix(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"Jr.", "jr", " Sr", "Sr, something"} {
		assert.True(t, IsNameSuffix(s), s)
	}
	for _, s := range []string{"Junior", "Jra", "John", ""} {
		assert.False(t, IsNameSuffix(s), s)
	}
}

func TestStringCtxExamine(t *testing.T) {
	t.Parallel()

	ctx := NewTokenizer(testRegistry()).NewCtx("Bach / Leipzig Thomanerchor", Composer)
	p, err := ctx.Examine()
	require.NoError(t, err)
	assert.Equal(t, "UNIDENT / {{ensemble}}", p.Pattern1)
	assert.Equal(t, "Bach / Leipzig Thomanerchor", p.Cleaned)
}
