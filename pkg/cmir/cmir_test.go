package cmir

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/cmir/pkg/cmir/assemble"
	"github.com/cognicore/cmir/pkg/cmir/entstr"
	"github.com/cognicore/cmir/pkg/cmir/hashseq"
	"github.com/cognicore/cmir/pkg/cmir/musicent"
	"github.com/cognicore/cmir/pkg/cmir/registry"
	"github.com/cognicore/cmir/pkg/cmir/store/memstore"
)

var testPlays = []musicent.EntityStrData{
	{Composer: []string{"Bach, Johann Sebastian"}, Work: []string{"Mass in B minor"}, Ensembles: []string{"Leipzig Thomanerchor"}},
	{Composer: []string{"Handel, George Frideric"}, Work: []string{"Messiah"}},
	{Composer: []string{"Vivaldi, Antonio"}, Work: []string{"The Four Seasons"}, Performers: []string{"Jane Doe, violin"}},
}

func newTestProcessor(st *memstore.Store) *Processor {
	reg := registry.New()
	reg.Add("Leipzig Thomanerchor", registry.TypeEnsemble, 1)
	asm := assemble.New(entstr.NewTokenizer(reg), nil)
	opts := Options{Assembler: asm, HashType: 1}
	if st != nil {
		opts.Store = st
	}
	return New(opts)
}

func runSession(t *testing.T, p *Processor, station string, firstID int64) {
	t.Helper()
	sess := hashseq.NewSession(station, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 3)
	for i, strs := range testPlays {
		res, err := p.ProcessPlay(context.Background(), sess, Play{ID: firstID + int64(i), Strings: strs})
		require.NoError(t, err)
		require.Len(t, res.Levels, i+1)
	}
}

func TestProcessPlayAssemblesAndFingerprints(t *testing.T) {
	t.Parallel()

	st := memstore.New()
	p := newTestProcessor(st)
	sess := hashseq.NewSession("WQXR", time.Now(), 3)

	res, err := p.ProcessPlay(context.Background(), sess, Play{ID: 1, Strings: testPlays[0]})
	require.NoError(t, err)

	assert.Equal(t, "Johann Sebastian Bach - Mass in B minor", res.PlayName)
	assert.Equal(t, []int64{hashseq.Hash(res.PlayName)}, res.Levels)
	assert.Len(t, res.Data.List(musicent.KeyEnsembles), 1)

	rows, err := st.GetPlaySeqsByStation(context.Background(), "WQXR", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].HashLevel)
	assert.Equal(t, sess.ID.String(), rows[0].Session)

	strs, err := st.GetEntityStrings(context.Background(), "WQXR", "ensembles")
	require.NoError(t, err)
	require.Len(t, strs, 1)
	var parsed map[string]string
	require.NoError(t, json.Unmarshal([]byte(strs[0].ParsedData), &parsed))
	assert.Equal(t, "{{ensemble}}", parsed["pattern1"])
}

func TestProcessPlaySkipsConsecutiveDuplicate(t *testing.T) {
	t.Parallel()

	st := memstore.New()
	p := newTestProcessor(st)
	sess := hashseq.NewSession("WQXR", time.Now(), 3)
	ctx := context.Background()

	_, err := p.ProcessPlay(ctx, sess, Play{ID: 1, Strings: testPlays[1]})
	require.NoError(t, err)
	res, err := p.ProcessPlay(ctx, sess, Play{ID: 2, Strings: testPlays[1]})
	require.NoError(t, err)
	assert.Nil(t, res.Levels)

	rows, _ := st.GetPlaySeqsByStation(ctx, "WQXR", 0)
	assert.Len(t, rows, 1)

	res, err = p.ProcessPlay(ctx, sess, Play{ID: 3, Strings: testPlays[1], Force: true})
	require.NoError(t, err)
	require.Len(t, res.Levels, 2)
	assert.Equal(t, int64(0), res.Levels[1])
}

func TestProcessPlayMergesAdapterData(t *testing.T) {
	t.Parallel()

	p := newTestProcessor(nil)
	sess := hashseq.NewSession("WQXR", time.Now(), 3)

	data := musicent.NewPlayData()
	data[musicent.KeyPlay] = musicent.Entity{"start_time": "10:00"}
	data[musicent.KeyWork] = musicent.Entity{musicent.FieldName: "Adapter Title"}

	res, err := p.ProcessPlay(context.Background(), sess, Play{Strings: testPlays[1], Data: data})
	require.NoError(t, err)
	assert.Equal(t, "10:00", res.Data.Entity(musicent.KeyPlay)["start_time"])
	assert.Equal(t, "George Frideric Handel - Adapter Title", res.PlayName)
	assert.NoError(t, p.Close())
}

func TestFindSyndicated(t *testing.T) {
	t.Parallel()

	st := memstore.New()
	p := newTestProcessor(st)
	runSession(t, p, "WQXR", 1)
	runSession(t, p, "KUSC", 101)

	ctx := context.Background()
	for level, want := range map[int]int{1: 3, 2: 2, 3: 1} {
		matches, err := p.FindSyndicated(ctx, "WQXR", level)
		require.NoError(t, err)
		assert.Len(t, matches, want, "level %d", level)
		for _, m := range matches {
			assert.Equal(t, "WQXR", m.Local.Station)
			assert.Equal(t, "KUSC", m.Remote.Station)
			assert.Equal(t, m.Local.PlayID+100, m.Remote.PlayID)
		}
	}

	none, err := p.FindSyndicated(ctx, "WFMT", 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFindSyndicatedSharedPlayIDs(t *testing.T) {
	t.Parallel()

	st := memstore.New()
	p := newTestProcessor(st)
	runSession(t, p, "WQXR", 1)
	runSession(t, p, "KUSC", 1)

	ctx := context.Background()
	local, err := st.GetPlaySeqsByStation(ctx, "WQXR", 1)
	require.NoError(t, err)
	assert.Len(t, local, 3)

	matches, err := p.FindSyndicated(ctx, "WQXR", 1)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	for _, m := range matches {
		assert.Equal(t, "KUSC", m.Remote.Station)
		assert.Equal(t, m.Local.PlayID, m.Remote.PlayID)
	}
}

func TestProcessorExamine(t *testing.T) {
	t.Parallel()

	pat, err := newTestProcessor(nil).Examine("Bach / Leipzig Thomanerchor")
	require.NoError(t, err)
	assert.Equal(t, "UNIDENT / {{ensemble}}", pat.Pattern1)
}
