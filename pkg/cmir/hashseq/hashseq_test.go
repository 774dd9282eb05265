package hashseq

import (
	"crypto/sha1" //nolint:gosec // test mirrors the implementation
	"encoding/hex"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// hashViaHex follows the textual definition: trailing 16 hex digits of the
// SHA-1 hex digest, as an unsigned integer, minus 2^63-1.
func hashViaHex(s string) *big.Int {
	sum := sha1.Sum([]byte(s)) //nolint:gosec // test
	digest := hex.EncodeToString(sum[:])
	u, _ := new(big.Int).SetString(digest[len(digest)-16:], 16)
	b := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 63), big.NewInt(1))
	return u.Sub(u, b)
}

func TestHashMatchesHexDefinition(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "A", "Bach - Mass in B minor", "Dvořák - Symphony No. 9"} {
		want := hashViaHex(s)
		require.True(t, want.IsInt64(), "value for %q out of int64 range", s)
		assert.Equal(t, want.Int64(), Hash(s), s)
	}
}

func TestHashDeterministic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Hash("Mozart - Requiem"), Hash("Mozart - Requiem"))
	assert.NotEqual(t, Hash("Mozart - Requiem"), Hash("Mozart - Requiem "))
}

func TestAddDuplicateSkip(t *testing.T) {
	t.Parallel()

	h := New(3)
	first := h.Add("A", false)
	require.Len(t, first, 1)

	assert.Nil(t, h.Add("A", false), "consecutive duplicate is skipped")
	assert.Equal(t, first, h.Get(), "skip leaves state untouched")

	forced := h.Add("A", true)
	require.Len(t, forced, 2)
	assert.Equal(t, Hash("A"), forced[0])
	assert.Equal(t, int64(0), forced[1], "A xor A")
}

func TestAddNonConsecutiveRepeat(t *testing.T) {
	t.Parallel()

	h := New(3)
	h.Add("A", false)
	h.Add("B", false)
	assert.NotNil(t, h.Add("A", false))
}

func TestGetBoundedByDepth(t *testing.T) {
	t.Parallel()

	h := New(3)
	plays := []string{"p1", "p2", "p3", "p4", "p5"}
	for _, p := range plays {
		require.NotNil(t, h.Add(p, false))
	}

	got := h.Get()
	require.Len(t, got, 3)
	assert.Equal(t, Hash("p5"), got[0])
	assert.Equal(t, Hash("p4")^Hash("p5"), got[1])
	assert.Equal(t, Hash("p3")^Hash("p4")^Hash("p5"), got[len(got)-1])
}

func TestWindowGrowsToDepth(t *testing.T) {
	t.Parallel()

	h := New(0)
	assert.Equal(t, DefaultDepth, h.Depth())
	assert.Empty(t, h.Get())
	assert.Len(t, h.Add("x", false), 1)
	assert.Len(t, h.Add("y", false), 2)
	assert.Len(t, h.Add("z", false), 3)
	assert.Len(t, h.Add("w", false), 3)

	h.Reset()
	assert.Empty(t, h.Get())
	assert.NotNil(t, h.Add("w", false), "reset forgets the last hash")
}

func TestSameSequenceSameFingerprint(t *testing.T) {
	t.Parallel()

	a := New(3)
	b := New(3)
	for _, p := range []string{"intro", "x1", "x2", "x3"} {
		a.Add(p, false)
	}
	for _, p := range []string{"other", "more", "x1", "x2", "x3"} {
		b.Add(p, false)
	}
	assert.Equal(t, a.Get(), b.Get(), "last three plays identical across streams")
}

func TestXorAccumulatorProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		depth := rapid.IntRange(1, 6).Draw(t, "depth")
		plays := rapid.SliceOfN(rapid.StringN(1, 8, -1), 1, 20).Draw(t, "plays")

		h := New(depth)
		var added []string
		for _, p := range plays {
			if h.Add(p, true) != nil {
				added = append(added, p)
			}
		}

		got := h.Get()
		want := min(depth, len(added))
		if len(got) != want {
			t.Fatalf("len(Get()) = %d, want %d", len(got), want)
		}
		for i := range got {
			var x int64
			for _, p := range added[len(added)-i-1:] {
				x ^= Hash(p)
			}
			if got[i] != x {
				t.Fatalf("level %d = %d, want %d", i+1, got[i], x)
			}
		}
	})
}

func TestNewSession(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s1 := NewSession("WQXR", day, 3)
	s2 := NewSession("WQXR", day, 3)
	assert.NotEqual(t, s1.ID, s2.ID)
	assert.NotSame(t, s1.Seq, s2.Seq)
	assert.Equal(t, 3, s1.Seq.Depth())
}
