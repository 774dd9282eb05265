// Package hashseq fingerprints sequences of plays so identical recent play
// sequences can be matched across stations (syndication detection).
package hashseq

import (
	"crypto/sha1" //nolint:gosec // fingerprint, not a security boundary
	"encoding/binary"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultDepth is the number of levels returned by Get.
const DefaultDepth = 3

// bias re-centres the unsigned 64-bit digest window into signed range.
const bias = uint64(1)<<63 - 1

// Hash returns a platform-independent signed fingerprint of s: the trailing
// 64 bits of the SHA-1 digest of s, minus 2^63-1. The single digest value
// that would land on +2^63 wraps to math.MinInt64.
func Hash(s string) int64 {
	sum := sha1.Sum([]byte(s)) //nolint:gosec // see import
	tail := binary.BigEndian.Uint64(sum[len(sum)-8:])
	return int64(tail - bias) //nolint:gosec // wraparound is intended
}

// HashSeq holds the cascaded XOR accumulators for the most recent plays.
// Element i of the window is the XOR of the last i+1 added hashes. Not safe
// for concurrent use; give every playlist session its own HashSeq.
type HashSeq struct {
	depth   int
	window  []int64
	last    int64
	hasLast bool
}

// New creates a HashSeq returning up to depth levels. depth < 1 means
// DefaultDepth.
func New(depth int) *HashSeq {
	if depth < 1 {
		depth = DefaultDepth
	}
	return &HashSeq{depth: depth, window: make([]int64, 0, depth)}
}

// Depth returns the configured number of levels.
func (h *HashSeq) Depth() int { return h.depth }

// Add folds s into the window and returns the new fingerprint levels.
// It returns nil, leaving the state untouched, when s hashes the same as the
// previous addition and force is false; callers should skip writing
// sequence rows for such consecutive duplicates.
func (h *HashSeq) Add(s string, force bool) []int64 {
	cur := Hash(s)
	if h.hasLast && cur == h.last && !force {
		return nil
	}

	n := len(h.window)
	if n < h.depth {
		h.window = append(h.window, 0)
		n++
	}
	for i := n - 1; i > 0; i-- {
		h.window[i] = h.window[i-1] ^ cur
	}
	h.window[0] = cur

	h.last = cur
	h.hasLast = true
	return h.Get()
}

// Get returns a copy of the current levels. The length of the result is the
// match level: element i fingerprints the last i+1 plays.
func (h *HashSeq) Get() []int64 {
	out := make([]int64, len(h.window))
	copy(out, h.window)
	return out
}

// Reset clears all accumulated state.
func (h *HashSeq) Reset() {
	h.window = h.window[:0]
	h.last = 0
	h.hasLast = false
}

// Session is one station's playlist-processing session (one station, one
// day). It owns its HashSeq exclusively.
type Session struct {
	ID      ulid.ULID
	Station string
	Date    time.Time
	Seq     *HashSeq
}

// NewSession starts a session with a fresh fingerprinter.
func NewSession(station string, date time.Time, depth int) *Session {
	return &Session{
		ID:      ulid.Make(),
		Station: station,
		Date:    date,
		Seq:     New(depth),
	}
}
