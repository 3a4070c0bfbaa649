package shuffle

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidRange is returned by Randbelow for a non-positive bound.
var ErrInvalidRange = errors.New("randbelow: n must be > 0")

// SplitMix64 is the deterministic generator behind every shuffle. The same
// algorithm runs in every auditing client, so the constants and the mixing
// order are load-bearing: any deviation makes honest audits fail.
type SplitMix64 struct {
	state uint64
}

func NewSplitMix64(seed uint64) *SplitMix64 {
	return &SplitMix64{state: seed}
}

// NewFromDigest seeds the generator from the first 8 bytes of a master-seed
// digest, read as an unsigned big-endian 64-bit integer.
func NewFromDigest(digest []byte) (*SplitMix64, error) {
	if len(digest) < 8 {
		return nil, fmt.Errorf("splitmix64: digest too short (%d bytes)", len(digest))
	}
	return NewSplitMix64(binary.BigEndian.Uint64(digest[:8])), nil
}

// Next advances the state by the golden-ratio increment and mixes it into the
// next 64-bit output. All arithmetic wraps modulo 2^64.
func (r *SplitMix64) Next() uint64 {
	r.state += 0x9E3779B97F4A7C15
	z := r.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Randbelow returns an unbiased value in [0, n) via rejection sampling:
// draws at or above limit = 2^64 - (2^64 mod n) are discarded before the
// modulo.
func (r *SplitMix64) Randbelow(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w (got %d)", ErrInvalidRange, n)
	}
	un := uint64(n)
	mod := (^uint64(0)%un + 1) % un // 2^64 mod n
	limit := -mod                   // 2^64 - mod; zero means every draw is acceptable
	for {
		v := r.Next()
		if limit == 0 || v < limit {
			return int(v % un), nil
		}
	}
}
