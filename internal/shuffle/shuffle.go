package shuffle

import "fmt"

// Deterministic returns a Fisher-Yates permutation of items driven by a
// SplitMix64 generator seeded from the first 8 bytes of masterSeed. It is a
// pure function of (items, masterSeed); the input slice is not modified.
func Deterministic(items []string, masterSeed []byte) ([]string, error) {
	rng, err := NewFromDigest(masterSeed)
	if err != nil {
		return nil, fmt.Errorf("shuffle: %w", err)
	}
	out := append([]string(nil), items...)
	for i := len(out) - 1; i > 0; i-- {
		j, err := rng.Randbelow(i + 1)
		if err != nil {
			return nil, fmt.Errorf("shuffle: %w", err)
		}
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
