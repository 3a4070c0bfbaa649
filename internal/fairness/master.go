package fairness

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrIncompleteReveal is returned when master-seed derivation is attempted
// before every participant has revealed.
var ErrIncompleteReveal = errors.New("missing reveal")

// Reveal is one participant's disclosed secret contribution.
type Reveal struct {
	PID  string `json:"pid"`
	Seed string `json:"seed"`
	Salt string `json:"salt"`
}

// MasterSeed derives the single seed all participants contributed to.
//
// The reveals are ordered by participant identity, not by arrival, so every
// independent implementation derives the identical digest from the same
// triples. Each entry contributes "pid:seed:salt" and the entries are joined
// with "|" plus a trailing "|" before hashing. This exact byte layout is the
// trust anchor of the audit and must never change.
func MasterSeed(reveals []Reveal) ([]byte, string, error) {
	sorted := append([]Reveal(nil), reveals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PID < sorted[j].PID })

	items := make([]string, 0, len(sorted))
	for _, r := range sorted {
		if r.Seed == "" || r.Salt == "" {
			return nil, "", fmt.Errorf("%w for player %s", ErrIncompleteReveal, r.PID)
		}
		items = append(items, r.PID+":"+r.Seed+":"+r.Salt)
	}
	joined := strings.Join(items, "|") + "|"
	sum := sha256.Sum256([]byte(joined))
	return sum[:], hex.EncodeToString(sum[:]), nil
}
