package fairness

import (
	"errors"
	"fmt"

	"fairdeck/internal/shuffle"
)

var (
	ErrMasterMismatch = errors.New("recomputed master seed does not match disclosure")
	ErrDeckMismatch   = errors.New("recomputed deck does not match disclosure")
	ErrBadTranscript  = errors.New("transcript is malformed")
)

// Disclosure is the full audit payload a coordinator publishes after a hand.
// Everything needed to replay the shuffle and the deal is in here.
type Disclosure struct {
	MasterSeedHex string
	Deck          []string
	DeckHash      string
	Reveals       []Reveal
	Holes         map[string][]int
	Community     []int
}

// Report is the verdict of an independent re-derivation. Findings are
// protocol findings (tamper or bug indications), not system errors.
type Report struct {
	MasterOK     bool
	DeckOK       bool
	TranscriptOK bool
	Findings     []error
}

// OK reports whether every check passed.
func (r Report) OK() bool {
	return r.MasterOK && r.DeckOK && r.TranscriptOK
}

// Verify replays the whole derivation from the disclosed reveals and compares
// it against what the coordinator claims to have used. All three checks always
// run; a failed earlier check never hides a later one.
func Verify(d Disclosure) Report {
	rep := Report{MasterOK: true, DeckOK: true, TranscriptOK: true}
	fail := func(err error) {
		rep.Findings = append(rep.Findings, err)
	}

	masterBytes, masterHex, err := MasterSeed(d.Reveals)
	if err != nil {
		rep.MasterOK = false
		fail(fmt.Errorf("%w: %v", ErrMasterMismatch, err))
	} else if masterHex != d.MasterSeedHex {
		rep.MasterOK = false
		fail(fmt.Errorf("%w: derived %s", ErrMasterMismatch, masterHex))
	}

	if rep.MasterOK {
		deck, err := shuffle.Deterministic(shuffle.NewDeck(), masterBytes)
		if err != nil {
			rep.DeckOK = false
			fail(fmt.Errorf("%w: %v", ErrDeckMismatch, err))
		} else if len(deck) != len(d.Deck) {
			rep.DeckOK = false
			fail(fmt.Errorf("%w: length %d vs %d", ErrDeckMismatch, len(deck), len(d.Deck)))
		} else {
			for i := range deck {
				if deck[i] != d.Deck[i] {
					rep.DeckOK = false
					fail(fmt.Errorf("%w: first difference at index %d", ErrDeckMismatch, i))
					break
				}
			}
		}
	} else {
		// Without a trusted master seed the deck cannot be independently
		// rebuilt; count the deck check as failed too.
		rep.DeckOK = false
	}

	if err := checkTranscript(d); err != nil {
		rep.TranscriptOK = false
		fail(err)
	}

	return rep
}

// checkTranscript validates structural well-formedness: every recorded index
// in range, no index consumed twice, and no more indices than the deck holds.
func checkTranscript(d Disclosure) error {
	seen := make(map[int]string)
	record := func(owner string, idx int) error {
		if idx < 0 || idx >= shuffle.DeckSize {
			return fmt.Errorf("%w: index %d out of range for %s", ErrBadTranscript, idx, owner)
		}
		if prev, dup := seen[idx]; dup {
			return fmt.Errorf("%w: index %d assigned to both %s and %s", ErrBadTranscript, idx, prev, owner)
		}
		seen[idx] = owner
		return nil
	}

	for pid, idxs := range d.Holes {
		for _, ix := range idxs {
			if err := record(pid, ix); err != nil {
				return err
			}
		}
	}
	for _, ix := range d.Community {
		if err := record("community", ix); err != nil {
			return err
		}
	}
	if len(seen) > len(d.Deck) {
		return fmt.Errorf("%w: %d indices recorded for a %d-card deck", ErrBadTranscript, len(seen), len(d.Deck))
	}
	return nil
}
