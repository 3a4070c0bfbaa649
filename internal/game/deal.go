package game

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"fairdeck/internal/codec"
	"fairdeck/internal/fairness"
	"fairdeck/internal/shuffle"
	"fairdeck/internal/state"
)

// ErrDeckExhausted guards the invariant that the deal cursor never exceeds
// the deck length.
var ErrDeckExhausted = errors.New("deck exhausted")

// dealHole derives the master seed, shuffles, and deals hole cards to every
// player in join order, one card per round, recording every consumed index.
func dealHole(rm *state.Room) error {
	reveals := make([]fairness.Reveal, 0, len(rm.Players))
	for _, p := range rm.Players {
		reveals = append(reveals, fairness.Reveal{PID: p.PID, Seed: p.Seed, Salt: p.Salt})
	}
	masterBytes, masterHex, err := fairness.MasterSeed(reveals)
	if err != nil {
		return err
	}

	deck, err := shuffle.Deterministic(shuffle.NewDeck(), masterBytes)
	if err != nil {
		return err
	}

	holeN := rm.Variant.HoleCards()
	if need := holeN * len(rm.Players); need > len(deck) {
		return fmt.Errorf("%w: %d hole cards needed from %d", ErrDeckExhausted, need, len(deck))
	}

	rm.MasterSeed = masterBytes
	rm.MasterSeedHex = masterHex
	rm.Deck = deck
	rm.DealCursor = 0
	rm.Transcript = &state.Transcript{
		Variant:          rm.Variant,
		Holes:            make(map[string][]int, len(rm.Players)),
		CommunityIndexes: []int{},
		CreatedAt:        time.Now().Unix(),
	}
	for _, p := range rm.Players {
		p.Hole = nil
		rm.Transcript.Holes[p.PID] = []int{}
	}

	// Round-robin: everyone's first card, then everyone's second, and so on.
	// Join order decides who gets which physical deck position.
	for round := 0; round < holeN; round++ {
		for _, p := range rm.Players {
			idx := rm.DealCursor
			p.Hole = append(p.Hole, rm.Deck[idx])
			rm.Transcript.Holes[p.PID] = append(rm.Transcript.Holes[p.PID], idx)
			rm.DealCursor++
		}
	}
	return nil
}

// dealCommunity consumes count cards for the board. No burn cards: every
// consumed index stays visible in the transcript.
func dealCommunity(rm *state.Room, count int) error {
	if rm.DealCursor+count > len(rm.Deck) {
		return fmt.Errorf("%w: cursor %d + %d cards", ErrDeckExhausted, rm.DealCursor, count)
	}
	for i := 0; i < count; i++ {
		idx := rm.DealCursor
		rm.Community = append(rm.Community, rm.Deck[idx])
		rm.Transcript.CommunityIndexes = append(rm.Transcript.CommunityIndexes, idx)
		rm.DealCursor++
	}
	return nil
}

// Disclose builds the audit payload for the current hand: every reveal
// (sorted by pid), the full deck, its digest, and the transcript.
func Disclose(rm *state.Room) *codec.AuditMsg {
	reveals := make([]fairness.Reveal, 0, len(rm.Players))
	for _, p := range rm.Players {
		reveals = append(reveals, fairness.Reveal{PID: p.PID, Seed: p.Seed, Salt: p.Salt})
	}
	sort.Slice(reveals, func(i, j int) bool { return reveals[i].PID < reveals[j].PID })

	return &codec.AuditMsg{
		Type:          "audit",
		MasterSeedHex: rm.MasterSeedHex,
		Deck:          rm.Deck,
		DeckHash:      shuffle.DeckHash(rm.Deck),
		Reveals:       reveals,
		Transcript:    rm.Transcript,
	}
}
