package shuffle

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Canonical deck order: ranks high to low inside each suit. Auditors rebuild
// the deck from this exact order before replaying the shuffle.
var (
	Ranks = []string{"A", "K", "Q", "J", "10", "9", "8", "7", "6", "5", "4", "3", "2"}
	Suits = []string{"♠", "♥", "♦", "♣"}
)

// DeckSize is the number of cards in a canonical deck (no jokers).
const DeckSize = 52

// NewDeck returns the canonical 52-card deck, rank+suit per card.
func NewDeck() []string {
	deck := make([]string, 0, DeckSize)
	for _, s := range Suits {
		for _, r := range Ranks {
			deck = append(deck, r+s)
		}
	}
	return deck
}

// DeckHash returns the lowercase hex sha256 of the pipe-joined card sequence
// with a trailing pipe. Disclosed alongside the deck so clients can spot
// transport corruption cheaply before running the full audit.
func DeckHash(deck []string) string {
	sum := sha256.Sum256([]byte(strings.Join(deck, "|") + "|"))
	return hex.EncodeToString(sum[:])
}
