package state

import (
	"strings"
	"time"
)

// Stage is the per-room lifecycle phase gating protocol actions.
type Stage string

const (
	StageLobby  Stage = "LOBBY"
	StageCommit Stage = "COMMIT"
	StageReveal Stage = "REVEAL"
	StageHand   Stage = "HAND"
	StageAudit  Stage = "AUDIT"
)

// Variant selects the hole-card count. The two variants differ in nothing
// else.
type Variant string

const (
	VariantTexas Variant = "TEXAS"
	VariantOmaha Variant = "OMAHA"
)

// HoleCards returns the number of hole cards dealt per player.
func (v Variant) HoleCards() int {
	if v == VariantOmaha {
		return 4
	}
	return 2
}

// ParseVariant normalizes a caller-supplied variant string, defaulting to
// Texas for anything unrecognized.
func ParseVariant(s string) Variant {
	switch Variant(strings.ToUpper(s)) {
	case VariantOmaha:
		return VariantOmaha
	default:
		return VariantTexas
	}
}

// Player is one connected participant. Identity is a caller-supplied opaque
// token, unique within the room. Seed and Salt stay private to the
// coordinator until audit.
type Player struct {
	PID    string
	Name   string
	Avatar string
	IsHost bool

	Commitment string
	Seed       string
	Salt       string

	Hole []string
}

// Revealed reports whether the player has disclosed a full (seed, salt) pair.
func (p *Player) Revealed() bool {
	return p.Seed != "" && p.Salt != ""
}

// Transcript records which deck index went to whom for one hand. Written once
// while dealing, then immutable; it is what an audit reconstructs.
type Transcript struct {
	Variant          Variant          `json:"variant"`
	Holes            map[string][]int `json:"holes"`
	CommunityIndexes []int            `json:"community_indices"`
	CreatedAt        int64            `json:"created_at"`
}

// Room is the unit of shared mutable state. Players preserves join order,
// which fixes the hole-card dealing order and must survive every operation
// except leave.
type Room struct {
	Code      string
	CreatedAt time.Time

	Players []*Player

	Variant Variant
	Stage   Stage

	Community  []string
	Deck       []string
	DealCursor int

	MasterSeed    []byte
	MasterSeedHex string
	Transcript    *Transcript

	// HandsDealt counts completed start_hand/new_hand derivations; new_hand
	// is only legal once at least one hand has been derived.
	HandsDealt int
}

func NewRoom(code string) *Room {
	return &Room{
		Code:      code,
		CreatedAt: time.Now(),
		Variant:   VariantTexas,
		Stage:     StageLobby,
	}
}

// Player returns the member with the given identity, or nil.
func (r *Room) Player(pid string) *Player {
	for _, p := range r.Players {
		if p.PID == pid {
			return p
		}
	}
	return nil
}

// Host returns the current host, or nil for an empty room.
func (r *Room) Host() *Player {
	for _, p := range r.Players {
		if p.IsHost {
			return p
		}
	}
	return nil
}

// AddPlayer creates a member at the end of the join order. The first player
// into an empty room becomes host. Re-adding an existing identity returns the
// existing member unchanged.
func (r *Room) AddPlayer(pid string) *Player {
	if p := r.Player(pid); p != nil {
		return p
	}
	p := &Player{PID: pid, Name: "Player"}
	if len(r.Players) == 0 {
		p.IsHost = true
	}
	r.Players = append(r.Players, p)
	return p
}

// RemovePlayer drops a member and, if the host left a non-empty room,
// promotes the longest-standing remaining member. It returns the removed
// player and the promoted player (nil when no promotion happened). Host
// transfer is synchronous: a non-empty room never observably lacks a host.
func (r *Room) RemovePlayer(pid string) (removed, promoted *Player) {
	for i, p := range r.Players {
		if p.PID == pid {
			removed = p
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			break
		}
	}
	if removed == nil {
		return nil, nil
	}
	if removed.IsHost && len(r.Players) > 0 {
		promoted = r.Players[0]
		promoted.IsHost = true
	}
	return removed, promoted
}

// ResetHand clears per-hand state while keeping commitments and reveals.
func (r *Room) ResetHand() {
	r.Community = nil
	r.Deck = nil
	r.DealCursor = 0
	r.MasterSeed = nil
	r.MasterSeedHex = ""
	r.Transcript = nil
	for _, p := range r.Players {
		p.Hole = nil
	}
}
