// Package game applies inbound messages to room state. Every operation is a
// pure-ish step: it either mutates the room and returns the outbound effects,
// or returns an error leaving the room untouched. Serialization (one writer
// per room) is the caller's job.
package game

import (
	"errors"
	"fmt"

	"fairdeck/internal/codec"
	"fairdeck/internal/fairness"
	"fairdeck/internal/state"
)

var (
	ErrNotHost         = errors.New("host only")
	ErrNeedPlayers     = errors.New("need at least 2 players")
	ErrNoHand          = errors.New("start a hand first")
	ErrNoHandYet       = errors.New("no hand has been dealt yet")
	ErrInvalidDealStep = errors.New("that deal action is not valid right now")
	ErrNothingToAudit  = errors.New("nothing to audit yet")
	ErrUnknownPlayer   = errors.New("unknown player")
)

const (
	maxNameRunes   = 18
	maxAvatarRunes = 2
)

// Notice is a human-readable log line. An empty To means broadcast.
type Notice struct {
	To   string
	Text string
}

// Result carries the outbound effects of one applied message. StateChanged
// asks the caller to redistribute per-recipient snapshots; Audit, when set,
// is broadcast to every member.
type Result struct {
	Notices      []Notice
	StateChanged bool
	Audit        *codec.AuditMsg
}

func (r *Result) broadcast(format string, args ...any) {
	r.Notices = append(r.Notices, Notice{Text: fmt.Sprintf(format, args...)})
}

// Apply routes one decoded message from pid into the room. A returned error
// is a protocol violation: the room is unchanged and the caller reports the
// error text to the sender only.
func Apply(rm *state.Room, pid string, msg codec.Inbound) (Result, error) {
	p := rm.Player(pid)
	if p == nil {
		return Result{}, ErrUnknownPlayer
	}

	switch m := msg.(type) {
	case *codec.JoinMsg:
		return applyJoin(rm, p, m)
	case *codec.CommitMsg:
		return applyCommit(rm, p, m)
	case *codec.RevealMsg:
		return applyReveal(rm, p, m)
	case *codec.StartHandMsg:
		return applyStartHand(rm, p, m)
	case *codec.DealMsg:
		return applyDeal(rm, p, m)
	case *codec.NewHandMsg:
		return applyNewHand(rm, p)
	case *codec.AuditRequestMsg:
		return applyAudit(rm, p)
	default:
		return Result{}, fmt.Errorf("unhandled message %T", msg)
	}
}

func applyJoin(rm *state.Room, p *state.Player, m *codec.JoinMsg) (Result, error) {
	name := truncateRunes(m.Name, maxNameRunes)
	if name == "" {
		name = "Player"
	}
	p.Name = name
	p.Avatar = truncateRunes(m.Avatar, maxAvatarRunes)

	var res Result
	res.broadcast("%s joined the table.", p.Name)
	res.StateChanged = true
	return res, nil
}

func applyCommit(rm *state.Room, p *state.Player, m *codec.CommitMsg) (Result, error) {
	if err := fairness.ValidateCommitment(m.Commitment); err != nil {
		return Result{}, err
	}
	// One live commitment per hand cycle: a re-commit overwrites, never
	// accumulates, and wipes any reveal bound to the old value.
	p.Commitment = m.Commitment
	p.Seed = ""
	p.Salt = ""

	var res Result
	res.broadcast("%s committed.", p.Name)
	if rm.Stage == state.StageLobby {
		rm.Stage = state.StageCommit
	}
	res.StateChanged = true
	return res, nil
}

func applyReveal(rm *state.Room, p *state.Player, m *codec.RevealMsg) (Result, error) {
	if err := fairness.CheckReveal(p.Commitment, m.Seed, m.Salt); err != nil {
		return Result{}, err
	}
	p.Seed = m.Seed
	p.Salt = m.Salt

	var res Result
	res.broadcast("%s revealed to server.", p.Name)
	// Idempotent advance: never regress a room that is already in or past
	// the reveal phase.
	if rm.Stage == state.StageLobby || rm.Stage == state.StageCommit {
		rm.Stage = state.StageReveal
	}
	res.StateChanged = true
	return res, nil
}

func applyStartHand(rm *state.Room, p *state.Player, m *codec.StartHandMsg) (Result, error) {
	if !p.IsHost {
		return Result{}, ErrNotHost
	}
	if len(rm.Players) < 2 {
		return Result{}, ErrNeedPlayers
	}
	// Checked in join order; the first failing player is named and nothing
	// changes.
	for _, member := range rm.Players {
		if member.Commitment == "" {
			return Result{}, fmt.Errorf("%s has not committed", member.Name)
		}
		if !member.Revealed() {
			return Result{}, fmt.Errorf("%s has not revealed to server", member.Name)
		}
	}

	rm.Variant = state.ParseVariant(m.Variant)
	rm.ResetHand()
	if err := dealHole(rm); err != nil {
		rm.ResetHand()
		return Result{}, err
	}
	rm.Stage = state.StageHand
	rm.HandsDealt++

	var res Result
	res.broadcast("New hand started • %s • Dealt hole cards.", rm.Variant)
	res.StateChanged = true
	return res, nil
}

func applyDeal(rm *state.Room, p *state.Player, m *codec.DealMsg) (Result, error) {
	if !p.IsHost {
		return Result{}, ErrNotHost
	}
	if rm.Stage != state.StageHand || len(rm.Deck) == 0 {
		return Result{}, ErrNoHand
	}

	var res Result
	switch {
	case m.What == "flop" && len(rm.Community) == 0:
		if err := dealCommunity(rm, 3); err != nil {
			return Result{}, err
		}
		res.broadcast("Flop dealt.")
	case m.What == "turn" && len(rm.Community) == 3:
		if err := dealCommunity(rm, 1); err != nil {
			return Result{}, err
		}
		res.broadcast("Turn dealt.")
	case m.What == "river" && len(rm.Community) == 4:
		if err := dealCommunity(rm, 1); err != nil {
			return Result{}, err
		}
		res.broadcast("River dealt.")
	default:
		return Result{}, ErrInvalidDealStep
	}
	res.StateChanged = true
	return res, nil
}

func applyNewHand(rm *state.Room, p *state.Player) (Result, error) {
	if !p.IsHost {
		return Result{}, ErrNotHost
	}
	if rm.HandsDealt == 0 {
		return Result{}, ErrNoHandYet
	}
	for _, member := range rm.Players {
		if member.Commitment == "" {
			return Result{}, fmt.Errorf("%s has not committed", member.Name)
		}
		if !member.Revealed() {
			return Result{}, fmt.Errorf("%s has not revealed to server", member.Name)
		}
	}

	audited := rm.Stage == state.StageAudit

	rm.ResetHand()
	if err := dealHole(rm); err != nil {
		rm.ResetHand()
		return Result{}, err
	}
	rm.Stage = state.StageHand
	rm.HandsDealt++

	var res Result
	res.broadcast("New hand (same commitments) • Dealt hole cards.")
	if audited {
		// The previous audit made every seed public, so this deal is
		// predictable to anyone who kept the disclosure. Flag it loudly
		// instead of pretending otherwise.
		res.broadcast("Warning: seeds from the last audit are public. Re-commit before this hand counts.")
	}
	res.StateChanged = true
	return res, nil
}

func applyAudit(rm *state.Room, p *state.Player) (Result, error) {
	if rm.Stage != state.StageHand || len(rm.Deck) == 0 || rm.MasterSeedHex == "" {
		return Result{}, ErrNothingToAudit
	}

	payload := Disclose(rm)
	rm.Stage = state.StageAudit

	var res Result
	res.broadcast("AUDIT broadcast: seeds revealed. Verify now.")
	res.Audit = payload
	res.StateChanged = true
	return res, nil
}

// Disconnect removes a departing player and re-establishes the host
// invariant before anyone can observe the room without one.
func Disconnect(rm *state.Room, pid string) Result {
	removed, promoted := rm.RemovePlayer(pid)
	if removed == nil {
		return Result{}
	}
	var res Result
	res.broadcast("%s left.", removed.Name)
	if promoted != nil {
		res.broadcast("%s is now HOST.", promoted.Name)
	}
	res.StateChanged = true
	return res
}

// Snapshot renders the room for one recipient. Hole cards are the only
// per-recipient field; reveal flags are reported truthfully only once the
// hand is underway so reveal timing leaks nothing before then.
func Snapshot(rm *state.Room, pid string) codec.StateMsg {
	players := make(map[string]codec.PlayerView, len(rm.Players))
	showReveals := rm.Stage == state.StageHand || rm.Stage == state.StageAudit
	for _, member := range rm.Players {
		players[member.PID] = codec.PlayerView{
			PID:        member.PID,
			Name:       member.Name,
			Avatar:     member.Avatar,
			IsHost:     member.IsHost,
			Commitment: member.Commitment,
			Revealed:   showReveals && member.Revealed(),
		}
	}

	var myHole []string
	if me := rm.Player(pid); me != nil {
		myHole = me.Hole
	}
	if myHole == nil {
		myHole = []string{}
	}
	community := rm.Community
	if community == nil {
		community = []string{}
	}

	return codec.StateMsg{
		Type:         "state",
		Room:         rm.Code,
		Stage:        rm.Stage,
		Variant:      rm.Variant,
		Players:      players,
		Community:    community,
		MyHole:       myHole,
		AuditPending: rm.Stage == state.StageHand,
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}
