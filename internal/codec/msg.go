package codec

import (
	"encoding/json"
	"fmt"

	"fairdeck/internal/fairness"
	"fairdeck/internal/state"
)

// Inbound is the closed set of messages a participant may send. Anything
// outside this set is rejected at the boundary before it reaches room state.
type Inbound interface {
	inbound()
}

type JoinMsg struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type CommitMsg struct {
	Commitment string `json:"commitment"`
}

type RevealMsg struct {
	Seed string `json:"seed"`
	Salt string `json:"salt"`
}

type StartHandMsg struct {
	Variant string `json:"variant"`
}

type DealMsg struct {
	// What is one of flop|turn|river.
	What string `json:"what"`
}

type NewHandMsg struct{}

type AuditRequestMsg struct{}

func (JoinMsg) inbound()         {}
func (CommitMsg) inbound()       {}
func (RevealMsg) inbound()       {}
func (StartHandMsg) inbound()    {}
func (DealMsg) inbound()         {}
func (NewHandMsg) inbound()      {}
func (AuditRequestMsg) inbound() {}

// UnknownTypeError marks a message kind outside the closed set. The server
// answers it with a non-fatal notice to the sender only.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown message type %q", e.Type)
}

// Decode parses one inbound frame. Fields beyond the variant's declared set
// are ignored; a missing or unrecognized type is an *UnknownTypeError.
func Decode(raw []byte) (Inbound, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid message json: %w", err)
	}

	unmarshal := func(v Inbound) (Inbound, error) {
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, fmt.Errorf("bad %s payload: %w", env.Type, err)
		}
		return v, nil
	}

	switch env.Type {
	case "join":
		return unmarshal(&JoinMsg{})
	case "commit":
		return unmarshal(&CommitMsg{})
	case "reveal":
		return unmarshal(&RevealMsg{})
	case "start_hand":
		return unmarshal(&StartHandMsg{})
	case "deal":
		return unmarshal(&DealMsg{})
	case "new_hand":
		return &NewHandMsg{}, nil
	case "audit":
		return &AuditRequestMsg{}, nil
	default:
		return nil, &UnknownTypeError{Type: env.Type}
	}
}

// ---- Outbound ----

// PlayerView is the per-player slice of a state snapshot. The commitment is
// public by construction (it is a hash); Revealed is only reported truthfully
// once the hand is underway so reveal timing leaks nothing earlier.
type PlayerView struct {
	PID        string `json:"pid"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar"`
	IsHost     bool   `json:"is_host"`
	Commitment string `json:"commitment,omitempty"`
	Revealed   bool   `json:"revealed"`
}

// StateMsg is the full room snapshot sent to one recipient. MyHole is
// recipient-private; everything else is identical across recipients.
type StateMsg struct {
	Type         string                `json:"type"`
	Room         string                `json:"room"`
	Stage        state.Stage           `json:"stage"`
	Variant      state.Variant         `json:"variant"`
	Players      map[string]PlayerView `json:"players"`
	Community    []string              `json:"community"`
	MyHole       []string              `json:"my_hole"`
	AuditPending bool                  `json:"audit_pending"`
}

// LogMsg is a human-readable event notice.
type LogMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewLogMsg(text string) LogMsg {
	return LogMsg{Type: "log", Text: text}
}

// AuditMsg is the one-way disclosure that lets every participant re-derive
// the hand. Reveals are sorted by pid.
type AuditMsg struct {
	Type          string            `json:"type"`
	MasterSeedHex string            `json:"master_seed_hex"`
	Deck          []string          `json:"deck"`
	DeckHash      string            `json:"deck_hash"`
	Reveals       []fairness.Reveal `json:"reveals"`
	Transcript    *state.Transcript `json:"transcript"`
}

// Encode marshals any outbound message to a text frame.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return b, nil
}
