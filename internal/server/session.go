package server

import (
	"sync"

	"github.com/gorilla/websocket"

	"fairdeck/internal/codec"
	"fairdeck/internal/game"
	"fairdeck/internal/state"
)

// client is one participant connection. gorilla/websocket permits a single
// concurrent writer, hence the send mutex.
type client struct {
	pid string
	ws  *websocket.Conn

	sendMu sync.Mutex
}

func (c *client) send(payload []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// outFrame is one encoded message addressed to one recipient.
type outFrame struct {
	to      *client
	payload []byte
}

// roomSession pairs room state with its live connections. The mutex is the
// room's single-writer discipline: every mutation happens under it, in
// arrival order, while sending happens outside it.
type roomSession struct {
	code string

	mu    sync.Mutex
	rm    *state.Room
	conns map[string]*client
}

func newRoomSession(code string) *roomSession {
	return &roomSession{
		code:  code,
		rm:    state.NewRoom(code),
		conns: map[string]*client{},
	}
}

// connect registers a connection, creates the member, and returns the
// initial frames: a private snapshot for the joiner and a connect notice for
// everyone.
func (rs *roomSession) connect(cl *client) []outFrame {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	// A reconnect under the same identity replaces the transport and keeps
	// the member (commitment, reveal, hole cards, host role).
	rs.conns[cl.pid] = cl
	rs.rm.AddPlayer(cl.pid)

	short := cl.pid
	if len(short) > 8 {
		short = short[:8] + "…"
	}

	frames := rs.encodeSnapshotLocked(cl.pid)
	frames = append(frames, rs.encodeBroadcastLocked(codec.NewLogMsg("Player connected: "+short))...)
	return frames
}

// drop removes a connection if cl still owns its identity slot (a reconnect
// may have superseded it), applies the disconnect transition, and returns
// the resulting frames. The second result reports whether cl was live.
func (rs *roomSession) drop(cl *client) ([]outFrame, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.conns[cl.pid] != cl {
		return nil, false
	}
	delete(rs.conns, cl.pid)

	res := game.Disconnect(rs.rm, cl.pid)
	return rs.encodeResultLocked(res), true
}

// apply runs one inbound message under the room lock. On a protocol
// violation the error is returned and no frames are produced. The audit
// payload, when present, is returned separately so the caller can archive it.
func (rs *roomSession) apply(pid string, msg codec.Inbound) ([]outFrame, *codec.AuditMsg, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	res, err := game.Apply(rs.rm, pid, msg)
	if err != nil {
		return nil, nil, err
	}
	return rs.encodeResultLocked(res), res.Audit, nil
}

// encodeResultLocked turns a game result into addressed frames: notices,
// then the audit payload, then per-recipient state snapshots.
func (rs *roomSession) encodeResultLocked(res game.Result) []outFrame {
	var frames []outFrame
	for _, n := range res.Notices {
		msg := codec.NewLogMsg(n.Text)
		if n.To == "" {
			frames = append(frames, rs.encodeBroadcastLocked(msg)...)
		} else if cl, ok := rs.conns[n.To]; ok {
			if payload, err := codec.Encode(msg); err == nil {
				frames = append(frames, outFrame{to: cl, payload: payload})
			}
		}
	}
	if res.Audit != nil {
		frames = append(frames, rs.encodeBroadcastLocked(res.Audit)...)
	}
	if res.StateChanged {
		for pid := range rs.conns {
			frames = append(frames, rs.encodeSnapshotLocked(pid)...)
		}
	}
	return frames
}

func (rs *roomSession) encodeSnapshotLocked(pid string) []outFrame {
	cl, ok := rs.conns[pid]
	if !ok {
		return nil
	}
	payload, err := codec.Encode(game.Snapshot(rs.rm, pid))
	if err != nil {
		return nil
	}
	return []outFrame{{to: cl, payload: payload}}
}

func (rs *roomSession) encodeBroadcastLocked(msg any) []outFrame {
	payload, err := codec.Encode(msg)
	if err != nil {
		return nil
	}
	frames := make([]outFrame, 0, len(rs.conns))
	for _, cl := range rs.conns {
		frames = append(frames, outFrame{to: cl, payload: payload})
	}
	return frames
}
