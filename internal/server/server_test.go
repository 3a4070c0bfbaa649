package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fairdeck/internal/codec"
	"fairdeck/internal/fairness"
)

type fakeArchive struct {
	mu      sync.Mutex
	records []*codec.AuditMsg
	rooms   []string
}

func (f *fakeArchive) Record(_ context.Context, roomCode string, payload *codec.AuditMsg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, payload)
	f.rooms = append(f.rooms, roomCode)
	return nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, *fakeArchive) {
	t.Helper()
	arch := &fakeArchive{}
	srv := New(zap.NewNop(), WithArchive(arch))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts, arch
}

func createRoom(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/create", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body["room"], 6)
	return body["room"]
}

func dial(t *testing.T, ts *httptest.Server, code, pid string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + code + "/" + pid
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, b))
}

// waitFor reads frames until pred matches, skipping unrelated traffic.
func waitFor(t *testing.T, conn *websocket.Conn, pred func(map[string]any) bool) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg map[string]any
		require.NoError(t, json.Unmarshal(raw, &msg))
		if pred(msg) {
			return msg
		}
	}
	t.Fatal("frame never arrived")
	return nil
}

// waitForLogs reads frames until every listed log line has been seen, in any
// order.
func waitForLogs(t *testing.T, conn *websocket.Conn, texts ...string) {
	t.Helper()
	pending := map[string]bool{}
	for _, s := range texts {
		pending[s] = true
	}
	waitFor(t, conn, func(m map[string]any) bool {
		if m["type"] == "log" {
			if text, ok := m["text"].(string); ok {
				delete(pending, text)
			}
		}
		return len(pending) == 0
	})
}

func waitForState(t *testing.T, conn *websocket.Conn, pred func(map[string]any) bool) map[string]any {
	t.Helper()
	return waitFor(t, conn, func(m map[string]any) bool {
		return m["type"] == "state" && pred(m)
	})
}

func stagedCommit(pid string) (commitment, seed, salt string) {
	seed = "seed-" + pid
	salt = "salt-" + pid
	return fairness.Commitment(seed, salt), seed, salt
}

func TestCreateRoom(t *testing.T) {
	srv, ts, _ := newTestServer(t)
	code := createRoom(t, ts)
	assert.Contains(t, srv.Rooms(), code)
}

func TestFullHandOverWebsocket(t *testing.T) {
	_, ts, arch := newTestServer(t)
	code := createRoom(t, ts)

	alice := dial(t, ts, code, "alice")
	// The initial snapshot arrives before any join message is sent.
	waitForState(t, alice, func(m map[string]any) bool { return m["stage"] == "LOBBY" })
	send(t, alice, map[string]any{"type": "join", "name": "Alice"})

	bob := dial(t, ts, code, "bob")
	waitForState(t, bob, func(m map[string]any) bool { return true })
	send(t, bob, map[string]any{"type": "join", "name": "Bob"})

	for _, c := range []struct {
		conn *websocket.Conn
		pid  string
	}{{alice, "alice"}, {bob, "bob"}} {
		commitment, seed, salt := stagedCommit(c.pid)
		send(t, c.conn, map[string]any{"type": "commit", "commitment": commitment})
		send(t, c.conn, map[string]any{"type": "reveal", "seed": seed, "salt": salt})
	}

	// The two connections race each other; wait until the coordinator has
	// processed both reveals before the host starts the hand.
	waitForLogs(t, alice, "Alice revealed to server.", "Bob revealed to server.")

	send(t, alice, map[string]any{"type": "start_hand", "variant": "TEXAS"})

	stateA := waitForState(t, alice, func(m map[string]any) bool { return m["stage"] == "HAND" })
	stateB := waitForState(t, bob, func(m map[string]any) bool { return m["stage"] == "HAND" })

	holeA := stateA["my_hole"].([]any)
	holeB := stateB["my_hole"].([]any)
	require.Len(t, holeA, 2)
	require.Len(t, holeB, 2)
	assert.NotEqual(t, holeA, holeB)

	players := stateA["players"].(map[string]any)
	assert.True(t, players["alice"].(map[string]any)["is_host"].(bool))
	assert.False(t, players["bob"].(map[string]any)["is_host"].(bool))

	send(t, alice, map[string]any{"type": "deal", "what": "flop"})
	flopState := waitForState(t, bob, func(m map[string]any) bool {
		return len(m["community"].([]any)) == 3
	})
	assert.Equal(t, "HAND", flopState["stage"])

	// Any participant may request the audit.
	send(t, bob, map[string]any{"type": "audit"})
	auditA := waitFor(t, alice, func(m map[string]any) bool { return m["type"] == "audit" })
	waitFor(t, bob, func(m map[string]any) bool { return m["type"] == "audit" })

	var payload codec.AuditMsg
	raw, err := json.Marshal(auditA)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &payload))

	rep := fairness.Verify(fairness.Disclosure{
		MasterSeedHex: payload.MasterSeedHex,
		Deck:          payload.Deck,
		DeckHash:      payload.DeckHash,
		Reveals:       payload.Reveals,
		Holes:         payload.Transcript.Holes,
		Community:     payload.Transcript.CommunityIndexes,
	})
	assert.True(t, rep.OK(), "disclosure findings: %v", rep.Findings)

	waitForState(t, alice, func(m map[string]any) bool { return m["stage"] == "AUDIT" })

	arch.mu.Lock()
	defer arch.mu.Unlock()
	require.Len(t, arch.records, 1)
	assert.Equal(t, code, arch.rooms[0])
	assert.Equal(t, payload.MasterSeedHex, arch.records[0].MasterSeedHex)
}

func TestUnknownMessageIsNonFatal(t *testing.T) {
	_, ts, _ := newTestServer(t)
	code := createRoom(t, ts)

	conn := dial(t, ts, code, "alice")
	send(t, conn, map[string]any{"type": "raise", "amount": 100})
	waitFor(t, conn, func(m map[string]any) bool {
		return m["type"] == "log" && m["text"] == "Unknown message."
	})

	// The connection survives and keeps working.
	send(t, conn, map[string]any{"type": "join", "name": "Alice"})
	waitForState(t, conn, func(m map[string]any) bool {
		players := m["players"].(map[string]any)
		p, ok := players["alice"].(map[string]any)
		return ok && p["name"] == "Alice"
	})
}

func TestProtocolErrorsUnicastToSender(t *testing.T) {
	_, ts, _ := newTestServer(t)
	code := createRoom(t, ts)

	alice := dial(t, ts, code, "alice")
	waitForState(t, alice, func(m map[string]any) bool { return true })
	bob := dial(t, ts, code, "bob")
	waitForState(t, bob, func(m map[string]any) bool { return true })

	send(t, bob, map[string]any{"type": "start_hand", "variant": "TEXAS"})
	waitFor(t, bob, func(m map[string]any) bool {
		return m["type"] == "log" && m["text"] == "host only"
	})

	// No stage change leaked to anyone.
	send(t, alice, map[string]any{"type": "join", "name": "Alice"})
	st := waitForState(t, alice, func(m map[string]any) bool {
		players := m["players"].(map[string]any)
		p, ok := players["alice"].(map[string]any)
		return ok && p["name"] == "Alice"
	})
	assert.Equal(t, "LOBBY", st["stage"])
}

func TestDisconnectTransfersHost(t *testing.T) {
	_, ts, _ := newTestServer(t)
	code := createRoom(t, ts)

	alice := dial(t, ts, code, "alice")
	waitForState(t, alice, func(m map[string]any) bool { return true })
	bob := dial(t, ts, code, "bob")
	waitForState(t, bob, func(m map[string]any) bool { return true })
	send(t, bob, map[string]any{"type": "join", "name": "Bob"})

	require.NoError(t, alice.Close())

	waitForState(t, bob, func(m map[string]any) bool {
		players := m["players"].(map[string]any)
		if _, stillHere := players["alice"]; stillHere {
			return false
		}
		p, ok := players["bob"].(map[string]any)
		return ok && p["is_host"].(bool)
	})
}

func TestRoomCreatedOnFirstJoin(t *testing.T) {
	srv, ts, _ := newTestServer(t)

	conn := dial(t, ts, "ADHOC1", "alice")
	waitForState(t, conn, func(m map[string]any) bool { return m["room"] == "ADHOC1" })
	require.NotNil(t, srv.Room("ADHOC1"))
}
