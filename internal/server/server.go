// Package server owns the room directory and the per-participant websocket
// sessions. All room mutations are serialized behind each room's mutex;
// delivery happens outside it, per recipient, and a failed send demotes that
// recipient to disconnected without disturbing anyone else.
package server

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fairdeck/internal/codec"
	"fairdeck/internal/state"
)

// Archiver records audit disclosures. Satisfied by *archive.Store; nil
// disables archiving.
type Archiver interface {
	Record(ctx context.Context, roomCode string, payload *codec.AuditMsg) error
}

type Server struct {
	log     *zap.Logger
	archive Archiver
	codeLen int

	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]*roomSession
}

type Option func(*Server)

// WithArchive attaches a hand-history archive.
func WithArchive(a Archiver) Option {
	return func(s *Server) { s.archive = a }
}

// WithRoomCodeLength overrides the generated room-code length.
func WithRoomCodeLength(n int) Option {
	return func(s *Server) { s.codeLen = n }
}

func New(log *zap.Logger, opts ...Option) *Server {
	s := &Server{
		log:     log,
		codeLen: 6,
		rooms:   map[string]*roomSession{},
		upgrader: websocket.Upgrader{
			// Identity is an opaque caller-supplied token; origin checks are
			// the deployment's concern, not the protocol's.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP surface: room creation plus the websocket
// endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/create", s.handleCreate)
	mux.HandleFunc("GET /ws/{code}/{pid}", s.handleWS)
	return mux
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	code, err := s.newRoomCode()
	if err != nil {
		s.log.Error("generate room code", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.rooms[code] = newRoomSession(code)
	s.mu.Unlock()

	s.log.Info("room created", zap.String("room", code))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"room": code})
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newRoomCode draws a fixed-length alphanumeric code, retrying on the
// (incidental) collision with a live room.
func (s *Server) newRoomCode() (string, error) {
	for {
		buf := make([]byte, s.codeLen)
		for i := range buf {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
			if err != nil {
				return "", fmt.Errorf("room code: %w", err)
			}
			buf[i] = codeAlphabet[n.Int64()]
		}
		code := string(buf)

		s.mu.Lock()
		_, taken := s.rooms[code]
		s.mu.Unlock()
		if !taken {
			return code, nil
		}
	}
}

// session returns the room session for code, creating it on first join.
// Entries are never evicted.
func (s *Server) session(code string) *roomSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[code]
	if !ok {
		rs = newRoomSession(code)
		s.rooms[code] = rs
	}
	return rs
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	pid := r.PathValue("pid")
	if pid == "" {
		pid = uuid.NewString()
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return
	}

	rs := s.session(code)
	cl := &client{pid: pid, ws: ws}

	s.log.Info("participant connected",
		zap.String("room", code), zap.String("pid", pid))

	effects := rs.connect(cl)
	s.deliver(rs, effects)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			break
		}
		msg, err := codec.Decode(raw)
		if err != nil {
			// Unknown or malformed frames get a non-fatal notice to the
			// sender only.
			s.notify(rs, cl, "Unknown message.")
			continue
		}
		s.apply(rs, cl, msg)
	}

	_ = ws.Close()
	if effects, live := rs.drop(cl); live {
		s.log.Info("participant disconnected",
			zap.String("room", code), zap.String("pid", pid))
		s.deliver(rs, effects)
	}
}

// apply runs one message through the room state machine and distributes the
// resulting effects.
func (s *Server) apply(rs *roomSession, cl *client, msg codec.Inbound) {
	effects, audit, applyErr := rs.apply(cl.pid, msg)
	if applyErr != nil {
		// Protocol violations stay local: room untouched, sender notified.
		s.notify(rs, cl, applyErr.Error())
		return
	}
	if audit != nil {
		s.recordAudit(rs.code, audit)
	}
	s.deliver(rs, effects)
}

func (s *Server) recordAudit(code string, payload *codec.AuditMsg) {
	s.log.Info("audit disclosed",
		zap.String("room", code),
		zap.String("master_seed", payload.MasterSeedHex),
		zap.String("deck_hash", payload.DeckHash))
	if s.archive == nil {
		return
	}
	if err := s.archive.Record(context.Background(), code, payload); err != nil {
		s.log.Error("archive audit", zap.String("room", code), zap.Error(err))
	}
}

// notify unicasts a log line to one client.
func (s *Server) notify(rs *roomSession, cl *client, text string) {
	frame, err := codec.Encode(codec.NewLogMsg(text))
	if err != nil {
		return
	}
	if cl.send(frame) != nil {
		s.dropAndDeliver(rs, cl)
	}
}

// deliver sends queued frames. Any recipient whose send fails is treated as
// disconnected and removed, which may queue further effects.
func (s *Server) deliver(rs *roomSession, frames []outFrame) {
	var failed []*client
	for _, f := range frames {
		if err := f.to.send(f.payload); err != nil {
			failed = append(failed, f.to)
		}
	}
	for _, cl := range failed {
		s.dropAndDeliver(rs, cl)
	}
}

func (s *Server) dropAndDeliver(rs *roomSession, cl *client) {
	_ = cl.ws.Close()
	if effects, live := rs.drop(cl); live {
		s.log.Info("participant dropped on send failure",
			zap.String("room", rs.code), zap.String("pid", cl.pid))
		s.deliver(rs, effects)
	}
}

// Rooms returns a snapshot of live room codes, for diagnostics.
func (s *Server) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rooms))
	for code := range s.rooms {
		out = append(out, code)
	}
	return out
}

// Room exposes a room's state for tests and diagnostics. Callers must not
// mutate it.
func (s *Server) Room(code string) *state.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs, ok := s.rooms[code]; ok {
		return rs.rm
	}
	return nil
}
