// Package archive persists audit disclosures so a session can be reviewed
// after the room is gone. It is strictly write-behind: the protocol never
// waits on it and an archive failure never affects play.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"fairdeck/internal/codec"
)

const schema = `
CREATE TABLE IF NOT EXISTS hand_audits (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	room_code       TEXT NOT NULL,
	master_seed_hex TEXT NOT NULL,
	deck_hash       TEXT NOT NULL,
	reveals_json    TEXT NOT NULL,
	transcript_json TEXT NOT NULL,
	created_at_ms   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hand_audits_room ON hand_audits(room_code, created_at_ms);
`

// Store is a SQLite-backed archive of audit disclosures.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the archive database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply archive schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one audit disclosure for a room.
func (s *Store) Record(ctx context.Context, roomCode string, payload *codec.AuditMsg) error {
	revealsJSON, err := json.Marshal(payload.Reveals)
	if err != nil {
		return fmt.Errorf("encode reveals: %w", err)
	}
	transcriptJSON, err := json.Marshal(payload.Transcript)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO hand_audits (room_code, master_seed_hex, deck_hash, reveals_json, transcript_json, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		roomCode, payload.MasterSeedHex, payload.DeckHash,
		string(revealsJSON), string(transcriptJSON), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert hand audit: %w", err)
	}
	return nil
}

// Audit is one archived disclosure row.
type Audit struct {
	ID             int64
	RoomCode       string
	MasterSeedHex  string
	DeckHash       string
	RevealsJSON    string
	TranscriptJSON string
	CreatedAt      time.Time
}

// ListByRoom returns every archived disclosure for a room, oldest first.
func (s *Store) ListByRoom(ctx context.Context, roomCode string) ([]Audit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room_code, master_seed_hex, deck_hash, reveals_json, transcript_json, created_at_ms
		 FROM hand_audits WHERE room_code = ? ORDER BY created_at_ms, id`,
		roomCode,
	)
	if err != nil {
		return nil, fmt.Errorf("query hand audits: %w", err)
	}
	defer rows.Close()

	var out []Audit
	for rows.Next() {
		var a Audit
		var ms int64
		if err := rows.Scan(&a.ID, &a.RoomCode, &a.MasterSeedHex, &a.DeckHash, &a.RevealsJSON, &a.TranscriptJSON, &ms); err != nil {
			return nil, fmt.Errorf("scan hand audit: %w", err)
		}
		a.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hand audits: %w", err)
	}
	return out, nil
}
