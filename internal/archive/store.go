// Package archive persists normalized messages to Postgres so history
// survives cache eviction and process restarts.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/openwx/wechatsdk-bridge/pkg/puppet"
)

// Store writes and reads archived messages.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres, verifies the connection and ensures the schema.
func Open(uri string, maxOpen, maxIdle int) (*Store, error) {
	db, err := sql.Open("postgres", uri)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping archive database: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection without pinging or migrating.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS message_archive (
			msg_id       TEXT PRIMARY KEY,
			kind         INT NOT NULL,
			sub_kind     TEXT NOT NULL DEFAULT '',
			body         TEXT NOT NULL DEFAULT '',
			sender_id    TEXT NOT NULL DEFAULT '',
			recipient_id TEXT NOT NULL DEFAULT '',
			room_id      TEXT NOT NULL DEFAULT '',
			ts           BIGINT NOT NULL,
			created_at   TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create message_archive table: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS message_archive_room_ts
			ON message_archive (room_id, ts DESC)
	`)
	if err != nil {
		return fmt.Errorf("create message_archive index: %w", err)
	}
	return nil
}

const messageColumns = `msg_id, kind, sub_kind, body, sender_id, recipient_id, room_id, ts`

func scanMessage(scanner interface{ Scan(...interface{}) error }, m *puppet.Message) error {
	var kind int
	err := scanner.Scan(
		&m.ID, &kind, &m.SubKind, &m.Text,
		&m.SenderID, &m.RecipientID, &m.RoomID, &m.Timestamp,
	)
	m.Kind = puppet.MessageKind(kind)
	return err
}

// Insert archives one message, ignoring duplicates by message id.
func (s *Store) Insert(ctx context.Context, m *puppet.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_archive (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (msg_id) DO NOTHING
	`, m.ID, int(m.Kind), m.SubKind, m.Text, m.SenderID, m.RecipientID, m.RoomID, m.Timestamp)
	if err != nil {
		return fmt.Errorf("insert archived message: %w", err)
	}
	return nil
}

// GetByID returns an archived message, or nil when absent.
func (s *Store) GetByID(ctx context.Context, msgID string) (*puppet.Message, error) {
	m := &puppet.Message{}
	err := scanMessage(s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM message_archive WHERE msg_id = $1`, msgID), m)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get archived message: %w", err)
	}
	return m, nil
}

// RecentByRoom returns the newest messages of a room, newest first.
func (s *Store) RecentByRoom(ctx context.Context, roomID string, limit int) ([]*puppet.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM message_archive
		WHERE room_id = $1 ORDER BY ts DESC LIMIT $2
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("list archived messages: %w", err)
	}
	defer rows.Close()

	var out []*puppet.Message
	for rows.Next() {
		m := &puppet.Message{}
		if err := scanMessage(rows, m); err != nil {
			return nil, fmt.Errorf("scan archived message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
