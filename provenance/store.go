// Package provenance durably records transcript snapshots for the study.
// Every completed turn and every viewer toggle appends a snapshot, so the
// session can be reconstructed exactly as the participant saw it.
package provenance

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"chartchat/model"
)

// Snapshot is one recorded state: the full logical transcript (hidden
// messages included) and whether the instructions viewer was open.
type Snapshot struct {
	Messages    []model.Message `json:"messages"`
	ModalOpened bool            `json:"modalOpened"`
}

// Store persists snapshots in a local sqlite database. When created with a
// passphrase, payloads are encrypted at rest; snapshots hold participant
// conversations.
type Store struct {
	db     *sql.DB
	cipher *snapshotCipher
}

// NewStore opens (or creates) the snapshot database in dataDir. An empty
// passphrase stores payloads in plaintext.
func NewStore(dataDir, passphrase string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "provenance.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db}
	if passphrase != "" {
		store.cipher = newSnapshotCipher(passphrase)
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		encrypted INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_session ON snapshots(session_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record appends a snapshot for the session.
func (s *Store) Record(sessionID string, snapshot Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	encrypted := 0
	if s.cipher != nil {
		payload, err = s.cipher.encrypt(payload)
		if err != nil {
			return fmt.Errorf("failed to encrypt snapshot: %w", err)
		}
		encrypted = 1
	}

	_, err = s.db.Exec(
		`INSERT INTO snapshots (id, session_id, payload, encrypted, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), sessionID, payload, encrypted, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return nil
}

// Latest returns the most recent snapshot for the session, or nil when the
// session has no snapshots yet.
func (s *Store) Latest(sessionID string) (*Snapshot, error) {
	row := s.db.QueryRow(
		`SELECT payload, encrypted FROM snapshots WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		sessionID,
	)

	var payload []byte
	var encrypted int
	if err := row.Scan(&payload, &encrypted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	if encrypted == 1 {
		if s.cipher == nil {
			return nil, fmt.Errorf("snapshot is encrypted but no passphrase is configured")
		}
		var err error
		payload, err = s.cipher.decrypt(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt snapshot: %w", err)
		}
	}

	var snapshot Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}

// Count returns the number of snapshots recorded for the session.
func (s *Store) Count(sessionID string) (int, error) {
	row := s.db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE session_id = ?`, sessionID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SessionRecorder binds the store to one session id, exposing the single
// write path the chat orchestrator uses.
type SessionRecorder struct {
	store     *Store
	sessionID string
}

// ForSession returns a recorder scoped to the session.
func (s *Store) ForSession(sessionID string) *SessionRecorder {
	return &SessionRecorder{store: s, sessionID: sessionID}
}

// RecordState persists one snapshot of the transcript and viewer state.
func (r *SessionRecorder) RecordState(messages []model.Message, modalOpened bool) error {
	return r.store.Record(r.sessionID, Snapshot{Messages: messages, ModalOpened: modalOpened})
}
