package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a requested session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// Session is one recorded run of the tracking loop.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FrameRate int       `json:"frame_rate"`
	Roles     []string  `json:"roles"`
	Frames    int64     `json:"frames"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Duration returns the recorded length at the session frame rate.
func (s *Session) Duration() time.Duration {
	if s.FrameRate <= 0 {
		return 0
	}
	return time.Duration(s.Frames) * time.Second / time.Duration(s.FrameRate)
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session. An empty ID is replaced with a random UUID.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.Name == "" {
		sess.Name = "session-" + sess.ID[:8]
	}
	roles, err := json.Marshal(sess.Roles)
	if err != nil {
		return fmt.Errorf("encode roles: %w", err)
	}

	now := time.Now()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	_, err = r.db.Exec(
		`INSERT INTO sessions (id, name, frame_rate, roles, frames, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.FrameRate, string(roles), sess.Frames, sess.CreatedAt, sess.UpdatedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	sess := &Session{}
	var roles string
	if err := row.Scan(&sess.ID, &sess.Name, &sess.FrameRate, &roles, &sess.Frames, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(roles), &sess.Roles); err != nil {
		return nil, fmt.Errorf("decode roles for session %s: %w", sess.ID, err)
	}
	return sess, nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess, err := scanSession(r.db.QueryRow(
		`SELECT id, name, frame_rate, roles, frames, created_at, updated_at
		 FROM sessions WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List retrieves all sessions, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, name, frame_rate, roles, frames, created_at, updated_at
		 FROM sessions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// SetFrames records the number of frames captured so far.
func (r *SessionRepository) SetFrames(id string, frames int64) error {
	return setFrames(r.db, id, frames)
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func setFrames(db execer, id string, frames int64) error {
	result, err := db.Exec(
		`UPDATE sessions SET frames = ?, updated_at = ? WHERE id = ?`,
		frames, time.Now(), id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// Delete removes a session and its recorded data.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrSessionNotFound
	}

	return nil
}
