package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is one run of a pipeline.
type Session struct {
	ID         string     `json:"id"`
	Mode       string     `json:"mode"`
	Source     string     `json:"source"`
	SpeedLimit int        `json:"speed_limit"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Frames     int        `json:"frames"`
}

// SessionRepository provides access to sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a session. An empty ID is filled with a new UUID and a zero
// StartedAt with the current time.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, mode, source, speed_limit, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.Mode, sess.Source, sess.SpeedLimit, sess.StartedAt,
	)
	return err
}

const sessionColumns = `s.id, s.mode, s.source, s.speed_limit, s.started_at, s.ended_at,
	(SELECT COUNT(*) FROM frames f WHERE f.session_id = s.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime
	if err := row.Scan(&sess.ID, &sess.Mode, &sess.Source, &sess.SpeedLimit, &sess.StartedAt, &ended, &sess.Frames); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

// GetByID retrieves a session with its frame count.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess, err := scanSession(r.db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List returns sessions, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(`SELECT ` + sessionColumns + ` FROM sessions s ORDER BY s.started_at DESC`)
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

// End marks a session finished at the given time.
func (r *SessionRepository) End(id string, at time.Time) error {
	result, err := r.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Delete removes a session and its frames.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
