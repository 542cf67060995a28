package store

import (
	"database/sql"
	"time"
)

// Session records one camera tracking session.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time
	Status    string
	Frames    int64
	Faces     int64
	Error     string
}

// SessionRepository stores tracking session history.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Start inserts a session that has not ended yet.
func (r *SessionRepository) Start(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO tracking_sessions (id, started_at, status, frames, faces, error)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.StartedAt, sess.Status, sess.Frames, sess.Faces, sess.Error,
	)
	return translate(err)
}

// Finish records the end of a session with its final counters.
func (r *SessionRepository) Finish(sess *Session) error {
	if sess.EndedAt == nil {
		now := time.Now()
		sess.EndedAt = &now
	}
	result, err := r.db.Exec(
		`UPDATE tracking_sessions SET ended_at = ?, status = ?, frames = ?, faces = ?, error = ?
		 WHERE id = ?`,
		*sess.EndedAt, sess.Status, sess.Frames, sess.Faces, sess.Error, sess.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Recent returns up to limit sessions, newest first.
func (r *SessionRepository) Recent(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(
		`SELECT id, started_at, ended_at, status, frames, faces, error
		 FROM tracking_sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess := &Session{}
		var ended sql.NullTime
		if err := rows.Scan(&sess.ID, &sess.StartedAt, &ended, &sess.Status, &sess.Frames, &sess.Faces, &sess.Error); err != nil {
			return nil, err
		}
		if ended.Valid {
			sess.EndedAt = &ended.Time
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}
