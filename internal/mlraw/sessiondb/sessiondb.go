package sessiondb

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/ml2raw/internal/timeutil"
)

// Session is one ingested capture container.
type Session struct {
	SessionID        string
	Path             string
	Kind             string
	DeclaredVersion  int32
	ResolvedVersion  int32
	RecordCount      int64
	FirstTimestampNs int64
	LastTimestampNs  int64
	Truncated        bool
	CreatedAt        int64 // unix nanoseconds
}

// SessionStore reads and writes capture session rows.
type SessionStore struct {
	db    *DB
	clock timeutil.Clock
}

func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db, clock: timeutil.RealClock{}}
}

// NewSessionStoreWithClock is NewSessionStore with an explicit clock
// for created_at stamping.
func NewSessionStoreWithClock(db *DB, clock timeutil.Clock) *SessionStore {
	return &SessionStore{db: db, clock: clock}
}

// Insert stores a session row. A missing SessionID is assigned a fresh
// UUID and a zero CreatedAt is stamped with the current time; both are
// returned via the updated struct.
func (s *SessionStore) Insert(sess *Session) error {
	if sess.SessionID == "" {
		sess.SessionID = uuid.New().String()
	}
	if sess.CreatedAt == 0 {
		sess.CreatedAt = s.clock.Now().UnixNano()
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO capture_sessions
				(session_id, path, kind, declared_version, resolved_version,
				 record_count, first_timestamp_ns, last_timestamp_ns, truncated, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.SessionID, sess.Path, sess.Kind,
			sess.DeclaredVersion, sess.ResolvedVersion,
			sess.RecordCount, sess.FirstTimestampNs, sess.LastTimestampNs,
			sess.Truncated, sess.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting session %s: %w", sess.SessionID, err)
		}
		return nil
	})
}

// GetByID returns the session with the given id, or sql.ErrNoRows.
func (s *SessionStore) GetByID(id string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT session_id, path, kind, declared_version, resolved_version,
		       record_count, first_timestamp_ns, last_timestamp_ns, truncated, created_at
		FROM capture_sessions WHERE session_id = ?`, id)
	return scanSession(row)
}

// List returns the most recent sessions, newest first, optionally
// filtered by sensor kind. A limit <= 0 means no limit.
func (s *SessionStore) List(kind string, limit int) ([]*Session, error) {
	q := `
		SELECT session_id, path, kind, declared_version, resolved_version,
		       record_count, first_timestamp_ns, last_timestamp_ns, truncated, created_at
		FROM capture_sessions`
	args := []any{}
	if kind != "" {
		q += ` WHERE kind = ?`
		args = append(args, kind)
	}
	q += ` ORDER BY created_at DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*Session, error) {
	var sess Session
	err := r.Scan(&sess.SessionID, &sess.Path, &sess.Kind,
		&sess.DeclaredVersion, &sess.ResolvedVersion,
		&sess.RecordCount, &sess.FirstTimestampNs, &sess.LastTimestampNs,
		&sess.Truncated, &sess.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session row: %w", err)
	}
	return &sess, nil
}
