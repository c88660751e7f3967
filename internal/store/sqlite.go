package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kaizenverse/liveclass/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	username     TEXT NOT NULL DEFAULT '',
	account_type TEXT NOT NULL DEFAULT 'student'
);

CREATE TABLE IF NOT EXISTS live_sessions (
	id                   TEXT PRIMARY KEY,
	teacher_id           TEXT NOT NULL,
	status               TEXT NOT NULL DEFAULT 'waiting',
	current_participants INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS live_participants (
	session_id  TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	is_active   INTEGER NOT NULL DEFAULT 1,
	media_state TEXT NOT NULL DEFAULT '{}',
	left_at     DATETIME,
	PRIMARY KEY (session_id, user_id)
);
`

// SQLite is the bundled Store implementation. A single writer suffices
// here: all writes on the signaling path go through the async writer
// queue, which serializes them.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the store database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// DB exposes the handle for seeding in tests and tooling.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) FindSession(ctx context.Context, id domain.SessionID) (domain.SessionInfo, error) {
	var info domain.SessionInfo
	row := s.db.QueryRowContext(ctx,
		`SELECT id, teacher_id, status FROM live_sessions WHERE id = ?`, string(id))
	if err := row.Scan(&info.ID, &info.TeacherID, &info.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SessionInfo{}, ErrSessionNotFound
		}
		return domain.SessionInfo{}, fmt.Errorf("find session %s: %w", id, err)
	}
	return info, nil
}

func (s *SQLite) IsActiveParticipant(ctx context.Context, sid domain.SessionID, uid domain.UserID) (bool, error) {
	var n int
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM live_participants WHERE session_id = ? AND user_id = ? AND is_active = 1`,
		string(sid), string(uid))
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("check participant %s/%s: %w", sid, uid, err)
	}
	return n > 0, nil
}

func (s *SQLite) FetchIdentity(ctx context.Context, uid domain.UserID) (domain.Identity, error) {
	var ident domain.Identity
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, username, account_type FROM users WHERE id = ?`, string(uid))
	if err := row.Scan(&ident.ID, &ident.Name, &ident.Username, &ident.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Identity{}, ErrUserNotFound
		}
		return domain.Identity{}, fmt.Errorf("fetch identity %s: %w", uid, err)
	}
	return ident, nil
}

func (s *SQLite) PersistMediaState(ctx context.Context, sid domain.SessionID, uid domain.UserID, state domain.MediaState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal media state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE live_participants SET media_state = ? WHERE session_id = ? AND user_id = ?`,
		string(blob), string(sid), string(uid))
	if err != nil {
		return fmt.Errorf("persist media state %s/%s: %w", sid, uid, err)
	}
	return nil
}

func (s *SQLite) MarkLeft(ctx context.Context, sid domain.SessionID, uid domain.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE live_participants SET is_active = 0, left_at = CURRENT_TIMESTAMP
		 WHERE session_id = ? AND user_id = ?`,
		string(sid), string(uid))
	if err != nil {
		return fmt.Errorf("mark left %s/%s: %w", sid, uid, err)
	}
	return nil
}

func (s *SQLite) SetLiveCount(ctx context.Context, sid domain.SessionID, count int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE live_sessions SET current_participants = ? WHERE id = ?`,
		count, string(sid))
	if err != nil {
		return fmt.Errorf("set live count %s: %w", sid, err)
	}
	return nil
}
