package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/akyaiy/GoSally-connector/internal/core/sqlitedb"
)

// SQLiteStore persists sessions in a SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	err := sqlitedb.Migrate(db, `CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		token_hash TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		lifetime   INTEGER NOT NULL
	)`)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*Session, error) {
	var (
		sess      Session
		createdAt int64
		lifetime  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, token_hash, created_at, lifetime FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.TokenHash, &createdAt, &lifetime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = time.Unix(0, createdAt)
	sess.Lifetime = time.Duration(lifetime)
	return &sess, nil
}

func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, token_hash, created_at, lifetime) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET token_hash = excluded.token_hash, created_at = excluded.created_at, lifetime = excluded.lifetime`,
		sess.ID, sess.TokenHash, sess.CreatedAt.UnixNano(), int64(sess.Lifetime),
	)
	return err
}

func (s *SQLiteStore) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE created_at + lifetime <= ?`, now.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
