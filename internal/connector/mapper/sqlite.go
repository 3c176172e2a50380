package mapper

import (
	"context"
	"database/sql"
	"errors"

	"github.com/akyaiy/GoSally-connector/internal/connector/linker"
	"github.com/akyaiy/GoSally-connector/internal/core/sqlitedb"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS links (
		model_type  TEXT    NOT NULL,
		host_id     INTEGER NOT NULL,
		endpoint_id TEXT    NOT NULL,
		UNIQUE (model_type, host_id),
		UNIQUE (model_type, endpoint_id)
	)`,
	`CREATE TABLE IF NOT EXISTS checksums (
		model_type  TEXT NOT NULL,
		endpoint_id TEXT NOT NULL,
		checksum    TEXT NOT NULL,
		PRIMARY KEY (model_type, endpoint_id)
	)`,
}

// SQLite stores links and checksums in a SQLite database. Databases opened
// through sqlitedb take the write lock on BEGIN, which makes the
// read-check-insert sequences below atomic across processes.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) (*SQLite, error) {
	if err := sqlitedb.Migrate(db, sqliteSchema...); err != nil {
		return nil, err
	}
	return &SQLite{db: db}, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func hostID(ctx context.Context, q queryRower, modelType, endpointID string) (int64, bool, error) {
	var host int64
	err := q.QueryRowContext(ctx,
		`SELECT host_id FROM links WHERE model_type = ? AND endpoint_id = ?`, modelType, endpointID,
	).Scan(&host)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return host, true, nil
}

func endpointID(ctx context.Context, q queryRower, modelType string, host int64) (string, bool, error) {
	var endpoint string
	err := q.QueryRowContext(ctx,
		`SELECT endpoint_id FROM links WHERE model_type = ? AND host_id = ?`, modelType, host,
	).Scan(&endpoint)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return endpoint, true, nil
}

func (s *SQLite) HostID(ctx context.Context, modelType, endpoint string) (int64, bool, error) {
	return hostID(ctx, s.db, modelType, endpoint)
}

func (s *SQLite) EndpointID(ctx context.Context, modelType string, host int64) (string, bool, error) {
	return endpointID(ctx, s.db, modelType, host)
}

func (s *SQLite) Save(ctx context.Context, modelType, endpoint string, host int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	storedHost, hostFound, err := hostID(ctx, tx, modelType, endpoint)
	if err != nil {
		return err
	}
	storedEndpoint, endpointFound, err := endpointID(ctx, tx, modelType, host)
	if err != nil {
		return err
	}
	if hostFound && endpointFound && storedHost == host && storedEndpoint == endpoint {
		return nil
	}
	if hostFound || endpointFound {
		return linker.ErrConsistency
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO links (model_type, host_id, endpoint_id) VALUES (?, ?, ?)`, modelType, host, endpoint,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) Allocate(ctx context.Context, modelType, endpoint string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	host, found, err := hostID(ctx, tx, modelType, endpoint)
	if err != nil {
		return 0, err
	}
	if found {
		return host, nil
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO links (model_type, host_id, endpoint_id)
		 SELECT ?, COALESCE(MAX(host_id), 0) + 1, ? FROM links WHERE model_type = ?
		 RETURNING host_id`,
		modelType, endpoint, modelType,
	).Scan(&host)
	if err != nil {
		return 0, err
	}
	return host, tx.Commit()
}

func (s *SQLite) Delete(ctx context.Context, modelType, endpoint string, host int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM links WHERE model_type = ? AND ((? <> '' AND endpoint_id = ?) OR (? <> 0 AND host_id = ?))`,
		modelType, endpoint, endpoint, host, host,
	)
	return err
}

func (s *SQLite) Clear(ctx context.Context, modelType string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if modelType == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM links`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM links WHERE model_type = ?`, modelType)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLite) Links(ctx context.Context, modelType string) ([]linker.Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT model_type, host_id, endpoint_id FROM links
		 WHERE ? = '' OR model_type = ? ORDER BY model_type, host_id`, modelType, modelType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []linker.Link
	for rows.Next() {
		var l linker.Link
		if err := rows.Scan(&l.ModelType, &l.HostID, &l.EndpointID); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *SQLite) Checksums() linker.ChecksumLoader {
	return sqliteChecksums{db: s.db}
}

type sqliteChecksums struct {
	db *sql.DB
}

func (c sqliteChecksums) Read(ctx context.Context, modelType, endpoint string) (string, error) {
	var sum string
	err := c.db.QueryRowContext(ctx,
		`SELECT checksum FROM checksums WHERE model_type = ? AND endpoint_id = ?`, modelType, endpoint,
	).Scan(&sum)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return sum, err
}

func (c sqliteChecksums) Write(ctx context.Context, modelType, endpoint, checksum string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO checksums (model_type, endpoint_id, checksum) VALUES (?, ?, ?)
		 ON CONFLICT (model_type, endpoint_id) DO UPDATE SET checksum = excluded.checksum`,
		modelType, endpoint, checksum,
	)
	return err
}

func (c sqliteChecksums) Delete(ctx context.Context, modelType, endpoint string) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM checksums WHERE model_type = ? AND endpoint_id = ?`, modelType, endpoint)
	return err
}
