package mapper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akyaiy/GoSally-connector/internal/connector/linker"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// allocateAttempts bounds the retries of Allocate when a concurrent writer
// takes the host id that was computed.
const allocateAttempts = 5

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS connector_links (
		model_type  TEXT   NOT NULL,
		host_id     BIGINT NOT NULL,
		endpoint_id TEXT   NOT NULL,
		UNIQUE (model_type, host_id),
		UNIQUE (model_type, endpoint_id)
	)`,
	`CREATE TABLE IF NOT EXISTS connector_checksums (
		model_type  TEXT NOT NULL,
		endpoint_id TEXT NOT NULL,
		checksum    TEXT NOT NULL,
		PRIMARY KEY (model_type, endpoint_id)
	)`,
}

// Connect opens a pool for the link store.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Postgres stores links and checksums in Postgres, for connectors that run
// more than one node against the same host.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) HostID(ctx context.Context, modelType, endpoint string) (int64, bool, error) {
	var host int64
	err := p.pool.QueryRow(ctx,
		`SELECT host_id FROM connector_links WHERE model_type = $1 AND endpoint_id = $2`, modelType, endpoint,
	).Scan(&host)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return host, true, nil
}

func (p *Postgres) EndpointID(ctx context.Context, modelType string, host int64) (string, bool, error) {
	var endpoint string
	err := p.pool.QueryRow(ctx,
		`SELECT endpoint_id FROM connector_links WHERE model_type = $1 AND host_id = $2`, modelType, host,
	).Scan(&endpoint)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return endpoint, true, nil
}

func (p *Postgres) Save(ctx context.Context, modelType, endpoint string, host int64) error {
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO connector_links (model_type, host_id, endpoint_id) VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`, modelType, host, endpoint)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	stored, found, err := p.HostID(ctx, modelType, endpoint)
	if err != nil {
		return err
	}
	if found && stored == host {
		return nil
	}
	return linker.ErrConsistency
}

func (p *Postgres) Allocate(ctx context.Context, modelType, endpoint string) (int64, error) {
	for range allocateAttempts {
		host, found, err := p.HostID(ctx, modelType, endpoint)
		if err != nil {
			return 0, err
		}
		if found {
			return host, nil
		}

		err = p.pool.QueryRow(ctx,
			`INSERT INTO connector_links (model_type, host_id, endpoint_id)
			 SELECT $1, COALESCE(MAX(host_id), 0) + 1, $2 FROM connector_links WHERE model_type = $1
			 ON CONFLICT DO NOTHING
			 RETURNING host_id`, modelType, endpoint,
		).Scan(&host)
		if errors.Is(err, pgx.ErrNoRows) {
			// lost the race for either the endpoint id or the host id
			continue
		}
		if err != nil {
			return 0, err
		}
		return host, nil
	}
	return 0, fmt.Errorf("allocate host id for %s %q: too much contention", modelType, endpoint)
}

func (p *Postgres) Delete(ctx context.Context, modelType, endpoint string, host int64) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM connector_links WHERE model_type = $1
		 AND (($2 <> '' AND endpoint_id = $2) OR ($3 <> 0 AND host_id = $3))`,
		modelType, endpoint, host)
	return err
}

func (p *Postgres) Clear(ctx context.Context, modelType string) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM connector_links WHERE $1 = '' OR model_type = $1`, modelType)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) Links(ctx context.Context, modelType string) ([]linker.Link, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT model_type, host_id, endpoint_id FROM connector_links
		 WHERE $1 = '' OR model_type = $1 ORDER BY model_type, host_id`, modelType)
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

func (p *Postgres) Checksums() linker.ChecksumLoader {
	return postgresChecksums{pool: p.pool}
}

type postgresChecksums struct {
	pool *pgxpool.Pool
}

func (c postgresChecksums) Read(ctx context.Context, modelType, endpoint string) (string, error) {
	var sum string
	err := c.pool.QueryRow(ctx,
		`SELECT checksum FROM connector_checksums WHERE model_type = $1 AND endpoint_id = $2`, modelType, endpoint,
	).Scan(&sum)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return sum, err
}

func (c postgresChecksums) Write(ctx context.Context, modelType, endpoint, checksum string) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO connector_checksums (model_type, endpoint_id, checksum) VALUES ($1, $2, $3)
		 ON CONFLICT (model_type, endpoint_id) DO UPDATE SET checksum = EXCLUDED.checksum`,
		modelType, endpoint, checksum)
	return err
}

func (c postgresChecksums) Delete(ctx context.Context, modelType, endpoint string) error {
	_, err := c.pool.Exec(ctx,
		`DELETE FROM connector_checksums WHERE model_type = $1 AND endpoint_id = $2`, modelType, endpoint)
	return err
}
