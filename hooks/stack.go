package hooks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/akyaiy/GoSally-connector/internal/connector/mapper"
	"github.com/akyaiy/GoSally-connector/internal/core/sqlitedb"
	"github.com/akyaiy/GoSally-connector/internal/engine/config"
	"github.com/akyaiy/GoSally-connector/internal/server/session"
)

// File names below the data dir.
const (
	StateDBName  = "connector.db"
	MirrorDBName = "mirror.db"
	ImagesDir    = "images"
	SettingsDir  = "config"
)

// Stack holds the stores the connector keeps its state in.
type Stack struct {
	DB       *sql.DB
	Links    mapper.Store
	Sessions *session.Manager

	closers []func()
}

// OpenStack opens the state database and the configured link store.
func OpenStack(ctx context.Context, conf *config.Conf, dataDir string, log *slog.Logger) (*Stack, error) {
	st := &Stack{}

	dbPath := *conf.Connector.SQLitePath
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, StateDBName)
	}
	db, err := sqlitedb.Open(dbPath)
	if err != nil {
		return nil, err
	}
	st.DB = db
	st.closers = append(st.closers, func() { db.Close() })

	sessions, err := session.NewSQLiteStore(db)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("session store: %w", err)
	}
	st.Sessions = session.New(sessions, *conf.Connector.SessionLifetime, log)

	switch *conf.Connector.LinkStore {
	case config.LinkStorePostgres:
		pool, err := mapper.Connect(ctx, *conf.Connector.PostgresDSN)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("postgres link store: %w", err)
		}
		st.closers = append(st.closers, pool.Close)
		st.Links, err = mapper.NewPostgres(ctx, pool)
		if err != nil {
			st.Close()
			return nil, err
		}
	case config.LinkStoreSQLite:
		st.Links, err = mapper.NewSQLite(db)
		if err != nil {
			st.Close()
			return nil, err
		}
	default:
		st.Close()
		return nil, errors.New("unknown link store " + *conf.Connector.LinkStore)
	}
	return st, nil
}

// Close releases the stores in reverse order of opening.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
