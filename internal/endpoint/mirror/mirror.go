// Package mirror is a reference endpoint. It keeps every entity the host
// pushes as a JSON document in SQLite and hands back whatever was stored
// on the endpoint side without a host link yet.
package mirror

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/akyaiy/GoSally-connector/internal/connector/auth"
	"github.com/akyaiy/GoSally-connector/internal/connector/controller"
	"github.com/akyaiy/GoSally-connector/internal/connector/linker"
	"github.com/akyaiy/GoSally-connector/internal/connector/mapper"
	"github.com/akyaiy/GoSally-connector/internal/connector/model"
	"github.com/akyaiy/GoSally-connector/internal/connector/settings"
	"github.com/akyaiy/GoSally-connector/internal/core/sqlitedb"
)

const (
	Namespace    = "mirror"
	PlatformName = "GoSally mirror"

	// ReadOnlySetting rejects pushes and deletes while true.
	ReadOnlySetting = "mirror_read_only"
)

var ErrReadOnly = errors.New("mirror is read only")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS entities (
		model_type  TEXT    NOT NULL,
		endpoint_id TEXT    NOT NULL,
		payload     TEXT    NOT NULL,
		updated_at  INTEGER NOT NULL,
		PRIMARY KEY (model_type, endpoint_id)
	)`,
	`CREATE INDEX IF NOT EXISTS entities_updated ON entities (model_type, updated_at)`,
}

type Options struct {
	DB        *sql.DB
	Links     mapper.Store
	Validator auth.TokenValidator
	// ImageDir receives the files of pushed images.
	ImageDir string
	Version  string
	Log      *slog.Logger
}

type Endpoint struct {
	o           Options
	models      *model.Registry
	controllers *controller.Registry
	readOnly    atomic.Bool
}

func New(o Options) (*Endpoint, error) {
	if o.DB == nil || o.Links == nil || o.Validator == nil {
		return nil, errors.New("mirror: db, links and validator are required")
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}
	if err := sqlitedb.Migrate(o.DB, schema...); err != nil {
		return nil, err
	}
	if o.ImageDir != "" {
		if err := os.MkdirAll(o.ImageDir, 0755); err != nil {
			return nil, err
		}
	}

	e := &Endpoint{
		o:           o,
		models:      model.Default(),
		controllers: controller.NewRegistry(),
	}
	for _, name := range e.models.Names() {
		if err := e.controllers.Register(name, func() any { return &entities{e: e, modelType: name} }); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Endpoint) Initialize(_ context.Context, cfg *settings.Store) error {
	e.readOnly.Store(cfg.GetBool(ReadOnlySetting))
	return nil
}

func (e *Endpoint) ControllerNamespace() string { return Namespace }

func (e *Endpoint) Controllers() *controller.Registry { return e.controllers }

func (e *Endpoint) Models() *model.Registry { return e.models }

func (e *Endpoint) PrimaryKeyMapper() linker.PrimaryKeyMapper { return e.o.Links }

func (e *Endpoint) TokenValidator() auth.TokenValidator { return e.o.Validator }

func (e *Endpoint) ChecksumLoader() linker.ChecksumLoader { return e.o.Links.Checksums() }

func (e *Endpoint) Identify(context.Context) model.ConnectorIdentification {
	return model.ConnectorIdentification{
		EndpointVersion: e.o.Version,
		PlatformName:    PlatformName,
		PlatformVersion: runtime.Version(),
	}
}
