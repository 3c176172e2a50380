package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/akyaiy/GoSally-connector/internal/connector/model"
	"github.com/google/uuid"
)

// ErrNoIdentity is returned for models that carry no usable primary identity.
var ErrNoIdentity = errors.New("model has no endpoint identity")

type primary interface {
	PrimaryIdentity() *model.Identity
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// entities is the controller of one model type. A new one is built per
// request, so tx never outlives a batch.
type entities struct {
	e         *Endpoint
	modelType string

	tx *sql.Tx
	// written holds image files copied during the open transaction.
	written []string
	removed []string
}

func (c *entities) conn() execer {
	if c.tx != nil {
		return c.tx
	}
	return c.e.o.DB
}

func (c *entities) BeginTransaction(ctx context.Context) error {
	tx, err := c.e.o.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	c.tx = tx
	c.written, c.removed = nil, nil
	return nil
}

func (c *entities) Commit(context.Context) error {
	if c.tx == nil {
		return nil
	}
	err := c.tx.Commit()
	c.tx = nil
	if err != nil {
		c.dropFiles(c.written)
		return err
	}
	c.dropFiles(c.removed)
	return nil
}

func (c *entities) Rollback(context.Context) error {
	c.dropFiles(c.written)
	if c.tx == nil {
		return nil
	}
	err := c.tx.Rollback()
	c.tx = nil
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (c *entities) dropFiles(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.e.o.Log.Warn("cannot remove image file", slog.String("path", p), slog.String("err", err.Error()))
		}
	}
	c.written, c.removed = nil, nil
}

func (c *entities) Push(ctx context.Context, m model.DataModel) (model.DataModel, error) {
	if c.e.readOnly.Load() {
		return nil, ErrReadOnly
	}
	p, ok := m.(primary)
	if !ok {
		return nil, ErrNoIdentity
	}
	id := p.PrimaryIdentity()
	if !id.HasEndpoint() {
		id.Endpoint = uuid.NewString()
	}

	if img, ok := m.(*model.Image); ok && img.Filename != "" {
		stored, err := c.storeImage(img, id.Endpoint)
		if err != nil {
			return nil, err
		}
		img.Filename = stored
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	_, err = c.conn().ExecContext(ctx, `
		INSERT INTO entities (model_type, endpoint_id, payload, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (model_type, endpoint_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		c.modelType, id.Endpoint, string(payload), time.Now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("store %s %s: %w", c.modelType, id.Endpoint, err)
	}
	return m, nil
}

func (c *entities) Delete(ctx context.Context, m model.DataModel) (model.DataModel, error) {
	if c.e.readOnly.Load() {
		return nil, ErrReadOnly
	}
	p, ok := m.(primary)
	if !ok || !p.PrimaryIdentity().HasEndpoint() {
		return nil, ErrNoIdentity
	}
	id := p.PrimaryIdentity()

	if c.modelType == model.TypeImage {
		var payload string
		err := c.conn().QueryRowContext(ctx,
			`SELECT payload FROM entities WHERE model_type = ? AND endpoint_id = ?`, c.modelType, id.Endpoint,
		).Scan(&payload)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		var stored model.Image
		if payload != "" && json.Unmarshal([]byte(payload), &stored) == nil && stored.Filename != "" {
			c.removed = append(c.removed, stored.Filename)
		}
	}

	if _, err := c.conn().ExecContext(ctx,
		`DELETE FROM entities WHERE model_type = ? AND endpoint_id = ?`, c.modelType, id.Endpoint,
	); err != nil {
		return nil, err
	}
	if c.tx == nil {
		c.dropFiles(c.removed)
	}
	return m, nil
}

// Pull returns stored entities that have no host link yet, oldest first.
func (c *entities) Pull(ctx context.Context, f *model.QueryFilter) ([]model.DataModel, error) {
	out := make([]model.DataModel, 0)
	err := c.eachUnlinked(ctx, func(m model.DataModel) bool {
		out = append(out, m)
		return len(out) < f.Limit
	})
	return out, err
}

func (c *entities) Statistic(ctx context.Context, _ *model.QueryFilter) (*model.Statistic, error) {
	n := 0
	err := c.eachUnlinked(ctx, func(model.DataModel) bool {
		n++
		return true
	})
	if err != nil {
		return nil, err
	}
	return &model.Statistic{Available: n}, nil
}

func (c *entities) eachUnlinked(ctx context.Context, fn func(model.DataModel) bool) error {
	rows, err := c.e.o.DB.QueryContext(ctx,
		`SELECT endpoint_id, payload FROM entities WHERE model_type = ? ORDER BY updated_at, endpoint_id`, c.modelType)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var endpointID, payload string
		if err := rows.Scan(&endpointID, &payload); err != nil {
			return err
		}
		_, linked, err := c.e.o.Links.HostID(ctx, c.modelType, endpointID)
		if err != nil {
			return err
		}
		if linked {
			continue
		}
		m, ok := c.e.models.New(c.modelType)
		if !ok {
			return fmt.Errorf("unknown model %q", c.modelType)
		}
		if err := json.Unmarshal([]byte(payload), m); err != nil {
			return fmt.Errorf("decode %s %s: %w", c.modelType, endpointID, err)
		}
		if p, ok := m.(primary); ok {
			*p.PrimaryIdentity() = model.NewIdentity(endpointID, 0)
		}
		if !fn(m) {
			break
		}
	}
	return rows.Err()
}

// storeImage copies the resolved image file below ImageDir, named after the
// endpoint id.
func (c *entities) storeImage(img *model.Image, endpointID string) (string, error) {
	if c.e.o.ImageDir == "" {
		return img.Filename, nil
	}
	src, err := os.Open(img.Filename)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer src.Close()

	target := filepath.Join(c.e.o.ImageDir, endpointID+filepath.Ext(img.Filename))
	dst, err := os.Create(target)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(target)
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	if c.tx != nil {
		c.written = append(c.written, target)
	}
	return target, nil
}

// Seed stores an entity created on the endpoint side so the host can pull it.
func (e *Endpoint) Seed(ctx context.Context, m model.DataModel) (string, error) {
	c := &entities{e: e, modelType: m.ModelType()}
	out, err := c.Push(ctx, m)
	if err != nil {
		return "", err
	}
	return out.(primary).PrimaryIdentity().Endpoint, nil
}
