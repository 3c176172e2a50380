package mirror

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/akyaiy/GoSally-connector/internal/connector/auth"
	"github.com/akyaiy/GoSally-connector/internal/connector/controller"
	"github.com/akyaiy/GoSally-connector/internal/connector/mapper"
	"github.com/akyaiy/GoSally-connector/internal/connector/model"
	"github.com/akyaiy/GoSally-connector/internal/connector/settings"
	"github.com/akyaiy/GoSally-connector/internal/core/sqlitedb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMirror(t *testing.T) (*Endpoint, *mapper.Memory) {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlitedb.Open(filepath.Join(dir, "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	links := mapper.NewMemory()
	e, err := New(Options{
		DB:        db,
		Links:     links,
		Validator: auth.NewPlain("abc"),
		ImageDir:  filepath.Join(dir, "images"),
		Version:   "test",
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return e, links
}

func controllerFor(t *testing.T, e *Endpoint, name string) *entities {
	t.Helper()
	c, ok := e.Controllers().New(name)
	require.True(t, ok)
	return c.(*entities)
}

func TestEndpoint_RegistersEveryModel(t *testing.T) {
	e, _ := newMirror(t)
	assert.Equal(t, e.Models().Names(), e.Controllers().Names())

	for _, name := range e.Controllers().Names() {
		caps, ok := e.Controllers().Capabilities(name)
		require.True(t, ok)
		assert.Equal(t, controller.Capabilities{Push: true, Pull: true, Delete: true, Statistic: true}, caps)
	}
}

func TestEntities_PushAssignsIdentity(t *testing.T) {
	e, _ := newMirror(t)
	ctx := context.Background()
	c := controllerFor(t, e, model.TypeCategory)

	out, err := c.Push(ctx, &model.Category{ID: model.NewIdentity("", 7)})
	require.NoError(t, err)
	id := out.(*model.Category).ID
	assert.NotEmpty(t, id.Endpoint)
	assert.Equal(t, int64(7), id.Host)

	out, err = c.Push(ctx, &model.Category{ID: model.NewIdentity("fixed", 8)})
	require.NoError(t, err)
	assert.Equal(t, "fixed", out.(*model.Category).ID.Endpoint)
}

func TestEntities_PullReturnsUnlinked(t *testing.T) {
	e, links := newMirror(t)
	ctx := context.Background()

	var ids []string
	for range 3 {
		id, err := e.Seed(ctx, &model.Manufacturer{})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, links.Save(ctx, model.TypeManufacturer, ids[0], 1))

	c := controllerFor(t, e, model.TypeManufacturer)
	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 10, ids[1:]},
		{"limited", 1, ids[1:2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pulled, err := c.Pull(ctx, &model.QueryFilter{Limit: tt.limit})
			require.NoError(t, err)
			var got []string
			for _, m := range pulled {
				got = append(got, m.(*model.Manufacturer).ID.Endpoint)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	stat, err := c.Statistic(ctx, &model.QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, stat.Available)
}

func TestEntities_Transaction(t *testing.T) {
	e, _ := newMirror(t)
	ctx := context.Background()

	c := controllerFor(t, e, model.TypeProduct)
	require.NoError(t, c.BeginTransaction(ctx))
	_, err := c.Push(ctx, &model.Product{ID: model.NewIdentity("p1", 1)})
	require.NoError(t, err)
	require.NoError(t, c.Rollback(ctx))

	stat, err := controllerFor(t, e, model.TypeProduct).Statistic(ctx, &model.QueryFilter{})
	require.NoError(t, err)
	assert.Zero(t, stat.Available)

	c = controllerFor(t, e, model.TypeProduct)
	require.NoError(t, c.BeginTransaction(ctx))
	_, err = c.Push(ctx, &model.Product{ID: model.NewIdentity("p1", 1)})
	require.NoError(t, err)
	require.NoError(t, c.Commit(ctx))

	stat, err = controllerFor(t, e, model.TypeProduct).Statistic(ctx, &model.QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, stat.Available)

	_, err = controllerFor(t, e, model.TypeProduct).Delete(ctx, &model.Product{ID: model.NewIdentity("p1", 1)})
	require.NoError(t, err)
	stat, err = controllerFor(t, e, model.TypeProduct).Statistic(ctx, &model.QueryFilter{})
	require.NoError(t, err)
	assert.Zero(t, stat.Available)
}

func TestEntities_Images(t *testing.T) {
	e, _ := newMirror(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "7_product.png")
	require.NoError(t, os.WriteFile(src, []byte("png"), 0o644))

	c := controllerFor(t, e, model.TypeImage)
	out, err := c.Push(ctx, &model.Image{ID: model.NewIdentity("img1", 7), RelationType: model.RelationProduct, Filename: src})
	require.NoError(t, err)
	stored := out.(*model.Image).Filename
	assert.Equal(t, filepath.Join(e.o.ImageDir, "img1.png"), stored)
	assert.FileExists(t, stored)

	_, err = c.Delete(ctx, &model.Image{ID: model.NewIdentity("img1", 7)})
	require.NoError(t, err)
	assert.NoFileExists(t, stored)
}

func TestEndpoint_ReadOnly(t *testing.T) {
	e, _ := newMirror(t)
	ctx := context.Background()

	cfg, err := settings.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cfg.Save(ReadOnlySetting, true))
	require.NoError(t, e.Initialize(ctx, cfg))

	_, err = controllerFor(t, e, model.TypeCategory).Push(ctx, &model.Category{})
	assert.True(t, errors.Is(err, ErrReadOnly))
}

func TestEndpoint_Identify(t *testing.T) {
	e, _ := newMirror(t)
	id := e.Identify(context.Background())
	assert.Equal(t, PlatformName, id.PlatformName)
	assert.Equal(t, "test", id.EndpointVersion)
}
