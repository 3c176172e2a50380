package session

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/akyaiy/GoSally-connector/internal/connector/fault"
	"github.com/akyaiy/GoSally-connector/internal/core/sqlitedb"
	"github.com/akyaiy/GoSally-connector/internal/server/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stores(t *testing.T) map[string]Store {
	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqliteStore, err := NewSQLiteStore(db)
	require.NoError(t, err)

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestManager_StartWithoutSession(t *testing.T) {
	m := New(NewMemoryStore(), time.Hour, testLogger())

	_, err := m.Start(context.Background(), "category.pull", "")
	var f *fault.Error
	require.ErrorAs(t, err, &f)
	assert.Equal(t, rpc.ErrNoSession, f.Code)

	s, err := m.Start(context.Background(), rpc.MethodAuth, "")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, time.Hour, s.Lifetime)
}

func TestManager_FreshSessionIsNotPersisted(t *testing.T) {
	store := NewMemoryStore()
	m := New(store, time.Hour, testLogger())
	ctx := context.Background()

	s, err := m.Start(ctx, rpc.MethodAuth, "")
	require.NoError(t, err)

	_, err = m.Start(ctx, "category.pull", s.ID)
	var f *fault.Error
	require.ErrorAs(t, err, &f)
	assert.Equal(t, rpc.ErrInvalidSession, f.Code)

	require.NoError(t, m.Activate(ctx, s, "abc"))
	got, err := m.Start(ctx, "category.pull", s.ID)
	require.NoError(t, err)
	assert.Equal(t, HashToken("abc"), got.TokenHash)
}

func TestManager_Stores(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Unix(1_700_000_000, 0)
			m := New(store, 10*time.Minute, testLogger())
			m.now = func() time.Time { return now }

			s, err := m.Start(ctx, rpc.MethodAuth, "")
			require.NoError(t, err)
			require.NoError(t, m.Activate(ctx, s, "token"))

			exists, err := store.Exists(ctx, s.ID)
			require.NoError(t, err)
			assert.True(t, exists)

			loaded, err := m.Start(ctx, "product.push", s.ID)
			require.NoError(t, err)
			assert.Equal(t, s.ID, loaded.ID)
			assert.True(t, loaded.CreatedAt.Equal(now))

			_, err = m.Start(ctx, "product.push", "unknown")
			assert.ErrorIs(t, err, ErrNotFound)

			now = now.Add(11 * time.Minute)
			_, err = m.Start(ctx, "product.push", s.ID)
			assert.ErrorIs(t, err, ErrExpired)

			exists, err = store.Exists(ctx, s.ID)
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestManager_Purge(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Unix(1_700_000_000, 0)
			require.NoError(t, store.Save(ctx, &Session{ID: "old", CreatedAt: base, Lifetime: time.Minute}))
			require.NoError(t, store.Save(ctx, &Session{ID: "new", CreatedAt: base, Lifetime: time.Hour}))

			n, err := store.Purge(ctx, base.Add(2*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			exists, err := store.Exists(ctx, "new")
			require.NoError(t, err)
			assert.True(t, exists)
		})
	}
}

func TestFunc_ContextBinding(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	s := &Session{ID: "x"}
	got, ok := FromContext(WithSession(context.Background(), s))
	require.True(t, ok)
	assert.Same(t, s, got)
}
