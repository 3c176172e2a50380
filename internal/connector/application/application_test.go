package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/akyaiy/GoSally-connector/internal/connector/auth"
	"github.com/akyaiy/GoSally-connector/internal/connector/controller"
	"github.com/akyaiy/GoSally-connector/internal/connector/endpoint"
	"github.com/akyaiy/GoSally-connector/internal/connector/event"
	"github.com/akyaiy/GoSally-connector/internal/connector/linker"
	"github.com/akyaiy/GoSally-connector/internal/connector/mapper"
	"github.com/akyaiy/GoSally-connector/internal/connector/model"
	"github.com/akyaiy/GoSally-connector/internal/connector/settings"
	"github.com/akyaiy/GoSally-connector/internal/server/rpc"
	"github.com/akyaiy/GoSally-connector/internal/server/session"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// categories is a transactional controller that keeps what it was given.
type categories struct {
	failAt  int
	panics  bool
	seen    int
	stored  *[]string
	deleted *[]string
	journal *[]string
}

func (c *categories) BeginTransaction(context.Context) error {
	*c.journal = append(*c.journal, "begin")
	return nil
}

func (c *categories) Commit(context.Context) error {
	*c.journal = append(*c.journal, "commit")
	return nil
}

func (c *categories) Rollback(context.Context) error {
	*c.journal = append(*c.journal, "rollback")
	*c.stored = nil
	return nil
}

func (c *categories) Push(_ context.Context, m model.DataModel) (model.DataModel, error) {
	c.seen++
	if c.seen == c.failAt {
		if c.panics {
			panic("boom")
		}
		return nil, errors.New("cannot store category")
	}
	*c.stored = append(*c.stored, m.(*model.Category).ID.Endpoint)
	return m, nil
}

func (c *categories) Delete(_ context.Context, m model.DataModel) (model.DataModel, error) {
	*c.deleted = append(*c.deleted, m.(*model.Category).ID.Endpoint)
	return m, nil
}

func (c *categories) Pull(context.Context, *model.QueryFilter) ([]model.DataModel, error) {
	return nil, nil
}

func (c *categories) Statistic(context.Context, *model.QueryFilter) (*model.Statistic, error) {
	return &model.Statistic{Available: 3}, nil
}

// images records the file every pushed image pointed at while the
// controller ran.
type images struct {
	files  map[int64]string
	exists map[int64]bool
}

func (c *images) Push(_ context.Context, m model.DataModel) (model.DataModel, error) {
	img := m.(*model.Image)
	c.files[img.ID.Host] = img.Filename
	_, err := os.Stat(img.Filename)
	c.exists[img.ID.Host] = err == nil
	return m, nil
}

type fakeEndpoint struct {
	controllers *controller.Registry
	models      *model.Registry
	mapper      *mapper.Memory
	validator   auth.TokenValidator
	ctrl        *categories
	images      *images
}

func newFakeEndpoint(t *testing.T) *fakeEndpoint {
	t.Helper()
	e := &fakeEndpoint{
		controllers: controller.NewRegistry(),
		models:      model.Default(),
		mapper:      mapper.NewMemory(),
		validator:   auth.NewPlain("abc"),
		ctrl:        &categories{stored: new([]string), deleted: new([]string), journal: new([]string)},
		images:      &images{files: map[int64]string{}, exists: map[int64]bool{}},
	}
	require.NoError(t, e.controllers.Register(model.TypeCategory, func() any { return e.ctrl }))
	require.NoError(t, e.controllers.Register(model.TypeImage, func() any { return e.images }))
	return e
}

func (e *fakeEndpoint) Initialize(context.Context, *settings.Store) error { return nil }
func (e *fakeEndpoint) ControllerNamespace() string { return "fake" }
func (e *fakeEndpoint) Controllers() *controller.Registry { return e.controllers }
func (e *fakeEndpoint) Models() *model.Registry { return e.models }
func (e *fakeEndpoint) PrimaryKeyMapper() linker.PrimaryKeyMapper { return e.mapper }
func (e *fakeEndpoint) TokenValidator() auth.TokenValidator { return e.validator }
func (e *fakeEndpoint) ChecksumLoader() linker.ChecksumLoader { return e.mapper.Checksums() }

type harness struct {
	app      *Application
	endpoint *fakeEndpoint
	sessions *session.Manager
	bus      *event.Bus
	tmp      string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg, err := settings.Open(filepath.Join(dir, "config"))
	require.NoError(t, err)

	h := &harness{
		endpoint: newFakeEndpoint(t),
		sessions: session.New(session.NewMemoryStore(), time.Hour, discard),
		bus:      event.NewBus(),
		tmp:      filepath.Join(dir, "tmp"),
	}
	require.NoError(t, os.MkdirAll(h.tmp, 0o755))

	h.app, err = New(Options{
		Endpoint: h.endpoint,
		Sessions: h.sessions,
		Settings: cfg,
		Bus:      h.bus,
		TempDir:  h.tmp,
		Log:      discard,
	})
	require.NoError(t, err)
	return h
}

func packet(t *testing.T, method string, params any) []byte {
	t.Helper()
	p, err := json.Marshal(params)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"jtlrpc": rpc.JTLRPCVersion,
		"id":     "unique-1",
		"method": method,
		"params": string(p),
	})
	require.NoError(t, err)
	return body
}

type reply struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpc.Error      `json:"error"`
}

func (h *harness) call(t *testing.T, c *Call) reply {
	t.Helper()
	var r reply
	require.NoError(t, json.Unmarshal(h.app.Handle(context.Background(), c), &r))
	return r
}

func (h *harness) login(t *testing.T) string {
	t.Helper()
	r := h.call(t, &Call{Body: packet(t, rpc.MethodAuth, map[string]string{"token": "abc"})})
	require.Nil(t, r.Error)
	var res model.AuthResult
	require.NoError(t, json.Unmarshal(r.Result, &res))
	require.NotEmpty(t, res.SessionID)
	return res.SessionID
}

func categoryList(ids ...string) []map[string]any {
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, map[string]any{"id": []any{id, 0}, "isActive": true})
	}
	return out
}

func TestHandle_Auth(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	r := h.call(t, &Call{Body: packet(t, rpc.MethodAuth, map[string]string{"token": "wrong"})})
	require.NotNil(t, r.Error)
	assert.Equal(t, rpc.ErrAuthFailed, r.Error.Code)
	assert.Equal(t, "unique-1", r.ID)
}

func TestHandle_SessionRequired(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name      string
		sessionID string
		code      int
	}{
		{"missing", "", rpc.ErrNoSession},
		{"unknown", "does-not-exist", rpc.ErrInvalidSession},
	}
	var after [][]byte
	h.bus.Subscribe(event.ScopeRPC, string(rpc.ActionPull), event.After, func(_ context.Context, ev *event.Event) error {
		after = append(after, ev.Payload.(*event.RPCPayload).Data)
		return nil
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			after = nil
			r := h.call(t, &Call{Body: packet(t, "category.pull", map[string]int{"limit": 10}), SessionID: tt.sessionID})
			require.NotNil(t, r.Error)
			assert.Equal(t, tt.code, r.Error.Code)

			require.Len(t, after, 1)
			assert.Contains(t, string(after[0]), strconv.Itoa(tt.code))
		})
	}
}

func TestHandle_MalformedPacket(t *testing.T) {
	h := newHarness(t)

	r := h.call(t, &Call{Body: []byte(`{"jtlrpc":"2.0","id":"abc","method":"category.pull"}`)})
	require.NotNil(t, r.Error)
	assert.Equal(t, rpc.ErrInvalidRequest, r.Error.Code)
	assert.Equal(t, "abc", r.ID)

	r = h.call(t, &Call{Body: []byte(`not json`)})
	require.NotNil(t, r.Error)
	assert.Equal(t, rpc.ErrInvalidRequest, r.Error.Code)
}

func TestHandle_PushLinksAndCommits(t *testing.T) {
	h := newHarness(t)
	sid := h.login(t)

	r := h.call(t, &Call{Body: packet(t, "category.push", categoryList("c1", "c2")), SessionID: sid})
	require.Nil(t, r.Error)

	var pushed []model.Category
	require.NoError(t, json.Unmarshal(r.Result, &pushed))
	require.Len(t, pushed, 2)
	for _, c := range pushed {
		assert.NotZero(t, c.ID.Host)
	}
	assert.Equal(t, []string{"begin", "commit"}, *h.endpoint.ctrl.journal)

	host, ok, err := h.endpoint.mapper.HostID(context.Background(), model.TypeCategory, "c2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, pushed[1].ID.Host, host)
}

func TestHandle_PushRollback(t *testing.T) {
	tests := []struct {
		name   string
		panics bool
	}{
		{"error", false},
		{"panic", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			sid := h.login(t)
			h.endpoint.ctrl.failAt = 3
			h.endpoint.ctrl.panics = tt.panics

			r := h.call(t, &Call{Body: packet(t, "category.push", categoryList("a", "b", "c", "d", "e")), SessionID: sid})
			require.NotNil(t, r.Error)
			assert.Equal(t, rpc.ErrController, r.Error.Code)
			assert.Equal(t, []string{"begin", "rollback"}, *h.endpoint.ctrl.journal)
			assert.Empty(t, *h.endpoint.ctrl.stored)
			assert.Equal(t, 3, h.endpoint.ctrl.seen)
		})
	}
}

func TestHandle_PullNeverNull(t *testing.T) {
	h := newHarness(t)
	sid := h.login(t)

	r := h.call(t, &Call{Body: packet(t, "category.pull", map[string]int{"limit": 10}), SessionID: sid})
	require.Nil(t, r.Error)
	assert.JSONEq(t, `[]`, string(r.Result))
}

func TestHandle_Statistic(t *testing.T) {
	h := newHarness(t)
	sid := h.login(t)

	r := h.call(t, &Call{Body: packet(t, "category.statistic", map[string]int{}), SessionID: sid})
	require.Nil(t, r.Error)
	var stat model.Statistic
	require.NoError(t, json.Unmarshal(r.Result, &stat))
	assert.Equal(t, "category", stat.ControllerName)
	assert.Equal(t, 3, stat.Available)
}

func TestHandle_ArchiveIsRemoved(t *testing.T) {
	h := newHarness(t)
	sid := h.login(t)

	for _, method := range []string{"category.pull", "product.pull"} {
		t.Run(method, func(t *testing.T) {
			archive := filepath.Join(h.tmp, "upload.zip")
			require.NoError(t, os.WriteFile(archive, []byte("zip"), 0o644))

			h.call(t, &Call{Body: packet(t, method, map[string]int{}), SessionID: sid, Archive: archive})
			assert.NoFileExists(t, archive)
		})
	}
}

func TestHandle_Delete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sid := h.login(t)

	pushed := []map[string]any{{"id": []any{"c1", 0}, "checksum": "sum-1"}}
	r := h.call(t, &Call{Body: packet(t, "category.push", pushed), SessionID: sid})
	require.Nil(t, r.Error)
	known, err := h.endpoint.mapper.Checksums().Read(ctx, model.TypeCategory, "c1")
	require.NoError(t, err)
	require.Equal(t, "sum-1", known)

	t.Run("unknown identity", func(t *testing.T) {
		r := h.call(t, &Call{Body: packet(t, "category.delete", categoryList("ghost")), SessionID: sid})
		require.NotNil(t, r.Error)
		assert.Equal(t, rpc.ErrLinker, r.Error.Code)
		assert.Empty(t, *h.endpoint.ctrl.deleted)
	})

	t.Run("removes link and checksum", func(t *testing.T) {
		r := h.call(t, &Call{Body: packet(t, "category.delete", categoryList("c1")), SessionID: sid})
		require.Nil(t, r.Error)
		assert.Equal(t, []string{"c1"}, *h.endpoint.ctrl.deleted)

		_, found, err := h.endpoint.mapper.HostID(ctx, model.TypeCategory, "c1")
		require.NoError(t, err)
		assert.False(t, found)

		known, err := h.endpoint.mapper.Checksums().Read(ctx, model.TypeCategory, "c1")
		require.NoError(t, err)
		assert.Empty(t, known)
	})
}

func writeArchive(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	p := filepath.Join(dir, "images.zip")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

func TestHandle_ImagePush(t *testing.T) {
	h := newHarness(t)
	sid := h.login(t)

	archive := writeArchive(t, h.tmp, map[string]string{
		"42_main.jpg":  "main image",
		"42_other.jpg": "other image",
	})
	params := []map[string]any{{"id": []any{"", 42}, "relationType": "Main"}}

	r := h.call(t, &Call{Body: packet(t, "image.push", params), SessionID: sid, Archive: archive})
	require.Nil(t, r.Error)

	file := h.endpoint.images.files[42]
	assert.Equal(t, "42_main.jpg", filepath.Base(file))
	assert.True(t, h.endpoint.images.exists[42])

	assert.NoFileExists(t, archive)
	assert.NoFileExists(t, file)
	assert.NoDirExists(t, filepath.Dir(file))
	entries, err := os.ReadDir(h.tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandle_RPCHooks(t *testing.T) {
	h := newHarness(t)
	sid := h.login(t)

	var after int
	h.bus.Subscribe(event.ScopeRPC, string(rpc.ActionPull), event.Before, func(_ context.Context, ev *event.Event) error {
		ev.Payload.(*event.RPCPayload).Data = []byte(`{"limit":5}`)
		return nil
	})
	h.bus.Subscribe(event.ScopeRPC, string(rpc.ActionPull), event.After, func(_ context.Context, ev *event.Event) error {
		after++
		return nil
	})
	h.bus.Subscribe(event.ScopeHandle, string(rpc.ActionPull), event.Before, func(_ context.Context, ev *event.Event) error {
		if req := ev.Payload.(*endpoint.Request); req.Controller == model.TypeCategory {
			assert.Equal(t, 5, req.Filter.Limit)
		}
		return nil
	})

	h.call(t, &Call{Body: packet(t, "category.pull", map[string]int{"limit": 10}), SessionID: sid})
	h.call(t, &Call{Body: packet(t, "product.pull", map[string]int{}), SessionID: sid})
	assert.Equal(t, 2, after)
}

func TestHandle_HookFailureIsApplicationError(t *testing.T) {
	h := newHarness(t)
	sid := h.login(t)

	h.bus.Subscribe(model.TypeCategory, string(rpc.ActionPush), event.Before, func(context.Context, *event.Event) error {
		return errors.New("rejected by plugin")
	})

	r := h.call(t, &Call{Body: packet(t, "category.push", categoryList("x")), SessionID: sid})
	require.NotNil(t, r.Error)
	assert.Equal(t, rpc.ErrApplication, r.Error.Code)
	assert.Contains(t, r.Error.Message, "rejected by plugin")
	assert.Empty(t, *h.endpoint.ctrl.journal)
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		name   string
		method string
		params string
		want   string
	}{
		{"auth", rpc.MethodAuth, `{"token":"secret"}`, `{"token":"******"}`},
		{"auth spaced", rpc.MethodAuth, `{"token" : "ab"}`, `{"token" : "**"}`},
		{"other method", "category.push", `{"token":"secret"}`, `{"token":"secret"}`},
		{"no token", rpc.MethodAuth, `{}`, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskToken(tt.method, tt.params))
		})
	}
}
