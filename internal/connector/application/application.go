// Package application runs one jtlrpc call through the connector pipeline:
// session, settings, routing, linking, hooks, dispatch and cleanup.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/akyaiy/GoSally-connector/internal/connector/attachment"
	"github.com/akyaiy/GoSally-connector/internal/connector/controller"
	"github.com/akyaiy/GoSally-connector/internal/connector/endpoint"
	"github.com/akyaiy/GoSally-connector/internal/connector/event"
	"github.com/akyaiy/GoSally-connector/internal/connector/fault"
	"github.com/akyaiy/GoSally-connector/internal/connector/linker"
	"github.com/akyaiy/GoSally-connector/internal/connector/plugin"
	"github.com/akyaiy/GoSally-connector/internal/connector/settings"
	"github.com/akyaiy/GoSally-connector/internal/core/run_manager"
	"github.com/akyaiy/GoSally-connector/internal/core/utils"
	"github.com/akyaiy/GoSally-connector/internal/server/rpc"
	"github.com/akyaiy/GoSally-connector/internal/server/session"
)

type Options struct {
	Endpoint endpoint.Connector
	Sessions *session.Manager
	Settings *settings.Store
	// Bus holds handlers registered in code. Each request works on a clone.
	Bus      *event.Bus
	Plugins  *plugin.Loader
	Resolver *attachment.Resolver
	// TempDir roots the request scopes; empty means the system temp dir.
	TempDir string

	FeaturesFile   string
	AuthDelay      time.Duration
	MaxUploadBytes int64

	// Level is raised to debug while developer_logging is on.
	Level     *slog.LevelVar
	BaseLevel slog.Level
	Log       *slog.Logger
}

type Application struct {
	o         Options
	core      *controller.Core
	checksums linker.ChecksumLoader
}

func New(o Options) (*Application, error) {
	if o.Endpoint == nil {
		return nil, errors.New("application: endpoint is required")
	}
	if o.Sessions == nil || o.Settings == nil {
		return nil, errors.New("application: sessions and settings are required")
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}
	if o.Bus == nil {
		o.Bus = event.NewBus()
	}
	if o.Resolver == nil {
		o.Resolver = attachment.NewResolver(nil, o.Log, 0)
	}

	a := &Application{o: o}
	if cp, ok := o.Endpoint.(endpoint.ChecksumProvider); ok {
		a.checksums = cp.ChecksumLoader()
	}
	identifier, _ := o.Endpoint.(endpoint.Identifier)
	a.core = controller.NewCore(controller.CoreOptions{
		Sessions:       o.Sessions,
		Validator:      o.Endpoint.TokenValidator(),
		Mapper:         o.Endpoint.PrimaryKeyMapper(),
		Controllers:    o.Endpoint.Controllers(),
		Identifier:     identifier,
		FeaturesFile:   o.FeaturesFile,
		AuthDelay:      o.AuthDelay,
		MaxUploadBytes: o.MaxUploadBytes,
		Log:            o.Log,
	})
	return a, nil
}

// Call is one HTTP request as the gateway hands it over.
type Call struct {
	Body      []byte
	SessionID string
	// Archive is the uploaded image archive. It is removed when the call ends.
	Archive string
}

// state is everything that lives for exactly one call.
type state struct {
	call    *Call
	packet  *rpc.Request
	method  rpc.Method
	scope   *run_manager.Scope
	bus     *event.Bus
	plugins *plugin.Set
	links   *linker.IdentityLinker
	sums    *linker.ChecksumLinker
	log     *slog.Logger
}

// Handle runs the call and returns the encoded response packet. It never
// fails: every error, panics included, becomes an error response. Temp
// artifacts are removed and the rpc after hook fires on every path.
func (a *Application) Handle(ctx context.Context, call *Call) (out []byte) {
	st := &state{
		call:  call,
		scope: run_manager.NewScope(a.o.TempDir),
		bus:   a.o.Bus.Clone(),
		log:   a.o.Log,
	}
	if call.Archive != "" {
		st.scope.Track(call.Archive)
	}

	var resp *rpc.Response
	defer func() {
		out = a.finish(ctx, st, resp)
	}()
	defer utils.CatchPanicWithFallback(func(rec any, stack []byte) {
		st.log.Error("pipeline panicked", slog.Any("panic", rec), slog.String("stack", string(stack)))
		resp = errorResponse(st, fault.Application(rpc.ErrApplicationS, fmt.Errorf("panic: %v", rec)))
	})

	result, err := a.execute(ctx, st)
	if err != nil {
		resp = errorResponse(st, err)
		return
	}
	resp = rpc.NewResponse(result, st.packet.ID)
	return
}

func (a *Application) finish(ctx context.Context, st *state, resp *rpc.Response) []byte {
	if err := st.scope.Clean(); err != nil {
		st.log.Warn("temp cleanup failed", slog.String("err", err.Error()))
	}
	if resp == nil {
		resp = errorResponse(st, fault.Application(rpc.ErrApplicationS, errors.New("no response was built")))
	}

	data, err := rpc.Encode(resp)
	if err != nil {
		st.log.Error("cannot encode response", slog.String("err", err.Error()))
		data, _ = rpc.Encode(rpc.NewError(rpc.ErrInternalError, rpc.ErrInternalErrorS, resp.ID))
	}

	data = a.afterHook(ctx, st, data)
	if st.plugins != nil {
		st.plugins.Close()
	}
	return data
}

// afterHook fires the rpc after event for every call with a valid envelope,
// including calls rejected before routing, e.g. for a missing session.
func (a *Application) afterHook(ctx context.Context, st *state, data []byte) (out []byte) {
	if st.packet == nil || st.packet.Validate() != nil {
		return data
	}
	if st.method.Action == "" {
		m, err := rpc.SplitMethod(st.packet.Method)
		if err != nil {
			return data
		}
		st.method = m
	}

	out = data
	defer utils.CatchPanicWithFallback(func(rec any, stack []byte) {
		st.log.Error("rpc after hook panicked", slog.Any("panic", rec), slog.String("stack", string(stack)))
		out = data
	})

	payload := &event.RPCPayload{Method: st.packet.Method, Data: data}
	if err := st.bus.DispatchRPC(ctx, string(st.method.Action), event.After, payload); err != nil {
		st.log.Error("rpc after hook failed", slog.String("err", err.Error()))
		return data
	}
	return payload.Data
}

func errorResponse(st *state, err error) *rpc.Response {
	f := fault.From(err)
	var id []byte
	if st.packet != nil {
		id = st.packet.ID
	}
	level := slog.LevelWarn
	if f.Kind == fault.KindApplication || f.Kind == fault.KindController {
		level = slog.LevelError
	}
	st.log.Log(context.Background(), level, "request failed",
		slog.Int("code", f.Code), slog.String("kind", f.Kind.String()), slog.String("err", f.Error()))
	e := f.RPCError()
	return rpc.NewError(e.Code, e.Message, id)
}

func (a *Application) execute(ctx context.Context, st *state) (any, error) {
	packet, err := rpc.ParseRequest(st.call.Body)
	st.packet = packet
	if err != nil {
		return nil, fault.Malformed(err)
	}
	st.log = st.log.With(slog.String("method", packet.Method))

	s, err := a.o.Sessions.Start(ctx, packet.Method, st.call.SessionID)
	if err != nil {
		return nil, err
	}
	ctx = session.WithSession(ctx, s)

	a.applySettings(st)
	st.log.Debug("request packet", slog.String("id", string(packet.ID)), slog.String("params", MaskToken(packet.Method, string(packet.Params))))

	st.method, err = rpc.SplitMethod(packet.Method)
	if err != nil {
		return nil, fault.Malformed(err)
	}

	st.links = linker.NewIdentityLinker(a.o.Endpoint.PrimaryKeyMapper(), st.log)
	st.sums = linker.NewChecksumLinker(a.checksums)

	if a.o.Plugins != nil {
		st.plugins, err = a.o.Plugins.Load(ctx, st.bus)
		if err != nil {
			st.log.Warn("plugins could not be discovered", slog.String("err", err.Error()))
		}
	}

	if err := a.o.Endpoint.Initialize(ctx, a.o.Settings); err != nil {
		return nil, fault.Application("endpoint initialization failed", err)
	}

	payload := &event.RPCPayload{Method: packet.Method, Data: []byte(packet.Params)}
	if err := st.bus.DispatchRPC(ctx, string(st.method.Action), event.Before, payload); err != nil {
		return nil, hookError(err)
	}
	params := payload.Data

	if st.method.Core {
		return a.executeCore(ctx, st, params)
	}
	return a.executeEndpoint(ctx, st, params)
}

// applySettings rereads the runtime settings and applies developer_logging.
func (a *Application) applySettings(st *state) {
	if err := a.o.Settings.Reload(); err != nil {
		st.log.Warn("settings reload failed", slog.String("err", err.Error()))
	}
	if a.o.Level == nil {
		return
	}
	if a.o.Settings.GetBool(settings.DeveloperLogging) {
		a.o.Level.Set(slog.LevelDebug)
	} else {
		a.o.Level.Set(a.o.BaseLevel)
	}
}

func (a *Application) executeCore(ctx context.Context, st *state, params []byte) (any, error) {
	req := &endpoint.Request{Controller: rpc.BuildController(st.method.Controller), Action: st.method.Action}
	if err := st.bus.Fire(ctx, &event.Event{Scope: event.ScopeHandle, Action: string(req.Action), Phase: event.Before, Payload: req}); err != nil {
		return nil, hookError(err)
	}

	result, err := a.core.Handle(ctx, st.method.Action, params)
	if err != nil {
		return nil, err
	}

	resp := &endpoint.Response{Result: result}
	if err := st.bus.Fire(ctx, &event.Event{Scope: event.ScopeHandle, Action: string(req.Action), Phase: event.After, Payload: resp}); err != nil {
		return nil, hookError(err)
	}
	return resp.Result, nil
}

// hookError keeps faults raised by handlers and turns anything else into an
// application error.
func hookError(err error) error {
	var f *fault.Error
	if errors.As(err, &f) {
		return f
	}
	return fault.Application("event handler failed", err)
}
