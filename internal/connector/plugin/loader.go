// Package plugin loads Lua plugin units that subscribe to pipeline events.
//
// A plugin is a directory holding bootstrap.lua. The script registers its
// handlers through the Connector table:
//
//	Connector.on("Product", "push", "before", function(event, payload)
//	    payload.sku = string.upper(payload.sku)
//	    return payload
//	end)
//
// A handler that returns a value replaces the payload, returning nothing
// leaves it untouched. Raising an error fails the request unless faults are
// isolated.
package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/akyaiy/GoSally-connector/internal/connector/event"
	"github.com/akyaiy/GoSally-connector/internal/connector/fault"
	lua "github.com/yuin/gopher-lua"
)

const BootstrapFile = "bootstrap.lua"

type Loader struct {
	dir     string
	isolate bool
	log     *slog.Logger
}

// NewLoader returns a loader for the plugin units under dir. With isolate set
// a failing handler is logged and the request goes on.
func NewLoader(dir string, isolate bool, log *slog.Logger) *Loader {
	return &Loader{dir: dir, isolate: isolate, log: log}
}

// Discover lists the plugin units found in the plugin dir.
func (l *Loader) Discover() ([]string, error) {
	if l.dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(l.dir, e.Name(), BootstrapFile)); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Set holds the Lua states of the plugins loaded for one request.
type Set struct {
	states map[string]*lua.LState
}

func (s *Set) Names() []string {
	names := make([]string, 0, len(s.states))
	for name := range s.states {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Set) Close() {
	for _, L := range s.states {
		L.Close()
	}
	s.states = nil
}

// Load runs every plugin bootstrap against bus. A plugin that fails to load
// is logged and skipped. States are not shared between requests since an
// LState must not be used concurrently.
func (l *Loader) Load(ctx context.Context, bus *event.Bus) (*Set, error) {
	set := &Set{states: make(map[string]*lua.LState)}
	names, err := l.Discover()
	if err != nil {
		return set, err
	}

	for _, name := range names {
		L := lua.NewState()
		L.SetContext(ctx)
		var subs []subscription
		l.prepare(L, name, &subs)

		path := filepath.Join(l.dir, name, BootstrapFile)
		if err := L.DoFile(path); err != nil {
			l.log.Error("plugin failed to load", slog.String("plugin", name), slog.String("err", err.Error()))
			L.Close()
			continue
		}
		for _, sub := range subs {
			bus.Subscribe(sub.scope, sub.action, sub.phase, sub.handler)
		}
		set.states[name] = L
	}
	return set, nil
}

// subscription is a handler registered by a bootstrap that has not
// finished yet. It reaches the bus only once the bootstrap succeeds.
type subscription struct {
	scope, action string
	phase         event.Phase
	handler       event.Handler
}

func (l *Loader) prepare(L *lua.LState, name string, subs *[]subscription) {
	connector := L.NewTable()
	L.SetField(connector, "on", L.NewFunction(func(L *lua.LState) int {
		scope := L.CheckString(1)
		action := L.CheckString(2)
		phase := event.Phase(L.CheckString(3))
		fn := L.CheckFunction(4)
		if phase != event.Before && phase != event.After {
			L.ArgError(3, "phase must be before or after")
			return 0
		}
		*subs = append(*subs, subscription{scope: scope, action: action, phase: phase, handler: l.handler(L, name, fn)})
		return 0
	}))
	L.SetField(connector, "name", lua.LString(name))
	L.SetGlobal("Connector", connector)

	logTable := L.NewTable()
	logFuncs := map[string]func(string, ...any){
		"Info":  l.log.Info,
		"Debug": l.log.Debug,
		"Error": l.log.Error,
		"Warn":  l.log.Warn,
	}
	for fname, logFunc := range logFuncs {
		L.SetField(logTable, fname, L.NewFunction(func(L *lua.LState) int {
			logFunc(fmt.Sprintf("the plugin says: %s", L.ToString(1)), slog.String("plugin", name))
			return 0
		}))
	}
	L.SetGlobal("Log", logTable)
}

func (l *Loader) handler(L *lua.LState, name string, fn *lua.LFunction) event.Handler {
	return func(ctx context.Context, ev *event.Event) error {
		err := l.call(ctx, L, fn, ev)
		if err == nil {
			return nil
		}
		if l.isolate {
			l.log.Warn("plugin handler failed", slog.String("plugin", name),
				slog.String("event", ev.String()), slog.String("err", err.Error()))
			return nil
		}
		return fault.Application(fmt.Sprintf("plugin %s failed on %s", name, ev), err)
	}
}

func (l *Loader) call(ctx context.Context, L *lua.LState, fn *lua.LFunction, ev *event.Event) error {
	L.SetContext(ctx)

	evTable := L.NewTable()
	L.SetField(evTable, "scope", lua.LString(ev.Scope))
	L.SetField(evTable, "action", lua.LString(ev.Action))
	L.SetField(evTable, "phase", lua.LString(string(ev.Phase)))

	payload, err := encodePayload(L, ev.Payload)
	if err != nil {
		return err
	}

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, evTable, payload); err != nil {
		return err
	}
	ret := L.Get(-1)
	L.Pop(1)
	if ret == lua.LNil {
		return nil
	}
	return decodePayload(ret, ev.Payload)
}

func encodePayload(L *lua.LState, payload any) (lua.LValue, error) {
	if p, ok := payload.(*event.RPCPayload); ok {
		tbl := L.NewTable()
		L.SetField(tbl, "method", lua.LString(p.Method))
		var data any
		if len(p.Data) > 0 {
			if err := json.Unmarshal(p.Data, &data); err != nil {
				// params that are not JSON are passed as they are
				data = string(p.Data)
			}
		}
		L.SetField(tbl, "data", ToLua(L, data))
		return tbl, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var plain any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return ToLua(L, plain), nil
}

func decodePayload(ret lua.LValue, payload any) error {
	if p, ok := payload.(*event.RPCPayload); ok {
		tbl, ok := ret.(*lua.LTable)
		if !ok {
			return fmt.Errorf("rpc handler returned %s, want table", ret.Type())
		}
		data := tbl.RawGetString("data")
		if s, ok := data.(lua.LString); ok {
			p.Data = []byte(s)
			return nil
		}
		raw, err := json.Marshal(FromLua(data))
		if err != nil {
			return fmt.Errorf("decode rpc payload: %w", err)
		}
		p.Data = raw
		return nil
	}

	raw, err := json.Marshal(FromLua(ret))
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
