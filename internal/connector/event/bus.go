// Package event dispatches the before/after hooks fired while a request
// runs through the pipeline.
package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/akyaiy/GoSally-connector/internal/connector/model"
)

type Phase string

const (
	Before Phase = "before"
	After  Phase = "after"
)

// Scopes that are not model types.
const (
	ScopeRPC    = "rpc"
	ScopeHandle = "handle"
)

type Event struct {
	Scope   string
	Action  string
	Phase   Phase
	Payload any
}

func (e *Event) String() string {
	return fmt.Sprintf("%s.%s.%s", e.Scope, e.Action, e.Phase)
}

type Handler func(ctx context.Context, ev *Event) error

// RPCPayload is the raw JSON seen by rpc scope handlers. Before the
// dispatch it holds the params, after it the encoded response. Handlers may
// replace Data.
type RPCPayload struct {
	Method string
	Data   []byte
}

type key struct {
	scope  string
	action string
	phase  Phase
}

// Bus is a registry of handlers keyed by scope, action and phase.
// Handlers of one key run in registration order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[key][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[key][]Handler)}
}

func (b *Bus) Subscribe(scope, action string, phase Phase, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key{scope, action, phase}
	b.handlers[k] = append(b.handlers[k], h)
}

func (b *Bus) Has(scope, action string, phase Phase) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[key{scope, action, phase}]) > 0
}

// Clone copies the registry so a request can add its own handlers without
// touching the shared bus.
func (b *Bus) Clone() *Bus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c := NewBus()
	for k, hs := range b.handlers {
		c.handlers[k] = append([]Handler(nil), hs...)
	}
	return c
}

// Fire runs the handlers subscribed to the event and stops at the first error.
func (b *Bus) Fire(ctx context.Context, ev *Event) error {
	b.mu.RLock()
	hs := b.handlers[key{ev.Scope, ev.Action, ev.Phase}]
	b.mu.RUnlock()

	for _, h := range hs {
		if err := h(ctx, ev); err != nil {
			return fmt.Errorf("event %s: %w", ev, err)
		}
	}
	return nil
}

// DispatchRPC fires the rpc scope event for a request or its response.
func (b *Bus) DispatchRPC(ctx context.Context, action string, phase Phase, payload *RPCPayload) error {
	return b.Fire(ctx, &Event{Scope: ScopeRPC, Action: action, Phase: phase, Payload: payload})
}

type dispatchOptions struct {
	scope    string
	skipCore bool
}

type DispatchOption func(*dispatchOptions)

// WithController fires under the controller name instead of the model type.
func WithController(name string) DispatchOption {
	return func(o *dispatchOptions) { o.scope = name }
}

// SkipCore suppresses the dispatch when the running method is a core one.
func SkipCore(isCore bool) DispatchOption {
	return func(o *dispatchOptions) { o.skipCore = isCore }
}

// Dispatch fires one event per model. The payload is the model itself.
func (b *Bus) Dispatch(ctx context.Context, models []model.DataModel, action string, phase Phase, opts ...DispatchOption) error {
	var o dispatchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.skipCore {
		return nil
	}

	for _, m := range models {
		scope := o.scope
		if scope == "" {
			scope = m.ModelType()
		}
		if err := b.Fire(ctx, &Event{Scope: scope, Action: action, Phase: phase, Payload: m}); err != nil {
			return err
		}
	}
	return nil
}
