// Package controller defines what an endpoint controller can do and holds
// the built-in core.connector controller.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/akyaiy/GoSally-connector/internal/connector/model"
)

type Pusher interface {
	Push(ctx context.Context, m model.DataModel) (model.DataModel, error)
}

type Puller interface {
	Pull(ctx context.Context, f *model.QueryFilter) ([]model.DataModel, error)
}

type Deleter interface {
	Delete(ctx context.Context, m model.DataModel) (model.DataModel, error)
}

type Statistician interface {
	Statistic(ctx context.Context, f *model.QueryFilter) (*model.Statistic, error)
}

// Transactional controllers process a push or delete batch all or nothing.
type Transactional interface {
	BeginTransaction(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Factory returns a fresh controller for one request. The value must
// implement at least one of Pusher, Puller, Deleter and Statistician.
type Factory func() any

var ErrNoCapability = errors.New("controller implements no action")

type Capabilities struct {
	Push      bool
	Pull      bool
	Delete    bool
	Statistic bool
}

func capabilitiesOf(c any) Capabilities {
	_, push := c.(Pusher)
	_, pull := c.(Puller)
	_, del := c.(Deleter)
	_, stat := c.(Statistician)
	return Capabilities{Push: push, Pull: pull, Delete: del, Statistic: stat}
}

func (c Capabilities) any() bool {
	return c.Push || c.Pull || c.Delete || c.Statistic
}

// Registry maps canonical controller names, e.g. "ProductPrice", to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	caps      map[string]Capabilities
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		caps:      make(map[string]Capabilities),
	}
}

func (r *Registry) Register(name string, f Factory) error {
	caps := capabilitiesOf(f())
	if !caps.any() {
		return fmt.Errorf("%w: %s", ErrNoCapability, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	r.caps[name] = caps
	return nil
}

func (r *Registry) New(name string) (any, bool) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(), true
}

func (r *Registry) Capabilities(name string) (Capabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	return c, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Features derives the feature list from what the registered controllers implement.
func (r *Registry) Features() *model.Features {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f := &model.Features{
		Entities: make(map[string]model.Feature, len(r.caps)),
		Flags:    map[string]bool{},
	}
	for name, c := range r.caps {
		f.Entities[name] = model.Feature{Push: c.Push, Pull: c.Pull, Delete: c.Delete}
	}
	return f
}
