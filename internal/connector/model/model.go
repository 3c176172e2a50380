// Package model contains the data holders exchanged with the host and the
// interfaces the pipeline uses to reach their identities and checksums.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// IdentityRef points at one identity field of a model together with the
// model type that identity belongs to.
type IdentityRef struct {
	Type string
	ID   *Identity
}

// DataModel is any entity taking part in synchronization.
type DataModel interface {
	ModelType() string
	// Identities returns every identity field of the model, nested ones included.
	Identities() []IdentityRef
}

// Checksum is embedded by models that support change detection.
// Value comes from the host, Known is the last checksum the connector stored.
type Checksum struct {
	Value string `json:"checksum,omitempty"`
	Known string `json:"knownChecksum,omitempty"`
}

func (c *Checksum) ChecksumState() *Checksum { return c }

// Changed reports whether the endpoint should process the model again.
func (c *Checksum) Changed() bool {
	return c.Known == "" || c.Value != c.Known
}

type Checksummed interface {
	DataModel
	PrimaryIdentity() *Identity
	ChecksumState() *Checksum
}

type Factory func() DataModel

// Registry maps model type names to constructors.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default returns a registry holding the built-in catalog models.
func Default() *Registry {
	r := NewRegistry()
	r.Register(TypeCategory, func() DataModel { return &Category{} })
	r.Register(TypeProduct, func() DataModel { return &Product{} })
	r.Register(TypeManufacturer, func() DataModel { return &Manufacturer{} })
	r.Register(TypeImage, func() DataModel { return &Image{} })
	return r
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

func (r *Registry) New(name string) (DataModel, bool) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(), true
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

// DecodeList decodes push/delete params into models of the given type.
// A single object is accepted and treated as a one element list.
func (r *Registry) DecodeList(name string, data []byte) ([]DataModel, error) {
	if _, ok := r.New(name); !ok {
		return nil, fmt.Errorf("unknown model %q", name)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []DataModel{}, nil
	}

	var raws []json.RawMessage
	if data[0] == '{' {
		raws = []json.RawMessage{data}
	} else if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", name, err)
	}

	models := make([]DataModel, 0, len(raws))
	for idx, raw := range raws {
		m, _ := r.New(name)
		if err := json.Unmarshal(raw, m); err != nil {
			return nil, fmt.Errorf("decode %s #%d: %w", name, idx, err)
		}
		models = append(models, m)
	}
	return models, nil
}
