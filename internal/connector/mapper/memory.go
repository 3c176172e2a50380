// Package mapper provides the stores behind the identity and checksum
// linkers: an in-process map, SQLite and Postgres.
package mapper

import (
	"context"
	"sort"
	"sync"

	"github.com/akyaiy/GoSally-connector/internal/connector/linker"
)

type endpointKey struct {
	modelType string
	endpoint  string
}

type hostKey struct {
	modelType string
	host      int64
}

// Memory keeps links for the lifetime of the process. It is meant for tests
// and for endpoints that rebuild their links on start.
type Memory struct {
	mu         sync.Mutex
	byEndpoint map[endpointKey]int64
	byHost     map[hostKey]string
	checksums  map[endpointKey]string
}

func NewMemory() *Memory {
	return &Memory{
		byEndpoint: make(map[endpointKey]int64),
		byHost:     make(map[hostKey]string),
		checksums:  make(map[endpointKey]string),
	}
}

func (m *Memory) HostID(_ context.Context, modelType, endpointID string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	host, ok := m.byEndpoint[endpointKey{modelType, endpointID}]
	return host, ok, nil
}

func (m *Memory) EndpointID(_ context.Context, modelType string, hostID int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	endpoint, ok := m.byHost[hostKey{modelType, hostID}]
	return endpoint, ok, nil
}

func (m *Memory) Save(_ context.Context, modelType, endpointID string, hostID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(modelType, endpointID, hostID)
}

func (m *Memory) save(modelType, endpointID string, hostID int64) error {
	host, hostFound := m.byEndpoint[endpointKey{modelType, endpointID}]
	endpoint, endpointFound := m.byHost[hostKey{modelType, hostID}]
	if hostFound && endpointFound && host == hostID && endpoint == endpointID {
		return nil
	}
	if hostFound || endpointFound {
		return linker.ErrConsistency
	}
	m.byEndpoint[endpointKey{modelType, endpointID}] = hostID
	m.byHost[hostKey{modelType, hostID}] = endpointID
	return nil
}

func (m *Memory) Allocate(_ context.Context, modelType, endpointID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if host, ok := m.byEndpoint[endpointKey{modelType, endpointID}]; ok {
		return host, nil
	}
	var next int64
	for k := range m.byHost {
		if k.modelType == modelType && k.host > next {
			next = k.host
		}
	}
	next++
	return next, m.save(modelType, endpointID, next)
}

func (m *Memory) Delete(_ context.Context, modelType, endpointID string, hostID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if endpointID != "" {
		if host, ok := m.byEndpoint[endpointKey{modelType, endpointID}]; ok {
			delete(m.byHost, hostKey{modelType, host})
		}
		delete(m.byEndpoint, endpointKey{modelType, endpointID})
	}
	if hostID != 0 {
		if endpoint, ok := m.byHost[hostKey{modelType, hostID}]; ok {
			delete(m.byEndpoint, endpointKey{modelType, endpoint})
		}
		delete(m.byHost, hostKey{modelType, hostID})
	}
	return nil
}

func (m *Memory) Clear(_ context.Context, modelType string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, host := range m.byEndpoint {
		if modelType != "" && k.modelType != modelType {
			continue
		}
		delete(m.byEndpoint, k)
		delete(m.byHost, hostKey{k.modelType, host})
		n++
	}
	return n, nil
}

func (m *Memory) Links(_ context.Context, modelType string) ([]linker.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	links := make([]linker.Link, 0, len(m.byEndpoint))
	for k, host := range m.byEndpoint {
		if modelType != "" && k.modelType != modelType {
			continue
		}
		links = append(links, linker.Link{ModelType: k.modelType, HostID: host, EndpointID: k.endpoint})
	}
	sortLinks(links)
	return links, nil
}

// Checksums returns the checksum side of the store.
func (m *Memory) Checksums() linker.ChecksumLoader {
	return memoryChecksums{m}
}

type memoryChecksums struct{ m *Memory }

func (c memoryChecksums) Read(_ context.Context, modelType, endpointID string) (string, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.m.checksums[endpointKey{modelType, endpointID}], nil
}

func (c memoryChecksums) Write(_ context.Context, modelType, endpointID, checksum string) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.checksums[endpointKey{modelType, endpointID}] = checksum
	return nil
}

func (c memoryChecksums) Delete(_ context.Context, modelType, endpointID string) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	delete(c.m.checksums, endpointKey{modelType, endpointID})
	return nil
}

func sortLinks(links []linker.Link) {
	sort.Slice(links, func(i, j int) bool {
		if links[i].ModelType != links[j].ModelType {
			return links[i].ModelType < links[j].ModelType
		}
		return links[i].HostID < links[j].HostID
	})
}
