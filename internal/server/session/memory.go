package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. It only suits a single
// long-running node and tests.
type MemoryStore struct {
	sessions sync.Map
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (ms *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	v, ok := ms.sessions.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	s := *v.(*Session)
	return &s, nil
}

func (ms *MemoryStore) Save(_ context.Context, s *Session) error {
	cp := *s
	ms.sessions.Store(s.ID, &cp)
	return nil
}

func (ms *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	_, ok := ms.sessions.Load(id)
	return ok, nil
}

func (ms *MemoryStore) Delete(_ context.Context, id string) error {
	ms.sessions.Delete(id)
	return nil
}

func (ms *MemoryStore) Purge(_ context.Context, now time.Time) (int64, error) {
	var n int64
	ms.sessions.Range(func(key, value any) bool {
		if value.(*Session).Expired(now) {
			ms.sessions.Delete(key)
			n++
		}
		return true
	})
	return n, nil
}
