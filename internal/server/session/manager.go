package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/akyaiy/GoSally-connector/internal/connector/fault"
	"github.com/akyaiy/GoSally-connector/internal/core/utils"
	"github.com/akyaiy/GoSally-connector/internal/server/rpc"
	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

type Session struct {
	ID        string
	TokenHash string
	CreatedAt time.Time
	Lifetime  time.Duration
}

func (s *Session) ExpiresAt() time.Time {
	return s.CreatedAt.Add(s.Lifetime)
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt())
}

// Store persists sessions outside the process so that requests served by
// different processes see the same sessions.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	Purge(ctx context.Context, now time.Time) (int64, error)
}

type ManagerContract interface {
	Start(ctx context.Context, method, sessionID string) (*Session, error)
	Activate(ctx context.Context, s *Session, token string) error
	Lifetime() time.Duration
}

type Manager struct {
	store    Store
	lifetime time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func New(store Store, lifetime time.Duration, log *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		lifetime: lifetime,
		log:      log,
		now:      time.Now,
	}
}

func (m *Manager) Lifetime() time.Duration {
	return m.lifetime
}

// Start validates the incoming session id for a request. Only the auth method
// may come without one; it gets a fresh session that is persisted once
// authentication succeeds.
func (m *Manager) Start(ctx context.Context, method, sessionID string) (*Session, error) {
	if sessionID == "" {
		if method != rpc.MethodAuth {
			return nil, fault.NoSession()
		}
		return &Session{
			ID:        uuid.NewString(),
			CreatedAt: m.now(),
			Lifetime:  m.lifetime,
		}, nil
	}

	s, err := m.store.Load(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil, fault.InvalidSession(err)
	}
	if err != nil {
		return nil, fault.Application("session store", err)
	}
	if s.Expired(m.now()) {
		if err := m.store.Delete(ctx, s.ID); err != nil {
			m.log.Warn("failed to drop expired session", slog.String("session-id", s.ID), slog.String("err", err.Error()))
		}
		return nil, fault.InvalidSession(ErrExpired)
	}

	m.log.Debug("session started", slog.String("session-id", s.ID))
	return s, nil
}

// Activate persists a session after a successful authentication.
func (m *Manager) Activate(ctx context.Context, s *Session, token string) error {
	s.TokenHash = HashToken(token)
	return m.store.Save(ctx, s)
}

func (m *Manager) Purge(ctx context.Context) (int64, error) {
	return m.store.Purge(ctx, m.now())
}

// StartCleanup purges expired sessions until ctx is done.
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		defer utils.CatchPanic(m.log)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := m.Purge(ctx)
				if err != nil {
					m.log.Warn("session purge failed", slog.String("err", err.Error()))
					continue
				}
				if n > 0 {
					m.log.Debug("expired sessions purged", slog.Int64("count", n))
				}
			}
		}
	}()
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session bound to the current request.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
