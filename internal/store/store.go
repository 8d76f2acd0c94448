// Package store keeps the state that must outlive a single request: the
// pending order recorded when a checkout link is created, and the one-shot
// guard that keeps a confirmation from creating two tasks.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"checkout-relay/internal/model"
)

// ErrNotFound is returned when a pending order does not exist or has expired.
var ErrNotFound = errors.New("store: not found")

// GuardState tracks one confirmation's side effect.
type GuardState string

const (
	GuardNotStarted GuardState = "not-started"
	GuardInFlight   GuardState = "in-flight"
	GuardDone       GuardState = "done"
	GuardFailed     GuardState = "failed"
)

// Terminal reports whether no further attempt will be made.
func (s GuardState) Terminal() bool {
	return s == GuardDone || s == GuardFailed
}

// PendingOrder is the order snapshot taken when the buyer is sent to the hosted checkout.
type PendingOrder struct {
	OrderNSU  string      `json:"order_nsu"`
	Order     model.Order `json:"order"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (p *PendingOrder) expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// Store is implemented by every backend. Implementations are safe for concurrent use.
type Store interface {
	SavePending(ctx context.Context, p *PendingOrder) error
	Pending(ctx context.Context, orderNSU string) (*PendingOrder, error)
	DeletePending(ctx context.Context, orderNSU string) error

	// Claim moves key from not-started to in-flight. It returns false, without
	// error, when the key was already claimed.
	Claim(ctx context.Context, key string) (bool, error)
	// Settle records the final state of a claimed key.
	Settle(ctx context.Context, key string, state GuardState) error
	Guard(ctx context.Context, key string) (GuardState, error)

	Close() error
}

// sweepInterval bounds how often Memory scans for expired entries.
const sweepInterval = time.Minute

// Memory is an in-process Store for development and tests. State is lost
// on restart and is not shared between replicas.
// Guards expire guardTTL after their last write, like the Redis backend.
// Expired entries are dropped on read and swept on write.
type Memory struct {
	mu        sync.Mutex
	pending   map[string]PendingOrder
	guards    map[string]memoryGuard
	guardTTL  time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type memoryGuard struct {
	state     GuardState
	expiresAt time.Time
}

func NewMemory() *Memory {
	return &Memory{
		pending:  make(map[string]PendingOrder),
		guards:   make(map[string]memoryGuard),
		guardTTL: DefaultGuardTTL,
		now:      time.Now,
	}
}

// sweepLocked drops expired pending orders and guards. Callers hold m.mu.
func (m *Memory) sweepLocked(now time.Time) {
	if now.Sub(m.lastSweep) < sweepInterval {
		return
	}
	m.lastSweep = now
	for k, p := range m.pending {
		if p.expired(now) {
			delete(m.pending, k)
		}
	}
	for k, g := range m.guards {
		if now.After(g.expiresAt) {
			delete(m.guards, k)
		}
	}
}

func (m *Memory) SavePending(_ context.Context, p *PendingOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(m.now())
	m.pending[p.OrderNSU] = *p
	return nil
}

func (m *Memory) Pending(_ context.Context, orderNSU string) (*PendingOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[orderNSU]
	if !ok {
		return nil, ErrNotFound
	}
	if p.expired(m.now()) {
		delete(m.pending, orderNSU)
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) DeletePending(_ context.Context, orderNSU string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, orderNSU)
	return nil
}

func (m *Memory) Claim(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweepLocked(now)
	if g, ok := m.guards[key]; ok && !now.After(g.expiresAt) {
		return false, nil
	}
	m.guards[key] = memoryGuard{state: GuardInFlight, expiresAt: now.Add(m.guardTTL)}
	return true, nil
}

func (m *Memory) Settle(_ context.Context, key string, state GuardState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweepLocked(now)
	m.guards[key] = memoryGuard{state: state, expiresAt: now.Add(m.guardTTL)}
	return nil
}

func (m *Memory) Guard(_ context.Context, key string) (GuardState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guards[key]
	if !ok {
		return GuardNotStarted, nil
	}
	if m.now().After(g.expiresAt) {
		delete(m.guards, key)
		return GuardNotStarted, nil
	}
	return g.state, nil
}

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
