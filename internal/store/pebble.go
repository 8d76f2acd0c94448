package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

const (
	pendingPrefix = "pending/"
	guardPrefix   = "guard/"
)

// Pebble persists state in an embedded PebbleDB so a restart or a reload of
// the confirmation page does not repeat a task submission.
type Pebble struct {
	db *pebble.DB
	// claimMu serialises Claim's read-then-write; Pebble has no compare-and-set.
	claimMu sync.Mutex
	now     func() time.Time
}

func NewPebble(dir string) (*Pebble, error) {
	d, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &Pebble{db: d, now: time.Now}, nil
}

func (p *Pebble) Close() error { return p.db.Close() }

func (p *Pebble) get(key string) ([]byte, error) {
	v, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func (p *Pebble) SavePending(_ context.Context, po *PendingOrder) error {
	b, err := json.Marshal(po)
	if err != nil {
		return fmt.Errorf("encoding pending order: %w", err)
	}
	return p.db.Set([]byte(pendingPrefix+po.OrderNSU), b, pebble.Sync)
}

func (p *Pebble) Pending(_ context.Context, orderNSU string) (*PendingOrder, error) {
	v, err := p.get(pendingPrefix + orderNSU)
	if err != nil {
		return nil, err
	}
	var po PendingOrder
	if err := json.Unmarshal(v, &po); err != nil {
		return nil, fmt.Errorf("decoding pending order %s: %w", orderNSU, err)
	}
	if po.expired(p.now()) {
		_ = p.db.Delete([]byte(pendingPrefix+orderNSU), pebble.NoSync)
		return nil, ErrNotFound
	}
	return &po, nil
}

func (p *Pebble) DeletePending(_ context.Context, orderNSU string) error {
	return p.db.Delete([]byte(pendingPrefix+orderNSU), pebble.Sync)
}

func (p *Pebble) Claim(_ context.Context, key string) (bool, error) {
	p.claimMu.Lock()
	defer p.claimMu.Unlock()

	_, err := p.get(guardPrefix + key)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if err := p.db.Set([]byte(guardPrefix+key), []byte(GuardInFlight), pebble.Sync); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Pebble) Settle(_ context.Context, key string, state GuardState) error {
	p.claimMu.Lock()
	defer p.claimMu.Unlock()
	return p.db.Set([]byte(guardPrefix+key), []byte(state), pebble.Sync)
}

func (p *Pebble) Guard(_ context.Context, key string) (GuardState, error) {
	v, err := p.get(guardPrefix + key)
	if errors.Is(err, ErrNotFound) {
		return GuardNotStarted, nil
	}
	if err != nil {
		return "", err
	}
	return GuardState(v), nil
}

var _ Store = (*Pebble)(nil)
