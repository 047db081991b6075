package inventory

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fabricmart/go-fabric-market/internal/market"
)

// Mem implements Ledger in memory with a single-writer critical section per
// fabric. It backs tests and local runs without Postgres.
type Mem struct {
	mu      sync.Mutex
	fabrics map[string]*market.Fabric
	locks   map[string]*sync.Mutex
	Log     *zap.Logger
}

func NewMem() *Mem {
	return &Mem{
		fabrics: make(map[string]*market.Fabric),
		locks:   make(map[string]*sync.Mutex),
		Log:     zap.NewNop(),
	}
}

func (m *Mem) Put(f *market.Fabric) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fabrics[f.ID] = f
	if _, ok := m.locks[f.ID]; !ok {
		m.locks[f.ID] = &sync.Mutex{}
	}
}

func (m *Mem) Get(id string) (*market.Fabric, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fabrics[id]
	return f, ok
}

func (m *Mem) lockFor(id string) (*sync.Mutex, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	return l, ok
}

func (m *Mem) Reserve(ctx context.Context, fabricID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("%w: qty must be positive", market.ErrValidation)
	}
	l, ok := m.lockFor(fabricID)
	if !ok {
		return 0, fmt.Errorf("fabric %s: %w", fabricID, market.ErrNotFound)
	}
	l.Lock()
	defer l.Unlock()

	f := m.fabrics[fabricID]
	if !f.Active {
		return 0, fmt.Errorf("fabric %s: %w", fabricID, market.ErrNotFound)
	}
	if f.Stock < qty {
		return 0, fmt.Errorf("fabric %s: need %d, have %d: %w",
			fabricID, qty, f.Stock, market.ErrInsufficientStock)
	}
	f.Stock -= qty
	f.TotalPurchases += qty
	return f.PriceCents, nil
}

func (m *Mem) Release(ctx context.Context, fabricID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: qty must be positive", market.ErrValidation)
	}
	l, ok := m.lockFor(fabricID)
	if !ok {
		return fmt.Errorf("fabric %s: %w", fabricID, market.ErrNotFound)
	}
	l.Lock()
	defer l.Unlock()

	f := m.fabrics[fabricID]
	f.Stock += qty
	if f.TotalPurchases < qty {
		m.Log.Warn("release clamped total_purchases at zero",
			zap.String("fabric_id", fabricID),
			zap.Int("qty", qty),
			zap.Int("total_purchases_before", f.TotalPurchases))
		f.TotalPurchases = 0
	} else {
		f.TotalPurchases -= qty
	}
	return nil
}
