package store

import (
	"context"
	"sync"

	"github.com/jeremyhahn/go-twofactor/pkg/clock"
)

// Memory is an in-process Store. Registrations are lost on restart.
type Memory struct {
	mu    sync.RWMutex
	regs  map[string]Registration
	clock clock.Clocker
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...Option) *Memory {
	o := buildOptions(opts)
	return &Memory{
		regs:  make(map[string]Registration),
		clock: o.clock,
	}
}

// Get returns a copy of the registration for id.
func (m *Memory) Get(ctx context.Context, id string) (*Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &reg, nil
}

// Put stores a copy of reg.
func (m *Memory) Put(ctx context.Context, reg *Registration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := reg.validate(); err != nil {
		return err
	}

	now := m.clock.Now().UTC()
	cp := *reg
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.regs[cp.AccountID]; ok && cp.CreatedAt.IsZero() {
		cp.CreatedAt = prev.CreatedAt
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.regs[cp.AccountID] = cp
	return nil
}

// Delete removes the registration for id.
func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regs[id]; !ok {
		return ErrNotFound
	}
	delete(m.regs, id)
	return nil
}

// AdvanceCounter raises the stored counter of id to next.
func (m *Memory) AdvanceCounter(ctx context.Context, id string, next uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[id]
	if !ok {
		return ErrNotFound
	}
	if next <= reg.Counter {
		return ErrStaleCounter
	}
	reg.Counter = next
	reg.UpdatedAt = m.clock.Now().UTC()
	m.regs[id] = reg
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
