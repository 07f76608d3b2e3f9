// Package scope binds tenants to units of work.
//
// A unit of work is a request, a job run or a CLI task. It travels inside its
// context.Context, so two goroutines serving different requests never share
// the active tenant, and nothing about the active tenant is process-global.
package scope

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/Abraxas-365/multistore/tenancy/storage"
)

type unitKey struct{}

// unit holds at most one tenant binding.
type unit struct {
	mu      sync.Mutex
	binding *binding
}

type binding struct {
	tenant *tenancy.Tenant
	lease  *storage.Lease
	memo   *Memo
	since  time.Time
}

// Begin returns a child of ctx carrying a fresh unit of work in the central
// context. A unit already present in ctx is shadowed, not reused.
func Begin(ctx context.Context) context.Context {
	return context.WithValue(ctx, unitKey{}, &unit{})
}

// HasUnit reports whether ctx carries a unit of work.
func HasUnit(ctx context.Context) bool {
	return from(ctx) != nil
}

func from(ctx context.Context) *unit {
	if ctx == nil {
		return nil
	}
	u, _ := ctx.Value(unitKey{}).(*unit)
	return u
}

func (u *unit) current() *binding {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.binding
}

// Memo is an identity map scoped to one activation. Every activation starts
// with an empty Memo and the Memo is dropped on deactivation, so an entry
// cached for one tenant is never visible to the next.
type Memo struct {
	mu    sync.Mutex
	items map[string]any
}

func newMemo() *Memo {
	return &Memo{items: make(map[string]any)}
}

func (m *Memo) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok
}

func (m *Memo) Put(key string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = v
}

func (m *Memo) Forget(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
