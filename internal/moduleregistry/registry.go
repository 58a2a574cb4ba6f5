// Package moduleregistry breaks the cyclic module <-> orchestrator
// dependency: modules own entity logic, the
// Orchestrator owns the drive loop, and both need the other. The
// Orchestrator holds a resolver closure — (moduleID) -> (module.Module, bool) —
// and never imports any concrete module package.
package moduleregistry

import (
	"sort"
	"sync"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/module"
)

// Registry is the concrete backing store behind the resolver closure the
// Orchestrator, BatchCreateProcessor and Reconciler are injected with; the
// Scheduler holds the *Registry itself. It also backs "module
// list|enable|disable".
type Registry struct {
	mu       sync.RWMutex
	modules  map[string]module.Module
	disabled map[string]bool
}

func New() *Registry {
	return &Registry{
		modules:  make(map[string]module.Module),
		disabled: make(map[string]bool),
	}
}

func (r *Registry) Register(m module.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.ID()] = m
}

// Resolve is the closure shape Scheduler/Orchestrator consume
// ((moduleID string) (module.Module, bool)); Enabled modules only.
func (r *Registry) Resolve(moduleID string) (module.Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.disabled[moduleID] {
		return nil, false
	}
	m, ok := r.modules[moduleID]
	return m, ok
}

func (r *Registry) Enable(moduleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.disabled, moduleID)
}

func (r *Registry) Disable(moduleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled[moduleID] = true
}

// List returns every registered module id with its enabled state, sorted
// by id for stable CLI/admin output.
func (r *Registry) List() []ModuleStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModuleStatus, 0, len(r.modules))
	for id := range r.modules {
		out = append(out, ModuleStatus{ID: id, Enabled: !r.disabled[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type ModuleStatus struct {
	ID      string
	Enabled bool
}
