// Package adapter implements the backend integrations of the rebalancing
// engine. Each adapter maps a closed set of commands onto one external
// system and reports completion through the shared contract.
package adapter

import (
	"treasury/internal/liquidity"
	"treasury/internal/model/enum"
	"treasury/pkg/exception"
)

// Registry resolves the adapter for an action's system.
type Registry struct {
	adapters map[enum.System]liquidity.Adapter
}

func NewRegistry(adapters ...liquidity.Adapter) *Registry {
	m := make(map[enum.System]liquidity.Adapter, len(adapters))
	for _, a := range adapters {
		m[a.System()] = a
	}
	return &Registry{adapters: m}
}

// Get returns the adapter registered for the system.
func (r *Registry) Get(system enum.System) (liquidity.Adapter, error) {
	a, ok := r.adapters[system]
	if !ok {
		return nil, exception.ErrSystemUnsupported
	}
	return a, nil
}

// Supports reports whether system knows cmd.
func (r *Registry) Supports(system enum.System, cmd enum.Command) bool {
	a, ok := r.adapters[system]
	if !ok {
		return false
	}
	for _, c := range a.Commands() {
		if c == cmd {
			return true
		}
	}
	return false
}

// Systems lists the registered systems.
func (r *Registry) Systems() []enum.System {
	out := make([]enum.System, 0, len(r.adapters))
	for s := range r.adapters {
		out = append(out, s)
	}
	return out
}
