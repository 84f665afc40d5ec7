// SPDX-License-Identifier: MIT

// Package fsm provides a small, strict state machine runner used for the
// recording lifecycle. Unknown transitions are errors.
package fsm

import (
	"context"
	"fmt"
	"sync"
)

// Transition describes a single edge in the machine.
// Guard may reject the transition; Action performs side-effects.
type Transition[S ~string, E ~string] struct {
	From   S
	Event  E
	To     S
	Guard  func(ctx context.Context, from S, event E) error
	Action func(ctx context.Context, from S, to S, event E) error
}

// Machine is a test-friendly FSM runner. It is intentionally strict:
// firing an event with no matching edge from the current state is an error.
type Machine[S ~string, E ~string] struct {
	mu    sync.Mutex
	state S
	index map[string]Transition[S, E]
}

// New builds a machine from an initial state and its edge set.
func New[S ~string, E ~string](initial S, transitions []Transition[S, E]) (*Machine[S, E], error) {
	idx := make(map[string]Transition[S, E], len(transitions))
	for _, t := range transitions {
		k := key(t.From, t.Event)
		if _, exists := idx[k]; exists {
			return nil, fmt.Errorf("duplicate transition: %s -> %s", t.From, t.Event)
		}
		idx[k] = t
	}
	return &Machine[S, E]{state: initial, index: idx}, nil
}

// State returns the current state.
func (m *Machine[S, E]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Can reports whether event is a legal edge from the current state.
func (m *Machine[S, E]) Can(event E) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.index[key(m.state, event)]
	return ok
}

// Fire attempts to apply an event atomically.
func (m *Machine[S, E]) Fire(ctx context.Context, event E) (S, error) {
	m.mu.Lock()
	from := m.state
	t, ok := m.index[key(from, event)]
	if !ok {
		m.mu.Unlock()
		return from, fmt.Errorf("invalid transition: state=%s event=%s", from, event)
	}

	// Guard + Action run outside the critical section to avoid blocking the world.
	to := t.To
	m.mu.Unlock()

	if t.Guard != nil {
		if err := t.Guard(ctx, from, event); err != nil {
			return from, err
		}
	}
	if t.Action != nil {
		if err := t.Action(ctx, from, to, event); err != nil {
			return from, err
		}
	}

	m.mu.Lock()
	if m.state != from {
		cur := m.state
		m.mu.Unlock()
		return cur, fmt.Errorf("concurrent transition detected: from=%s cur=%s event=%s", from, cur, event)
	}
	m.state = to
	m.mu.Unlock()

	return to, nil
}

func key[S ~string, E ~string](from S, event E) string {
	return string(from) + "|" + string(event)
}
