// SPDX-License-Identifier: MIT

package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type state string
type event string

func edges() []Transition[state, event] {
	return []Transition[state, event]{
		{From: "idle", Event: "go", To: "busy"},
		{From: "busy", Event: "done", To: "idle"},
	}
}

func TestFireFollowsEdges(t *testing.T) {
	m, err := New("idle", edges())
	require.NoError(t, err)
	require.Equal(t, state("idle"), m.State())
	require.True(t, m.Can("go"))
	require.False(t, m.Can("done"))

	s, err := m.Fire(context.Background(), "go")
	require.NoError(t, err)
	require.Equal(t, state("busy"), s)

	_, err = m.Fire(context.Background(), "go")
	require.Error(t, err)
	require.Equal(t, state("busy"), m.State())
}

func TestGuardRejectsTransition(t *testing.T) {
	guardErr := errors.New("not yet")
	m, err := New("idle", []Transition[state, event]{
		{From: "idle", Event: "go", To: "busy", Guard: func(context.Context, state, event) error {
			return guardErr
		}},
	})
	require.NoError(t, err)

	_, err = m.Fire(context.Background(), "go")
	require.ErrorIs(t, err, guardErr)
	require.Equal(t, state("idle"), m.State())
}

func TestDuplicateEdgeRejected(t *testing.T) {
	_, err := New("idle", append(edges(), Transition[state, event]{From: "idle", Event: "go", To: "idle"}))
	require.Error(t, err)
}
