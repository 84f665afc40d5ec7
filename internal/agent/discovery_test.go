// SPDX-License-Identifier: MIT

package agent_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pagetap/pagetap/internal/agent"
	"github.com/pagetap/pagetap/internal/log"
)

func TestSweepIsIdempotent(t *testing.T) {
	page := &fakePage{}
	page.add(newFakeElement("a", false))
	page.add(newFakeElement("b", false))
	graph := newFakeGraph()
	d := agent.NewDiscoverer(graph, log.WithComponent("test"))

	attempted, tapped := d.Sweep(page, func(agent.Element) {})
	require.Equal(t, 2, attempted)
	require.Equal(t, 2, tapped)

	// A second pass over an unchanged element set must not create a
	// second tap per element.
	attempted, tapped = d.Sweep(page, func(agent.Element) {})
	require.Zero(t, attempted)
	require.Zero(t, tapped)
	require.Equal(t, 1, graph.tapCount("a"))
	require.Equal(t, 1, graph.tapCount("b"))
	require.Equal(t, 2, d.TapCount())
}

func TestSweepSkipsFailingElements(t *testing.T) {
	page := &fakePage{}
	page.add(newFakeElement("bad", false))
	page.add(newFakeElement("good", false))
	graph := newFakeGraph()
	graph.failFor["bad"] = true
	d := agent.NewDiscoverer(graph, log.WithComponent("test"))

	attempted, tapped := d.Sweep(page, func(agent.Element) {})
	require.Equal(t, 2, attempted)
	require.Equal(t, 1, tapped)
	require.Equal(t, 1, graph.tapCount("good"))

	// Failed elements are retried on later passes.
	delete(graph.failFor, "bad")
	attempted, tapped = d.Sweep(page, func(agent.Element) {})
	require.Equal(t, 1, attempted)
	require.Equal(t, 1, tapped)
}

func TestPickPrefersPlayingElement(t *testing.T) {
	page := &fakePage{}
	first := newFakeElement("first", false)
	playing := newFakeElement("playing", true)
	page.add(first)
	page.add(playing)
	d := agent.NewDiscoverer(newFakeGraph(), log.WithComponent("test"))
	d.Sweep(page, func(agent.Element) {})

	require.Equal(t, "playing", d.Pick().ID())
}

func TestPickFallsBackToFirstDiscovered(t *testing.T) {
	page := &fakePage{}
	page.add(newFakeElement("first", false))
	page.add(newFakeElement("second", false))
	d := agent.NewDiscoverer(newFakeGraph(), log.WithComponent("test"))
	d.Sweep(page, func(agent.Element) {})

	require.Equal(t, "first", d.Pick().ID())
}

func TestPickEmptyTable(t *testing.T) {
	d := agent.NewDiscoverer(newFakeGraph(), log.WithComponent("test"))
	require.Nil(t, d.Pick())
}

func TestTeardownReleasesTapsAndTriggers(t *testing.T) {
	page := &fakePage{}
	el := newFakeElement("a", false)
	page.add(el)
	graph := newFakeGraph()
	d := agent.NewDiscoverer(graph, log.WithComponent("test"))
	d.Sweep(page, func(agent.Element) {})
	require.Equal(t, 1, el.handlerCount())

	d.Teardown()
	require.Zero(t, d.TapCount())
	require.Zero(t, el.handlerCount())
	require.Equal(t, 1, graph.closedCount())

	// Teardown resets the table: the element may be tapped again by a
	// fresh session.
	d.Sweep(page, func(agent.Element) {})
	require.Equal(t, 2, graph.tapCount("a"))
}

func TestSetGainAdjustsOnlyTappedElements(t *testing.T) {
	page := &fakePage{}
	page.add(newFakeElement("a", false))
	d := agent.NewDiscoverer(newFakeGraph(), log.WithComponent("test"))
	d.Sweep(page, func(agent.Element) {})

	require.True(t, d.SetGain("a", 0.5))
	require.False(t, d.SetGain("missing", 0.5))
}
