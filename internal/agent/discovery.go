// SPDX-License-Identifier: MIT

package agent

import (
	"github.com/rs/zerolog"

	"github.com/pagetap/pagetap/internal/log"
	"github.com/pagetap/pagetap/internal/metrics"
)

// Discoverer locates candidate media elements and owns the per-element
// routing state. It is the sole mutator of the tap table, so repeated
// discovery passes over an unchanged element set are idempotent: an element
// is never tapped twice.
type Discoverer struct {
	graph  Graph
	logger zerolog.Logger

	taps     map[string]Tap
	elements map[string]Element
	unsubs   map[string]func()
	order    []string // discovery order, for the first-found selection policy
}

// NewDiscoverer creates a discoverer bound to the page's audio graph.
func NewDiscoverer(graph Graph, logger zerolog.Logger) *Discoverer {
	return &Discoverer{
		graph:    graph,
		logger:   logger,
		taps:     make(map[string]Tap),
		elements: make(map[string]Element),
		unsubs:   make(map[string]func()),
	}
}

// Sweep enumerates the page's elements and taps every one not already in
// the table. Tap failures are logged and skipped; the sweep continues to
// the next candidate. onPlay is registered once per element and fires on
// its play/playing events. Returns the number of elements attempted and
// the number successfully tapped in this pass.
func (d *Discoverer) Sweep(page Page, onPlay func(Element)) (attempted, tapped int) {
	for _, el := range page.Elements() {
		id := el.ID()
		if _, ok := d.taps[id]; ok {
			continue
		}
		attempted++
		tap, err := d.graph.Tap(el)
		if err != nil {
			metrics.TapFailuresTotal.Inc()
			d.logger.Warn().
				Err(err).
				Str(log.FieldElementID, id).
				Msg("tap construction failed, skipping element")
			continue
		}
		tapped++
		d.taps[id] = tap
		d.elements[id] = el
		d.order = append(d.order, id)
		e := el
		d.unsubs[id] = el.OnPlay(func() { onPlay(e) })
		d.logger.Debug().
			Str(log.FieldElementID, id).
			Msg("tapped media element")
	}
	return attempted, tapped
}

// Pick returns the preferred capture candidate: an element that is
// currently playing, or failing that the first one discovered. Returns nil
// when nothing is tapped yet.
func (d *Discoverer) Pick() Element {
	for _, id := range d.order {
		if el := d.elements[id]; el.Playing() {
			return el
		}
	}
	if len(d.order) == 0 {
		return nil
	}
	return d.elements[d.order[0]]
}

// SetGain adjusts the capture-branch level for one tapped element.
func (d *Discoverer) SetGain(elementID string, v float64) bool {
	tap, ok := d.taps[elementID]
	if !ok {
		return false
	}
	tap.SetGain(v)
	return true
}

// TapCount reports how many elements are currently routed.
func (d *Discoverer) TapCount() int {
	return len(d.taps)
}

// Teardown releases every owned routing resource: play triggers first, then
// the taps themselves. After Teardown the table is empty, so a later session
// starts from a clean graph.
func (d *Discoverer) Teardown() {
	for id, unsub := range d.unsubs {
		unsub()
		delete(d.unsubs, id)
	}
	for id, tap := range d.taps {
		if err := tap.Close(); err != nil {
			d.logger.Debug().
				Err(err).
				Str(log.FieldElementID, id).
				Msg("tap close failed")
		}
		delete(d.taps, id)
		delete(d.elements, id)
	}
	d.order = nil
}
