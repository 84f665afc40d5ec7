// SPDX-License-Identifier: MIT

package agent_test

import (
	"errors"
	"sync"
	"time"

	"github.com/pagetap/pagetap/internal/agent"
	"github.com/pagetap/pagetap/internal/capture"
)

type fakeElement struct {
	mu       sync.Mutex
	id       string
	playing  bool
	handlers map[int]func()
	next     int
}

func newFakeElement(id string, playing bool) *fakeElement {
	return &fakeElement{id: id, playing: playing, handlers: make(map[int]func())}
}

func (e *fakeElement) ID() string { return e.id }

func (e *fakeElement) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

func (e *fakeElement) OnPlay(fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.next
	e.next++
	e.handlers[n] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.handlers, n)
	}
}

// play flips the element to playing and fires its registered triggers.
func (e *fakeElement) play() {
	e.mu.Lock()
	e.playing = true
	fns := make([]func(), 0, len(e.handlers))
	for _, fn := range e.handlers {
		fns = append(fns, fn)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (e *fakeElement) handlerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}

type fakePage struct {
	mu  sync.Mutex
	els []agent.Element
}

func (p *fakePage) Elements() []agent.Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]agent.Element(nil), p.els...)
}

func (p *fakePage) add(el agent.Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.els = append(p.els, el)
}

type fakeDest struct{}

func (fakeDest) ID() string { return "mix-dest" }

type fakeTap struct {
	g    *fakeGraph
	gain float64
}

func (t *fakeTap) SetGain(v float64) { t.gain = v }
func (t *fakeTap) Gain() float64     { return t.gain }
func (t *fakeTap) Close() error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	t.g.closed++
	return nil
}

type fakeGraph struct {
	mu      sync.Mutex
	failFor map[string]bool
	tapsPer map[string]int
	closed  int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{failFor: make(map[string]bool), tapsPer: make(map[string]int)}
}

func (g *fakeGraph) Destination() agent.Destination { return fakeDest{} }

func (g *fakeGraph) Tap(el agent.Element) (agent.Tap, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failFor[el.ID()] {
		return nil, errors.New("stream capture unsupported")
	}
	g.tapsPer[el.ID()]++
	return &fakeTap{g: g, gain: 1}, nil
}

func (g *fakeGraph) tapCount(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tapsPer[id]
}

func (g *fakeGraph) closedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// fakeRecorder emits one fixed chunk per flush interval.
type fakeRecorder struct {
	mime     string
	chunk    []byte
	startErr error

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func (r *fakeRecorder) Start(flush time.Duration, deliver func(agent.Chunk)) error {
	if r.startErr != nil {
		return r.startErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("already started")
	}
	r.started = true
	r.stop = make(chan struct{})
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(flush)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				if len(r.chunk) > 0 {
					deliver(agent.Chunk{Data: append([]byte(nil), r.chunk...), At: time.Now()})
				}
			}
		}
	}()
	return nil
}

func (r *fakeRecorder) Stop() ([]agent.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil, nil
	}
	close(r.stop)
	r.wg.Wait()
	r.started = false
	return nil, nil
}

func (r *fakeRecorder) MIMEType() string { return r.mime }

// pcmRecorder is a fakeRecorder that can render its take as float samples.
type pcmRecorder struct {
	fakeRecorder
	pcm       [][]float32
	renderErr error
}

func (r *pcmRecorder) RenderPCM() ([][]float32, error) {
	if r.renderErr != nil {
		return nil, r.renderErr
	}
	return r.pcm, nil
}

func webmFactory(rec *fakeRecorder) agent.RecorderFactory {
	return func(agent.Destination, capture.QualitySettings) (agent.Recorder, error) {
		return rec, nil
	}
}
