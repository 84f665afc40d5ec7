// SPDX-License-Identifier: MIT

package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pagetap/pagetap/internal/agent"
	"github.com/pagetap/pagetap/internal/capture"
	"github.com/pagetap/pagetap/internal/log"
)

const (
	requestTimeout = 5 * time.Second
	writeTimeout   = 5 * time.Second
)

// pageConn is one connected page. It implements agent.Page and agent.Graph
// and produces recorders bound to the page-side recording machinery.
type pageConn struct {
	targetID     string
	url          string
	title        string
	recorderMIME string
	logger       zerolog.Logger

	ws      *websocket.Conn
	writeMu sync.Mutex
	seq     atomic.Uint64

	mu           sync.Mutex
	pending      map[uint64]chan error
	playing      map[string]bool
	order        []string
	playHandlers map[string]map[int]func()
	nextHandler  int
	deliver      func(agent.Chunk)

	closed    chan struct{}
	closeOnce sync.Once
}

func newPageConn(ws *websocket.Conn, hello helloPayload) *pageConn {
	mime := hello.RecorderMIME
	if mime == "" {
		mime = capture.MIMEWebM
	}
	return &pageConn{
		targetID:     hello.TargetID,
		url:          hello.URL,
		title:        hello.Title,
		recorderMIME: mime,
		logger: log.WithComponent("bridge").With().
			Str(log.FieldTargetID, hello.TargetID).Logger(),
		ws:           ws,
		pending:      make(map[uint64]chan error),
		playing:      make(map[string]bool),
		playHandlers: make(map[string]map[int]func()),
		closed:       make(chan struct{}),
	}
}

// readLoop consumes page messages until the socket fails. It must run in
// its own goroutine; Close is safe to call concurrently.
func (c *pageConn) readLoop() {
	defer c.Close()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.logger.Debug().Err(err).Msg("page connection closed")
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn().Err(err).Msg("malformed bridge message")
			continue
		}
		c.dispatch(env)
	}
}

func (c *pageConn) dispatch(env envelope) {
	switch env.Type {
	case typeAck:
		var ack ackPayload
		// An ack without payload is a success ack.
		if len(env.Payload) > 0 {
			if err := decodePayload(env, &ack); err != nil {
				c.logger.Warn().Err(err).Msg("malformed ack")
				return
			}
		}
		c.resolve(env.Seq, ack.Error)
	case typeElements:
		var p elementsPayload
		if err := decodePayload(env, &p); err != nil {
			c.logger.Warn().Err(err).Msg("malformed elements snapshot")
			return
		}
		c.applySnapshot(p)
	case typePlay:
		var p playPayload
		if err := decodePayload(env, &p); err != nil {
			c.logger.Warn().Err(err).Msg("malformed play event")
			return
		}
		c.onPlay(p.ElementID)
	case typeChunk:
		var p chunkPayload
		if err := decodePayload(env, &p); err != nil {
			c.logger.Warn().Err(err).Msg("malformed chunk")
			return
		}
		c.onChunk(p.Data)
	default:
		c.logger.Warn().Str("type", env.Type).Msg("unknown bridge message type")
	}
}

func (c *pageConn) resolve(seq uint64, errMsg string) {
	c.mu.Lock()
	ch, ok := c.pending[seq]
	delete(c.pending, seq)
	c.mu.Unlock()
	if !ok {
		return
	}
	if errMsg != "" {
		ch <- fmt.Errorf("%s", errMsg)
	} else {
		ch <- nil
	}
}

// applySnapshot replaces the element table. Elements missing from the
// snapshot are forgotten; their handlers are dropped.
func (c *pageConn) applySnapshot(p elementsPayload) {
	c.mu.Lock()
	seen := make(map[string]struct{}, len(p.Elements))
	order := make([]string, 0, len(p.Elements))
	playing := make(map[string]bool, len(p.Elements))
	for _, el := range p.Elements {
		seen[el.ID] = struct{}{}
		order = append(order, el.ID)
		playing[el.ID] = el.Playing
	}
	for id := range c.playHandlers {
		if _, ok := seen[id]; !ok {
			delete(c.playHandlers, id)
		}
	}
	c.order = order
	c.playing = playing
	c.mu.Unlock()
}

func (c *pageConn) onPlay(elementID string) {
	c.mu.Lock()
	c.playing[elementID] = true
	handlers := make([]func(), 0, len(c.playHandlers[elementID]))
	for _, fn := range c.playHandlers[elementID] {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (c *pageConn) onChunk(data []byte) {
	c.mu.Lock()
	deliver := c.deliver
	c.mu.Unlock()
	if deliver != nil {
		deliver(agent.Chunk{Data: data, At: time.Now()})
	}
}

// request sends a daemon message and waits for the page's ack.
func (c *pageConn) request(typ string, payload any) error {
	seq := c.seq.Add(1)
	ch := make(chan error, 1)
	c.mu.Lock()
	c.pending[seq] = ch
	c.mu.Unlock()

	if err := c.send(typ, seq, payload); err != nil {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return err
	}

	select {
	case err := <-ch:
		return err
	case <-c.closed:
		return fmt.Errorf("page disconnected")
	case <-time.After(requestTimeout):
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return fmt.Errorf("page did not acknowledge %s", typ)
	}
}

func (c *pageConn) send(typ string, seq uint64, payload any) error {
	data, err := encode(typ, seq, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", typ, err)
	}
	return nil
}

// Close tears the connection down and fails all pending requests.
func (c *pageConn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
		c.mu.Lock()
		for seq, ch := range c.pending {
			delete(c.pending, seq)
			ch <- fmt.Errorf("page disconnected")
		}
		c.mu.Unlock()
	})
}

// Done is closed when the page disconnects.
func (c *pageConn) Done() <-chan struct{} { return c.closed }

// Elements implements agent.Page from the last pushed snapshot.
func (c *pageConn) Elements() []agent.Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]agent.Element, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, &remoteElement{conn: c, id: id})
	}
	return out
}

// remoteElement is a non-owning handle onto one page media element.
type remoteElement struct {
	conn *pageConn
	id   string
}

func (e *remoteElement) ID() string { return e.id }

func (e *remoteElement) Playing() bool {
	e.conn.mu.Lock()
	defer e.conn.mu.Unlock()
	return e.conn.playing[e.id]
}

func (e *remoteElement) OnPlay(fn func()) func() {
	c := e.conn
	c.mu.Lock()
	if c.playHandlers[e.id] == nil {
		c.playHandlers[e.id] = make(map[int]func())
	}
	id := c.nextHandler
	c.nextHandler++
	c.playHandlers[e.id][id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.playHandlers[e.id], id)
		c.mu.Unlock()
	}
}

// Destination implements agent.Graph. The page owns a single private
// mixing destination; the daemon only needs a stable handle.
func (c *pageConn) Destination() agent.Destination {
	return remoteDestination{id: c.targetID + "/capture-dest"}
}

type remoteDestination struct{ id string }

func (d remoteDestination) ID() string { return d.id }

// Tap implements agent.Graph: the page builds the routing branch and acks.
func (c *pageConn) Tap(el agent.Element) (agent.Tap, error) {
	if err := c.request(typeTap, tapPayload{ElementID: el.ID()}); err != nil {
		return nil, fmt.Errorf("tap %s: %w", el.ID(), err)
	}
	return &remoteTap{conn: c, elementID: el.ID(), gain: 1.0}, nil
}

type remoteTap struct {
	conn      *pageConn
	elementID string

	mu   sync.Mutex
	gain float64
}

// SetGain is best-effort: a lost gain update degrades level control, not
// the capture itself.
func (t *remoteTap) SetGain(v float64) {
	t.mu.Lock()
	t.gain = v
	t.mu.Unlock()
	if err := t.conn.request(typeGain, gainPayload{ElementID: t.elementID, Value: v}); err != nil {
		t.conn.logger.Warn().Err(err).Str(log.FieldElementID, t.elementID).Msg("gain update failed")
	}
}

func (t *remoteTap) Gain() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gain
}

func (t *remoteTap) Close() error {
	return t.conn.request(typeUntap, tapPayload{ElementID: t.elementID})
}

// NewRecorder is an agent.RecorderFactory over the page-side recorder.
func (c *pageConn) NewRecorder(_ agent.Destination, q capture.QualitySettings) (agent.Recorder, error) {
	return &remoteRecorder{conn: c, quality: q}, nil
}

// remoteRecorder drives the page's recording machinery. Chunks stream in
// over the socket at the flush cadence, so Stop has nothing left to drain.
type remoteRecorder struct {
	conn    *pageConn
	quality capture.QualitySettings
}

func (r *remoteRecorder) Start(flush time.Duration, deliver func(agent.Chunk)) error {
	r.conn.mu.Lock()
	r.conn.deliver = deliver
	r.conn.mu.Unlock()

	err := r.conn.request(typeRecordStart, recordStartPayload{
		FlushMillis: int(flush.Milliseconds()),
		Quality:     r.quality,
	})
	if err != nil {
		r.conn.mu.Lock()
		r.conn.deliver = nil
		r.conn.mu.Unlock()
		return err
	}
	return nil
}

func (r *remoteRecorder) Stop() ([]agent.Chunk, error) {
	err := r.conn.request(typeRecordStop, nil)
	r.conn.mu.Lock()
	r.conn.deliver = nil
	r.conn.mu.Unlock()
	return nil, err
}

func (r *remoteRecorder) MIMEType() string { return r.conn.recorderMIME }
