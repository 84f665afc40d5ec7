// SPDX-License-Identifier: MIT

package bridge

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pagetap/pagetap/internal/agent"
	"github.com/pagetap/pagetap/internal/bus"
	"github.com/pagetap/pagetap/internal/controller"
	"github.com/pagetap/pagetap/internal/log"
)

var bridgeUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub tracks connected pages and runs one capture agent per injected
// target. It implements http.Handler for the bridge endpoint and
// controller.Injector for the controller.
type Hub struct {
	bus           bus.Bus
	pollInterval  time.Duration
	flushInterval time.Duration
	logger        zerolog.Logger

	mu     sync.Mutex
	conns  map[string]*pageConn
	agents map[string]*runningAgent
	wg     sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

type runningAgent struct {
	cancel context.CancelFunc
	done   chan struct{}
}

var _ controller.Injector = (*Hub)(nil)

// NewHub creates a hub publishing on the given bus.
func NewHub(b bus.Bus, pollInterval, flushInterval time.Duration) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		bus:           b,
		pollInterval:  pollInterval,
		flushInterval: flushInterval,
		logger:        log.WithComponent("bridge"),
		conns:         make(map[string]*pageConn),
		agents:        make(map[string]*runningAgent),
		rootCtx:       ctx,
		rootCancel:    cancel,
	}
}

// Run blocks until ctx is cancelled, then disconnects all pages and waits
// for their agents to drain.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.rootCancel()

	h.mu.Lock()
	for _, c := range h.conns {
		c.Close()
	}
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}

// ServeHTTP accepts one page connection. The first message must be a hello
// announcing the target; the handler then serves the connection for its
// lifetime.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := bridgeUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("bridge upgrade failed")
		return
	}

	hello, seq, err := readHello(ws)
	if err != nil {
		h.logger.Warn().Err(err).Msg("bridge handshake failed")
		_ = ws.Close()
		return
	}

	conn := newPageConn(ws, hello)
	if err := conn.send(typeAck, seq, nil); err != nil {
		conn.Close()
		return
	}

	h.register(conn)
	h.logger.Info().
		Str(log.FieldTargetID, conn.targetID).
		Str(log.FieldURL, conn.url).
		Msg("page connected")

	conn.readLoop()

	h.unregister(conn)
	h.logger.Info().
		Str(log.FieldTargetID, conn.targetID).
		Msg("page disconnected")
}

func readHello(ws *websocket.Conn) (helloPayload, uint64, error) {
	_ = ws.SetReadDeadline(time.Now().Add(requestTimeout))
	defer func() { _ = ws.SetReadDeadline(time.Time{}) }()

	var env envelope
	if err := ws.ReadJSON(&env); err != nil {
		return helloPayload{}, 0, fmt.Errorf("read hello: %w", err)
	}
	if env.Type != typeHello {
		return helloPayload{}, 0, fmt.Errorf("expected hello, got %q", env.Type)
	}
	var hello helloPayload
	if err := decodePayload(env, &hello); err != nil {
		return helloPayload{}, 0, err
	}
	if hello.TargetID == "" {
		return helloPayload{}, 0, fmt.Errorf("hello without target id")
	}
	return hello, env.Seq, nil
}

// register installs the connection, displacing any previous connection for
// the same target. A page reload reconnects under the same target id.
func (h *Hub) register(conn *pageConn) {
	h.mu.Lock()
	old := h.conns[conn.targetID]
	oldAgent := h.agents[conn.targetID]
	delete(h.agents, conn.targetID)
	h.conns[conn.targetID] = conn
	h.mu.Unlock()

	if oldAgent != nil {
		oldAgent.cancel()
	}
	if old != nil {
		old.Close()
	}
}

func (h *Hub) unregister(conn *pageConn) {
	h.mu.Lock()
	if h.conns[conn.targetID] != conn {
		h.mu.Unlock()
		return
	}
	delete(h.conns, conn.targetID)
	ra := h.agents[conn.targetID]
	delete(h.agents, conn.targetID)
	h.mu.Unlock()

	if ra != nil {
		ra.cancel()
	}
	conn.Close()
}

// Inject implements controller.Injector: it attaches a capture agent to a
// connected page. The agent's command subscription is installed before
// Inject returns, so a command published immediately afterwards is
// delivered. Injecting an already-instrumented target is a no-op.
func (h *Hub) Inject(ctx context.Context, target controller.Target) error {
	h.mu.Lock()
	conn, ok := h.conns[target.ID]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("target %s is not connected", target.ID)
	}
	if _, running := h.agents[target.ID]; running {
		h.mu.Unlock()
		return nil
	}

	a, err := agent.New(agent.Config{
		TargetID:      target.ID,
		Page:          conn,
		Graph:         conn,
		NewRecorder:   conn.NewRecorder,
		Bus:           h.bus,
		PollInterval:  h.pollInterval,
		FlushInterval: h.flushInterval,
	})
	if err != nil {
		h.mu.Unlock()
		return fmt.Errorf("create agent: %w", err)
	}
	if err := a.Attach(ctx); err != nil {
		h.mu.Unlock()
		return fmt.Errorf("attach agent: %w", err)
	}

	runCtx, cancel := context.WithCancel(h.rootCtx)
	ra := &runningAgent{cancel: cancel, done: make(chan struct{})}
	h.agents[target.ID] = ra
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer close(ra.done)
		defer cancel()
		if err := a.Run(runCtx); err != nil {
			h.logger.Error().
				Err(err).
				Str(log.FieldTargetID, target.ID).
				Msg("agent terminated with error")
		}
	}()
	return nil
}

// Connected reports whether a page is currently attached for the target.
func (h *Hub) Connected(targetID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.conns[targetID]
	return ok
}
