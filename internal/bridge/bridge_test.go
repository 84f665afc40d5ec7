// SPDX-License-Identifier: MIT

package bridge_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/pagetap/pagetap/internal/bridge"
	"github.com/pagetap/pagetap/internal/bus"
	"github.com/pagetap/pagetap/internal/capture"
	"github.com/pagetap/pagetap/internal/controller"
)

type envelope struct {
	Type    string          `json:"type"`
	Seq     uint64          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// fakePage is a scripted page client: it acks every daemon request and
// records the request types it saw.
type fakePage struct {
	t    *testing.T
	conn *websocket.Conn

	writeMu  sync.Mutex
	requests chan string
	closed   chan struct{}
}

func dialPage(t *testing.T, srvURL, targetID, pageURL string) *fakePage {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srvURL, "http") + "/bridge"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = resp.Body.Close()

	p := &fakePage{
		t:        t,
		conn:     conn,
		requests: make(chan string, 64),
		closed:   make(chan struct{}),
	}

	p.send("hello", 1, map[string]any{
		"targetId":     targetID,
		"url":          pageURL,
		"recorderMime": "audio/webm",
	})

	// Handshake ack arrives before anything else.
	var env envelope
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&env))
	require.Equal(t, "ack", env.Type)
	require.NoError(t, conn.SetReadDeadline(time.Time{}))

	go p.serve()
	return p
}

// serve acks every daemon request and exposes the request types in order.
func (p *fakePage) serve() {
	defer close(p.closed)
	for {
		var env envelope
		if err := p.conn.ReadJSON(&env); err != nil {
			return
		}
		switch env.Type {
		case "tap", "untap", "gain", "record_start", "record_stop":
			p.send("ack", env.Seq, nil)
			p.requests <- env.Type
		}
	}
}

func (p *fakePage) send(typ string, seq uint64, payload any) {
	p.t.Helper()
	env := envelope{Type: typ, Seq: seq}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(p.t, err)
		env.Payload = data
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	require.NoError(p.t, p.conn.WriteJSON(env))
}

func (p *fakePage) sendElements(elements ...map[string]any) {
	p.send("elements", 0, map[string]any{"elements": elements})
}

func (p *fakePage) sendChunk(data []byte) {
	p.send("chunk", 0, map[string]any{"data": data})
}

func (p *fakePage) expectRequest(want string) {
	p.t.Helper()
	select {
	case got := <-p.requests:
		require.Equal(p.t, want, got)
	case <-time.After(2 * time.Second):
		p.t.Fatalf("timed out waiting for %s request", want)
	}
}

type harness struct {
	t   *testing.T
	hub *bridge.Hub
	bus *bus.MemoryBus
	srv *httptest.Server
	sub bus.Subscriber
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := bus.NewMemoryBus()
	hub := bridge.NewHub(b, 50*time.Millisecond, 25*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = hub.Run(ctx)
	}()

	srv := httptest.NewServer(hub)

	sub, err := b.Subscribe(ctx, capture.TopicStatus)
	require.NoError(t, err)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-runDone
		_ = sub.Close()
	})
	return &harness{t: t, hub: hub, bus: b, srv: srv, sub: sub}
}

func (h *harness) nextStatus() capture.StatusMessage {
	h.t.Helper()
	select {
	case msg, ok := <-h.sub.C():
		require.True(h.t, ok, "status topic closed")
		status, ok := msg.(capture.StatusMessage)
		require.True(h.t, ok)
		return status
	case <-time.After(3 * time.Second):
		h.t.Fatal("timed out waiting for status")
		return capture.StatusMessage{}
	}
}

func (h *harness) sendCommand(cmd capture.CommandMessage) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(h.t, h.bus.Publish(ctx, capture.TopicCommand(cmd.TargetID), cmd))
}

func TestHandshakeRegistersTarget(t *testing.T) {
	h := newHarness(t)

	dialPage(t, h.srv.URL, "tab-1", "https://radio.example/live")
	require.Eventually(t, func() bool { return h.hub.Connected("tab-1") },
		2*time.Second, 10*time.Millisecond)
}

func TestInjectUnknownTargetFails(t *testing.T) {
	h := newHarness(t)

	err := h.hub.Inject(context.Background(), controller.Target{ID: "ghost"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not connected")
}

func TestCaptureRoundTripOverBridge(t *testing.T) {
	h := newHarness(t)

	page := dialPage(t, h.srv.URL, "tab-1", "https://radio.example/live")
	page.sendElements(map[string]any{"id": "el-1", "playing": true})
	require.Eventually(t, func() bool { return h.hub.Connected("tab-1") },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, h.hub.Inject(context.Background(), controller.Target{ID: "tab-1"}))
	h.sendCommand(capture.CommandMessage{
		SessionID: "sess-1",
		TargetID:  "tab-1",
		Op:        capture.OpStart,
		Quality:   capture.DefaultQuality(),
	})

	require.Equal(t, capture.StateWaiting, h.nextStatus().State)
	page.expectRequest("tap")
	page.expectRequest("record_start")
	require.Equal(t, capture.StateRecording, h.nextStatus().State)

	page.sendChunk([]byte{0x1A, 0x45, 0xDF, 0xA3})
	page.sendChunk([]byte{0x01, 0x02})

	// Give the chunks time to cross the socket before sealing.
	time.Sleep(100 * time.Millisecond)

	h.sendCommand(capture.CommandMessage{
		SessionID: "sess-1",
		TargetID:  "tab-1",
		Op:        capture.OpStop,
	})
	page.expectRequest("record_stop")
	page.expectRequest("untap")

	final := h.nextStatus()
	require.Equal(t, capture.StateInactive, final.State)
	require.NotNil(t, final.Artifact)
	require.Equal(t, "audio/webm", final.Artifact.MIME)
	require.Equal(t, []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01, 0x02}, final.Artifact.Data)
}

func TestStartCommandRightAfterInjectIsDelivered(t *testing.T) {
	h := newHarness(t)

	dialPage(t, h.srv.URL, "tab-1", "https://radio.example/live")
	require.Eventually(t, func() bool { return h.hub.Connected("tab-1") },
		2*time.Second, 10*time.Millisecond)

	// The command subscription must exist when Inject returns; publishing
	// in the same breath as the injection must not lose the command.
	require.NoError(t, h.hub.Inject(context.Background(), controller.Target{ID: "tab-1"}))
	require.Equal(t, 1, h.bus.SubscriberCount(capture.TopicCommand("tab-1")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.bus.Publish(ctx, capture.TopicCommand("tab-1"), capture.CommandMessage{
		SessionID: "sess-1",
		TargetID:  "tab-1",
		Op:        capture.OpStart,
		Quality:   capture.DefaultQuality(),
	}))

	status := h.nextStatus()
	require.Equal(t, "sess-1", status.SessionID)
	require.Equal(t, capture.StateWaiting, status.State)
}

func TestInjectIsIdempotent(t *testing.T) {
	h := newHarness(t)

	dialPage(t, h.srv.URL, "tab-1", "https://radio.example/live")
	require.Eventually(t, func() bool { return h.hub.Connected("tab-1") },
		2*time.Second, 10*time.Millisecond)

	target := controller.Target{ID: "tab-1"}
	require.NoError(t, h.hub.Inject(context.Background(), target))
	require.NoError(t, h.hub.Inject(context.Background(), target))
}

func TestReconnectDisplacesOldConnection(t *testing.T) {
	h := newHarness(t)

	first := dialPage(t, h.srv.URL, "tab-1", "https://radio.example/live")
	require.Eventually(t, func() bool { return h.hub.Connected("tab-1") },
		2*time.Second, 10*time.Millisecond)

	dialPage(t, h.srv.URL, "tab-1", "https://radio.example/live")

	select {
	case <-first.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("old connection was not displaced")
	}
	require.True(t, h.hub.Connected("tab-1"))
}
