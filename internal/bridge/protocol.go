// SPDX-License-Identifier: MIT

// Package bridge connects instrumented pages to the daemon over a
// websocket. Each connected page speaks a small JSON protocol; the bridge
// adapts it onto the agent's page, graph and recorder interfaces so the
// capture engine stays transport-agnostic.
package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/pagetap/pagetap/internal/capture"
)

// Message types sent by the page.
const (
	typeHello    = "hello"
	typeElements = "elements"
	typePlay     = "play"
	typeChunk    = "chunk"
	typeAck      = "ack"
)

// Message types sent by the daemon.
const (
	typeTap         = "tap"
	typeUntap       = "untap"
	typeGain        = "gain"
	typeRecordStart = "record_start"
	typeRecordStop  = "record_stop"
)

// envelope frames every message in both directions. Seq correlates daemon
// requests with page acks; page-initiated messages leave it zero.
type envelope struct {
	Type    string          `json:"type"`
	Seq     uint64          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// helloPayload announces a page after connect. It must be the first message
// on the socket.
type helloPayload struct {
	TargetID string `json:"targetId"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	// RecorderMIME is the native container the page-side recorder emits.
	RecorderMIME string `json:"recorderMime,omitempty"`
}

// elementsPayload is a full snapshot of the page's media elements. The page
// pushes it on connect and whenever the element set or playback state
// changes; the daemon also treats it as the poll answer.
type elementsPayload struct {
	Elements []elementInfo `json:"elements"`
}

type elementInfo struct {
	ID      string `json:"id"`
	Playing bool   `json:"playing"`
}

type playPayload struct {
	ElementID string `json:"elementId"`
}

type chunkPayload struct {
	// Data is base64 in transit (encoding/json []byte convention).
	Data []byte `json:"data"`
}

type ackPayload struct {
	Error string `json:"error,omitempty"`
}

type tapPayload struct {
	ElementID string `json:"elementId"`
}

type gainPayload struct {
	ElementID string  `json:"elementId"`
	Value     float64 `json:"value"`
}

type recordStartPayload struct {
	FlushMillis int                     `json:"flushMillis"`
	Quality     capture.QualitySettings `json:"quality"`
}

func encode(typ string, seq uint64, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
		}
		raw = data
	}
	return json.Marshal(envelope{Type: typ, Seq: seq, Payload: raw})
}

func decodePayload(env envelope, v any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s message without payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return nil
}
