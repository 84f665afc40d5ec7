// SPDX-License-Identifier: MIT

// Package agent implements the capture agent: it discovers playable media
// elements in a target page, builds non-destructive audio taps, drives the
// recording session state machine and reports status and artifacts back to
// the controller over the message bus.
//
// The page environment is abstracted behind the Page, Element, Graph and
// Recorder interfaces so the engine can run against an in-process fake in
// tests or a remote page over the websocket bridge.
package agent

// Element is one playable media element discovered in the target page. The
// agent holds it as a weak, non-owning reference: the element's lifetime
// belongs to the page.
type Element interface {
	// ID identifies the element within its page. Stable across discovery
	// passes so routing state can be remembered per element.
	ID() string
	// Playing reports whether the element is actively producing audio:
	// not paused, not ended, positive playback position.
	Playing() bool
	// OnPlay registers a callback fired on the element's play/playing
	// events. The returned function unregisters it.
	OnPlay(fn func()) (cancel func())
}

// Page enumerates the media elements currently present in the target page.
// Pages may create elements asynchronously, so the agent re-enumerates on a
// fixed poll interval for the life of a session.
type Page interface {
	Elements() []Element
}
