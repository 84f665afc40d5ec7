// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The daemon binds to localhost; origin checks add nothing there.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const eventWriteTimeout = 5 * time.Second

// handleEvents upgrades to a websocket and streams status events to the
// client until it disconnects. Artifact payloads are stripped; clients fetch
// them through the download endpoint.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	events, cancel := s.ctrl.Subscribe()
	defer cancel()

	// Reader goroutine: we never expect client frames, but reading is the
	// only way to notice a close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case status, ok := <-events:
			if !ok {
				return
			}
			status.Artifact = nil
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := conn.WriteJSON(status); err != nil {
				s.logger.Debug().Err(err).Msg("event stream write failed, closing")
				return
			}
		}
	}
}
