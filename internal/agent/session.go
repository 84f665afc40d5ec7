// SPDX-License-Identifier: MIT

package agent

import (
	"time"

	"github.com/pagetap/pagetap/internal/capture"
	"github.com/pagetap/pagetap/internal/fsm"
)

// sessionEvent drives the recording state machine.
type sessionEvent string

const (
	evStart  sessionEvent = "start"  // capture request accepted
	evPlay   sessionEvent = "play"   // qualifying source started producing audio
	evStop   sessionEvent = "stop"   // explicit stop, drains chunks into an artifact
	evCancel sessionEvent = "cancel" // explicit cancel, suppresses the artifact
)

// transitions is the complete edge set of the recording lifecycle:
// inactive -> waiting -> recording -> inactive, with waiting able to return
// directly to inactive on stop or cancel.
func transitions() []fsm.Transition[capture.State, sessionEvent] {
	return []fsm.Transition[capture.State, sessionEvent]{
		{From: capture.StateInactive, Event: evStart, To: capture.StateWaiting},
		{From: capture.StateWaiting, Event: evPlay, To: capture.StateRecording},
		{From: capture.StateWaiting, Event: evStop, To: capture.StateInactive},
		{From: capture.StateWaiting, Event: evCancel, To: capture.StateInactive},
		{From: capture.StateRecording, Event: evStop, To: capture.StateInactive},
		{From: capture.StateRecording, Event: evCancel, To: capture.StateInactive},
	}
}

// session holds everything owned by one recording attempt. It exists only
// for the duration of that attempt and is destroyed on stop, cancel or page
// navigation. Quality settings are frozen at creation.
type session struct {
	id      string
	quality capture.QualitySettings
	machine *fsm.Machine[capture.State, sessionEvent]
	disco   *Discoverer

	rec       Recorder
	startedAt time.Time
	chunks    []Chunk

	poll *time.Ticker
}

func newSession(id string, quality capture.QualitySettings, disco *Discoverer, pollInterval time.Duration) (*session, error) {
	machine, err := fsm.New(capture.StateInactive, transitions())
	if err != nil {
		return nil, err
	}
	return &session{
		id:      id,
		quality: quality,
		machine: machine,
		disco:   disco,
		poll:    time.NewTicker(pollInterval),
	}, nil
}

// recording reports whether the underlying recorder has been started.
func (s *session) recording() bool {
	return s.rec != nil
}

// elapsed is the measured duration of the take, zero before recording.
func (s *session) elapsed(now time.Time) time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	return now.Sub(s.startedAt)
}

// teardown releases every resource the session owns: the poll timer, the
// recorder and all routing-graph handles. Safe to call more than once.
func (s *session) teardown() {
	if s.poll != nil {
		s.poll.Stop()
		s.poll = nil
	}
	s.disco.Teardown()
}
