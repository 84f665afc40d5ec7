// SPDX-License-Identifier: MIT

package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pagetap/pagetap/internal/bus"
	"github.com/pagetap/pagetap/internal/capture"
	"github.com/pagetap/pagetap/internal/log"
	"github.com/pagetap/pagetap/internal/metrics"
)

const (
	// DefaultPollInterval is the discovery re-enumeration period.
	DefaultPollInterval = time.Second
	// DefaultFlushInterval is the recorder chunk delivery period.
	DefaultFlushInterval = 500 * time.Millisecond

	// publishTimeout bounds status publication. Absence of acknowledgment
	// is not an error condition for the agent's own state.
	publishTimeout = 2 * time.Second
)

// Config wires an agent to one target page.
type Config struct {
	TargetID      string
	Page          Page
	Graph         Graph
	NewRecorder   RecorderFactory
	Bus           bus.Bus
	PollInterval  time.Duration
	FlushInterval time.Duration
}

// Agent drives recording for a single target page. All state is owned by
// the Run loop goroutine: commands, poll ticks, play events and recorder
// chunks funnel into one channel, mirroring a cooperative event loop.
type Agent struct {
	cfg    Config
	logger zerolog.Logger

	sub    bus.Subscriber
	events chan agentEvent
	done   chan struct{}

	// sess is only touched from the Run loop.
	sess *session
}

type agentEvent interface{ isAgentEvent() }

type playEvent struct{ el Element }

type chunkEvent struct {
	sessionID string
	chunk     Chunk
}

func (playEvent) isAgentEvent()  {}
func (chunkEvent) isAgentEvent() {}

// New validates the wiring and creates an agent. Attach subscribes it to
// the command topic; Run drives it.
func New(cfg Config) (*Agent, error) {
	if cfg.TargetID == "" {
		return nil, fmt.Errorf("agent: target id is required")
	}
	if cfg.Page == nil || cfg.Graph == nil || cfg.NewRecorder == nil || cfg.Bus == nil {
		return nil, fmt.Errorf("agent: page, graph, recorder factory and bus are required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	return &Agent{
		cfg: cfg,
		logger: log.WithComponent("agent").With().
			Str(log.FieldTargetID, cfg.TargetID).Logger(),
		events: make(chan agentEvent, 256),
		done:   make(chan struct{}),
	}, nil
}

// Attach subscribes the agent to its command topic. Callers attach before
// publishing the first command; a command published right after Attach
// returns is never lost, even though Run starts asynchronously.
func (a *Agent) Attach(ctx context.Context) error {
	sub, err := a.cfg.Bus.Subscribe(ctx, capture.TopicCommand(a.cfg.TargetID))
	if err != nil {
		return fmt.Errorf("subscribe commands: %w", err)
	}
	a.sub = sub
	return nil
}

// Run processes commands until ctx is cancelled or the command topic is
// closed. Cancellation is treated as loss of the page context: owned
// resources are torn down and a final inactive status is attempted.
func (a *Agent) Run(ctx context.Context) error {
	if a.sub == nil {
		if err := a.Attach(ctx); err != nil {
			return err
		}
	}
	defer func() { _ = a.sub.Close() }()
	defer close(a.done)
	defer a.shutdown()

	a.logger.Info().Str(log.FieldEvent, "agent.attached").Msg("capture agent attached")

	for {
		var pollC <-chan time.Time
		if a.sess != nil {
			pollC = a.sess.poll.C
		}

		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-a.sub.C():
			if !ok {
				return nil
			}
			cmd, ok := msg.(capture.CommandMessage)
			if !ok {
				a.logger.Warn().Msg("ignoring non-command message on command topic")
				continue
			}
			a.handleCommand(ctx, cmd)
		case ev := <-a.events:
			switch e := ev.(type) {
			case playEvent:
				a.handlePlay(ctx, e.el)
			case chunkEvent:
				a.handleChunk(e)
			}
		case <-pollC:
			a.handlePoll(ctx)
		}
	}
}

// shutdown runs on loop exit: navigation or process teardown implicitly
// loses any active session.
func (a *Agent) shutdown() {
	if a.sess == nil {
		return
	}
	a.endSession(context.Background(), evCancel, "page context lost", false)
}

func (a *Agent) handleCommand(ctx context.Context, cmd capture.CommandMessage) {
	switch cmd.Op {
	case capture.OpStart:
		if a.sess != nil {
			// A new capture request while one is active is a
			// stop-then-restart, never a concurrent second session.
			a.endSession(ctx, evStop, "", true)
		}
		a.startSession(ctx, cmd)
	case capture.OpStop:
		if a.sess == nil {
			a.logger.Debug().Msg("stop with no active session, ignoring")
			return
		}
		a.endSession(ctx, evStop, "", true)
	case capture.OpCancel:
		if a.sess == nil {
			a.logger.Debug().Msg("cancel with no active session, ignoring")
			return
		}
		a.endSession(ctx, evCancel, "recording canceled", false)
	default:
		a.logger.Warn().Str("op", string(cmd.Op)).Msg("unknown command op")
	}
}

func (a *Agent) startSession(ctx context.Context, cmd capture.CommandMessage) {
	if err := cmd.Quality.Validate(); err != nil {
		a.publishStatus(ctx, capture.StatusMessage{
			SessionID: cmd.SessionID,
			TargetID:  a.cfg.TargetID,
			State:     capture.StateInactive,
			Message:   fmt.Sprintf("invalid quality settings: %v", err),
			At:        time.Now(),
		})
		return
	}

	disco := NewDiscoverer(a.cfg.Graph, a.logger)
	sess, err := newSession(cmd.SessionID, cmd.Quality, disco, a.cfg.PollInterval)
	if err != nil {
		a.publishStatus(ctx, capture.StatusMessage{
			SessionID: cmd.SessionID,
			TargetID:  a.cfg.TargetID,
			State:     capture.StateInactive,
			Message:   fmt.Sprintf("session setup failed: %v", err),
			At:        time.Now(),
		})
		return
	}
	a.sess = sess
	metrics.SessionsStartedTotal.Inc()
	metrics.SessionsActive.Inc()

	if _, err := sess.machine.Fire(ctx, evStart); err != nil {
		a.endSession(ctx, evCancel, fmt.Sprintf("session start failed: %v", err), false)
		return
	}
	a.publishState(ctx, capture.StateWaiting, "")

	attempted, tapped := disco.Sweep(a.cfg.Page, a.onPlayTrigger)
	if attempted > 0 && tapped == 0 && disco.TapCount() == 0 {
		a.endSession(ctx, evCancel, "no media element could be tapped", false)
		return
	}

	// Synchronous start when a qualifying source is already playing;
	// otherwise stay in waiting until a play event or a poll finds one.
	if el := disco.Pick(); el != nil && el.Playing() {
		a.beginRecording(ctx, el)
	}
}

// onPlayTrigger is invoked from element callbacks, possibly on foreign
// goroutines; it defers the work onto the loop. Play events are idempotent,
// so dropping one under backpressure is harmless.
func (a *Agent) onPlayTrigger(el Element) {
	select {
	case a.events <- playEvent{el: el}:
	case <-a.done:
	default:
	}
}

func (a *Agent) handlePlay(ctx context.Context, el Element) {
	if a.sess == nil || a.sess.recording() {
		return
	}
	a.beginRecording(ctx, el)
}

func (a *Agent) handlePoll(ctx context.Context) {
	if a.sess == nil {
		return
	}
	a.sess.disco.Sweep(a.cfg.Page, a.onPlayTrigger)
	if a.sess.recording() {
		return
	}
	if el := a.sess.disco.Pick(); el != nil && el.Playing() {
		a.beginRecording(ctx, el)
	}
}

func (a *Agent) handleChunk(e chunkEvent) {
	if a.sess == nil || a.sess.id != e.sessionID {
		// Straggler from a drained recorder; the take is already sealed.
		return
	}
	a.sess.chunks = append(a.sess.chunks, e.chunk)
	metrics.ChunksReceivedTotal.Inc()
}

// beginRecording starts the underlying recorder and moves the session to
// the recording state. Idempotent under repeated play events.
func (a *Agent) beginRecording(ctx context.Context, el Element) {
	sess := a.sess
	if sess == nil || sess.recording() || !sess.machine.Can(evPlay) {
		return
	}

	rec, err := a.cfg.NewRecorder(a.cfg.Graph.Destination(), sess.quality)
	if err != nil {
		a.endSession(ctx, evCancel, fmt.Sprintf("recorder unavailable: %v", err), false)
		return
	}
	sid := sess.id
	deliver := func(c Chunk) {
		select {
		case a.events <- chunkEvent{sessionID: sid, chunk: c}:
		case <-a.done:
		}
	}
	if err := rec.Start(a.cfg.FlushInterval, deliver); err != nil {
		a.endSession(ctx, evCancel, fmt.Sprintf("recorder failed to start: %v", err), false)
		return
	}

	sess.rec = rec
	sess.startedAt = time.Now()
	if _, err := sess.machine.Fire(ctx, evPlay); err != nil {
		a.logger.Error().Err(err).Msg("recording transition rejected")
		return
	}
	a.logger.Info().
		Str(log.FieldSessionID, sess.id).
		Str(log.FieldElementID, el.ID()).
		Str(log.FieldEvent, "recording.started").
		Msg("recording started")
	a.publishState(ctx, capture.StateRecording, "")
}

// endSession seals the active session: the recorder is drained, routing
// resources are torn down synchronously and exactly one inactive status is
// emitted. withArtifact builds the artifact from the accumulated chunks;
// zero chunks yield an explanatory message instead, never a corrupt
// artifact.
func (a *Agent) endSession(ctx context.Context, ev sessionEvent, msg string, withArtifact bool) {
	sess := a.sess
	if sess == nil {
		return
	}
	a.sess = nil
	metrics.SessionsActive.Dec()

	if sess.rec != nil {
		rest, err := sess.rec.Stop()
		if err != nil {
			a.logger.Warn().Err(err).Str(log.FieldSessionID, sess.id).Msg("recorder stop failed")
		}
		sess.chunks = append(sess.chunks, rest...)
	}
	sess.teardown()

	now := time.Now()
	if sess.machine.Can(ev) {
		if _, err := sess.machine.Fire(ctx, ev); err != nil {
			a.logger.Warn().Err(err).Str(log.FieldSessionID, sess.id).Msg("final transition rejected")
		}
	}

	status := capture.StatusMessage{
		SessionID: sess.id,
		TargetID:  a.cfg.TargetID,
		State:     capture.StateInactive,
		Message:   msg,
		At:        now,
	}
	if withArtifact {
		if len(sess.chunks) > 0 {
			status.Artifact = a.buildArtifact(sess, now)
			metrics.ArtifactBytesTotal.Add(float64(status.Artifact.Size()))
			a.logger.Info().
				Str(log.FieldSessionID, sess.id).
				Str(log.FieldArtifactID, status.Artifact.ID).
				Str(log.FieldMIME, status.Artifact.MIME).
				Int(log.FieldChunks, len(sess.chunks)).
				Dur(log.FieldDuration, status.Artifact.Duration).
				Msg("artifact sealed")
		} else if status.Message == "" {
			status.Message = "no audio was captured"
		}
	}
	a.publishStatus(ctx, status)
}

func (a *Agent) publishState(ctx context.Context, state capture.State, msg string) {
	a.publishStatus(ctx, capture.StatusMessage{
		SessionID: a.sess.id,
		TargetID:  a.cfg.TargetID,
		State:     state,
		Message:   msg,
		At:        time.Now(),
	})
}

// publishStatus is fire-and-forget with a bounded wait: the agent never
// blocks indefinitely on an absent controller.
func (a *Agent) publishStatus(ctx context.Context, status capture.StatusMessage) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := a.cfg.Bus.Publish(pctx, capture.TopicStatus, status); err != nil {
		a.logger.Warn().
			Err(err).
			Str(log.FieldStatus, string(status.State)).
			Msg("status publish failed")
	}
}
