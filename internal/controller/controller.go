// SPDX-License-Identifier: MIT

// Package controller implements the privileged orchestrator: it owns the
// externally visible recording status per target, dispatches capture
// commands to injected agents, collects artifacts and relays status events
// to the presentation layer.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pagetap/pagetap/internal/bus"
	"github.com/pagetap/pagetap/internal/capture"
	"github.com/pagetap/pagetap/internal/log"
)

// Target identifies one capturable page.
type Target struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Injector attaches a capture agent to a target page. Injection must be
// idempotent: attaching to an already-instrumented target is a no-op.
type Injector interface {
	Inject(ctx context.Context, target Target) error
}

// Spooler persists sealed artifacts outside the in-memory registry.
type Spooler interface {
	Spool(a *capture.Artifact) error
}

// TargetStatus is the controller's view of one target page.
type TargetStatus struct {
	TargetID  string        `json:"targetId"`
	SessionID string        `json:"sessionId"`
	State     capture.State `json:"state"`
	Message   string        `json:"message,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Controller coordinates capture across targets. One active session per
// target at any time; a start against an active session is a stop.
type Controller struct {
	bus      bus.Bus
	injector Injector
	spooler  Spooler
	logger   zerolog.Logger

	mu        sync.Mutex
	targets   map[string]*TargetStatus
	artifacts map[string]*capture.Artifact
	order     []string

	listeners    map[int]chan capture.StatusMessage
	nextListener int
}

// Option configures optional collaborators.
type Option func(*Controller)

// WithSpooler makes the controller hand every sealed artifact to sp.
func WithSpooler(sp Spooler) Option {
	return func(c *Controller) { c.spooler = sp }
}

// New creates a controller over the given message bus and injector.
func New(b bus.Bus, injector Injector, opts ...Option) *Controller {
	c := &Controller{
		bus:       b,
		injector:  injector,
		logger:    log.WithComponent("controller"),
		targets:   make(map[string]*TargetStatus),
		artifacts: make(map[string]*capture.Artifact),
		listeners: make(map[int]chan capture.StatusMessage),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes agent status messages until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	sub, err := c.bus.Subscribe(ctx, capture.TopicStatus)
	if err != nil {
		return fmt.Errorf("subscribe status: %w", err)
	}
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			status, ok := msg.(capture.StatusMessage)
			if !ok {
				c.logger.Warn().Msg("ignoring non-status message on status topic")
				continue
			}
			c.handleStatus(status)
		}
	}
}

// StartOrStop toggles capture for a target: a start when idle, a stop when
// a session is waiting or recording. All failures surface as an inactive
// status with a message, never as a fault toward the presentation layer.
func (c *Controller) StartOrStop(ctx context.Context, target Target, quality capture.QualitySettings) error {
	c.mu.Lock()
	ts := c.targets[target.ID]
	if ts != nil && ts.State.Active() {
		sessionID := ts.SessionID
		c.mu.Unlock()
		return c.publishCommand(ctx, capture.CommandMessage{
			SessionID: sessionID,
			TargetID:  target.ID,
			Op:        capture.OpStop,
		})
	}
	c.mu.Unlock()

	if err := CheckEligibility(target.URL); err != nil {
		c.logger.Info().
			Str(log.FieldTargetID, target.ID).
			Str(log.FieldURL, target.URL).
			Msg("capture request rejected: ineligible target")
		c.recordLocal(target.ID, capture.StateInactive, err.Error())
		return nil
	}
	if err := quality.Validate(); err != nil {
		c.recordLocal(target.ID, capture.StateInactive, fmt.Sprintf("invalid quality settings: %v", err))
		return nil
	}

	if err := c.injector.Inject(ctx, target); err != nil {
		c.logger.Error().
			Err(err).
			Str(log.FieldTargetID, target.ID).
			Msg("agent injection failed")
		c.recordLocal(target.ID, capture.StateInactive, fmt.Sprintf("could not attach capture agent: %v", err))
		return nil
	}

	sessionID := uuid.NewString()
	c.mu.Lock()
	c.targets[target.ID] = &TargetStatus{
		TargetID:  target.ID,
		SessionID: sessionID,
		State:     capture.StateInactive,
		UpdatedAt: time.Now(),
	}
	c.mu.Unlock()

	return c.publishCommand(ctx, capture.CommandMessage{
		SessionID: sessionID,
		TargetID:  target.ID,
		Op:        capture.OpStart,
		Quality:   quality,
	})
}

// Cancel aborts the target's session without producing an artifact. A
// cancel with no active session is a no-op.
func (c *Controller) Cancel(ctx context.Context, target Target) error {
	c.mu.Lock()
	ts := c.targets[target.ID]
	if ts == nil || !ts.State.Active() {
		c.mu.Unlock()
		return nil
	}
	sessionID := ts.SessionID
	c.mu.Unlock()

	return c.publishCommand(ctx, capture.CommandMessage{
		SessionID: sessionID,
		TargetID:  target.ID,
		Op:        capture.OpCancel,
	})
}

// Status returns a snapshot of every known target.
func (c *Controller) Status() []TargetStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TargetStatus, 0, len(c.targets))
	for _, ts := range c.targets {
		out = append(out, *ts)
	}
	return out
}

// TargetState returns the current status of one target, if known.
func (c *Controller) TargetState(targetID string) (TargetStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.targets[targetID]
	if !ok {
		return TargetStatus{}, false
	}
	return *ts, true
}

// Artifacts lists sealed artifacts, oldest first. Artifacts accumulate
// across start/stop cycles; each is independently downloadable.
func (c *Controller) Artifacts() []*capture.Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*capture.Artifact, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.artifacts[id])
	}
	return out
}

// Artifact fetches one artifact by ID.
func (c *Controller) Artifact(id string) (*capture.Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.artifacts[id]
	return a, ok
}

// Subscribe registers a presentation-layer listener for status events. The
// returned cancel function must be called to release it. Delivery is
// best-effort: a slow listener loses events rather than blocking the
// controller.
func (c *Controller) Subscribe() (<-chan capture.StatusMessage, func()) {
	ch := make(chan capture.StatusMessage, 16)
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = ch
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if lch, ok := c.listeners[id]; ok {
			delete(c.listeners, id)
			close(lch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

func (c *Controller) handleStatus(status capture.StatusMessage) {
	c.mu.Lock()
	ts := c.targets[status.TargetID]
	if ts == nil || ts.SessionID != status.SessionID {
		// Straggler from a stale session after a stop/restart cycle. The
		// state update is dropped, but a sealed artifact is still kept.
		if status.Artifact != nil {
			c.artifacts[status.Artifact.ID] = status.Artifact
			c.order = append(c.order, status.Artifact.ID)
		}
		c.mu.Unlock()
		if status.Artifact != nil && c.spooler != nil {
			if err := c.spooler.Spool(status.Artifact); err != nil {
				c.logger.Warn().
					Err(err).
					Str(log.FieldArtifactID, status.Artifact.ID).
					Msg("artifact spool failed")
			}
		}
		c.logger.Debug().
			Str(log.FieldTargetID, status.TargetID).
			Str(log.FieldSessionID, status.SessionID).
			Str(log.FieldStatus, string(status.State)).
			Msg("dropping status for stale session")
		return
	}
	ts.State = status.State
	ts.Message = status.Message
	ts.UpdatedAt = status.At

	if status.Artifact != nil {
		c.artifacts[status.Artifact.ID] = status.Artifact
		c.order = append(c.order, status.Artifact.ID)
	}
	c.mu.Unlock()

	if status.Artifact != nil && c.spooler != nil {
		if err := c.spooler.Spool(status.Artifact); err != nil {
			c.logger.Warn().
				Err(err).
				Str(log.FieldArtifactID, status.Artifact.ID).
				Msg("artifact spool failed")
		}
	}

	c.logger.Info().
		Str(log.FieldTargetID, status.TargetID).
		Str(log.FieldSessionID, status.SessionID).
		Str(log.FieldStatus, string(status.State)).
		Msg("session status changed")

	c.relay(status)
}

// recordLocal registers a controller-side status (eligibility or injection
// failure) and relays it like an agent-originated one.
func (c *Controller) recordLocal(targetID string, state capture.State, message string) {
	now := time.Now()
	c.mu.Lock()
	c.targets[targetID] = &TargetStatus{
		TargetID:  targetID,
		State:     state,
		Message:   message,
		UpdatedAt: now,
	}
	c.mu.Unlock()

	c.relay(capture.StatusMessage{
		TargetID: targetID,
		State:    state,
		Message:  message,
		At:       now,
	})
}

func (c *Controller) relay(status capture.StatusMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.listeners {
		select {
		case ch <- status:
		default:
			// Slow listener: evict the oldest event to make room, so the
			// stream stays current rather than stale.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- status:
			default:
			}
		}
	}
}

func (c *Controller) publishCommand(ctx context.Context, cmd capture.CommandMessage) error {
	if err := c.bus.Publish(ctx, capture.TopicCommand(cmd.TargetID), cmd); err != nil {
		return fmt.Errorf("publish %s command: %w", cmd.Op, err)
	}
	return nil
}
