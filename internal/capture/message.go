// SPDX-License-Identifier: MIT

package capture

import "time"

// Message is the closed set of payloads exchanged between the capture agent
// and the controller. Status flows agent -> controller, Command flows
// controller -> agent; the two are never mixed.
type Message interface {
	isMessage()
}

// StatusMessage reports one state transition of a session. Every transition
// emits exactly one StatusMessage; transitions are never merged or dropped
// on the sending side. Message carries advisory, human-readable text and
// must never be used as a control signal.
type StatusMessage struct {
	SessionID string    `json:"sessionId"`
	TargetID  string    `json:"targetId"`
	State     State     `json:"state"`
	Message   string    `json:"message,omitempty"`
	Artifact  *Artifact `json:"artifact,omitempty"`
	At        time.Time `json:"at"`
}

func (StatusMessage) isMessage() {}

// Op is a command verb issued by the controller.
type Op string

const (
	OpStart  Op = "start"
	OpStop   Op = "stop"
	OpCancel Op = "cancel"
)

// CommandMessage instructs the agent to change its session lifecycle. An
// agent receiving a stop or cancel with no active session treats it as a
// no-op, not an error.
type CommandMessage struct {
	SessionID string          `json:"sessionId"`
	TargetID  string          `json:"targetId"`
	Op        Op              `json:"op"`
	Quality   QualitySettings `json:"quality"`
}

func (CommandMessage) isMessage() {}

// Bus topics for agent/controller message exchange.
const (
	TopicStatus = "capture.status"
)

// TopicCommand returns the per-target command topic.
func TopicCommand(targetID string) string {
	return "capture.command." + targetID
}
