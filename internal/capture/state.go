// SPDX-License-Identifier: MIT

package capture

// State is the externally visible recording state of one target page.
// It is intentionally coarse-grained: "waiting" can precede the existence of
// a recording session (no qualifying source yet), and "inactive" survives
// session destruction.
type State string

const (
	StateInactive  State = "inactive"
	StateWaiting   State = "waiting"
	StateRecording State = "recording"
)

// Valid reports whether s is a member of the closed state set.
func (s State) Valid() bool {
	switch s {
	case StateInactive, StateWaiting, StateRecording:
		return true
	}
	return false
}

// Active reports whether a session is underway or pending.
func (s State) Active() bool {
	return s == StateWaiting || s == StateRecording
}
