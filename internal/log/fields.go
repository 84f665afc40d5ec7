// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID  = "session_id"
	FieldRequestID  = "request_id"
	FieldTargetID   = "target_id"
	FieldElementID  = "element_id"
	FieldArtifactID = "artifact_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldStatus   = "status"

	// Media fields
	FieldMIME       = "mime"
	FieldSampleRate = "sample_rate"
	FieldBitDepth   = "bit_depth"
	FieldChannels   = "channels"
	FieldChunks     = "chunks"
	FieldDuration   = "duration"

	// Path / URL fields
	FieldPath = "path"
	FieldURL  = "url"
)
