// SPDX-License-Identifier: MIT

package agent

import (
	"time"

	"github.com/pagetap/pagetap/internal/capture"
)

// Chunk is one slice of recorder output, delivered at the flush interval so
// progress can be reported without waiting for session end.
type Chunk struct {
	Data []byte
	At   time.Time
}

// Recorder records the capture destination's mixed output.
type Recorder interface {
	// Start begins recording with the given flush interval. deliver is
	// invoked for each produced chunk; it must not be called after Stop
	// returns.
	Start(flush time.Duration, deliver func(Chunk)) error
	// Stop ends recording and returns any chunks not yet delivered.
	Stop() ([]Chunk, error)
	// MIMEType reports the native output format of the recorder.
	MIMEType() string
}

// PCMRenderer is implemented by recorders that can decode their accumulated
// take into per-channel float samples for linear-PCM re-encoding. Rendering
// is a fallback path: when the native format already matches policy the
// agent never calls it.
type PCMRenderer interface {
	RenderPCM() ([][]float32, error)
}

// RecorderFactory creates a recorder bound to the capture destination with
// the session's frozen quality settings.
type RecorderFactory func(dest Destination, q capture.QualitySettings) (Recorder, error)
