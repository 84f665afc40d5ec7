// SPDX-License-Identifier: MIT

package agent

// Destination is the private mixing destination that all capture taps feed.
// It is never connected to the page's own output path.
type Destination interface {
	ID() string
}

// Tap is a non-destructive routing branch for one element: the element's
// original connection to the page output is preserved and a parallel branch
// feeds the capture destination through a per-element gain stage.
type Tap interface {
	// SetGain adjusts the capture branch level without perturbing the
	// page-native volume.
	SetGain(v float64)
	Gain() float64
	// Close tears the branch down and releases its graph nodes.
	Close() error
}

// Graph builds capture taps inside the page's audio context. The graph and
// its per-element routing state are scoped to the page's lifetime.
type Graph interface {
	Destination() Destination
	// Tap attaches a capture branch to el. Construction must not alter
	// the element's existing output path. Tap may fail for unsupported
	// elements; the caller skips the element and continues.
	Tap(el Element) (Tap, error)
}
