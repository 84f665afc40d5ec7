// SPDX-License-Identifier: MIT

// Package capture defines the core value types shared by the capture agent
// and the controller: quality settings, recording state, artifacts and the
// cross-context message variants.
package capture

import (
	"fmt"
)

// baseBitrate is the compressed-recorder target at quality level 0.
const baseBitrate = 128_000

// QualitySettings is the fixed sample rate / bit depth / channel / level
// tuple chosen per recording session. It is immutable for the session's
// lifetime; changing the selection only affects the next session.
type QualitySettings struct {
	SampleRate int `json:"sampleRate" yaml:"sample_rate"`
	BitDepth   int `json:"bitDepth" yaml:"bit_depth"`
	Channels   int `json:"channels" yaml:"channels"`
	// Level is the quality-degradation level 0-5 used to derive the
	// compressed target bitrate.
	Level int `json:"level" yaml:"level"`
}

// DefaultQuality is used when a capture request carries no settings.
func DefaultQuality() QualitySettings {
	return QualitySettings{SampleRate: 48000, BitDepth: 16, Channels: 2, Level: 0}
}

// Validate rejects settings outside the supported sets.
func (q QualitySettings) Validate() error {
	switch q.SampleRate {
	case 44100, 48000, 96000:
	default:
		return fmt.Errorf("unsupported sample rate: %d", q.SampleRate)
	}
	switch q.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth: %d", q.BitDepth)
	}
	switch q.Channels {
	case 1, 2:
	default:
		return fmt.Errorf("unsupported channel count: %d", q.Channels)
	}
	if q.Level < 0 || q.Level > 5 {
		return fmt.Errorf("quality level out of range: %d", q.Level)
	}
	return nil
}

// Bitrate derives the compressed-recorder target bitrate in bits per second.
// Each level degrades the base by 15%.
func (q QualitySettings) Bitrate() int {
	return int(float64(baseBitrate) * (1 - float64(q.Level)*0.15))
}

// BytesPerSample returns the storage size of one sample at this bit depth.
func (q QualitySettings) BytesPerSample() int {
	return q.BitDepth / 8
}

// Label yields a compact tag for filenames, e.g. "48k16s" or "44k24m".
func (q QualitySettings) Label() string {
	ch := "m"
	if q.Channels == 2 {
		ch = "s"
	}
	return fmt.Sprintf("%dk%d%s", q.SampleRate/1000, q.BitDepth, ch)
}
