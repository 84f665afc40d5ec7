// SPDX-License-Identifier: MIT

// Package wav encodes linear PCM sample buffers into a RIFF/WAVE container.
// All functions are pure; the encoder holds no shared state and is safe to
// invoke repeatedly.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const headerSize = 44

// Format tags carried in the container header.
const (
	formatPCM       = 1
	formatIEEEFloat = 3
)

var (
	// ErrNoSamples is returned when the input buffer holds zero frames.
	ErrNoSamples = errors.New("wav: no samples to encode")
	// ErrChannelMismatch is returned when input channels differ in length
	// or do not match the requested channel count.
	ErrChannelMismatch = errors.New("wav: channel layout mismatch")
)

// Format describes the target container parameters.
type Format struct {
	SampleRate int
	BitDepth   int
	Channels   int
}

func (f Format) validate() error {
	switch f.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("wav: unsupported bit depth %d", f.BitDepth)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("wav: invalid sample rate %d", f.SampleRate)
	}
	if f.Channels < 1 {
		return fmt.Errorf("wav: invalid channel count %d", f.Channels)
	}
	return nil
}

// Encode converts per-channel float sample buffers into a complete WAV file.
// channels[c][i] is frame i of channel c; all channels must be equal length
// and their count must match f.Channels. Samples are interleaved
// frame-major (output index i*N+c holds frame i, channel c), clamped to
// [-1, 1] and quantized per f.BitDepth. 32-bit output stores IEEE-754
// floats, not integer PCM.
func Encode(channels [][]float32, f Format) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if len(channels) != f.Channels {
		return nil, ErrChannelMismatch
	}
	frames := len(channels[0])
	for _, ch := range channels {
		if len(ch) != frames {
			return nil, ErrChannelMismatch
		}
	}
	if frames == 0 {
		return nil, ErrNoSamples
	}

	bytesPerSample := f.BitDepth / 8
	payload := frames * f.Channels * bytesPerSample
	out := make([]byte, 0, headerSize+payload)
	out = appendHeader(out, f, payload)

	for i := 0; i < frames; i++ {
		for c := 0; c < f.Channels; c++ {
			out = appendSample(out, channels[c][i], f.BitDepth)
		}
	}
	return out, nil
}

// EncodeInterleaved is Encode for a buffer that is already interleaved
// frame-major across f.Channels.
func EncodeInterleaved(samples []float32, f Format) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if len(samples)%f.Channels != 0 {
		return nil, ErrChannelMismatch
	}

	bytesPerSample := f.BitDepth / 8
	payload := len(samples) * bytesPerSample
	out := make([]byte, 0, headerSize+payload)
	out = appendHeader(out, f, payload)
	for _, s := range samples {
		out = appendSample(out, s, f.BitDepth)
	}
	return out, nil
}

// Interleave merges per-channel buffers frame-major into a single buffer.
func Interleave(channels [][]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	n := len(channels)
	frames := len(channels[0])
	out := make([]float32, 0, frames*n)
	for i := 0; i < frames; i++ {
		for c := 0; c < n; c++ {
			out = append(out, channels[c][i])
		}
	}
	return out
}

// appendHeader writes the standard 44-byte descriptor. All multi-byte
// fields are little-endian.
func appendHeader(out []byte, f Format, payload int) []byte {
	bytesPerSample := f.BitDepth / 8
	blockAlign := f.Channels * bytesPerSample
	byteRate := f.SampleRate * blockAlign

	tag := formatPCM
	if f.BitDepth == 32 {
		tag = formatIEEEFloat
	}

	out = append(out, 'R', 'I', 'F', 'F')
	out = binary.LittleEndian.AppendUint32(out, uint32(headerSize-8+payload))
	out = append(out, 'W', 'A', 'V', 'E')
	out = append(out, 'f', 'm', 't', ' ')
	out = binary.LittleEndian.AppendUint32(out, 16) // fmt chunk size
	out = binary.LittleEndian.AppendUint16(out, uint16(tag))
	out = binary.LittleEndian.AppendUint16(out, uint16(f.Channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(f.SampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(byteRate))
	out = binary.LittleEndian.AppendUint16(out, uint16(blockAlign))
	out = binary.LittleEndian.AppendUint16(out, uint16(f.BitDepth))
	out = append(out, 'd', 'a', 't', 'a')
	out = binary.LittleEndian.AppendUint32(out, uint32(payload))
	return out
}

// appendSample quantizes one clamped sample at the given bit depth.
func appendSample(out []byte, s float32, bitDepth int) []byte {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	switch bitDepth {
	case 16:
		var v int16
		if s >= 0 {
			v = int16(s * 0x7FFF)
		} else {
			v = int16(s * 0x8000)
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(v))
	case 24:
		var v int32
		if s >= 0 {
			v = int32(s * 0x7FFFFF)
		} else {
			v = int32(s * 0x800000)
		}
		// 3 raw little-endian bytes, no sign-extension padding.
		out = append(out, byte(v), byte(v>>8), byte(v>>16))
	case 32:
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(s))
	}
	return out
}
