// SPDX-License-Identifier: MIT

package capture

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQualityValidate(t *testing.T) {
	require.NoError(t, DefaultQuality().Validate())

	for _, rate := range []int{44100, 48000, 96000} {
		for _, depth := range []int{16, 24, 32} {
			for _, ch := range []int{1, 2} {
				q := QualitySettings{SampleRate: rate, BitDepth: depth, Channels: ch}
				require.NoError(t, q.Validate())
			}
		}
	}

	bad := []QualitySettings{
		{SampleRate: 22050, BitDepth: 16, Channels: 2},
		{SampleRate: 48000, BitDepth: 8, Channels: 2},
		{SampleRate: 48000, BitDepth: 16, Channels: 6},
		{SampleRate: 48000, BitDepth: 16, Channels: 2, Level: 6},
		{SampleRate: 48000, BitDepth: 16, Channels: 2, Level: -1},
	}
	for _, q := range bad {
		require.Errorf(t, q.Validate(), "settings %+v", q)
	}
}

func TestQualityBitrateDegradesPerLevel(t *testing.T) {
	q := DefaultQuality()
	require.Equal(t, 128000, q.Bitrate())

	q.Level = 1
	require.Equal(t, 108800, q.Bitrate())

	q.Level = 5
	require.Equal(t, 32000, q.Bitrate())
}

func TestQualityLabel(t *testing.T) {
	require.Equal(t, "48k16s", QualitySettings{SampleRate: 48000, BitDepth: 16, Channels: 2}.Label())
	require.Equal(t, "96k32m", QualitySettings{SampleRate: 96000, BitDepth: 32, Channels: 1}.Label())
	require.Equal(t, "44k24s", QualitySettings{SampleRate: 44100, BitDepth: 24, Channels: 2}.Label())
}

func TestStateSet(t *testing.T) {
	require.True(t, StateInactive.Valid())
	require.True(t, StateWaiting.Valid())
	require.True(t, StateRecording.Valid())
	require.False(t, State("paused").Valid())

	require.False(t, StateInactive.Active())
	require.True(t, StateWaiting.Active())
	require.True(t, StateRecording.Active())
}
