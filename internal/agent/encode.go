// SPDX-License-Identifier: MIT

package agent

import (
	"time"

	"github.com/google/uuid"

	"github.com/pagetap/pagetap/internal/capture"
	"github.com/pagetap/pagetap/internal/log"
	"github.com/pagetap/pagetap/internal/metrics"
	"github.com/pagetap/pagetap/internal/wav"
)

// buildArtifact converts the session's accumulated chunks into the final
// artifact. The native recorder output is used unchanged when it is already
// a directly-usable compressed format; linear-PCM re-encoding into WAV is
// the fallback path. A decode or render failure during the fallback never
// loses the recording: the original chunk sequence is emitted instead.
// Called with at least one chunk; zero chunks never reach this point.
func (a *Agent) buildArtifact(s *session, now time.Time) *capture.Artifact {
	art := &capture.Artifact{
		ID:        uuid.NewString(),
		CreatedAt: now,
		Duration:  s.elapsed(now),
		Quality:   s.quality,
	}

	mime := s.rec.MIMEType()
	if capture.Compressed(mime) {
		art.MIME = mime
		art.Data = concat(s.chunks)
		return art
	}

	if renderer, ok := s.rec.(PCMRenderer); ok {
		channels, err := renderer.RenderPCM()
		if err == nil {
			encoded, encErr := wav.Encode(channels, wav.Format{
				SampleRate: s.quality.SampleRate,
				BitDepth:   s.quality.BitDepth,
				Channels:   s.quality.Channels,
			})
			if encErr == nil {
				art.MIME = capture.MIMEWav
				art.Data = encoded
				return art
			}
			err = encErr
		}
		metrics.EncodeFallbackTotal.Inc()
		a.logger.Warn().
			Err(err).
			Str(log.FieldSessionID, s.id).
			Str(log.FieldMIME, mime).
			Msg("pcm re-encode failed, emitting native format unchanged")
	}

	if mime == "" {
		mime = capture.MIMEWebM
	}
	art.MIME = mime
	art.Data = concat(s.chunks)
	return art
}

func concat(chunks []Chunk) []byte {
	size := 0
	for _, c := range chunks {
		size += len(c.Data)
	}
	out := make([]byte, 0, size)
	for _, c := range chunks {
		out = append(out, c.Data...)
	}
	return out
}
