package tts

import (
	"fmt"
	"iter"
	"time"

	"github.com/book-expert/mimic3-tts/internal/tts/audio"
)

// SynthesisResult is a complete synthesized payload. Audio is the WAV file
// exactly as the engine produced it; the caller owns it.
type SynthesisResult struct {
	Audio  []byte
	Format audio.Format
	Target EngineTarget

	dataOffset int
	dataLength int
}

// newResult validates a WAV payload from an engine. Empty or non-WAV output
// is an engine failure, never a partial result.
func newResult(payload []byte, target EngineTarget) (*SynthesisResult, error) {
	if len(payload) == 0 {
		return nil, &EngineRequestError{Target: target, Err: errEmptyAudio}
	}

	info, err := audio.ParseWAV(payload)
	if err != nil {
		return nil, &EngineRequestError{Target: target, Err: fmt.Errorf("malformed audio: %w", err)}
	}

	return &SynthesisResult{
		Audio:      payload,
		Format:     info.Format,
		Target:     target,
		dataOffset: info.DataOffset,
		dataLength: info.DataLength,
	}, nil
}

// PCM returns the raw samples inside the WAV payload without copying.
func (r *SynthesisResult) PCM() []byte {
	return r.Audio[r.dataOffset : r.dataOffset+r.dataLength]
}

// Duration is the play time of the payload.
func (r *SynthesisResult) Duration() time.Duration {
	return r.Format.Duration(r.dataLength)
}

// Chunks yields the WAV payload in slices of at most size bytes, for hosts
// that stream an already complete result. A size <= 0 yields one chunk.
func (r *SynthesisResult) Chunks(size int) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		step := size
		if step <= 0 {
			step = len(r.Audio)
		}

		for start := 0; start < len(r.Audio); start += step {
			end := min(start+step, len(r.Audio))
			if !yield(r.Audio[start:end]) {
				return
			}
		}
	}
}
