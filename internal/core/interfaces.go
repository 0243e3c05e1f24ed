// Package core defines the interfaces the mimic3-tts hosts depend on.
package core

import (
	"context"
	"iter"

	"github.com/book-expert/mimic3-tts/internal/tts"
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte, metadata map[string]string) error
}

// Synthesizer is the capability a TTS plugin offers its host.
type Synthesizer interface {
	SynthesizeText(ctx context.Context, text string, options map[string]any) (*tts.SynthesisResult, error)
	ListVoices(ctx context.Context) iter.Seq2[tts.VoiceInfo, error]
}
