package tts

import (
	"strings"

	"github.com/book-expert/mimic3-tts/internal/tts/text"
	"github.com/book-expert/mimic3-tts/internal/tts/voices"
)

// Overrides are the per-call options a host may set. Zero values and nil
// pointers mean "not overridden".
type Overrides struct {
	Voice    string
	Speaker  string
	Language string
	Gender   string
	Prosody  Prosody
}

// ParseOverrides converts a host option map into Overrides. Unknown keys are
// ignored so hosts can share one options map between plugins.
func ParseOverrides(options map[string]any) (Overrides, error) {
	var ov Overrides

	strs := map[string]*string{
		OptVoice:    &ov.Voice,
		OptSpeaker:  &ov.Speaker,
		OptLanguage: &ov.Language,
		OptGender:   &ov.Gender,
	}
	for name, dst := range strs {
		value, _, err := stringOption(options, name)
		if err != nil {
			return Overrides{}, newValidationError(name, "%v", err)
		}

		*dst = value
	}

	fields := map[string]**float64{
		OptLengthScale: &ov.Prosody.LengthScale,
		OptNoiseScale:  &ov.Prosody.NoiseScale,
		OptNoiseW:      &ov.Prosody.NoiseW,
	}
	for name, dst := range fields {
		value, err := floatOption(options, name)
		if err != nil {
			return Overrides{}, newValidationError(name, "%v", err)
		}

		*dst = value
	}

	return ov, nil
}

// SynthesisRequest is one fully merged synthesis call. It is immutable; read
// it through its accessors.
type SynthesisRequest struct {
	text          string
	voice         VoiceSpec
	speaker       string
	prosody       Prosody
	ssml          bool
	deterministic bool
}

// Text returns the prepared text sent to the engine.
func (r *SynthesisRequest) Text() string { return r.text }

// Voice returns the voice the request is addressed to.
func (r *SynthesisRequest) Voice() VoiceSpec { return r.voice }

// Speaker returns the speaker, or "" for the voice default.
func (r *SynthesisRequest) Speaker() string { return r.speaker }

// SSML reports whether the text is SSML.
func (r *SynthesisRequest) SSML() bool { return r.ssml }

// Deterministic reports whether the engine should disable sampling noise.
func (r *SynthesisRequest) Deterministic() bool { return r.deterministic }

// LengthScale returns the length scale and whether it is set.
func (r *SynthesisRequest) LengthScale() (float64, bool) { return deref(r.prosody.LengthScale) }

// NoiseScale returns the noise scale and whether it is set.
func (r *SynthesisRequest) NoiseScale() (float64, bool) { return deref(r.prosody.NoiseScale) }

// NoiseW returns the phoneme width noise and whether it is set.
func (r *SynthesisRequest) NoiseW() (float64, bool) { return deref(r.prosody.NoiseW) }

// VoiceKey renders the engine voice key, "<region>/<voice>[#speaker]".
func (r *SynthesisRequest) VoiceKey() string { return r.voice.Key(r.speaker) }

// BuildRequest merges overrides over cfg. A field set in neither stays unset
// and is never serialized, leaving the engine to apply its own default.
func BuildRequest(cfg *NormalizedConfig, rawText string, ov Overrides) (*SynthesisRequest, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, newValidationError("text", "must not be empty")
	}

	voice, speaker, err := pickVoice(cfg, ov)
	if err != nil {
		return nil, err
	}

	prosody := ov.Prosody.merge(cfg.Prosody)

	name, err := prosody.validate()
	if err != nil {
		return nil, newValidationError(name, "%v", err)
	}

	prepared := text.Prepare(rawText)

	// Copies detach the request from the caller's and config's pointers.
	return &SynthesisRequest{
		text:    prepared.Text,
		voice:   voice,
		speaker: speaker,
		prosody: Prosody{
			LengthScale: clone(prosody.LengthScale),
			NoiseScale:  clone(prosody.NoiseScale),
			NoiseW:      clone(prosody.NoiseW),
		},
		ssml:          prepared.SSML,
		deterministic: cfg.UseDeterministicCompute,
	}, nil
}

// pickVoice applies voice precedence: explicit voice override, then the
// default voice of an overridden language, then the configured voice. A
// speaker carried by the configured voice does not leak into another voice.
func pickVoice(cfg *NormalizedConfig, ov Overrides) (VoiceSpec, string, error) {
	voice := cfg.Voice
	speaker := cfg.Speaker
	changed := false

	switch {
	case ov.Voice != "":
		spec, keySpeaker, err := ParseVoiceKey(ov.Voice)
		if err != nil {
			return VoiceSpec{}, "", newValidationError(OptVoice, "%v", err)
		}

		changed = spec != cfg.Voice
		voice = spec

		if keySpeaker != "" {
			speaker = keySpeaker
			changed = false
		}
	case ov.Language != "":
		def, found := voices.DefaultVoice(ov.Language)
		if !found {
			return VoiceSpec{}, "", newValidationError(OptLanguage, "no default voice for %q (known: %s)",
				ov.Language, strings.Join(voices.Languages(), ", "))
		}

		spec, err := ParseVoice(def)
		if err != nil {
			return VoiceSpec{}, "", newValidationError(OptLanguage, "%v", err)
		}

		changed = spec != cfg.Voice
		voice = spec
	}

	if changed {
		speaker = ""
	}

	if ov.Speaker != "" {
		speaker = ov.Speaker
	}

	if speaker == "" && ov.Gender != "" {
		speaker = speakerForGender(voice, ov.Gender)
	}

	return voice, speaker, nil
}

func deref(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}

	return *v, true
}

func clone(v *float64) *float64 {
	if v == nil {
		return nil
	}

	c := *v

	return &c
}
