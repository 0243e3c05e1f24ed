package tts

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
)

const (
	voiceSeparator   = "/"
	speakerSeparator = "#"
)

var errMalformedVoice = errors.New("voice must look like <region>/<voice>")

// VoiceSpec identifies a Mimic3 voice: a language/region tag and a voice
// name, e.g. "en_US" and "cmu-arctic_low". The zero value is not a voice.
type VoiceSpec struct {
	Region string
	Name   string
}

// ParseVoice parses "<region>/<voice>". String on the result yields the input.
func ParseVoice(raw string) (VoiceSpec, error) {
	region, name, found := strings.Cut(raw, voiceSeparator)
	if !found {
		return VoiceSpec{}, fmt.Errorf("%w: missing %q in %q", errMalformedVoice, voiceSeparator, raw)
	}

	if region == "" || name == "" {
		return VoiceSpec{}, fmt.Errorf("%w: empty segment in %q", errMalformedVoice, raw)
	}

	if strings.Contains(name, voiceSeparator) || strings.Contains(raw, speakerSeparator) {
		return VoiceSpec{}, fmt.Errorf("%w: unexpected separator in %q", errMalformedVoice, raw)
	}

	if strings.IndexFunc(raw, unicode.IsSpace) >= 0 {
		return VoiceSpec{}, fmt.Errorf("%w: whitespace in %q", errMalformedVoice, raw)
	}

	return VoiceSpec{Region: region, Name: name}, nil
}

// ParseVoiceKey parses the engine's "<region>/<voice>#<speaker>" form. The
// speaker part is optional.
func ParseVoiceKey(raw string) (VoiceSpec, string, error) {
	voicePart, speaker, hasSpeaker := strings.Cut(raw, speakerSeparator)
	if hasSpeaker && speaker == "" {
		return VoiceSpec{}, "", fmt.Errorf("%w: empty speaker in %q", errMalformedVoice, raw)
	}

	spec, err := ParseVoice(voicePart)
	if err != nil {
		return VoiceSpec{}, "", err
	}

	return spec, speaker, nil
}

func (v VoiceSpec) String() string {
	if v.IsZero() {
		return ""
	}

	return v.Region + voiceSeparator + v.Name
}

// IsZero reports whether v is unset.
func (v VoiceSpec) IsZero() bool { return v.Region == "" && v.Name == "" }

// Key renders the engine voice key, appending the speaker when present.
func (v VoiceSpec) Key(speaker string) string {
	if speaker == "" {
		return v.String()
	}

	return v.String() + speakerSeparator + speaker
}

// VoiceInfo is one entry of the engine voice catalog.
type VoiceInfo struct {
	Voice       VoiceSpec
	Language    string
	Speakers    []string
	Description string
}

// HasSpeaker reports whether speaker is valid for this voice. Voices that do
// not list speakers accept any speaker name and leave the check to the engine.
func (vi VoiceInfo) HasSpeaker(speaker string) bool {
	if speaker == "" || len(vi.Speakers) == 0 {
		return true
	}

	return slices.Contains(vi.Speakers, speaker)
}
