package tts

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/book-expert/mimic3-tts/internal/tts/voices"
)

// Recognized plugin options.
const (
	OptVoice                   = "voice"
	OptSpeaker                 = "speaker"
	OptGender                  = "gender"
	OptLanguage                = "language"
	OptLengthScale             = "length_scale"
	OptNoiseScale              = "noise_scale"
	OptNoiseW                  = "noise_w"
	OptRemoteURL               = "remote_url"
	OptAuthToken               = "auth_token"
	OptBinaryPath              = "binary_path"
	OptTimeoutSeconds          = "timeout_seconds"
	OptValidateVoices          = "validate_voices"
	OptPreloadVoices           = "preload_voices"
	OptPreloadLangs            = "preload_langs"
	OptVoicesDirectories       = "voices_directories"
	OptUseDeterministicCompute = "use_deterministic_compute"
)

// Defaults applied by Resolve.
const (
	DefaultBinaryPath     = "mimic3"
	DefaultTimeoutSeconds = 30
)

// Prosody holds the optional Mimic3 prosody knobs. A nil field is unset and
// is left to the engine's own default.
type Prosody struct {
	LengthScale *float64
	NoiseScale  *float64
	NoiseW      *float64
}

// merge returns p with every unset field taken from defaults.
func (p Prosody) merge(defaults Prosody) Prosody {
	return Prosody{
		LengthScale: firstSet(p.LengthScale, defaults.LengthScale),
		NoiseScale:  firstSet(p.NoiseScale, defaults.NoiseScale),
		NoiseW:      firstSet(p.NoiseW, defaults.NoiseW),
	}
}

// validate enforces the engine bounds: finite, non-negative, and a strictly
// positive length scale. It returns the offending option name.
func (p Prosody) validate() (string, error) {
	checks := []struct {
		name     string
		value    *float64
		positive bool
	}{
		{OptLengthScale, p.LengthScale, true},
		{OptNoiseScale, p.NoiseScale, false},
		{OptNoiseW, p.NoiseW, false},
	}

	for _, check := range checks {
		if check.value == nil {
			continue
		}

		v := *check.value

		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			return check.name, fmt.Errorf("must be finite, got %v", v)
		case v < 0:
			return check.name, fmt.Errorf("must be non-negative, got %v", v)
		case check.positive && v == 0:
			return check.name, fmt.Errorf("must be greater than zero, got %v", v)
		}
	}

	return "", nil
}

// NormalizedConfig is the validated plugin configuration. It is the default
// template for every request and is never mutated after Resolve.
type NormalizedConfig struct {
	Voice                   VoiceSpec
	Speaker                 string
	Language                string
	Prosody                 Prosody
	RemoteURL               string
	AuthToken               string
	BinaryPath              string
	Timeout                 time.Duration
	ValidateVoices          bool
	PreloadVoices           []VoiceSpec
	VoicesDirectories       []string
	UseDeterministicCompute bool
}

// Resolve validates and normalizes a flat plugin option map. It performs no
// network or process I/O.
func Resolve(raw map[string]any) (*NormalizedConfig, error) {
	cfg := &NormalizedConfig{
		Language:       voices.FallbackLanguage,
		BinaryPath:     DefaultBinaryPath,
		Timeout:        DefaultTimeoutSeconds * time.Second,
		ValidateVoices: true,
	}

	strs := map[string]*string{
		OptSpeaker:    &cfg.Speaker,
		OptLanguage:   &cfg.Language,
		OptRemoteURL:  &cfg.RemoteURL,
		OptAuthToken:  &cfg.AuthToken,
		OptBinaryPath: &cfg.BinaryPath,
	}
	for name, dst := range strs {
		value, ok, err := stringOption(raw, name)
		if err != nil {
			return nil, newConfigError(name, "%v", err)
		}

		if ok && value != "" {
			*dst = value
		}
	}

	err := resolveVoice(cfg, raw)
	if err != nil {
		return nil, err
	}

	cfg.Prosody, err = resolveProsody(raw)
	if err != nil {
		return nil, err
	}

	err = resolveRemote(cfg)
	if err != nil {
		return nil, err
	}

	err = resolveBehaviour(cfg, raw)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func resolveVoice(cfg *NormalizedConfig, raw map[string]any) error {
	voiceRaw, ok, err := stringOption(raw, OptVoice)
	if err != nil {
		return newConfigError(OptVoice, "%v", err)
	}

	if !ok || voiceRaw == "" {
		def, found := voices.DefaultVoice(cfg.Language)
		if !found {
			return newConfigError(OptVoice, "not set and language %q has no default voice (known: %s)",
				cfg.Language, strings.Join(voices.Languages(), ", "))
		}

		voiceRaw = def
	}

	spec, speaker, err := ParseVoiceKey(voiceRaw)
	if err != nil {
		return newConfigError(OptVoice, "%v", err)
	}

	cfg.Voice = spec
	if cfg.Speaker == "" {
		cfg.Speaker = speaker
	}

	gender, _, err := stringOption(raw, OptGender)
	if err != nil {
		return newConfigError(OptGender, "%v", err)
	}

	if cfg.Speaker == "" && gender != "" {
		cfg.Speaker = speakerForGender(spec, gender)
	}

	return nil
}

func resolveProsody(raw map[string]any) (Prosody, error) {
	var prosody Prosody

	fields := map[string]**float64{
		OptLengthScale: &prosody.LengthScale,
		OptNoiseScale:  &prosody.NoiseScale,
		OptNoiseW:      &prosody.NoiseW,
	}
	for name, dst := range fields {
		value, err := floatOption(raw, name)
		if err != nil {
			return Prosody{}, newConfigError(name, "%v", err)
		}

		*dst = value
	}

	name, err := prosody.validate()
	if err != nil {
		return Prosody{}, newConfigError(name, "%v", err)
	}

	return prosody, nil
}

func resolveRemote(cfg *NormalizedConfig) error {
	if cfg.RemoteURL == "" {
		return nil
	}

	parsed, err := url.Parse(cfg.RemoteURL)
	if err != nil {
		return newConfigError(OptRemoteURL, "%v", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return newConfigError(OptRemoteURL, "scheme must be http or https, got %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return newConfigError(OptRemoteURL, "missing host in %q", cfg.RemoteURL)
	}

	cfg.RemoteURL = strings.TrimRight(cfg.RemoteURL, "/")

	return nil
}

func resolveBehaviour(cfg *NormalizedConfig, raw map[string]any) error {
	timeout, err := floatOption(raw, OptTimeoutSeconds)
	if err != nil {
		return newConfigError(OptTimeoutSeconds, "%v", err)
	}

	if timeout != nil {
		if *timeout <= 0 || math.IsInf(*timeout, 0) || math.IsNaN(*timeout) {
			return newConfigError(OptTimeoutSeconds, "must be a positive number, got %v", *timeout)
		}

		cfg.Timeout = time.Duration(*timeout * float64(time.Second))
	}

	bools := map[string]*bool{
		OptValidateVoices:          &cfg.ValidateVoices,
		OptUseDeterministicCompute: &cfg.UseDeterministicCompute,
	}
	for name, dst := range bools {
		value, ok, err := boolOption(raw, name)
		if err != nil {
			return newConfigError(name, "%v", err)
		}

		if ok {
			*dst = value
		}
	}

	preload, err := stringListOption(raw, OptPreloadVoices)
	if err != nil {
		return newConfigError(OptPreloadVoices, "%v", err)
	}

	for _, raw := range preload {
		spec, err := ParseVoice(raw)
		if err != nil {
			return newConfigError(OptPreloadVoices, "%v", err)
		}

		cfg.addPreload(spec)
	}

	langs, err := stringListOption(raw, OptPreloadLangs)
	if err != nil {
		return newConfigError(OptPreloadLangs, "%v", err)
	}

	for _, lang := range langs {
		def, found := voices.DefaultVoice(lang)
		if !found {
			return newConfigError(OptPreloadLangs, "no default voice for %q (known: %s)",
				lang, strings.Join(voices.Languages(), ", "))
		}

		spec, _, err := ParseVoiceKey(def)
		if err != nil {
			return newConfigError(OptPreloadLangs, "%v", err)
		}

		cfg.addPreload(spec)
	}

	dirs, err := stringListOption(raw, OptVoicesDirectories)
	if err != nil {
		return newConfigError(OptVoicesDirectories, "%v", err)
	}

	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			return newConfigError(OptVoicesDirectories, "empty directory")
		}

		cfg.VoicesDirectories = append(cfg.VoicesDirectories, dir)
	}

	return nil
}

func (c *NormalizedConfig) addPreload(spec VoiceSpec) {
	if !slices.Contains(c.PreloadVoices, spec) {
		c.PreloadVoices = append(c.PreloadVoices, spec)
	}
}

func speakerForGender(voice VoiceSpec, gender string) string {
	matches := voices.SpeakersByGender(voice.String(), strings.ToLower(gender))
	if len(matches) == 0 {
		return ""
	}

	return matches[0].Name
}

func firstSet(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}

	return nil
}

//
// Option decoding helpers. Option maps come from TOML, JSON or host code, so
// numbers may arrive as any numeric kind or as a numeric string.
//

func stringOption(raw map[string]any, name string) (string, bool, error) {
	value, ok := raw[name]
	if !ok || value == nil {
		return "", false, nil
	}

	s, isString := value.(string)
	if !isString {
		return "", false, fmt.Errorf("expected a string, got %T", value)
	}

	return strings.TrimSpace(s), true, nil
}

func floatOption(raw map[string]any, name string) (*float64, error) {
	value, ok := raw[name]
	if !ok || value == nil {
		return nil, nil
	}

	var f float64

	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", v)
		}

		f = parsed
	default:
		return nil, fmt.Errorf("expected a number, got %T", value)
	}

	return &f, nil
}

func boolOption(raw map[string]any, name string) (bool, bool, error) {
	value, ok := raw[name]
	if !ok || value == nil {
		return false, false, nil
	}

	switch v := value.(type) {
	case bool:
		return v, true, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, false, fmt.Errorf("expected a boolean, got %q", v)
		}

		return parsed, true, nil
	default:
		return false, false, fmt.Errorf("expected a boolean, got %T", value)
	}
}

func stringListOption(raw map[string]any, name string) ([]string, error) {
	value, ok := raw[name]
	if !ok || value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))

		for _, item := range v {
			s, isString := item.(string)
			if !isString {
				return nil, fmt.Errorf("expected a list of strings, found %T", item)
			}

			out = append(out, s)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of strings, got %T", value)
	}
}
